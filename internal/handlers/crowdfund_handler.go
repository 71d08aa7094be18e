package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recordsdesk/internal/services"
)

type CrowdfundHandler struct {
	service services.CrowdfundService
	actors  ActorResolver
}

func NewCrowdfundHandler(service services.CrowdfundService, actors ActorResolver) *CrowdfundHandler {
	return &CrowdfundHandler{service: service, actors: actors}
}

// POST /requests/:id/crowdfund
func (h *CrowdfundHandler) Create(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.CrowdfundInput
	if !bindJSON(c, &in) {
		return
	}
	cf, err := h.service.Create(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cf)
}

// GET /crowdfunds/:id
func (h *CrowdfundHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	cf, payments, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"crowdfund": cf, "payments": payments})
}

// POST /crowdfunds/:id/contribute
func (h *CrowdfundHandler) Contribute(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.ContributionInput
	if !bindJSON(c, &in) {
		return
	}
	cf, err := h.service.Contribute(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cf)
}
