package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"recordsdesk/internal/delivery"
	"recordsdesk/internal/models"
	"recordsdesk/internal/services"
)

type CommunicationHandler struct {
	lifecycle services.LifecycleService
	delivery  services.DeliveryService
}

func NewCommunicationHandler(lifecycle services.LifecycleService, delivery services.DeliveryService) *CommunicationHandler {
	return &CommunicationHandler{lifecycle: lifecycle, delivery: delivery}
}

// POST /communications/:id/resend
func (h *CommunicationHandler) Resend(c *gin.Context) {
	actor, ok := actorOf(c, h.lifecycle)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.ResendInput
	if c.Request.ContentLength != 0 && !bindJSON(c, &in) {
		return
	}
	comm, err := h.lifecycle.Resend(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comm)
}

// POST /communications/:id/move {"ids":[...]}
func (h *CommunicationHandler) Move(c *gin.Context) {
	actor, ok := actorOf(c, h.lifecycle)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body idsBody
	if !bindJSON(c, &body) {
		return
	}
	comms, err := h.lifecycle.MoveCommunication(c.Request.Context(), actor, id, body.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": comms})
}

// DELETE /communications/:id
func (h *CommunicationHandler) Delete(c *gin.Context) {
	actor, ok := actorOf(c, h.lifecycle)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.lifecycle.DeleteCommunication(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /communications/:id/status {"status":"good"}
func (h *CommunicationHandler) SetStatus(c *gin.Context) {
	actor, ok := actorOf(c, h.lifecycle)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Status models.DeliveryStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if err := h.lifecycle.SetCommunicationStatus(c.Request.Context(), actor, id, body.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": true})
}

// @Summary      Delivery status callback
// @Description  Providers report the final state of a sent communication. Authenticated with X-Delivery-Token.
// @Tags         Delivery
// @Accept       json
// @Produce      json
// @Param        event  body      delivery.StatusEvent  true  "Event"
// @Success      200    {object}  models.Communication
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /delivery/events [post]
func (h *CommunicationHandler) DeliveryEvent(c *gin.Context) {
	var ev delivery.StatusEvent
	if !bindJSON(c, &ev) {
		return
	}
	if err := ev.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comm, err := h.delivery.Reconcile(c.Request.Context(), ev)
	if err != nil {
		log.Printf("[delivery][event][err] comm=%d receipt=%q err=%v", ev.CommunicationID, ev.Receipt, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comm)
}
