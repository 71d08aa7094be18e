package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/services"
)

type RequestHandler struct {
	service services.LifecycleService
}

func NewRequestHandler(service services.LifecycleService) *RequestHandler {
	return &RequestHandler{service: service}
}

type textBody struct {
	Text string `json:"text"`
}

type idsBody struct {
	IDs []int64 `json:"ids" binding:"required"`
}

// @Summary      Create a draft request
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        draft  body      services.DraftInput  true  "Draft"
// @Success      201    {object}  models.Request
// @Failure      400    {object}  map[string]string
// @Failure      403    {object}  map[string]string
// @Router       /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	var in services.DraftInput
	if !bindJSON(c, &in) {
		return
	}
	req, err := h.service.CreateDraft(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("[request][create][ok] id=%d user=%d", req.ID, actor.UserID)
	c.JSON(http.StatusCreated, req)
}

// POST /requests/:id/clone
func (h *RequestHandler) Clone(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	req, err := h.service.Clone(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// @Summary      Edit an unsubmitted draft
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        id     path      int                  true  "Request ID"
// @Param        edit   body      services.DraftEdit   true  "Fields to change"
// @Success      200    {object}  models.Request
// @Failure      403    {object}  map[string]string
// @Router       /requests/{id} [patch]
func (h *RequestHandler) UpdateDraft(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.DraftEdit
	if !bindJSON(c, &in) {
		return
	}
	req, err := h.service.UpdateDraft(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// DELETE /requests/:id
func (h *RequestHandler) Delete(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Get a request with its communications
// @Tags         Requests
// @Produce      json
// @Param        id   path      int     true   "Request ID"
// @Param        key  query     string  false  "Access key"
// @Success      200  {object}  services.RequestDetail
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GET /requests?user_id=&agency_id=&status=&limit=&offset=
func (h *RequestHandler) List(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	var f models.RequestFilter
	if f.UserID, ok = parseOptionalInt64(c, "user_id"); !ok {
		return
	}
	if f.AgencyID, ok = parseOptionalInt64(c, "agency_id"); !ok {
		return
	}
	if s := c.Query("status"); s != "" {
		st, valid := models.ParseStatus(s)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		f.Status = &st
	}
	limit, ok := parseOptionalInt64(c, "limit")
	if !ok {
		return
	}
	if limit != nil {
		f.Limit = int(*limit)
	}
	offset, ok := parseOptionalInt64(c, "offset")
	if !ok {
		return
	}
	if offset != nil {
		f.Offset = int(*offset)
	}
	items, err := h.service.List(c.Request.Context(), actor, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary      Submit a draft to its agency
// @Tags         Requests
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  models.Request
// @Failure      402  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /requests/{id}/submit [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	req, err := h.service.Submit(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("[request][submit][ok] id=%d status=%s", req.ID, req.Status)
	c.JSON(http.StatusOK, req)
}

// POST /requests/submit {"ids":[...]}
func (h *RequestHandler) SubmitMulti(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	var body idsBody
	if !bindJSON(c, &body) {
		return
	}
	done, err := h.service.SubmitMulti(c.Request.Context(), actor, body.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submitted": done})
}

// POST /requests/:id/status
func (h *RequestHandler) ChangeStatus(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.ChangeStatusInput
	if !bindJSON(c, &in) {
		return
	}
	req, err := h.service.ChangeStatus(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// POST /requests/:id/agency-reply
func (h *RequestHandler) AgencyReply(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.AgencyReplyInput
	if !bindJSON(c, &in) {
		return
	}
	comm, err := h.service.AgencyReply(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comm)
}

// POST /requests/:id/follow-up
func (h *RequestHandler) FollowUp(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.FollowUpInput
	if !bindJSON(c, &in) {
		return
	}
	comm, err := h.service.FollowUp(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comm)
}

// POST /requests/:id/thanks
func (h *RequestHandler) Thank(c *gin.Context) {
	h.textAction(c, func(actor authz.Actor, id int64, text string) (any, error) {
		return h.service.Thank(c.Request.Context(), actor, id, text)
	})
}

// POST /requests/:id/appeal
func (h *RequestHandler) Appeal(c *gin.Context) {
	h.textAction(c, func(actor authz.Actor, id int64, text string) (any, error) {
		return h.service.Appeal(c.Request.Context(), actor, id, text)
	})
}

// POST /requests/:id/flag
func (h *RequestHandler) Flag(c *gin.Context) {
	h.textAction(c, func(actor authz.Actor, id int64, text string) (any, error) {
		return h.service.Flag(c.Request.Context(), actor, id, text)
	})
}

// POST /requests/:id/notes
func (h *RequestHandler) AddNote(c *gin.Context) {
	h.textAction(c, func(actor authz.Actor, id int64, text string) (any, error) {
		return h.service.AddNote(c.Request.Context(), actor, id, text)
	})
}

// PUT /requests/:id/agency
func (h *RequestHandler) UpdatePendingAgency(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.NewAgencyInput
	if !bindJSON(c, &in) {
		return
	}
	agency, err := h.service.UpdatePendingAgency(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agency)
}

// POST /requests/:id/contact-user
func (h *RequestHandler) ContactUser(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body textBody
	if !bindJSON(c, &body) {
		return
	}
	if err := h.service.ContactUser(c.Request.Context(), actor, id, body.Text); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// textAction handles the endpoints that take a request id and a text body
// and create one record.
func (h *RequestHandler) textAction(c *gin.Context, fn func(actor authz.Actor, id int64, text string) (any, error)) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body textBody
	if c.Request.ContentLength != 0 && !bindJSON(c, &body) {
		return
	}
	out, err := fn(actor, id, body.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// PUT /requests/:id/embargo
func (h *RequestHandler) Embargo(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.EmbargoInput
	if !bindJSON(c, &in) {
		return
	}
	req, err := h.service.UpdateEmbargo(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// PUT /requests/:id/estimate {"date_estimate":"2026-01-02T00:00:00Z"}
func (h *RequestHandler) Estimate(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		DateEstimate time.Time `json:"date_estimate" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	req, err := h.service.UpdateEstimate(c.Request.Context(), actor, id, body.DateEstimate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// POST /requests/:id/access-key
func (h *RequestHandler) AccessKey(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	key, err := h.service.GenerateAccessKey(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_key": key})
}

// POST /requests/:id/access {"user_ids":[...],"level":"view"}
func (h *RequestHandler) GrantAccess(c *gin.Context) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		UserIDs []int64 `json:"user_ids" binding:"required"`
		Level   string  `json:"level"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if err := h.service.GrantAccess(c.Request.Context(), actor, id, body.UserIDs, body.Level); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": true})
}

// DELETE /requests/:id/access/:user_id
func (h *RequestHandler) RevokeAccess(c *gin.Context) {
	h.accessAction(c, h.service.RevokeAccess)
}

// POST /requests/:id/access/:user_id/promote
func (h *RequestHandler) Promote(c *gin.Context) {
	h.accessAction(c, h.service.Promote)
}

// POST /requests/:id/access/:user_id/demote
func (h *RequestHandler) Demote(c *gin.Context) {
	h.accessAction(c, h.service.Demote)
}

func (h *RequestHandler) accessAction(c *gin.Context, fn func(ctx context.Context, actor authz.Actor, id, userID int64) error) {
	actor, ok := actorOf(c, h.service)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), actor, id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": true})
}
