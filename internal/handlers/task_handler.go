package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"recordsdesk/internal/models"
	"recordsdesk/internal/realtime"
	"recordsdesk/internal/services"
)

type TaskHandler struct {
	service services.TaskService
	actors  ActorResolver
	hub     *realtime.TaskHub
}

func NewTaskHandler(service services.TaskService, actors ActorResolver, hub *realtime.TaskHub) *TaskHandler {
	return &TaskHandler{service: service, actors: actors, hub: hub}
}

// @Summary      List tasks
// @Description  Staff work queue, optionally filtered by kind, state, assignee or request.
// @Tags         Tasks
// @Produce      json
// @Param        kind         query     string  false  "Task kind"
// @Param        resolved     query     bool    false  "Resolved state"
// @Param        assigned_id  query     int     false  "Assignee"
// @Param        request_id   query     int     false  "Request"
// @Success      200          {object}  map[string]interface{}
// @Failure      403          {object}  map[string]string
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	var f models.TaskFilter
	if k := c.Query("kind"); k != "" {
		kind, valid := models.ParseTaskKind(k)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
			return
		}
		f.Kind = &kind
	}
	if r := c.Query("resolved"); r != "" {
		b, err := strconv.ParseBool(r)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resolved"})
			return
		}
		f.Resolved = &b
	}
	if f.AssignedID, ok = parseOptionalInt64(c, "assigned_id"); !ok {
		return
	}
	if f.RequestID, ok = parseOptionalInt64(c, "request_id"); !ok {
		return
	}
	limit, ok := parseOptionalInt64(c, "limit")
	if !ok {
		return
	}
	if limit != nil {
		f.Limit = int(*limit)
	}

	tasks, err := h.service.GetAll(c.Request.Context(), actor, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tasks})
}

// GET /tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, err := h.service.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// @Summary      Resolve a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id       path      int                    true  "Task ID"
// @Param        resolve  body      services.ResolveInput  true  "Kind-specific choice"
// @Success      200      {object}  models.Task
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Router       /tasks/{id}/resolve [post]
func (h *TaskHandler) Resolve(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.ResolveInput
	if c.Request.ContentLength != 0 && !bindJSON(c, &in) {
		return
	}
	task, err := h.service.Resolve(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("[task][resolve][ok] id=%d kind=%s by=%d", task.ID, task.Kind, actor.UserID)
	c.JSON(http.StatusOK, task)
}

// PUT /tasks/:id/assignee {"assignee_id": 3} or null to clear
func (h *TaskHandler) Assign(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		AssigneeID *int64 `json:"assignee_id"`
	}
	if !bindJSON(c, &body) {
		return
	}
	task, err := h.service.Assign(c.Request.Context(), actor, id, body.AssigneeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Stream pushes newly created tasks to a staff dashboard over a websocket.
func (h *TaskHandler) Stream(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	if !actor.IsStaff() {
		respondError(c, services.ErrForbidden)
		return
	}
	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		log.Printf("[task][stream][err] user=%d err=%v", actor.UserID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.hub.Register(conn)
	defer h.hub.Unregister(conn)
	log.Printf("[task][stream][open] user=%d clients=%d", actor.UserID, h.hub.Clients())

	_ = conn.Drain()
}
