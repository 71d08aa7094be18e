package handlers

import (
	"fmt"
	"html"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/services"
)

const digestLimit = 10

// ChatReplier answers in the staff Telegram chat.
type ChatReplier interface {
	StaffChat() int64
	Reply(chatID int64, text string) error
}

// IntegrationsHandler serves the Telegram webhook for the staff chat. Only
// updates from that chat are answered.
type IntegrationsHandler struct {
	TG      ChatReplier
	TaskSvc services.TaskService
}

func NewIntegrationsHandler(tg ChatReplier, taskSvc services.TaskService) *IntegrationsHandler {
	return &IntegrationsHandler{TG: tg, TaskSvc: taskSvc}
}

type tgUpdate struct {
	Message *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// staffBot reads the queue on behalf of the chat.
var staffBot = authz.Actor{RoleID: authz.RoleStaff}

func (h *IntegrationsHandler) Webhook(c *gin.Context) {
	if h.TG == nil || h.TG.StaffChat() == 0 {
		log.Printf("[tg][webhook] telegram disabled, ignoring update")
		c.Status(http.StatusOK)
		return
	}

	var up tgUpdate
	if err := c.ShouldBindJSON(&up); err != nil || up.Message == nil {
		if err != nil {
			log.Printf("[tg][webhook] bind json error: %v", err)
		}
		c.Status(http.StatusOK)
		return
	}
	chatID := up.Message.Chat.ID
	if chatID != h.TG.StaffChat() {
		log.Printf("[tg][webhook][skip] foreign chat=%d", chatID)
		c.Status(http.StatusOK)
		return
	}

	text := strings.TrimSpace(up.Message.Text)
	cmd := strings.SplitN(text, "@", 2)[0]
	switch {
	case strings.HasPrefix(cmd, "/open"):
		h.reply(chatID, h.digest(c, nil))
	case strings.HasPrefix(cmd, "/kind"):
		arg := strings.TrimSpace(strings.TrimPrefix(text, "/kind"))
		kind, ok := models.ParseTaskKind(arg)
		if !ok {
			h.reply(chatID, "Unknown kind. Try <code>/kind orphan</code>.")
			break
		}
		h.reply(chatID, h.digest(c, &kind))
	default:
		h.reply(chatID, "Commands: <code>/open</code> lists unresolved tasks, <code>/kind &lt;kind&gt;</code> filters them.")
	}
	c.Status(http.StatusOK)
}

func (h *IntegrationsHandler) reply(chatID int64, text string) {
	if err := h.TG.Reply(chatID, text); err != nil {
		log.Printf("[tg][reply][err] chat=%d err=%v", chatID, err)
	}
}

// digest summarises unresolved tasks: counts per kind and the oldest few.
func (h *IntegrationsHandler) digest(c *gin.Context, kind *models.TaskKind) string {
	open := false
	tasks, err := h.TaskSvc.GetAll(c.Request.Context(), staffBot, models.TaskFilter{Kind: kind, Resolved: &open})
	if err != nil {
		log.Printf("[tg][digest][err] %v", err)
		return "Could not load tasks, try again later."
	}
	if len(tasks) == 0 {
		return "No open tasks. 👍"
	}
	counts := map[models.TaskKind]int{}
	for _, t := range tasks {
		counts[t.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d open tasks</b>\n", len(tasks))
	for _, k := range kinds {
		fmt.Fprintf(&b, "• %s: %d\n", html.EscapeString(k), counts[models.TaskKind(k)])
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	n := min(len(tasks), digestLimit)
	b.WriteString("\nOldest:\n")
	for _, t := range tasks[:n] {
		fmt.Fprintf(&b, "#%d %s (%s)\n", t.ID, t.Kind, t.CreatedAt.Format("2006-01-02"))
	}
	if len(tasks) > n {
		fmt.Fprintf(&b, "…and %d more\n", len(tasks)-n)
	}
	return b.String()
}
