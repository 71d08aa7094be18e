package services

import (
	"fmt"
	"html"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"recordsdesk/internal/models"
)

// TaskAnnouncer is told about every task after its transaction commits.
type TaskAnnouncer interface {
	Announce(t models.Task)
}

// Announcers fans one task out to several announcers.
type Announcers []TaskAnnouncer

func (a Announcers) Announce(t models.Task) {
	for _, x := range a {
		if x != nil {
			x.Announce(t)
		}
	}
}

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts new tasks to the staff chat.
type TelegramNotifier struct {
	bot     botSender
	chatID  int64
	siteURL string
}

// NewTelegramNotifier returns a disabled notifier when token or chat is empty.
func NewTelegramNotifier(token string, chatID int64, siteURL string) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		log.Printf("[tg][skip] token or chatID empty (token? %v chatID=%d)", token != "", chatID)
		return &TelegramNotifier{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, siteURL: strings.TrimRight(siteURL, "/")}, nil
}

func (t *TelegramNotifier) Announce(task models.Task) {
	if t == nil || t.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, t.format(task))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[tg][send][err] task=%d err=%v", task.ID, err)
		return
	}
	log.Printf("[tg][send][ok] task=%d kind=%s", task.ID, task.Kind)
}

func (t *TelegramNotifier) format(task models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>New %s task</b> #%d", strings.ReplaceAll(string(task.Kind), "_", " "), task.ID)
	if task.RequestID != nil {
		fmt.Fprintf(&b, "\nRequest #%d", *task.RequestID)
	}
	switch p := task.Payload.(type) {
	case models.StatusChangePayload:
		fmt.Fprintf(&b, "\n%s → %s", p.Old.Label(), p.New.Label())
	case models.FlaggedPayload:
		fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(p.Text))
	case models.OrphanPayload:
		fmt.Fprintf(&b, "\nTo: %s", html.EscapeString(p.Address))
	case models.NewAgencyPayload:
		fmt.Fprintf(&b, "\nAgency: %s", html.EscapeString(p.ProposedName))
	}
	if t.siteURL != "" {
		fmt.Fprintf(&b, "\n%s/tasks/%d", t.siteURL, task.ID)
	}
	return b.String()
}

// StaffChat is the chat tasks are announced to; 0 when disabled.
func (t *TelegramNotifier) StaffChat() int64 {
	if t == nil || t.bot == nil {
		return 0
	}
	return t.chatID
}

func (t *TelegramNotifier) Reply(chatID int64, text string) error {
	if t == nil || t.bot == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}
