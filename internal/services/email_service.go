package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log"
	"strings"
	"sync"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/gomail.v2"

	"recordsdesk/internal/models"
)

//go:embed templates/*.md
var templateFS embed.FS

// Notifier sends messages to humans. Every method is fire-and-forget:
// failures are logged, never returned.
type Notifier interface {
	AgencyCreated(ctx context.Context, agency *models.Agency, req *models.Request, proposer *models.User)
	MultiSubmitted(ctx context.Context, owner *models.User, reqs []models.Request)
	ContactUser(ctx context.Context, owner *models.User, req *models.Request, sender *models.User, text string)
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailNotifier struct {
	dialer     mailDialer
	from       string
	staffEmail string
	siteURL    string
	templates  *template.Template
	md         goldmark.Markdown
	mu         sync.Mutex
}

func NewEmailNotifier(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail, staffEmail, siteURL string) (Notifier, error) {
	return newEmailNotifier(gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword), fromEmail, staffEmail, siteURL)
}

func newEmailNotifier(d mailDialer, from, staffEmail, siteURL string) (*emailNotifier, error) {
	tpl, err := template.ParseFS(templateFS, "templates/*.md")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &emailNotifier{
		dialer:     d,
		from:       from,
		staffEmail: staffEmail,
		siteURL:    strings.TrimRight(siteURL, "/"),
		templates:  tpl,
		md:         goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

// rendered is one notification ready to send.
type rendered struct {
	Subject string
	Text    string
	HTML    string
}

// render executes the named template. Its first line carries the subject
// ("Subject: ..."); the rest is markdown.
func (n *emailNotifier) render(name string, data map[string]any) (rendered, error) {
	data["SiteURL"] = n.siteURL
	var buf bytes.Buffer
	if err := n.templates.ExecuteTemplate(&buf, name+".md", data); err != nil {
		return rendered{}, fmt.Errorf("execute %s: %w", name, err)
	}
	head, body, _ := strings.Cut(buf.String(), "\n")
	subject := strings.TrimSpace(strings.TrimPrefix(head, "Subject:"))
	body = strings.TrimSpace(body)

	var html bytes.Buffer
	if err := n.md.Convert([]byte(body), &html); err != nil {
		return rendered{}, fmt.Errorf("markdown %s: %w", name, err)
	}
	return rendered{Subject: subject, Text: body, HTML: html.String()}, nil
}

func (n *emailNotifier) send(name, to string, data map[string]any) {
	if to == "" {
		log.Printf("[notify][%s][skip] no recipient", name)
		return
	}
	msg, err := n.render(name, data)
	if err != nil {
		log.Printf("[notify][%s][err] render: %v", name, err)
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	n.mu.Lock()
	err = n.dialer.DialAndSend(m)
	n.mu.Unlock()
	if err != nil {
		log.Printf("[notify][%s][err] to=%s err=%v", name, to, err)
		return
	}
	log.Printf("[notify][%s][ok] to=%s", name, to)
}

func (n *emailNotifier) AgencyCreated(ctx context.Context, agency *models.Agency, req *models.Request, proposer *models.User) {
	n.send("agency_created", n.staffEmail, map[string]any{
		"Agency": agency, "Request": req, "Proposer": proposer,
	})
}

func (n *emailNotifier) MultiSubmitted(ctx context.Context, owner *models.User, reqs []models.Request) {
	n.send("multi_submitted", owner.Email, map[string]any{
		"Owner": owner, "Requests": reqs,
	})
}

func (n *emailNotifier) ContactUser(ctx context.Context, owner *models.User, req *models.Request, sender *models.User, text string) {
	n.send("contact_user", owner.Email, map[string]any{
		"Owner": owner, "Request": req, "Sender": sender, "Text": text,
	})
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) AgencyCreated(context.Context, *models.Agency, *models.Request, *models.User) {}
func (NopNotifier) MultiSubmitted(context.Context, *models.User, []models.Request) {}
func (NopNotifier) ContactUser(context.Context, *models.User, *models.Request, *models.User, string) {}
