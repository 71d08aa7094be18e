package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"recordsdesk/internal/models"
)

// Dialer is the part of *gomail.Dialer the sender needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers over SMTP. The receipt doubles as the Message-ID so
// bounces and provider webhooks can be matched back.
type EmailSender struct {
	dialer Dialer
	from   string
	domain string
}

func NewEmailSender(d Dialer, from, domain string) *EmailSender {
	if domain == "" {
		domain = "localhost"
	}
	return &EmailSender{dialer: d, from: from, domain: domain}
}

func NewSMTPEmailSender(host string, port int, user, password, from, domain string) *EmailSender {
	return NewEmailSender(gomail.NewDialer(host, port, user, password), from, domain)
}

func (s *EmailSender) Send(ctx context.Context, out Outbound) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	id := uuid.NewString()

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", out.Address)
	m.SetHeader("Subject", out.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, s.domain))
	if out.ReplyTo != "" {
		m.SetHeader("Reply-To", out.ReplyTo)
	}
	m.SetBody("text/plain", out.Body)
	for _, a := range out.Attachments {
		m.Attach(a.Path, gomail.Rename(a.Name))
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return Receipt{}, fmt.Errorf("send email: %w", err)
	}
	return Receipt{ID: id, Status: models.DeliveryPending}, nil
}

// PortalSender records a communication for an agency that works through its
// service account; the agency reads it in place, so delivery is immediate.
type PortalSender struct{}

func (PortalSender) Send(ctx context.Context, out Outbound) (Receipt, error) {
	return Receipt{ID: "portal-" + uuid.NewString(), Status: models.DeliveryGood}, nil
}
