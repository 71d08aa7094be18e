package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"

	"recordsdesk/internal/models"
)

var ErrUnsupportedChannel = errors.New("unsupported delivery channel")

type Attachment struct {
	Name string
	Path string // absolute path on disk
}

// Outbound is one communication handed to the gateway.
type Outbound struct {
	CommunicationID int64
	RequestID       int64
	Channel         models.Channel
	Address         string
	RecipientName   string
	Subject         string
	Body            string
	ReplyTo         string
	Attachments     []Attachment
}

// Receipt identifies a send so that later status events can be matched.
// Artifact is a channel-specific by-product (the letter path for postal mail).
type Receipt struct {
	ID       string
	Status   models.DeliveryStatus
	Artifact string
}

// Gateway sends a communication over its channel.
type Gateway interface {
	Send(ctx context.Context, out Outbound) (Receipt, error)
}

// Router dispatches by channel to the configured sender.
type Router struct {
	senders map[models.Channel]Gateway
}

func NewRouter() *Router {
	return &Router{senders: map[models.Channel]Gateway{}}
}

// Handle registers g for ch, replacing any previous sender.
func (r *Router) Handle(ch models.Channel, g Gateway) *Router {
	r.senders[ch] = g
	return r
}

func (r *Router) Send(ctx context.Context, out Outbound) (Receipt, error) {
	g, ok := r.senders[out.Channel]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnsupportedChannel, out.Channel)
	}
	if out.Address == "" {
		return Receipt{}, fmt.Errorf("no %s address for communication %d", out.Channel, out.CommunicationID)
	}
	rc, err := g.Send(ctx, out)
	if err != nil {
		log.Printf("[delivery][%s][err] comm=%d to=%s err=%v", out.Channel, out.CommunicationID, out.Address, err)
		return Receipt{}, err
	}
	log.Printf("[delivery][%s][ok] comm=%d to=%s receipt=%s status=%s", out.Channel, out.CommunicationID, out.Address, rc.ID, rc.Status)
	return rc, nil
}

// StatusEvent is an asynchronous delivery report. Either CommunicationID or
// Receipt identifies the communication.
type StatusEvent struct {
	CommunicationID int64                 `json:"communication_id"`
	Receipt         string                `json:"receipt"`
	Status          models.DeliveryStatus `json:"status"`
	Detail          string                `json:"detail,omitempty"`
}

func (e StatusEvent) Validate() error {
	if e.CommunicationID == 0 && e.Receipt == "" {
		return errors.New("communication_id or receipt is required")
	}
	if !e.Status.IsTerminal() {
		return fmt.Errorf("status must be %q or %q", models.DeliveryGood, models.DeliveryError)
	}
	return nil
}
