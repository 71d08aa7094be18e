package models

import "time"

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliveryGood    DeliveryStatus = "good"
	DeliveryError   DeliveryStatus = "error"
)

func (s DeliveryStatus) Valid() bool {
	return s == DeliveryPending || s == DeliveryGood || s == DeliveryError
}

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryGood || s == DeliveryError
}

// Channel a communication travels over.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelFax    Channel = "fax"
	ChannelMail   Channel = "mail"
	ChannelPortal Channel = "portal"
)

func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelEmail, ChannelFax, ChannelMail, ChannelPortal:
		return Channel(s), true
	}
	return "", false
}

// Communication is one item of correspondence. RequestID is nil while the
// communication is orphaned (inbound mail that matched no request).
type Communication struct {
	ID         int64          `db:"id" json:"id"`
	RequestID  *int64         `db:"request_id" json:"request_id,omitempty"`
	Direction  Direction      `db:"direction" json:"direction"`
	FromUserID *int64         `db:"from_user_id" json:"from_user_id,omitempty"`
	ToUserID   *int64         `db:"to_user_id" json:"to_user_id,omitempty"`
	Subject    string         `db:"subject" json:"subject"`
	Body       string         `db:"body" json:"body"`
	Status     DeliveryStatus `db:"status" json:"status"`
	Channel    Channel        `db:"channel" json:"channel"`
	Address    string         `db:"address" json:"address"`
	Receipt    string         `db:"receipt" json:"receipt,omitempty"`
	Thanks     bool           `db:"thanks" json:"thanks"`
	Appeal     bool           `db:"appeal" json:"appeal"`
	SentAt     time.Time      `db:"sent_at" json:"sent_at"`

	Files []File `db:"-" json:"files,omitempty"`
}

// File attached to a communication; Path is relative to the files root.
type File struct {
	ID              int64     `db:"id" json:"id"`
	CommunicationID int64     `db:"communication_id" json:"communication_id"`
	Name            string    `db:"name" json:"name"`
	Path            string    `db:"path" json:"path"`
	Size            int64     `db:"size" json:"size"`
	MIMEType        string    `db:"mime_type" json:"mime_type"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type Appeal struct {
	ID              int64     `db:"id" json:"id"`
	CommunicationID int64     `db:"communication_id" json:"communication_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Note is an internal remark on a request, never sent to the agency.
type Note struct {
	ID        int64     `db:"id" json:"id"`
	RequestID int64     `db:"request_id" json:"request_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Note      string    `db:"note" json:"note"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
