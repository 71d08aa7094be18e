package models

import "time"

type Crowdfund struct {
	ID                  int64      `db:"id" json:"id"`
	RequestID           int64      `db:"request_id" json:"request_id"`
	Name                string     `db:"name" json:"name"`
	AmountRequiredCents int64      `db:"amount_required_cents" json:"amount_required_cents"`
	AmountRaisedCents   int64      `db:"amount_raised_cents" json:"amount_raised_cents"`
	DateDue             *time.Time `db:"date_due" json:"date_due,omitempty"`
	Closed              bool       `db:"closed" json:"closed"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

func (c *Crowdfund) Funded() bool {
	return c.AmountRaisedCents >= c.AmountRequiredCents
}

type CrowdfundPayment struct {
	ID          int64     `db:"id" json:"id"`
	CrowdfundID int64     `db:"crowdfund_id" json:"crowdfund_id"`
	UserID      *int64    `db:"user_id" json:"user_id,omitempty"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Show        bool      `db:"visible" json:"show"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
