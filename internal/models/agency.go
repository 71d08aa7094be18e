package models

import "time"

type AgencyStatus string

const (
	AgencyPending  AgencyStatus = "pending"
	AgencyApproved AgencyStatus = "approved"
)

type Agency struct {
	ID             int64        `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	JurisdictionID int64        `db:"jurisdiction_id" json:"jurisdiction_id"`
	Status         AgencyStatus `db:"status" json:"status"`
	Email          string       `db:"email" json:"email,omitempty"`
	Fax            string       `db:"fax" json:"fax,omitempty"`
	Address        string       `db:"address" json:"address,omitempty"`
	PortalURL      string       `db:"portal_url" json:"portal_url,omitempty"`
	Stale          bool         `db:"stale" json:"stale"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// PreferredChannel picks where new correspondence goes: portal, email, fax,
// then postal mail.
func (a *Agency) PreferredChannel() (Channel, string) {
	switch {
	case a.PortalURL != "":
		return ChannelPortal, a.PortalURL
	case a.Email != "":
		return ChannelEmail, a.Email
	case a.Fax != "":
		return ChannelFax, a.Fax
	}
	return ChannelMail, a.Address
}

// AddressFor returns the agency's address on channel ch.
func (a *Agency) AddressFor(ch Channel) string {
	switch ch {
	case ChannelPortal:
		return a.PortalURL
	case ChannelEmail:
		return a.Email
	case ChannelFax:
		return a.Fax
	}
	return a.Address
}

type Jurisdiction struct {
	ID             int64  `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	Days           int    `db:"days" json:"days"`
	AppealsAllowed bool   `db:"appeals_allowed" json:"appeals_allowed"`
}
