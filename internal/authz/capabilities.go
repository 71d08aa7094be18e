package authz

import (
	"crypto/subtle"
	"time"

	"recordsdesk/internal/models"
)

type Capability string

const (
	CapView        Capability = "view"
	CapChange      Capability = "change"
	CapSubmit      Capability = "submit"
	CapEmbargo     Capability = "embargo"
	CapEmbargoPerm Capability = "embargo_perm"
	CapFlag        Capability = "flag"
	CapFollowUp    Capability = "followup"
	CapThank       Capability = "thank"
	CapAppeal      Capability = "appeal"
	CapAgencyReply Capability = "agency_reply"
)

// AllCapabilities lists every capability the matrix knows about.
var AllCapabilities = []Capability{
	CapView, CapChange, CapSubmit, CapEmbargo, CapEmbargoPerm, CapFlag,
	CapFollowUp, CapThank, CapAppeal, CapAgencyReply,
}

// Mutating reports whether c changes the request.
func (c Capability) Mutating() bool { return c != CapView }

// RequestRole is the actor's relationship to one request.
type RequestRole int

const (
	RoleNone RequestRole = iota
	RoleViewer
	RoleAgencyAccount
	RoleEditor
	RoleOwner
	RoleStaffMember
)

func (r RequestRole) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleAgencyAccount:
		return "agency"
	case RoleEditor:
		return "editor"
	case RoleOwner:
		return "owner"
	case RoleStaffMember:
		return "staff"
	}
	return "none"
}

// Target is the request a capability is checked against.
type Target struct {
	Request      *models.Request
	Jurisdiction *models.Jurisdiction
	Now          time.Time
}

// RoleFor resolves the strongest relationship a has to req.
func RoleFor(a Actor, req *models.Request) RequestRole {
	switch {
	case a.IsStaff():
		return RoleStaffMember
	case a.Anonymous():
		return RoleNone
	case req.UserID == a.UserID:
		return RoleOwner
	case req.HasEditor(a.UserID):
		return RoleEditor
	case req.HasViewer(a.UserID):
		return RoleViewer
	case IsAgency(a.RoleID) && a.AgencyID != 0 && a.AgencyID == req.AgencyID:
		return RoleAgencyAccount
	}
	return RoleNone
}

// Can reports whether a holds capability c on t.Request. State guards
// (which status an action may start from) are checked by the lifecycle.
func Can(a Actor, t Target, c Capability) bool {
	if t.Request == nil {
		return false
	}
	role := RoleFor(a, t.Request)
	if role == RoleStaffMember {
		return true
	}
	if c == CapView && publicView(a, t) {
		return true
	}

	switch role {
	case RoleOwner:
		switch c {
		case CapView, CapChange, CapSubmit, CapFlag, CapFollowUp, CapThank:
			return true
		case CapEmbargo:
			return a.CanEmbargo
		case CapEmbargoPerm:
			return a.CanEmbargoPerm
		case CapAppeal:
			return appealable(t)
		}
	case RoleEditor:
		switch c {
		case CapView, CapChange, CapFlag, CapFollowUp, CapThank:
			return true
		case CapEmbargo, CapEmbargoPerm:
			return a.CanEmbargoPerm
		case CapAppeal:
			return appealable(t)
		}
	case RoleViewer:
		return c == CapView
	case RoleAgencyAccount:
		if t.Request.Status == models.StatusStarted {
			return false
		}
		return c == CapView || c == CapAgencyReply
	}
	return false
}

// publicView covers actors with no relationship to the request. Drafts are
// never public, not even with an access key.
func publicView(a Actor, t Target) bool {
	if t.Request.Status == models.StatusStarted {
		return false
	}
	now := t.Now
	if now.IsZero() {
		now = time.Now()
	}
	if !t.Request.Embargoed(now) {
		return true
	}
	return KeyMatches(t.Request.AccessKey, a.AccessKey)
}

// KeyMatches compares a presented access key to the stored one.
func KeyMatches(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

func appealable(t Target) bool {
	st := t.Request.Status
	if !st.IsTerminal() && st != models.StatusFix {
		return false
	}
	return t.Jurisdiction != nil && t.Jurisdiction.AppealsAllowed
}
