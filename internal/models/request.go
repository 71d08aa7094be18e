package models

import "time"

// RequestStatus is the lifecycle state of a records request.
type RequestStatus string

const (
	StatusStarted   RequestStatus = "started"
	StatusSubmitted RequestStatus = "submitted"
	StatusAck       RequestStatus = "ack"
	StatusProcessed RequestStatus = "processed"
	StatusFix       RequestStatus = "fix"
	StatusPayment   RequestStatus = "payment"
	StatusAppealing RequestStatus = "appealing"
	StatusPartial   RequestStatus = "partial"
	StatusDone      RequestStatus = "done"
	StatusRejected  RequestStatus = "rejected"
	StatusNoDocs    RequestStatus = "no_docs"
	StatusAbandoned RequestStatus = "abandoned"
)

// AllStatuses in lifecycle order.
var AllStatuses = []RequestStatus{
	StatusStarted, StatusSubmitted, StatusAck, StatusProcessed, StatusFix,
	StatusPayment, StatusAppealing, StatusPartial, StatusDone, StatusRejected,
	StatusNoDocs, StatusAbandoned,
}

var statusLabels = map[RequestStatus]string{
	StatusStarted:   "Draft",
	StatusSubmitted: "Processing",
	StatusAck:       "Awaiting Acknowledgement",
	StatusProcessed: "Awaiting Response",
	StatusFix:       "Fix Required",
	StatusPayment:   "Payment Required",
	StatusAppealing: "Awaiting Appeal",
	StatusPartial:   "Partially Completed",
	StatusDone:      "Completed",
	StatusRejected:  "Rejected",
	StatusNoDocs:    "No Responsive Documents",
	StatusAbandoned: "Withdrawn",
}

// AgencyStatuses are the statuses an agency may pick when replying.
var AgencyStatuses = []RequestStatus{
	StatusProcessed, StatusFix, StatusPayment, StatusRejected,
	StatusNoDocs, StatusDone, StatusPartial,
}

func ParseStatus(s string) (RequestStatus, bool) {
	st := RequestStatus(s)
	_, ok := statusLabels[st]
	return st, ok
}

func (s RequestStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusDone, StatusRejected, StatusNoDocs, StatusAbandoned:
		return true
	}
	return false
}

// IsAdministrative reports statuses that only staff may set by hand.
func (s RequestStatus) IsAdministrative() bool {
	return s == StatusStarted || s == StatusSubmitted
}

func (s RequestStatus) IsAgencyStatus() bool {
	for _, a := range AgencyStatuses {
		if a == s {
			return true
		}
	}
	return false
}

type Request struct {
	ID             int64         `db:"id" json:"id"`
	Title          string        `db:"title" json:"title"`
	Body           string        `db:"body" json:"body,omitempty"`
	Status         RequestStatus `db:"status" json:"status"`
	UserID         int64         `db:"user_id" json:"user_id"`
	AgencyID       int64         `db:"agency_id" json:"agency_id"`
	JurisdictionID int64         `db:"jurisdiction_id" json:"jurisdiction_id"`
	ParentID       *int64        `db:"parent_id" json:"parent_id,omitempty"`

	DateCreated   time.Time  `db:"date_created" json:"date_created"`
	DateSubmitted *time.Time `db:"date_submitted" json:"date_submitted,omitempty"`
	DateDue       *time.Time `db:"date_due" json:"date_due,omitempty"`
	DateDone      *time.Time `db:"date_done" json:"date_done,omitempty"`
	DateEstimate  *time.Time `db:"date_estimate" json:"date_estimate,omitempty"`

	Embargo          bool       `db:"embargo" json:"embargo"`
	PermanentEmbargo bool       `db:"permanent_embargo" json:"permanent_embargo"`
	DateEmbargo      *time.Time `db:"date_embargo" json:"date_embargo,omitempty"`

	TrackingID string `db:"tracking_id" json:"tracking_id"`
	PriceCents int64  `db:"price_cents" json:"price_cents"`
	NoIndex    bool   `db:"noindex" json:"noindex"`
	AccessKey  string `db:"access_key" json:"-"`

	EditorIDs []int64 `db:"-" json:"editor_ids,omitempty"`
	ViewerIDs []int64 `db:"-" json:"viewer_ids,omitempty"`
}

// PastDue is display-only; it never changes status.
func (r *Request) PastDue(now time.Time) bool {
	if r.DateDue == nil || r.Status.IsTerminal() || r.Status == StatusStarted {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return r.DateDue.Before(today)
}

// Embargoed reports whether the request is hidden from the public at now.
func (r *Request) Embargoed(now time.Time) bool {
	if !r.Embargo {
		return false
	}
	if r.PermanentEmbargo || r.DateEmbargo == nil {
		return true
	}
	return now.Before(*r.DateEmbargo)
}

func (r *Request) HasEditor(userID int64) bool { return containsID(r.EditorIDs, userID) }
func (r *Request) HasViewer(userID int64) bool { return containsID(r.ViewerIDs, userID) }

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// RequestFilter for list queries.
type RequestFilter struct {
	UserID   *int64
	AgencyID *int64
	Status   *RequestStatus
	// ExcludeDrafts hides requests still in started.
	ExcludeDrafts bool
	Limit         int
	Offset        int
}

// Access levels for granted users.
const (
	AccessEdit = "edit"
	AccessView = "view"
)
