// internal/models/task.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskKind selects the payload type and the kind-specific resolve hooks.
type TaskKind string

const (
	TaskStatusChange TaskKind = "status_change"
	TaskOrphan       TaskKind = "orphan"
	TaskNewAgency    TaskKind = "new_agency"
	TaskResponse     TaskKind = "response"
	TaskFlagged      TaskKind = "flagged"
	TaskSnailMail    TaskKind = "snail_mail"
	TaskCrowdfund    TaskKind = "crowdfund"
)

func ParseTaskKind(s string) (TaskKind, bool) {
	switch k := TaskKind(s); k {
	case TaskStatusChange, TaskOrphan, TaskNewAgency, TaskResponse,
		TaskFlagged, TaskSnailMail, TaskCrowdfund:
		return k, true
	}
	return "", false
}

// TaskPayload is the kind-specific part of a task.
type TaskPayload interface {
	Kind() TaskKind
}

type StatusChangePayload struct {
	Old RequestStatus `json:"old"`
	New RequestStatus `json:"new"`
}

type OrphanPayload struct {
	Address string `json:"address,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type NewAgencyPayload struct {
	ProposedName string `json:"proposed_name,omitempty"`
}

type ResponsePayload struct {
	PredictedStatus RequestStatus `json:"predicted_status,omitempty"`
}

type FlaggedPayload struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

// SnailMailPayload.Category: "n" new request, "f" follow up, "a" appeal, "u" update.
type SnailMailPayload struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	LetterPath  string `json:"letter_path,omitempty"`
}

type CrowdfundPayload struct {
	CrowdfundID int64 `json:"crowdfund_id"`
}

func (StatusChangePayload) Kind() TaskKind { return TaskStatusChange }
func (OrphanPayload) Kind() TaskKind       { return TaskOrphan }
func (NewAgencyPayload) Kind() TaskKind    { return TaskNewAgency }
func (ResponsePayload) Kind() TaskKind     { return TaskResponse }
func (FlaggedPayload) Kind() TaskKind      { return TaskFlagged }
func (SnailMailPayload) Kind() TaskKind    { return TaskSnailMail }
func (CrowdfundPayload) Kind() TaskKind    { return TaskCrowdfund }

// EncodePayload serialises p for the payload column.
func EncodePayload(p TaskPayload) (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePayload restores the payload stored for a task of the given kind.
func DecodePayload(kind TaskKind, raw string) (TaskPayload, error) {
	if raw == "" {
		raw = "{}"
	}
	var err error
	switch kind {
	case TaskStatusChange:
		var p StatusChangePayload
		err = json.Unmarshal([]byte(raw), &p)
		return p, err
	case TaskOrphan:
		var p OrphanPayload
		err = json.Unmarshal([]byte(raw), &p)
		return p, err
	case TaskNewAgency:
		var p NewAgencyPayload
		err = json.Unmarshal([]byte(raw), &p)
		return p, err
	case TaskResponse:
		var p ResponsePayload
		err = json.Unmarshal([]byte(raw), &p)
		return p, err
	case TaskFlagged:
		var p FlaggedPayload
		err = json.Unmarshal([]byte(raw), &p)
		return p, err
	case TaskSnailMail:
		var p SnailMailPayload
		err = json.Unmarshal([]byte(raw), &p)
		return p, err
	case TaskCrowdfund:
		var p CrowdfundPayload
		err = json.Unmarshal([]byte(raw), &p)
		return p, err
	}
	return nil, fmt.Errorf("unknown task kind %q", kind)
}

// Task represents a staff work item.
type Task struct {
	ID              int64      `db:"id" json:"id"`
	Kind            TaskKind   `db:"kind" json:"kind"`
	Resolved        bool       `db:"resolved" json:"resolved"`
	AssignedID      *int64     `db:"assigned_id" json:"assigned_id,omitempty"`
	ResolvedByID    *int64     `db:"resolved_by_id" json:"resolved_by_id,omitempty"`
	DateDone        *time.Time `db:"date_done" json:"date_done,omitempty"`
	CreatedByID     *int64     `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	RequestID       *int64     `db:"request_id" json:"request_id,omitempty"`
	CommunicationID *int64     `db:"communication_id" json:"communication_id,omitempty"`
	AgencyID        *int64     `db:"agency_id" json:"agency_id,omitempty"`
	RawPayload      string     `db:"payload" json:"-"`

	Payload TaskPayload `db:"-" json:"payload,omitempty"`
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	Kind       *TaskKind
	Resolved   *bool
	AssignedID *int64
	RequestID  *int64
	Limit      int
}
