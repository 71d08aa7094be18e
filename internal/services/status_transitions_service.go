package services

import (
	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
)

// Action is a lifecycle transition a caller can request.
type Action string

const (
	ActionSubmit       Action = "submit"
	ActionChangeStatus Action = "change_status"
	ActionFollowUp     Action = "follow_up"
	ActionThank        Action = "thank"
	ActionAppeal       Action = "appeal"
	ActionAgencyReply  Action = "agency_reply"
	ActionResend       Action = "resend"
)

// Transition: From lists the statuses the action may start in; To is the
// fixed next status, empty when the caller supplies it or status is kept.
type Transition struct {
	From map[models.RequestStatus]bool
	To   models.RequestStatus
	Cap  authz.Capability
}

var RequestTransitions = map[Action]Transition{
	ActionSubmit: {
		From: statusSet(models.StatusStarted),
		To:   models.StatusSubmitted,
		Cap:  authz.CapSubmit,
	},
	ActionChangeStatus: {
		From: statusesExcept(models.StatusStarted, models.StatusSubmitted),
		Cap:  authz.CapChange,
	},
	ActionFollowUp: {
		From: statusesExcept(models.StatusStarted),
		Cap:  authz.CapFollowUp,
	},
	ActionThank: {
		From: statusSet(models.StatusDone, models.StatusRejected, models.StatusNoDocs,
			models.StatusAbandoned, models.StatusPartial),
		Cap: authz.CapThank,
	},
	ActionAppeal: {
		From: statusSet(models.StatusDone, models.StatusRejected, models.StatusNoDocs,
			models.StatusAbandoned, models.StatusFix),
		To:  models.StatusAppealing,
		Cap: authz.CapAppeal,
	},
	ActionAgencyReply: {
		From: statusSet(models.StatusSubmitted, models.StatusAck, models.StatusProcessed,
			models.StatusFix, models.StatusPayment, models.StatusAppealing, models.StatusPartial),
		Cap: authz.CapAgencyReply,
	},
	ActionResend: {
		From: statusesExcept(models.StatusStarted),
	},
}

func statusSet(ss ...models.RequestStatus) map[models.RequestStatus]bool {
	m := make(map[models.RequestStatus]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func statusesExcept(ss ...models.RequestStatus) map[models.RequestStatus]bool {
	skip := statusSet(ss...)
	m := map[models.RequestStatus]bool{}
	for _, s := range models.AllStatuses {
		if !skip[s] {
			m[s] = true
		}
	}
	return m
}

func canTransition(action Action, current models.RequestStatus) bool {
	t, ok := RequestTransitions[action]
	if !ok {
		return false
	}
	return t.From[current]
}

// nextStatus resolves where action leads from current; requested is used
// when the action takes its target from the caller.
func nextStatus(action Action, current, requested models.RequestStatus) models.RequestStatus {
	t := RequestTransitions[action]
	if t.To != "" {
		return t.To
	}
	if requested != "" {
		return requested
	}
	return current
}
