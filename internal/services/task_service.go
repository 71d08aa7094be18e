package services

import (
	"context"
	"fmt"
	"log"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

// Task actions accepted by Resolve.
const (
	TaskActionResolve   = "resolve"
	TaskActionApprove   = "approve"
	TaskActionReject    = "reject"
	TaskActionMove      = "move"
	TaskActionSetStatus = "set_status"
)

// ResolveInput carries the kind-specific choice made while resolving.
type ResolveInput struct {
	Action              string               `json:"action"`
	RequestIDs          []int64              `json:"request_ids"`
	ReplacementAgencyID int64                `json:"replacement_agency_id"`
	Status              models.RequestStatus `json:"status"`
	PriceCents          *int64               `json:"price_cents"`
}

// TaskService is the staff work queue. Every kind shares the same resolve
// and assign contract; kind hooks run inside the resolving transaction.
type TaskService interface {
	GetByID(ctx context.Context, actor authz.Actor, id int64) (*models.Task, error)
	GetAll(ctx context.Context, actor authz.Actor, filter models.TaskFilter) ([]models.Task, error)
	Resolve(ctx context.Context, actor authz.Actor, id int64, in ResolveInput) (*models.Task, error)
	Assign(ctx context.Context, actor authz.Actor, id int64, assigneeID *int64) (*models.Task, error)
}

type taskService struct {
	*core
}

func NewTaskService(d Deps) TaskService {
	return &taskService{core: newCore(d)}
}

func (s *taskService) GetByID(ctx context.Context, actor authz.Actor, id int64) (*models.Task, error) {
	if err := s.requireStaff(actor); err != nil {
		return nil, err
	}
	t, err := s.Store.Repos().Tasks.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

func (s *taskService) GetAll(ctx context.Context, actor authz.Actor, filter models.TaskFilter) ([]models.Task, error) {
	if err := s.requireStaff(actor); err != nil {
		return nil, err
	}
	return s.Store.Repos().Tasks.List(ctx, filter)
}

func (s *taskService) Resolve(ctx context.Context, actor authz.Actor, id int64, in ResolveInput) (*models.Task, error) {
	if err := s.requireStaff(actor); err != nil {
		return nil, err
	}
	var out *models.Task
	var queued []models.Task
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		task, err := r.Tasks.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "task", id)
		}
		if task.Resolved {
			return fmt.Errorf("%w: task %d", ErrTaskResolved, id)
		}
		// Stamped first so hooks that sweep open tasks skip this one.
		applied, err := r.Tasks.Resolve(ctx, id, actor.UserID, s.now())
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: task %d", ErrTaskResolved, id)
		}

		switch task.Kind {
		case models.TaskNewAgency:
			queued, err = s.resolveNewAgency(ctx, r, actor, task, in)
		case models.TaskOrphan:
			queued, err = s.resolveOrphan(ctx, r, task, in)
		case models.TaskSnailMail, models.TaskResponse:
			queued, err = s.resolveWithStatus(ctx, r, actor, task, in)
		default:
			if in.Action != "" && in.Action != TaskActionResolve {
				err = invalid("%s tasks accept only %q", task.Kind, TaskActionResolve)
			}
		}
		if err != nil {
			return err
		}
		out, err = r.Tasks.GetByID(ctx, id)
		return err
	})
	if err != nil {
		log.Printf("[task][resolve][err] id=%d action=%s err=%v", id, in.Action, err)
		return nil, err
	}
	s.announce(queued)
	log.Printf("[task][resolve][ok] id=%d kind=%s action=%s by=%d", id, out.Kind, in.Action, actor.UserID)
	return out, nil
}

// resolveNewAgency approves a proposed agency and releases correspondence
// held for it, or rejects it in favour of an existing agency.
func (s *taskService) resolveNewAgency(ctx context.Context, r *repositories.Repos, actor authz.Actor, task *models.Task, in ResolveInput) ([]models.Task, error) {
	if task.AgencyID == nil {
		return nil, invalid("task %d has no agency", task.ID)
	}
	agencyID := *task.AgencyID
	agency, err := r.Agencies.GetByID(ctx, agencyID)
	if err != nil {
		return nil, notFound(err, "agency", agencyID)
	}

	switch in.Action {
	case TaskActionApprove:
		if err := r.Agencies.SetStatus(ctx, agencyID, models.AgencyApproved); err != nil {
			return nil, err
		}
		agency.Status = models.AgencyApproved
		log.Printf("[agency][approve][ok] id=%d by=%d", agencyID, actor.UserID)
		return s.releaseHeld(ctx, r, agency, agencyID)

	case TaskActionReject:
		if in.ReplacementAgencyID == 0 || in.ReplacementAgencyID == agencyID {
			return nil, invalid("a different replacement agency is required")
		}
		repl, err := r.Agencies.GetByID(ctx, in.ReplacementAgencyID)
		if err != nil {
			return nil, notFound(err, "agency", in.ReplacementAgencyID)
		}
		n, err := r.Requests.ReassignAgency(ctx, agencyID, repl.ID)
		if err != nil {
			return nil, err
		}
		if err := r.Agencies.Delete(ctx, agencyID); err != nil {
			return nil, err
		}
		log.Printf("[agency][reject][ok] id=%d replacement=%d requests=%d by=%d", agencyID, repl.ID, n, actor.UserID)
		if repl.Status != models.AgencyApproved {
			return nil, nil
		}
		return s.releaseHeld(ctx, r, repl, repl.ID)
	}
	return nil, invalid("new agency tasks accept %q or %q", TaskActionApprove, TaskActionReject)
}

// releaseHeld dispatches every communication held for agencyID, addressing
// it to agency's preferred channel when it has no address yet.
func (s *taskService) releaseHeld(ctx context.Context, r *repositories.Repos, agency *models.Agency, agencyID int64) ([]models.Task, error) {
	held, err := r.Communications.ListHeldForAgency(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	var queued []models.Task
	for i := range held {
		comm := &held[i]
		req, err := r.Requests.GetForUpdate(ctx, *comm.RequestID)
		if err != nil {
			return nil, notFound(err, "request", *comm.RequestID)
		}
		if comm.Address == "" || comm.Address != agency.AddressFor(comm.Channel) {
			comm.Channel, comm.Address = agency.PreferredChannel()
		}
		category := mailNew
		if comm.Appeal {
			category = mailAppeal
		}
		tasks, err := s.dispatch(ctx, r, req, comm, category)
		if err != nil {
			return nil, err
		}
		queued = append(queued, tasks...)
	}
	log.Printf("[agency][release][ok] id=%d communications=%d", agencyID, len(held))
	return queued, nil
}

func (s *taskService) resolveOrphan(ctx context.Context, r *repositories.Repos, task *models.Task, in ResolveInput) ([]models.Task, error) {
	switch in.Action {
	case TaskActionReject, TaskActionResolve:
		return nil, nil
	case TaskActionMove:
		if task.CommunicationID == nil {
			return nil, invalid("task %d has no communication", task.ID)
		}
		comm, err := r.Communications.GetForUpdate(ctx, *task.CommunicationID)
		if err != nil {
			return nil, notFound(err, "communication", *task.CommunicationID)
		}
		if _, err := s.moveComm(ctx, r, comm, in.RequestIDs); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, invalid("orphan tasks accept %q or %q", TaskActionMove, TaskActionReject)
}

// resolveWithStatus closes snail-mail and response tasks. A snail-mail
// task marks its letter as sent; either kind may also set the request
// status through the change-status path.
func (s *taskService) resolveWithStatus(ctx context.Context, r *repositories.Repos, actor authz.Actor, task *models.Task, in ResolveInput) ([]models.Task, error) {
	switch in.Action {
	case "", TaskActionResolve, TaskActionSetStatus:
	default:
		return nil, invalid("%s tasks accept %q", task.Kind, TaskActionSetStatus)
	}
	if task.Kind == models.TaskSnailMail && task.CommunicationID != nil {
		if err := r.Communications.UpdateStatus(ctx, *task.CommunicationID, models.DeliveryGood); err != nil {
			return nil, notFound(err, "communication", *task.CommunicationID)
		}
	}
	if in.Action != TaskActionSetStatus {
		return nil, nil
	}

	next, ok := models.ParseStatus(string(in.Status))
	if !ok {
		return nil, invalid("unknown status %q", in.Status)
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return nil, invalid("price must not be negative")
	}
	reqID, err := s.taskRequestID(ctx, r, task)
	if err != nil {
		return nil, err
	}
	req, _, err := s.target(ctx, r, reqID, true)
	if err != nil {
		return nil, err
	}
	if !canTransition(ActionChangeStatus, req.Status) {
		return nil, fmt.Errorf("%w: request %d is %s", ErrNoop, req.ID, req.Status)
	}
	if next == models.StatusPayment && in.PriceCents != nil {
		req.PriceCents = *in.PriceCents
	}
	sc, err := s.applyStatusChange(ctx, r, actor, req, next)
	if err != nil {
		return nil, err
	}
	return []models.Task{*sc}, nil
}

func (s *taskService) taskRequestID(ctx context.Context, r *repositories.Repos, task *models.Task) (int64, error) {
	if task.RequestID != nil {
		return *task.RequestID, nil
	}
	if task.CommunicationID != nil {
		comm, err := r.Communications.GetByID(ctx, *task.CommunicationID)
		if err != nil {
			return 0, notFound(err, "communication", *task.CommunicationID)
		}
		if comm.RequestID != nil {
			return *comm.RequestID, nil
		}
	}
	return 0, invalid("task %d is not linked to a request", task.ID)
}

func (s *taskService) Assign(ctx context.Context, actor authz.Actor, id int64, assigneeID *int64) (*models.Task, error) {
	if err := s.requireStaff(actor); err != nil {
		return nil, err
	}
	var out *models.Task
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		if _, err := r.Tasks.GetForUpdate(ctx, id); err != nil {
			return notFound(err, "task", id)
		}
		if assigneeID != nil {
			u, err := r.Users.GetByID(ctx, *assigneeID)
			if err != nil {
				return notFound(err, "user", *assigneeID)
			}
			if !authz.IsStaff(u.RoleID) {
				return invalid("tasks can only be assigned to staff")
			}
		}
		applied, err := r.Tasks.Assign(ctx, id, assigneeID)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: task %d", ErrTaskResolved, id)
		}
		out, err = r.Tasks.GetByID(ctx, id)
		return err
	})
	if err != nil {
		log.Printf("[task][assign][err] id=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[task][assign][ok] id=%d by=%d", id, actor.UserID)
	return out, nil
}
