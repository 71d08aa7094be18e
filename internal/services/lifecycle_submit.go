package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

// Submit sends a draft to its agency. Only the owner submits, and only while
// the request is a draft; a repeated submit is ErrNoop with nothing spent.
func (s *lifecycleService) Submit(ctx context.Context, actor authz.Actor, id int64) (*models.Request, error) {
	var out *models.Request
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if req.UserID != actor.UserID {
			return nil, fmt.Errorf("%w: only the owner may submit request %d", ErrForbidden, id)
		}
		if err := s.requireCap(actor, t, RequestTransitions[ActionSubmit].Cap); err != nil {
			return nil, err
		}
		if !canTransition(ActionSubmit, req.Status) {
			return nil, fmt.Errorf("%w: request %d already %s", ErrNoop, id, req.Status)
		}

		if err := s.quota.DecrementAllotment(ctx, r, actor.UserID); err != nil {
			return nil, err
		}

		now := s.now()
		days := t.Jurisdiction.Days
		if days <= 0 {
			days = s.Lifecycle.ResponseDays
		}
		due := now.AddDate(0, 0, days)
		req.Status = nextStatus(ActionSubmit, req.Status, "")
		req.DateSubmitted = &now
		req.DateDue = &due
		if err := r.Requests.Update(ctx, req); err != nil {
			return nil, err
		}

		comm, err := s.outbound(ctx, r, actor, req, models.Communication{Subject: req.Title, Body: req.Body})
		if err != nil {
			return nil, err
		}
		tasks, err := s.dispatch(ctx, r, req, comm, mailNew)
		if err != nil {
			return nil, err
		}
		out = req
		return tasks, nil
	})
	if err != nil {
		log.Printf("[request][submit][err] id=%d user=%d err=%v", id, actor.UserID, err)
		return nil, err
	}
	log.Printf("[request][submit][ok] id=%d user=%d due=%s", id, actor.UserID, out.DateDue.Format("2006-01-02"))
	return out, nil
}

// SubmitMulti submits each draft in its own transaction. Drafts that were
// already submitted are skipped; the first other failure stops the batch.
func (s *lifecycleService) SubmitMulti(ctx context.Context, actor authz.Actor, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, invalid("no requests selected")
	}
	var done []int64
	var firstErr error
	for _, id := range ids {
		if _, err := s.Submit(ctx, actor, id); err != nil {
			if isNoop(err) {
				continue
			}
			firstErr = err
			break
		}
		done = append(done, id)
	}
	if len(done) > 0 {
		r := s.Store.Repos()
		owner, err := r.Users.GetByID(ctx, actor.UserID)
		if err == nil {
			var reqs []models.Request
			if reqs, err = r.Requests.ListByIDs(ctx, done); err == nil {
				s.Notifier.MultiSubmitted(ctx, owner, reqs)
			}
		}
		if err != nil {
			log.Printf("[request][submit_multi][warn] summary skipped: %v", err)
		}
	}
	log.Printf("[request][submit_multi] user=%d asked=%d submitted=%d", actor.UserID, len(ids), len(done))
	return done, firstErr
}

func (s *lifecycleService) ChangeStatus(ctx context.Context, actor authz.Actor, id int64, in ChangeStatusInput) (*models.Request, error) {
	next, ok := models.ParseStatus(string(in.Status))
	if !ok {
		return nil, invalid("unknown status %q", in.Status)
	}
	if next.IsAdministrative() && !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff may set %s", ErrForbidden, next)
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return nil, invalid("price must not be negative")
	}

	var out *models.Request
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return nil, err
		}
		if !canTransition(ActionChangeStatus, req.Status) {
			return nil, fmt.Errorf("%w: request %d is %s", ErrNoop, id, req.Status)
		}
		if next == models.StatusPayment && in.PriceCents != nil {
			req.PriceCents = *in.PriceCents
		}
		task, err := s.applyStatusChange(ctx, r, actor, req, nextStatus(ActionChangeStatus, req.Status, next))
		if err != nil {
			return nil, err
		}
		out = req
		return []models.Task{*task}, nil
	})
	if err != nil {
		log.Printf("[request][change_status][err] id=%d to=%s err=%v", id, in.Status, err)
		return nil, err
	}
	return out, nil
}

// AgencyReply records an agency's answer posted through the portal. Every
// reply is queued for staff review regardless of who sent it.
func (s *lifecycleService) AgencyReply(ctx context.Context, actor authz.Actor, id int64, in AgencyReplyInput) (*models.Communication, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return nil, invalid("reply text is required")
	}
	if !in.Status.IsAgencyStatus() {
		return nil, invalid("status %q cannot be set by an agency", in.Status)
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return nil, invalid("price must not be negative")
	}

	var comm *models.Communication
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapAgencyReply); err != nil {
			return nil, err
		}
		if !canTransition(ActionAgencyReply, req.Status) {
			return nil, fmt.Errorf("%w: request %d is %s", ErrNoop, id, req.Status)
		}

		uid := actor.UserID
		owner := req.UserID
		comm = &models.Communication{
			RequestID:  &req.ID,
			Direction:  models.DirectionInbound,
			FromUserID: &uid,
			ToUserID:   &owner,
			Subject:    "RE: " + req.Title,
			Body:       in.Text,
			Status:     models.DeliveryGood,
			Channel:    models.ChannelPortal,
		}
		if err := r.Communications.Create(ctx, comm); err != nil {
			return nil, err
		}

		s.setStatus(req, nextStatus(ActionAgencyReply, req.Status, in.Status))
		if req.Status == models.StatusPayment && in.PriceCents != nil {
			req.PriceCents = *in.PriceCents
		}
		if in.TrackingID != "" {
			req.TrackingID = in.TrackingID
		}
		if in.DateEstimate != nil {
			est := in.DateEstimate.UTC()
			req.DateEstimate = &est
		}
		if err := r.Requests.Update(ctx, req); err != nil {
			return nil, err
		}
		if err := r.Agencies.SetStale(ctx, req.AgencyID, false); err != nil {
			return nil, err
		}

		task := &models.Task{
			Kind:            models.TaskFlagged,
			RequestID:       &req.ID,
			CommunicationID: &comm.ID,
			AgencyID:        &req.AgencyID,
			CreatedByID:     &uid,
			Payload:         models.FlaggedPayload{Text: in.Text, Category: "agency_reply"},
		}
		if err := r.Tasks.Create(ctx, task); err != nil {
			return nil, err
		}
		return []models.Task{*task}, nil
	})
	if err != nil {
		log.Printf("[request][agency_reply][err] id=%d agency=%d err=%v", id, actor.AgencyID, err)
		return nil, err
	}
	log.Printf("[request][agency_reply][ok] id=%d comm=%d status=%s", id, comm.ID, in.Status)
	return comm, nil
}

// outbound records draft as a pending outbound communication from actor to
// the request's agency. An empty channel picks the agency's preferred one; an
// empty address falls back to the agency's address on that channel.
func (s *lifecycleService) outbound(ctx context.Context, r *repositories.Repos, actor authz.Actor, req *models.Request, draft models.Communication) (*models.Communication, error) {
	agency, err := r.Agencies.GetByID(ctx, req.AgencyID)
	if err != nil {
		return nil, notFound(err, "agency", req.AgencyID)
	}
	if draft.Channel == "" {
		draft.Channel, draft.Address = agency.PreferredChannel()
	} else if draft.Address == "" {
		draft.Address = agency.AddressFor(draft.Channel)
	}
	if draft.Address == "" && agency.Status == models.AgencyApproved {
		return nil, invalid("agency %d has no %s address", agency.ID, draft.Channel)
	}
	uid := actor.UserID
	comm := draft
	comm.RequestID = &req.ID
	comm.Direction = models.DirectionOutbound
	comm.FromUserID = &uid
	comm.Status = models.DeliveryPending
	if err := r.Communications.Create(ctx, &comm); err != nil {
		return nil, err
	}
	return &comm, nil
}
