package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
	"recordsdesk/internal/utils"
)

func (s *lifecycleService) Flag(ctx context.Context, actor authz.Actor, id int64, text string) (*models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("flag text is required")
	}
	var task *models.Task
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapFlag); err != nil {
			return nil, err
		}
		uid := actor.UserID
		task = &models.Task{
			Kind:        models.TaskFlagged,
			RequestID:   &req.ID,
			AgencyID:    &req.AgencyID,
			CreatedByID: &uid,
			Payload:     models.FlaggedPayload{Text: text, Category: "user"},
		}
		if err := r.Tasks.Create(ctx, task); err != nil {
			return nil, err
		}
		return []models.Task{*task}, nil
	})
	if err != nil {
		log.Printf("[request][flag][err] id=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[request][flag][ok] id=%d task=%d", id, task.ID)
	return task, nil
}

// AddNote records an internal remark on the request.
func (s *lifecycleService) AddNote(ctx context.Context, actor authz.Actor, id int64, text string) (*models.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("note text is required")
	}
	var note *models.Note
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return nil, err
		}
		note = &models.Note{RequestID: req.ID, UserID: actor.UserID, Note: text, CreatedAt: s.now()}
		return nil, r.Notes.Create(ctx, note)
	})
	if err != nil {
		log.Printf("[request][note][err] id=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[request][note][ok] id=%d note=%d by=%d", id, note.ID, actor.UserID)
	return note, nil
}

// UpdatePendingAgency corrects the contact details of an agency proposed
// with the request while staff have not approved it yet. Held mail picks up
// the new address when the agency is released.
func (s *lifecycleService) UpdatePendingAgency(ctx context.Context, actor authz.Actor, id int64, in NewAgencyInput) (*models.Agency, error) {
	var agency *models.Agency
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return nil, err
		}
		var err error
		if agency, err = r.Agencies.GetByID(ctx, req.AgencyID); err != nil {
			return nil, notFound(err, "agency", req.AgencyID)
		}
		if agency.Status != models.AgencyPending {
			return nil, fmt.Errorf("%w: agency %d is %s", ErrNoop, agency.ID, agency.Status)
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			agency.Name = name
		}
		agency.Email = strings.TrimSpace(in.Email)
		agency.Fax = strings.TrimSpace(in.Fax)
		agency.Address = strings.TrimSpace(in.Address)
		agency.PortalURL = strings.TrimSpace(in.PortalURL)
		return nil, r.Agencies.UpdateContact(ctx, agency)
	})
	if err != nil {
		log.Printf("[agency][update_pending][err] request=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[agency][update_pending][ok] id=%d request=%d by=%d", agency.ID, id, actor.UserID)
	return agency, nil
}

// ContactUser emails the request's owner on behalf of staff.
func (s *lifecycleService) ContactUser(ctx context.Context, actor authz.Actor, id int64, text string) error {
	if err := s.requireStaff(actor); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid("message text is required")
	}
	r := s.Store.Repos()
	req, err := r.Requests.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "request", id)
	}
	owner, err := r.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return notFound(err, "user", req.UserID)
	}
	sender, err := r.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return notFound(err, "user", actor.UserID)
	}
	s.Notifier.ContactUser(ctx, owner, req, sender, text)
	log.Printf("[request][contact_user][ok] id=%d owner=%d by=%d", id, owner.ID, actor.UserID)
	return nil
}

// UpdateEmbargo sets or lifts the embargo. A timed embargo on a closed
// request keeps its expiry; without one it gets the default grace period.
func (s *lifecycleService) UpdateEmbargo(ctx context.Context, actor authz.Actor, id int64, in EmbargoInput) (*models.Request, error) {
	var out *models.Request
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		want := authz.CapChange
		switch {
		case in.Permanent:
			want = authz.CapEmbargoPerm
		case in.Embargo:
			want = authz.CapEmbargo
		}
		if err := s.requireCap(actor, t, want); err != nil {
			return nil, err
		}

		now := s.now()
		req.Embargo = in.Embargo || in.Permanent
		req.PermanentEmbargo = in.Permanent
		switch {
		case !req.Embargo || req.PermanentEmbargo:
			req.DateEmbargo = nil
		case in.Until != nil:
			if !in.Until.After(now) {
				return nil, invalid("embargo expiry must be in the future")
			}
			until := in.Until.UTC()
			req.DateEmbargo = &until
		case req.Status.IsTerminal():
			until := now.AddDate(0, 0, s.Lifecycle.EmbargoGraceDays)
			req.DateEmbargo = &until
		default:
			req.DateEmbargo = nil
		}
		out = req
		return nil, r.Requests.Update(ctx, req)
	})
	if err != nil {
		log.Printf("[request][embargo][err] id=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[request][embargo][ok] id=%d embargo=%v permanent=%v", id, out.Embargo, out.PermanentEmbargo)
	return out, nil
}

func (s *lifecycleService) UpdateEstimate(ctx context.Context, actor authz.Actor, id int64, estimate time.Time) (*models.Request, error) {
	if estimate.IsZero() {
		return nil, invalid("estimate date is required")
	}
	var out *models.Request
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return nil, err
		}
		est := estimate.UTC()
		req.DateEstimate = &est
		out = req
		return nil, r.Requests.Update(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateAccessKey replaces the request's private-link secret.
func (s *lifecycleService) GenerateAccessKey(ctx context.Context, actor authz.Actor, id int64) (string, error) {
	var key string
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return nil, err
		}
		var err error
		if key, err = utils.NewAccessKey(0); err != nil {
			return nil, fmt.Errorf("generate access key: %w", err)
		}
		req.AccessKey = key
		return nil, r.Requests.Update(ctx, req)
	})
	if err != nil {
		log.Printf("[request][access_key][err] id=%d err=%v", id, err)
		return "", err
	}
	log.Printf("[request][access_key][ok] id=%d by=%d", id, actor.UserID)
	return key, nil
}

func (s *lifecycleService) GrantAccess(ctx context.Context, actor authz.Actor, id int64, userIDs []int64, level string) error {
	if level != models.AccessEdit && level != models.AccessView {
		return invalid("access level must be %q or %q", models.AccessEdit, models.AccessView)
	}
	if len(userIDs) == 0 {
		return invalid("no users selected")
	}
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return nil, err
		}
		for _, uid := range userIDs {
			if uid == req.UserID {
				continue
			}
			if _, err := r.Users.GetByID(ctx, uid); err != nil {
				return nil, notFound(err, "user", uid)
			}
			if err := r.Requests.SetAccess(ctx, req.ID, uid, level); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		log.Printf("[request][grant][err] id=%d err=%v", id, err)
		return err
	}
	log.Printf("[request][grant][ok] id=%d users=%v level=%s", id, userIDs, level)
	return nil
}

func (s *lifecycleService) RevokeAccess(ctx context.Context, actor authz.Actor, id int64, userID int64) error {
	return s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return nil, err
		}
		if !req.HasEditor(userID) && !req.HasViewer(userID) {
			return nil, fmt.Errorf("%w: user %d has no access to request %d", ErrNoop, userID, id)
		}
		return nil, r.Requests.RemoveAccess(ctx, id, userID)
	})
}

// Promote turns a viewer into an editor.
func (s *lifecycleService) Promote(ctx context.Context, actor authz.Actor, id int64, userID int64) error {
	return s.relevel(ctx, actor, id, userID, models.AccessView, models.AccessEdit)
}

// Demote turns an editor into a viewer.
func (s *lifecycleService) Demote(ctx context.Context, actor authz.Actor, id int64, userID int64) error {
	return s.relevel(ctx, actor, id, userID, models.AccessEdit, models.AccessView)
}

func (s *lifecycleService) relevel(ctx context.Context, actor authz.Actor, id, userID int64, from, to string) error {
	return s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return nil, err
		}
		has := req.HasViewer(userID)
		if from == models.AccessEdit {
			has = req.HasEditor(userID)
		}
		if !has {
			return nil, fmt.Errorf("%w: user %d is not a %s of request %d", ErrNoop, userID, from, id)
		}
		return nil, r.Requests.SetAccess(ctx, id, userID, to)
	})
}
