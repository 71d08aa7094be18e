package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

const defaultThanks = "Thank you for your help with this request."

func (s *lifecycleService) FollowUp(ctx context.Context, actor authz.Actor, id int64, in FollowUpInput) (*models.Communication, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return nil, invalid("follow-up text is required")
	}
	if in.Channel != "" || in.Address != "" {
		if err := s.requireStaff(actor); err != nil {
			return nil, fmt.Errorf("%w: channel override", err)
		}
		if in.Channel != "" {
			if _, ok := models.ParseChannel(string(in.Channel)); !ok {
				return nil, invalid("unknown channel %q", in.Channel)
			}
		}
	}

	var comm *models.Communication
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapFollowUp); err != nil {
			return nil, err
		}
		if !canTransition(ActionFollowUp, req.Status) {
			return nil, fmt.Errorf("%w: request %d is %s", ErrNoop, id, req.Status)
		}
		ch := in.Channel
		if ch == "" && in.Address != "" {
			ch = models.ChannelEmail
		}
		var err error
		comm, err = s.outbound(ctx, r, actor, req, models.Communication{
			Subject: "RE: " + req.Title, Body: in.Text, Channel: ch, Address: in.Address,
		})
		if err != nil {
			return nil, err
		}
		return s.dispatch(ctx, r, req, comm, mailFollowUp)
	})
	if err != nil {
		log.Printf("[request][follow_up][err] id=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[request][follow_up][ok] id=%d comm=%d channel=%s", id, comm.ID, comm.Channel)
	return comm, nil
}

func (s *lifecycleService) Thank(ctx context.Context, actor authz.Actor, id int64, text string) (*models.Communication, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = defaultThanks
	}
	var comm *models.Communication
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if err := s.requireCap(actor, t, authz.CapThank); err != nil {
			return nil, err
		}
		if !canTransition(ActionThank, req.Status) {
			return nil, fmt.Errorf("%w: request %d is %s", ErrNoop, id, req.Status)
		}
		var err error
		comm, err = s.outbound(ctx, r, actor, req, models.Communication{
			Subject: "RE: " + req.Title, Body: text, Thanks: true,
		})
		if err != nil {
			return nil, err
		}
		return s.dispatch(ctx, r, req, comm, mailFollowUp)
	})
	if err != nil {
		log.Printf("[request][thank][err] id=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[request][thank][ok] id=%d comm=%d", id, comm.ID)
	return comm, nil
}

// Appeal reopens a closed or fix-required request. It does not record a
// status_change task; the appeal row is the audit trail.
func (s *lifecycleService) Appeal(ctx context.Context, actor authz.Actor, id int64, text string) (*models.Communication, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("appeal text is required")
	}
	var comm *models.Communication
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if !canTransition(ActionAppeal, req.Status) {
			if !authz.Can(actor, t, authz.CapView) {
				return nil, fmt.Errorf("%w: request %d", ErrForbidden, id)
			}
			return nil, fmt.Errorf("%w: request %d is %s", ErrNoop, id, req.Status)
		}
		if err := s.requireCap(actor, t, authz.CapAppeal); err != nil {
			return nil, err
		}

		var err error
		comm, err = s.outbound(ctx, r, actor, req, models.Communication{
			Subject: "Appeal: " + req.Title, Body: text, Appeal: true,
		})
		if err != nil {
			return nil, err
		}
		if err := r.Appeals.Create(ctx, &models.Appeal{CommunicationID: comm.ID, CreatedAt: s.now()}); err != nil {
			return nil, err
		}
		s.setStatus(req, nextStatus(ActionAppeal, req.Status, ""))
		if err := r.Requests.Update(ctx, req); err != nil {
			return nil, err
		}
		return s.dispatch(ctx, r, req, comm, mailAppeal)
	})
	if err != nil {
		log.Printf("[request][appeal][err] id=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[request][appeal][ok] id=%d comm=%d", id, comm.ID)
	return comm, nil
}

// Resend re-dispatches an existing outbound communication, optionally over a
// different channel or address. No new row is written.
func (s *lifecycleService) Resend(ctx context.Context, actor authz.Actor, commID int64, in ResendInput) (*models.Communication, error) {
	if err := s.requireStaff(actor); err != nil {
		return nil, err
	}
	if in.Channel != "" {
		if _, ok := models.ParseChannel(string(in.Channel)); !ok {
			return nil, invalid("unknown channel %q", in.Channel)
		}
	}

	var comm *models.Communication
	var tasks []models.Task
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		var err error
		if comm, err = r.Communications.GetForUpdate(ctx, commID); err != nil {
			return notFound(err, "communication", commID)
		}
		if comm.Direction != models.DirectionOutbound || comm.RequestID == nil {
			return invalid("communication %d is not outbound correspondence", commID)
		}
		req, _, err := s.target(ctx, r, *comm.RequestID, true)
		if err != nil {
			return err
		}
		if !canTransition(ActionResend, req.Status) {
			return fmt.Errorf("%w: request %d is %s", ErrNoop, req.ID, req.Status)
		}

		if in.Channel != "" {
			comm.Channel = in.Channel
			comm.Address = in.Address
			if comm.Address == "" {
				agency, err := r.Agencies.GetByID(ctx, req.AgencyID)
				if err != nil {
					return notFound(err, "agency", req.AgencyID)
				}
				comm.Address = agency.AddressFor(in.Channel)
			}
		} else if in.Address != "" {
			comm.Address = in.Address
		}
		comm.Status = models.DeliveryPending
		comm.Receipt = ""
		if err := r.Communications.UpdateDelivery(ctx, comm); err != nil {
			return err
		}

		category := mailFollowUp
		if comm.Appeal {
			category = mailAppeal
		}
		tasks, err = s.dispatch(ctx, r, req, comm, category)
		return err
	})
	if err != nil {
		log.Printf("[comm][resend][err] id=%d err=%v", commID, err)
		return nil, err
	}
	s.announce(tasks)
	log.Printf("[comm][resend][ok] id=%d channel=%s", commID, comm.Channel)
	return comm, nil
}

func (s *lifecycleService) MoveCommunication(ctx context.Context, actor authz.Actor, commID int64, destIDs []int64) ([]models.Communication, error) {
	if err := s.requireStaff(actor); err != nil {
		return nil, err
	}
	var moved []models.Communication
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		comm, err := r.Communications.GetForUpdate(ctx, commID)
		if err != nil {
			return notFound(err, "communication", commID)
		}
		moved, err = s.moveComm(ctx, r, comm, destIDs)
		return err
	})
	if err != nil {
		log.Printf("[comm][move][err] id=%d err=%v", commID, err)
		return nil, err
	}
	return moved, nil
}

// DeleteCommunication removes the row, its file rows and any stored bytes no
// other communication still points at.
func (s *lifecycleService) DeleteCommunication(ctx context.Context, actor authz.Actor, commID int64) error {
	if err := s.requireStaff(actor); err != nil {
		return err
	}
	var orphaned []string
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		if _, err := r.Communications.GetForUpdate(ctx, commID); err != nil {
			return notFound(err, "communication", commID)
		}
		files, err := r.Files.ListByCommunication(ctx, commID)
		if err != nil {
			return err
		}
		if err := r.Communications.Delete(ctx, commID); err != nil {
			return err
		}
		for _, f := range files {
			n, err := r.Files.CountByPath(ctx, f.Path)
			if err != nil {
				return err
			}
			if n == 0 {
				orphaned = append(orphaned, f.Path)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[comm][delete][err] id=%d err=%v", commID, err)
		return err
	}
	for _, p := range orphaned {
		full := filepath.Join(s.FilesRoot, filepath.FromSlash(p))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			log.Printf("[comm][delete][warn] remove %s: %v", full, err)
		}
	}
	log.Printf("[comm][delete][ok] id=%d files_removed=%d", commID, len(orphaned))
	return nil
}

func (s *lifecycleService) SetCommunicationStatus(ctx context.Context, actor authz.Actor, commID int64, status models.DeliveryStatus) error {
	if err := s.requireStaff(actor); err != nil {
		return err
	}
	if !status.Valid() {
		return invalid("unknown delivery status %q", status)
	}
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		if _, err := r.Communications.GetForUpdate(ctx, commID); err != nil {
			return notFound(err, "communication", commID)
		}
		return r.Communications.UpdateStatus(ctx, commID, status)
	})
	if err != nil {
		log.Printf("[comm][status][err] id=%d err=%v", commID, err)
		return err
	}
	log.Printf("[comm][status][ok] id=%d status=%s by=%d", commID, status, actor.UserID)
	return nil
}
