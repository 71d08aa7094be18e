package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

type CrowdfundService interface {
	Create(ctx context.Context, actor authz.Actor, requestID int64, in CrowdfundInput) (*models.Crowdfund, error)
	Contribute(ctx context.Context, actor authz.Actor, crowdfundID int64, in ContributionInput) (*models.Crowdfund, error)
	Get(ctx context.Context, id int64) (*models.Crowdfund, []models.CrowdfundPayment, error)
}

type CrowdfundInput struct {
	Name                string     `json:"name"`
	AmountRequiredCents int64      `json:"amount_required_cents"`
	DateDue             *time.Time `json:"date_due"`
}

type ContributionInput struct {
	AmountCents int64 `json:"amount_cents"`
	Show        bool  `json:"show"`
}

type crowdfundService struct {
	*core
}

func NewCrowdfundService(d Deps) CrowdfundService {
	return &crowdfundService{core: newCore(d)}
}

// Create opens a crowdfund for a request awaiting payment. A request has at
// most one open crowdfund.
func (s *crowdfundService) Create(ctx context.Context, actor authz.Actor, requestID int64, in CrowdfundInput) (*models.Crowdfund, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.AmountRequiredCents <= 0 {
		return nil, invalid("amount required must be positive")
	}
	var cf *models.Crowdfund
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		req, t, err := s.target(ctx, r, requestID, true)
		if err != nil {
			return err
		}
		if err := s.requireCap(actor, t, authz.CapChange); err != nil {
			return err
		}
		if req.Status != models.StatusPayment {
			return fmt.Errorf("%w: request %d is %s", ErrNoop, req.ID, req.Status)
		}
		active, err := r.Crowdfunds.ActiveForRequest(ctx, req.ID)
		if err == nil {
			return fmt.Errorf("%w: crowdfund %d is already open", ErrNoop, active.ID)
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		if in.Name == "" {
			in.Name = "Crowdfund for " + req.Title
		}
		cf = &models.Crowdfund{
			RequestID:           req.ID,
			Name:                in.Name,
			AmountRequiredCents: in.AmountRequiredCents,
			DateDue:             in.DateDue,
			CreatedAt:           s.now(),
		}
		return r.Crowdfunds.Create(ctx, cf)
	})
	if err != nil {
		log.Printf("[crowdfund][create][err] request=%d err=%v", requestID, err)
		return nil, err
	}
	log.Printf("[crowdfund][create][ok] id=%d request=%d required=%d", cf.ID, requestID, cf.AmountRequiredCents)
	return cf, nil
}

// Contribute records a payment. The payment that reaches the goal closes the
// crowdfund and queues a task for staff to pay the agency.
func (s *crowdfundService) Contribute(ctx context.Context, actor authz.Actor, crowdfundID int64, in ContributionInput) (*models.Crowdfund, error) {
	if in.AmountCents <= 0 {
		return nil, invalid("amount must be positive")
	}
	var cf *models.Crowdfund
	var tasks []models.Task
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		var err error
		if cf, err = r.Crowdfunds.GetForUpdate(ctx, crowdfundID); err != nil {
			return notFound(err, "crowdfund", crowdfundID)
		}
		if cf.Closed {
			return fmt.Errorf("%w: crowdfund %d is closed", ErrNoop, cf.ID)
		}
		if cf.DateDue != nil && s.now().After(*cf.DateDue) {
			return fmt.Errorf("%w: crowdfund %d expired", ErrNoop, cf.ID)
		}
		p := &models.CrowdfundPayment{
			CrowdfundID: cf.ID,
			AmountCents: in.AmountCents,
			Show:        in.Show,
			CreatedAt:   s.now(),
		}
		if !actor.Anonymous() {
			uid := actor.UserID
			p.UserID = &uid
		}
		if err := r.Crowdfunds.AddPayment(ctx, p); err != nil {
			return err
		}
		cf.AmountRaisedCents += in.AmountCents
		cf.Closed = cf.Funded()
		if err := r.Crowdfunds.SetRaised(ctx, cf.ID, cf.AmountRaisedCents, cf.Closed); err != nil {
			return err
		}
		if !cf.Closed {
			return nil
		}
		task := &models.Task{
			Kind:      models.TaskCrowdfund,
			RequestID: &cf.RequestID,
			Payload:   models.CrowdfundPayload{CrowdfundID: cf.ID},
		}
		if err := r.Tasks.Create(ctx, task); err != nil {
			return err
		}
		tasks = append(tasks, *task)
		return nil
	})
	if err != nil {
		log.Printf("[crowdfund][pay][err] id=%d err=%v", crowdfundID, err)
		return nil, err
	}
	s.announce(tasks)
	log.Printf("[crowdfund][pay][ok] id=%d amount=%d raised=%d closed=%v", cf.ID, in.AmountCents, cf.AmountRaisedCents, cf.Closed)
	return cf, nil
}

func (s *crowdfundService) Get(ctx context.Context, id int64) (*models.Crowdfund, []models.CrowdfundPayment, error) {
	r := s.Store.Repos()
	cf, err := r.Crowdfunds.GetByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "crowdfund", id)
	}
	payments, err := r.Crowdfunds.ListPayments(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	visible := payments[:0]
	for _, p := range payments {
		if !p.Show {
			p.UserID = nil
		}
		visible = append(visible, p)
	}
	return cf, visible, nil
}
