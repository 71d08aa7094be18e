package repositories

import (
	"context"
	"fmt"
	"time"

	"recordsdesk/internal/models"
)

type CrowdfundRepository interface {
	Create(ctx context.Context, c *models.Crowdfund) error
	GetByID(ctx context.Context, id int64) (*models.Crowdfund, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Crowdfund, error)
	// ActiveForRequest returns the open crowdfund of a request, or ErrNotFound.
	ActiveForRequest(ctx context.Context, requestID int64) (*models.Crowdfund, error)
	AddPayment(ctx context.Context, p *models.CrowdfundPayment) error
	SetRaised(ctx context.Context, id int64, raisedCents int64, closed bool) error
	ListPayments(ctx context.Context, crowdfundID int64) ([]models.CrowdfundPayment, error)
}

const crowdfundColumns = `id, request_id, name, amount_required_cents, amount_raised_cents, date_due, closed, created_at`

type crowdfundRepository struct{ base }

func (r *crowdfundRepository) Create(ctx context.Context, c *models.Crowdfund) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, `
		INSERT INTO crowdfunds (request_id, name, amount_required_cents, amount_raised_cents, date_due, closed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.RequestID, c.Name, c.AmountRequiredCents, c.AmountRaisedCents, c.DateDue, c.Closed, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating crowdfund: %w", err)
	}
	c.ID = id
	return nil
}

func (r *crowdfundRepository) GetByID(ctx context.Context, id int64) (*models.Crowdfund, error) {
	var c models.Crowdfund
	if err := r.get(ctx, &c, "SELECT "+crowdfundColumns+" FROM crowdfunds WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *crowdfundRepository) GetForUpdate(ctx context.Context, id int64) (*models.Crowdfund, error) {
	var c models.Crowdfund
	if err := r.get(ctx, &c, "SELECT "+crowdfundColumns+" FROM crowdfunds WHERE id = ?"+r.forUpdate(), id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *crowdfundRepository) ActiveForRequest(ctx context.Context, requestID int64) (*models.Crowdfund, error) {
	var c models.Crowdfund
	err := r.get(ctx, &c,
		"SELECT "+crowdfundColumns+" FROM crowdfunds WHERE request_id = ? AND closed = FALSE ORDER BY id LIMIT 1",
		requestID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *crowdfundRepository) AddPayment(ctx context.Context, p *models.CrowdfundPayment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx,
		"INSERT INTO crowdfund_payments (crowdfund_id, user_id, amount_cents, visible, created_at) VALUES (?, ?, ?, ?, ?)",
		p.CrowdfundID, p.UserID, p.AmountCents, p.Show, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording payment: %w", err)
	}
	p.ID = id
	return nil
}

func (r *crowdfundRepository) SetRaised(ctx context.Context, id int64, raisedCents int64, closed bool) error {
	return r.execOne(ctx, "UPDATE crowdfunds SET amount_raised_cents = ?, closed = ? WHERE id = ?",
		raisedCents, closed, id)
}

func (r *crowdfundRepository) ListPayments(ctx context.Context, crowdfundID int64) ([]models.CrowdfundPayment, error) {
	var out []models.CrowdfundPayment
	err := r.sel(ctx, &out,
		"SELECT id, crowdfund_id, user_id, amount_cents, visible, created_at FROM crowdfund_payments WHERE crowdfund_id = ? ORDER BY id",
		crowdfundID)
	return out, err
}
