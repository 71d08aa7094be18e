package repositories

import (
	"context"
	"fmt"
	"time"

	"recordsdesk/internal/models"
)

type AgencyRepository interface {
	Create(ctx context.Context, a *models.Agency) error
	GetByID(ctx context.Context, id int64) (*models.Agency, error)
	SetStatus(ctx context.Context, id int64, status models.AgencyStatus) error
	SetStale(ctx context.Context, id int64, stale bool) error
	UpdateContact(ctx context.Context, a *models.Agency) error
	Delete(ctx context.Context, id int64) error
}

const agencyColumns = `id, name, jurisdiction_id, status, email, fax, address, portal_url, stale, created_at`

type agencyRepository struct{ base }

func (r *agencyRepository) Create(ctx context.Context, a *models.Agency) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = models.AgencyPending
	}
	id, err := r.insert(ctx, `
		INSERT INTO agencies (name, jurisdiction_id, status, email, fax, address, portal_url, stale, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.JurisdictionID, a.Status, a.Email, a.Fax, a.Address, a.PortalURL, a.Stale, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating agency %q: %w", a.Name, err)
	}
	a.ID = id
	return nil
}

func (r *agencyRepository) GetByID(ctx context.Context, id int64) (*models.Agency, error) {
	var a models.Agency
	if err := r.get(ctx, &a, "SELECT "+agencyColumns+" FROM agencies WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *agencyRepository) SetStatus(ctx context.Context, id int64, status models.AgencyStatus) error {
	return r.execOne(ctx, "UPDATE agencies SET status = ? WHERE id = ?", status, id)
}

func (r *agencyRepository) SetStale(ctx context.Context, id int64, stale bool) error {
	return r.execOne(ctx, "UPDATE agencies SET stale = ? WHERE id = ?", stale, id)
}

// UpdateContact rewrites the name and every delivery address.
func (r *agencyRepository) UpdateContact(ctx context.Context, a *models.Agency) error {
	return r.execOne(ctx,
		"UPDATE agencies SET name = ?, email = ?, fax = ?, address = ?, portal_url = ? WHERE id = ?",
		a.Name, a.Email, a.Fax, a.Address, a.PortalURL, a.ID)
}

func (r *agencyRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, "DELETE FROM agencies WHERE id = ?", id)
}

type JurisdictionRepository interface {
	Create(ctx context.Context, j *models.Jurisdiction) error
	GetByID(ctx context.Context, id int64) (*models.Jurisdiction, error)
}

type jurisdictionRepository struct{ base }

func (r *jurisdictionRepository) Create(ctx context.Context, j *models.Jurisdiction) error {
	id, err := r.insert(ctx, "INSERT INTO jurisdictions (name, days, appeals_allowed) VALUES (?, ?, ?)",
		j.Name, j.Days, j.AppealsAllowed)
	if err != nil {
		return fmt.Errorf("creating jurisdiction %q: %w", j.Name, err)
	}
	j.ID = id
	return nil
}

func (r *jurisdictionRepository) GetByID(ctx context.Context, id int64) (*models.Jurisdiction, error) {
	var j models.Jurisdiction
	if err := r.get(ctx, &j, "SELECT id, name, days, appeals_allowed FROM jurisdictions WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &j, nil
}
