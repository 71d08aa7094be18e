package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"recordsdesk/internal/models"
)

type RequestRepository interface {
	Create(ctx context.Context, r *models.Request) error
	GetByID(ctx context.Context, id int64) (*models.Request, error)
	// GetForUpdate reads the row under a write lock for the rest of the transaction.
	GetForUpdate(ctx context.Context, id int64) (*models.Request, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Request, error)
	List(ctx context.Context, f models.RequestFilter) ([]models.Request, error)
	Update(ctx context.Context, r *models.Request) error
	Delete(ctx context.Context, id int64) error

	SetAccess(ctx context.Context, requestID, userID int64, level string) error
	RemoveAccess(ctx context.Context, requestID, userID int64) error
	ReassignAgency(ctx context.Context, fromAgencyID, toAgencyID int64) (int64, error)
}

const requestColumns = `id, title, body, status, user_id, agency_id, jurisdiction_id, parent_id,
	date_created, date_submitted, date_due, date_done, date_estimate,
	embargo, permanent_embargo, date_embargo, tracking_id, price_cents, noindex, access_key`

type requestRepository struct{ base }

func (r *requestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.DateCreated.IsZero() {
		req.DateCreated = time.Now().UTC()
	}
	id, err := r.insert(ctx, `
		INSERT INTO requests (
			title, body, status, user_id, agency_id, jurisdiction_id, parent_id,
			date_created, date_submitted, date_due, date_done, date_estimate,
			embargo, permanent_embargo, date_embargo, tracking_id, price_cents, noindex, access_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Title, req.Body, req.Status, req.UserID, req.AgencyID, req.JurisdictionID, req.ParentID,
		req.DateCreated, req.DateSubmitted, req.DateDue, req.DateDone, req.DateEstimate,
		req.Embargo, req.PermanentEmbargo, req.DateEmbargo, req.TrackingID, req.PriceCents, req.NoIndex, req.AccessKey,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.ID = id
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*models.Request, error) {
	return r.load(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
}

func (r *requestRepository) GetForUpdate(ctx context.Context, id int64) (*models.Request, error) {
	return r.load(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = ?"+r.forUpdate(), id)
}

func (r *requestRepository) load(ctx context.Context, query string, id int64) (*models.Request, error) {
	var req models.Request
	if err := r.get(ctx, &req, query, id); err != nil {
		return nil, err
	}
	if err := r.loadAccess(ctx, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) loadAccess(ctx context.Context, req *models.Request) error {
	var grants []struct {
		UserID int64  `db:"user_id"`
		Level  string `db:"level"`
	}
	if err := r.sel(ctx, &grants,
		"SELECT user_id, level FROM request_access WHERE request_id = ? ORDER BY user_id", req.ID); err != nil {
		return fmt.Errorf("loading access for request %d: %w", req.ID, err)
	}
	req.EditorIDs, req.ViewerIDs = nil, nil
	for _, g := range grants {
		if g.Level == models.AccessEdit {
			req.EditorIDs = append(req.EditorIDs, g.UserID)
		} else {
			req.ViewerIDs = append(req.ViewerIDs, g.UserID)
		}
	}
	return nil
}

func (r *requestRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Request, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+requestColumns+" FROM requests WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	var out []models.Request
	if err := r.sel(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return out, nil
}

func (r *requestRepository) List(ctx context.Context, f models.RequestFilter) ([]models.Request, error) {
	query := "SELECT " + requestColumns + " FROM requests"
	var conditions []string
	var args []any
	if f.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.AgencyID != nil {
		conditions = append(conditions, "agency_id = ?")
		args = append(args, *f.AgencyID)
	}
	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}
	if f.ExcludeDrafts {
		conditions = append(conditions, "status <> ?")
		args = append(args, models.StatusStarted)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date_created DESC, id DESC"
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	var out []models.Request
	if err := r.sel(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return out, nil
}

func (r *requestRepository) Update(ctx context.Context, req *models.Request) error {
	return r.execOne(ctx, `
		UPDATE requests SET
			title = ?, body = ?, status = ?, agency_id = ?, jurisdiction_id = ?,
			date_submitted = ?, date_due = ?, date_done = ?, date_estimate = ?,
			embargo = ?, permanent_embargo = ?, date_embargo = ?,
			tracking_id = ?, price_cents = ?, noindex = ?, access_key = ?
		WHERE id = ?`,
		req.Title, req.Body, req.Status, req.AgencyID, req.JurisdictionID,
		req.DateSubmitted, req.DateDue, req.DateDone, req.DateEstimate,
		req.Embargo, req.PermanentEmbargo, req.DateEmbargo,
		req.TrackingID, req.PriceCents, req.NoIndex, req.AccessKey,
		req.ID,
	)
}

func (r *requestRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.exec(ctx, "DELETE FROM request_access WHERE request_id = ?", id); err != nil {
		return err
	}
	return r.execOne(ctx, "DELETE FROM requests WHERE id = ?", id)
}

func (r *requestRepository) SetAccess(ctx context.Context, requestID, userID int64, level string) error {
	if _, err := r.exec(ctx, "DELETE FROM request_access WHERE request_id = ? AND user_id = ?", requestID, userID); err != nil {
		return err
	}
	_, err := r.exec(ctx, "INSERT INTO request_access (request_id, user_id, level) VALUES (?, ?, ?)",
		requestID, userID, level)
	return err
}

func (r *requestRepository) RemoveAccess(ctx context.Context, requestID, userID int64) error {
	return r.execOne(ctx, "DELETE FROM request_access WHERE request_id = ? AND user_id = ?", requestID, userID)
}

// ReassignAgency moves every request of one agency to another, taking the
// new agency's jurisdiction along.
func (r *requestRepository) ReassignAgency(ctx context.Context, fromAgencyID, toAgencyID int64) (int64, error) {
	return r.exec(ctx, `UPDATE requests
		SET agency_id = ?, jurisdiction_id = (SELECT jurisdiction_id FROM agencies WHERE id = ?)
		WHERE agency_id = ?`, toAgencyID, toAgencyID, fromAgencyID)
}
