package repositories

import (
	"context"
	"fmt"
	"time"

	"recordsdesk/internal/models"
)

type CommunicationRepository interface {
	Create(ctx context.Context, c *models.Communication) error
	GetByID(ctx context.Context, id int64) (*models.Communication, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Communication, error)
	GetByReceipt(ctx context.Context, receipt string) (*models.Communication, error)
	ListByRequest(ctx context.Context, requestID int64) ([]models.Communication, error)
	// ListHeldForAgency returns pending outbound communications that were
	// never dispatched because the agency awaited approval.
	ListHeldForAgency(ctx context.Context, agencyID int64) ([]models.Communication, error)
	UpdateStatus(ctx context.Context, id int64, status models.DeliveryStatus) error
	UpdateDelivery(ctx context.Context, c *models.Communication) error
	SetRequest(ctx context.Context, id int64, requestID int64) error
	Delete(ctx context.Context, id int64) error
}

const commColumns = `id, request_id, direction, from_user_id, to_user_id, subject, body,
	status, channel, address, receipt, thanks, appeal, sent_at`

type communicationRepository struct{ base }

func (r *communicationRepository) Create(ctx context.Context, c *models.Communication) error {
	if c.SentAt.IsZero() {
		c.SentAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = models.DeliveryPending
	}
	id, err := r.insert(ctx, `
		INSERT INTO communications (
			request_id, direction, from_user_id, to_user_id, subject, body,
			status, channel, address, receipt, thanks, appeal, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RequestID, c.Direction, c.FromUserID, c.ToUserID, c.Subject, c.Body,
		c.Status, c.Channel, c.Address, c.Receipt, c.Thanks, c.Appeal, c.SentAt,
	)
	if err != nil {
		return fmt.Errorf("creating communication: %w", err)
	}
	c.ID = id
	return nil
}

func (r *communicationRepository) GetByID(ctx context.Context, id int64) (*models.Communication, error) {
	var c models.Communication
	if err := r.get(ctx, &c, "SELECT "+commColumns+" FROM communications WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *communicationRepository) GetForUpdate(ctx context.Context, id int64) (*models.Communication, error) {
	var c models.Communication
	if err := r.get(ctx, &c, "SELECT "+commColumns+" FROM communications WHERE id = ?"+r.forUpdate(), id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *communicationRepository) GetByReceipt(ctx context.Context, receipt string) (*models.Communication, error) {
	if receipt == "" {
		return nil, ErrNotFound
	}
	var c models.Communication
	if err := r.get(ctx, &c, "SELECT "+commColumns+" FROM communications WHERE receipt = ?", receipt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *communicationRepository) ListByRequest(ctx context.Context, requestID int64) ([]models.Communication, error) {
	var out []models.Communication
	err := r.sel(ctx, &out,
		"SELECT "+commColumns+" FROM communications WHERE request_id = ? ORDER BY sent_at, id", requestID)
	if err != nil {
		return nil, fmt.Errorf("listing communications: %w", err)
	}
	return out, nil
}

func (r *communicationRepository) ListHeldForAgency(ctx context.Context, agencyID int64) ([]models.Communication, error) {
	var out []models.Communication
	err := r.sel(ctx, &out, `
		SELECT c.id, c.request_id, c.direction, c.from_user_id, c.to_user_id, c.subject, c.body,
			c.status, c.channel, c.address, c.receipt, c.thanks, c.appeal, c.sent_at
		FROM communications c
		JOIN requests rq ON rq.id = c.request_id
		WHERE rq.agency_id = ? AND c.direction = ? AND c.status = ? AND c.receipt = ''
		ORDER BY c.id`,
		agencyID, models.DirectionOutbound, models.DeliveryPending)
	if err != nil {
		return nil, fmt.Errorf("listing held communications: %w", err)
	}
	return out, nil
}

func (r *communicationRepository) UpdateStatus(ctx context.Context, id int64, status models.DeliveryStatus) error {
	return r.execOne(ctx, "UPDATE communications SET status = ? WHERE id = ?", status, id)
}

func (r *communicationRepository) UpdateDelivery(ctx context.Context, c *models.Communication) error {
	return r.execOne(ctx,
		"UPDATE communications SET channel = ?, address = ?, receipt = ?, status = ? WHERE id = ?",
		c.Channel, c.Address, c.Receipt, c.Status, c.ID)
}

func (r *communicationRepository) SetRequest(ctx context.Context, id int64, requestID int64) error {
	return r.execOne(ctx, "UPDATE communications SET request_id = ? WHERE id = ?", requestID, id)
}

// Delete removes the communication together with its file rows. Open tasks
// lose the reference; resolved tasks are left as they were.
func (r *communicationRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.exec(ctx, "DELETE FROM files WHERE communication_id = ?", id); err != nil {
		return fmt.Errorf("deleting files of communication %d: %w", id, err)
	}
	if _, err := r.exec(ctx, "UPDATE tasks SET communication_id = NULL WHERE communication_id = ? AND resolved = FALSE", id); err != nil {
		return err
	}
	return r.execOne(ctx, "DELETE FROM communications WHERE id = ?", id)
}

type FileRepository interface {
	Create(ctx context.Context, f *models.File) error
	ListByCommunication(ctx context.Context, communicationID int64) ([]models.File, error)
	// CountByPath counts rows sharing stored bytes; moved copies share paths.
	CountByPath(ctx context.Context, path string) (int, error)
}

type fileRepository struct{ base }

func (r *fileRepository) Create(ctx context.Context, f *models.File) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx,
		"INSERT INTO files (communication_id, name, path, size, mime_type, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		f.CommunicationID, f.Name, f.Path, f.Size, f.MIMEType, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	f.ID = id
	return nil
}

func (r *fileRepository) ListByCommunication(ctx context.Context, communicationID int64) ([]models.File, error) {
	var out []models.File
	err := r.sel(ctx, &out,
		"SELECT id, communication_id, name, path, size, mime_type, created_at FROM files WHERE communication_id = ? ORDER BY id",
		communicationID)
	return out, err
}

func (r *fileRepository) CountByPath(ctx context.Context, path string) (int, error) {
	var n int
	err := r.get(ctx, &n, "SELECT COUNT(*) FROM files WHERE path = ?", path)
	return n, err
}

type AppealRepository interface {
	Create(ctx context.Context, a *models.Appeal) error
	ListByRequest(ctx context.Context, requestID int64) ([]models.Appeal, error)
}

type appealRepository struct{ base }

func (r *appealRepository) Create(ctx context.Context, a *models.Appeal) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, "INSERT INTO appeals (communication_id, created_at) VALUES (?, ?)",
		a.CommunicationID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating appeal: %w", err)
	}
	a.ID = id
	return nil
}

func (r *appealRepository) ListByRequest(ctx context.Context, requestID int64) ([]models.Appeal, error) {
	var out []models.Appeal
	err := r.sel(ctx, &out, `
		SELECT a.id, a.communication_id, a.created_at
		FROM appeals a JOIN communications c ON c.id = a.communication_id
		WHERE c.request_id = ? ORDER BY a.id`, requestID)
	return out, err
}

type NoteRepository interface {
	Create(ctx context.Context, n *models.Note) error
	ListByRequest(ctx context.Context, requestID int64) ([]models.Note, error)
}

type noteRepository struct{ base }

func (r *noteRepository) Create(ctx context.Context, n *models.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, "INSERT INTO notes (request_id, user_id, note, created_at) VALUES (?, ?, ?, ?)",
		n.RequestID, n.UserID, n.Note, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating note: %w", err)
	}
	n.ID = id
	return nil
}

func (r *noteRepository) ListByRequest(ctx context.Context, requestID int64) ([]models.Note, error) {
	var out []models.Note
	err := r.sel(ctx, &out,
		"SELECT id, request_id, user_id, note, created_at FROM notes WHERE request_id = ? ORDER BY id",
		requestID)
	return out, err
}
