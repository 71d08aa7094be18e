package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recordsdesk/internal/models"
)

type TaskRepository interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Task, error)
	List(ctx context.Context, f models.TaskFilter) ([]models.Task, error)

	// Resolve stamps the resolver only if the task is still open; applied
	// is false when it was already resolved.
	Resolve(ctx context.Context, id, actorID int64, at time.Time) (applied bool, err error)
	Assign(ctx context.Context, id int64, assigneeID *int64) (applied bool, err error)
	// ResolveOpenResponses closes every open response task whose
	// communication currently belongs to the request.
	ResolveOpenResponses(ctx context.Context, requestID, actorID int64, at time.Time) (int64, error)
}

const taskColumns = `id, kind, resolved, assigned_id, resolved_by_id, date_done, created_by_id,
	created_at, request_id, communication_id, agency_id, payload`

type taskRepository struct{ base }

func (r *taskRepository) Create(ctx context.Context, t *models.Task) error {
	if t.Payload != nil && t.Payload.Kind() != t.Kind {
		return fmt.Errorf("payload kind %s does not match task kind %s", t.Payload.Kind(), t.Kind)
	}
	raw, err := models.EncodePayload(t.Payload)
	if err != nil {
		return fmt.Errorf("encoding task payload: %w", err)
	}
	t.RawPayload = raw
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, `
		INSERT INTO tasks (
			kind, resolved, assigned_id, created_by_id, created_at,
			request_id, communication_id, agency_id, payload
		) VALUES (?, FALSE, ?, ?, ?, ?, ?, ?, ?)`,
		t.Kind, t.AssignedID, t.CreatedByID, t.CreatedAt,
		t.RequestID, t.CommunicationID, t.AgencyID, t.RawPayload,
	)
	if err != nil {
		return fmt.Errorf("creating %s task: %w", t.Kind, err)
	}
	t.ID = id
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return r.one(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
}

func (r *taskRepository) GetForUpdate(ctx context.Context, id int64) (*models.Task, error) {
	return r.one(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?"+r.forUpdate(), id)
}

func (r *taskRepository) one(ctx context.Context, query string, id int64) (*models.Task, error) {
	var t models.Task
	if err := r.get(ctx, &t, query, id); err != nil {
		return nil, err
	}
	if err := decodeTask(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeTask(t *models.Task) error {
	p, err := models.DecodePayload(t.Kind, t.RawPayload)
	if err != nil {
		return fmt.Errorf("task %d: %w", t.ID, err)
	}
	t.Payload = p
	return nil
}

func (r *taskRepository) List(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var conditions []string
	var args []any
	if f.Kind != nil {
		conditions = append(conditions, "kind = ?")
		args = append(args, *f.Kind)
	}
	if f.Resolved != nil {
		if *f.Resolved {
			conditions = append(conditions, "resolved = TRUE")
		} else {
			conditions = append(conditions, "resolved = FALSE")
		}
	}
	if f.AssignedID != nil {
		conditions = append(conditions, "assigned_id = ?")
		args = append(args, *f.AssignedID)
	}
	if f.RequestID != nil {
		conditions = append(conditions, "request_id = ?")
		args = append(args, *f.RequestID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var out []models.Task
	if err := r.sel(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	for i := range out {
		if err := decodeTask(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *taskRepository) Resolve(ctx context.Context, id, actorID int64, at time.Time) (bool, error) {
	n, err := r.exec(ctx,
		"UPDATE tasks SET resolved = TRUE, resolved_by_id = ?, date_done = ? WHERE id = ? AND resolved = FALSE",
		actorID, at, id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *taskRepository) Assign(ctx context.Context, id int64, assigneeID *int64) (bool, error) {
	n, err := r.exec(ctx, "UPDATE tasks SET assigned_id = ? WHERE id = ? AND resolved = FALSE", assigneeID, id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *taskRepository) ResolveOpenResponses(ctx context.Context, requestID, actorID int64, at time.Time) (int64, error) {
	return r.exec(ctx, `
		UPDATE tasks SET resolved = TRUE, resolved_by_id = ?, date_done = ?
		WHERE kind = ? AND resolved = FALSE
			AND communication_id IN (SELECT id FROM communications WHERE request_id = ?)`,
		actorID, at, models.TaskResponse, requestID)
}
