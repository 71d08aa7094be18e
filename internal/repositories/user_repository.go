package repositories

import (
	"context"
	"fmt"
	"time"

	"recordsdesk/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListByRole(ctx context.Context, roleID int) ([]models.User, error)

	// DecrementAllotment consumes one request; applied is false when the
	// user had none left.
	DecrementAllotment(ctx context.Context, userID int64) (applied bool, err error)
	AddAllotment(ctx context.Context, userID int64, n int) error
	SetEntitlements(ctx context.Context, userID int64, canEmbargo, canEmbargoPerm bool) error
}

const userColumns = `id, username, email, password_hash, role_id, agency_id, created_at,
	requests_remaining, can_embargo, can_embargo_perm`

type userRepository struct{ base }

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, `
		INSERT INTO users (
			username, email, password_hash, role_id, agency_id, created_at,
			requests_remaining, can_embargo, can_embargo_perm
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.RoleID, u.AgencyID, u.CreatedAt,
		u.RequestsRemaining, u.CanEmbargo, u.CanEmbargoPerm,
	)
	if err != nil {
		return fmt.Errorf("creating user %q: %w", u.Username, err)
	}
	u.ID = id
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := r.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE username = ?", username); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) ListByRole(ctx context.Context, roleID int) ([]models.User, error) {
	var out []models.User
	err := r.sel(ctx, &out, "SELECT "+userColumns+" FROM users WHERE role_id = ? ORDER BY id", roleID)
	return out, err
}

func (r *userRepository) DecrementAllotment(ctx context.Context, userID int64) (bool, error) {
	n, err := r.exec(ctx,
		"UPDATE users SET requests_remaining = requests_remaining - 1 WHERE id = ? AND requests_remaining > 0",
		userID)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *userRepository) AddAllotment(ctx context.Context, userID int64, n int) error {
	return r.execOne(ctx, "UPDATE users SET requests_remaining = requests_remaining + ? WHERE id = ?", n, userID)
}

func (r *userRepository) SetEntitlements(ctx context.Context, userID int64, canEmbargo, canEmbargoPerm bool) error {
	return r.execOne(ctx, "UPDATE users SET can_embargo = ?, can_embargo_perm = ? WHERE id = ?",
		canEmbargo, canEmbargoPerm, userID)
}
