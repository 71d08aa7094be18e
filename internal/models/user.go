package models

import "time"

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	RoleID       int       `db:"role_id" json:"role_id"`
	AgencyID     *int64    `db:"agency_id" json:"agency_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	// entitlements
	RequestsRemaining int  `db:"requests_remaining" json:"requests_remaining"`
	CanEmbargo        bool `db:"can_embargo" json:"can_embargo"`
	CanEmbargoPerm    bool `db:"can_embargo_perm" json:"can_embargo_perm"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
