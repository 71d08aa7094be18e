package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

// AuthService checks credentials and manages accounts.
type AuthService interface {
	HashPassword(password string) (string, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	CreateUser(ctx context.Context, actor authz.Actor, in NewUserInput) (*models.User, error)
}

type NewUserInput struct {
	Username          string `json:"username" binding:"required"`
	Email             string `json:"email"`
	Password          string `json:"password" binding:"required"`
	RoleID            int    `json:"role_id"`
	AgencyID          *int64 `json:"agency_id"`
	RequestsRemaining int    `json:"requests_remaining"`
}

type authService struct {
	store *repositories.Store
}

func NewAuthService(store *repositories.Store) AuthService {
	return &authService{store: store}
}

func (s *authService) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *authService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	u, err := s.store.Repos().Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Printf("[auth][login][fail] unknown user=%q", username)
			return nil, ErrBadLogin
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		log.Printf("[auth][login][fail] user=%d has no password", u.ID)
		return nil, ErrBadLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Printf("[auth][login][fail] user=%d bcrypt mismatch", u.ID)
		return nil, ErrBadLogin
	}
	log.Printf("[auth][login][ok] user=%d role=%d", u.ID, u.RoleID)
	return u, nil
}

// CreateUser registers an account. Staff create every account, including the
// service accounts agencies use to reply.
func (s *authService) CreateUser(ctx context.Context, actor authz.Actor, in NewUserInput) (*models.User, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: staff only", ErrForbidden)
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || strings.TrimSpace(in.Password) == "" {
		return nil, invalid("username and password are required")
	}
	if in.RoleID == 0 {
		in.RoleID = authz.RoleBasic
	}
	if !authz.ValidRole(in.RoleID) {
		return nil, invalid("unknown role %d", in.RoleID)
	}
	if authz.IsAgency(in.RoleID) != (in.AgencyID != nil) {
		return nil, invalid("agency accounts, and only they, need agency_id")
	}
	if in.RequestsRemaining < 0 {
		return nil, invalid("requests_remaining must not be negative")
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:          in.Username,
		Email:             strings.TrimSpace(in.Email),
		PasswordHash:      hash,
		RoleID:            in.RoleID,
		AgencyID:          in.AgencyID,
		RequestsRemaining: in.RequestsRemaining,
	}
	err = s.store.InTx(ctx, func(r *repositories.Repos) error {
		if _, err := r.Users.GetByUsername(ctx, u.Username); err == nil {
			return invalid("username %q is taken", u.Username)
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		if u.AgencyID != nil {
			if _, err := r.Agencies.GetByID(ctx, *u.AgencyID); err != nil {
				return notFound(err, "agency", *u.AgencyID)
			}
		}
		return r.Users.Create(ctx, u)
	})
	if err != nil {
		log.Printf("[user][create][err] username=%q err=%v", in.Username, err)
		return nil, err
	}
	log.Printf("[user][create][ok] id=%d role=%d by=%d", u.ID, u.RoleID, actor.UserID)
	return u, nil
}

// Entitlements is the billing-side view of an account: how many requests it
// may still submit and whether it may embargo them.
type Entitlements interface {
	HasAllotment(ctx context.Context, userID int64) (bool, error)
	DecrementAllotment(ctx context.Context, r *repositories.Repos, userID int64) error
	Grant(ctx context.Context, actor authz.Actor, userID int64, in GrantInput) (*models.User, error)
}

type GrantInput struct {
	AddRequests    int   `json:"add_requests"`
	CanEmbargo     *bool `json:"can_embargo"`
	CanEmbargoPerm *bool `json:"can_embargo_perm"`
}

type entitlements struct {
	store *repositories.Store
}

func NewEntitlements(store *repositories.Store) Entitlements {
	return &entitlements{store: store}
}

func (e *entitlements) HasAllotment(ctx context.Context, userID int64) (bool, error) {
	u, err := e.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return false, notFound(err, "user", userID)
	}
	return u.RequestsRemaining > 0, nil
}

// DecrementAllotment spends one request inside the caller's transaction.
func (e *entitlements) DecrementAllotment(ctx context.Context, r *repositories.Repos, userID int64) error {
	applied, err := r.Users.DecrementAllotment(ctx, userID)
	if err != nil {
		return err
	}
	if !applied {
		return ErrNoAllotment
	}
	return nil
}

func (e *entitlements) Grant(ctx context.Context, actor authz.Actor, userID int64, in GrantInput) (*models.User, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: staff only", ErrForbidden)
	}
	if in.AddRequests < 0 {
		return nil, invalid("add_requests must not be negative")
	}
	var out *models.User
	err := e.store.InTx(ctx, func(r *repositories.Repos) error {
		u, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return notFound(err, "user", userID)
		}
		if in.AddRequests > 0 {
			if err := r.Users.AddAllotment(ctx, userID, in.AddRequests); err != nil {
				return err
			}
		}
		embargo, perm := u.CanEmbargo, u.CanEmbargoPerm
		if in.CanEmbargo != nil {
			embargo = *in.CanEmbargo
		}
		if in.CanEmbargoPerm != nil {
			perm = *in.CanEmbargoPerm
		}
		if embargo != u.CanEmbargo || perm != u.CanEmbargoPerm {
			if err := r.Users.SetEntitlements(ctx, userID, embargo, perm); err != nil {
				return err
			}
		}
		out, err = r.Users.GetByID(ctx, userID)
		return err
	})
	if err != nil {
		log.Printf("[user][grant][err] id=%d err=%v", userID, err)
		return nil, err
	}
	log.Printf("[user][grant][ok] id=%d remaining=%d embargo=%v perm=%v by=%d",
		userID, out.RequestsRemaining, out.CanEmbargo, out.CanEmbargoPerm, actor.UserID)
	return out, nil
}
