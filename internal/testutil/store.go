package testutil

import (
	"context"
	"testing"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

// NewTestStore creates an in-memory SQLite store with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *repositories.Store {
	t.Helper()

	s, err := repositories.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Fixture is a small world: one jurisdiction, one approved agency with an
// email address and its service account, an owner, an editor, a viewer and
// a staff member.
type Fixture struct {
	Jurisdiction *models.Jurisdiction
	Agency       *models.Agency
	AgencyUser   *models.User
	Owner        *models.User
	Editor       *models.User
	Viewer       *models.User
	Staff        *models.User
}

func Seed(t *testing.T, s *repositories.Store) *Fixture {
	t.Helper()
	ctx := context.Background()
	r := s.Repos()

	f := &Fixture{
		Jurisdiction: &models.Jurisdiction{Name: "Springfield", Days: 10, AppealsAllowed: true},
	}
	must(t, r.Jurisdictions.Create(ctx, f.Jurisdiction))

	f.Agency = &models.Agency{
		Name:           "Springfield Police Department",
		JurisdictionID: f.Jurisdiction.ID,
		Status:         models.AgencyApproved,
		Email:          "records@spd.example.gov",
	}
	must(t, r.Agencies.Create(ctx, f.Agency))

	f.Owner = User(t, s, "owner", authz.RoleBasic, 3)
	f.Editor = User(t, s, "editor", authz.RoleBasic, 0)
	f.Viewer = User(t, s, "viewer", authz.RoleBasic, 0)
	f.Staff = User(t, s, "staff", authz.RoleStaff, 0)

	agencyID := f.Agency.ID
	f.AgencyUser = &models.User{Username: "spd", Email: "records@spd.example.gov", RoleID: authz.RoleAgency, AgencyID: &agencyID}
	must(t, r.Users.Create(ctx, f.AgencyUser))
	return f
}

// User inserts an account with the given role and request allotment.
func User(t *testing.T, s *repositories.Store, name string, role, remaining int) *models.User {
	t.Helper()
	u := &models.User{
		Username:          name,
		Email:             name + "@example.org",
		RoleID:            role,
		RequestsRemaining: remaining,
	}
	must(t, s.Repos().Users.Create(context.Background(), u))
	return u
}

// Actor builds the authz actor for u.
func Actor(u *models.User) authz.Actor {
	a := authz.Actor{
		UserID:         u.ID,
		RoleID:         u.RoleID,
		CanEmbargo:     u.CanEmbargo,
		CanEmbargoPerm: u.CanEmbargoPerm,
	}
	if u.AgencyID != nil {
		a.AgencyID = *u.AgencyID
	}
	return a
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seeding fixture: %v", err)
	}
}
