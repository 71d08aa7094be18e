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

// LifecycleService owns request status, correspondence and access grants.
// Every mutating call runs in one transaction over a locked request row.
type LifecycleService interface {
	ResolveActor(ctx context.Context, userID int64, accessKey string) (authz.Actor, error)

	CreateDraft(ctx context.Context, actor authz.Actor, in DraftInput) (*models.Request, error)
	Clone(ctx context.Context, actor authz.Actor, parentID int64) (*models.Request, error)
	UpdateDraft(ctx context.Context, actor authz.Actor, id int64, in DraftEdit) (*models.Request, error)
	DeleteDraft(ctx context.Context, actor authz.Actor, id int64) error
	Get(ctx context.Context, actor authz.Actor, id int64) (*RequestDetail, error)
	List(ctx context.Context, actor authz.Actor, f models.RequestFilter) ([]models.Request, error)

	Submit(ctx context.Context, actor authz.Actor, id int64) (*models.Request, error)
	SubmitMulti(ctx context.Context, actor authz.Actor, ids []int64) ([]int64, error)
	ChangeStatus(ctx context.Context, actor authz.Actor, id int64, in ChangeStatusInput) (*models.Request, error)
	AgencyReply(ctx context.Context, actor authz.Actor, id int64, in AgencyReplyInput) (*models.Communication, error)

	FollowUp(ctx context.Context, actor authz.Actor, id int64, in FollowUpInput) (*models.Communication, error)
	Thank(ctx context.Context, actor authz.Actor, id int64, text string) (*models.Communication, error)
	Appeal(ctx context.Context, actor authz.Actor, id int64, text string) (*models.Communication, error)
	Resend(ctx context.Context, actor authz.Actor, commID int64, in ResendInput) (*models.Communication, error)
	MoveCommunication(ctx context.Context, actor authz.Actor, commID int64, destIDs []int64) ([]models.Communication, error)
	DeleteCommunication(ctx context.Context, actor authz.Actor, commID int64) error
	SetCommunicationStatus(ctx context.Context, actor authz.Actor, commID int64, status models.DeliveryStatus) error

	Flag(ctx context.Context, actor authz.Actor, id int64, text string) (*models.Task, error)
	AddNote(ctx context.Context, actor authz.Actor, id int64, text string) (*models.Note, error)
	UpdatePendingAgency(ctx context.Context, actor authz.Actor, id int64, in NewAgencyInput) (*models.Agency, error)
	ContactUser(ctx context.Context, actor authz.Actor, id int64, text string) error
	UpdateEmbargo(ctx context.Context, actor authz.Actor, id int64, in EmbargoInput) (*models.Request, error)
	UpdateEstimate(ctx context.Context, actor authz.Actor, id int64, estimate time.Time) (*models.Request, error)
	GenerateAccessKey(ctx context.Context, actor authz.Actor, id int64) (string, error)
	GrantAccess(ctx context.Context, actor authz.Actor, id int64, userIDs []int64, level string) error
	RevokeAccess(ctx context.Context, actor authz.Actor, id int64, userID int64) error
	Promote(ctx context.Context, actor authz.Actor, id int64, userID int64) error
	Demote(ctx context.Context, actor authz.Actor, id int64, userID int64) error
}

type NewAgencyInput struct {
	Name           string `json:"name"`
	JurisdictionID int64  `json:"jurisdiction_id"`
	Email          string `json:"email"`
	Fax            string `json:"fax"`
	Address        string `json:"address"`
	PortalURL      string `json:"portal_url"`
}

type DraftInput struct {
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	AgencyID  int64           `json:"agency_id"`
	NewAgency *NewAgencyInput `json:"new_agency"`
	Embargo   bool            `json:"embargo"`
}

// DraftEdit changes the fields it carries and leaves nil ones alone.
type DraftEdit struct {
	Title   *string `json:"title"`
	Body    *string `json:"body"`
	Embargo *bool   `json:"embargo"`
}

type ChangeStatusInput struct {
	Status     models.RequestStatus `json:"status"`
	PriceCents *int64               `json:"price_cents"`
}

type AgencyReplyInput struct {
	Text         string               `json:"text"`
	Status       models.RequestStatus `json:"status"`
	PriceCents   *int64               `json:"price_cents"`
	TrackingID   string               `json:"tracking_id"`
	DateEstimate *time.Time           `json:"date_estimate"`
}

type FollowUpInput struct {
	Text    string         `json:"text"`
	Channel models.Channel `json:"channel"`
	Address string         `json:"address"`
}

type ResendInput struct {
	Channel models.Channel `json:"channel"`
	Address string         `json:"address"`
}

type EmbargoInput struct {
	Embargo   bool       `json:"embargo"`
	Permanent bool       `json:"permanent"`
	Until     *time.Time `json:"until"`
}

// RequestDetail is a request with its correspondence thread. Notes are
// only filled in for actors who may change the request.
type RequestDetail struct {
	Request        *models.Request        `json:"request"`
	Communications []models.Communication `json:"communications"`
	Appeals        []models.Appeal        `json:"appeals"`
	Notes          []models.Note          `json:"notes,omitempty"`
	PastDue        bool                   `json:"past_due"`
	StatusLabel    string                 `json:"status_label"`
}

type lifecycleService struct {
	*core
}

func NewLifecycleService(d Deps) LifecycleService {
	return &lifecycleService{core: newCore(d)}
}

// mutate runs fn over the locked request inside a transaction and announces
// the tasks it queued once the transaction has committed.
func (s *lifecycleService) mutate(ctx context.Context, id int64, fn func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error)) error {
	var tasks []models.Task
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		req, t, err := s.target(ctx, r, id, true)
		if err != nil {
			return err
		}
		tasks, err = fn(r, req, t)
		return err
	})
	if err != nil {
		return err
	}
	s.announce(tasks)
	return nil
}

func (s *lifecycleService) CreateDraft(ctx context.Context, actor authz.Actor, in DraftInput) (*models.Request, error) {
	if actor.Anonymous() {
		return nil, fmt.Errorf("%w: login required", ErrForbidden)
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, invalid("title is required")
	}
	if in.Embargo && !actor.CanEmbargo && !actor.CanEmbargoPerm && !actor.IsStaff() {
		return nil, fmt.Errorf("%w: embargo not included in your plan", ErrForbidden)
	}

	req := &models.Request{
		Title:   in.Title,
		Body:    in.Body,
		Status:  models.StatusStarted,
		UserID:  actor.UserID,
		Embargo: in.Embargo,
	}
	var agency *models.Agency
	var proposer *models.User
	var tasks []models.Task

	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		var err error
		switch {
		case in.NewAgency != nil:
			na := in.NewAgency
			if strings.TrimSpace(na.Name) == "" {
				return invalid("new agency name is required")
			}
			if _, err := r.Jurisdictions.GetByID(ctx, na.JurisdictionID); err != nil {
				return notFound(err, "jurisdiction", na.JurisdictionID)
			}
			agency = &models.Agency{
				Name:           strings.TrimSpace(na.Name),
				JurisdictionID: na.JurisdictionID,
				Status:         models.AgencyPending,
				Email:          na.Email,
				Fax:            na.Fax,
				Address:        na.Address,
				PortalURL:      na.PortalURL,
			}
			if err := r.Agencies.Create(ctx, agency); err != nil {
				return err
			}
		case in.AgencyID != 0:
			if agency, err = r.Agencies.GetByID(ctx, in.AgencyID); err != nil {
				return notFound(err, "agency", in.AgencyID)
			}
		default:
			return invalid("agency_id or new_agency is required")
		}

		req.AgencyID = agency.ID
		req.JurisdictionID = agency.JurisdictionID
		if err := r.Requests.Create(ctx, req); err != nil {
			return err
		}

		if in.NewAgency != nil {
			uid := actor.UserID
			task := &models.Task{
				Kind:        models.TaskNewAgency,
				AgencyID:    &agency.ID,
				RequestID:   &req.ID,
				CreatedByID: &uid,
				Payload:     models.NewAgencyPayload{ProposedName: agency.Name},
			}
			if err := r.Tasks.Create(ctx, task); err != nil {
				return err
			}
			tasks = append(tasks, *task)
			if proposer, err = r.Users.GetByID(ctx, actor.UserID); err != nil {
				return notFound(err, "user", actor.UserID)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[request][create][err] user=%d err=%v", actor.UserID, err)
		return nil, err
	}
	log.Printf("[request][create][ok] id=%d user=%d agency=%d", req.ID, actor.UserID, req.AgencyID)

	s.announce(tasks)
	if proposer != nil {
		s.Notifier.AgencyCreated(ctx, agency, req, proposer)
	}
	return req, nil
}

func (s *lifecycleService) Clone(ctx context.Context, actor authz.Actor, parentID int64) (*models.Request, error) {
	if actor.Anonymous() {
		return nil, fmt.Errorf("%w: login required", ErrForbidden)
	}
	var clone *models.Request
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		parent, t, err := s.target(ctx, r, parentID, false)
		if err != nil {
			return err
		}
		if err := s.requireCap(actor, t, authz.CapView); err != nil {
			return err
		}
		pid := parent.ID
		clone = &models.Request{
			Title:          parent.Title,
			Body:           parent.Body,
			Status:         models.StatusStarted,
			UserID:         actor.UserID,
			AgencyID:       parent.AgencyID,
			JurisdictionID: parent.JurisdictionID,
			ParentID:       &pid,
			Embargo:        parent.Embargo && (actor.CanEmbargo || actor.IsStaff()),
		}
		return r.Requests.Create(ctx, clone)
	})
	if err != nil {
		log.Printf("[request][clone][err] parent=%d user=%d err=%v", parentID, actor.UserID, err)
		return nil, err
	}
	log.Printf("[request][clone][ok] parent=%d id=%d", parentID, clone.ID)
	return clone, nil
}

// UpdateDraft edits a request the owner has not submitted yet.
func (s *lifecycleService) UpdateDraft(ctx context.Context, actor authz.Actor, id int64, in DraftEdit) (*models.Request, error) {
	var out *models.Request
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if req.UserID != actor.UserID && !actor.IsStaff() {
			return nil, fmt.Errorf("%w: only the owner may edit a draft", ErrForbidden)
		}
		if req.Status != models.StatusStarted {
			return nil, fmt.Errorf("%w: request %d is %s", ErrNoop, id, req.Status)
		}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return nil, invalid("title is required")
			}
			req.Title = title
		}
		if in.Body != nil {
			req.Body = *in.Body
		}
		if in.Embargo != nil {
			if *in.Embargo && !req.Embargo && !actor.CanEmbargo && !actor.CanEmbargoPerm && !actor.IsStaff() {
				return nil, fmt.Errorf("%w: embargo not included in your plan", ErrForbidden)
			}
			req.Embargo = *in.Embargo
			if !req.Embargo {
				req.PermanentEmbargo = false
				req.DateEmbargo = nil
			}
		}
		out = req
		return nil, r.Requests.Update(ctx, req)
	})
	if err != nil {
		log.Printf("[request][update_draft][err] id=%d err=%v", id, err)
		return nil, err
	}
	log.Printf("[request][update_draft][ok] id=%d by=%d", id, actor.UserID)
	return out, nil
}

func (s *lifecycleService) DeleteDraft(ctx context.Context, actor authz.Actor, id int64) error {
	err := s.mutate(ctx, id, func(r *repositories.Repos, req *models.Request, t authz.Target) ([]models.Task, error) {
		if req.UserID != actor.UserID && !actor.IsStaff() {
			return nil, fmt.Errorf("%w: only the owner may delete a draft", ErrForbidden)
		}
		if req.Status != models.StatusStarted {
			return nil, fmt.Errorf("%w: request %d is %s", ErrNoop, id, req.Status)
		}
		return nil, r.Requests.Delete(ctx, id)
	})
	if err != nil {
		log.Printf("[request][delete][err] id=%d err=%v", id, err)
		return err
	}
	log.Printf("[request][delete][ok] id=%d by=%d", id, actor.UserID)
	return nil
}

func (s *lifecycleService) Get(ctx context.Context, actor authz.Actor, id int64) (*RequestDetail, error) {
	r := s.Store.Repos()
	req, t, err := s.target(ctx, r, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.requireCap(actor, t, authz.CapView); err != nil {
		return nil, err
	}
	comms, err := r.Communications.ListByRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range comms {
		if comms[i].Files, err = r.Files.ListByCommunication(ctx, comms[i].ID); err != nil {
			return nil, err
		}
	}
	appeals, err := r.Appeals.ListByRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	var notes []models.Note
	if authz.Can(actor, t, authz.CapChange) {
		if notes, err = r.Notes.ListByRequest(ctx, id); err != nil {
			return nil, err
		}
	}
	return &RequestDetail{
		Request:        req,
		Communications: comms,
		Appeals:        appeals,
		Notes:          notes,
		PastDue:        req.PastDue(s.now()),
		StatusLabel:    req.Status.Label(),
	}, nil
}

// List shows staff anything they filter for; everyone else sees their own
// requests, and agency accounts the requests addressed to their agency.
func (s *lifecycleService) List(ctx context.Context, actor authz.Actor, f models.RequestFilter) ([]models.Request, error) {
	switch {
	case actor.IsStaff():
	case actor.Anonymous():
		return nil, fmt.Errorf("%w: login required", ErrForbidden)
	case authz.IsAgency(actor.RoleID):
		agencyID := actor.AgencyID
		f.AgencyID = &agencyID
		f.UserID = nil
		f.ExcludeDrafts = true
	default:
		uid := actor.UserID
		f.UserID = &uid
	}
	return s.Store.Repos().Requests.List(ctx, f)
}

func isNoop(err error) bool { return errors.Is(err, ErrNoop) }
