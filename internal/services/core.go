package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/config"
	"recordsdesk/internal/delivery"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

// Deps are the collaborators shared by the request-facing services.
type Deps struct {
	Store     *repositories.Store
	Gateway   delivery.Gateway
	Notifier  Notifier
	Announcer TaskAnnouncer
	Lifecycle config.LifecycleConfig
	Delivery  config.DeliveryConfig
	FilesRoot string
	Now       func() time.Time
}

// core holds the steps several services share: dispatching correspondence,
// applying status changes and queueing tasks.
type core struct {
	Deps
	quota Entitlements
}

func newCore(d Deps) *core {
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if d.Announcer == nil {
		d.Announcer = Announcers{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Lifecycle.ResponseDays == 0 {
		d.Lifecycle.ResponseDays = 20
	}
	if d.Lifecycle.EmbargoGraceDays == 0 {
		d.Lifecycle.EmbargoGraceDays = 30
	}
	return &core{Deps: d, quota: NewEntitlements(d.Store)}
}

func (c *core) now() time.Time { return c.Now().UTC() }

// ResolveActor loads the account behind userID with its entitlements.
// userID 0 is an anonymous visitor.
func (c *core) ResolveActor(ctx context.Context, userID int64, accessKey string) (authz.Actor, error) {
	if userID == 0 {
		return authz.Actor{AccessKey: accessKey}, nil
	}
	u, err := c.Store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return authz.Actor{}, notFound(err, "user", userID)
	}
	a := authz.Actor{
		UserID:         u.ID,
		RoleID:         u.RoleID,
		CanEmbargo:     u.CanEmbargo,
		CanEmbargoPerm: u.CanEmbargoPerm,
		AccessKey:      accessKey,
	}
	if u.AgencyID != nil {
		a.AgencyID = *u.AgencyID
	}
	return a, nil
}

// target loads a request (locked when lock is set) with its jurisdiction.
func (c *core) target(ctx context.Context, r *repositories.Repos, id int64, lock bool) (*models.Request, authz.Target, error) {
	var req *models.Request
	var err error
	if lock {
		req, err = r.Requests.GetForUpdate(ctx, id)
	} else {
		req, err = r.Requests.GetByID(ctx, id)
	}
	if err != nil {
		return nil, authz.Target{}, notFound(err, "request", id)
	}
	j, err := r.Jurisdictions.GetByID(ctx, req.JurisdictionID)
	if err != nil {
		j = &models.Jurisdiction{ID: req.JurisdictionID}
	}
	return req, authz.Target{Request: req, Jurisdiction: j, Now: c.now()}, nil
}

func (c *core) replyAddress(requestID int64) string {
	if c.Delivery.ReplyDomain == "" {
		return ""
	}
	return fmt.Sprintf("%s+%d@%s", c.Delivery.ReplyPrefix, requestID, c.Delivery.ReplyDomain)
}

// snail-mail categories
const (
	mailNew      = "n"
	mailFollowUp = "f"
	mailAppeal   = "a"
)

// dispatch hands comm to the gateway as the last step of a transition.
// Correspondence for an agency still pending approval is held (left pending
// with no receipt) and released when the agency is approved.
func (c *core) dispatch(ctx context.Context, r *repositories.Repos, req *models.Request, comm *models.Communication, category string) ([]models.Task, error) {
	agency, err := r.Agencies.GetByID(ctx, req.AgencyID)
	if err != nil {
		return nil, notFound(err, "agency", req.AgencyID)
	}
	if agency.Status == models.AgencyPending {
		log.Printf("[delivery][hold] comm=%d agency=%d pending approval", comm.ID, agency.ID)
		return nil, nil
	}

	files, err := r.Files.ListByCommunication(ctx, comm.ID)
	if err != nil {
		return nil, err
	}
	out := delivery.Outbound{
		CommunicationID: comm.ID,
		RequestID:       req.ID,
		Channel:         comm.Channel,
		Address:         comm.Address,
		RecipientName:   agency.Name,
		Subject:         comm.Subject,
		Body:            comm.Body,
		ReplyTo:         c.replyAddress(req.ID),
	}
	for _, f := range files {
		out.Attachments = append(out.Attachments, delivery.Attachment{
			Name: f.Name,
			Path: filepath.Join(c.FilesRoot, filepath.FromSlash(f.Path)),
		})
	}

	rc, err := c.Gateway.Send(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	comm.Receipt = rc.ID
	comm.Status = rc.Status
	if err := r.Communications.UpdateDelivery(ctx, comm); err != nil {
		return nil, err
	}

	if comm.Channel != models.ChannelMail {
		return nil, nil
	}
	task := &models.Task{
		Kind:            models.TaskSnailMail,
		RequestID:       &req.ID,
		CommunicationID: &comm.ID,
		Payload: models.SnailMailPayload{
			Category:    category,
			AmountCents: req.PriceCents,
			LetterPath:  rc.Artifact,
		},
	}
	if err := r.Tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return []models.Task{*task}, nil
}

// setStatus moves req to next and keeps the date and embargo invariants:
// entering a terminal status stamps the completion date and gives an
// open-ended embargo an expiry; reopening clears them.
func (c *core) setStatus(req *models.Request, next models.RequestStatus) {
	now := c.now()
	req.Status = next
	if next.IsTerminal() {
		if req.DateDone == nil {
			req.DateDone = &now
		}
		if req.Embargo && !req.PermanentEmbargo && req.DateEmbargo == nil {
			until := now.AddDate(0, 0, c.Lifecycle.EmbargoGraceDays)
			req.DateEmbargo = &until
		}
		return
	}
	req.DateDone = nil
	if req.Embargo && !req.PermanentEmbargo {
		req.DateEmbargo = nil
	}
}

// applyStatusChange is the generic change-status path: it records exactly
// one status_change task and closes every open response task of the request
// with the actor as resolver.
func (c *core) applyStatusChange(ctx context.Context, r *repositories.Repos, actor authz.Actor, req *models.Request, next models.RequestStatus) (*models.Task, error) {
	old := req.Status
	c.setStatus(req, next)
	if err := r.Requests.Update(ctx, req); err != nil {
		return nil, err
	}

	uid := actor.UserID
	task := &models.Task{
		Kind:        models.TaskStatusChange,
		RequestID:   &req.ID,
		CreatedByID: &uid,
		Payload:     models.StatusChangePayload{Old: old, New: next},
	}
	if err := r.Tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	n, err := r.Tasks.ResolveOpenResponses(ctx, req.ID, actor.UserID, c.now())
	if err != nil {
		return nil, err
	}
	log.Printf("[request][change_status][ok] id=%d %s->%s by=%d task=%d responses_resolved=%d",
		req.ID, old, next, actor.UserID, task.ID, n)
	return task, nil
}

// moveComm reassigns comm to the first destination and clones it, with its
// file rows, onto every further destination.
func (c *core) moveComm(ctx context.Context, r *repositories.Repos, comm *models.Communication, destIDs []int64) ([]models.Communication, error) {
	if len(destIDs) == 0 {
		return nil, invalid("at least one destination request is required")
	}
	seen := map[int64]bool{}
	var ids []int64
	for _, id := range destIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	found, err := r.Requests.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		have := map[int64]bool{}
		for _, q := range found {
			have[q.ID] = true
		}
		for _, id := range ids {
			if !have[id] {
				return nil, fmt.Errorf("%w: request %d", ErrNotFound, id)
			}
		}
	}

	files, err := r.Files.ListByCommunication(ctx, comm.ID)
	if err != nil {
		return nil, err
	}
	if err := r.Communications.SetRequest(ctx, comm.ID, ids[0]); err != nil {
		return nil, err
	}
	first := *comm
	first.RequestID = &ids[0]
	moved := []models.Communication{first}

	for _, id := range ids[1:] {
		dest := id
		clone := *comm
		clone.ID = 0
		clone.RequestID = &dest
		if err := r.Communications.Create(ctx, &clone); err != nil {
			return nil, err
		}
		for _, f := range files {
			fc := f
			fc.ID = 0
			fc.CommunicationID = clone.ID
			if err := r.Files.Create(ctx, &fc); err != nil {
				return nil, err
			}
		}
		moved = append(moved, clone)
	}
	log.Printf("[comm][move][ok] id=%d to=%v", comm.ID, ids)
	return moved, nil
}

func (c *core) announce(tasks []models.Task) {
	for _, t := range tasks {
		c.Announcer.Announce(t)
	}
}

func (c *core) requireStaff(actor authz.Actor) error {
	if !actor.IsStaff() {
		return fmt.Errorf("%w: staff only", ErrForbidden)
	}
	return nil
}

func (c *core) requireCap(actor authz.Actor, t authz.Target, want authz.Capability) error {
	if !authz.Can(actor, t, want) {
		return fmt.Errorf("%w: missing %s on request %d", ErrForbidden, want, t.Request.ID)
	}
	return nil
}
