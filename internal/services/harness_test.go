package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/config"
	"recordsdesk/internal/delivery"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
	"recordsdesk/internal/testutil"
)

type fakeGateway struct {
	mu   sync.Mutex
	sent []delivery.Outbound
	err  error
}

func (g *fakeGateway) Send(_ context.Context, out delivery.Outbound) (delivery.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return delivery.Receipt{}, g.err
	}
	g.sent = append(g.sent, out)
	return delivery.Receipt{
		ID:     fmt.Sprintf("rc-%d-%d", out.CommunicationID, len(g.sent)),
		Status: models.DeliveryPending,
	}, nil
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type taskLog struct {
	mu    sync.Mutex
	tasks []models.Task
}

func (l *taskLog) Announce(t models.Task) {
	l.mu.Lock()
	l.tasks = append(l.tasks, t)
	l.mu.Unlock()
}

func (l *taskLog) ofKind(k models.TaskKind) []models.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Task
	for _, t := range l.tasks {
		if t.Kind == k {
			out = append(out, t)
		}
	}
	return out
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	store *repositories.Store
	fx    *testutil.Fixture
	gw    *fakeGateway
	log   *taskLog
	deps  Deps

	life  LifecycleService
	tasks TaskService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := testutil.NewTestStore(t)
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		store: store,
		fx:    testutil.Seed(t, store),
		gw:    &fakeGateway{},
		log:   &taskLog{},
	}
	h.deps = Deps{
		Store:     store,
		Gateway:   h.gw,
		Announcer: h.log,
		Delivery:  config.DeliveryConfig{ReplyDomain: "desk.example", ReplyPrefix: "requests"},
		FilesRoot: t.TempDir(),
	}
	h.life = NewLifecycleService(h.deps)
	h.tasks = NewTaskService(h.deps)
	return h
}

func (h *harness) owner() authz.Actor  { return testutil.Actor(h.fx.Owner) }
func (h *harness) staff() authz.Actor  { return testutil.Actor(h.fx.Staff) }
func (h *harness) agency() authz.Actor { return testutil.Actor(h.fx.AgencyUser) }

func (h *harness) draft(actor authz.Actor, title string) *models.Request {
	h.t.Helper()
	req, err := h.life.CreateDraft(h.ctx, actor, DraftInput{Title: title, Body: "All records about " + title, AgencyID: h.fx.Agency.ID})
	if err != nil {
		h.t.Fatalf("CreateDraft: %v", err)
	}
	return req
}

func (h *harness) submitted(title string) *models.Request {
	h.t.Helper()
	req := h.draft(h.owner(), title)
	out, err := h.life.Submit(h.ctx, h.owner(), req.ID)
	if err != nil {
		h.t.Fatalf("Submit: %v", err)
	}
	return out
}

// answered submits a draft and posts an agency reply moving it to status.
func (h *harness) answered(title string, status models.RequestStatus) *models.Request {
	h.t.Helper()
	req := h.submitted(title)
	if _, err := h.life.AgencyReply(h.ctx, h.agency(), req.ID, AgencyReplyInput{Text: "Update on " + title, Status: status}); err != nil {
		h.t.Fatalf("AgencyReply: %v", err)
	}
	return h.request(req.ID)
}

func (h *harness) request(id int64) *models.Request {
	h.t.Helper()
	req, err := h.store.Repos().Requests.GetByID(h.ctx, id)
	if err != nil {
		h.t.Fatalf("load request %d: %v", id, err)
	}
	return req
}

func (h *harness) comms(id int64) []models.Communication {
	h.t.Helper()
	cs, err := h.store.Repos().Communications.ListByRequest(h.ctx, id)
	if err != nil {
		h.t.Fatalf("list communications: %v", err)
	}
	return cs
}

func (h *harness) openTasks(requestID int64, kind models.TaskKind) []models.Task {
	h.t.Helper()
	open := false
	ts, err := h.store.Repos().Tasks.List(h.ctx, models.TaskFilter{RequestID: &requestID, Kind: &kind, Resolved: &open})
	if err != nil {
		h.t.Fatalf("list tasks: %v", err)
	}
	return ts
}

func (h *harness) user(id int64) *models.User {
	h.t.Helper()
	u, err := h.store.Repos().Users.GetByID(h.ctx, id)
	if err != nil {
		h.t.Fatalf("load user %d: %v", id, err)
	}
	return u
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func ptrTime(t time.Time) *time.Time { return &t }
