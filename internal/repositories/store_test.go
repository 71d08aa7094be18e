package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"recordsdesk/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newRequest(t *testing.T, r *Repos, title string) *models.Request {
	t.Helper()
	req := &models.Request{Title: title, Status: models.StatusStarted, UserID: 1, AgencyID: 1, JurisdictionID: 1}
	if err := r.Requests.Create(context.Background(), req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func TestMigrationsRecorded(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != migrations[len(migrations)-1].version {
		t.Fatalf("schema version = %d", v)
	}
	// re-running is a no-op
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRequestRoundTripWithAccess(t *testing.T) {
	ctx := context.Background()
	r := newTestStore(t).Repos()

	req := newRequest(t, r, "Use of force reports")
	if req.ID == 0 {
		t.Fatal("expected id")
	}
	if err := r.Requests.SetAccess(ctx, req.ID, 5, models.AccessEdit); err != nil {
		t.Fatal(err)
	}
	if err := r.Requests.SetAccess(ctx, req.ID, 6, models.AccessView); err != nil {
		t.Fatal(err)
	}
	// re-grant replaces the level
	if err := r.Requests.SetAccess(ctx, req.ID, 6, models.AccessEdit); err != nil {
		t.Fatal(err)
	}

	due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	req.Status = models.StatusSubmitted
	req.DateDue = &due
	req.PriceCents = 1250
	if err := r.Requests.Update(ctx, req); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := r.Requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusSubmitted || got.PriceCents != 1250 {
		t.Fatalf("got %+v", got)
	}
	if got.DateDue == nil || !got.DateDue.Equal(due) {
		t.Fatalf("date_due = %v, want %v", got.DateDue, due)
	}
	if len(got.EditorIDs) != 2 || len(got.ViewerIDs) != 0 {
		t.Fatalf("editors=%v viewers=%v", got.EditorIDs, got.ViewerIDs)
	}

	if _, err := r.Requests.GetByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing request err = %v", err)
	}
}

func TestCommunicationMoveAndDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestStore(t).Repos()
	a := newRequest(t, r, "A")
	b := newRequest(t, r, "B")

	comm := &models.Communication{RequestID: &a.ID, Direction: models.DirectionInbound, Channel: models.ChannelEmail, Body: "hello"}
	if err := r.Communications.Create(ctx, comm); err != nil {
		t.Fatal(err)
	}
	if err := r.Files.Create(ctx, &models.File{CommunicationID: comm.ID, Name: "x.pdf", Path: "1/x.pdf"}); err != nil {
		t.Fatal(err)
	}

	if err := r.Communications.SetRequest(ctx, comm.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	underA, _ := r.Communications.ListByRequest(ctx, a.ID)
	underB, _ := r.Communications.ListByRequest(ctx, b.ID)
	if len(underA) != 0 || len(underB) != 1 || underB[0].ID != comm.ID {
		t.Fatalf("after move: A=%d B=%d", len(underA), len(underB))
	}

	open := &models.Task{Kind: models.TaskResponse, CommunicationID: &comm.ID, Payload: models.ResponsePayload{}}
	done := &models.Task{Kind: models.TaskResponse, CommunicationID: &comm.ID, Payload: models.ResponsePayload{}}
	for _, task := range []*models.Task{open, done} {
		if err := r.Tasks.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.Tasks.Resolve(ctx, done.ID, 7, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	if err := r.Communications.Delete(ctx, comm.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := r.Tasks.GetByID(ctx, open.ID); got.CommunicationID != nil {
		t.Errorf("open task still points at deleted communication")
	}
	if got, _ := r.Tasks.GetByID(ctx, done.ID); got.CommunicationID == nil || *got.CommunicationID != comm.ID {
		t.Errorf("resolved task was rewritten: %v", got.CommunicationID)
	}
	files, err := r.Files.ListByCommunication(ctx, comm.ID)
	if err != nil || len(files) != 0 {
		t.Fatalf("files after delete = %v, %v", files, err)
	}
	if err := r.Communications.Delete(ctx, comm.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestTaskResolveIsOnce(t *testing.T) {
	ctx := context.Background()
	r := newTestStore(t).Repos()
	req := newRequest(t, r, "A")

	task := &models.Task{
		Kind:      models.TaskStatusChange,
		RequestID: &req.ID,
		Payload:   models.StatusChangePayload{Old: models.StatusAck, New: models.StatusDone},
	}
	if err := r.Tasks.Create(ctx, task); err != nil {
		t.Fatal(err)
	}
	applied, err := r.Tasks.Resolve(ctx, task.ID, 7, time.Now().UTC())
	if err != nil || !applied {
		t.Fatalf("first resolve: %v %v", applied, err)
	}
	applied, err = r.Tasks.Resolve(ctx, task.ID, 8, time.Now().UTC())
	if err != nil || applied {
		t.Fatalf("second resolve should be a no-op: %v %v", applied, err)
	}
	got, err := r.Tasks.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ResolvedByID == nil || *got.ResolvedByID != 7 {
		t.Fatalf("resolver = %v", got.ResolvedByID)
	}
	sc, ok := got.Payload.(models.StatusChangePayload)
	if !ok || sc.New != models.StatusDone {
		t.Fatalf("payload = %#v", got.Payload)
	}
	assignee := int64(3)
	if applied, _ := r.Tasks.Assign(ctx, task.ID, &assignee); applied {
		t.Fatal("resolved task must not be reassigned")
	}
}

func TestTaskPayloadKindMismatch(t *testing.T) {
	r := newTestStore(t).Repos()
	err := r.Tasks.Create(context.Background(), &models.Task{Kind: models.TaskFlagged, Payload: models.OrphanPayload{}})
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestResolveOpenResponses(t *testing.T) {
	ctx := context.Background()
	r := newTestStore(t).Repos()
	req := newRequest(t, r, "A")
	other := newRequest(t, r, "B")

	comm := &models.Communication{RequestID: &req.ID, Direction: models.DirectionInbound, Channel: models.ChannelEmail}
	if err := r.Communications.Create(ctx, comm); err != nil {
		t.Fatal(err)
	}
	moved := &models.Communication{RequestID: &other.ID, Direction: models.DirectionInbound, Channel: models.ChannelEmail}
	if err := r.Communications.Create(ctx, moved); err != nil {
		t.Fatal(err)
	}
	mine := &models.Task{Kind: models.TaskResponse, CommunicationID: &comm.ID, Payload: models.ResponsePayload{}}
	theirs := &models.Task{Kind: models.TaskResponse, RequestID: &other.ID, Payload: models.ResponsePayload{}}
	// Raised under req, but its mail has since been moved to other.
	stale := &models.Task{Kind: models.TaskResponse, RequestID: &req.ID, CommunicationID: &moved.ID, Payload: models.ResponsePayload{}}
	flagged := &models.Task{Kind: models.TaskFlagged, RequestID: &req.ID, Payload: models.FlaggedPayload{Text: "x"}}
	for _, task := range []*models.Task{mine, theirs, stale, flagged} {
		if err := r.Tasks.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	n, err := r.Tasks.ResolveOpenResponses(ctx, req.ID, 42, time.Now().UTC())
	if err != nil || n != 1 {
		t.Fatalf("resolved %d, err %v", n, err)
	}
	open := false
	list, err := r.Tasks.List(ctx, models.TaskFilter{Resolved: &open})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("open tasks = %d, want 3", len(list))
	}
	for _, task := range list {
		if task.ID == mine.ID {
			t.Fatal("response task of req left open")
		}
	}
}

func TestDecrementAllotmentGuard(t *testing.T) {
	ctx := context.Background()
	r := newTestStore(t).Repos()
	u := &models.User{Username: "u", RequestsRemaining: 1}
	if err := r.Users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	if ok, err := r.Users.DecrementAllotment(ctx, u.ID); err != nil || !ok {
		t.Fatalf("first decrement: %v %v", ok, err)
	}
	if ok, err := r.Users.DecrementAllotment(ctx, u.ID); err != nil || ok {
		t.Fatalf("second decrement should fail: %v %v", ok, err)
	}
	got, _ := r.Users.GetByID(ctx, u.ID)
	if got.RequestsRemaining != 0 {
		t.Fatalf("remaining = %d", got.RequestsRemaining)
	}
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")
	var id int64
	err := s.InTx(ctx, func(r *Repos) error {
		req := newRequest(t, r, "rolled back")
		id = req.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.Repos().Requests.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("request survived rollback: %v", err)
	}
}

func TestCrowdfundActive(t *testing.T) {
	ctx := context.Background()
	r := newTestStore(t).Repos()
	cf := &models.Crowdfund{RequestID: 1, Name: "fees", AmountRequiredCents: 5000}
	if err := r.Crowdfunds.Create(ctx, cf); err != nil {
		t.Fatal(err)
	}
	got, err := r.Crowdfunds.ActiveForRequest(ctx, 1)
	if err != nil || got.ID != cf.ID {
		t.Fatalf("active = %v, %v", got, err)
	}
	if err := r.Crowdfunds.SetRaised(ctx, cf.ID, 5000, true); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Crowdfunds.ActiveForRequest(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("closed crowdfund still active: %v", err)
	}
}
