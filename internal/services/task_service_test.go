package services

import (
	"testing"

	"recordsdesk/internal/inbound"
	"recordsdesk/internal/models"
	"recordsdesk/internal/testutil"
)

func proposeAgency(t *testing.T, h *harness, in NewAgencyInput) (*models.Request, *models.Task) {
	t.Helper()
	before := len(h.log.ofKind(models.TaskNewAgency))
	if in.JurisdictionID == 0 {
		in.JurisdictionID = h.fx.Jurisdiction.ID
	}
	req, err := h.life.CreateDraft(h.ctx, h.owner(), DraftInput{Title: "Records from " + in.Name, NewAgency: &in})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	tasks := h.log.ofKind(models.TaskNewAgency)
	if len(tasks) != before+1 {
		t.Fatalf("new_agency tasks = %d, want %d", len(tasks), before+1)
	}
	return req, &tasks[len(tasks)-1]
}

func TestApproveNewAgencyReleasesHeldMail(t *testing.T) {
	h := newHarness(t)
	req, task := proposeAgency(t, h, NewAgencyInput{Name: "Shelbyville Clerk", Email: "clerk@shelbyville.example"})

	if _, err := h.life.Submit(h.ctx, h.owner(), req.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.gw.count() != 0 {
		t.Fatal("mail sent to an unapproved agency")
	}
	held := h.comms(req.ID)[0]
	if held.Receipt != "" || held.Status != models.DeliveryPending {
		t.Fatalf("held communication = %+v", held)
	}

	_, err := h.tasks.Resolve(h.ctx, h.owner(), task.ID, ResolveInput{Action: TaskActionApprove})
	wantErr(t, err, ErrForbidden)

	out, err := h.tasks.Resolve(h.ctx, h.staff(), task.ID, ResolveInput{Action: TaskActionApprove})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !out.Resolved || out.ResolvedByID == nil || *out.ResolvedByID != h.fx.Staff.ID || out.DateDone == nil {
		t.Fatalf("resolved task = %+v", out)
	}
	agency, err := h.store.Repos().Agencies.GetByID(h.ctx, *task.AgencyID)
	if err != nil || agency.Status != models.AgencyApproved {
		t.Fatalf("agency = %+v err=%v", agency, err)
	}
	if h.gw.count() != 1 || h.gw.sent[0].Address != "clerk@shelbyville.example" {
		t.Fatalf("released sends = %+v", h.gw.sent)
	}
	if got := h.comms(req.ID)[0]; got.Receipt == "" {
		t.Error("released communication has no receipt")
	}

	_, err = h.tasks.Resolve(h.ctx, h.staff(), task.ID, ResolveInput{Action: TaskActionApprove})
	wantErr(t, err, ErrTaskResolved)
}

func TestRejectNewAgencyReassignsRequests(t *testing.T) {
	h := newHarness(t)
	county := &models.Jurisdiction{Name: "Springfield County", Days: 30}
	if err := h.store.Repos().Jurisdictions.Create(h.ctx, county); err != nil {
		t.Fatal(err)
	}
	req, task := proposeAgency(t, h, NewAgencyInput{Name: "Springfield PD (dup)", Fax: "+1 555 0199", JurisdictionID: county.ID})
	if got := h.request(req.ID); got.JurisdictionID != county.ID {
		t.Fatalf("draft jurisdiction = %d, want %d", got.JurisdictionID, county.ID)
	}
	if _, err := h.life.Submit(h.ctx, h.owner(), req.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err := h.tasks.Resolve(h.ctx, h.staff(), task.ID, ResolveInput{Action: TaskActionReject})
	wantErr(t, err, ErrValidation)
	if got := h.request(req.ID); got.AgencyID != *task.AgencyID {
		t.Fatal("failed reject changed the request")
	}

	if _, err := h.tasks.Resolve(h.ctx, h.staff(), task.ID, ResolveInput{Action: TaskActionReject, ReplacementAgencyID: h.fx.Agency.ID}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := h.request(req.ID); got.AgencyID != h.fx.Agency.ID || got.JurisdictionID != h.fx.Jurisdiction.ID {
		t.Errorf("request agency = %d jurisdiction = %d, want %d and %d",
			got.AgencyID, got.JurisdictionID, h.fx.Agency.ID, h.fx.Jurisdiction.ID)
	}
	if _, err := h.store.Repos().Agencies.GetByID(h.ctx, *task.AgencyID); err == nil {
		t.Error("rejected agency still exists")
	}
	if h.gw.count() != 1 {
		t.Fatalf("sends = %d, want 1", h.gw.count())
	}
	if sent := h.gw.sent[0]; sent.Channel != models.ChannelEmail || sent.Address != h.fx.Agency.Email {
		t.Errorf("released to %s %q, want the replacement's email", sent.Channel, sent.Address)
	}
}

func TestResolveOrphanMovesMail(t *testing.T) {
	h := newHarness(t)
	req := h.submitted("Stray reply")
	intake := NewIntakeService(h.deps)

	comm, err := intake.Ingest(h.ctx, &inbound.Message{
		MessageID: "<stray@spd.example.gov>",
		From:      h.fx.Agency.Email,
		To:        []string{"foia@desk.example"},
		Subject:   "Your request",
		Text:      "See attached.",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	orphans := h.log.ofKind(models.TaskOrphan)
	if len(orphans) != 1 {
		t.Fatalf("orphan tasks = %d", len(orphans))
	}

	_, err = h.tasks.Resolve(h.ctx, h.staff(), orphans[0].ID, ResolveInput{Action: TaskActionApprove})
	wantErr(t, err, ErrValidation)

	if _, err := h.tasks.Resolve(h.ctx, h.staff(), orphans[0].ID, ResolveInput{Action: TaskActionMove, RequestIDs: []int64{req.ID}}); err != nil {
		t.Fatalf("move: %v", err)
	}
	found := false
	for _, c := range h.comms(req.ID) {
		if c.ID == comm.ID {
			found = true
		}
	}
	if !found {
		t.Error("orphan communication not filed under the request")
	}
}

func TestResolveResponseSetsStatus(t *testing.T) {
	h := newHarness(t)
	req := h.answered("Dashcam footage", models.StatusProcessed)
	intake := NewIntakeService(h.deps)
	if _, err := intake.Ingest(h.ctx, &inbound.Message{
		MessageID: "<done@spd.example.gov>",
		To:        []string{"requests+" + itoa(req.ID) + "@desk.example"},
		Text:      "Your records are ready.",
	}); err != nil {
		t.Fatal(err)
	}
	resp := h.openTasks(req.ID, models.TaskResponse)
	if len(resp) != 1 {
		t.Fatalf("response tasks = %d", len(resp))
	}

	if _, err := h.tasks.Resolve(h.ctx, h.staff(), resp[0].ID, ResolveInput{Action: TaskActionSetStatus, Status: models.StatusDone}); err != nil {
		t.Fatalf("set_status: %v", err)
	}
	got := h.request(req.ID)
	if got.Status != models.StatusDone || got.DateDone == nil {
		t.Fatalf("request = %s done=%v", got.Status, got.DateDone)
	}
	if n := len(h.log.ofKind(models.TaskStatusChange)); n != 1 {
		t.Errorf("status_change tasks = %d, want 1", n)
	}
}

func TestResolveSnailMailMarksSent(t *testing.T) {
	h := newHarness(t)
	r := h.store.Repos()
	agency := &models.Agency{Name: "County Archive", JurisdictionID: h.fx.Jurisdiction.ID, Status: models.AgencyApproved, Address: "1 Archive Way"}
	if err := r.Agencies.Create(h.ctx, agency); err != nil {
		t.Fatal(err)
	}
	req, err := h.life.CreateDraft(h.ctx, h.owner(), DraftInput{Title: "Deeds", AgencyID: agency.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.life.Submit(h.ctx, h.owner(), req.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	mail := h.openTasks(req.ID, models.TaskSnailMail)
	if len(mail) != 1 {
		t.Fatalf("snail_mail tasks = %d", len(mail))
	}
	if p := mail[0].Payload.(models.SnailMailPayload); p.Category != mailNew {
		t.Errorf("category = %q", p.Category)
	}

	if _, err := h.tasks.Resolve(h.ctx, h.staff(), mail[0].ID, ResolveInput{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := h.comms(req.ID)[0].Status; got != models.DeliveryGood {
		t.Errorf("letter status = %s, want good", got)
	}
}

func TestAssignTask(t *testing.T) {
	h := newHarness(t)
	req := h.submitted("Assignments")
	flag, err := h.life.Flag(h.ctx, h.owner(), req.ID, "Agency replied by phone")
	if err != nil {
		t.Fatal(err)
	}

	staffID := h.fx.Staff.ID
	out, err := h.tasks.Assign(h.ctx, h.staff(), flag.ID, &staffID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if out.AssignedID == nil || *out.AssignedID != staffID {
		t.Fatalf("assigned = %v", out.AssignedID)
	}

	ownerID := h.fx.Owner.ID
	_, err = h.tasks.Assign(h.ctx, h.staff(), flag.ID, &ownerID)
	wantErr(t, err, ErrValidation)
	_, err = h.tasks.Assign(h.ctx, testutil.Actor(h.fx.Owner), flag.ID, &staffID)
	wantErr(t, err, ErrForbidden)

	if _, err := h.tasks.Assign(h.ctx, h.staff(), flag.ID, nil); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if _, err := h.tasks.Resolve(h.ctx, h.staff(), flag.ID, ResolveInput{Action: TaskActionMove}); err == nil {
		t.Fatal("flagged task accepted a move")
	}
	if _, err := h.tasks.Resolve(h.ctx, h.staff(), flag.ID, ResolveInput{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	_, err = h.tasks.Assign(h.ctx, h.staff(), flag.ID, &staffID)
	wantErr(t, err, ErrTaskResolved)
}

func TestGetAllFiltersByKind(t *testing.T) {
	h := newHarness(t)
	req := h.submitted("Filters")
	if _, err := h.life.Flag(h.ctx, h.owner(), req.ID, "check this"); err != nil {
		t.Fatal(err)
	}
	if err := h.store.Repos().Tasks.Create(h.ctx, &models.Task{Kind: models.TaskResponse, RequestID: &req.ID, Payload: models.ResponsePayload{}}); err != nil {
		t.Fatal(err)
	}

	kind := models.TaskFlagged
	got, err := h.tasks.GetAll(h.ctx, h.staff(), models.TaskFilter{Kind: &kind})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Kind != models.TaskFlagged {
		t.Fatalf("flagged = %+v", got)
	}
	_, err = h.tasks.GetAll(h.ctx, h.owner(), models.TaskFilter{})
	wantErr(t, err, ErrForbidden)
}
