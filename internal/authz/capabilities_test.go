package authz

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"recordsdesk/internal/models"
)

const (
	ownerID  = 1
	editorID = 2
	viewerID = 3
	agencyID = 7
	otherID  = 9
)

func sampleRequest(status models.RequestStatus) *models.Request {
	return &models.Request{
		ID:        100,
		Status:    status,
		UserID:    ownerID,
		AgencyID:  agencyID,
		EditorIDs: []int64{editorID},
		ViewerIDs: []int64{viewerID},
		AccessKey: "secret-key",
	}
}

func TestRoleFor(t *testing.T) {
	req := sampleRequest(models.StatusProcessed)
	cases := []struct {
		actor Actor
		want  RequestRole
	}{
		{Actor{UserID: 99, RoleID: RoleStaff}, RoleStaffMember},
		{Actor{UserID: ownerID, RoleID: RoleBasic}, RoleOwner},
		{Actor{UserID: editorID, RoleID: RoleBasic}, RoleEditor},
		{Actor{UserID: viewerID, RoleID: RoleBasic}, RoleViewer},
		{Actor{UserID: 50, RoleID: RoleAgency, AgencyID: agencyID}, RoleAgencyAccount},
		{Actor{UserID: 51, RoleID: RoleAgency, AgencyID: agencyID + 1}, RoleNone},
		{Actor{UserID: otherID, RoleID: RoleBasic}, RoleNone},
		{Actor{}, RoleNone},
	}
	for _, tc := range cases {
		if got := RoleFor(tc.actor, req); got != tc.want {
			t.Errorf("RoleFor(%+v) = %s, want %s", tc.actor, got, tc.want)
		}
	}
}

func TestCanMatrix(t *testing.T) {
	appealsOK := &models.Jurisdiction{AppealsAllowed: true}
	open := sampleRequest(models.StatusProcessed)
	done := sampleRequest(models.StatusDone)

	owner := Actor{UserID: ownerID, RoleID: RoleBasic}
	ownerEmb := Actor{UserID: ownerID, RoleID: RoleBasic, CanEmbargo: true}
	editor := Actor{UserID: editorID, RoleID: RoleBasic, CanEmbargo: true}
	editorPerm := Actor{UserID: editorID, RoleID: RoleBasic, CanEmbargoPerm: true}
	agency := Actor{UserID: 50, RoleID: RoleAgency, AgencyID: agencyID}

	cases := []struct {
		name  string
		actor Actor
		req   *models.Request
		cap   Capability
		want  bool
	}{
		{"owner change", owner, open, CapChange, true},
		{"owner submit", owner, open, CapSubmit, true},
		{"owner embargo without entitlement", owner, open, CapEmbargo, false},
		{"owner embargo with entitlement", ownerEmb, open, CapEmbargo, true},
		{"owner embargo_perm needs perm entitlement", ownerEmb, open, CapEmbargoPerm, false},
		{"owner appeal while open", owner, open, CapAppeal, false},
		{"owner appeal when done", owner, done, CapAppeal, true},
		{"owner agency_reply", owner, open, CapAgencyReply, false},
		{"editor change", editor, open, CapChange, true},
		{"editor submit", editor, open, CapSubmit, false},
		{"editor embargo needs perm entitlement", editor, open, CapEmbargo, false},
		{"editor embargo with perm entitlement", editorPerm, open, CapEmbargo, true},
		{"agency reply", agency, open, CapAgencyReply, true},
		{"agency change", agency, open, CapChange, false},
		{"agency followup", agency, open, CapFollowUp, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Can(tc.actor, Target{Request: tc.req, Jurisdiction: appealsOK}, tc.cap)
			if got != tc.want {
				t.Fatalf("Can = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAppealNeedsJurisdictionSupport(t *testing.T) {
	owner := Actor{UserID: ownerID, RoleID: RoleBasic}
	req := sampleRequest(models.StatusRejected)
	if Can(owner, Target{Request: req, Jurisdiction: &models.Jurisdiction{}}, CapAppeal) {
		t.Fatal("appeal granted in a jurisdiction without appeals")
	}
	req.Status = models.StatusFix
	if !Can(owner, Target{Request: req, Jurisdiction: &models.Jurisdiction{AppealsAllowed: true}}, CapAppeal) {
		t.Fatal("appeal denied from fix status")
	}
}

func TestViewWithAccessKey(t *testing.T) {
	now := time.Now()
	req := sampleRequest(models.StatusProcessed)
	req.Embargo = true

	stranger := Actor{}
	if Can(stranger, Target{Request: req, Now: now}, CapView) {
		t.Fatal("anonymous viewed an embargoed request")
	}
	stranger.AccessKey = "secret-key"
	if !Can(stranger, Target{Request: req, Now: now}, CapView) {
		t.Fatal("matching access key should grant view")
	}
	stranger.AccessKey = "wrong"
	if Can(stranger, Target{Request: req, Now: now}, CapView) {
		t.Fatal("wrong access key granted view")
	}
	if Can(Actor{AccessKey: "secret-key"}, Target{Request: req, Now: now}, CapChange) {
		t.Fatal("access key must only grant view")
	}

	req.Embargo = false
	if !Can(Actor{}, Target{Request: req, Now: now}, CapView) {
		t.Fatal("public request should be viewable by anyone")
	}
}

func TestDraftsArePrivate(t *testing.T) {
	draft := sampleRequest(models.StatusStarted)
	target := Target{Request: draft, Now: time.Now()}

	for name, a := range map[string]Actor{
		"anonymous":          {},
		"anonymous with key": {AccessKey: "secret-key"},
		"stranger":           {UserID: otherID, RoleID: RoleBasic},
		"agency account":     {UserID: 50, RoleID: RoleAgency, AgencyID: agencyID},
	} {
		if Can(a, target, CapView) {
			t.Errorf("%s can view a draft", name)
		}
		if Can(a, target, CapAgencyReply) {
			t.Errorf("%s can reply to a draft", name)
		}
	}
	for name, a := range map[string]Actor{
		"owner":  {UserID: ownerID, RoleID: RoleBasic},
		"editor": {UserID: editorID, RoleID: RoleBasic},
		"staff":  {UserID: 99, RoleID: RoleStaff},
	} {
		if !Can(a, target, CapView) {
			t.Errorf("%s cannot view its draft", name)
		}
	}
}

func TestStaffHasEverything(t *testing.T) {
	staff := Actor{UserID: 99, RoleID: RoleStaff}
	req := sampleRequest(models.StatusStarted)
	req.Embargo = true
	for _, c := range AllCapabilities {
		if !Can(staff, Target{Request: req}, c) {
			t.Errorf("staff lacks %s", c)
		}
	}
}

// A viewer is refused every mutating capability whatever the request state.
func TestPropertyViewerCannotMutate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := rapid.SampledFrom(models.AllStatuses).Draw(t, "status")
		c := rapid.SampledFrom(AllCapabilities).Draw(t, "capability")
		embargo := rapid.Bool().Draw(t, "embargo")
		appeals := rapid.Bool().Draw(t, "appeals")
		viewer := Actor{
			UserID:         viewerID,
			RoleID:         RoleBasic,
			CanEmbargo:     rapid.Bool().Draw(t, "can_embargo"),
			CanEmbargoPerm: rapid.Bool().Draw(t, "can_embargo_perm"),
		}

		req := sampleRequest(status)
		req.Embargo = embargo
		target := Target{Request: req, Jurisdiction: &models.Jurisdiction{AppealsAllowed: appeals}}

		got := Can(viewer, target, c)
		if c.Mutating() && got {
			t.Fatalf("viewer granted %s on %s request", c, status)
		}
		if c == CapView && !got {
			t.Fatalf("viewer denied view on %s request", status)
		}
	})
}

// Strangers never hold a mutating capability.
func TestPropertyStrangerCannotMutate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := rapid.SampledFrom(models.AllStatuses).Draw(t, "status")
		c := rapid.SampledFrom(AllCapabilities).Draw(t, "capability")
		role := rapid.SampledFrom([]int{RoleBasic, RoleAgency}).Draw(t, "role")
		stranger := Actor{UserID: otherID, RoleID: role, AgencyID: agencyID + 1, AccessKey: "secret-key"}

		if c.Mutating() && Can(stranger, Target{Request: sampleRequest(status)}, c) {
			t.Fatalf("stranger granted %s", c)
		}
	})
}
