package services

import (
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/models"
	"recordsdesk/internal/testutil"
)

// Random action sequences against one request must keep the status valid,
// keep the completion date in step with terminal statuses and never accept
// a submit or agency reply once the request is closed. Drafts stay hidden
// from the agency.
func TestLifecycleInvariantsHold(t *testing.T) {
	h := newHarness(t)
	staff := h.staff()
	agency := h.agency()
	iteration := 0

	actions := []string{"submit", "agency_reply", "change_status", "appeal", "follow_up", "thank"}

	rapid.Check(t, func(rt *rapid.T) {
		iteration++
		u := testutil.User(t, h.store, fmt.Sprintf("prop%d", iteration), authz.RoleBasic, 1000)
		owner := testutil.Actor(u)
		req, err := h.life.CreateDraft(h.ctx, owner, DraftInput{Title: "Property", Body: "b", AgencyID: h.fx.Agency.ID})
		if err != nil {
			rt.Fatalf("CreateDraft: %v", err)
		}

		steps := rapid.SliceOfN(rapid.SampledFrom(actions), 1, 25).Draw(rt, "steps")
		for i, action := range steps {
			before := h.request(req.ID).Status

			switch action {
			case "submit":
				_, err = h.life.Submit(h.ctx, owner, req.ID)
			case "agency_reply":
				st := rapid.SampledFrom(models.AgencyStatuses).Draw(rt, fmt.Sprintf("reply_status_%d", i))
				_, err = h.life.AgencyReply(h.ctx, agency, req.ID, AgencyReplyInput{Text: "reply", Status: st})
			case "change_status":
				st := rapid.SampledFrom(models.AllStatuses).Draw(rt, fmt.Sprintf("status_%d", i))
				_, err = h.life.ChangeStatus(h.ctx, staff, req.ID, ChangeStatusInput{Status: st})
			case "appeal":
				_, err = h.life.Appeal(h.ctx, owner, req.ID, "appeal")
			case "follow_up":
				_, err = h.life.FollowUp(h.ctx, owner, req.ID, FollowUpInput{Text: "news?"})
			case "thank":
				_, err = h.life.Thank(h.ctx, owner, req.ID, "")
			}
			// Agency accounts cannot see drafts at all.
			draftReply := action == "agency_reply" && before == models.StatusStarted
			if draftReply && !errors.Is(err, ErrForbidden) {
				rt.Fatalf("step %d: agency reply on a draft: %v", i, err)
			}
			if err != nil && !errors.Is(err, ErrNoop) && !draftReply {
				rt.Fatalf("step %d %s from %s: %v", i, action, before, err)
			}
			if before.IsTerminal() && (action == "submit" || action == "agency_reply") && !errors.Is(err, ErrNoop) {
				rt.Fatalf("step %d: %s accepted on closed request (%s)", i, action, before)
			}

			got := h.request(req.ID)
			if _, ok := models.ParseStatus(string(got.Status)); !ok {
				rt.Fatalf("step %d: invalid status %q", i, got.Status)
			}
			if got.Status.IsTerminal() != (got.DateDone != nil) {
				rt.Fatalf("step %d: status %s with date_done %v", i, got.Status, got.DateDone)
			}
			if err == nil && action == "appeal" && got.Status != models.StatusAppealing {
				rt.Fatalf("step %d: appeal left status %s", i, got.Status)
			}
		}
	})
}
