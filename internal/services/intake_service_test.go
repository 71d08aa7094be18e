package services

import (
	"os"
	"path/filepath"
	"testing"

	"recordsdesk/internal/inbound"
	"recordsdesk/internal/models"
)

func TestIngestMatchesReplyAddress(t *testing.T) {
	h := newHarness(t)
	req := h.submitted("Crime lab backlog")
	intake := NewIntakeService(h.deps)

	comm, err := intake.Ingest(h.ctx, &inbound.Message{
		MessageID: "<a1@spd.example.gov>",
		From:      "records@spd.example.gov",
		To:        []string{"Requests+" + itoa(req.ID) + "@Desk.Example"},
		Subject:   "RE: Crime lab backlog",
		Text:      "Responsive records attached.",
		Attachments: []inbound.Attachment{
			{Name: "backlog.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
			{Name: "../../etc/passwd", Data: []byte("x")},
		},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if comm.RequestID == nil || *comm.RequestID != req.ID || comm.Direction != models.DirectionInbound {
		t.Fatalf("communication = %+v", comm)
	}

	files, err := h.store.Repos().Files.ListByCommunication(h.ctx, comm.ID)
	if err != nil || len(files) != 2 {
		t.Fatalf("files = %+v err=%v", files, err)
	}
	wantPath := "inbound/" + itoa(comm.ID) + "/01_backlog.pdf"
	if files[0].Path != wantPath || files[0].MIMEType != "application/pdf" || files[0].Size != 8 {
		t.Errorf("file = %+v", files[0])
	}
	if _, err := os.Stat(filepath.Join(h.deps.FilesRoot, filepath.FromSlash(wantPath))); err != nil {
		t.Errorf("attachment not written: %v", err)
	}
	if files[1].Path != "inbound/"+itoa(comm.ID)+"/02_passwd" {
		t.Errorf("unsafe name stored at %q", files[1].Path)
	}

	resp := h.openTasks(req.ID, models.TaskResponse)
	if len(resp) != 1 || resp[0].CommunicationID == nil || *resp[0].CommunicationID != comm.ID {
		t.Fatalf("response tasks = %+v", resp)
	}

	_, err = intake.Ingest(h.ctx, &inbound.Message{MessageID: "<a1@spd.example.gov>", To: []string{"requests+" + itoa(req.ID) + "@desk.example"}})
	wantErr(t, err, ErrNoop)
	if n := len(h.comms(req.ID)); n != 2 {
		t.Errorf("communications = %d after duplicate, want 2", n)
	}
}

func TestIngestOrphans(t *testing.T) {
	h := newHarness(t)
	intake := NewIntakeService(h.deps)

	cases := []struct {
		name   string
		to     []string
		reason string
	}{
		{"no reply address", []string{"press@desk.example"}, "no reply address"},
		{"unknown request", []string{"requests+4040@desk.example"}, "request 4040 does not exist"},
		{"other domain", []string{"requests+1@elsewhere.example"}, "no reply address"},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			comm, err := intake.Ingest(h.ctx, &inbound.Message{
				MessageID: "<orphan-" + itoa(int64(i)) + "@x>",
				To:        tc.to,
				HTML:      "<p>hello</p>",
			})
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if comm.RequestID != nil {
				t.Fatalf("matched request %d", *comm.RequestID)
			}
			if comm.Body != "<p>hello</p>" {
				t.Errorf("body = %q, want the HTML part", comm.Body)
			}
			orphans := h.log.ofKind(models.TaskOrphan)
			p := orphans[len(orphans)-1].Payload.(models.OrphanPayload)
			if p.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", p.Reason, tc.reason)
			}
		})
	}
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":        "report.pdf",
		`C:\scans\page.tif`: "page.tif",
		"../../secret":      "secret",
		"":                  "attachment",
		"..":                "attachment",
		"bad\x00name":       "bad_name",
	}
	for in, want := range cases {
		if got := safeFilename(in); got != want {
			t.Errorf("safeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
