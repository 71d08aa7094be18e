package models

import (
	"testing"
	"time"
)

func TestPastDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	earlierToday := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		status RequestStatus
		due    *time.Time
		want   bool
	}{
		{"no due date", StatusProcessed, nil, false},
		{"overdue and open", StatusProcessed, &yesterday, true},
		{"due today", StatusAck, &earlierToday, false},
		{"overdue but done", StatusDone, &yesterday, false},
		{"overdue draft", StatusStarted, &yesterday, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Request{Status: tc.status, DateDue: tc.due}
			if got := r.PastDue(now); got != tc.want {
				t.Fatalf("PastDue = %v, want %v", got, tc.want)
			}
			if r.Status != tc.status {
				t.Fatal("PastDue must not change status")
			}
		})
	}
}

func TestEmbargoed(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if (&Request{}).Embargoed(now) {
		t.Error("no embargo flag should be public")
	}
	if !(&Request{Embargo: true}).Embargoed(now) {
		t.Error("open-ended embargo should hide")
	}
	if !(&Request{Embargo: true, DateEmbargo: &future}).Embargoed(now) {
		t.Error("embargo until the future should hide")
	}
	if (&Request{Embargo: true, DateEmbargo: &past}).Embargoed(now) {
		t.Error("expired embargo should be public")
	}
	if !(&Request{Embargo: true, PermanentEmbargo: true, DateEmbargo: &past}).Embargoed(now) {
		t.Error("permanent embargo ignores expiry")
	}
}

func TestStatusSets(t *testing.T) {
	for _, s := range AllStatuses {
		if s.IsTerminal() && s.IsAdministrative() {
			t.Errorf("%s cannot be both terminal and administrative", s)
		}
		if _, ok := ParseStatus(string(s)); !ok {
			t.Errorf("ParseStatus(%q) failed", s)
		}
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Error("ParseStatus accepted an unknown status")
	}
	if StatusSubmitted.IsAgencyStatus() {
		t.Error("agencies may not set submitted")
	}
}

func TestDecodePayloadByKind(t *testing.T) {
	raw, err := EncodePayload(StatusChangePayload{Old: StatusProcessed, New: StatusPayment})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p, err := DecodePayload(TaskStatusChange, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	sc, ok := p.(StatusChangePayload)
	if !ok {
		t.Fatalf("payload type = %T", p)
	}
	if sc.Old != StatusProcessed || sc.New != StatusPayment {
		t.Fatalf("payload = %+v", sc)
	}

	if _, err := DecodePayload("mystery", "{}"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if p, err := DecodePayload(TaskOrphan, ""); err != nil || p.Kind() != TaskOrphan {
		t.Fatalf("empty payload: %v %v", p, err)
	}
}

func TestPreferredChannel(t *testing.T) {
	a := &Agency{Email: "foia@city.gov", Fax: "5551234", Address: "1 Main St"}
	if ch, addr := a.PreferredChannel(); ch != ChannelEmail || addr != "foia@city.gov" {
		t.Fatalf("got %s %s", ch, addr)
	}
	a.PortalURL = "https://portal.example"
	if ch, _ := a.PreferredChannel(); ch != ChannelPortal {
		t.Fatalf("portal should win, got %s", ch)
	}
	b := &Agency{Address: "1 Main St"}
	if ch, addr := b.PreferredChannel(); ch != ChannelMail || addr != "1 Main St" {
		t.Fatalf("got %s %s", ch, addr)
	}
}
