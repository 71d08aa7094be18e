package realtime

import (
	"errors"
	"sync"
	"testing"

	"recordsdesk/internal/models"
)

type recordSink struct {
	mu     sync.Mutex
	got    []any
	fail   bool
	closed bool
}

func (s *recordSink) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broken pipe")
	}
	s.got = append(s.got, v)
	return nil
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func TestTaskHubBroadcast(t *testing.T) {
	h := NewTaskHub()
	a, b := &recordSink{}, &recordSink{}
	h.Register(a)
	h.Register(b)

	h.Announce(models.Task{ID: 7, Kind: models.TaskFlagged})

	for _, s := range []*recordSink{a, b} {
		if len(s.got) != 1 {
			t.Fatalf("sink got %d events, want 1", len(s.got))
		}
		ev := s.got[0].(Event)
		if ev.Type != "task.created" || ev.Task.ID != 7 {
			t.Errorf("unexpected event %+v", ev)
		}
	}
}

func TestTaskHubDropsFailedSinks(t *testing.T) {
	h := NewTaskHub()
	ok, bad := &recordSink{}, &recordSink{fail: true}
	h.Register(ok)
	h.Register(bad)

	h.Announce(models.Task{ID: 1, Kind: models.TaskOrphan})

	if h.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", h.Clients())
	}
	if !bad.closed {
		t.Error("failed sink was not closed")
	}
	h.Announce(models.Task{ID: 2, Kind: models.TaskOrphan})
	if len(ok.got) != 2 {
		t.Errorf("healthy sink got %d events, want 2", len(ok.got))
	}
}

func TestAcceptKey(t *testing.T) {
	// RFC 6455 section 1.3 example.
	if got := acceptKey("dGhlIHNhbXBsZSBub25jZQ=="); got != "s3pPLMBXIbxaWEXtR8NGRqg8WQo=" {
		t.Fatalf("acceptKey = %q", got)
	}
}
