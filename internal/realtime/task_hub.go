package realtime

import (
	"log"
	"sync"

	"recordsdesk/internal/models"
)

// Event is one message on the staff task feed.
type Event struct {
	Type string      `json:"type"`
	Task models.Task `json:"task"`
}

// Sink receives feed events; *Conn is the production sink.
type Sink interface {
	WriteJSON(v any) error
	Close() error
}

// TaskHub pushes newly created tasks to every connected staff client.
type TaskHub struct {
	mu    sync.RWMutex
	sinks map[Sink]struct{}
}

func NewTaskHub() *TaskHub {
	return &TaskHub{sinks: make(map[Sink]struct{})}
}

func (h *TaskHub) Register(s Sink) {
	h.mu.Lock()
	h.sinks[s] = struct{}{}
	n := len(h.sinks)
	h.mu.Unlock()
	log.Printf("[ws][tasks][join] clients=%d", n)
}

func (h *TaskHub) Unregister(s Sink) {
	h.mu.Lock()
	_, ok := h.sinks[s]
	delete(h.sinks, s)
	h.mu.Unlock()
	if ok {
		_ = s.Close()
	}
}

func (h *TaskHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// Announce broadcasts t. Clients whose write fails are dropped.
func (h *TaskHub) Announce(t models.Task) {
	ev := Event{Type: "task.created", Task: t}
	h.mu.RLock()
	var dead []Sink
	for s := range h.sinks {
		if err := s.WriteJSON(ev); err != nil {
			dead = append(dead, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range dead {
		log.Printf("[ws][tasks][drop] task=%d", t.ID)
		h.Unregister(s)
	}
}
