package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistorySize is the fixed history capacity.
const HistorySize = 100

// Record kinds.
const (
	KindNotificationSent = "notification_sent"
	KindActionReceived   = "action_received"
)

// Record is one history entry. Which fields are set depends on Type.
type Record struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message,omitempty"`
	Targets   []string       `json:"targets,omitempty"`
	Category  string         `json:"category,omitempty"`
	Action    string         `json:"action,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// History is an append-only ring. Once full, each append evicts the oldest
// entry. Entries keep arrival order and are never deduplicated.
type History struct {
	mu    sync.Mutex
	size  int
	items []Record
	now   func() time.Time
}

// NewHistory returns a ring of size entries, clamped to [1, HistorySize].
func NewHistory(size int) *History {
	if size <= 0 || size > HistorySize {
		size = HistorySize
	}
	return &History{size: size, now: time.Now}
}

// Append stores r, filling ID and Timestamp when missing, and returns it.
func (h *History) Append(r Record) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = h.now()
	}
	h.items = append(h.items, r)
	if over := len(h.items) - h.size; over > 0 {
		// copy so the backing array does not grow forever
		h.items = append([]Record(nil), h.items[over:]...)
	}
	return r
}

// Snapshot returns the entries oldest first.
func (h *History) Snapshot() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Record(nil), h.items...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

func (h *History) Clear() {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()
}

// Last returns the newest entry of the given kind.
func (h *History) Last(kind string) (Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.items) - 1; i >= 0; i-- {
		if h.items[i].Type == kind {
			return h.items[i], true
		}
	}
	return Record{}, false
}

// CountSince counts entries of kind at or after t.
func (h *History) CountSince(kind string, t time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.items {
		if r.Type == kind && !r.Timestamp.Before(t) {
			n++
		}
	}
	return n
}
