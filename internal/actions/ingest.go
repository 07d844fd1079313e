// Package actions ingests button presses and text replies coming back from
// devices.
//
// Each raw event updates the pending-action table (last write wins per action
// id), is re-published as a Canonical event, and lands in the shared history.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"notifymanager/internal/dispatch"
	"notifymanager/internal/eventbus"
	logx "notifymanager/pkg/logx"
)

// Recorder is the history sink.
type Recorder interface {
	Append(r dispatch.Record) dispatch.Record
}

// Pending is the latest event seen for one action id.
type Pending struct {
	Action    string         `json:"action"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// LastAction is the most recent ingested event.
type LastAction struct {
	Action    string         `json:"action"`
	ReplyText string         `json:"reply_text,omitempty"`
	Device    string         `json:"source_device,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"event_data"`
}

type Ingestor struct {
	mu      sync.Mutex
	pending map[string]Pending
	last    *LastAction

	hist Recorder
	bus  eventbus.Bus
	log  logx.Logger
	now  func() time.Time
}

func New(hist Recorder, bus eventbus.Bus, log logx.Logger) *Ingestor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ingestor{
		pending: map[string]Pending{},
		hist:    hist,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// Handle ingests one raw event. All three effects always happen, in order:
// pending upsert, canonical publish, history append.
func (i *Ingestor) Handle(raw map[string]any) Canonical {
	raw = cloneMap(raw)
	c := canonicalize(raw)

	i.mu.Lock()
	now := i.now()
	i.pending[c.Action] = Pending{Action: c.Action, Data: raw, Timestamp: now}
	i.last = &LastAction{Action: c.Action, ReplyText: c.ReplyText, Device: c.SourceDevice, Timestamp: now, Data: raw}
	i.mu.Unlock()

	actionsTotal.WithLabelValues(metricAction(c.Action)).Inc()
	i.log.Debug("action received", logx.String("action", c.Action), logx.String("device", c.SourceDevice))

	if i.bus != nil {
		i.bus.Publish(eventbus.Event{Type: eventbus.TypeActionReceived, Time: now, Data: c})
	}
	if i.hist != nil {
		i.hist.Append(dispatch.Record{Type: dispatch.KindActionReceived, Action: c.Action, Data: raw, Timestamp: now})
	}
	return c
}

// Run consumes inbound events until ctx is done or ch closes.
func (i *Ingestor) Run(ctx context.Context, ch <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Type != eventbus.TypeMobileAction {
				continue
			}
			raw, err := asMap(ev.Data)
			if err != nil {
				i.log.Warn("unreadable action event", logx.Err(err))
				continue
			}
			i.Handle(raw)
		}
	}
}

// Pending returns the pending table sorted by action id.
func (i *Ingestor) Pending() []Pending {
	i.mu.Lock()
	out := make([]Pending, 0, len(i.pending))
	for _, p := range i.pending {
		out = append(out, p)
	}
	i.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Action < out[b].Action })
	return out
}

func (i *Ingestor) HasPending(action string) bool {
	i.mu.Lock()
	_, ok := i.pending[action]
	i.mu.Unlock()
	return ok
}

// Last returns the newest ingested event.
func (i *Ingestor) Last() (LastAction, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.last == nil {
		return LastAction{}, false
	}
	return *i.last, true
}

// LastActionWas reports whether the newest event is action and arrived
// within the window.
func (i *Ingestor) LastActionWas(action string, within time.Duration) bool {
	last, ok := i.Last()
	if !ok || last.Action != action {
		return false
	}
	return i.now().Sub(last.Timestamp) <= within
}

// Prune drops pending entries older than ttl and returns how many went.
func (i *Ingestor) Prune(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := i.now().Add(-ttl)
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for k, p := range i.pending {
		if p.Timestamp.Before(cutoff) {
			delete(i.pending, k)
			n++
		}
	}
	return n
}

// asMap accepts the event payload shapes the bus carries.
func asMap(v any) (map[string]any, error) {
	switch d := v.(type) {
	case map[string]any:
		return d, nil
	case nil:
		return map[string]any{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode event data: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode event data: %w", err)
	}
	return m, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
