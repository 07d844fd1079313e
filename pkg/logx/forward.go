package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Forwarder receives log lines that passed the forward sink's level and rate gates.
type Forwarder interface {
	ForwardLog(ctx context.Context, level, text string) error
}

// ForwarderFunc adapts a function to Forwarder.
type ForwarderFunc func(ctx context.Context, level, text string) error

func (f ForwarderFunc) ForwardLog(ctx context.Context, level, text string) error {
	return f(ctx, level, text)
}

type forwardItem struct {
	level string
	text  string
}

// forwardSink is a zerolog.LevelWriter that queues entries for an async worker.
// Writes never block the caller; a full queue drops.
type forwardSink struct {
	mu       sync.Mutex
	target   Forwarder
	limiter  *rate.Limiter
	minLevel zerolog.Level

	queue  chan forwardItem
	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// set while the worker delivers, so log lines emitted by the delivery
	// path itself are not forwarded again.
	busy    atomic.Bool
	dropped atomic.Uint64
}

func newForwardSink(target Forwarder) *forwardSink {
	return &forwardSink{
		target:   target,
		limiter:  rate.NewLimiter(1, 1),
		minLevel: zerolog.WarnLevel,
		queue:    make(chan forwardItem, 64),
	}
}

func (w *forwardSink) setTarget(f Forwarder) {
	w.mu.Lock()
	w.target = f
	w.mu.Unlock()
}

func (w *forwardSink) apply(cfg ForwardConfig) {
	w.mu.Lock()
	w.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	w.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	w.mu.Unlock()

	if cfg.Enabled {
		w.once.Do(w.start)
	}
}

func (w *forwardSink) start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case it := <-w.queue:
				w.mu.Lock()
				target := w.target
				w.mu.Unlock()
				if target == nil {
					continue
				}
				w.busy.Store(true)
				sendCtx, cancelSend := context.WithTimeout(ctx, 15*time.Second)
				_ = target.ForwardLog(sendCtx, it.level, it.text)
				cancelSend()
				w.busy.Store(false)
			}
		}
	}()
}

func (w *forwardSink) stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
		w.wg.Wait()
	}
}

func (w *forwardSink) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *forwardSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if w.busy.Load() {
		return len(p), nil
	}
	w.mu.Lock()
	target := w.target
	lim := w.limiter
	min := w.minLevel
	w.mu.Unlock()

	if target == nil || level < min || !lim.Allow() {
		return len(p), nil
	}
	text := formatForward(p)
	if text == "" {
		return len(p), nil
	}
	select {
	case w.queue <- forwardItem{level: level.String(), text: text}:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

// formatForward renders a zerolog JSON line as "message (k=v, ...)".
func formatForward(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(p))), &m); err != nil {
		return truncate(strings.TrimSpace(string(p)), 1000)
	}
	msg, _ := m["message"].(string)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message", zerolog.CallerFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for i, k := range keys {
		if i == 0 {
			b.WriteString(" (")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(truncate(fmt.Sprint(m[k]), 200))
		if i == len(keys)-1 {
			b.WriteString(")")
		}
	}
	return truncate(b.String(), 1000)
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
