// Package maintenance runs periodic housekeeping on a cron schedule:
// expiring stale pending actions and flushing the template document.
package maintenance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "notifymanager/pkg/logx"
)

const (
	DefaultSchedule   = "@every 10m"
	DefaultPendingTTL = 24 * time.Hour

	runTimeout = 30 * time.Second
)

// Target is what maintenance works on.
type Target interface {
	PrunePending(ttl time.Duration) int
	Flush(ctx context.Context) error
}

type Config struct {
	Schedule   string
	PendingTTL time.Duration
}

type Service struct {
	mu sync.Mutex

	cfg    Config
	target Target
	log    logx.Logger

	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
}

func New(cfg Config, target Target, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		target: target,
		log:    log,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate reports whether spec parses.
func Validate(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	p := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := p.Parse(spec); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", spec, err)
	}
	return nil
}

// Start schedules the job. It is idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	spec := strings.TrimSpace(s.cfg.Schedule)
	if spec == "" {
		spec = DefaultSchedule
	}
	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, func() { s.RunOnce(s.ctx) }); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", spec, err)
	}
	s.ctx = ctx
	s.c = c
	c.Start()
	s.log.Info("maintenance started", logx.String("schedule", spec), logx.Duration("pending_ttl", s.ttl()))
	return nil
}

// Stop waits for a running job to finish or ctx to end.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("maintenance stop timed out")
	}
}

// RunOnce prunes pending actions and flushes templates.
func (s *Service) RunOnce(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	pruned := s.target.PrunePending(s.ttl())
	if err := s.target.Flush(ctx); err != nil {
		s.log.Warn("template flush failed", logx.Err(err))
	}
	s.log.Debug("maintenance run", logx.Int("pruned", pruned), logx.Duration("took", time.Since(start)))
}

func (s *Service) ttl() time.Duration {
	if s.cfg.PendingTTL > 0 {
		return s.cfg.PendingTTL
	}
	return DefaultPendingTTL
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	if !l.log.Enabled(logx.LevelTrace) {
		return
	}
	l.log.Trace("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
