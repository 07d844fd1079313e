package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"notifymanager/internal/capability"
	"notifymanager/internal/capability/telegram"
	"notifymanager/internal/config"
	"notifymanager/internal/eventbus"
	"notifymanager/internal/httpapi"
	"notifymanager/internal/maintenance"
	"notifymanager/internal/manager"
	"notifymanager/internal/storage"
	logx "notifymanager/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	reg   *capability.Registry
	tg    *telegram.Transport
	mgr   *manager.Manager
	maint *maintenance.Service
	http  *httpapi.Server

	sdNotify bool
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// The forwarder is attached once the manager exists.
	logSvc, log := logx.New(cfg.Logging.Logx(), nil)
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			return nil, err
		}
		store = st
		appLog.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	var tg *telegram.Transport
	if cfg.Telegram.Enabled {
		pollTimeout, err := parseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		tg, err = telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bus, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
	}

	reg := capability.NewRegistry()
	regs, err := buildRegistrations(cfg, tg, log.With(logx.String("comp", "capability")))
	if err != nil {
		appLog.Warn("some devices have no send capability", logx.Err(err))
	}
	reg.Swap(regs)

	mgr := manager.New(reg, store, bus, log, cfg.Notify.HistorySize, managerOptions(cfg))
	logSvc.SetForwarder(mgr)

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      appLog,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		reg:      reg,
		tg:       tg,
		mgr:      mgr,
		sdNotify: cfg.Systemd.Notify,
	}

	if cfg.Maintenance.Enabled {
		ttl, err := parseDurationField("maintenance.pending_ttl", cfg.Maintenance.PendingTTL)
		if err != nil {
			return nil, err
		}
		a.maint = maintenance.New(maintenance.Config{Schedule: cfg.Maintenance.Schedule, PendingTTL: ttl}, mgr, log.With(logx.String("comp", "maintenance")))
	}

	if cfg.HTTP.Enabled {
		hc, err := mapHTTPConfig(cfg)
		if err != nil {
			return nil, err
		}
		h := httpapi.NewHandler(httpapi.Deps{
			Manager:      mgr,
			Health:       a.health,
			Metrics:      hc.Metrics,
			Pprof:        hc.Pprof,
			StreamBuffer: hc.StreamBuffer,
			Log:          log.With(logx.String("comp", "http")),
		})
		a.http = httpapi.NewServer(hc, h, log.With(logx.String("comp", "http")))
	}
	return a, nil
}

func mapHTTPConfig(cfg *Config) (httpapi.Config, error) {
	rt, err := parseDurationOrDefault("http.read_timeout", cfg.HTTP.ReadTimeout, 15*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	// The event stream is long-lived; zero leaves writes unbounded.
	wt, err := parseDurationField("http.write_timeout", cfg.HTTP.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:          strings.TrimSpace(cfg.HTTP.Addr),
		Token:         cfg.HTTP.Token,
		AllowInsecure: cfg.HTTP.AllowInsecure,
		ReadTimeout:   rt,
		WriteTimeout:  wt,
		Metrics:       cfg.HTTP.Metrics,
		Pprof:         cfg.HTTP.Pprof,
		StreamBuffer:  cfg.HTTP.StreamBuffer,
	}, nil
}

// Manager is the notification manager the app runs.
func (a *App) Manager() *manager.Manager { return a.mgr }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) health() any {
	snap := map[string]any{"app": a.sup.Snapshot()}
	if a.tg != nil {
		if sup := a.tg.Supervisor(); sup != nil {
			snap["telegram"] = sup.Snapshot()
		}
	}
	return snap
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *Config) error { return config.Validate(cfg) })

	if err := a.mgr.Init(a.sup.Context()); err != nil {
		return err
	}

	// Inbound responses: telegram presses and POST /api/events/action both
	// end up in the ingestor.
	feed, unsub := a.bus.SubscribeTypes(256, eventbus.TypeMobileAction)
	a.sup.Go("actions.ingest", func(c context.Context) error {
		defer unsub()
		return a.mgr.Ingestor().Run(c, feed)
	})

	if a.tg != nil {
		if err := a.tg.Start(a.sup.Context()); err != nil {
			return err
		}
	}
	if a.maint != nil {
		if err := a.maint.Start(a.sup.Context()); err != nil {
			return err
		}
	}
	if a.http != nil {
		a.sup.GoRestart("http.serve", a.http.Serve,
			WithPublishFirstError(true),
			WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		)
	}

	if a.log.Enabled(logx.LevelDebug) {
		events, unsubAll := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsubAll()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if a.sdNotify {
		if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			a.log.Warn("sd_notify ready failed", logx.Err(err))
		} else if !ok {
			a.log.Debug("sd_notify not supported (NOTIFY_SOCKET unset)")
		}
	}

	a.log.Info("app started", logx.Int("devices", len(a.reg.Devices())))
	return nil
}

// applyConfig fans a reloaded config out to the live components.
func (a *App) applyConfig(prev, next *Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("restart required for some changes to take effect", logx.Strings("sections", restart))
	}

	a.logs.Apply(next.Logging.Logx())
	a.mgr.Apply(managerOptions(next))

	regs, err := buildRegistrations(next, a.tg, a.log.With(logx.String("comp", "capability")))
	if err != nil {
		a.log.Warn("some devices have no send capability", logx.Err(err))
	}
	a.reg.Swap(regs)

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sdNotify {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	}

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("maintenance", 2*time.Second, func(c context.Context) error {
		if a.maint != nil {
			a.maint.Stop(c)
		}
		return nil
	})
	step("telegram", 2*time.Second, func(c context.Context) error {
		if a.tg != nil {
			return a.tg.Stop(c)
		}
		return nil
	})
	step("manager", 2*time.Second, a.mgr.Close)
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	// Wait for supervised goroutines (http, ingest, config watch/reload).
	step("supervisor", 3*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
