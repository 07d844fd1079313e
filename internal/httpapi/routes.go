package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notifymanager/internal/dispatch"
	"notifymanager/internal/manager"
	logx "notifymanager/pkg/logx"
)

// Deps are the handler dependencies.
type Deps struct {
	Manager *manager.Manager
	// Health returns the payload for /healthz, typically a supervisor snapshot.
	Health       func() any
	Metrics      bool
	// Pprof mounts net/http/pprof under /debug/pprof.
	Pprof        bool
	StreamBuffer int
	Log          logx.Logger
}

type api struct {
	m      *manager.Manager
	health func() any
	buf    int
	log    logx.Logger
}

// NewHandler builds the router.
func NewHandler(d Deps) http.Handler {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.StreamBuffer <= 0 {
		d.StreamBuffer = 32
	}
	a := &api{m: d.Manager, health: d.Health, buf: d.StreamBuffer, log: d.Log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLog)

	r.Get("/healthz", a.healthz)
	if d.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/notify", func(r chi.Router) {
			r.Post("/send", send(a.m.SendNotification))
			r.Post("/actionable", send(a.m.SendActionable))
			r.Post("/image", send(a.m.SendWithImage))
			r.Post("/alarm", send(a.m.SendAlarmConfirmation))
			r.Post("/text_input", send(a.m.SendTextInput))
			r.Post("/template", send(a.m.SendTemplate))
			r.Post("/clear", send(func(ctx context.Context, req manager.ClearRequest) (dispatch.Result, error) {
				return a.m.Clear(ctx, req), nil
			}))
			r.Post("/test", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, a.m.SendTest(r.Context()))
			})
		})

		r.Route("/companion", func(r chi.Router) {
			r.Post("/tts", send(a.m.SendTTS))
			r.Post("/map", send(a.m.SendMap))
			r.Post("/media", send(a.m.SendMedia))
			r.Post("/progress", send(a.m.SendProgress))
			r.Post("/chronometer", send(a.m.SendChronometer))
			r.Post("/command", send(a.m.DeviceCommand))
			r.Post("/location", targeted(a.m.RequestLocationUpdate))
			r.Post("/widgets", targeted(a.m.UpdateWidgets))
			r.Post("/complications", targeted(a.m.UpdateComplications))
			r.Post("/clear_badge", targeted(a.m.ClearBadge))
			r.Post("/set_badge", send(a.m.SetBadge))
			r.Post("/advanced", send(a.m.SendAdvanced))
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/action", a.ingestAction)
			r.Get("/ws", a.stream)
		})

		r.Get("/templates", a.listTemplates)
		r.Post("/templates", a.saveTemplate)
		r.Delete("/templates/{key}", a.deleteTemplate)

		r.Get("/groups", a.listGroups)
		r.Post("/groups", a.saveGroup)

		r.Get("/categories", a.listCategories)
		r.Put("/categories", a.setAllCategories)
		r.Put("/categories/{name}", a.setCategory)

		r.Get("/history", a.history)
		r.Delete("/history", a.clearHistory)
		r.Get("/stats", a.stats)
		r.Get("/devices", a.devices)

		r.Get("/actions/pending", a.pendingActions)
		r.Get("/actions/last", a.lastAction)

		r.Route("/conditions", func(r chi.Router) {
			r.Get("/category/{name}", a.condCategory)
			r.Get("/device/{id}", a.condDevice)
			r.Get("/last_action/{action}", a.condLastAction)
			r.Get("/pending/{action}", a.condPending)
		})
	})
	return r
}

// send adapts a manager operation to a JSON handler.
func send[T any](fn func(context.Context, T) (dispatch.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		res, err := fn(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type targetsBody struct {
	Targets []string `json:"target,omitempty"`
}

func targeted(fn func(context.Context, []string) dispatch.Result) http.HandlerFunc {
	return send(func(ctx context.Context, req targetsBody) (dispatch.Result, error) {
		return fn(ctx, req.Targets), nil
	})
}

func (a *api) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if !a.log.Enabled(logx.LevelDebug) {
			return
		}
		a.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("took", time.Since(start)),
			logx.String("req_id", middleware.GetReqID(r.Context())),
		)
	})
}
