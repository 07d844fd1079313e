package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"notifymanager/internal/config"
	"notifymanager/internal/manager"
	"notifymanager/internal/policy"
)

func (a *api) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if a.health != nil {
		body["supervisor"] = a.health()
	}
	writeJSON(w, http.StatusOK, body)
}

// ingestAction accepts a raw companion-app response event.
func (a *api) ingestAction(w http.ResponseWriter, r *http.Request) {
	raw := map[string]any{}
	if err := decodeLoose(r, &raw); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, a.m.Ingestor().Handle(raw))
}

func (a *api) listTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.m.ListTemplates())
}

func (a *api) saveTemplate(w http.ResponseWriter, r *http.Request) {
	var t policy.NotificationTemplate
	if err := decode(r, &t); err != nil {
		writeError(w, err)
		return
	}
	saved, created, err := a.m.SaveTemplate(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

func (a *api) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if !a.m.DeleteTemplate(r.Context(), chi.URLParam(r, "key")) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no user template " + chi.URLParam(r, "key")})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.m.ListGroups())
}

func (a *api) saveGroup(w http.ResponseWriter, r *http.Request) {
	var req manager.GroupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.m.SaveGroup(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.m.ListGroups())
}

type enabledBody struct {
	Enabled *bool `json:"enabled"`
}

func (a *api) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"all_enabled": a.m.AllCategoriesEnabled(),
		"categories":  a.m.Categories(),
	})
}

func (a *api) setCategory(w http.ResponseWriter, r *http.Request) {
	var body enabledBody
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "enabled is required"})
		return
	}
	if err := a.m.SetCategoryEnabled(chi.URLParam(r, "name"), *body.Enabled); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	a.listCategories(w, r)
}

func (a *api) setAllCategories(w http.ResponseWriter, r *http.Request) {
	var body enabledBody
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "enabled is required"})
		return
	}
	a.m.SetAllCategoriesEnabled(*body.Enabled)
	a.listCategories(w, r)
}

func (a *api) history(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.m.History())
}

func (a *api) clearHistory(w http.ResponseWriter, _ *http.Request) {
	a.m.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.m.Stats())
}

func (a *api) devices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.m.Devices())
}

func (a *api) pendingActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.m.PendingActions())
}

func (a *api) lastAction(w http.ResponseWriter, _ *http.Request) {
	last, ok := a.m.LastAction()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

type condition struct {
	Result bool `json:"result"`
}

func (a *api) condCategory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, condition{a.m.CategoryEnabled(chi.URLParam(r, "name"))})
}

func (a *api) condDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, condition{a.m.DeviceAvailable(chi.URLParam(r, "id"))})
}

// condLastAction takes an optional ?within= duration ("90s", "5m").
func (a *api) condLastAction(w http.ResponseWriter, r *http.Request) {
	within, err := config.ParseDurationOrDefault("within", r.URL.Query().Get("within"), manager.DefaultActionWindow)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, condition{a.m.LastActionWas(chi.URLParam(r, "action"), within)})
}

func (a *api) condPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, condition{a.m.HasPendingAction(chi.URLParam(r, "action"))})
}
