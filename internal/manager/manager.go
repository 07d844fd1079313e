// Package manager is the notification service's context object.
//
// A Manager owns the category table, the template registry, device groups,
// the dispatcher and the action ingestor. Every operation takes the manager
// lock, so sends, template edits and read-models observe one consistent
// state. Action ingestion runs on its own goroutine and only touches the
// ingestor and the history, which carry their own locks.
package manager

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"notifymanager/internal/actions"
	"notifymanager/internal/capability"
	"notifymanager/internal/dispatch"
	"notifymanager/internal/eventbus"
	"notifymanager/internal/policy"
	"notifymanager/internal/storage"
	"notifymanager/internal/targets"
	"notifymanager/internal/templates"
	logx "notifymanager/pkg/logx"
)

// Directory is the device registry the manager dispatches through.
type Directory interface {
	dispatch.Directory
	Has(id capability.DeviceID) bool
}

// Options is the hot-reloadable part of the configuration.
type Options struct {
	// Devices are the default targets.
	Devices         []string
	DefaultPriority policy.Priority
	Categories      map[string]policy.CategoryOverride
	// Groups seed device groups. Saved groups with the same name win.
	Groups map[string][]string
	// ForwardTargets receive forwarded log lines; empty means Devices.
	ForwardTargets []string
}

type Manager struct {
	mu sync.Mutex

	opts    Options
	cats    policy.Categories
	toggles map[string]bool // runtime enable/disable, survives reloads

	tpl    *templates.Registry
	groups targets.Groups
	saved  map[string]bool // group names persisted in the store

	dir   Directory
	disp  *dispatch.Dispatcher
	ing   *actions.Ingestor
	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time
}

// New wires a manager. store may be nil (in-memory only).
func New(dir Directory, store storage.Store, bus eventbus.Bus, log logx.Logger, historySize int, opts Options) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	hist := dispatch.NewHistory(historySize)
	m := &Manager{
		toggles: map[string]bool{},
		tpl:     templates.NewRegistry(),
		saved:   map[string]bool{},
		dir:     dir,
		disp:    dispatch.New(dir, hist, bus, log.With(logx.String("comp", "dispatch"))),
		ing:     actions.New(hist, bus, log.With(logx.String("comp", "actions"))),
		store:   store,
		bus:     bus,
		log:     log.With(logx.String("comp", "manager")),
		now:     time.Now,
	}
	// Sends run under m.mu, so the gate reads the table without locking.
	m.disp.SetGate(func(c string) bool { return m.cats.Enabled(c) })
	m.applyLocked(opts)
	return m
}

// Init loads persisted templates and groups. A load failure is logged and
// the manager starts with an empty user set.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	doc, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		m.log.Info("no saved templates yet")
		return nil
	case err != nil:
		m.log.Warn("template load failed; starting empty", logx.Err(err))
		return nil
	}
	m.tpl.Replace(doc.Templates)
	for _, g := range doc.Groups {
		m.saved[g.Name] = true
	}
	m.rebuildGroupsLocked(doc.Groups)
	m.log.Info("templates loaded", logx.Int("templates", len(doc.Templates)), logx.Int("groups", len(doc.Groups)))
	return nil
}

// Close flushes the document. Errors are returned for the caller to log.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(ctx)
}

// Flush writes templates and groups to the store.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(ctx)
}

// Apply swaps in reloaded options. Runtime category toggles are kept.
func (m *Manager) Apply(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(opts)
	m.log.Info("options applied", logx.Int("devices", len(opts.Devices)), logx.Int("categories", len(m.cats)))
}

func (m *Manager) applyLocked(opts Options) {
	if !opts.DefaultPriority.Valid() {
		opts.DefaultPriority = policy.PriorityNormal
	}
	m.opts = opts
	m.cats = policy.DefaultCategories().Apply(opts.Categories)
	for name, on := range m.toggles {
		if c, ok := m.cats[name]; ok {
			c.Enabled = on
			m.cats[name] = c
		}
	}
	m.rebuildGroupsLocked(m.savedGroupsLocked())
}

// rebuildGroupsLocked layers saved groups over the configured seeds.
func (m *Manager) rebuildGroupsLocked(saved []targets.Group) {
	merged := map[string][]string{}
	for name, devs := range m.opts.Groups {
		merged[name] = devs
	}
	for _, g := range saved {
		merged[g.Name] = g.Devices
	}
	list := make([]targets.Group, 0, len(merged))
	for name, devs := range merged {
		list = append(list, targets.Group{Name: name, Devices: devs})
	}
	m.groups.Replace(list)
}

func (m *Manager) savedGroupsLocked() []targets.Group {
	var out []targets.Group
	for _, g := range m.groups.List() {
		if m.saved[g.Name] {
			out = append(out, g)
		}
	}
	return out
}

// persistLocked saves best-effort. Failures keep the in-memory state.
func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.flushLocked(ctx); err != nil {
		m.log.Warn("template save failed; keeping in-memory state", logx.Err(err))
	}
}

func (m *Manager) flushLocked(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(ctx, storage.Document{
		Templates: m.tpl.User(),
		Groups:    m.savedGroupsLocked(),
	})
}

// resolveTargetsLocked expands groups, then applies the qualified-id rule.
// The configured defaults are used only when the caller named no target,
// so a target list that expands to nothing sends nothing.
func (m *Manager) resolveTargetsLocked(raw []string) []string {
	if !targets.Explicit(raw) {
		return targets.Resolve(nil, m.opts.Devices)
	}
	return targets.Resolve(m.expandLocked(raw), nil)
}

// commandTargetsLocked is the companion-command rule: verbatim ids after
// group expansion, defaults when the caller named no target.
func (m *Manager) commandTargetsLocked(raw []string) []string {
	if !targets.Explicit(raw) {
		return append([]string(nil), m.opts.Devices...)
	}
	expanded := m.expandLocked(raw)
	out := make([]string, 0, len(expanded))
	for _, t := range expanded {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (m *Manager) expandLocked(raw []string) []string {
	out, unknown := m.groups.Expand(raw)
	if len(unknown) > 0 {
		m.log.Warn("unknown device group", logx.Strings("groups", unknown))
	}
	return out
}

func (m *Manager) actionLookup() templates.ActionLookup { return m.tpl.ActionTemplate }

// Ingestor exposes the inbound action pipeline.
func (m *Manager) Ingestor() *actions.Ingestor { return m.ing }

// Bus is the event bus the manager publishes on.
func (m *Manager) Bus() eventbus.Bus { return m.bus }

// Devices lists the default targets and registered devices, sorted and unique.
func (m *Manager) Devices() []DeviceInfo {
	m.mu.Lock()
	defaults := append([]string(nil), m.opts.Devices...)
	m.mu.Unlock()

	seen := map[string]*DeviceInfo{}
	for _, d := range defaults {
		seen[d] = &DeviceInfo{ID: d, Default: true}
	}
	if lister, ok := m.dir.(interface{ Registrations() []capability.Registration }); ok {
		for _, r := range lister.Registrations() {
			info, ok := seen[string(r.ID)]
			if !ok {
				info = &DeviceInfo{ID: string(r.ID)}
				seen[string(r.ID)] = info
			}
			info.Driver = r.Driver
		}
	}
	out := make([]DeviceInfo, 0, len(seen))
	for _, info := range seen {
		info.Available = m.dir.Has(capability.DeviceID(info.ID))
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeviceInfo describes one known device.
type DeviceInfo struct {
	ID        string `json:"id"`
	Driver    string `json:"driver,omitempty"`
	Default   bool   `json:"default"`
	Available bool   `json:"available"`
}
