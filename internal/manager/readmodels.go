package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notifymanager/internal/actions"
	"notifymanager/internal/capability"
	"notifymanager/internal/dispatch"
	"notifymanager/internal/payload"
	"notifymanager/internal/policy"
	logx "notifymanager/pkg/logx"
)

// DefaultActionWindow is the LastActionWas window when none is given.
const DefaultActionWindow = 300 * time.Second

// Test notification content.
const (
	TestTitle   = "🔔 Test"
	TestMessage = "Dies ist eine Testbenachrichtigung von Notify Manager"
)

// Stats summarises the history.
type Stats struct {
	NotificationsSent  int        `json:"notifications_sent"`
	NotificationsToday int        `json:"notifications_today"`
	LastTitle          string     `json:"last_notification,omitempty"`
	LastTime           *time.Time `json:"last_notification_time,omitempty"`
	Devices            int        `json:"configured_devices"`
	PendingActions     int        `json:"pending_actions"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	devices := len(m.opts.Devices)
	now := m.now()
	m.mu.Unlock()

	hist := m.disp.History()
	y, mo, d := now.Date()
	midnight := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
	st := Stats{
		NotificationsSent:  hist.Len(),
		NotificationsToday: hist.CountSince(dispatch.KindNotificationSent, midnight),
		Devices:            devices,
		PendingActions:     len(m.ing.Pending()),
	}
	if last, ok := hist.Last(dispatch.KindNotificationSent); ok {
		st.LastTitle = last.Title
		ts := last.Timestamp
		st.LastTime = &ts
	}
	return st
}

// CategoryState is one row of the category table.
type CategoryState struct {
	ID string `json:"id"`
	policy.Category
}

// Categories returns the live category table in display order.
func (m *Manager) Categories() []CategoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CategoryState, 0, len(m.cats))
	for _, id := range m.cats.Names() {
		out = append(out, CategoryState{ID: id, Category: m.cats[id]})
	}
	return out
}

// SetCategoryEnabled toggles one category. The toggle survives config
// reloads until the process restarts.
func (m *Manager) SetCategoryEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cats.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown category %q (known: %s)", name, strings.Join(m.cats.Names(), ", "))
	}
	c.Enabled = enabled
	m.cats[name] = c
	m.toggles[name] = enabled
	m.log.Info("category toggled", logx.String("category", name), logx.Bool("enabled", enabled))
	return nil
}

// SetAllCategoriesEnabled is the master switch.
func (m *Manager) SetAllCategoriesEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.cats {
		c.Enabled = enabled
		m.cats[name] = c
		m.toggles[name] = enabled
	}
	m.log.Info("all categories toggled", logx.Bool("enabled", enabled))
}

// AllCategoriesEnabled reports whether every category is on.
func (m *Manager) AllCategoriesEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cats {
		if !c.Enabled {
			return false
		}
	}
	return true
}

// CategoryEnabled is true for unknown categories.
func (m *Manager) CategoryEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cats.Enabled(name)
}

// DeviceAvailable reports whether the device has a send capability.
func (m *Manager) DeviceAvailable(id string) bool {
	return m.dir.Has(capability.DeviceID(id))
}

// LastAction is the newest inbound action, if any.
func (m *Manager) LastAction() (actions.LastAction, bool) { return m.ing.Last() }

// LastActionWas reports whether the newest action is action and arrived
// within the window. A zero window means DefaultActionWindow.
func (m *Manager) LastActionWas(action string, within time.Duration) bool {
	if within <= 0 {
		within = DefaultActionWindow
	}
	return m.ing.LastActionWas(action, within)
}

func (m *Manager) HasPendingAction(action string) bool { return m.ing.HasPending(action) }

func (m *Manager) PendingActions() []actions.Pending { return m.ing.Pending() }

// PrunePending drops pending actions older than ttl.
func (m *Manager) PrunePending(ttl time.Duration) int { return m.ing.Prune(ttl) }

func (m *Manager) History() []dispatch.Record { return m.disp.History().Snapshot() }

func (m *Manager) ClearHistory() {
	m.disp.History().Clear()
	m.log.Info("history cleared")
}

// SendTest sends the fixed test notification to the default devices.
func (m *Manager) SendTest(ctx context.Context) dispatch.Result {
	res, _ := m.SendNotification(ctx, NotificationRequest{Common: Common{
		Title:    TestTitle,
		Message:  TestMessage,
		Category: policy.CategoryInfo,
		Priority: string(policy.PriorityNormal),
	}})
	return res
}

// ForwardLog relays a log line as a low-priority system notification. It
// bypasses the category gate and the history.
func (m *Manager) ForwardLog(ctx context.Context, level, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	devices := m.opts.ForwardTargets
	if len(devices) == 0 {
		devices = m.opts.Devices
	}
	if len(devices) == 0 {
		return nil
	}
	data := payload.Build(m.cats, payload.Options{
		Priority: policy.PriorityLow,
		Category: policy.CategorySystem,
		Tag:      "notifymanager_log",
		Group:    "notifymanager_log",
	})
	res := m.disp.Command(ctx, devices, text, "notifymanager "+strings.ToUpper(level), data)
	if res.Delivered == 0 && len(res.Failed) > 0 {
		return fmt.Errorf("log forward: %s", res.Failed[0].Error)
	}
	return nil
}
