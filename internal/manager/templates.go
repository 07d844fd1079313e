package manager

import (
	"context"
	"strings"

	"notifymanager/internal/dispatch"
	"notifymanager/internal/payload"
	"notifymanager/internal/policy"
	"notifymanager/internal/targets"
	logx "notifymanager/pkg/logx"
)

// SaveTemplate creates or replaces a user template (same name replaces in
// place) and persists best-effort. created is false for a replacement.
func (m *Manager) SaveTemplate(ctx context.Context, t policy.NotificationTemplate) (saved policy.NotificationTemplate, created bool, err error) {
	if err := check(&t); err != nil {
		return policy.NotificationTemplate{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	saved, created, err = m.tpl.Save(t)
	if err != nil {
		return policy.NotificationTemplate{}, false, err
	}
	m.persistLocked(ctx)
	m.log.Info("template saved", logx.String("id", saved.ID), logx.String("name", saved.Name), logx.Bool("created", created))
	return saved, created, nil
}

// DeleteTemplate removes a user template by name or id. Built-ins cannot be
// deleted; the result reports whether anything was removed.
func (m *Manager) DeleteTemplate(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tpl.Delete(key) {
		return false
	}
	m.persistLocked(ctx)
	m.log.Info("template deleted", logx.String("key", key))
	return true
}

// ListTemplates returns user templates, then built-ins not shadowed by name.
func (m *Manager) ListTemplates() []policy.NotificationTemplate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tpl.List()
}

// SendTemplate renders a template by name or id. Title and message may be
// overridden; buttons become actions; an image template with a camera sends
// the camera snapshot.
func (m *Manager) SendTemplate(ctx context.Context, req TemplateSendRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tpl, err := m.tpl.Resolve(req.Template)
	if err != nil {
		return dispatch.Result{}, err
	}
	title := or(req.Title, tpl.Title)
	message := or(req.Message, tpl.Message)
	if message == "" {
		return dispatch.Result{}, invalid("template %q has no message and none was given", tpl.Name)
	}

	prio := tpl.Priority
	if !prio.Valid() {
		prio = policy.PriorityNormal
	}
	opts := payload.Options{
		Priority: prio,
		Category: req.Category,
		Tag:      req.Tag,
		Actions:  tpl.Clone().Buttons,
		Extra:    req.Data,
	}
	if tpl.Type == policy.TemplateImage && tpl.Camera != "" {
		opts.CameraEntity = tpl.Camera
	}
	return m.disp.Send(ctx, dispatch.Message{
		Title:    title,
		Message:  message,
		Devices:  m.resolveTargetsLocked(req.Targets),
		Data:     payload.Build(m.cats, opts),
		Category: req.Category,
	}), nil
}

// SaveGroup creates or replaces a device group. An empty device list
// deletes it. Groups are persisted with the templates.
func (m *Manager) SaveGroup(ctx context.Context, req GroupRequest) error {
	if err := check(&req); err != nil {
		return err
	}
	name := strings.TrimSpace(req.Name)
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(req.Devices) == 0 {
		delete(m.saved, name)
		m.rebuildGroupsLocked(m.savedGroupsLocked())
	} else {
		m.saved[name] = true
		m.groups.Set(name, req.Devices)
	}
	m.persistLocked(ctx)
	return nil
}

// ListGroups returns configured and saved groups, sorted by name.
func (m *Manager) ListGroups() []targets.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups.List()
}
