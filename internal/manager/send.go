package manager

import (
	"context"

	"notifymanager/internal/dispatch"
	"notifymanager/internal/payload"
	"notifymanager/internal/policy"
	"notifymanager/internal/templates"
	logx "notifymanager/pkg/logx"
)

// Alarm confirmation defaults.
const (
	AlarmTag = "alarm_confirmation"
	// ReplyAction is the action id of the text-input button.
	ReplyAction = "REPLY"
)

// SendNotification is the plain send. Priority defaults to the configured
// default priority (normal unless overridden).
func (m *Manager) SendNotification(ctx context.Context, req NotificationRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	opts := req.options(m.opts.DefaultPriority)
	return m.sendLocked(ctx, req.Common, opts, req.Category), nil
}

// SendActionable sends buttons. Priority defaults to high; persistent and
// sticky default to true. With no buttons selected, confirm_dismiss is used.
func (m *Manager) SendActionable(ctx context.Context, req ActionableRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	opts := req.options(policy.PriorityHigh)
	opts.Actions = templates.ResolveActionable(req.selection(), m.actionLookup(), policy.ActionsConfirmDismiss)
	opts.Persistent = boolOr(req.Persistent, true)
	opts.Sticky = boolOr(req.Sticky, true)
	return m.sendLocked(ctx, req.Common, opts, req.Category), nil
}

// SendWithImage attaches an image URL or a camera snapshot.
func (m *Manager) SendWithImage(ctx context.Context, req ImageRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	opts := req.options(m.opts.DefaultPriority)
	opts.Image = req.Image
	opts.CameraEntity = req.Camera
	opts.Actions = req.Actions
	return m.sendLocked(ctx, req.Common, opts, req.Category), nil
}

// SendAlarmConfirmation always sends critical in the alarm category, sticky
// and persistent. Buttons default to the alarm_response template.
func (m *Manager) SendAlarmConfirmation(ctx context.Context, req AlarmRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tag := req.Tag
	if tag == "" {
		tag = AlarmTag
	}
	sel := templates.Selection{
		Template: req.Template,
		Button1:  req.Button1, Button2: req.Button2, Button3: req.Button3,
		Actions: req.Actions,
	}
	data := payload.Build(m.cats, payload.Options{
		Priority:   policy.PriorityCritical,
		Category:   policy.CategoryAlarm,
		Tag:        tag,
		Actions:    templates.ResolveAlarmActions(sel, m.actionLookup()),
		Persistent: true,
		Sticky:     true,
		Extra:      req.Data,
	})
	// The alarm entity is applied after the extra merge and wins over it.
	if req.AlarmEntity != "" {
		data[payload.KeyEntityID] = req.AlarmEntity
		data[payload.KeyClickAction] = "entityId:" + req.AlarmEntity
	}
	return m.disp.Send(ctx, dispatch.Message{
		Title:    req.Title,
		Message:  req.Message,
		Devices:  m.resolveTargetsLocked(req.Targets),
		Data:     data,
		Category: policy.CategoryAlarm,
	}), nil
}

// SendTextInput sends one REPLY button with a text field. The payload falls
// back to the info category; the category gate only applies when the caller
// named a category.
func (m *Manager) SendTextInput(ctx context.Context, req TextInputRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	gate := req.Category
	opts := req.options(policy.PriorityNormal)
	opts.Priority = policy.PriorityNormal
	if opts.Category == "" {
		opts.Category = policy.CategoryInfo
	}
	opts.Persistent = true
	opts.Actions = []policy.Action{{
		Action:               ReplyAction,
		Title:                or(req.InputTitle, policy.DefaultReplyTitle),
		Behavior:             policy.BehaviorTextInput,
		TextInputButtonTitle: or(req.ButtonTitle, policy.DefaultReplyButtonTitle),
		TextInputPlaceholder: or(req.Placeholder, policy.DefaultReplyPlaceholder),
	}}
	return m.sendLocked(ctx, req.Common, opts, gate), nil
}

// Clear removes notifications from the targets, optionally by tag. Targets
// are device ids as given; empty means the default devices.
func (m *Manager) Clear(ctx context.Context, req ClearRequest) dispatch.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	devices := m.commandTargetsLocked(req.Targets)
	m.log.Debug("clearing notifications", logx.Int("devices", len(devices)), logx.String("tag", req.Tag))
	return m.disp.Clear(ctx, devices, req.Tag)
}

func (m *Manager) sendLocked(ctx context.Context, c Common, opts payload.Options, gate string) dispatch.Result {
	data := payload.Build(m.cats, opts)
	return m.disp.Send(ctx, dispatch.Message{
		Title:    c.Title,
		Message:  c.Message,
		Devices:  m.resolveTargetsLocked(c.Targets),
		Data:     data,
		Category: gate,
	})
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
