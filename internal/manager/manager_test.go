package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifymanager/internal/capability"
	"notifymanager/internal/dispatch"
	"notifymanager/internal/eventbus"
	"notifymanager/internal/payload"
	"notifymanager/internal/policy"
	"notifymanager/internal/storage"
	"notifymanager/internal/targets"
	"notifymanager/internal/templates"
	logx "notifymanager/pkg/logx"
)

type recordingHandle struct {
	mu  sync.Mutex
	got []capability.Notification
}

func (h *recordingHandle) Send(_ context.Context, n capability.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, n)
	return nil
}

func (h *recordingHandle) calls() []capability.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]capability.Notification(nil), h.got...)
}

type memStore struct {
	mu    sync.Mutex
	doc   *storage.Document
	saves int
	err   error
}

func (s *memStore) Load(context.Context) (storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return storage.Document{}, storage.ErrNotFound
	}
	return *s.doc, nil
}

func (s *memStore) Save(_ context.Context, doc storage.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return s.err
	}
	s.doc = &doc
	return nil
}

func (s *memStore) Close() error { return nil }

type fixture struct {
	m       *Manager
	devices map[string]*recordingHandle
	store   *memStore
	bus     eventbus.Bus
}

func newFixture(t *testing.T, opts Options, ids ...string) *fixture {
	t.Helper()
	reg := capability.NewRegistry()
	devs := map[string]*recordingHandle{}
	for _, id := range ids {
		h := &recordingHandle{}
		devs[id] = h
		require.NoError(t, reg.Register(capability.DeviceID(id), "test", h))
	}
	st := &memStore{}
	bus := eventbus.New()
	m := New(reg, st, bus, logx.Nop(), 0, opts)
	require.NoError(t, m.Init(context.Background()))
	return &fixture{m: m, devices: devs, store: st, bus: bus}
}

func actionIDs(n capability.Notification) []string {
	acts, _ := n.Data[payload.KeyActions].([]map[string]any)
	out := make([]string, 0, len(acts))
	for _, a := range acts {
		out = append(out, a["action"].(string))
	}
	return out
}

func interruption(n capability.Notification) any {
	push, _ := n.Data[payload.KeyPush].(map[string]any)
	return push[payload.KeyInterruptionLevel]
}

func TestSendNotificationToDefaults(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"phone"}}, "phone")

	res, err := f.m.SendNotification(context.Background(), NotificationRequest{Common: Common{
		Title: "Hi", Message: "there", Category: policy.CategoryInfo,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	got := f.devices["phone"].calls()
	require.Len(t, got, 1)
	assert.Equal(t, "Hi", got[0].Title)
	assert.Equal(t, policy.LevelActive, interruption(got[0]))
	assert.Equal(t, 1, f.m.Stats().NotificationsSent)
}

func TestQualifiedTargetsReduceToDeviceID(t *testing.T) {
	f := newFixture(t, Options{}, "kitchen_phone")

	_, err := f.m.SendNotification(context.Background(), NotificationRequest{Common: Common{
		Title: "T", Message: "M", Targets: []string{"notify.mobile_app.kitchen_phone"},
	}})
	require.NoError(t, err)
	assert.Len(t, f.devices["kitchen_phone"].calls(), 1)
}

func TestAlarmConfirmationDefaults(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"phone"}}, "phone")

	_, err := f.m.SendAlarmConfirmation(context.Background(), AlarmRequest{
		Title: "Alarm", Message: "Garage open", AlarmEntity: "alarm_control_panel.home",
		Data: map[string]any{payload.KeyEntityID: "ignored"},
	})
	require.NoError(t, err)

	got := f.devices["phone"].calls()
	require.Len(t, got, 1)
	n := got[0]
	assert.Equal(t, []string{"ALARM_CONFIRM", "ALARM_SNOOZE", "ALARM_EMERGENCY"}, actionIDs(n))
	assert.Equal(t, policy.LevelCritical, interruption(n))
	assert.Equal(t, AlarmTag, n.Data[payload.KeyTag])
	assert.Equal(t, true, n.Data[payload.KeySticky])
	assert.Equal(t, true, n.Data[payload.KeyPersistent])
	assert.Equal(t, "alarm_control_panel.home", n.Data[payload.KeyEntityID])
	assert.Equal(t, "entityId:alarm_control_panel.home", n.Data[payload.KeyClickAction])

	hist := f.m.History()
	require.Len(t, hist, 1)
	assert.Equal(t, policy.CategoryAlarm, hist[0].Category)
}

func TestActionableExplicitActionsBeatTemplate(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"phone"}}, "phone")

	_, err := f.m.SendActionable(context.Background(), ActionableRequest{
		Common: Common{Title: "Door", Message: "Open?"},
		Buttons: Buttons{
			ActionTemplate: policy.ActionsYesNo,
			Actions:        []policy.Action{{Action: "A", Title: "a"}},
		},
	})
	require.NoError(t, err)

	n := f.devices["phone"].calls()[0]
	assert.Equal(t, []string{"A"}, actionIDs(n))
	assert.Equal(t, policy.LevelTimeSensitive, interruption(n))
	assert.Equal(t, true, n.Data[payload.KeyPersistent])
}

func TestActionableFallsBackToConfirmDismiss(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"phone"}}, "phone")

	_, err := f.m.SendActionable(context.Background(), ActionableRequest{
		Common:     Common{Title: "T", Message: "M"},
		Persistent: new(bool),
	})
	require.NoError(t, err)

	n := f.devices["phone"].calls()[0]
	assert.Equal(t, []string{"CONFIRM", "DISMISS"}, actionIDs(n))
	_, persistent := n.Data[payload.KeyPersistent]
	assert.False(t, persistent)
}

func TestDisabledCategoryMakesNoCalls(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a", "b"}}, "a", "b")
	require.NoError(t, f.m.SetCategoryEnabled(policy.CategoryMotion, false))

	res, err := f.m.SendNotification(context.Background(), NotificationRequest{Common: Common{
		Title: "Motion", Message: "Hall", Category: policy.CategoryMotion,
	}})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, f.devices["a"].calls())
	assert.Empty(t, f.devices["b"].calls())
	assert.Empty(t, f.m.History())
	assert.False(t, f.m.AllCategoriesEnabled())
}

func TestCategoryTogglesSurviveApply(t *testing.T) {
	f := newFixture(t, Options{}, "a")
	require.NoError(t, f.m.SetCategoryEnabled(policy.CategoryClimate, false))
	assert.Error(t, f.m.SetCategoryEnabled("nope", false))

	f.m.Apply(Options{Devices: []string{"a"}})
	assert.False(t, f.m.CategoryEnabled(policy.CategoryClimate))
	assert.True(t, f.m.CategoryEnabled("unknown"))

	f.m.SetAllCategoriesEnabled(true)
	assert.True(t, f.m.AllCategoriesEnabled())
	assert.Len(t, f.m.Categories(), len(policy.DefaultCategoryOrder))
}

func TestValidationRejectsBeforeSideEffects(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a"}}, "a")

	_, err := f.m.SendNotification(context.Background(), NotificationRequest{Common: Common{
		Message: "no title", Priority: "urgent",
	}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]string{}
	for _, fe := range ve.Fields {
		fields[fe.Field] = fe.Rule
	}
	assert.Equal(t, "required", fields["title"])
	assert.Equal(t, "oneof", fields["priority"])

	_, err = f.m.SendActionable(context.Background(), ActionableRequest{
		Common:  Common{Title: "T", Message: "M"},
		Buttons: Buttons{Actions: []policy.Action{{Action: "X"}}},
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "actions[0].title", ve.Fields[0].Field)

	_, err = f.m.SendWithImage(context.Background(), ImageRequest{Common: Common{Title: "T", Message: "M"}})
	assert.ErrorAs(t, err, &ve)

	assert.Empty(t, f.devices["a"].calls())
}

func TestTextInputReplyButton(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a"}}, "a")
	f.m.SetAllCategoriesEnabled(false)

	res, err := f.m.SendTextInput(context.Background(), TextInputRequest{
		Common: Common{Title: "Q", Message: "Why?"},
	})
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	n := f.devices["a"].calls()[0]
	acts := n.Data[payload.KeyActions].([]map[string]any)
	require.Len(t, acts, 1)
	assert.Equal(t, ReplyAction, acts[0]["action"])
	assert.Equal(t, policy.DefaultReplyTitle, acts[0]["title"])
	assert.Equal(t, policy.BehaviorTextInput, acts[0]["behavior"])
	assert.Equal(t, policy.DefaultReplyPlaceholder, acts[0]["textInputPlaceholder"])
}

func TestTemplatesPersistAndSend(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a"}}, "a")
	ctx := context.Background()

	saved, created, err := f.m.SaveTemplate(ctx, policy.NotificationTemplate{
		Name: "Door", Title: "Door", Message: "Someone rang", Type: policy.TemplateButtons,
		Priority: policy.PriorityHigh, Buttons: []policy.Action{{Action: "OPEN", Title: "Open"}},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, saved.ID)
	require.NotNil(t, f.store.doc)
	assert.Len(t, f.store.doc.Templates, 1)

	_, err = f.m.SendTemplate(ctx, TemplateSendRequest{Template: "Door", Message: "Now"})
	require.NoError(t, err)
	n := f.devices["a"].calls()[0]
	assert.Equal(t, "Now", n.Message)
	assert.Equal(t, []string{"OPEN"}, actionIDs(n))
	assert.Equal(t, policy.LevelTimeSensitive, interruption(n))

	_, err = f.m.SendTemplate(ctx, TemplateSendRequest{Template: "missing"})
	var unknown *templates.UnknownTemplateError
	assert.ErrorAs(t, err, &unknown)

	assert.True(t, f.m.DeleteTemplate(ctx, "Door"))
	assert.False(t, f.m.DeleteTemplate(ctx, "Door"))
	assert.Empty(t, f.store.doc.Templates)
}

func TestInitRestoresTemplatesAndGroups(t *testing.T) {
	reg := capability.NewRegistry()
	h := &recordingHandle{}
	require.NoError(t, reg.Register("x", "test", h))
	st := &memStore{doc: &storage.Document{
		Templates: []policy.NotificationTemplate{{ID: "t1", Name: "Saved", Message: "m"}},
		Groups:    []targets.Group{{Name: "family", Devices: []string{"x"}}},
	}}
	m := New(reg, st, nil, logx.Nop(), 0, Options{})
	require.NoError(t, m.Init(context.Background()))

	_, err := m.SendTemplate(context.Background(), TemplateSendRequest{Template: "t1", Targets: []string{"group:family"}})
	require.NoError(t, err)
	assert.Len(t, h.calls(), 1)
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	f := newFixture(t, Options{}, "a")
	f.store.err = errors.New("disk full")

	_, _, err := f.m.SaveTemplate(context.Background(), policy.NotificationTemplate{Name: "X", Message: "m"})
	require.NoError(t, err)
	assert.Len(t, f.m.ListTemplates(), len(policy.BuiltinTemplates())+1)
}

func TestGroupsExpandAndPersist(t *testing.T) {
	f := newFixture(t, Options{Groups: map[string][]string{"seed": {"a"}}}, "a", "b")
	ctx := context.Background()

	require.NoError(t, f.m.SaveGroup(ctx, GroupRequest{Name: "both", Devices: []string{"a", "b"}}))
	_, err := f.m.SendNotification(ctx, NotificationRequest{Common: Common{
		Title: "T", Message: "M", Targets: []string{"group:both", "group:seed"},
	}})
	require.NoError(t, err)
	assert.Len(t, f.devices["a"].calls(), 2)
	assert.Len(t, f.devices["b"].calls(), 1)
	assert.Equal(t, []targets.Group{{Name: "both", Devices: []string{"a", "b"}}}, f.store.doc.Groups)
	assert.Len(t, f.m.ListGroups(), 2)

	require.NoError(t, f.m.SaveGroup(ctx, GroupRequest{Name: "both"}))
	assert.Empty(t, f.store.doc.Groups)
	assert.Error(t, f.m.SaveGroup(ctx, GroupRequest{Name: "a:b", Devices: []string{"a"}}))
}

func TestUnknownGroupSendsNothing(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a", "b"}}, "a", "b")
	ctx := context.Background()

	res, err := f.m.SendNotification(ctx, NotificationRequest{Common: Common{
		Title: "T", Message: "M", Targets: []string{"group:typo"},
	}})
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)

	res = f.m.Clear(ctx, ClearRequest{Targets: []string{"group:typo"}})
	assert.Zero(t, res.Attempted)

	_, err = f.m.SendTTS(ctx, TTSRequest{Text: "hi", Targets: []string{"group:typo"}})
	require.NoError(t, err)

	assert.Empty(t, f.devices["a"].calls())
	assert.Empty(t, f.devices["b"].calls())

	// no targets at all still means the defaults
	res = f.m.Clear(ctx, ClearRequest{Targets: []string{" "}})
	assert.Equal(t, 2, res.Attempted)
}

func TestCompanionCommandsBypassGateAndHistory(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a"}}, "a")
	f.m.SetAllCategoriesEnabled(false)
	ctx := context.Background()

	_, err := f.m.SendTTS(ctx, TTSRequest{Text: "hello"})
	require.NoError(t, err)
	f.m.RequestLocationUpdate(ctx, nil)
	_, err = f.m.SetBadge(ctx, BadgeRequest{Badge: 3})
	require.NoError(t, err)
	_, err = f.m.DeviceCommand(ctx, DeviceCommandRequest{Command: "command_dnd", Data: map[string]any{"command": "off"}})
	require.NoError(t, err)
	_, err = f.m.DeviceCommand(ctx, DeviceCommandRequest{Command: "format_disk"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	got := f.devices["a"].calls()
	require.Len(t, got, 4)
	assert.Equal(t, MessageTTS, got[0].Message)
	assert.Equal(t, "music_stream", got[0].Data["media_stream"])
	assert.Equal(t, MessageRequestLocation, got[1].Message)
	assert.Equal(t, MessageDeleteAlert, got[2].Message)
	assert.Equal(t, map[string]any{payload.KeyBadge: 3}, got[2].Data[payload.KeyPush])
	assert.Equal(t, "command_dnd", got[3].Message)
	assert.Empty(t, f.m.History())
}

func TestClearUsesTargetsVerbatim(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a"}}, "a", "sensor.b")

	f.m.Clear(context.Background(), ClearRequest{Targets: []string{"sensor.b"}, Tag: "door"})
	got := f.devices["sensor.b"].calls()
	require.Len(t, got, 1)
	assert.Equal(t, "clear_notification", got[0].Message)
	assert.Equal(t, "door", got[0].Data[payload.KeyTag])

	f.m.Clear(context.Background(), ClearRequest{})
	assert.Len(t, f.devices["a"].calls(), 1)
}

func TestAdvancedCriticalNeedsSound(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a"}}, "a")

	_, err := f.m.SendAdvanced(context.Background(), AdvancedRequest{Message: "m", Critical: true})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, f.devices["a"].calls())
}

func TestStatsAndActionConditions(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a", "b"}}, "a")
	now := time.Now()
	f.m.now = func() time.Time { return now }

	f.m.SendTest(context.Background())
	f.m.Ingestor().Handle(map[string]any{"action": "YES", "sourceDeviceID": "a"})

	st := f.m.Stats()
	assert.Equal(t, 2, st.NotificationsSent)
	assert.Equal(t, 1, st.NotificationsToday)
	assert.Equal(t, TestTitle, st.LastTitle)
	assert.Equal(t, 2, st.Devices)
	assert.Equal(t, 1, st.PendingActions)

	assert.True(t, f.m.LastActionWas("YES", 0))
	assert.False(t, f.m.LastActionWas("NO", 0))
	assert.True(t, f.m.HasPendingAction("YES"))
	assert.True(t, f.m.DeviceAvailable("a"))
	assert.False(t, f.m.DeviceAvailable("b"))

	f.m.ClearHistory()
	assert.Empty(t, f.m.History())
}

func TestDevicesListsDefaultsAndRegistrations(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a", "ghost"}}, "a", "z")

	assert.Equal(t, []DeviceInfo{
		{ID: "a", Driver: "test", Default: true, Available: true},
		{ID: "ghost", Default: true},
		{ID: "z", Driver: "test", Available: true},
	}, f.m.Devices())
}

func TestForwardLogSkipsHistory(t *testing.T) {
	f := newFixture(t, Options{Devices: []string{"a"}, ForwardTargets: []string{"ops"}}, "a", "ops")

	require.NoError(t, f.m.ForwardLog(context.Background(), "error", "db down"))
	got := f.devices["ops"].calls()
	require.Len(t, got, 1)
	assert.Equal(t, "db down", got[0].Message)
	assert.Equal(t, "notifymanager ERROR", got[0].Title)
	assert.Empty(t, f.devices["a"].calls())
	assert.Empty(t, f.m.History())
}

var _ logx.Forwarder = (*Manager)(nil)
var _ dispatch.Directory = (*capability.Registry)(nil)
