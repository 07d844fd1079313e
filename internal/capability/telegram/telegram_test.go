package telegram

import (
	"context"
	"html"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifymanager/internal/capability"
	"notifymanager/internal/eventbus"
	logx "notifymanager/pkg/logx"
)

func TestRenderEscapesAndBuildsKeyboard(t *testing.T) {
	out := render(capability.Notification{
		Title:   "Door <front>",
		Message: "a & b",
		Data: map[string]any{
			"tag": "door",
			"actions": []map[string]any{
				{"action": "OPEN", "title": "Open"},
				{"action": "SITE", "title": "Web", "uri": "https://example.org"},
				{"action": "REPLY", "title": "Reply", "behavior": "textInput"},
			},
		},
	})

	assert.Equal(t, "<b>Door &lt;front&gt;</b>\na &amp; b", out.text)
	assert.Equal(t, "door", out.tag)
	assert.Equal(t, "REPLY", out.replyAction)
	require.NotNil(t, out.markup)
	row := out.markup.InlineKeyboard[0]
	require.Len(t, row, 3)
	assert.Equal(t, "OPEN", row[0].Data)
	assert.Equal(t, "https://example.org", row[1].URL)
	assert.Empty(t, row[1].Data)
}

func TestRenderAcceptsDecodedJSONActions(t *testing.T) {
	out := render(capability.Notification{
		Message: "m",
		Data:    map[string]any{"actions": []any{map[string]any{"action": "YES"}}},
	})
	require.NotNil(t, out.markup)
	assert.Equal(t, "YES", out.markup.InlineKeyboard[0][0].Text)
}

func TestRenderPhotoAndLimits(t *testing.T) {
	out := render(capability.Notification{
		Message: strings.Repeat("x", 3000),
		Data:    map[string]any{"image": "https://cam/snap.jpg"},
	})
	assert.Equal(t, "https://cam/snap.jpg", out.photo)
	assert.Len(t, []rune(out.text), captionLimit)
	assert.Nil(t, out.markup)

	// the cut lands on text, never inside an escaped entity
	out = render(capability.Notification{Message: strings.Repeat("a", 3998) + "&&&&"})
	assert.True(t, strings.HasSuffix(out.text, "a&amp;…"), out.text[len(out.text)-20:])
	assert.Len(t, []rune(html.UnescapeString(out.text)), textLimit)

	out = render(capability.Notification{Title: "T&T", Message: strings.Repeat("<", 5000)})
	assert.True(t, strings.HasPrefix(out.text, "<b>T&amp;T</b>\n&lt;"))
	assert.True(t, strings.HasSuffix(out.text, "&lt;…"))
	assert.Len(t, []rune(html.UnescapeString(strings.TrimPrefix(out.text, "<b>T&amp;T</b>"))), textLimit-3)

	// relative camera proxy paths are not fetchable by Telegram
	out = render(capability.Notification{Message: "m", Data: map[string]any{"image": "/api/camera_proxy/camera.x"}})
	assert.Empty(t, out.photo)
}

func TestTruncateBytesKeepsRunes(t *testing.T) {
	s := strings.Repeat("a", 63) + "ä"
	assert.Equal(t, strings.Repeat("a", 63), truncateBytes(s, 64))
	assert.Equal(t, "ok", truncateBytes("ok", 64))
}

func recvAction(t *testing.T, ch <-chan eventbus.Event) map[string]any {
	t.Helper()
	select {
	case ev := <-ch:
		assert.Equal(t, eventbus.TypeMobileAction, ev.Type)
		data, ok := ev.Data.(map[string]any)
		require.True(t, ok)
		return data
	case <-time.After(time.Second):
		t.Fatal("no action event")
		return nil
	}
}

func TestCallbackPublishesAction(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	tr := newTransport(Config{}, bus, logx.Nop())
	tr.Device("phone", 42, 0)
	tr.remember(msgKey{chat: 42, id: 7}, &prompt{device: "phone", tag: "alarm"})

	assert.Equal(t, "✓", tr.handleCallback(42, 7, "ALARM_CONFIRM"))
	data := recvAction(t, ch)
	assert.Equal(t, "ALARM_CONFIRM", data["action"])
	assert.Equal(t, "phone", data["sourceDeviceID"])
	assert.Equal(t, "alarm", data["tag"])

	// unknown message falls back to the chat binding
	tr.handleCallback(42, 99, "YES")
	data = recvAction(t, ch)
	assert.Equal(t, "phone", data["sourceDeviceID"])
	assert.NotContains(t, data, "tag")
}

func TestResetDevicesDropsChatBindings(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	tr := newTransport(Config{}, bus, logx.Nop())
	tr.Device("old", 42, 0)
	tr.ResetDevices()
	tr.Device("new", 43, 0)

	tr.handleCallback(42, 1, "YES")
	assert.Equal(t, "", recvAction(t, ch)["sourceDeviceID"])
	tr.handleCallback(43, 1, "YES")
	assert.Equal(t, "new", recvAction(t, ch)["sourceDeviceID"])
}

func TestTextInputNeedsReply(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	tr := newTransport(Config{}, bus, logx.Nop())
	tr.remember(msgKey{chat: 1, id: 5}, &prompt{device: "tab", tag: "q", replyAction: "REPLY"})

	assert.NotEqual(t, "✓", tr.handleCallback(1, 5, "REPLY"))
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}

	assert.False(t, tr.handleReply(1, 6, "nope"))
	assert.True(t, tr.handleReply(1, 5, "on my way"))
	data := recvAction(t, ch)
	assert.Equal(t, "REPLY", data["action"])
	assert.Equal(t, "on my way", data["reply_text"])
	assert.Equal(t, "tab", data["sourceDeviceID"])
}

func TestLongReplyActionMatchesCallbackData(t *testing.T) {
	long := strings.Repeat("R", 80)
	out := render(capability.Notification{
		Message: "m",
		Data:    map[string]any{"actions": []map[string]any{{"action": long, "behavior": "textInput"}}},
	})
	data := out.markup.InlineKeyboard[0][0].Data
	assert.Len(t, data, maxCallbackData)
	assert.Equal(t, data, out.replyAction)

	tr := newTransport(Config{}, nil, logx.Nop())
	tr.remember(msgKey{chat: 1, id: 2}, &prompt{device: "tab", replyAction: out.replyAction})
	assert.NotEqual(t, "✓", tr.handleCallback(1, 2, data))
}

func TestPromptsAreBounded(t *testing.T) {
	tr := newTransport(Config{}, nil, logx.Nop())
	for i := 0; i < maxPrompts+10; i++ {
		tr.remember(msgKey{chat: 1, id: i}, &prompt{})
	}
	assert.Len(t, tr.prompts, maxPrompts)
	_, oldest := tr.prompts[msgKey{chat: 1, id: 0}]
	assert.False(t, oldest)
}

func TestSendWithoutBotFails(t *testing.T) {
	tr := newTransport(Config{}, nil, logx.Nop())
	h := tr.Device("x", 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	err := h.Send(ctx, capability.Notification{Message: "m"})
	assert.ErrorIs(t, err, ErrNotStarted)
}
