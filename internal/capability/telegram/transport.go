// Package telegram delivers notifications through a Telegram bot and turns
// inline-button presses and text replies back into action events.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"notifymanager/internal/capability"
	"notifymanager/internal/eventbus"
	rtsup "notifymanager/internal/runtime/supervisor"
	logx "notifymanager/pkg/logx"
)

const (
	DriverTelegram = "telegram"

	maxPrompts = 256
)

var ErrNotStarted = errors.New("telegram transport has no bot")

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type msgKey struct {
	chat int64
	id   int
}

// prompt remembers what a sent message carried, so presses and replies can
// be attributed to a device and tag.
type prompt struct {
	device      capability.DeviceID
	tag         string
	replyAction string
}

// Transport owns one bot. Every telegram device is a chat on that bot.
type Transport struct {
	cfg Config
	log logx.Logger
	bus eventbus.Bus
	bot *tele.Bot

	mu      sync.Mutex
	chats   map[int64]capability.DeviceID
	prompts map[msgKey]*prompt
	order   []msgKey

	runMu sync.Mutex
	sup   *rtsup.Supervisor
}

func New(cfg Config, bus eventbus.Bus, log logx.Logger) (*Transport, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}
	t := newTransport(cfg, bus, log)
	t.bot = b
	t.registerHandlers()
	return t, nil
}

func newTransport(cfg Config, bus eventbus.Bus, log logx.Logger) *Transport {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Transport{
		cfg:     cfg,
		log:     log,
		bus:     bus,
		chats:   map[int64]capability.DeviceID{},
		prompts: map[msgKey]*prompt{},
	}
}

// Device binds a device id to a chat and returns its handle.
func (t *Transport) Device(id capability.DeviceID, chatID int64, threadID int) capability.Handle {
	t.mu.Lock()
	t.chats[chatID] = id
	t.mu.Unlock()
	return &chatHandle{t: t, id: id, chat: chatID, thread: threadID}
}

// ResetDevices drops every chat binding. Capability rebuilds call it before
// binding the current device set again.
func (t *Transport) ResetDevices() {
	t.mu.Lock()
	t.chats = map[int64]capability.DeviceID{}
	t.mu.Unlock()
}

type chatHandle struct {
	t      *Transport
	id     capability.DeviceID
	chat   int64
	thread int
}

func (h *chatHandle) Send(ctx context.Context, n capability.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.t.bot == nil {
		return ErrNotStarted
	}
	if n.Message == "clear_notification" {
		// chats have no tag-addressed removal
		h.t.log.Debug("clear ignored for telegram device", logx.String("device", string(h.id)))
		return nil
	}

	out := render(n)
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ThreadID: h.thread, ReplyMarkup: out.markup}
	chat := &tele.Chat{ID: h.chat}

	var what any = out.text
	if out.photo != "" {
		what = &tele.Photo{File: tele.FromURL(out.photo), Caption: out.text}
	}
	msg, err := h.t.bot.Send(chat, what, opts)
	if err != nil {
		return err
	}
	if out.markup != nil {
		h.t.remember(msgKey{chat: h.chat, id: msg.ID}, &prompt{device: h.id, tag: out.tag, replyAction: out.replyAction})
	}
	return nil
}

func (t *Transport) remember(k msgKey, p *prompt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.prompts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.prompts[k] = p
	for len(t.order) > maxPrompts {
		delete(t.prompts, t.order[0])
		t.order = t.order[1:]
	}
}

func (t *Transport) registerHandlers() {
	t.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil {
			return nil
		}
		answer := t.handleCallback(m.Chat.ID, m.ID, cb.Data)
		return c.Respond(&tele.CallbackResponse{Text: answer})
	})
	t.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.ReplyTo == nil {
			return nil
		}
		t.handleReply(m.Chat.ID, m.ReplyTo.ID, m.Text)
		return nil
	})
}

// handleCallback publishes the pressed action. Pressing a textInput action only
// asks for a text reply. It returns the toast shown to the user.
func (t *Transport) handleCallback(chatID int64, msgID int, data string) string {
	t.mu.Lock()
	dev := t.chats[chatID]
	p := t.prompts[msgKey{chat: chatID, id: msgID}]
	if p != nil && p.replyAction != "" && p.replyAction == data {
		t.mu.Unlock()
		return "Antworte auf diese Nachricht"
	}
	var tag string
	if p != nil {
		dev, tag = p.device, p.tag
	}
	t.mu.Unlock()

	t.publish(data, dev, tag, "", chatID)
	return "✓"
}

// handleReply publishes a text reply to a message that asked for one.
func (t *Transport) handleReply(chatID int64, replyTo int, text string) bool {
	k := msgKey{chat: chatID, id: replyTo}
	t.mu.Lock()
	p := t.prompts[k]
	if p == nil || p.replyAction == "" {
		t.mu.Unlock()
		return false
	}
	dev, tag, action := p.device, p.tag, p.replyAction
	t.mu.Unlock()

	t.publish(action, dev, tag, text, chatID)
	return true
}

func (t *Transport) publish(action string, dev capability.DeviceID, tag, reply string, chatID int64) {
	if t.bus == nil || action == "" {
		return
	}
	data := map[string]any{
		"action":           action,
		"sourceDeviceID":   string(dev),
		"telegram_chat_id": chatID,
	}
	if tag != "" {
		data["tag"] = tag
	}
	if reply != "" {
		data["reply_text"] = reply
	}
	t.bus.Publish(eventbus.Event{Type: eventbus.TypeMobileAction, Time: time.Now(), Data: data})
}

// Start begins long polling under a restart loop.
func (t *Transport) Start(ctx context.Context) error {
	if t.bot == nil {
		return ErrNotStarted
	}
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.sup != nil {
		return nil
	}
	t.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(t.log),
		rtsup.WithCancelOnError(false),
	)
	t.sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		t.bot.Stop()
	})
	t.sup.GoRestart0("telebot.poll", func(context.Context) {
		t.log.Info("polling started")
		t.bot.Start()
		t.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

// Stop ends polling. The long poll is given at most two seconds.
func (t *Transport) Stop(ctx context.Context) error {
	t.runMu.Lock()
	sup := t.sup
	t.sup = nil
	t.runMu.Unlock()
	if sup == nil {
		return nil
	}
	sup.Cancel()

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			t.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		t.log.Debug("telegram stopped with error", logx.Err(err))
	}
	return nil
}

// Supervisor exposes the poll loop for health output; nil when stopped.
func (t *Transport) Supervisor() *rtsup.Supervisor {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.sup
}
