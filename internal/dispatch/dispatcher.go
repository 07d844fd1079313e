// Package dispatch fans a rendered notification out to devices.
//
// Every targeted device is attempted. A failing or unregistered device is
// logged, counted and published on the bus, and never stops its siblings.
package dispatch

import (
	"context"
	"errors"
	"time"

	"notifymanager/internal/capability"
	"notifymanager/internal/eventbus"
	logx "notifymanager/pkg/logx"
)

// Directory resolves a device to its send handle.
type Directory interface {
	Lookup(id capability.DeviceID) (capability.Handle, error)
}

// Gate reports whether a category may send. A nil Gate lets everything through.
type Gate func(category string) bool

// Message is one resolved notification.
type Message struct {
	Title    string
	Message  string
	Devices  []string
	Data     map[string]any
	Category string
}

// Failure is one device that did not receive the message.
type Failure struct {
	Device string `json:"device"`
	Error  string `json:"error"`
}

// Result summarises one fan-out.
type Result struct {
	Skipped   bool      `json:"skipped,omitempty"`
	Attempted int       `json:"attempted"`
	Delivered int       `json:"delivered"`
	Failed    []Failure `json:"failed,omitempty"`
	RecordID  string    `json:"record_id,omitempty"`
}

// FailureEvent is the bus payload for eventbus.TypeDeliveryFailed.
type FailureEvent struct {
	Device  string `json:"device"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type Dispatcher struct {
	dir  Directory
	hist *History
	bus  eventbus.Bus
	log  logx.Logger
	gate Gate
}

func New(dir Directory, hist *History, bus eventbus.Bus, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if hist == nil {
		hist = NewHistory(HistorySize)
	}
	return &Dispatcher{dir: dir, hist: hist, bus: bus, log: log}
}

// SetGate installs the category gate consulted by Send.
func (d *Dispatcher) SetGate(g Gate) { d.gate = g }

func (d *Dispatcher) History() *History { return d.hist }

// Send delivers m to each device and appends one notification_sent record.
// A disabled category skips the whole send: no device call, no record.
func (d *Dispatcher) Send(ctx context.Context, m Message) Result {
	if d.gate != nil && m.Category != "" && !d.gate(m.Category) {
		skippedTotal.WithLabelValues("category_disabled").Inc()
		d.log.Debug("category disabled, send skipped", logx.String("category", m.Category), logx.String("title", m.Title))
		return Result{Skipped: true}
	}

	res := d.fanout(ctx, m.Devices, capability.Notification{Title: m.Title, Message: m.Message, Data: m.Data})

	rec := d.hist.Append(Record{
		Type:     KindNotificationSent,
		Title:    m.Title,
		Message:  m.Message,
		Targets:  append([]string(nil), m.Devices...),
		Category: m.Category,
		Data:     m.Data,
	})
	res.RecordID = rec.ID
	d.publish(eventbus.TypeNotificationSent, rec)
	return res
}

// Clear asks each device to remove notifications, optionally by tag.
// Nothing is recorded.
func (d *Dispatcher) Clear(ctx context.Context, devices []string, tag string) Result {
	data := map[string]any{}
	if tag != "" {
		data["tag"] = tag
	}
	return d.fanout(ctx, devices, capability.Notification{Message: "clear_notification", Data: data})
}

// Command sends a companion-app command. No gate, no record.
func (d *Dispatcher) Command(ctx context.Context, devices []string, message, title string, data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return d.fanout(ctx, devices, capability.Notification{Title: title, Message: message, Data: data})
}

func (d *Dispatcher) fanout(ctx context.Context, devices []string, n capability.Notification) Result {
	// once started, every device is attempted even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	var res Result
	for _, dev := range devices {
		res.Attempted++
		if err := d.deliver(ctx, capability.DeviceID(dev), n); err != nil {
			res.Failed = append(res.Failed, Failure{Device: dev, Error: err.Error()})
			d.publish(eventbus.TypeDeliveryFailed, FailureEvent{Device: dev, Title: n.Title, Message: n.Message, Error: err.Error()})
			continue
		}
		res.Delivered++
	}
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, dev capability.DeviceID, n capability.Notification) (err error) {
	log := d.log.With(logx.String("device", string(dev)))

	h, err := d.dir.Lookup(dev)
	if err != nil {
		if errors.Is(err, capability.ErrDeviceNotRegistered) {
			deliveryTotal.WithLabelValues("unregistered").Inc()
			log.Warn("no send capability for device")
		} else {
			deliveryTotal.WithLabelValues("failed").Inc()
			log.Warn("device lookup failed", logx.Err(err))
		}
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.New("capability panicked")
			deliveryTotal.WithLabelValues("failed").Inc()
			log.Error("capability panicked", logx.Any("panic", r))
		}
	}()

	start := time.Now()
	err = h.Send(ctx, capability.Notification{Title: n.Title, Message: n.Message, Data: cloneData(n.Data)})
	deliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		deliveryTotal.WithLabelValues("failed").Inc()
		log.Warn("delivery failed", logx.Err(err))
		return err
	}
	deliveryTotal.WithLabelValues("delivered").Inc()
	log.Debug("delivered", logx.String("message", n.Message))
	return nil
}

func (d *Dispatcher) publish(typ string, data any) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}

// cloneData gives each handle its own top-level map.
func cloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
