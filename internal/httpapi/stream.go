package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"notifymanager/internal/actions"
	"notifymanager/internal/eventbus"
	logx "notifymanager/pkg/logx"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

type frame struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// streamFilter reads ?action= (repeatable), ?device= and ?tag=.
func streamFilter(r *http.Request) actions.Filter {
	q := r.URL.Query()
	f := actions.Filter{Device: q.Get("device"), Tag: q.Get("tag")}
	for _, a := range q["action"] {
		for _, s := range strings.Split(a, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Actions = append(f.Actions, s)
			}
		}
	}
	return f
}

// stream pushes canonical action events to a websocket client. With
// ?events=all, sent and failed notifications are streamed too (unfiltered).
func (a *api) stream(w http.ResponseWriter, r *http.Request) {
	filter := streamFilter(r)
	types := []string{eventbus.TypeActionReceived}
	if r.URL.Query().Get("events") == "all" {
		types = append(types, eventbus.TypeNotificationSent, eventbus.TypeDeliveryFailed)
	}
	// Subscribe before the handshake completes so no event is missed.
	ch, unsub := a.m.Bus().SubscribeTypes(a.buf, types...)
	defer unsub()

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		// LAN add-on; the token middleware guards non-loopback binds.
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.log.Warn("websocket accept failed", logx.Err(err))
		return
	}
	defer conn.CloseNow()

	// Incoming messages are discarded; the returned context ends on close.
	ctx := conn.CloseRead(r.Context())
	log := a.log.With(logx.String("remote", r.RemoteAddr))
	log.Debug("stream client connected", logx.Strings("actions", filter.Actions), logx.String("device", filter.Device))

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				conn.Close(ws.StatusGoingAway, "bus closed")
				return
			}
			if c, isAction := ev.Data.(actions.Canonical); isAction && !filter.Match(c) {
				continue
			}
			if err := write(ctx, conn, frame{Type: ev.Type, Time: ev.Time, Data: ev.Data}); err != nil {
				log.Debug("stream client gone", logx.Err(err))
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		}
	}
}

func write(ctx context.Context, c *ws.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, v)
}
