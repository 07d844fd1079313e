package capability

import (
	"context"

	logx "notifymanager/pkg/logx"
)

// DriverLog is the dry-run driver: notifications are only logged.
const DriverLog = "log"

// LogHandle writes each notification to the log and never fails.
type LogHandle struct {
	ID  DeviceID
	Log logx.Logger
}

func (h LogHandle) Send(_ context.Context, n Notification) error {
	h.Log.Info("notification (dry-run)",
		logx.String("device", string(h.ID)),
		logx.String("title", n.Title),
		logx.String("message", n.Message),
		logx.Int("data_keys", len(n.Data)),
	)
	return nil
}
