package config

import (
	"reflect"
	"strings"

	logx "notifymanager/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like tokens,
// VAPID keys, webhook URLs or redis passwords).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 20)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.forward_enabled", newCfg.Logging.Forward.Enabled),
			logx.Int("logx.forward_targets", len(newCfg.Logging.Forward.Targets)),
		)
	}

	// Notify
	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.devices", len(newCfg.Notify.Devices)),
			logx.String("notify.default_priority", newCfg.Notify.DefaultPriority),
			logx.Int("notify.category_overrides", len(newCfg.Notify.Categories)),
			logx.Int("notify.groups", len(newCfg.Notify.Groups)),
		)
	}

	// Capabilities (never log URLs or subscriptions)
	if !reflect.DeepEqual(oldCfg.Capabilities, newCfg.Capabilities) {
		changed = append(changed, "capabilities")
		attrs = append(attrs,
			logx.String("capabilities.default_driver", newCfg.Capabilities.DefaultDriver),
			logx.Int("capabilities.devices", len(newCfg.Capabilities.Devices)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Webhook, newCfg.Webhook) {
		changed = append(changed, "webhook")
		attrs = append(attrs,
			logx.String("webhook.timeout", strings.TrimSpace(newCfg.Webhook.Timeout)),
			logx.Int("webhook.header_count", len(newCfg.Webhook.Headers)),
		)
	}

	// Webpush (never log keys)
	if !reflect.DeepEqual(oldCfg.WebPush, newCfg.WebPush) {
		changed = append(changed, "webpush")
		attrs = append(attrs,
			logx.Bool("webpush.keys_set", newCfg.WebPush.VAPIDPrivateKey != "" && newCfg.WebPush.VAPIDPublicKey != ""),
			logx.String("webpush.ttl", strings.TrimSpace(newCfg.WebPush.TTL)),
		)
	}

	// Telegram (never log token)
	if oldCfg.Telegram.Enabled != newCfg.Telegram.Enabled ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		oldCfg.Telegram.Token != newCfg.Telegram.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", newCfg.Telegram.Enabled),
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	// Storage (never log redis password)
	oldSt, newSt := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if !reflect.DeepEqual(oldSt, newSt) {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", strings.TrimSpace(newSt.Driver)))
	}

	if !reflect.DeepEqual(oldCfg.HTTP, newCfg.HTTP) {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
			logx.Bool("http.metrics", newCfg.HTTP.Metrics),
			logx.Bool("http.pprof", newCfg.HTTP.Pprof),
			logx.Bool("http.token_set", newCfg.HTTP.Token != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Maintenance, newCfg.Maintenance) {
		changed = append(changed, "maintenance")
		attrs = append(attrs,
			logx.Bool("maintenance.enabled", newCfg.Maintenance.Enabled),
			logx.String("maintenance.schedule", strings.TrimSpace(newCfg.Maintenance.Schedule)),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
		attrs = append(attrs, logx.Bool("systemd.notify", newCfg.Systemd.Notify))
	}

	return changed, attrs
}

// RestartRequired lists the changed sections that only take effect on restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "http", "storage", "telegram", "systemd", "maintenance":
			out = append(out, s)
		}
	}
	return out
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}
