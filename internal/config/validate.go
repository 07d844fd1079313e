package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"notifymanager/internal/maintenance"
	"notifymanager/internal/policy"
	logx "notifymanager/pkg/logx"
)

// Capability driver names accepted in capabilities.devices.
const (
	DriverLog      = "log"
	DriverWebhook  = "webhook"
	DriverWebPush  = "webpush"
	DriverTelegram = "telegram"
)

// Validate checks the parts of cfg that cannot be caught by strict decoding.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" && !logx.ValidLevel(lv) {
		add("logging.level: unknown level %q", lv)
	}
	if lv := strings.TrimSpace(cfg.Logging.Forward.MinLevel); lv != "" && !logx.ValidLevel(lv) {
		add("logging.forward.min_level: unknown level %q", lv)
	}
	if cfg.Logging.Forward.Enabled && len(cfg.Logging.Forward.Targets) == 0 && len(cfg.Notify.Devices) == 0 {
		add("logging.forward: no targets and no notify.devices")
	}

	if p := strings.TrimSpace(cfg.Notify.DefaultPriority); p != "" && !policy.Priority(p).Valid() {
		add("notify.default_priority: unknown priority %q", p)
	}
	for name, o := range cfg.Notify.Categories {
		if o.Priority != nil && !o.Priority.Valid() {
			add("notify.categories.%s.priority: unknown priority %q", name, *o.Priority)
		}
	}
	for name, devs := range cfg.Notify.Groups {
		if strings.TrimSpace(name) == "" || len(devs) == 0 {
			add("notify.groups: group %q needs a name and devices", name)
		}
	}

	if d := cfg.Capabilities.DefaultDriver; d != "" && d != DriverLog {
		// Other drivers need per-device settings.
		add("capabilities.default_driver: only %q can be a default, got %q", DriverLog, d)
	}
	for id, dc := range cfg.Capabilities.Devices {
		errs = append(errs, validateDevice(cfg, id, dc)...)
	}

	if _, err := ParseDurationField("webhook.timeout", cfg.Webhook.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("webpush.ttl", cfg.WebPush.TTL); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		add("telegram.token is required when telegram.enabled")
	}

	if st := cfg.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none":
		case "file":
			if strings.TrimSpace(st.File.Path) == "" {
				add("storage.file.path is required when storage.driver=file")
			}
		case "sqlite", "sqlite3":
			if strings.TrimSpace(st.SQLite.Path) == "" {
				add("storage.sqlite.path is required when storage.driver=sqlite")
			}
			if _, err := ParseDurationField("storage.sqlite.busy_timeout", st.SQLite.BusyTimeout); err != nil {
				errs = append(errs, err)
			}
		case "redis":
			if strings.TrimSpace(st.Redis.Addr) == "" {
				add("storage.redis.addr is required when storage.driver=redis")
			}
		default:
			add("unknown storage.driver: %s", st.Driver)
		}
	}

	for path, raw := range map[string]string{
		"http.read_timeout":       cfg.HTTP.ReadTimeout,
		"http.write_timeout":      cfg.HTTP.WriteTimeout,
		"maintenance.pending_ttl": cfg.Maintenance.PendingTTL,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	if err := maintenance.Validate(cfg.Maintenance.Schedule); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateDevice(cfg *Config, id string, dc DeviceConfig) []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("capabilities.devices.%s: "+format, append([]any{id}, args...)...))
	}
	switch dc.Driver {
	case DriverLog:
	case DriverWebhook:
		u, err := url.Parse(dc.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("webhook driver needs an http(s) url")
		}
	case DriverWebPush:
		if dc.Subscription == nil || dc.Subscription.Endpoint == "" || dc.Subscription.P256dh == "" || dc.Subscription.Auth == "" {
			add("webpush driver needs subscription.endpoint, p256dh and auth")
		}
		if cfg.WebPush.VAPIDPrivateKey == "" || cfg.WebPush.VAPIDPublicKey == "" {
			add("webpush driver needs webpush.vapid_public_key and vapid_private_key")
		}
	case DriverTelegram:
		if dc.ChatID == 0 {
			add("telegram driver needs chat_id")
		}
		if !cfg.Telegram.Enabled {
			add("telegram driver needs telegram.enabled")
		}
	default:
		add("unknown driver %q", dc.Driver)
	}
	return errs
}

// Logx maps the logging section onto the logger service config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Forward: logx.ForwardConfig{
			Enabled:    c.Forward.Enabled,
			MinLevel:   c.Forward.MinLevel,
			RatePerSec: c.Forward.RatePerSec,
		},
	}
}
