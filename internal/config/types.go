package config

import (
	"notifymanager/internal/policy"
)

type Config struct {
	Logging      LoggingConfig      `json:"logging"`
	Notify       NotifyConfig       `json:"notify"`
	Capabilities CapabilitiesConfig `json:"capabilities"`
	Webhook      WebhookConfig      `json:"webhook,omitempty"`
	WebPush      WebPushConfig      `json:"webpush,omitempty"`
	Telegram     TelegramConfig     `json:"telegram,omitempty"`
	Storage      *StorageConfig     `json:"storage,omitempty"`
	HTTP         HTTPConfig         `json:"http"`
	Maintenance  MaintenanceConfig  `json:"maintenance,omitempty"`
	Systemd      SystemdConfig      `json:"systemd,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Forward LoggingForward `json:"forward,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingForward relays warn+ log lines to devices as low-priority
// notifications in the "system" category.
type LoggingForward struct {
	Enabled    bool     `json:"enabled"`
	Targets    []string `json:"targets,omitempty"`
	MinLevel   string   `json:"min_level,omitempty"`
	RatePerSec int      `json:"rate_per_sec,omitempty"`
}

// NotifyConfig holds dispatch defaults.
//
// Example:
//
//	"notify": {
//	  "devices": ["mobile_app_pixel_7"],
//	  "default_priority": "normal",
//	  "categories": { "motion": { "enabled": false } },
//	  "groups": { "family": ["mobile_app_pixel_7", "mobile_app_iphone"] }
//	}
type NotifyConfig struct {
	Devices         []string                           `json:"devices"`
	DefaultPriority string                             `json:"default_priority,omitempty"`
	Categories      map[string]policy.CategoryOverride `json:"categories,omitempty"`
	// Groups seed device groups; groups saved at runtime take precedence.
	Groups map[string][]string `json:"groups,omitempty"`
	// HistorySize is clamped to 100.
	HistorySize int `json:"history_size,omitempty"`
}

// CapabilitiesConfig maps device ids to send drivers.
type CapabilitiesConfig struct {
	// DefaultDriver is used for devices in notify.devices with no entry.
	// Empty means such devices stay unregistered.
	DefaultDriver string                  `json:"default_driver,omitempty"`
	Devices       map[string]DeviceConfig `json:"devices,omitempty"`
}

// DeviceConfig selects a driver and carries its per-device settings.
type DeviceConfig struct {
	Driver string `json:"driver"`

	// webhook
	URL string `json:"url,omitempty"`

	// webpush
	Subscription *PushSubscription `json:"subscription,omitempty"`

	// telegram
	ChatID   int64 `json:"chat_id,omitempty"`
	ThreadID int   `json:"thread_id,omitempty"`
}

type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type WebhookConfig struct {
	// Timeout is a Go duration string (e.g. "10s").
	Timeout    string            `json:"timeout,omitempty"`
	RatePerSec float64           `json:"rate_per_sec,omitempty"`
	Burst      int               `json:"burst,omitempty"`
	Retries    int               `json:"retries,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// WebPushConfig holds the VAPID identity. Keys are usually given as
// ${VAR} references and expanded from the environment.
type WebPushConfig struct {
	VAPIDPublicKey  string `json:"vapid_public_key,omitempty"`
	VAPIDPrivateKey string `json:"vapid_private_key,omitempty"`
	Subscriber      string `json:"subscriber,omitempty"`
	// TTL is a Go duration string; defaults to 12h.
	TTL string `json:"ttl,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "file": { "path": "./data/notify_manager.json" } }
type StorageConfig struct {
	Driver string             `json:"driver"`
	File   StorageFileConfig  `json:"file,omitempty"`
	SQLite StorageSQLite      `json:"sqlite,omitempty"`
	Redis  StorageRedisConfig `json:"redis,omitempty"`
}

type StorageFileConfig struct {
	Path string `json:"path"`
}

type StorageSQLite struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type StorageRedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Key      string `json:"key,omitempty"`
}

// HTTPConfig controls the API server.
//
// Security note:
//   - Without a token the API is open. Keep it on localhost or set http.token.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8787"

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`

	// Token, when set, is required as "Authorization: Bearer <token>" or
	// ?token=. Binding a non-loopback addr without a token is refused
	// unless AllowInsecure is set.
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	Metrics bool `json:"metrics,omitempty"`
	// Pprof exposes /debug/pprof behind the same token.
	Pprof bool `json:"pprof,omitempty"`
	// StreamBuffer is the per-websocket event buffer. Slow clients drop events.
	StreamBuffer int `json:"stream_buffer,omitempty"`
}

type MaintenanceConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec; default "@every 10m".
	Schedule string `json:"schedule,omitempty"`
	// PendingTTL is a Go duration string; default "24h".
	PendingTTL string `json:"pending_ttl,omitempty"`
}

type SystemdConfig struct {
	Notify bool `json:"notify"`
}
