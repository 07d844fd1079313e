package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"notifymanager/internal/config"
	"notifymanager/internal/storage"
)

func mapStorageConfig(cfg *Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file":
		return storage.Config{Driver: "file", Path: strings.TrimSpace(sc.File.Path)}, true, nil
	case "sqlite", "sqlite3":
		path := strings.TrimSpace(sc.SQLite.Path)
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.sqlite.path is required when storage.driver=sqlite")
		}
		busy, err := parseDurationOrDefault("storage.sqlite.busy_timeout", sc.SQLite.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	case "redis":
		addr := strings.TrimSpace(sc.Redis.Addr)
		if addr == "" {
			return storage.Config{}, false, fmt.Errorf("storage.redis.addr is required when storage.driver=redis")
		}
		return storage.Config{
			Driver:   "redis",
			Addr:     addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Key:      strings.TrimSpace(sc.Redis.Key),
		}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// CheckConfig loads and validates the config at path without starting
// anything. It returns one line per configured device.
func CheckConfig(path string) ([]string, error) {
	cfg, err := NewConfigManager(path).Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.HTTP.Enabled {
		if _, err := mapHTTPConfig(cfg); err != nil {
			return nil, err
		}
	}
	ids := make([]string, 0, len(cfg.Capabilities.Devices))
	for id := range cfg.Capabilities.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf("%s\t%s", id, cfg.Capabilities.Devices[id].Driver))
	}
	return out, nil
}
