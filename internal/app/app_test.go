package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifymanager/internal/capability"
	"notifymanager/internal/config"
	"notifymanager/internal/policy"
	logx "notifymanager/pkg/logx"
)

func TestMapStorageConfig(t *testing.T) {
	cases := []struct {
		name    string
		st      *config.StorageConfig
		enabled bool
		driver  string
		wantErr bool
	}{
		{name: "nil", st: nil},
		{name: "none", st: &config.StorageConfig{Driver: "none"}},
		{name: "file", st: &config.StorageConfig{Driver: "file", File: config.StorageFileConfig{Path: " ./t.json "}}, enabled: true, driver: "file"},
		{name: "sqlite", st: &config.StorageConfig{Driver: "SQLite", SQLite: config.StorageSQLite{Path: "nm.db"}}, enabled: true, driver: "sqlite"},
		{name: "sqlite without path", st: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "sqlite bad busy", st: &config.StorageConfig{Driver: "sqlite", SQLite: config.StorageSQLite{Path: "nm.db", BusyTimeout: "soon"}}, wantErr: true},
		{name: "redis", st: &config.StorageConfig{Driver: "redis", Redis: config.StorageRedisConfig{Addr: "localhost:6379"}}, enabled: true, driver: "redis"},
		{name: "unknown", st: &config.StorageConfig{Driver: "etcd"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc, enabled, err := mapStorageConfig(&Config{Storage: tc.st})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.enabled, enabled)
			assert.Equal(t, tc.driver, sc.Driver)
		})
	}

	sc, _, err := mapStorageConfig(&Config{Storage: &config.StorageConfig{Driver: "sqlite", SQLite: config.StorageSQLite{Path: "nm.db"}}})
	require.NoError(t, err)
	assert.Equal(t, time.Second, sc.BusyTimeout)
	sc, _, _ = mapStorageConfig(&Config{Storage: &config.StorageConfig{Driver: "file", File: config.StorageFileConfig{Path: " ./t.json "}}})
	assert.Equal(t, "./t.json", sc.Path)
}

func TestBuildRegistrations(t *testing.T) {
	cfg := &Config{
		Notify: config.NotifyConfig{Devices: []string{"phone", "tablet", "kitchen"}},
		Capabilities: config.CapabilitiesConfig{
			DefaultDriver: config.DriverLog,
			Devices: map[string]config.DeviceConfig{
				"phone":  {Driver: config.DriverWebhook, URL: "https://hooks.example.com/phone"},
				"tablet": {Driver: config.DriverLog},
				"broken": {Driver: config.DriverWebhook, URL: "::nope"},
				"tg":     {Driver: config.DriverTelegram, ChatID: 42},
				"push":   {Driver: config.DriverWebPush},
				"odd":    {Driver: "pigeon"},
			},
		},
	}

	regs, err := buildRegistrations(cfg, nil, logx.Nop())
	require.Error(t, err)
	msg := err.Error()
	for _, id := range []string{"broken", "tg", "push", "odd"} {
		assert.Contains(t, msg, "capabilities.devices."+id)
	}
	assert.NotContains(t, msg, "capabilities.devices.phone")

	drivers := map[capability.DeviceID]string{}
	for _, r := range regs {
		require.NotNil(t, r.Handle)
		drivers[r.ID] = r.Driver
	}
	assert.Equal(t, map[capability.DeviceID]string{
		"phone":   config.DriverWebhook,
		"tablet":  config.DriverLog,
		"kitchen": config.DriverLog,
	}, drivers)
}

func TestBuildRegistrationsWithoutDefaultDriver(t *testing.T) {
	cfg := &Config{Notify: config.NotifyConfig{Devices: []string{"phone"}}}
	regs, err := buildRegistrations(cfg, nil, logx.Nop())
	require.NoError(t, err)
	assert.Empty(t, regs)

	cfg.Webhook.Timeout = "later"
	_, err = buildRegistrations(cfg, nil, logx.Nop())
	assert.Error(t, err)
}

func TestManagerOptions(t *testing.T) {
	cfg := &Config{
		Logging: config.LoggingConfig{Forward: config.LoggingForward{Targets: []string{"admin"}}},
		Notify: config.NotifyConfig{
			Devices:         []string{"a", "b"},
			DefaultPriority: "high",
			Groups:          map[string][]string{"family": {"a"}},
		},
	}
	opts := managerOptions(cfg)
	assert.Equal(t, []string{"a", "b"}, opts.Devices)
	assert.Equal(t, policy.PriorityHigh, opts.DefaultPriority)
	assert.Equal(t, []string{"admin"}, opts.ForwardTargets)
	assert.Equal(t, []string{"a"}, opts.Groups["family"])

	cfg.Notify.DefaultPriority = "shouting"
	assert.Equal(t, policy.PriorityNormal, managerOptions(cfg).DefaultPriority)
}

func TestMapHTTPConfig(t *testing.T) {
	cfg := &Config{HTTP: config.HTTPConfig{Enabled: true, Addr: " 127.0.0.1:9000 ", Token: "t", StreamBuffer: 8}}
	hc, err := mapHTTPConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", hc.Addr)
	assert.Equal(t, 15*time.Second, hc.ReadTimeout)
	assert.Zero(t, hc.WriteTimeout)
	assert.Equal(t, "t", hc.Token)

	cfg.HTTP.ReadTimeout = "quick"
	_, err = mapHTTPConfig(cfg)
	assert.Error(t, err)
}

const appYAML = `
logging:
  level: error
  console: false
notify:
  devices: [phone]
capabilities:
  default_driver: log
storage:
  driver: file
  file: { path: %STORE% }
maintenance:
  enabled: true
  schedule: "@every 1h"
`

func writeAppConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	body = strings.ReplaceAll(body, "%STORE%", filepath.Join(dir, "templates.json"))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestAppLifecycleAndReload(t *testing.T) {
	dir := t.TempDir()
	path := writeAppConfig(t, dir, appYAML)

	lines, err := CheckConfig(path)
	require.NoError(t, err)
	assert.Empty(t, lines)

	a, err := NewApp(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	res := a.Manager().SendTest(ctx)
	assert.Equal(t, 1, res.Delivered)
	assert.True(t, a.Manager().DeviceAvailable("phone"))
	assert.False(t, a.Manager().DeviceAvailable("tablet"))

	writeAppConfig(t, dir, strings.Replace(appYAML, "devices: [phone]", "devices: [phone, tablet]", 1))
	_, err = a.cfgm.Reload(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.Manager().DeviceAvailable("tablet") }, 3*time.Second, 20*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))
	assert.NoError(t, a.Err())

	select {
	case <-a.Done():
	default:
		t.Fatal("app context still live after stop")
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeAppConfig(t, dir, strings.Replace(appYAML, "level: error", "level: loud", 1))
	_, err := NewApp(path)
	assert.Error(t, err)
	_, err = CheckConfig(path)
	assert.Error(t, err)
}
