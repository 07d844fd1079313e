package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"notifymanager/internal/capability"
	"notifymanager/internal/capability/telegram"
	"notifymanager/internal/config"
	"notifymanager/internal/manager"
	"notifymanager/internal/policy"
	logx "notifymanager/pkg/logx"
)

// buildRegistrations turns the capabilities section into registry entries.
// A broken device is skipped and reported; the others are still returned.
func buildRegistrations(cfg *Config, tg *telegram.Transport, log logx.Logger) ([]capability.Registration, error) {
	if cfg == nil {
		return nil, nil
	}
	var errs []error
	var regs []capability.Registration
	if tg != nil {
		tg.ResetDevices()
	}

	timeout, err := parseDurationOrDefault("webhook.timeout", cfg.Webhook.Timeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	hooks := capability.NewWebhookClient(capability.WebhookConfig{
		Timeout:    timeout,
		RatePerSec: cfg.Webhook.RatePerSec,
		Burst:      cfg.Webhook.Burst,
		Retries:    cfg.Webhook.Retries,
		Headers:    cfg.Webhook.Headers,
	})

	var push *capability.WebPushSender
	pushSender := func() (*capability.WebPushSender, error) {
		if push != nil {
			return push, nil
		}
		ttl, err := parseDurationOrDefault("webpush.ttl", cfg.WebPush.TTL, 12*time.Hour)
		if err != nil {
			return nil, err
		}
		push, err = capability.NewWebPushSender(capability.WebPushConfig{
			VAPIDPublicKey:  cfg.WebPush.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.WebPush.VAPIDPrivateKey,
			Subscriber:      cfg.WebPush.Subscriber,
			TTL:             ttl,
		})
		return push, err
	}

	ids := make([]string, 0, len(cfg.Capabilities.Devices))
	for id := range cfg.Capabilities.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		dc := cfg.Capabilities.Devices[id]
		dev := capability.DeviceID(id)
		var h capability.Handle
		var err error
		switch strings.ToLower(strings.TrimSpace(dc.Driver)) {
		case config.DriverLog:
			h = capability.LogHandle{ID: dev, Log: log}
		case config.DriverWebhook:
			h, err = hooks.Device(dev, dc.URL)
		case config.DriverWebPush:
			var s *capability.WebPushSender
			if s, err = pushSender(); err == nil {
				if dc.Subscription == nil {
					err = errors.New("subscription is required")
				} else {
					h, err = s.Device(capability.Subscription{
						Endpoint: dc.Subscription.Endpoint,
						P256dh:   dc.Subscription.P256dh,
						Auth:     dc.Subscription.Auth,
					})
				}
			}
		case config.DriverTelegram:
			if tg == nil {
				err = errors.New("telegram is not enabled")
			} else {
				h = tg.Device(dev, dc.ChatID, dc.ThreadID)
			}
		default:
			err = fmt.Errorf("unknown driver %q", dc.Driver)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("capabilities.devices.%s: %w", id, err))
			continue
		}
		regs = append(regs, capability.Registration{ID: dev, Driver: dc.Driver, Handle: h})
	}

	// Default devices without an entry fall back to the default driver.
	if cfg.Capabilities.DefaultDriver == config.DriverLog {
		for _, id := range cfg.Notify.Devices {
			if _, ok := cfg.Capabilities.Devices[id]; ok || id == "" {
				continue
			}
			dev := capability.DeviceID(id)
			regs = append(regs, capability.Registration{ID: dev, Driver: config.DriverLog, Handle: capability.LogHandle{ID: dev, Log: log}})
		}
	}
	return regs, errors.Join(errs...)
}

func managerOptions(cfg *Config) manager.Options {
	if cfg == nil {
		return manager.Options{}
	}
	prio, _ := policy.ParsePriority(cfg.Notify.DefaultPriority, policy.PriorityNormal)
	return manager.Options{
		Devices:         append([]string(nil), cfg.Notify.Devices...),
		DefaultPriority: prio,
		Categories:      cfg.Notify.Categories,
		Groups:          cfg.Notify.Groups,
		ForwardTargets:  append([]string(nil), cfg.Logging.Forward.Targets...),
	}
}
