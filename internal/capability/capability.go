// Package capability is the per-device "send" surface the dispatcher calls.
//
// A device id maps to exactly one Handle. Handles are built from config by the
// app (see internal/app) and swapped atomically on reload.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrDeviceNotRegistered = errors.New("device not registered")

// DeviceID identifies a target device, e.g. "kitchen_phone".
type DeviceID string

// Notification is what one device receives.
type Notification struct {
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Handle delivers a notification to one device.
type Handle interface {
	Send(ctx context.Context, n Notification) error
}

// HandleFunc adapts a function to Handle.
type HandleFunc func(ctx context.Context, n Notification) error

func (f HandleFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// Registration is one registry entry.
type Registration struct {
	ID     DeviceID `json:"id"`
	Driver string   `json:"driver"`
	Handle Handle   `json:"-"`
}

// Registry is the device directory. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[DeviceID]Registration
}

func NewRegistry() *Registry {
	return &Registry{m: map[DeviceID]Registration{}}
}

// Register adds or replaces a device.
func (r *Registry) Register(id DeviceID, driver string, h Handle) error {
	if id == "" {
		return errors.New("device id is empty")
	}
	if h == nil {
		return fmt.Errorf("device %s: nil handle", id)
	}
	r.mu.Lock()
	r.m[id] = Registration{ID: id, Driver: driver, Handle: h}
	r.mu.Unlock()
	return nil
}

func (r *Registry) Unregister(id DeviceID) {
	r.mu.Lock()
	delete(r.m, id)
	r.mu.Unlock()
}

// Swap replaces every registration at once.
func (r *Registry) Swap(regs []Registration) {
	m := make(map[DeviceID]Registration, len(regs))
	for _, reg := range regs {
		if reg.ID == "" || reg.Handle == nil {
			continue
		}
		m[reg.ID] = reg
	}
	r.mu.Lock()
	r.m = m
	r.mu.Unlock()
}

// Lookup returns the handle for id or ErrDeviceNotRegistered.
func (r *Registry) Lookup(id DeviceID) (Handle, error) {
	r.mu.RLock()
	reg, ok := r.m[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotRegistered, id)
	}
	return reg.Handle, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id DeviceID) bool {
	r.mu.RLock()
	_, ok := r.m[id]
	r.mu.RUnlock()
	return ok
}

// Devices lists registered ids in sorted order.
func (r *Registry) Devices() []DeviceID {
	r.mu.RLock()
	out := make([]DeviceID, 0, len(r.m))
	for id := range r.m {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Registrations lists entries sorted by id.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	out := make([]Registration, 0, len(r.m))
	for _, reg := range r.m {
		out = append(out, reg)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
