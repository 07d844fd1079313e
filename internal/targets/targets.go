// Package targets turns caller-supplied target references into device ids.
//
// Resolution is permissive: a derived id is not checked against the
// capability registry here. Unknown devices fail softly at dispatch.
package targets

import (
	"sort"
	"strings"
	"sync"
)

// GroupPrefix marks a target that names a device group.
const GroupPrefix = "group:"

// Resolve maps raw targets to device ids.
//
// A target containing "." is a qualified reference and reduces to its last
// segment ("sensor.kitchen_phone" -> "kitchen_phone"). Anything else is used
// verbatim. An empty input yields defaults. Order and duplicates are kept.
func Resolve(raw, defaults []string) []string {
	src := raw
	if len(nonEmpty(raw)) == 0 {
		src = defaults
	}
	out := make([]string, 0, len(src))
	for _, t := range src {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if i := strings.LastIndexByte(t, '.'); i >= 0 {
			t = t[i+1:]
		}
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Group is a named device list.
type Group struct {
	Name    string   `json:"name" validate:"required"`
	Devices []string `json:"devices" validate:"required,min=1,dive,required"`
}

// Groups holds named device groups. The zero value is empty and usable.
type Groups struct {
	mu sync.RWMutex
	m  map[string][]string
}

// Set creates or replaces a group. An empty device list removes it.
func (g *Groups) Set(name string, devices []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.m == nil {
		g.m = map[string][]string{}
	}
	if len(devices) == 0 {
		delete(g.m, name)
		return
	}
	g.m[name] = append([]string(nil), devices...)
}

// Replace swaps all groups at once.
func (g *Groups) Replace(list []Group) {
	m := make(map[string][]string, len(list))
	for _, gr := range list {
		if gr.Name == "" || len(gr.Devices) == 0 {
			continue
		}
		m[gr.Name] = append([]string(nil), gr.Devices...)
	}
	g.mu.Lock()
	g.m = m
	g.mu.Unlock()
}

// List returns the groups sorted by name.
func (g *Groups) List() []Group {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Group, 0, len(g.m))
	for name, devs := range g.m {
		out = append(out, Group{Name: name, Devices: append([]string(nil), devs...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Expand replaces every "group:<name>" entry by the group's devices. Unknown
// groups expand to nothing and are reported in unknown. Other entries pass
// through untouched.
func (g *Groups) Expand(raw []string) (out, unknown []string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out = make([]string, 0, len(raw))
	for _, t := range raw {
		name, ok := strings.CutPrefix(strings.TrimSpace(t), GroupPrefix)
		if !ok {
			out = append(out, t)
			continue
		}
		devs, found := g.m[name]
		if !found {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, devs...)
	}
	return out, unknown
}

// Explicit reports whether raw names at least one target. Defaults apply
// only when it does not.
func Explicit(raw []string) bool { return len(nonEmpty(raw)) > 0 }
