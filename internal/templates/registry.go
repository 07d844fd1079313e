package templates

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"notifymanager/internal/policy"
)

var ErrTemplateExists = errors.New("template id already used by another template")

// UnknownTemplateError is returned when a name or id matches no template.
// Known lists every resolvable name for troubleshooting.
type UnknownTemplateError struct {
	Key   string
	Known []string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template %q (known: %s)", e.Key, strings.Join(e.Known, ", "))
}

// Registry merges user notification templates with the built-ins.
// User templates are searched first and are the only mutable part.
type Registry struct {
	mu      sync.RWMutex
	user    []policy.NotificationTemplate
	builtin []policy.NotificationTemplate
}

func NewRegistry() *Registry {
	return &Registry{builtin: policy.BuiltinTemplates()}
}

// Replace swaps the full user template list, e.g. after loading from storage.
func (r *Registry) Replace(user []policy.NotificationTemplate) {
	cp := make([]policy.NotificationTemplate, 0, len(user))
	for _, t := range user {
		cp = append(cp, t.Clone())
	}
	r.mu.Lock()
	r.user = cp
	r.mu.Unlock()
}

// User returns a copy of the user templates in stored order.
func (r *Registry) User() []policy.NotificationTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]policy.NotificationTemplate, 0, len(r.user))
	for _, t := range r.user {
		out = append(out, t.Clone())
	}
	return out
}

// Resolve looks key up as: user by name, user by id, built-in by name,
// built-in by id.
func (r *Registry) Resolve(key string) (policy.NotificationTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, list := range [][]policy.NotificationTemplate{r.user, r.builtin} {
		for _, t := range list {
			if t.Name == key {
				return t.Clone(), nil
			}
		}
		for _, t := range list {
			if t.ID != "" && t.ID == key {
				return t.Clone(), nil
			}
		}
	}
	return policy.NotificationTemplate{}, &UnknownTemplateError{Key: key, Known: r.namesLocked()}
}

// ActionTemplate resolves a button set by name: user templates (name, then
// id) first, then the built-in action templates.
func (r *Registry) ActionTemplate(name string) ([]policy.Action, bool) {
	r.mu.RLock()
	for _, t := range r.user {
		if t.Name == name && len(t.Buttons) > 0 {
			r.mu.RUnlock()
			return append([]policy.Action(nil), t.Buttons...), true
		}
	}
	for _, t := range r.user {
		if t.ID == name && len(t.Buttons) > 0 {
			r.mu.RUnlock()
			return append([]policy.Action(nil), t.Buttons...), true
		}
	}
	r.mu.RUnlock()
	return policy.BuiltinActions(name)
}

// Save inserts t, or replaces the user template with the same name in place.
// A missing id is generated. It returns the stored template and whether it
// was newly created.
func (r *Registry) Save(t policy.NotificationTemplate) (policy.NotificationTemplate, bool, error) {
	t = t.Clone()
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return policy.NotificationTemplate{}, false, errors.New("template name is required")
	}
	if t.Buttons == nil {
		t.Buttons = []policy.Action{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, u := range r.user {
		if u.Name == t.Name {
			idx = i
			break
		}
	}
	if t.ID == "" {
		if idx >= 0 {
			t.ID = r.user[idx].ID
		} else {
			t.ID = uuid.NewString()
		}
	}
	for i, u := range r.user {
		if i != idx && u.ID == t.ID {
			return policy.NotificationTemplate{}, false, fmt.Errorf("%w: %s", ErrTemplateExists, t.ID)
		}
	}

	if idx >= 0 {
		r.user[idx] = t
		return t.Clone(), false, nil
	}
	r.user = append(r.user, t)
	return t.Clone(), true, nil
}

// Delete removes the first user template matching key by name, then by id.
// Built-ins cannot be deleted.
func (r *Registry) Delete(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, byID := range []bool{false, true} {
		for i, u := range r.user {
			if (!byID && u.Name == key) || (byID && u.ID == key) {
				r.user = append(r.user[:i], r.user[i+1:]...)
				return true
			}
		}
	}
	return false
}

// List returns user templates followed by the built-ins whose name is not
// shadowed by a user template.
func (r *Registry) List() []policy.NotificationTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]policy.NotificationTemplate, 0, len(r.user)+len(r.builtin))
	names := make(map[string]struct{}, len(r.user))
	for _, t := range r.user {
		out = append(out, t.Clone())
		names[t.Name] = struct{}{}
	}
	for _, t := range r.builtin {
		if _, shadowed := names[t.Name]; shadowed {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

func (r *Registry) namesLocked() []string {
	out := make([]string, 0, len(r.user)+len(r.builtin))
	seen := map[string]struct{}{}
	for _, list := range [][]policy.NotificationTemplate{r.user, r.builtin} {
		for _, t := range list {
			if _, ok := seen[t.Name]; ok {
				continue
			}
			seen[t.Name] = struct{}{}
			out = append(out, t.Name)
		}
	}
	return out
}
