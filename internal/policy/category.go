package policy

import "sort"

// Category is a named policy bucket supplying payload defaults and an
// enable/disable gate.
type Category struct {
	Name              string   `json:"name,omitempty"`
	NameEN            string   `json:"name_en,omitempty"`
	Icon              string   `json:"icon,omitempty"`
	Enabled           bool     `json:"enabled"`
	Priority          Priority `json:"priority,omitempty"`
	Sound             string   `json:"sound,omitempty"`
	Channel           string   `json:"channel,omitempty"`
	Color             string   `json:"color,omitempty"`
	InterruptionLevel string   `json:"interruption_level,omitempty"`
}

// CategoryOverride patches a Category; nil fields keep the base value.
type CategoryOverride struct {
	Name              *string   `json:"name,omitempty"`
	Enabled           *bool     `json:"enabled,omitempty"`
	Priority          *Priority `json:"priority,omitempty"`
	Sound             *string   `json:"sound,omitempty"`
	Channel           *string   `json:"channel,omitempty"`
	Color             *string   `json:"color,omitempty"`
	InterruptionLevel *string   `json:"interruption_level,omitempty"`
}

// Categories is keyed by category id (e.g. "alarm").
type Categories map[string]Category

// Default category ids.
const (
	CategoryAlarm    = "alarm"
	CategorySecurity = "security"
	CategoryDoorbell = "doorbell"
	CategoryMotion   = "motion"
	CategoryClimate  = "climate"
	CategorySystem   = "system"
	CategoryInfo     = "info"
)

// DefaultCategoryOrder is the display order of the seeded categories.
var DefaultCategoryOrder = []string{
	CategoryAlarm, CategorySecurity, CategoryDoorbell, CategoryMotion,
	CategoryClimate, CategorySystem, CategoryInfo,
}

// DefaultCategories returns a fresh copy of the seeded category table.
func DefaultCategories() Categories {
	return Categories{
		CategoryAlarm: {
			Name: "Alarm", NameEN: "Alarm", Icon: "mdi:shield-alert", Enabled: true,
			Priority: PriorityCritical, Sound: "alarm.caf", Channel: "alarm",
			Color: "#F44336", InterruptionLevel: LevelCritical,
		},
		CategorySecurity: {
			Name: "Sicherheit", NameEN: "Security", Icon: "mdi:shield-home", Enabled: true,
			Priority: PriorityHigh, Sound: "default", Channel: "security",
			Color: "#FF5722", InterruptionLevel: LevelTimeSensitive,
		},
		CategoryDoorbell: {
			Name: "Türklingel", NameEN: "Doorbell", Icon: "mdi:doorbell", Enabled: true,
			Priority: PriorityHigh, Sound: "doorbell.caf", Channel: "doorbell",
			Color: "#FF9800", InterruptionLevel: LevelTimeSensitive,
		},
		CategoryMotion: {
			Name: "Bewegung", NameEN: "Motion", Icon: "mdi:motion-sensor", Enabled: true,
			Priority: PriorityNormal, Sound: "default", Channel: "motion",
			Color: "#2196F3", InterruptionLevel: LevelActive,
		},
		CategoryClimate: {
			Name: "Klima", NameEN: "Climate", Icon: "mdi:thermostat", Enabled: true,
			Priority: PriorityNormal, Sound: "default", Channel: "climate",
			Color: "#00BCD4", InterruptionLevel: LevelActive,
		},
		CategorySystem: {
			Name: "System", NameEN: "System", Icon: "mdi:cog", Enabled: true,
			Priority: PriorityLow, Sound: "none", Channel: "system",
			Color: "#9E9E9E", InterruptionLevel: LevelPassive,
		},
		CategoryInfo: {
			Name: "Information", NameEN: "Information", Icon: "mdi:information", Enabled: true,
			Priority: PriorityLow, Sound: "none", Channel: "info",
			Color: "#4CAF50", InterruptionLevel: LevelPassive,
		},
	}
}

func (c Categories) Clone() Categories {
	out := make(Categories, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Lookup returns the category named name. An empty name is never found.
func (c Categories) Lookup(name string) (Category, bool) {
	if name == "" {
		return Category{}, false
	}
	cat, ok := c[name]
	return cat, ok
}

// Enabled reports whether sends in category name are allowed.
// Unknown and empty categories are enabled.
func (c Categories) Enabled(name string) bool {
	cat, ok := c.Lookup(name)
	return !ok || cat.Enabled
}

// Names returns category ids: seeded ones in display order, then the rest sorted.
func (c Categories) Names() []string {
	out := make([]string, 0, len(c))
	seen := make(map[string]struct{}, len(c))
	for _, n := range DefaultCategoryOrder {
		if _, ok := c[n]; ok {
			out = append(out, n)
			seen[n] = struct{}{}
		}
	}
	extra := make([]string, 0)
	for n := range c {
		if _, ok := seen[n]; !ok {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Apply returns a copy of c with overrides applied. Unknown ids create new
// categories that start enabled with the id as channel.
func (c Categories) Apply(overrides map[string]CategoryOverride) Categories {
	out := c.Clone()
	for id, o := range overrides {
		cat, ok := out[id]
		if !ok {
			cat = Category{Name: id, NameEN: id, Enabled: true, Priority: PriorityNormal, Channel: id}
		}
		if o.Name != nil {
			cat.Name = *o.Name
		}
		if o.Enabled != nil {
			cat.Enabled = *o.Enabled
		}
		if o.Priority != nil {
			cat.Priority = *o.Priority
		}
		if o.Sound != nil {
			cat.Sound = *o.Sound
		}
		if o.Channel != nil {
			cat.Channel = *o.Channel
		}
		if o.Color != nil {
			cat.Color = *o.Color
		}
		if o.InterruptionLevel != nil {
			cat.InterruptionLevel = *o.InterruptionLevel
		}
		out[id] = cat
	}
	return out
}
