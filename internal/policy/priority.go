package policy

import (
	"fmt"
	"strings"
)

// Priority is the caller-facing urgency of a notification.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Interruption levels (iOS 15+).
const (
	LevelPassive       = "passive"
	LevelActive        = "active"
	LevelTimeSensitive = "time-sensitive"
	LevelCritical      = "critical"
)

// PriorityPolicy maps a Priority to platform delivery settings.
type PriorityPolicy struct {
	Importance        string `json:"importance"`
	InterruptionLevel string `json:"interruption_level"`
	Priority          string `json:"priority"`
	Critical          bool   `json:"critical,omitempty"`
}

var priorities = map[Priority]PriorityPolicy{
	PriorityLow:      {Importance: "low", InterruptionLevel: LevelPassive, Priority: "low"},
	PriorityNormal:   {Importance: "default", InterruptionLevel: LevelActive, Priority: "default"},
	PriorityHigh:     {Importance: "high", InterruptionLevel: LevelTimeSensitive, Priority: "high"},
	PriorityCritical: {Importance: "high", InterruptionLevel: LevelCritical, Priority: "high", Critical: true},
}

// Priorities lists the valid priorities in ascending urgency.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}

// PolicyFor returns the policy for p, or the normal policy when p is unknown.
func PolicyFor(p Priority) PriorityPolicy {
	if pp, ok := priorities[p]; ok {
		return pp
	}
	return priorities[PriorityNormal]
}

func (p Priority) Valid() bool {
	_, ok := priorities[p]
	return ok
}

// IsUrgent reports whether p demands immediate, non-coalesced delivery.
func (p Priority) IsUrgent() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// ParsePriority parses s case-insensitively. Empty input returns def.
func ParsePriority(s string, def Priority) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def, nil
	}
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q (want low, normal, high or critical)", s)
	}
	return p, nil
}
