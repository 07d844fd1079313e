package actions

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Canonical is the re-emitted form of a raw response event.
//
// On the wire it is flat: every raw field, then the curated fields on top.
// A raw key that collides with a curated name ("action", "reply_text",
// "source_device", "tag") is shadowed.
type Canonical struct {
	Action       string
	ReplyText    string
	SourceDevice string
	Tag          string
	Raw          map[string]any
}

// Map renders the flat event. The four curated keys are always present;
// missing values are "".
func (c Canonical) Map() map[string]any {
	out := make(map[string]any, len(c.Raw)+4)
	for k, v := range c.Raw {
		out[k] = v
	}
	out["action"] = c.Action
	out["reply_text"] = c.ReplyText
	out["source_device"] = c.SourceDevice
	out["tag"] = c.Tag
	return out
}

func (c Canonical) MarshalJSON() ([]byte, error) { return json.Marshal(c.Map()) }

// canonicalize extracts the curated fields from raw.
func canonicalize(raw map[string]any) Canonical {
	return Canonical{
		Action:       str(raw["action"]),
		ReplyText:    str(raw["reply_text"]),
		SourceDevice: str(raw["sourceDeviceID"]),
		Tag:          str(raw["tag"]),
		Raw:          raw,
	}
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

// Filter selects canonical events. Empty fields match anything.
type Filter struct {
	Action  string   `json:"action,omitempty"`
	Actions []string `json:"actions,omitempty"`
	// Device matches the source device or a raw device_id field.
	Device string `json:"device,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

func (f Filter) IsZero() bool {
	return f.Action == "" && len(f.Actions) == 0 && f.Device == "" && f.Tag == ""
}

func (f Filter) Match(c Canonical) bool {
	if f.Action != "" && c.Action != f.Action {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, c.Action) {
		return false
	}
	if f.Device != "" && c.SourceDevice != f.Device && str(c.Raw["device_id"]) != f.Device {
		return false
	}
	if f.Tag != "" && c.Tag != f.Tag {
		return false
	}
	return true
}
