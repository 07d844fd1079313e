package payload

import "notifymanager/internal/policy"

// Build maps an intent to a cross-platform payload.
//
// Build is pure: it reads cats and o, mutates neither, and returns a new map.
// Identical inputs produce identical payloads.
func Build(cats policy.Categories, o Options) Payload {
	pp := policy.PolicyFor(o.Priority)
	cat, _ := cats.Lookup(o.Category)

	data := Payload{}
	push := map[string]any{}

	switch {
	case o.Priority == policy.PriorityCritical || pp.Critical:
		// Critical sounds bypass do-not-disturb, whatever the caller asked for.
		name := o.Sound
		if name == "" {
			name = "default"
		}
		push[KeySound] = map[string]any{"name": name, "critical": 1, "volume": 1.0}
	case o.Sound != "":
		push[KeySound] = o.Sound
	case cat.Sound != "":
		push[KeySound] = cat.Sound
	}

	push[KeyInterruptionLevel] = interruptionLevel(o.Priority, pp, cat)

	if o.Badge != nil {
		push[KeyBadge] = *o.Badge
	}
	if len(o.PresentationOptions) > 0 {
		data[KeyPresentationOptions] = append([]string(nil), o.PresentationOptions...)
	}
	if len(push) > 0 {
		data[KeyPush] = push
	}

	if o.Group != "" {
		data[KeyThreadID] = o.Group
	}
	if o.Subtitle != "" {
		data[KeySubtitle] = o.Subtitle
	}

	data[KeyChannel] = channel(o, cat)
	data[KeyImportance] = pp.Importance
	if o.Priority.IsUrgent() {
		data[KeyTTL] = 0
		data[KeyPriority] = "high"
	}

	switch {
	case o.Color != "":
		data[KeyColor] = o.Color
	case cat.Color != "":
		data[KeyColor] = cat.Color
	}

	setString(data, KeySubject, o.Subject)
	setString(data, KeyVibrationPattern, o.VibrationPattern)
	setString(data, KeyLEDColor, o.LEDColor)
	setString(data, KeyIconURL, o.IconURL)
	setString(data, KeyNotificationIcon, o.NotificationIcon)
	setString(data, KeyVisibility, o.Visibility)
	setTrue(data, KeyAlertOnce, o.AlertOnce)
	setTrue(data, KeyCarUI, o.CarUI)

	if o.Progress != nil {
		data[KeyProgress] = *o.Progress
		pmax := o.ProgressMax
		if pmax == 0 {
			pmax = 100
		}
		data[KeyProgressMax] = pmax
		setTrue(data, KeyProgressIndet, o.ProgressIndeterminate)
	}

	if o.Chronometer {
		data[KeyChronometer] = true
		if o.When != nil {
			data[KeyWhen] = *o.When
		}
		setTrue(data, KeyWhenRelative, o.WhenRelative)
	}

	setString(data, KeyTag, o.Tag)
	setString(data, KeyGroup, o.Group)
	setTrue(data, KeyPersistent, o.Persistent)
	setTrue(data, KeySticky, o.Sticky)
	if o.Timeout > 0 {
		data[KeyTimeout] = o.Timeout
	}
	if o.ClickAction != "" {
		data[KeyClickAction] = o.ClickAction
		data[KeyURL] = o.ClickAction
	}

	if acts := policy.ActionMaps(o.Actions); acts != nil {
		data[KeyActions] = acts
	}
	if len(o.ActionData) > 0 {
		data[KeyActionData] = cloneMap(o.ActionData)
	}

	setString(data, KeyImage, o.Image)
	setString(data, KeyVideo, o.Video)
	setString(data, KeyAudio, o.Audio)
	if o.CameraEntity != "" {
		data[KeyEntityID] = o.CameraEntity
		data[KeyImage] = CameraProxyPath + o.CameraEntity
	}

	if o.AttachmentHideThumbnail || o.AttachmentLazy || o.AttachmentContentType != "" {
		att := map[string]any{}
		setTrue(att, "hide-thumbnail", o.AttachmentHideThumbnail)
		setTrue(att, "lazy", o.AttachmentLazy)
		setString(att, "content-type", o.AttachmentContentType)
		data[KeyAttachment] = att
	}

	Merge(data, o.Extra)
	return data
}

// interruptionLevel is total: exactly one level is chosen for every input.
func interruptionLevel(p policy.Priority, pp policy.PriorityPolicy, cat policy.Category) string {
	switch p {
	case policy.PriorityCritical:
		return policy.LevelCritical
	case policy.PriorityHigh:
		return policy.LevelTimeSensitive
	case policy.PriorityLow:
		return policy.LevelPassive
	}
	if cat.InterruptionLevel != "" {
		return cat.InterruptionLevel
	}
	if pp.InterruptionLevel != "" {
		return pp.InterruptionLevel
	}
	return policy.LevelActive
}

func channel(o Options, cat policy.Category) string {
	switch {
	case o.Channel != "":
		return o.Channel
	case cat.Channel != "":
		return cat.Channel
	case o.Category != "":
		return o.Category
	}
	return "default"
}

// Merge applies extra onto data in place. When both sides hold a map for the
// same key, the maps are shallow-unioned with extra winning per sub-key; any
// other collision replaces the built value entirely.
func Merge(data Payload, extra map[string]any) {
	for k, v := range extra {
		cur, ok := data[k].(map[string]any)
		add, isMap := v.(map[string]any)
		if ok && isMap {
			merged := cloneMap(cur)
			for sk, sv := range add {
				merged[sk] = sv
			}
			data[k] = merged
			continue
		}
		data[k] = v
	}
}

func setString(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}

func setTrue(m map[string]any, k string, v bool) {
	if v {
		m[k] = true
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
