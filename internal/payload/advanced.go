package payload

// Advanced is the full manual-control variant of Options. Nothing is derived
// from categories or priorities; every key is emitted exactly as given.
type Advanced struct {
	Sound             string
	Critical          bool
	Volume            *float64
	Badge             *int
	InterruptionLevel string

	PresentationOptions []string
	Group               string
	Subtitle            string
	Subject             string

	Channel          string
	Importance       string
	VibrationPattern string
	LEDColor         string
	Color            string
	Visibility       string
	IconURL          string
	NotificationIcon string

	Tag         string
	Sticky      bool
	Persistent  bool
	AlertOnce   bool
	Timeout     int
	CarUI       bool
	ClickAction string

	Image        string
	Video        string
	Audio        string
	CameraEntity string

	Actions    []map[string]any
	ActionData map[string]any

	// Extra replaces top-level keys (no nested union).
	Extra map[string]any
}

// BuildAdvanced renders a. Unlike Build, the push block only exists when one
// of its fields was supplied and a critical sound requires a sound name.
func BuildAdvanced(a Advanced) Payload {
	data := Payload{}

	push := map[string]any{}
	if a.Sound != "" {
		if a.Critical {
			vol := 1.0
			if a.Volume != nil {
				vol = *a.Volume
			}
			push[KeySound] = map[string]any{"name": a.Sound, "critical": 1, "volume": vol}
		} else {
			push[KeySound] = a.Sound
		}
	}
	if a.Badge != nil {
		push[KeyBadge] = *a.Badge
	}
	if a.InterruptionLevel != "" {
		push[KeyInterruptionLevel] = a.InterruptionLevel
	}
	if len(push) > 0 {
		data[KeyPush] = push
	}

	if len(a.PresentationOptions) > 0 {
		data[KeyPresentationOptions] = append([]string(nil), a.PresentationOptions...)
	}
	if a.Group != "" {
		data[KeyGroup] = a.Group
		data[KeyThreadID] = a.Group
	}
	setString(data, KeySubtitle, a.Subtitle)
	setString(data, KeySubject, a.Subject)
	setString(data, KeyChannel, a.Channel)
	setString(data, KeyImportance, a.Importance)
	setString(data, KeyVibrationPattern, a.VibrationPattern)
	setString(data, KeyLEDColor, a.LEDColor)
	setString(data, KeyColor, a.Color)
	setString(data, KeyVisibility, a.Visibility)
	setString(data, KeyIconURL, a.IconURL)
	setString(data, KeyNotificationIcon, a.NotificationIcon)

	setString(data, KeyTag, a.Tag)
	setTrue(data, KeySticky, a.Sticky)
	setTrue(data, KeyPersistent, a.Persistent)
	setTrue(data, KeyAlertOnce, a.AlertOnce)
	if a.Timeout > 0 {
		data[KeyTimeout] = a.Timeout
	}
	setTrue(data, KeyCarUI, a.CarUI)
	if a.ClickAction != "" {
		data[KeyClickAction] = a.ClickAction
		data[KeyURL] = a.ClickAction
	}

	setString(data, KeyImage, a.Image)
	setString(data, KeyVideo, a.Video)
	setString(data, KeyAudio, a.Audio)
	if a.CameraEntity != "" {
		data[KeyEntityID] = a.CameraEntity
		data[KeyImage] = CameraProxyPath + a.CameraEntity
	}

	if len(a.Actions) > 0 {
		data[KeyActions] = a.Actions
	}
	if len(a.ActionData) > 0 {
		data[KeyActionData] = cloneMap(a.ActionData)
	}

	for k, v := range a.Extra {
		data[k] = v
	}
	return data
}
