package policy

// Action behaviors.
const (
	BehaviorDefault   = "default"
	BehaviorTextInput = "textInput"
)

// Action is one notification button.
type Action struct {
	Action                 string `json:"action" validate:"required"`
	Title                  string `json:"title" validate:"required"`
	URI                    string `json:"uri,omitempty"`
	Icon                   string `json:"icon,omitempty"`
	Destructive            bool   `json:"destructive,omitempty"`
	AuthenticationRequired bool   `json:"authenticationRequired,omitempty"`
	Behavior               string `json:"behavior,omitempty" validate:"omitempty,oneof=default textInput"`
	TextInputButtonTitle   string `json:"textInputButtonTitle,omitempty"`
	TextInputPlaceholder   string `json:"textInputPlaceholder,omitempty"`
}

// IsTextInput reports whether the action shows a reply affordance.
func (a Action) IsTextInput() bool { return a.Behavior == BehaviorTextInput }

// Map renders the action in the wire shape the companion apps expect.
// The text input fields are only emitted for textInput actions.
func (a Action) Map() map[string]any {
	m := map[string]any{
		"action": a.Action,
		"title":  a.Title,
	}
	if a.URI != "" {
		m["uri"] = a.URI
	}
	if a.Icon != "" {
		m["icon"] = a.Icon
	}
	if a.Destructive {
		m["destructive"] = true
	}
	if a.AuthenticationRequired {
		m["authenticationRequired"] = true
	}
	if a.Behavior != "" {
		m["behavior"] = a.Behavior
	}
	if a.IsTextInput() {
		if a.TextInputButtonTitle != "" {
			m["textInputButtonTitle"] = a.TextInputButtonTitle
		}
		if a.TextInputPlaceholder != "" {
			m["textInputPlaceholder"] = a.TextInputPlaceholder
		}
	}
	return m
}

// ActionMaps renders a list of actions; nil for an empty list.
func ActionMaps(actions []Action) []map[string]any {
	if len(actions) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Map())
	}
	return out
}

// Built-in action template names.
const (
	ActionsConfirmDismiss = "confirm_dismiss"
	ActionsAlarmSimple    = "alarm_simple"
	ActionsAlarmResponse  = "alarm_response"
	ActionsDoorResponse   = "door_response"
	ActionsYesNo          = "yes_no"
	ActionsReply          = "reply"

	// ActionsCustom is the sentinel meaning "use the individual button fields".
	ActionsCustom = "custom"
)

// Reply defaults used by text-input prompts.
const (
	DefaultReplyTitle       = "Antworten"
	DefaultReplyButtonTitle = "Senden"
	DefaultReplyPlaceholder = "Nachricht eingeben..."
)

// ActionTemplateNames lists the built-in action templates in display order.
var ActionTemplateNames = []string{
	ActionsConfirmDismiss, ActionsAlarmSimple, ActionsAlarmResponse,
	ActionsDoorResponse, ActionsYesNo, ActionsReply,
}

func builtinActions() map[string][]Action {
	return map[string][]Action{
		ActionsConfirmDismiss: {
			{Action: "CONFIRM", Title: "✅ Bestätigen", Icon: "sfsymbols:checkmark.circle"},
			{Action: "DISMISS", Title: "❌ Ablehnen", Icon: "sfsymbols:xmark.circle"},
		},
		ActionsAlarmSimple: {
			{Action: "ALARM_CONFIRM", Title: "✅ Alles OK", Icon: "sfsymbols:checkmark.shield"},
			{Action: "ALARM_EMERGENCY", Title: "🆘 Notfall!", Icon: "sfsymbols:exclamationmark.triangle", Destructive: true},
		},
		ActionsAlarmResponse: {
			{Action: "ALARM_CONFIRM", Title: "✅ Alles OK", Icon: "sfsymbols:checkmark.shield"},
			{Action: "ALARM_SNOOZE", Title: "⏰ Später", Icon: "sfsymbols:clock"},
			{Action: "ALARM_EMERGENCY", Title: "🆘 Notfall!", Icon: "sfsymbols:exclamationmark.triangle", Destructive: true},
		},
		ActionsDoorResponse: {
			{Action: "DOOR_UNLOCK", Title: "🔓 Öffnen", Icon: "sfsymbols:lock.open"},
			{Action: "DOOR_IGNORE", Title: "🚪 Ignorieren", Icon: "sfsymbols:hand.raised"},
			{Action: "DOOR_SPEAK", Title: "🔊 Sprechen", Icon: "sfsymbols:speaker.wave.2"},
		},
		ActionsYesNo: {
			{Action: "YES", Title: "👍 Ja", Icon: "sfsymbols:hand.thumbsup"},
			{Action: "NO", Title: "👎 Nein", Icon: "sfsymbols:hand.thumbsdown"},
		},
		ActionsReply: {
			{
				Action: "REPLY", Title: "💬 Antworten", Icon: "sfsymbols:arrowshape.turn.up.left",
				Behavior: BehaviorTextInput, TextInputButtonTitle: DefaultReplyButtonTitle,
				TextInputPlaceholder: DefaultReplyPlaceholder,
			},
		},
	}
}

// BuiltinActions returns a copy of the built-in action template name.
func BuiltinActions(name string) ([]Action, bool) {
	acts, ok := builtinActions()[name]
	return acts, ok
}

// KnownActionIDs lists every action id used by the built-in templates.
func KnownActionIDs() []string {
	all := builtinActions()
	seen := map[string]struct{}{}
	out := make([]string, 0, 16)
	for _, name := range ActionTemplateNames {
		for _, a := range all[name] {
			if _, ok := seen[a.Action]; ok {
				continue
			}
			seen[a.Action] = struct{}{}
			out = append(out, a.Action)
		}
	}
	return out
}
