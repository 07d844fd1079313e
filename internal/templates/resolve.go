package templates

import "notifymanager/internal/policy"

// ActionLookup resolves an action template name to its buttons.
type ActionLookup func(name string) ([]policy.Action, bool)

// Selection is how a caller asked for buttons on an actionable send.
type Selection struct {
	// Template names an action template. policy.ActionsCustom means
	// "use the individual button fields".
	Template string
	Button1  *policy.Action
	Button2  *policy.Action
	Button3  *policy.Action
	// Actions, when non-empty, replaces everything else.
	Actions []policy.Action
}

func present(a *policy.Action) bool { return a != nil && a.Action != "" }

// buttons returns button1..3, stopping at the first gap.
func (s Selection) buttons() []policy.Action {
	if !present(s.Button1) {
		return nil
	}
	out := []policy.Action{*s.Button1}
	if present(s.Button2) {
		out = append(out, *s.Button2)
		if present(s.Button3) {
			out = append(out, *s.Button3)
		}
	}
	return out
}

// ResolveActionable picks the buttons for a generic actionable send.
//
// Precedence: explicit Actions > individual buttons > named template >
// the fallback template.
func ResolveActionable(sel Selection, lookup ActionLookup, fallback string) []policy.Action {
	var out []policy.Action
	if sel.Template != "" && sel.Template != policy.ActionsCustom && lookup != nil {
		if acts, ok := lookup(sel.Template); ok {
			out = acts
		}
	}
	if b := sel.buttons(); len(b) > 0 {
		out = b
	}
	if len(sel.Actions) > 0 {
		out = sel.Actions
	}
	if len(out) == 0 {
		out, _ = policy.BuiltinActions(fallback)
	}
	return append([]policy.Action(nil), out...)
}

// ResolveAlarmActions picks the buttons for an alarm confirmation.
//
// Custom buttons beat any named template. An empty template name means
// alarm_response; "custom" is never looked up, so without buttons it lands on
// the alarm_simple fallback.
func ResolveAlarmActions(sel Selection, lookup ActionLookup) []policy.Action {
	if len(sel.Actions) > 0 {
		return append([]policy.Action(nil), sel.Actions...)
	}
	if b := sel.buttons(); len(b) > 0 {
		return b
	}
	name := sel.Template
	if name == "" {
		name = policy.ActionsAlarmResponse
	}
	if name != policy.ActionsCustom && lookup != nil {
		if acts, ok := lookup(name); ok && len(acts) > 0 {
			return append([]policy.Action(nil), acts...)
		}
	}
	acts, _ := policy.BuiltinActions(policy.ActionsAlarmSimple)
	return acts
}
