package manager

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"notifymanager/internal/payload"
	"notifymanager/internal/policy"
	"notifymanager/internal/templates"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so errors match what callers sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// FieldError is one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError rejects a request before any side effect.
type ValidationError struct {
	Fields []FieldError
	err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request: " + e.err.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		s := f.Field + " " + f.Rule
		if f.Param != "" {
			s += "=" + f.Param
		}
		parts = append(parts, s)
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return &ValidationError{err: fmt.Errorf(format, args...)}
}

func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return &ValidationError{err: err}
	}
	out := &ValidationError{err: err}
	for _, fe := range ves {
		out.Fields = append(out.Fields, FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// fieldPath drops the root type and embedded struct names from a validator
// namespace: "ActionableRequest.Buttons.actions[0].title" -> "actions[0].title".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i == 0 || embedded[p] {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

var embedded = map[string]bool{"Common": true, "Platform": true, "Buttons": true}

// Common is shared by every notification intent.
type Common struct {
	Title    string         `json:"title" validate:"required"`
	Message  string         `json:"message" validate:"required"`
	Targets  []string       `json:"target,omitempty"`
	Category string         `json:"category,omitempty"`
	Priority string         `json:"priority,omitempty" validate:"omitempty,oneof=low normal high critical"`
	Tag      string         `json:"tag,omitempty"`
	Group    string         `json:"group,omitempty"`
	Channel  string         `json:"channel,omitempty"`
	Data     map[string]any `json:"data,omitempty"`

	Platform
}

// Platform holds the optional iOS/Android presentation fields.
type Platform struct {
	ClickAction string `json:"clickaction,omitempty"`

	Subtitle            string   `json:"subtitle,omitempty"`
	Sound               string   `json:"sound,omitempty"`
	Badge               *int     `json:"badge,omitempty" validate:"omitempty,min=0"`
	PresentationOptions []string `json:"presentation_options,omitempty" validate:"omitempty,dive,oneof=alert badge sound"`

	Subject          string `json:"subject,omitempty"`
	Color            string `json:"color,omitempty"`
	VibrationPattern string `json:"vibration_pattern,omitempty"`
	LEDColor         string `json:"led_color,omitempty"`
	IconURL          string `json:"icon_url,omitempty"`
	NotificationIcon string `json:"notification_icon,omitempty"`
	Visibility       string `json:"visibility,omitempty" validate:"omitempty,oneof=public private secret"`
	AlertOnce        bool   `json:"alert_once,omitempty"`
	CarUI            bool   `json:"car_ui,omitempty"`

	Video string `json:"video,omitempty"`
	Audio string `json:"audio,omitempty"`

	Timeout    int            `json:"timeout,omitempty" validate:"min=0"`
	ActionData map[string]any `json:"action_data,omitempty"`
}

func (c Common) options(def policy.Priority) payload.Options {
	prio := policy.Priority(c.Priority)
	if !prio.Valid() {
		prio = def
	}
	p := c.Platform
	return payload.Options{
		Priority:            prio,
		Category:            c.Category,
		Tag:                 c.Tag,
		Group:               c.Group,
		Channel:             c.Channel,
		ClickAction:         p.ClickAction,
		Subtitle:            p.Subtitle,
		Sound:               p.Sound,
		Badge:               p.Badge,
		PresentationOptions: p.PresentationOptions,
		Subject:             p.Subject,
		Color:               p.Color,
		VibrationPattern:    p.VibrationPattern,
		LEDColor:            p.LEDColor,
		IconURL:             p.IconURL,
		NotificationIcon:    p.NotificationIcon,
		Visibility:          p.Visibility,
		AlertOnce:           p.AlertOnce,
		CarUI:               p.CarUI,
		Video:               p.Video,
		Audio:               p.Audio,
		Timeout:             p.Timeout,
		ActionData:          p.ActionData,
		Extra:               c.Data,
	}
}

// NotificationRequest is a plain send.
type NotificationRequest struct {
	Common
}

// Buttons selects the buttons of an actionable send.
type Buttons struct {
	ActionTemplate string          `json:"action_template,omitempty"`
	Button1        *policy.Action  `json:"button1,omitempty"`
	Button2        *policy.Action  `json:"button2,omitempty"`
	Button3        *policy.Action  `json:"button3,omitempty"`
	Actions        []policy.Action `json:"actions,omitempty" validate:"omitempty,dive"`
}

func (b Buttons) selection() templates.Selection {
	return templates.Selection{Template: b.ActionTemplate, Button1: b.Button1, Button2: b.Button2, Button3: b.Button3, Actions: b.Actions}
}

// ActionableRequest is a send with buttons.
type ActionableRequest struct {
	Common
	Buttons
	// Persistent and Sticky default to true.
	Persistent *bool `json:"persistent,omitempty"`
	Sticky     *bool `json:"sticky,omitempty"`
}

// ImageRequest attaches an image URL or a camera snapshot.
type ImageRequest struct {
	Common
	Image   string          `json:"image,omitempty" validate:"required_without=Camera"`
	Camera  string          `json:"camera_entity,omitempty"`
	Actions []policy.Action `json:"actions,omitempty" validate:"omitempty,dive"`
}

// AlarmRequest is the preconfigured alarm confirmation. Priority and
// category are fixed.
type AlarmRequest struct {
	Title   string         `json:"title" validate:"required"`
	Message string         `json:"message" validate:"required"`
	Targets []string       `json:"target,omitempty"`
	Tag     string         `json:"tag,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	// Template defaults to alarm_response.
	Template    string          `json:"template,omitempty"`
	Button1     *policy.Action  `json:"button1,omitempty"`
	Button2     *policy.Action  `json:"button2,omitempty"`
	Button3     *policy.Action  `json:"button3,omitempty"`
	Actions     []policy.Action `json:"actions,omitempty" validate:"omitempty,dive"`
	AlarmEntity string          `json:"alarm_entity,omitempty"`
}

// TextInputRequest asks for a typed reply.
type TextInputRequest struct {
	Common
	InputTitle  string `json:"input_title,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	ButtonTitle string `json:"button_title,omitempty"`
}

// ClearRequest removes notifications, optionally only those with Tag.
type ClearRequest struct {
	Targets []string `json:"target,omitempty"`
	Tag     string   `json:"tag,omitempty"`
}

// TemplateSendRequest sends a saved or built-in notification template.
type TemplateSendRequest struct {
	Template string         `json:"template" validate:"required"`
	Targets  []string       `json:"target,omitempty"`
	Title    string         `json:"title,omitempty"`
	Message  string         `json:"message,omitempty"`
	Category string         `json:"category,omitempty"`
	Tag      string         `json:"tag,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// GroupRequest saves a device group.
type GroupRequest struct {
	Name    string   `json:"name" validate:"required,excludes=:"`
	Devices []string `json:"devices" validate:"omitempty,dive,required"`
}
