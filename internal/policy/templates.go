package policy

// TemplateType selects how a notification template is sent.
type TemplateType string

const (
	TemplateSimple  TemplateType = "simple"
	TemplateButtons TemplateType = "buttons"
	TemplateImage   TemplateType = "image"
)

// NotificationTemplate is a full canned notification.
type NotificationTemplate struct {
	ID       string       `json:"id"`
	Name     string       `json:"name" validate:"required"`
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Type     TemplateType `json:"type,omitempty" validate:"omitempty,oneof=simple buttons image"`
	Priority Priority     `json:"priority,omitempty" validate:"omitempty,oneof=low normal high critical"`
	Buttons  []Action     `json:"buttons" validate:"dive"`
	Camera   string       `json:"camera,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t NotificationTemplate) Clone() NotificationTemplate {
	t.Buttons = append([]Action(nil), t.Buttons...)
	return t
}

// BuiltinTemplates returns the built-in notification templates in display order.
// Each template's map key is its Name.
func BuiltinTemplates() []NotificationTemplate {
	return []NotificationTemplate{
		{
			ID: "doorbell", Name: "🚪 Türklingel", Title: "Türklingel",
			Message: "Jemand ist an der Tür!", Type: TemplateImage, Priority: PriorityHigh,
			Buttons: []Action{
				{Action: "DOOR_UNLOCK", Title: "🔓 Öffnen"},
				{Action: "DOOR_IGNORE", Title: "Ignorieren"},
			},
		},
		{
			ID: "alarm", Name: "🚨 Alarm", Title: "Alarm!",
			Message: "Bewegung erkannt", Type: TemplateButtons, Priority: PriorityCritical,
			Buttons: []Action{
				{Action: "ALARM_CONFIRM", Title: "✅ OK"},
				{Action: "ALARM_EMERGENCY", Title: "🆘 Notfall"},
			},
		},
		{
			ID: "reminder", Name: "⏰ Erinnerung", Title: "Erinnerung",
			Type: TemplateSimple, Priority: PriorityNormal, Buttons: []Action{},
		},
		{
			ID: "package", Name: "📦 Paket", Title: "Paket angekommen",
			Message: "Ein Paket wurde geliefert!", Type: TemplateButtons, Priority: PriorityNormal,
			Buttons: []Action{
				{Action: "CONFIRM", Title: "✅ Gesehen"},
			},
		},
		{
			ID: "default", Name: "🔔 Standard", Title: "Benachrichtigung",
			Type: TemplateSimple, Priority: PriorityNormal, Buttons: []Action{},
		},
	}
}
