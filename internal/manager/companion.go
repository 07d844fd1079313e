package manager

import (
	"context"
	"maps"
	"slices"

	"notifymanager/internal/dispatch"
	"notifymanager/internal/payload"
)

// Companion-app command messages.
const (
	MessageTTS                 = "TTS"
	MessageRequestLocation     = "request_location_update"
	MessageUpdateWidgets       = "update_widgets"
	MessageUpdateComplications = "update_complications"
	MessageClearBadge          = "clear_badge"
	MessageDeleteAlert         = "delete_alert"
)

// DeviceCommands are the commands DeviceCommand accepts.
var DeviceCommands = []string{
	"command_activity", "command_app_lock", "command_auto_screen_brightness",
	"command_bluetooth", "command_ble_transmitter", "command_beacon_monitor",
	"command_broadcast_intent", "command_dnd", "command_flashlight",
	"command_high_accuracy_mode", "command_launch_app", "command_media",
	"command_ringer_mode", "command_screen_brightness_level",
	"command_screen_off_timeout", "command_screen_on", "command_stop_tts",
	"command_persistent_connection", "command_update_sensors",
	"command_volume_level", "command_webview", "remove_channel",
}

type TTSRequest struct {
	Text        string         `json:"tts_text" validate:"required"`
	MediaStream string         `json:"media_stream,omitempty" validate:"omitempty,oneof=music_stream alarm_stream alarm_stream_max"`
	Targets     []string       `json:"target,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

type MapRequest struct {
	Message         string   `json:"message" validate:"required"`
	Title           string   `json:"title,omitempty"`
	Latitude        string   `json:"latitude" validate:"required,latitude"`
	Longitude       string   `json:"longitude" validate:"required,longitude"`
	SecondLatitude  string   `json:"second_latitude,omitempty" validate:"omitempty,latitude"`
	SecondLongitude string   `json:"second_longitude,omitempty" validate:"omitempty,longitude"`
	Targets         []string `json:"target,omitempty"`
	Tag             string   `json:"tag,omitempty"`

	ShowsLineBetweenPoints *bool  `json:"shows_line_between_points,omitempty"`
	ShowsCompass           *bool  `json:"shows_compass,omitempty"`
	ShowsTraffic           *bool  `json:"shows_traffic,omitempty"`
	ShowsScale             *bool  `json:"shows_scale,omitempty"`
	ShowsPointsOfInterest  *bool  `json:"shows_points_of_interest,omitempty"`
	ShowsUserLocation      *bool  `json:"shows_user_location,omitempty"`
	LatitudeDelta          string `json:"latitude_delta,omitempty"`
	LongitudeDelta         string `json:"longitude_delta,omitempty"`
}

type MediaRequest struct {
	Title         string   `json:"title" validate:"required"`
	Message       string   `json:"message" validate:"required"`
	Video         string   `json:"video,omitempty"`
	Audio         string   `json:"audio,omitempty"`
	Image         string   `json:"image,omitempty"`
	HideThumbnail bool     `json:"hide_thumbnail,omitempty"`
	Lazy          bool     `json:"lazy,omitempty"`
	ContentType   string   `json:"content_type,omitempty"`
	Targets       []string `json:"target,omitempty"`
	Tag           string   `json:"tag,omitempty"`
}

type ProgressRequest struct {
	Title         string   `json:"title" validate:"required"`
	Message       string   `json:"message" validate:"required"`
	Tag           string   `json:"tag" validate:"required"`
	Progress      int      `json:"progress" validate:"min=-1,max=100"`
	ProgressMax   int      `json:"progress_max,omitempty" validate:"min=0"`
	Indeterminate bool     `json:"progress_indeterminate,omitempty"`
	Targets       []string `json:"target,omitempty"`
}

type ChronometerRequest struct {
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
	Tag     string `json:"tag" validate:"required"`
	// When is a unix timestamp (or an offset when relative).
	When         *int64   `json:"when" validate:"required"`
	WhenRelative *bool    `json:"when_relative,omitempty"`
	Timeout      int      `json:"timeout,omitempty" validate:"min=0"`
	Targets      []string `json:"target,omitempty"`
}

type DeviceCommandRequest struct {
	Command string         `json:"command" validate:"required"`
	Targets []string       `json:"target,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

type BadgeRequest struct {
	Badge   int      `json:"badge" validate:"min=0"`
	Targets []string `json:"target,omitempty"`
}

// AdvancedRequest is the full manual-control send. Nothing is derived from
// categories or priorities.
type AdvancedRequest struct {
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message" validate:"required"`
	Targets []string       `json:"target,omitempty"`
	Data    map[string]any `json:"data,omitempty"`

	Sound               string   `json:"sound,omitempty"`
	Critical            bool     `json:"critical,omitempty"`
	Volume              *float64 `json:"volume,omitempty" validate:"omitempty,min=0,max=1"`
	Badge               *int     `json:"badge,omitempty" validate:"omitempty,min=0"`
	InterruptionLevel   string   `json:"interruption_level,omitempty" validate:"omitempty,oneof=passive active time-sensitive critical"`
	PresentationOptions []string `json:"presentation_options,omitempty" validate:"omitempty,dive,oneof=alert badge sound"`
	Group               string   `json:"group,omitempty"`
	Subtitle            string   `json:"subtitle,omitempty"`
	Subject             string   `json:"subject,omitempty"`

	Channel          string `json:"channel,omitempty"`
	Importance       string `json:"importance,omitempty" validate:"omitempty,oneof=min low default high max"`
	VibrationPattern string `json:"vibration_pattern,omitempty"`
	LEDColor         string `json:"led_color,omitempty"`
	Color            string `json:"color,omitempty"`
	Visibility       string `json:"visibility,omitempty" validate:"omitempty,oneof=public private secret"`
	IconURL          string `json:"icon_url,omitempty"`
	NotificationIcon string `json:"notification_icon,omitempty"`

	Tag         string `json:"tag,omitempty"`
	Sticky      bool   `json:"sticky,omitempty"`
	Persistent  bool   `json:"persistent,omitempty"`
	AlertOnce   bool   `json:"alert_once,omitempty"`
	Timeout     int    `json:"timeout,omitempty" validate:"min=0"`
	CarUI       bool   `json:"car_ui,omitempty"`
	ClickAction string `json:"click_action,omitempty"`

	Image        string           `json:"image,omitempty"`
	Video        string           `json:"video,omitempty"`
	Audio        string           `json:"audio,omitempty"`
	CameraEntity string           `json:"camera_entity,omitempty"`
	Actions      []map[string]any `json:"actions,omitempty"`
	ActionData   map[string]any   `json:"action_data,omitempty"`
}

// SendTTS speaks text on Android devices.
func (m *Manager) SendTTS(ctx context.Context, req TTSRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	data := map[string]any{
		"tts_text":     req.Text,
		"media_stream": or(req.MediaStream, "music_stream"),
	}
	maps.Copy(data, req.Data)
	return m.command(ctx, req.Targets, MessageTTS, "", data), nil
}

// SendMap shows a map with one or two pins (iOS).
func (m *Manager) SendMap(ctx context.Context, req MapRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	ad := map[string]any{
		"latitude":  req.Latitude,
		"longitude": req.Longitude,
	}
	if req.SecondLatitude != "" {
		ad["second_latitude"] = req.SecondLatitude
		ad["second_longitude"] = req.SecondLongitude
	}
	for k, v := range map[string]*bool{
		"shows_line_between_points": req.ShowsLineBetweenPoints,
		"shows_compass":             req.ShowsCompass,
		"shows_traffic":             req.ShowsTraffic,
		"shows_scale":               req.ShowsScale,
		"shows_points_of_interest":  req.ShowsPointsOfInterest,
		"shows_user_location":       req.ShowsUserLocation,
	} {
		if v != nil {
			ad[k] = *v
		}
	}
	if req.LatitudeDelta != "" {
		ad["latitude_delta"] = req.LatitudeDelta
	}
	if req.LongitudeDelta != "" {
		ad["longitude_delta"] = req.LongitudeDelta
	}
	data := map[string]any{payload.KeyActionData: ad}
	if req.Tag != "" {
		data[payload.KeyTag] = req.Tag
	}
	return m.command(ctx, req.Targets, req.Message, req.Title, data), nil
}

// SendMedia attaches video, audio or an image.
func (m *Manager) SendMedia(ctx context.Context, req MediaRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	data := map[string]any{}
	setNonEmpty(data, payload.KeyVideo, req.Video)
	setNonEmpty(data, payload.KeyAudio, req.Audio)
	setNonEmpty(data, payload.KeyImage, req.Image)
	setNonEmpty(data, payload.KeyTag, req.Tag)
	att := map[string]any{}
	if req.HideThumbnail {
		att["hide-thumbnail"] = true
	}
	if req.Lazy {
		att["lazy"] = true
	}
	setNonEmpty(att, "content-type", req.ContentType)
	if len(att) > 0 {
		data[payload.KeyAttachment] = att
	}
	return m.command(ctx, req.Targets, req.Message, req.Title, data), nil
}

// SendProgress shows or updates an Android progress bar.
func (m *Manager) SendProgress(ctx context.Context, req ProgressRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	pmax := req.ProgressMax
	if pmax == 0 {
		pmax = 100
	}
	data := map[string]any{
		payload.KeyTag:         req.Tag,
		payload.KeyProgress:    req.Progress,
		payload.KeyProgressMax: pmax,
	}
	if req.Indeterminate {
		data[payload.KeyProgressIndet] = true
	}
	return m.command(ctx, req.Targets, req.Message, req.Title, data), nil
}

// SendChronometer shows an Android count-up/count-down timer.
func (m *Manager) SendChronometer(ctx context.Context, req ChronometerRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	data := map[string]any{
		payload.KeyTag:          req.Tag,
		payload.KeyChronometer:  true,
		payload.KeyWhen:         *req.When,
		payload.KeyWhenRelative: boolOr(req.WhenRelative, true),
	}
	if req.Timeout > 0 {
		data[payload.KeyTimeout] = req.Timeout
	}
	return m.command(ctx, req.Targets, req.Message, req.Title, data), nil
}

// DeviceCommand sends one of the allowed Android device commands.
func (m *Manager) DeviceCommand(ctx context.Context, req DeviceCommandRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	if !slices.Contains(DeviceCommands, req.Command) {
		return dispatch.Result{}, invalid("unknown device command %q", req.Command)
	}
	return m.command(ctx, req.Targets, req.Command, "", maps.Clone(req.Data)), nil
}

func (m *Manager) RequestLocationUpdate(ctx context.Context, targets []string) dispatch.Result {
	return m.command(ctx, targets, MessageRequestLocation, "", nil)
}

func (m *Manager) UpdateWidgets(ctx context.Context, targets []string) dispatch.Result {
	return m.command(ctx, targets, MessageUpdateWidgets, "", nil)
}

func (m *Manager) UpdateComplications(ctx context.Context, targets []string) dispatch.Result {
	return m.command(ctx, targets, MessageUpdateComplications, "", nil)
}

func (m *Manager) ClearBadge(ctx context.Context, targets []string) dispatch.Result {
	return m.command(ctx, targets, MessageClearBadge, "", nil)
}

// SetBadge sets the iOS app badge with a silent notification.
func (m *Manager) SetBadge(ctx context.Context, req BadgeRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	data := map[string]any{payload.KeyPush: map[string]any{payload.KeyBadge: req.Badge}}
	return m.command(ctx, req.Targets, MessageDeleteAlert, "", data), nil
}

// SendAdvanced emits exactly the fields given. Extra data replaces keys.
func (m *Manager) SendAdvanced(ctx context.Context, req AdvancedRequest) (dispatch.Result, error) {
	if err := check(&req); err != nil {
		return dispatch.Result{}, err
	}
	if req.Critical && req.Sound == "" {
		return dispatch.Result{}, invalid("critical needs a sound name")
	}
	data := payload.BuildAdvanced(payload.Advanced{
		Sound:               req.Sound,
		Critical:            req.Critical,
		Volume:              req.Volume,
		Badge:               req.Badge,
		InterruptionLevel:   req.InterruptionLevel,
		PresentationOptions: req.PresentationOptions,
		Group:               req.Group,
		Subtitle:            req.Subtitle,
		Subject:             req.Subject,
		Channel:             req.Channel,
		Importance:          req.Importance,
		VibrationPattern:    req.VibrationPattern,
		LEDColor:            req.LEDColor,
		Color:               req.Color,
		Visibility:          req.Visibility,
		IconURL:             req.IconURL,
		NotificationIcon:    req.NotificationIcon,
		Tag:                 req.Tag,
		Sticky:              req.Sticky,
		Persistent:          req.Persistent,
		AlertOnce:           req.AlertOnce,
		Timeout:             req.Timeout,
		CarUI:               req.CarUI,
		ClickAction:         req.ClickAction,
		Image:               req.Image,
		Video:               req.Video,
		Audio:               req.Audio,
		CameraEntity:        req.CameraEntity,
		Actions:             req.Actions,
		ActionData:          req.ActionData,
		Extra:               req.Data,
	})
	return m.command(ctx, req.Targets, req.Message, req.Title, data), nil
}

// command is the companion fan-out: no category gate, no history.
func (m *Manager) command(ctx context.Context, raw []string, message, title string, data map[string]any) dispatch.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data == nil {
		data = map[string]any{}
	}
	return m.disp.Command(ctx, m.commandTargetsLocked(raw), message, title, data)
}

func setNonEmpty(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}
