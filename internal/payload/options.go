package payload

import "notifymanager/internal/policy"

// Payload is the platform data bag handed to the send capability as "data".
type Payload map[string]any

// Options is everything the builder reads besides the category table.
// Zero values mean "not supplied".
type Options struct {
	Priority policy.Priority
	Category string

	Tag     string
	Group   string
	Channel string

	Actions    []policy.Action
	ActionData map[string]any

	Image        string
	Video        string
	Audio        string
	CameraEntity string

	Persistent  bool
	Sticky      bool
	Timeout     int
	ClickAction string

	// iOS
	Subtitle            string
	Sound               string
	Badge               *int
	PresentationOptions []string

	// Android
	Subject          string
	Color            string
	VibrationPattern string
	LEDColor         string
	IconURL          string
	NotificationIcon string
	Visibility       string
	AlertOnce        bool
	CarUI            bool

	Progress              *int
	ProgressMax           int
	ProgressIndeterminate bool

	Chronometer  bool
	When         *int64
	WhenRelative bool

	AttachmentHideThumbnail bool
	AttachmentLazy          bool
	AttachmentContentType   string

	// Extra is merged last; see Merge.
	Extra map[string]any
}

// Wire keys.
const (
	KeyPush                = "push"
	KeySound               = "sound"
	KeyInterruptionLevel   = "interruption-level"
	KeyBadge               = "badge"
	KeyPresentationOptions = "presentation_options"
	KeyThreadID            = "thread-id"
	KeySubtitle            = "subtitle"
	KeyChannel             = "channel"
	KeyImportance          = "importance"
	KeyTTL                 = "ttl"
	KeyPriority            = "priority"
	KeyColor               = "color"
	KeySubject             = "subject"
	KeyVibrationPattern    = "vibrationPattern"
	KeyLEDColor            = "ledColor"
	KeyIconURL             = "icon_url"
	KeyNotificationIcon    = "notification_icon"
	KeyVisibility          = "visibility"
	KeyAlertOnce           = "alert_once"
	KeyCarUI               = "car_ui"
	KeyProgress            = "progress"
	KeyProgressMax         = "progress_max"
	KeyProgressIndet       = "progress_indeterminate"
	KeyChronometer         = "chronometer"
	KeyWhen                = "when"
	KeyWhenRelative        = "when_relative"
	KeyTag                 = "tag"
	KeyGroup               = "group"
	KeyPersistent          = "persistent"
	KeySticky              = "sticky"
	KeyTimeout             = "timeout"
	KeyClickAction         = "clickAction"
	KeyURL                 = "url"
	KeyActions             = "actions"
	KeyActionData          = "action_data"
	KeyImage               = "image"
	KeyVideo               = "video"
	KeyAudio               = "audio"
	KeyEntityID            = "entity_id"
	KeyAttachment          = "attachment"
)

// CameraProxyPath is the platform's snapshot endpoint for camera entities.
const CameraProxyPath = "/api/camera_proxy/"

// SoundNone disables the notification sound.
const SoundNone = "none"
