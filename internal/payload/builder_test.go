package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifymanager/internal/policy"
)

func pushOf(t *testing.T, p Payload) map[string]any {
	t.Helper()
	push, ok := p[KeyPush].(map[string]any)
	require.True(t, ok, "payload has no push block: %v", p)
	return push
}

func TestInterruptionLevelPerPriority(t *testing.T) {
	cases := []struct {
		priority policy.Priority
		category string
		want     string
	}{
		{policy.PriorityCritical, "", "critical"},
		{policy.PriorityHigh, "", "time-sensitive"},
		{policy.PriorityLow, "", "passive"},
		{policy.PriorityNormal, "", "active"},
		// normal defers to the category override
		{policy.PriorityNormal, policy.CategorySystem, "passive"},
		{policy.PriorityNormal, policy.CategoryAlarm, "critical"},
		// non-normal priorities ignore the category
		{policy.PriorityLow, policy.CategoryAlarm, "passive"},
		{policy.PriorityHigh, policy.CategoryInfo, "time-sensitive"},
	}
	cats := policy.DefaultCategories()
	for _, tc := range cases {
		t.Run(string(tc.priority)+"/"+tc.category, func(t *testing.T) {
			p := Build(cats, Options{Priority: tc.priority, Category: tc.category})
			assert.Equal(t, tc.want, pushOf(t, p)[KeyInterruptionLevel])
		})
	}
}

func TestCriticalSoundOverridesCaller(t *testing.T) {
	cats := policy.DefaultCategories()
	for _, sound := range []string{"", "none", "chime.caf"} {
		p := Build(cats, Options{Priority: policy.PriorityCritical, Sound: sound, Category: policy.CategoryInfo})
		snd, ok := pushOf(t, p)[KeySound].(map[string]any)
		require.True(t, ok, "sound %q: expected critical sound object", sound)
		assert.Equal(t, 1, snd["critical"])
		assert.Equal(t, 1.0, snd["volume"])
		if sound == "" {
			assert.Equal(t, "default", snd["name"])
		} else {
			assert.Equal(t, sound, snd["name"])
		}
	}
}

func TestSoundFallbacks(t *testing.T) {
	cats := policy.DefaultCategories()

	p := Build(cats, Options{Priority: policy.PriorityNormal, Sound: "none", Category: policy.CategoryMotion})
	assert.Equal(t, "none", pushOf(t, p)[KeySound])

	p = Build(cats, Options{Priority: policy.PriorityNormal, Category: policy.CategoryDoorbell})
	assert.Equal(t, "doorbell.caf", pushOf(t, p)[KeySound])

	p = Build(cats, Options{Priority: policy.PriorityNormal})
	_, has := pushOf(t, p)[KeySound]
	assert.False(t, has)
}

func TestChannelImportanceAndColor(t *testing.T) {
	cats := policy.DefaultCategories()
	cats["garden"] = policy.Category{Enabled: true}

	p := Build(cats, Options{Priority: policy.PriorityNormal})
	assert.Equal(t, "default", p[KeyChannel])
	assert.Equal(t, "default", p[KeyImportance])
	assert.NotContains(t, p, KeyTTL)
	assert.NotContains(t, p, KeyColor)

	p = Build(cats, Options{Priority: policy.PriorityHigh, Category: policy.CategorySecurity})
	assert.Equal(t, "security", p[KeyChannel])
	assert.Equal(t, "high", p[KeyImportance])
	assert.Equal(t, 0, p[KeyTTL])
	assert.Equal(t, "high", p[KeyPriority])
	assert.Equal(t, "#FF5722", p[KeyColor])

	p = Build(cats, Options{Priority: policy.PriorityLow, Category: "garden", Color: "#123456"})
	assert.Equal(t, "garden", p[KeyChannel])
	assert.Equal(t, "#123456", p[KeyColor])

	p = Build(cats, Options{Priority: policy.PriorityLow, Category: "unknown", Channel: "custom"})
	assert.Equal(t, "custom", p[KeyChannel])
}

func TestOptionalFieldsOnlyWhenPresent(t *testing.T) {
	p := Build(policy.DefaultCategories(), Options{Priority: policy.PriorityNormal})
	assert.ElementsMatch(t, []string{KeyPush, KeyChannel, KeyImportance}, keys(p))
}

func TestAllOptionalFields(t *testing.T) {
	progress := 40
	when := int64(1700000000)
	badge := 3
	p := Build(policy.DefaultCategories(), Options{
		Priority:                policy.PriorityNormal,
		Tag:                     "t1",
		Group:                   "g1",
		Actions:                 []policy.Action{{Action: "A", Title: "a"}},
		ActionData:              map[string]any{"k": "v"},
		Video:                   "v.mp4",
		Audio:                   "a.mp3",
		CameraEntity:            "camera.front",
		Image:                   "ignored.png",
		Persistent:              true,
		Sticky:                  true,
		Timeout:                 30,
		ClickAction:             "/lovelace/0",
		Subtitle:                "sub",
		Badge:                   &badge,
		PresentationOptions:     []string{"alert", "sound"},
		Subject:                 "subject",
		VibrationPattern:        "100,200",
		LEDColor:                "red",
		IconURL:                 "https://x/icon.png",
		NotificationIcon:        "mdi:bell",
		Visibility:              "public",
		AlertOnce:               true,
		CarUI:                   true,
		Progress:                &progress,
		ProgressIndeterminate:   true,
		Chronometer:             true,
		When:                    &when,
		WhenRelative:            true,
		AttachmentHideThumbnail: true,
		AttachmentContentType:   "jpeg",
	})

	assert.Equal(t, "g1", p[KeyThreadID])
	assert.Equal(t, "g1", p[KeyGroup])
	assert.Equal(t, "t1", p[KeyTag])
	assert.Equal(t, 3, pushOf(t, p)[KeyBadge])
	assert.Equal(t, []string{"alert", "sound"}, p[KeyPresentationOptions])
	assert.Equal(t, "/lovelace/0", p[KeyClickAction])
	assert.Equal(t, "/lovelace/0", p[KeyURL])
	assert.Equal(t, "camera.front", p[KeyEntityID])
	assert.Equal(t, "/api/camera_proxy/camera.front", p[KeyImage])
	assert.Equal(t, 40, p[KeyProgress])
	assert.Equal(t, 100, p[KeyProgressMax])
	assert.Equal(t, true, p[KeyProgressIndet])
	assert.Equal(t, int64(1700000000), p[KeyWhen])
	assert.Equal(t, true, p[KeyWhenRelative])
	assert.Equal(t, 30, p[KeyTimeout])
	assert.Equal(t, map[string]any{"hide-thumbnail": true, "content-type": "jpeg"}, p[KeyAttachment])
	assert.Equal(t, []map[string]any{{"action": "A", "title": "a"}}, p[KeyActions])
	assert.Equal(t, map[string]any{"k": "v"}, p[KeyActionData])
}

func TestChronometerFieldsRequireChronometer(t *testing.T) {
	when := int64(5)
	p := Build(policy.DefaultCategories(), Options{When: &when, WhenRelative: true})
	assert.NotContains(t, p, KeyWhen)
	assert.NotContains(t, p, KeyWhenRelative)
}

func TestExtraMergeUnionForMaps(t *testing.T) {
	data := Payload{"push": map[string]any{"badge": 1}}
	Merge(data, map[string]any{"push": map[string]any{"sound": "x"}})
	assert.Equal(t, Payload{"push": map[string]any{"badge": 1, "sound": "x"}}, data)
}

func TestExtraMergeReplacesNonMaps(t *testing.T) {
	data := Payload{"push": map[string]any{"badge": 1}}
	Merge(data, map[string]any{"push": "silent", "new": 2})
	assert.Equal(t, Payload{"push": "silent", "new": 2}, data)
}

func TestBuildMergesExtraLast(t *testing.T) {
	p := Build(policy.DefaultCategories(), Options{
		Priority: policy.PriorityHigh,
		Extra: map[string]any{
			"push":    map[string]any{"interruption-level": "passive"},
			"channel": "override",
		},
	})
	assert.Equal(t, "passive", pushOf(t, p)[KeyInterruptionLevel])
	assert.Equal(t, "override", p[KeyChannel])
}

func TestBuildIsDeterministicAndPure(t *testing.T) {
	cats := policy.DefaultCategories()
	extra := map[string]any{"push": map[string]any{"badge": 2}}
	o := Options{Priority: policy.PriorityCritical, Category: policy.CategoryAlarm, Tag: "x", Extra: extra}

	a, err := json.Marshal(Build(cats, o))
	require.NoError(t, err)
	b, err := json.Marshal(Build(cats, o))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	assert.Equal(t, map[string]any{"push": map[string]any{"badge": 2}}, extra)
	assert.Equal(t, policy.DefaultCategories(), cats)
}

func TestBuildAdvanced(t *testing.T) {
	vol := 0.5
	p := BuildAdvanced(Advanced{
		Sound:    "siren.caf",
		Critical: true,
		Volume:   &vol,
		Group:    "g",
		Extra:    map[string]any{"push": "replaced"},
	})
	assert.Equal(t, "replaced", p[KeyPush])
	assert.Equal(t, "g", p[KeyThreadID])
	assert.NotContains(t, p, KeyChannel)

	p = BuildAdvanced(Advanced{Sound: "siren.caf", Critical: true, Volume: &vol})
	assert.Equal(t, map[string]any{"name": "siren.caf", "critical": 1, "volume": 0.5}, pushOf(t, p)[KeySound])

	assert.Empty(t, BuildAdvanced(Advanced{}))
}

func keys(p Payload) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}
