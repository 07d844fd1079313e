package targets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	defaults := []string{"phone_a", "phone_b"}
	cases := []struct {
		name string
		raw  []string
		want []string
	}{
		{"qualified", []string{"sensor.kitchen_phone"}, []string{"kitchen_phone"}},
		{"empty uses defaults", nil, []string{"phone_a", "phone_b"}},
		{"blank uses defaults", []string{" ", ""}, []string{"phone_a", "phone_b"}},
		{"bare name", []string{"already_a_name"}, []string{"already_a_name"}},
		{"last segment", []string{"notify.mobile_app.pixel"}, []string{"pixel"}},
		{"duplicates kept", []string{"a", "x.a", "a"}, []string{"a", "a", "a"}},
		{"trailing dot dropped", []string{"sensor.", "b"}, []string{"b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.raw, defaults))
		})
	}
}

func TestResolveDoesNotMutateDefaults(t *testing.T) {
	defaults := []string{"x.phone"}
	_ = Resolve(nil, defaults)
	assert.Equal(t, []string{"x.phone"}, defaults)
}

func TestGroupsExpand(t *testing.T) {
	var g Groups
	g.Set("family", []string{"phone_a", "phone_b"})

	got, unknown := g.Expand([]string{"group:family", "tablet", "group:missing", "sensor.group:x"})
	assert.Equal(t, []string{"phone_a", "phone_b", "tablet", "sensor.group:x"}, got)
	assert.Equal(t, []string{"missing"}, unknown)

	// expansion feeds the normal rules
	assert.Equal(t, []string{"phone_a", "phone_b", "tablet", "group:x"}, Resolve(got, nil))
}

func TestGroupsSetReplaceList(t *testing.T) {
	var g Groups
	assert.Empty(t, g.List())

	g.Set("b", []string{"2"})
	g.Set("a", []string{"1"})
	assert.Equal(t, []Group{{Name: "a", Devices: []string{"1"}}, {Name: "b", Devices: []string{"2"}}}, g.List())

	g.Set("a", nil)
	assert.Len(t, g.List(), 1)

	g.Replace([]Group{{Name: "z", Devices: []string{"9"}}, {Name: "empty"}})
	assert.Equal(t, []Group{{Name: "z", Devices: []string{"9"}}}, g.List())
}
