package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0,all=100%,none=0%,over=150%,junk=maybe,nopct=25")

	tests := []struct {
		flag string
		want bool
	}{
		{"a", true},
		{"b", false},
		{"c", true},
		{"d", false},
		{"e", true},
		{"f", false},
		{"all", true},
		{"none", false},
		{"over", true},
		{"junk", false},
		{"nopct", false},
		{"missing", false},
		{" A ", true},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Enabled(tt.flag, 1))
		})
	}
}

func TestEnabled_PartialRollout(t *testing.T) {
	m := NewManager("comments=25%")

	first := m.Enabled("comments", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("comments", 42), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("comments", 0), "anonymous visitors are outside partial rollouts")

	on := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("comments", id) {
			on++
		}
	}
	assert.InDelta(t, 250, on, 120)
}

func TestRawAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off,=on,w= ")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())

	snap := m.Snapshot(123)
	assert.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
	assert.Equal(t, m.Enabled("y", 123), snap["y"])
}

func TestEnabledByDefault(t *testing.T) {
	m := NewManager("registration=off,comments=on")

	assert.False(t, m.EnabledByDefault("registration", 1))
	assert.True(t, m.EnabledByDefault("comments", 1))
	assert.True(t, m.EnabledByDefault("unlisted", 1))
	assert.False(t, m.Configured("unlisted"))
	assert.True(t, m.Configured("Registration"))

	var nilManager *Manager
	assert.True(t, nilManager.EnabledByDefault("registration", 1))
	assert.False(t, nilManager.Enabled("registration", 1))
}
