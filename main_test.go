package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	c, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3001, c.ServerPort)
	assert.Equal(t, "OPENRGB", c.GatewayType)
	assert.Equal(t, "localhost", c.OpenRGBHost)
	assert.Equal(t, 6742, c.OpenRGBPort)
	assert.Equal(t, "Nightwolf RGB", c.OpenRGBClientName)
	assert.Equal(t, 5*time.Second, c.ReconnectInterval)
	assert.Equal(t, 30, c.FrameRate)
	assert.Equal(t, 250*time.Millisecond, c.PushTimeout)
	assert.Equal(t, "data/profiles.json", c.ProfilesFile)
	assert.Equal(t, "AVERAGE", c.ColorAlgo)
	assert.False(t, c.AutoCleanup)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_TYPE", "lifx")
	t.Setenv("LIFX_GROUP_NAME", "Desk")
	t.Setenv("FRAME_RATE", "60")
	t.Setenv("MAX_BRIGHTNESS", "0.65")
	t.Setenv("AUTO_CLEANUP", "true")

	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "LIFX", c.GatewayType)
	assert.Equal(t, "Desk", c.LifxGroupName)
	assert.Equal(t, 60, c.FrameRate)
	assert.Equal(t, 0.65, c.MaxBrightness)
	assert.True(t, c.AutoCleanup)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("gateway", func(t *testing.T) {
		t.Setenv("GATEWAY_TYPE", "HUE")
		_, err := loadConfig()
		assert.ErrorContains(t, err, "unknown gateway type")
	})
	t.Run("brightness", func(t *testing.T) {
		t.Setenv("MIN_BRIGHTNESS", "0.8")
		t.Setenv("MAX_BRIGHTNESS", "0.2")
		_, err := loadConfig()
		assert.ErrorContains(t, err, "brightness range")
	})
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "devices", "cleanup", "effect"}, names)

	effect, _, err := root.Find([]string{"effect"})
	require.NoError(t, err)
	for _, flag := range []string{"color", "colors", "speed", "duration"} {
		assert.NotNil(t, effect.Flags().Lookup(flag), flag)
	}
	assert.Contains(t, effect.ValidArgs, "rainbow")
}

func TestEffectCommandNeedsKind(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"effect"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}
