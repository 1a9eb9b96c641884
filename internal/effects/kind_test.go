package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		parsed, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	parsed, err := ParseKind(" Rainbow ")
	require.NoError(t, err)
	assert.Equal(t, Rainbow, parsed)

	_, err = ParseKind("")
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = ParseKind("sparkle")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestOneShot(t *testing.T) {
	assert.True(t, Static.OneShot())
	for _, k := range []Kind{Breathing, Rainbow, Spectrum, Strobing, Custom, Ambient} {
		assert.False(t, k.OneShot(), k)
	}
}

func TestNormalizedSpeed(t *testing.T) {
	assert.Equal(t, 1.0, Options{}.NormalizedSpeed())
	assert.Equal(t, 1.0, Options{Speed: 50}.NormalizedSpeed())
	assert.Equal(t, 2.0, Options{Speed: 100}.NormalizedSpeed())
	assert.Equal(t, 0.02, Options{Speed: 1}.NormalizedSpeed())
}

func TestValidate(t *testing.T) {
	bright := func(v int) *int { return &v }

	valid := []Options{
		{},
		{Speed: 1},
		{Speed: 100, Color: "abcdef"},
		{Brightness: bright(0)},
		{Brightness: bright(100)},
		{Colors: []string{"#FF0000"}},
	}
	for _, o := range valid {
		assert.NoError(t, o.Validate(Custom), "%+v", o)
	}

	invalid := []Options{
		{Speed: -1},
		{Speed: 101},
		{Brightness: bright(-5)},
		{Brightness: bright(101)},
		{Color: "red"},
		{Colors: []string{"#FF0000", "#12"}},
		{Colors: []string{}},
	}
	for _, o := range invalid {
		assert.ErrorIs(t, o.Validate(Custom), ErrInvalidOptions, "%+v", o)
	}

	assert.NoError(t, Options{Colors: []string{}}.Validate(Rainbow))
}
