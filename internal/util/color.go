package util

import (
	"errors"
	"math"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/scheerer/nightwolf-rgb/lights"
)

var (
	ErrInvalidHex = errors.New("invalid hex color")

	hexPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)
)

// ParseHex decodes a six digit hex color, with or without a leading '#'.
func ParseHex(hex string) (lights.Color, error) {
	if !hexPattern.MatchString(hex) {
		return lights.Black, ErrInvalidHex
	}
	c, err := colorful.Hex("#" + strings.TrimPrefix(hex, "#"))
	if err != nil {
		return lights.Black, ErrInvalidHex
	}
	return fromColorful(c), nil
}

// HexToColor is ParseHex with malformed input decoding to black.
func HexToColor(hex string) lights.Color {
	c, _ := ParseHex(hex)
	return c
}

func ColorToHex(c lights.Color) string {
	return toColorful(c).Hex()
}

// HslToColor converts hue in degrees and saturation/lightness in [0,1].
func HslToColor(hue, saturation, lightness float64) lights.Color {
	return fromColorful(colorful.Hsl(hue, saturation, lightness))
}

// Lerp interpolates each channel linearly from a to b, rounding to nearest.
func Lerp(a, b lights.Color, t float64) lights.Color {
	return fromColorful(toColorful(a).BlendRgb(toColorful(b), t))
}

// Scale multiplies every channel by factor, rounding to nearest.
func Scale(c lights.Color, factor float64) lights.Color {
	scale := func(v uint8) uint8 {
		return uint8(Clamp(math.Round(float64(v)*factor), 0, 255))
	}
	return lights.Color{Red: scale(c.Red), Green: scale(c.Green), Blue: scale(c.Blue)}
}

func Clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}

// RgbToHsb returns hue, saturation and brightness scaled to the full uint16 range.
func RgbToHsb(c lights.Color) (uint16, uint16, uint16) {
	h, s, v := toColorful(c).Hsv()

	hue := uint16(math.Round(h / 360 * 0xFFFF))
	saturation := uint16(math.Round(s * 0xFFFF))
	brightness := uint16(math.Round(v * 0xFFFF))

	return hue, saturation, brightness
}

// HsbToColor is the inverse of RgbToHsb.
func HsbToColor(hue, saturation, brightness uint16) lights.Color {
	return fromColorful(colorful.Hsv(
		math.Mod(float64(hue)/0xFFFF*360, 360),
		float64(saturation)/0xFFFF,
		float64(brightness)/0xFFFF,
	))
}

func toColorful(c lights.Color) colorful.Color {
	return colorful.Color{
		R: float64(c.Red) / 255.0,
		G: float64(c.Green) / 255.0,
		B: float64(c.Blue) / 255.0,
	}
}

func fromColorful(c colorful.Color) lights.Color {
	r, g, b := c.Clamped().RGB255()
	return lights.Color{Red: r, Green: g, Blue: b}
}
