// Package effects holds the per-kind frame functions. Every function derives
// its color from elapsed time and parameters alone.
package effects

import (
	"math"
	"time"

	"github.com/scheerer/nightwolf-rgb/internal/util"
	"github.com/scheerer/nightwolf-rgb/lights"
)

const (
	breathingPeriod = 2000.0
	rainbowPeriod   = 5000.0
	strobePeriod    = 500.0
	segmentPeriod   = 1000.0
)

var (
	defaultStaticColor    = "#FFFFFF"
	defaultBreathingColor = "#FF0000"
	defaultStrobeColor    = "#FFFFFF"
	defaultCustomColors   = []string{"#FF0000", "#0000FF"}
)

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// BreathingColor fades base in and out on a sine wave. At t=0 brightness is 0.5
// and peaks a quarter period later.
func BreathingColor(elapsed time.Duration, speed float64, base lights.Color) lights.Color {
	period := breathingPeriod / speed
	t := math.Mod(millis(elapsed), period)
	brightness := (math.Sin(t/period*2*math.Pi) + 1) / 2

	dim := func(v uint8) uint8 {
		return uint8(math.Floor(float64(v) * brightness))
	}
	return lights.Color{Red: dim(base.Red), Green: dim(base.Green), Blue: dim(base.Blue)}
}

// RainbowColor cycles hue through the full circle at full saturation.
func RainbowColor(elapsed time.Duration, speed float64) lights.Color {
	period := rainbowPeriod / speed
	hue := math.Mod(millis(elapsed), period) / period * 360
	return util.HslToColor(hue, 1, 0.5)
}

// SpectrumColor is a rainbow at half speed.
func SpectrumColor(elapsed time.Duration, speed float64) lights.Color {
	return RainbowColor(elapsed, speed*0.5)
}

// StrobingColor is on for the first half of each period and black for the second.
func StrobingColor(elapsed time.Duration, speed float64, base lights.Color) lights.Color {
	period := strobePeriod / speed
	if math.Mod(millis(elapsed), period) < period/2 {
		return base
	}
	return lights.Black
}

// Gradient walks through colors in order, spending one segment on each
// transition and wrapping from the last color back to the first.
func Gradient(elapsed time.Duration, speed float64, colors []lights.Color) lights.Color {
	switch len(colors) {
	case 0:
		return lights.Black
	case 1:
		return colors[0]
	}

	segment := segmentPeriod / speed
	total := segment * float64(len(colors))
	cycle := math.Mod(millis(elapsed), total)

	current := int(math.Floor(cycle/segment)) % len(colors)
	next := (current + 1) % len(colors)
	progress := math.Mod(cycle, segment) / segment

	return util.Lerp(colors[current], colors[next], progress)
}

// Frame computes the color for kind at elapsed. Ambient has no time function
// and yields black here.
func Frame(kind Kind, elapsed time.Duration, opts Options) lights.Color {
	speed := opts.NormalizedSpeed()

	switch kind {
	case Static:
		return util.HexToColor(colorOr(opts.Color, defaultStaticColor))
	case Breathing:
		return BreathingColor(elapsed, speed, util.HexToColor(colorOr(opts.Color, defaultBreathingColor)))
	case Rainbow:
		return RainbowColor(elapsed, speed)
	case Spectrum:
		return SpectrumColor(elapsed, speed)
	case Strobing:
		return StrobingColor(elapsed, speed, util.HexToColor(colorOr(opts.Color, defaultStrobeColor)))
	case Custom:
		hexColors := opts.Colors
		if hexColors == nil {
			hexColors = defaultCustomColors
		}
		colors := make([]lights.Color, len(hexColors))
		for i, hex := range hexColors {
			colors[i] = util.HexToColor(hex)
		}
		return Gradient(elapsed, speed, colors)
	case Ambient:
		return lights.Black
	}
	return lights.Black
}

func colorOr(hex, def string) string {
	if hex == "" {
		return def
	}
	return hex
}
