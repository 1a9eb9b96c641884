package effects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scheerer/nightwolf-rgb/internal/util"
)

var (
	ErrUnknownKind    = errors.New("unknown effect type")
	ErrInvalidOptions = errors.New("invalid effect options")
)

type Kind string

const (
	Static    Kind = "static"
	Breathing Kind = "breathing"
	Rainbow   Kind = "rainbow"
	Spectrum  Kind = "spectrum"
	Strobing  Kind = "strobing"
	Custom    Kind = "custom"
	// Ambient follows the average screen color instead of a time function.
	Ambient Kind = "ambient"
)

var Kinds = []Kind{Static, Breathing, Rainbow, Spectrum, Strobing, Custom, Ambient}

func ParseKind(s string) (Kind, error) {
	if s == "" {
		return "", fmt.Errorf("%w: effect type is required", ErrUnknownKind)
	}
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// OneShot kinds push a single frame and then stop.
func (k Kind) OneShot() bool {
	return k == Static
}

const (
	DefaultSpeed = 50
	MinSpeed     = 1
	MaxSpeed     = 100
)

// Options configures a running effect. Zero values fall back to per-kind defaults.
type Options struct {
	Speed  int      `json:"speed,omitempty"`
	Color  string   `json:"color,omitempty"`
	Colors []string `json:"colors,omitempty"`
	// Brightness is accepted and reported back but not applied to frames.
	Brightness *int `json:"brightness,omitempty"`
}

// NormalizedSpeed maps speed onto a rate multiplier where the default speed is 1.0.
func (o Options) NormalizedSpeed() float64 {
	speed := o.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	return float64(speed) / DefaultSpeed
}

func (o Options) Validate(kind Kind) error {
	if o.Speed != 0 && (o.Speed < MinSpeed || o.Speed > MaxSpeed) {
		return fmt.Errorf("%w: speed %d outside %d-%d", ErrInvalidOptions, o.Speed, MinSpeed, MaxSpeed)
	}
	if o.Brightness != nil && (*o.Brightness < 0 || *o.Brightness > 100) {
		return fmt.Errorf("%w: brightness %d outside 0-100", ErrInvalidOptions, *o.Brightness)
	}
	if o.Color != "" {
		if _, err := util.ParseHex(o.Color); err != nil {
			return fmt.Errorf("%w: color %q: %v", ErrInvalidOptions, o.Color, err)
		}
	}
	if kind == Custom && o.Colors != nil && len(o.Colors) == 0 {
		return fmt.Errorf("%w: colors must hold at least one color", ErrInvalidOptions)
	}
	for i, c := range o.Colors {
		if _, err := util.ParseHex(c); err != nil {
			return fmt.Errorf("%w: colors[%d] %q: %v", ErrInvalidOptions, i, c, err)
		}
	}
	return nil
}
