package screen

import (
	"image"

	"github.com/kbinani/screenshot"
	"github.com/scheerer/nightwolf-rgb/lights"
)

type Config struct {
	ScreenNumber  int
	PixelGridSize int
	ColorAlgo     string
}

// Sampler captures a display and reduces it to one color per call.
type Sampler struct {
	config  Config
	compute ColorFunc
	capture func(displayIndex int) (*image.RGBA, error)
}

func NewSampler(config Config) (*Sampler, error) {
	compute, err := ParseAlgorithm(config.ColorAlgo)
	if err != nil {
		return nil, err
	}
	return &Sampler{
		config:  config,
		compute: compute,
		capture: screenshot.CaptureDisplay,
	}, nil
}

func (s *Sampler) Sample() (lights.Color, error) {
	img, err := s.capture(s.config.ScreenNumber)
	if err != nil {
		return lights.Black, err
	}
	return s.compute(img, s.config.PixelGridSize), nil
}

// ActiveDisplays reports how many displays can be captured.
func ActiveDisplays() int {
	return screenshot.NumActiveDisplays()
}
