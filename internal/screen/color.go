package screen

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/scheerer/nightwolf-rgb/lights"
)

// ColorFunc reduces a captured frame to a single color, sampling every
// pixelGridSize-th pixel in both directions.
type ColorFunc func(img *image.RGBA, pixelGridSize int) lights.Color

const (
	AlgoAverage        = "AVERAGE"
	AlgoSquaredAverage = "SQUARED_AVERAGE"
	AlgoMedian         = "MEDIAN"
	AlgoMode           = "MODE"
)

func ParseAlgorithm(name string) (ColorFunc, error) {
	switch strings.ToUpper(name) {
	case AlgoAverage:
		return AverageColor, nil
	case AlgoSquaredAverage:
		return SquaredAverageColor, nil
	case AlgoMedian:
		return MedianColor, nil
	case AlgoMode:
		return ModeColor, nil
	default:
		return nil, fmt.Errorf("unknown color algorithm: %v", name)
	}
}

func forEachSample(img *image.RGBA, pixelGridSize int, fn func(r, g, b uint8)) {
	if pixelGridSize < 1 {
		pixelGridSize = 1
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += pixelGridSize {
		for x := bounds.Min.X; x < bounds.Max.X; x += pixelGridSize {
			c := img.RGBAAt(x, y)
			fn(c.R, c.G, c.B)
		}
	}
}

func AverageColor(img *image.RGBA, pixelGridSize int) lights.Color {
	var sumR, sumG, sumB, n uint64
	forEachSample(img, pixelGridSize, func(r, g, b uint8) {
		sumR += uint64(r)
		sumG += uint64(g)
		sumB += uint64(b)
		n++
	})
	if n == 0 {
		return lights.Black
	}

	return lights.Color{
		Red:   uint8(sumR / n),
		Green: uint8(sumG / n),
		Blue:  uint8(sumB / n),
	}
}

// SquaredAverageColor averages in squared space, which keeps bright regions
// from being washed out by dark ones.
func SquaredAverageColor(img *image.RGBA, pixelGridSize int) lights.Color {
	var sumR, sumG, sumB, n uint64
	forEachSample(img, pixelGridSize, func(r, g, b uint8) {
		sumR += uint64(r) * uint64(r)
		sumG += uint64(g) * uint64(g)
		sumB += uint64(b) * uint64(b)
		n++
	})
	if n == 0 {
		return lights.Black
	}

	return lights.Color{
		Red:   uint8(math.Sqrt(float64(sumR / n))),
		Green: uint8(math.Sqrt(float64(sumG / n))),
		Blue:  uint8(math.Sqrt(float64(sumB / n))),
	}
}

// MedianColor takes the median of each channel independently.
func MedianColor(img *image.RGBA, pixelGridSize int) lights.Color {
	var reds, greens, blues []uint8
	forEachSample(img, pixelGridSize, func(r, g, b uint8) {
		reds = append(reds, r)
		greens = append(greens, g)
		blues = append(blues, b)
	})
	if len(reds) == 0 {
		return lights.Black
	}

	median := func(values []uint8) uint8 {
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		n := len(values)
		if n%2 == 0 {
			return uint8((int(values[n/2-1]) + int(values[n/2])) / 2)
		}
		return values[n/2]
	}

	return lights.Color{
		Red:   median(reds),
		Green: median(greens),
		Blue:  median(blues),
	}
}

// ModeColor returns the most frequent sampled color.
func ModeColor(img *image.RGBA, pixelGridSize int) lights.Color {
	colorCount := make(map[lights.Color]int)
	var modeColor lights.Color
	maxCount := 0
	forEachSample(img, pixelGridSize, func(r, g, b uint8) {
		c := lights.Color{Red: r, Green: g, Blue: b}
		colorCount[c]++
		if colorCount[c] > maxCount {
			maxCount = colorCount[c]
			modeColor = c
		}
	})

	return modeColor
}
