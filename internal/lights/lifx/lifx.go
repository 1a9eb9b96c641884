// Package lifx exposes a LIFX group as a lights.Gateway where every bulb is
// a single LED device.
package lifx

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pdf/golifx"
	"github.com/pdf/golifx/common"
	"github.com/pdf/golifx/protocol"
	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/logging"
	"github.com/scheerer/nightwolf-rgb/internal/util"
	"github.com/scheerer/nightwolf-rgb/lights"
)

var logger = logging.New("lifx")

const (
	DefaultDiscoveryInterval = 15 * time.Second
	DefaultTransition        = 50 * time.Millisecond

	// DeviceType is reported for every bulb; OpenRGB uses 4 for lights.
	DeviceType = 4

	kelvin = 3500
)

type Config struct {
	GroupName         string
	MaxBrightness     float64
	MinBrightness     float64
	DiscoveryInterval time.Duration
	Transition        time.Duration
}

// bulb is the part of common.Light the gateway needs.
type bulb interface {
	ID() uint64
	GetLabel() (string, error)
	SetColor(color common.Color, duration time.Duration) error
	CachedColor() common.Color
}

type Gateway struct {
	config Config
	client *golifx.Client

	mu    sync.RWMutex
	group string
	bulbs []bulb
}

var _ lights.Controller = (*Gateway)(nil)

func New(config Config) (*Gateway, error) {
	golifx.SetLogger(logging.New("golifx"))

	client, err := golifx.NewClient(&protocol.V2{})
	if err != nil {
		return nil, err
	}
	return newGateway(config, client), nil
}

func newGateway(config Config, client *golifx.Client) *Gateway {
	if config.DiscoveryInterval <= 0 {
		config.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if config.Transition <= 0 {
		config.Transition = DefaultTransition
	}
	if config.MaxBrightness <= 0 {
		config.MaxBrightness = 1
	}
	return &Gateway{config: config, client: client}
}

// Run discovers the group immediately and then every DiscoveryInterval until
// ctx is canceled.
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(g.config.DiscoveryInterval)
	defer ticker.Stop()

	if err := g.client.SetDiscoveryInterval(g.config.DiscoveryInterval); err != nil {
		logger.With(zap.Error(err)).Warn("Failed to set LIFX discovery interval")
	}

	g.discover(ctx)
	for {
		select {
		case <-ticker.C:
			g.discover(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) discover(ctx context.Context) {
	logger.With(zap.String("group", g.config.GroupName)).Debug("LIFX discovery starting...")

	type found struct {
		group common.Group
		err   error
	}
	completed := make(chan found, 1)
	go func() {
		group, err := g.client.GetGroupByLabel(g.config.GroupName)
		completed <- found{group: group, err: err}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, g.config.DiscoveryInterval)
	defer cancel()

	select {
	case <-ctxWithTimeout.Done():
		logger.With(zap.Error(ctxWithTimeout.Err())).Warn("LIFX discovery timed out.")
	case f := <-completed:
		if f.err != nil || f.group == nil {
			logger.With(zap.String("group", g.config.GroupName), zap.Error(f.err)).Warn("Couldn't discover group.")
			return
		}

		var bulbs []bulb
		for _, light := range f.group.Lights() {
			bulbs = append(bulbs, light)
		}
		g.setBulbs(f.group.GetLabel(), bulbs)
		logger.With(zap.String("group", f.group.GetLabel()), zap.Int("lights", len(bulbs))).Debug("LIFX group found")
	}
}

// setBulbs orders bulbs by ID so device indexes are stable across discoveries.
func (g *Gateway) setBulbs(group string, bulbs []bulb) {
	sort.Slice(bulbs, func(i, j int) bool { return bulbs[i].ID() < bulbs[j].ID() })

	g.mu.Lock()
	defer g.mu.Unlock()
	g.group = group
	g.bulbs = bulbs
}

func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.bulbs) > 0
}

func (g *Gateway) ListDevices(ctx context.Context) ([]lights.Device, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	devices := make([]lights.Device, 0, len(g.bulbs))
	for i, b := range g.bulbs {
		label, err := b.GetLabel()
		if err != nil {
			label = fmt.Sprintf("LIFX %X", b.ID())
		}
		cached := b.CachedColor()
		devices = append(devices, lights.Device{
			ID:          i,
			Name:        label,
			Type:        DeviceType,
			Vendor:      "LIFX",
			Description: "LIFX bulb in group " + g.group,
			Serial:      fmt.Sprintf("%X", b.ID()),
			LEDCount:    1,
			Modes:       []lights.Mode{{ID: lights.DirectMode, Name: "Direct"}},
			Colors:      []lights.Color{util.HsbToColor(cached.Hue, cached.Saturation, cached.Brightness)},
		})
	}
	return devices, nil
}

// SetDeviceMode only checks the device exists; bulbs have no modes.
func (g *Gateway) SetDeviceMode(ctx context.Context, deviceID int, modeID int) error {
	_, err := g.bulb(deviceID)
	return err
}

// PushFrame sets the bulb to the first color of the frame.
func (g *Gateway) PushFrame(ctx context.Context, deviceID int, colors []lights.Color) error {
	b, err := g.bulb(deviceID)
	if err != nil {
		return err
	}
	if len(colors) == 0 {
		return nil
	}

	color := adjustColor(newLifxColor(colors[0]), g.config)
	return b.SetColor(color, g.config.Transition)
}

func (g *Gateway) Device(ctx context.Context, deviceID int) (lights.Device, error) {
	if _, err := g.bulb(deviceID); err != nil {
		return lights.Device{}, err
	}
	devices, err := g.ListDevices(ctx)
	if err != nil {
		return lights.Device{}, err
	}
	if deviceID >= len(devices) {
		return lights.Device{}, fmt.Errorf("%w: %d", lights.ErrDeviceNotFound, deviceID)
	}
	return devices[deviceID], nil
}

func (g *Gateway) SetDeviceColor(ctx context.Context, deviceID int, color lights.Color) error {
	return g.PushFrame(ctx, deviceID, []lights.Color{color})
}

func (g *Gateway) SetAllDevicesColor(ctx context.Context, color lights.Color) ([]lights.Result, error) {
	g.mu.RLock()
	count := len(g.bulbs)
	g.mu.RUnlock()
	if count == 0 {
		return nil, lights.ErrNotConnected
	}

	results := make([]lights.Result, 0, count)
	for i := 0; i < count; i++ {
		results = append(results, lights.NewResult(i, g.SetDeviceColor(ctx, i, color)))
	}
	return results, nil
}

// SetDeviceBrightness sets the bulb brightness to percent of full, keeping
// its current hue and saturation. The configured brightness range does not
// apply.
func (g *Gateway) SetDeviceBrightness(ctx context.Context, deviceID int, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("brightness %d out of range 0-100", percent)
	}
	b, err := g.bulb(deviceID)
	if err != nil {
		return err
	}

	color := b.CachedColor()
	color.Brightness = uint16(math.Round(float64(percent) / 100 * 0xFFFF))
	if color.Kelvin == 0 {
		color.Kelvin = kelvin
	}
	return b.SetColor(color, g.config.Transition)
}

func (g *Gateway) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *Gateway) bulb(deviceID int) (bulb, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.bulbs) == 0 {
		return nil, lights.ErrNotConnected
	}
	if deviceID < 0 || deviceID >= len(g.bulbs) {
		return nil, fmt.Errorf("%w: %d", lights.ErrDeviceNotFound, deviceID)
	}
	return g.bulbs[deviceID], nil
}

func newLifxColor(color lights.Color) common.Color {
	hue, saturation, brightness := util.RgbToHsb(color)

	return common.Color{
		Hue:        hue,
		Saturation: saturation,
		Brightness: brightness,
		Kelvin:     kelvin,
	}
}

func adjustColor(color common.Color, config Config) common.Color {
	blackThreshold := 0.015 * 0xFFFF
	if color.Brightness <= uint16(blackThreshold) && color.Saturation <= uint16(blackThreshold) {
		// blackish color - turn off the light
		return common.Color{Kelvin: kelvin}
	}

	color.Brightness = uint16(math.Min(config.MaxBrightness*0xFFFF, math.Max(config.MinBrightness*0xFFFF, float64(color.Brightness))))

	return color
}
