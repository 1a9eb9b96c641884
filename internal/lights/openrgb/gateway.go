package openrgb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/util"
	"github.com/scheerer/nightwolf-rgb/lights"
)

const DefaultReconnectInterval = 5 * time.Second

type Config struct {
	Host              string
	Port              int
	ClientName        string
	ReconnectInterval time.Duration
	Timeout           time.Duration
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Status struct {
	Connected   bool   `json:"connected"`
	Address     string `json:"address"`
	Protocol    uint32 `json:"protocolVersion"`
	DeviceCount int    `json:"deviceCount"`
}

type dialFunc func(ctx context.Context) (*Client, error)

// Gateway keeps one SDK connection alive and exposes it as a lights.Gateway.
// A dropped link is re-established by Run.
type Gateway struct {
	config Config
	dial   dialFunc

	mu          sync.RWMutex
	client      *Client
	controllers []*Controller
	onConnect   func()
}

var _ lights.Controller = (*Gateway)(nil)

func New(config Config) *Gateway {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = DefaultReconnectInterval
	}
	g := &Gateway{config: config}
	g.dial = func(ctx context.Context) (*Client, error) {
		return Dial(ctx, config.Addr(), config.ClientName, config.Timeout)
	}
	return g
}

// OnConnect registers a callback invoked after each successful connect.
func (g *Gateway) OnConnect(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onConnect = fn
}

// Connect dials the server and loads the controller list. An existing link
// is replaced.
func (g *Gateway) Connect(ctx context.Context) error {
	client, err := g.dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", g.config.Addr(), err)
	}

	controllers, err := loadControllers(ctx, client)
	if err != nil {
		client.Close()
		return fmt.Errorf("loading controllers: %w", err)
	}

	g.mu.Lock()
	old := g.client
	g.client = client
	g.controllers = controllers
	onConnect := g.onConnect
	g.mu.Unlock()

	if old != nil {
		old.Close()
	}

	logger.With(zap.String("address", g.config.Addr()),
		zap.Uint32("protocolVersion", client.ProtocolVersion()),
		zap.Int("devices", len(controllers))).
		Info("Connected to OpenRGB server")

	if onConnect != nil {
		onConnect()
	}
	return nil
}

// Run reconnects whenever the link is down until ctx is canceled.
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(g.config.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.Connected() {
				continue
			}
			if err := g.Connect(ctx); err != nil {
				logger.With(zap.Error(err)).Debug("Reconnect attempt failed")
			}
		}
	}
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	client := g.client
	g.client = nil
	g.controllers = nil
	g.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client != nil
}

func (g *Gateway) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Status{
		Connected:   g.client != nil,
		Address:     g.config.Addr(),
		DeviceCount: len(g.controllers),
	}
	if g.client != nil {
		s.Protocol = g.client.ProtocolVersion()
	}
	return s
}

// ListDevices reloads the controller list from the server. Without a link
// the list is empty. A refresh that times out on a live link returns the
// list from the last refresh.
func (g *Gateway) ListDevices(ctx context.Context) ([]lights.Device, error) {
	client := g.currentClient()
	if client == nil {
		return []lights.Device{}, nil
	}

	controllers, err := loadControllers(ctx, client)
	if err != nil {
		g.drop(client, err)

		g.mu.RLock()
		defer g.mu.RUnlock()
		if g.client != client {
			return []lights.Device{}, nil
		}
		logger.With(zap.Error(err)).Debug("Device refresh failed - using cached devices")
		return toDevices(g.controllers), nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == client {
		g.controllers = controllers
	}
	return toDevices(controllers), nil
}

// Devices returns the controller list from the last refresh.
func (g *Gateway) Devices() []lights.Device {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return toDevices(g.controllers)
}

func (g *Gateway) Device(ctx context.Context, deviceID int) (lights.Device, error) {
	client, controller, err := g.lookup(deviceID)
	if err != nil {
		return lights.Device{}, err
	}

	fresh, err := client.ControllerData(ctx, deviceID)
	if err != nil {
		g.drop(client, err)
		fresh = controller
	} else {
		g.store(client, deviceID, fresh)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	return fresh.Device(deviceID), nil
}

// SetDeviceMode switches the device to mode index modeID, sending the mode's
// cached settings back unchanged.
func (g *Gateway) SetDeviceMode(ctx context.Context, deviceID int, modeID int) error {
	client, controller, err := g.lookup(deviceID)
	if err != nil {
		return err
	}
	if modeID < 0 || modeID >= len(controller.Modes) {
		if modeID == lights.DirectMode && len(controller.Modes) == 0 {
			return client.SetCustomMode(ctx, deviceID)
		}
		return fmt.Errorf("device %d has no mode %d", deviceID, modeID)
	}

	if err := client.UpdateMode(ctx, deviceID, modeID, controller.Modes[modeID]); err != nil {
		g.drop(client, err)
		return err
	}

	g.mu.Lock()
	controller.ActiveMode = int32(modeID)
	g.mu.Unlock()
	return nil
}

func (g *Gateway) PushFrame(ctx context.Context, deviceID int, colors []lights.Color) error {
	return g.pushFrame(ctx, deviceID, colors, true)
}

// pushFrame writes colors to the device. Only full-strength frames replace
// the base colors brightness is scaled from.
func (g *Gateway) pushFrame(ctx context.Context, deviceID int, colors []lights.Color, fullStrength bool) error {
	client, controller, err := g.lookup(deviceID)
	if err != nil {
		return err
	}
	if err := client.UpdateLEDs(ctx, deviceID, colors); err != nil {
		g.drop(client, err)
		return err
	}

	g.mu.Lock()
	controller.Colors = append([]lights.Color(nil), colors...)
	if fullStrength {
		controller.base = append([]lights.Color(nil), colors...)
	}
	g.mu.Unlock()
	return nil
}

// SetDeviceColor switches the device to direct mode and sets every LED to
// color.
func (g *Gateway) SetDeviceColor(ctx context.Context, deviceID int, color lights.Color) error {
	_, controller, err := g.lookup(deviceID)
	if err != nil {
		return err
	}
	if err := g.SetDeviceMode(ctx, deviceID, lights.DirectMode); err != nil {
		return err
	}
	return g.PushFrame(ctx, deviceID, lights.Fill(color, len(controller.LEDs)))
}

// SetAllDevicesColor sets color on every known device and reports each
// device's outcome.
func (g *Gateway) SetAllDevicesColor(ctx context.Context, color lights.Color) ([]lights.Result, error) {
	if !g.Connected() {
		return nil, lights.ErrNotConnected
	}

	devices := g.Devices()
	results := make([]lights.Result, 0, len(devices))
	for _, device := range devices {
		results = append(results, lights.NewResult(device.ID, g.SetDeviceColor(ctx, device.ID, color)))
	}
	return results, nil
}

// SetDeviceBrightness shows the device's base colors at percent of full
// strength. Repeated calls scale from the same base, so 100 restores it.
func (g *Gateway) SetDeviceBrightness(ctx context.Context, deviceID int, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("brightness %d out of range 0-100", percent)
	}
	_, controller, err := g.lookup(deviceID)
	if err != nil {
		return err
	}

	g.mu.RLock()
	base := controller.baseColors()
	colors := make([]lights.Color, len(base))
	for i, c := range base {
		colors[i] = util.Scale(c, float64(percent)/100)
	}
	g.mu.RUnlock()

	return g.pushFrame(ctx, deviceID, colors, false)
}

func (g *Gateway) currentClient() *Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

func (g *Gateway) lookup(deviceID int) (*Client, *Controller, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.client == nil {
		return nil, nil, lights.ErrNotConnected
	}
	if deviceID < 0 || deviceID >= len(g.controllers) {
		return nil, nil, fmt.Errorf("%w: %d", lights.ErrDeviceNotFound, deviceID)
	}
	return g.client, g.controllers[deviceID], nil
}

func (g *Gateway) store(client *Client, deviceID int, controller *Controller) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == client && deviceID < len(g.controllers) {
		g.controllers[deviceID] = controller
	}
}

// drop forgets client after an I/O failure so Run can reconnect. Deadline
// overruns leave the link in place.
func (g *Gateway) drop(client *Client, err error) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return
	}

	g.mu.Lock()
	dropped := g.client == client
	if dropped {
		g.client = nil
		g.controllers = nil
	}
	g.mu.Unlock()

	if dropped {
		client.Close()
		logger.With(zap.Error(err)).Warn("Lost connection to OpenRGB server")
	}
}

func loadControllers(ctx context.Context, client *Client) ([]*Controller, error) {
	count, err := client.ControllerCount(ctx)
	if err != nil {
		return nil, err
	}

	controllers := make([]*Controller, 0, count)
	for i := 0; i < count; i++ {
		c, err := client.ControllerData(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("controller %d: %w", i, err)
		}
		controllers = append(controllers, c)
	}
	return controllers, nil
}

func toDevices(controllers []*Controller) []lights.Device {
	devices := make([]lights.Device, len(controllers))
	for i, c := range controllers {
		devices[i] = c.Device(i)
	}
	return devices
}
