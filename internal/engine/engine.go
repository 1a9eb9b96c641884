// Package engine runs at most one lighting effect at a time, computing a
// color per frame and pushing it to every prepared device.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/effects"
	"github.com/scheerer/nightwolf-rgb/internal/logging"
	"github.com/scheerer/nightwolf-rgb/lights"
)

var logger = logging.New("engine")

const (
	DefaultFrameRate   = 30
	DefaultPushTimeout = 250 * time.Millisecond

	overrunWarningInterval = 10 * time.Second
)

// ColorSampler provides frame colors for the ambient effect.
type ColorSampler interface {
	Sample() (lights.Color, error)
}

type Config struct {
	FrameRate   int
	PushTimeout time.Duration
	// Sampler is optional; without it the ambient effect cannot start.
	Sampler  ColorSampler
	Registry metrics.Registry
}

type Status struct {
	Active  bool             `json:"active"`
	Effect  string           `json:"effect"`
	Options *effects.Options `json:"options,omitempty"`
}

// PushResult is the outcome of pushing one frame to one device.
type PushResult struct {
	DeviceID int
	Err      error
}

type runningEffect struct {
	kind      effects.Kind
	options   effects.Options
	startTime time.Time
	devices   []lights.Device

	cancel context.CancelFunc
	done   chan struct{}

	// only touched by the effect's own goroutine
	lastWarning time.Time
}

type Engine struct {
	gateway lights.Gateway
	config  Config
	now     func() time.Time

	// transitionMu serializes Start and Stop; mu guards the current slot.
	transitionMu sync.Mutex
	mu           sync.RWMutex
	current      *runningEffect
	onChange     func(Status)

	ticks        metrics.Counter
	starts       metrics.Counter
	pushFailures metrics.Counter
	tickDuration metrics.Timer
}

func New(gateway lights.Gateway, config Config) *Engine {
	if config.FrameRate <= 0 {
		config.FrameRate = DefaultFrameRate
	}
	if config.PushTimeout <= 0 {
		config.PushTimeout = DefaultPushTimeout
	}
	if config.Registry == nil {
		config.Registry = metrics.NewRegistry()
	}

	return &Engine{
		gateway:      gateway,
		config:       config,
		now:          time.Now,
		ticks:        metrics.GetOrRegisterCounter("engine.ticks", config.Registry),
		starts:       metrics.GetOrRegisterCounter("engine.starts", config.Registry),
		pushFailures: metrics.GetOrRegisterCounter("engine.push.failures", config.Registry),
		tickDuration: metrics.GetOrRegisterTimer("engine.tick.duration", config.Registry),
	}
}

func (e *Engine) FrameInterval() time.Duration {
	return time.Second / time.Duration(e.config.FrameRate)
}

// OnChange registers a callback invoked after every start and stop.
func (e *Engine) OnChange(fn func(Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// Start replaces any running effect with kind. Invalid options are rejected
// before the running effect is touched. Device preparation failures are
// logged per device and never fail the start.
func (e *Engine) Start(ctx context.Context, kind effects.Kind, options effects.Options) error {
	if err := options.Validate(kind); err != nil {
		return err
	}
	if kind == effects.Ambient && e.config.Sampler == nil {
		return fmt.Errorf("%w: ambient effect needs a screen sampler", effects.ErrInvalidOptions)
	}

	e.transitionMu.Lock()
	defer e.transitionMu.Unlock()

	if e.stopCurrent() {
		logger.Info("Stopped previous effect")
	}

	devices := e.prepareDevices(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	r := &runningEffect{
		kind:      kind,
		options:   options,
		startTime: e.now(),
		devices:   devices,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	e.mu.Lock()
	e.current = r
	e.mu.Unlock()
	e.starts.Inc(1)

	go e.run(runCtx, r)

	logger.With(zap.String("effect", string(kind)),
		zap.Any("options", options),
		zap.Int("devices", len(devices))).
		Info("Effect started")
	e.notify()
	return nil
}

// Stop cancels the running effect, if any, and waits for its last tick.
func (e *Engine) Stop() {
	e.transitionMu.Lock()
	defer e.transitionMu.Unlock()

	if e.stopCurrent() {
		logger.Info("Effect stopped")
		e.notify()
	}
}

func (e *Engine) Close() {
	e.Stop()
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.current == nil {
		return Status{Active: false, Effect: "none"}
	}
	options := e.current.options
	return Status{
		Active:  true,
		Effect:  string(e.current.kind),
		Options: &options,
	}
}

func (e *Engine) stopCurrent() bool {
	e.mu.Lock()
	r := e.current
	e.current = nil
	e.mu.Unlock()

	if r == nil {
		return false
	}
	r.cancel()
	<-r.done
	return true
}

// finish clears r from the slot when the effect ends on its own.
func (e *Engine) finish(r *runningEffect) {
	e.mu.Lock()
	cleared := e.current == r
	if cleared {
		e.current = nil
	}
	e.mu.Unlock()

	r.cancel()
	if cleared {
		logger.With(zap.String("effect", string(r.kind))).Info("Effect finished")
		e.notify()
	}
}

func (e *Engine) notify() {
	e.mu.RLock()
	fn := e.onChange
	e.mu.RUnlock()

	if fn != nil {
		fn(e.Status())
	}
}

func (e *Engine) prepareDevices(ctx context.Context) []lights.Device {
	devices, err := e.gateway.ListDevices(ctx)
	if err != nil {
		logger.With(zap.Error(err)).Warn("Failed to list devices - starting with none")
		return nil
	}

	for _, device := range devices {
		if err := e.gateway.SetDeviceMode(ctx, device.ID, lights.DirectMode); err != nil {
			logger.With(zap.Int("deviceId", device.ID),
				zap.String("deviceName", device.Name),
				zap.Error(err)).
				Warn("Failed to set direct mode")
		}
	}
	return devices
}

func (e *Engine) run(ctx context.Context, r *runningEffect) {
	defer close(r.done)

	ticker := time.NewTicker(e.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				// canceled while waiting on the ticker
				return
			}
			e.tick(r)
			if r.kind.OneShot() {
				e.finish(r)
				return
			}
		}
	}
}

func (e *Engine) tick(r *runningEffect) []PushResult {
	start := time.Now()
	defer e.tickDuration.UpdateSince(start)
	e.ticks.Inc(1)

	var color lights.Color
	if r.kind == effects.Ambient {
		sampled, err := e.config.Sampler.Sample()
		if err != nil {
			logger.With(zap.Error(err)).Debug("Failed to sample screen - skipping frame")
			return nil
		}
		color = sampled
	} else {
		color = effects.Frame(r.kind, e.now().Sub(r.startTime), r.options)
	}

	results := e.fanOut(r.devices, color)

	if took := time.Since(start); took > e.FrameInterval() && time.Since(r.lastWarning) > overrunWarningInterval {
		logger.With(zap.Stringer("tickDuration", took),
			zap.Stringer("frameInterval", e.FrameInterval()),
			zap.Int("devices", len(r.devices))).
			Warn("Cannot keep up with FRAME_RATE. Consider lowering FRAME_RATE or PUSH_TIMEOUT.")
		r.lastWarning = time.Now()
	}
	return results
}

// fanOut pushes color to every device concurrently. Failures are recorded in
// the results and logged, never returned.
func (e *Engine) fanOut(devices []lights.Device, color lights.Color) []PushResult {
	results := make([]PushResult, len(devices))

	var wg sync.WaitGroup
	for i, device := range devices {
		wg.Add(1)
		go func(i int, device lights.Device) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), e.config.PushTimeout)
			err := e.gateway.PushFrame(ctx, device.ID, lights.Fill(color, device.LEDCount))
			cancel()

			results[i] = PushResult{DeviceID: device.ID, Err: err}
			if err != nil {
				e.pushFailures.Inc(1)
				logger.With(zap.Int("deviceId", device.ID), zap.Error(err)).Debug("Failed to push frame")
			}
		}(i, device)
	}
	wg.Wait()

	return results
}

type MetricsSnapshot struct {
	Ticks          int64   `json:"ticks"`
	Starts         int64   `json:"starts"`
	PushFailures   int64   `json:"pushFailures"`
	TickMeanMillis float64 `json:"tickMeanMillis"`
	TickP99Millis  float64 `json:"tickP99Millis"`
	TickMaxMillis  float64 `json:"tickMaxMillis"`
}

func (e *Engine) Metrics() MetricsSnapshot {
	timer := e.tickDuration.Snapshot()
	toMillis := func(ns float64) float64 { return ns / float64(time.Millisecond) }

	return MetricsSnapshot{
		Ticks:          e.ticks.Count(),
		Starts:         e.starts.Count(),
		PushFailures:   e.pushFailures.Count(),
		TickMeanMillis: toMillis(timer.Mean()),
		TickP99Millis:  toMillis(timer.Percentile(0.99)),
		TickMaxMillis:  toMillis(float64(timer.Max())),
	}
}
