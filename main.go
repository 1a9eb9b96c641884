package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/api"
	"github.com/scheerer/nightwolf-rgb/internal/cleanup"
	"github.com/scheerer/nightwolf-rgb/internal/engine"
	"github.com/scheerer/nightwolf-rgb/internal/lights/lifx"
	"github.com/scheerer/nightwolf-rgb/internal/lights/openrgb"
	"github.com/scheerer/nightwolf-rgb/internal/logging"
	"github.com/scheerer/nightwolf-rgb/internal/profiles"
	"github.com/scheerer/nightwolf-rgb/internal/screen"
	"github.com/scheerer/nightwolf-rgb/lights"
)

var (
	logger   = logging.New("main")
	config   = Config{}
	logLevel string
)

type Config struct {
	ServerPort        int           `env:"SERVER_PORT" envDefault:"3001"`
	GatewayType       string        `env:"GATEWAY_TYPE" envDefault:"OPENRGB"`
	OpenRGBHost       string        `env:"OPENRGB_HOST" envDefault:"localhost"`
	OpenRGBPort       int           `env:"OPENRGB_PORT" envDefault:"6742"`
	OpenRGBClientName string        `env:"OPENRGB_CLIENT_NAME" envDefault:"Nightwolf RGB"`
	ReconnectInterval time.Duration `env:"RECONNECT_INTERVAL" envDefault:"5s"`
	LifxGroupName     string        `env:"LIFX_GROUP_NAME" envDefault:"RGB"`
	MinBrightness     float64       `env:"MIN_BRIGHTNESS" envDefault:"0"`
	MaxBrightness     float64       `env:"MAX_BRIGHTNESS" envDefault:"1"`
	FrameRate         int           `env:"FRAME_RATE" envDefault:"30"`
	PushTimeout       time.Duration `env:"PUSH_TIMEOUT" envDefault:"250ms"`
	ProfilesFile      string        `env:"PROFILES_FILE" envDefault:"data/profiles.json"`
	ScreenNumber      int           `env:"SCREEN_NUMBER" envDefault:"0"`
	PixelGridSize     int           `env:"PIXEL_GRID_SIZE" envDefault:"5"`
	ColorAlgo         string        `env:"COLOR_ALGO" envDefault:"AVERAGE"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	AutoCleanup       bool          `env:"AUTO_CLEANUP" envDefault:"false"`
}

// gateway is what every backend offers on top of lights.Controller.
type gateway interface {
	lights.Controller
	Run(ctx context.Context)
	Close() error
}

func loadConfig() (Config, error) {
	c := Config{}
	if err := env.Parse(&c); err != nil {
		return c, err
	}
	c.GatewayType = strings.ToUpper(strings.TrimSpace(c.GatewayType))
	switch c.GatewayType {
	case "OPENRGB", "LIFX":
	default:
		return c, fmt.Errorf("unknown gateway type: %v", c.GatewayType)
	}
	if c.MinBrightness < 0 || c.MaxBrightness > 1 || c.MinBrightness > c.MaxBrightness {
		return c, fmt.Errorf("brightness range %v-%v must lie within 0-1", c.MinBrightness, c.MaxBrightness)
	}
	return c, nil
}

func newGateway(c Config) (gateway, error) {
	switch c.GatewayType {
	case "OPENRGB":
		return openrgb.New(openrgb.Config{
			Host:              c.OpenRGBHost,
			Port:              c.OpenRGBPort,
			ClientName:        c.OpenRGBClientName,
			ReconnectInterval: c.ReconnectInterval,
		}), nil
	case "LIFX":
		return lifx.New(lifx.Config{
			GroupName:     c.LifxGroupName,
			MinBrightness: c.MinBrightness,
			MaxBrightness: c.MaxBrightness,
		})
	default:
		return nil, fmt.Errorf("unknown gateway type: %v", c.GatewayType)
	}
}

// connect makes a first attempt at reaching the devices and leaves the
// gateway's background loop running until ctx is canceled. OpenRGB dials
// directly; LIFX waits for one discovery round.
func connect(ctx context.Context, gw gateway) {
	if g, ok := gw.(*openrgb.Gateway); ok {
		if err := g.Connect(ctx); err != nil {
			logger.With(zap.Error(err)).Warn("OpenRGB server not reachable yet. Will keep retrying.")
		}
		go g.Run(ctx)
		return
	}

	go gw.Run(ctx)
	deadline := time.Now().Add(lifx.DefaultDiscoveryInterval)
	for !gw.Connected() && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func newEngine(c Config, gw lights.Gateway) *engine.Engine {
	engineConfig := engine.Config{
		FrameRate:   c.FrameRate,
		PushTimeout: c.PushTimeout,
	}

	if screen.ActiveDisplays() > c.ScreenNumber {
		sampler, err := screen.NewSampler(screen.Config{
			ScreenNumber:  c.ScreenNumber,
			PixelGridSize: c.PixelGridSize,
			ColorAlgo:     c.ColorAlgo,
		})
		if err != nil {
			logger.With(zap.Error(err)).Warn("Ambient effect disabled")
		} else {
			engineConfig.Sampler = sampler
		}
	} else {
		logger.With(zap.Int("screenNumber", c.ScreenNumber)).Info("No display to capture. Ambient effect disabled.")
	}

	return engine.New(gw, engineConfig)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-shutdown:
			logger.Info("Shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(shutdown)
	}()
	return ctx, cancel
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	logger.With(zap.Any("config", config)).Info("Starting nightwolf")
	logger.Info("Set GATEWAY_TYPE to OPENRGB or LIFX to pick the device backend.")
	logger.Info("Adjust FRAME_RATE to change how often effects push frames.")
	logger.Info("Press Ctrl+C to stop")

	cleaner := cleanup.New()
	if config.AutoCleanup && cleaner.Supported() {
		result, err := cleaner.Full(ctx)
		if err != nil {
			logger.With(zap.Error(err)).Warn("Auto cleanup failed")
		} else {
			logger.With(zap.Int("processesKilled", result.Summary.ProcessesKilled),
				zap.Int("servicesStopped", len(result.ServiceStop.Results))).
				Info("Auto cleanup finished")
		}
	}

	store, err := profiles.New(config.ProfilesFile)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}

	gw, err := newGateway(config)
	if err != nil {
		return err
	}
	defer gw.Close()

	e := newEngine(config, gw)
	defer e.Close()

	server := api.New(api.Options{
		GatewayType: config.GatewayType,
		Controller:  gw,
		Control:     engine.NewControl(e),
		Profiles:    store,
		Cleaner:     cleaner,
	})
	e.OnChange(func(engine.Status) { server.Hub().Notify() })

	if g, ok := gw.(*openrgb.Gateway); ok {
		g.OnConnect(server.Hub().Notify)
		connect(ctx, gw)
	} else {
		go gw.Run(ctx)
	}

	return server.Run(ctx, ":"+strconv.Itoa(config.ServerPort))
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "nightwolf",
		Short:        "Control RGB lighting through OpenRGB or LIFX",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				c.LogLevel = logLevel
			}
			config = c
			logging.GetLeveler().SetAll(logging.ParseLevel(config.LogLevel))
			return nil
		},
		RunE: serve,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket control server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	root.AddCommand(newDevicesCommand(), newCleanupCommand(), newEffectCommand())
	return root
}

func main() {
	defer logger.Sync()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
