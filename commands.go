package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/cleanup"
	"github.com/scheerer/nightwolf-rgb/internal/effects"
	"github.com/scheerer/nightwolf-rgb/internal/engine"
)

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices the gateway can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			gw, err := newGateway(config)
			if err != nil {
				return err
			}
			defer gw.Close()

			connect(ctx, gw)
			if !gw.Connected() {
				return fmt.Errorf("no devices reachable through %s", config.GatewayType)
			}

			devices, err := gw.ListDevices(ctx)
			if err != nil {
				return err
			}
			for _, d := range devices {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\ttype=%d\tleds=%d\tmode=%d\n", d.ID, d.Name, d.Type, d.LEDCount, d.ActiveMode)
			}
			return nil
		},
	}
}

func newCleanupCommand() *cobra.Command {
	run := func(action func(ctx context.Context, c *cleanup.Cleaner) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			result, err := action(ctx, cleanup.New())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		}
	}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Report vendor RGB software that conflicts with direct control",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c *cleanup.Cleaner) (any, error) {
			return c.Report(ctx)
		}),
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "detect",
		Short: "List running vendor RGB processes",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c *cleanup.Cleaner) (any, error) {
			return c.Detect(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "full",
		Short: "Kill vendor RGB processes and stop their services",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c *cleanup.Cleaner) (any, error) {
			return c.Full(ctx)
		}),
	})
	return cmd
}

func newEffectCommand() *cobra.Command {
	var (
		options  effects.Options
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:       "effect <kind>",
		Short:     "Run one effect in the foreground until interrupted",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			gw, err := newGateway(config)
			if err != nil {
				return err
			}
			defer gw.Close()

			connect(ctx, gw)

			e := newEngine(config, gw)
			defer e.Close()

			resp, err := engine.NewControl(e).Start(ctx, args[0], &options)
			if err != nil {
				return err
			}
			logger.With(zap.Int("speed", options.Speed), zap.Stringer("duration", duration)).Info(resp.Message)

			if duration > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(duration):
				}
			} else {
				<-ctx.Done()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&options.Color, "color", "", "base color as #rrggbb")
	cmd.Flags().StringSliceVar(&options.Colors, "colors", nil, "comma separated colors for the custom effect")
	cmd.Flags().IntVar(&options.Speed, "speed", effects.DefaultSpeed, "speed between 1 and 100")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func kindNames() []string {
	names := make([]string, 0, len(effects.Kinds))
	for _, k := range effects.Kinds {
		names = append(names, string(k))
	}
	return names
}
