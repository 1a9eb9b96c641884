package profiles

import (
	"context"

	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/util"
	"github.com/scheerer/nightwolf-rgb/lights"
)

// Applier is the part of a lights.Controller a profile needs.
type Applier interface {
	SetDeviceColor(ctx context.Context, deviceID int, color lights.Color) error
	SetDeviceMode(ctx context.Context, deviceID int, modeID int) error
}

// Snapshot captures the first LED color and active mode of every device.
func Snapshot(devices []lights.Device) []DeviceState {
	states := make([]DeviceState, 0, len(devices))
	for _, d := range devices {
		color := lights.Black
		if len(d.Colors) > 0 {
			color = d.Colors[0]
		}
		mode := d.ActiveMode
		states = append(states, DeviceState{
			ID:         d.ID,
			Name:       d.Name,
			Color:      util.ColorToHex(color),
			Mode:       &mode,
			Brightness: 100,
		})
	}
	return states
}

// Apply sets each device's color and then its mode. A failing device is
// reported in its result and does not stop the others.
func Apply(ctx context.Context, applier Applier, p Profile) []lights.Result {
	results := make([]lights.Result, 0, len(p.Devices))
	for _, d := range p.Devices {
		err := applyDevice(ctx, applier, d)
		if err != nil {
			logger.With(zap.String("profile", p.Name),
				zap.Int("deviceId", d.ID),
				zap.Error(err)).
				Warn("Failed to apply profile to device")
		}
		results = append(results, lights.NewResult(d.ID, err))
	}
	return results
}

func applyDevice(ctx context.Context, applier Applier, d DeviceState) error {
	if err := applier.SetDeviceColor(ctx, d.ID, util.HexToColor(d.Color)); err != nil {
		return err
	}
	if d.Mode != nil {
		return applier.SetDeviceMode(ctx, d.ID, *d.Mode)
	}
	return nil
}
