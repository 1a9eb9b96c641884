// Package lights defines the contract between the effects engine and whatever
// talks to the lighting hardware.
package lights

import (
	"context"
	"errors"
)

var (
	ErrNotConnected   = errors.New("not connected to device gateway")
	ErrDeviceNotFound = errors.New("device not found")
)

// DirectMode is the mode index most controllers use for raw per-LED writes.
const DirectMode = 0

type Color struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

var Black = Color{}

type Mode struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Value int32  `json:"value"`
	Flags uint32 `json:"flags"`
}

// Device is a read-only snapshot of a controller as reported by a Gateway.
type Device struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Type        int32   `json:"type"`
	Vendor      string  `json:"vendor,omitempty"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location,omitempty"`
	Serial      string  `json:"serial,omitempty"`
	LEDCount    int     `json:"ledCount"`
	ActiveMode  int     `json:"activeMode"`
	Modes       []Mode  `json:"modes,omitempty"`
	Colors      []Color `json:"colors,omitempty"`
}

type Gateway interface {
	// ListDevices queries the current device list. A gateway without a link
	// returns an empty list.
	ListDevices(ctx context.Context) ([]Device, error)
	SetDeviceMode(ctx context.Context, deviceID int, modeID int) error
	// PushFrame writes one color per LED; len(colors) must match the LED count.
	PushFrame(ctx context.Context, deviceID int, colors []Color) error
	Connected() bool
}

// Controller adds the direct device operations used outside the effects
// engine.
type Controller interface {
	Gateway
	Device(ctx context.Context, deviceID int) (Device, error)
	SetDeviceColor(ctx context.Context, deviceID int, color Color) error
	SetAllDevicesColor(ctx context.Context, color Color) ([]Result, error)
	SetDeviceBrightness(ctx context.Context, deviceID int, percent int) error
}

// Result is the outcome of one device write in a batch.
type Result struct {
	DeviceID int    `json:"deviceId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

func NewResult(deviceID int, err error) Result {
	if err != nil {
		return Result{DeviceID: deviceID, Success: false, Error: err.Error()}
	}
	return Result{DeviceID: deviceID, Success: true}
}

// Fill returns a buffer of n copies of c.
func Fill(c Color, n int) []Color {
	if n < 0 {
		n = 0
	}
	colors := make([]Color, n)
	for i := range colors {
		colors[i] = c
	}
	return colors
}
