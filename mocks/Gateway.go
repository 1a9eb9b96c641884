package mocks

import (
	"context"

	"github.com/scheerer/nightwolf-rgb/lights"
	"github.com/stretchr/testify/mock"
)

type Gateway struct {
	mock.Mock
}

var _ lights.Gateway = (*Gateway)(nil)

// ListDevices provides a mock function with given fields: ctx
func (_m *Gateway) ListDevices(ctx context.Context) ([]lights.Device, error) {
	ret := _m.Called(ctx)

	var r0 []lights.Device
	if rf, ok := ret.Get(0).(func(context.Context) []lights.Device); ok {
		r0 = rf(ctx)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]lights.Device)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SetDeviceMode provides a mock function with given fields: ctx, deviceID, modeID
func (_m *Gateway) SetDeviceMode(ctx context.Context, deviceID int, modeID int) error {
	ret := _m.Called(ctx, deviceID, modeID)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, int, int) error); ok {
		r0 = rf(ctx, deviceID, modeID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// PushFrame provides a mock function with given fields: ctx, deviceID, colors
func (_m *Gateway) PushFrame(ctx context.Context, deviceID int, colors []lights.Color) error {
	ret := _m.Called(ctx, deviceID, colors)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, int, []lights.Color) error); ok {
		r0 = rf(ctx, deviceID, colors)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Connected provides a mock function with given fields:
func (_m *Gateway) Connected() bool {
	ret := _m.Called()

	var r0 bool
	if rf, ok := ret.Get(0).(func() bool); ok {
		r0 = rf()
	} else {
		r0 = ret.Bool(0)
	}

	return r0
}
