package state

import (
	"context"
	"time"

	"github.com/salushome/controller/it600"
	"github.com/stretchr/testify/mock"
)

var _ Gateway = (*MockGateway)(nil)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ReadEvent(ctx context.Context) (any, error) {
	args := m.Called(ctx)
	return args.Get(0), args.Error(1)
}

func (m *MockGateway) Snapshot() map[string]it600.Device {
	args := m.Called()
	if devices, ok := args.Get(0).(map[string]it600.Device); ok {
		return devices
	}
	return nil
}

func (m *MockGateway) AllDevices() []it600.Device {
	args := m.Called()
	if devices, ok := args.Get(0).([]it600.Device); ok {
		return devices
	}
	return nil
}

func (m *MockGateway) Devices(kind it600.DeviceKind) []it600.Device {
	args := m.Called(kind)
	if devices, ok := args.Get(0).([]it600.Device); ok {
		return devices
	}
	return nil
}

func (m *MockGateway) Device(id string) (it600.Device, bool) {
	args := m.Called(id)
	return args.Get(0).(it600.Device), args.Bool(1)
}

func (m *MockGateway) Status() it600.Status {
	args := m.Called()
	return args.Get(0).(it600.Status)
}

func (m *MockGateway) Host() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockGateway) LastPoll() time.Time {
	args := m.Called()
	return args.Get(0).(time.Time)
}

func (m *MockGateway) PollFailures() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *MockGateway) PollDuration() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockGateway) Refresh() {
	m.Called()
}

func (m *MockGateway) SetTemperature(ctx context.Context, id string, temperature float64) error {
	args := m.Called(ctx, id, temperature)
	return args.Error(0)
}

func (m *MockGateway) SetMode(ctx context.Context, id string, mode string) error {
	args := m.Called(ctx, id, mode)
	return args.Error(0)
}

func (m *MockGateway) SetPreset(ctx context.Context, id string, preset string) error {
	args := m.Called(ctx, id, preset)
	return args.Error(0)
}

func (m *MockGateway) Stop() error {
	args := m.Called()
	return args.Error(0)
}

var _ GatewayMapper = (*MockGatewayMapper)(nil)

type MockGatewayMapper struct {
	mock.Mock
}

func (m *MockGatewayMapper) Gateways() map[string]Gateway {
	args := m.Called()
	if gateways, ok := args.Get(0).(map[string]Gateway); ok {
		return gateways
	}
	return nil
}

func (m *MockGatewayMapper) Gateway(n string) (Gateway, bool) {
	args := m.Called(n)
	if g, ok := args.Get(0).(Gateway); ok {
		return g, args.Bool(1)
	}
	return nil, args.Bool(1)
}

func (m *MockGatewayMapper) Device(id string) (GatewayDevice, bool) {
	args := m.Called(id)
	return args.Get(0).(GatewayDevice), args.Bool(1)
}

func (m *MockGatewayMapper) Devices() []GatewayDevice {
	args := m.Called()
	if devices, ok := args.Get(0).([]GatewayDevice); ok {
		return devices
	}
	return nil
}
