package exporter

import (
	"context"

	"github.com/salushome/controller/it600"
	"github.com/salushome/controller/state"
	"github.com/stretchr/testify/mock"
)

var _ DeviceExporter = (*MockDeviceExporter)(nil)

type MockDeviceExporter struct {
	mock.Mock
}

func (m *MockDeviceExporter) ExportDevice(ctx context.Context, device state.GatewayDevice) ExportedDevice {
	args := m.Called(ctx, device)
	return args.Get(0).(ExportedDevice)
}

func (m *MockDeviceExporter) ExportSimpleDevice(ctx context.Context, device state.GatewayDevice) ExportedSimpleDevice {
	args := m.Called(ctx, device)
	return args.Get(0).(ExportedSimpleDevice)
}

func (m *MockDeviceExporter) ExportCapability(ctx context.Context, device it600.Device, capability string) any {
	args := m.Called(ctx, device, capability)
	return args.Get(0)
}
