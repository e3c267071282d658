package invoker

import (
	"context"

	"github.com/salushome/controller/layers"
	"github.com/salushome/controller/state"
	"github.com/stretchr/testify/mock"
)

type MockDeviceInvoker struct {
	mock.Mock
}

func (m *MockDeviceInvoker) InvokeDevice(ctx context.Context, s layers.OutputStack, o string, r layers.RetentionLevel, device state.GatewayDevice, capabilityName string, actionName string, payload []byte) (any, error) {
	args := m.Called(ctx, s, o, r, device, capabilityName, actionName, payload)
	return args.Get(0), args.Error(1)
}
