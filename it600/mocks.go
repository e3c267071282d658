package it600

import (
	"context"

	"github.com/stretchr/testify/mock"
)

var _ Transport = (*MockTransport)(nil)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Open(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTransport) ReadDevices(ctx context.Context) ([]RawDevice, error) {
	args := m.Called(ctx)

	if devices, ok := args.Get(0).([]RawDevice); ok {
		return devices, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockTransport) WriteDevice(ctx context.Context, id string, values map[string]any) error {
	args := m.Called(ctx, id, values)
	return args.Error(0)
}

func (m *MockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}
