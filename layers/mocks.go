package layers

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type NoLayersStack struct {
}

func (p NoLayersStack) Layers() []string {
	return []string{}
}

func (p NoLayersStack) Lookup(name string) OutputLayer {
	return nil
}

type MockOutputStack struct {
	mock.Mock
}

func (m *MockOutputStack) Layers() []string {
	called := m.Called()
	return called.Get(0).([]string)
}

func (m *MockOutputStack) Lookup(name string) OutputLayer {
	called := m.Called(name)
	return called.Get(0).(OutputLayer)
}

type MockOutputLayer struct {
	mock.Mock
}

func (m *MockOutputLayer) Name() string {
	called := m.Called()
	return called.String(0)
}

func (m *MockOutputLayer) Commander(rl RetentionLevel, c Commander) Commander {
	called := m.Called(rl, c)
	return called.Get(0).(Commander)
}

type MockCommander struct {
	mock.Mock
}

func (m *MockCommander) SetTemperature(ctx context.Context, id string, temperature float64) error {
	args := m.Called(ctx, id, temperature)
	return args.Error(0)
}

func (m *MockCommander) SetMode(ctx context.Context, id string, mode string) error {
	args := m.Called(ctx, id, mode)
	return args.Error(0)
}

func (m *MockCommander) SetPreset(ctx context.Context, id string, preset string) error {
	args := m.Called(ctx, id, preset)
	return args.Error(0)
}
