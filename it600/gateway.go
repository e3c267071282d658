package it600

import (
	"context"
	"time"
)

// Gateway is the session surface of a single IT600 universal gateway. The
// concrete implementation is Client, consumers hold the interface so that
// tests can substitute a mock.
type Gateway interface {
	Connect(ctx context.Context) error
	PollStatus(ctx context.Context) error
	Close() error

	Snapshot() map[string]Device
	AllDevices() []Device
	Devices(kind DeviceKind) []Device
	Device(id string) (Device, bool)
	Status() Status
	Host() string
	LastPoll() time.Time

	SetTemperature(ctx context.Context, id string, temperature float64) error
	SetMode(ctx context.Context, id string, mode string) error
	SetPreset(ctx context.Context, id string, preset string) error
}
