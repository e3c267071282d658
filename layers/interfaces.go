package layers

import "context"

type RetentionLevel uint8

const (
	OneShot  RetentionLevel = 0
	Maintain RetentionLevel = 1
)

// Commander is the command surface of a gateway, the calls an output layer
// may intercept or reroute before they reach the hardware.
type Commander interface {
	SetTemperature(ctx context.Context, id string, temperature float64) error
	SetMode(ctx context.Context, id string, mode string) error
	SetPreset(ctx context.Context, id string, preset string) error
}

type OutputStack interface {
	Layers() []string
	Lookup(name string) OutputLayer
}

type OutputLayer interface {
	Name() string
	Commander(rl RetentionLevel, c Commander) Commander
}
