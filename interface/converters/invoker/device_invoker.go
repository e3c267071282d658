package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/salushome/controller/interface/converters/exporter"
	"github.com/salushome/controller/layers"
	"github.com/salushome/controller/state"
)

type Invoker func(ctx context.Context, s layers.OutputStack, l string, r layers.RetentionLevel, device state.GatewayDevice, capabilityName string, actionName string, payload []byte) (any, error)

type ActionError string

func (e ActionError) Error() string {
	return string(e)
}

const CapabilityNotSupported = ActionError("capability not available on device")
const ActionNotSupported = ActionError("action not available on capability")
const ActionUserError = ActionError("user provided bad data")

func InvokeDeviceAction(ctx context.Context, s layers.OutputStack, l string, r layers.RetentionLevel, device state.GatewayDevice, capabilityName string, actionName string, payload []byte) (any, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	l, r, err := resolveOutputLayerAndRetention(l, r, payload)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal payload: %w", err)
	}

	o := s.Lookup(l)
	if o == nil {
		return nil, fmt.Errorf("%w: unknown output layer: %s", ActionUserError, l)
	}

	c := o.Commander(r, device.Gateway)

	if capabilityName == exporter.CapabilityClimate {
		if device.Device.Climate == nil {
			return nil, CapabilityNotSupported
		}

		return doClimate(invokeCtx, c, device.Device.ID, actionName, payload)
	}

	// The remaining capabilities only report state, commands are rejected.
	for _, name := range exporter.CapabilityNames(device.Device) {
		if name == capabilityName {
			return nil, ActionNotSupported
		}
	}

	return nil, CapabilityNotSupported
}

type OutputLayerMetadata struct {
	Layer     string `json:"layer"`
	Retention string `json:"retention"`
}

type ControlMetadata struct {
	OutputLayer OutputLayerMetadata `json:"output"`
}

type MetadataPayload struct {
	Control ControlMetadata `json:"control"`
}

func resolveOutputLayerAndRetention(l string, r layers.RetentionLevel, payload []byte) (string, layers.RetentionLevel, error) {
	if len(payload) == 0 {
		return l, r, nil
	}

	var metadata MetadataPayload
	if err := json.Unmarshal(payload, &metadata); err != nil {
		return l, r, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if metadata.Control.OutputLayer.Layer != "" {
		l = metadata.Control.OutputLayer.Layer
	}

	switch metadata.Control.OutputLayer.Retention {
	case "oneshot":
		r = layers.OneShot
	case "maintain":
		r = layers.Maintain
	}

	return l, r, nil
}

type SetTemperature struct {
	Temperature float64
}

type SetMode struct {
	Mode string
}

type SetPreset struct {
	Preset string
}

func doClimate(ctx context.Context, c layers.Commander, id string, a string, b []byte) (any, error) {
	switch a {
	case "SetTemperature":
		input := SetTemperature{}
		if err := json.Unmarshal(b, &input); err != nil {
			return nil, fmt.Errorf("%w: unable to parse user data: %s", ActionUserError, err.Error())
		}

		return struct{}{}, c.SetTemperature(ctx, id, input.Temperature)
	case "SetMode":
		input := SetMode{}
		if err := json.Unmarshal(b, &input); err != nil {
			return nil, fmt.Errorf("%w: unable to parse user data: %s", ActionUserError, err.Error())
		}

		mode, found := exporter.ModeToRaw(input.Mode)
		if !found {
			return nil, fmt.Errorf("%w: unable to parse user data: invalid mode", ActionUserError)
		}

		return struct{}{}, c.SetMode(ctx, id, mode)
	case "SetPreset":
		input := SetPreset{}
		if err := json.Unmarshal(b, &input); err != nil {
			return nil, fmt.Errorf("%w: unable to parse user data: %s", ActionUserError, err.Error())
		}

		preset, found := exporter.PresetToRaw(input.Preset)
		if !found {
			return nil, fmt.Errorf("%w: unable to parse user data: invalid preset", ActionUserError)
		}

		return struct{}{}, c.SetPreset(ctx, id, preset)
	}

	return nil, ActionNotSupported
}
