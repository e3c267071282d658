package exporter

import (
	"context"

	"github.com/salushome/controller/it600"
	"github.com/salushome/controller/state"
	"github.com/shimmeringbee/logwrap"
)

type ExportedDevice struct {
	Metadata     state.DeviceMetadata
	Identifier   string
	Capabilities map[string]any
	Gateway      string
	Available    bool
}

type ExportedSimpleDevice struct {
	Metadata     state.DeviceMetadata
	Identifier   string
	Capabilities []string
	Gateway      string
	Available    bool
}

type DeviceExporter interface {
	ExportDevice(ctx context.Context, device state.GatewayDevice) ExportedDevice
	ExportSimpleDevice(ctx context.Context, device state.GatewayDevice) ExportedSimpleDevice
	ExportCapability(ctx context.Context, device it600.Device, capability string) any
}

func NewDeviceExporter(do *state.DeviceOrganiser, l logwrap.Logger) DeviceExporter {
	return &deviceExporter{deviceOrganiser: do, logger: l}
}

type deviceExporter struct {
	deviceOrganiser *state.DeviceOrganiser
	logger          logwrap.Logger
}

// CapabilityNames lists the capabilities a device presents, derived from
// its kind.
func CapabilityNames(d it600.Device) []string {
	names := []string{CapabilityProductInformation}

	switch d.Kind {
	case it600.KindClimate:
		names = append(names, CapabilityClimate)
	case it600.KindSwitch:
		names = append(names, CapabilityOnOff)
	case it600.KindBinarySensor:
		names = append(names, CapabilityBinarySensor)
	case it600.KindSensor:
		names = append(names, CapabilitySensor)
	case it600.KindCover:
		names = append(names, CapabilityCover)
	}

	return names
}

func (de *deviceExporter) ExportDevice(ctx context.Context, device state.GatewayDevice) ExportedDevice {
	capabilities := map[string]any{}

	for _, name := range CapabilityNames(device.Device) {
		capabilities[name] = de.ExportCapability(ctx, device.Device, name)
	}

	md, _ := de.deviceOrganiser.Device(device.Device.ID)

	return ExportedDevice{
		Metadata:     md,
		Identifier:   device.Device.ID,
		Capabilities: capabilities,
		Gateway:      device.GatewayName,
		Available:    device.Device.Available,
	}
}

func (de *deviceExporter) ExportSimpleDevice(ctx context.Context, device state.GatewayDevice) ExportedSimpleDevice {
	md, _ := de.deviceOrganiser.Device(device.Device.ID)

	return ExportedSimpleDevice{
		Metadata:     md,
		Identifier:   device.Device.ID,
		Capabilities: CapabilityNames(device.Device),
		Gateway:      device.GatewayName,
		Available:    device.Device.Available,
	}
}

func (de *deviceExporter) ExportCapability(ctx context.Context, device it600.Device, capability string) any {
	switch capability {
	case CapabilityProductInformation:
		return de.convertProductInformation(device)
	case CapabilityClimate:
		return de.convertClimate(ctx, device)
	case CapabilityOnOff:
		return de.convertOnOff(device)
	case CapabilityBinarySensor:
		return de.convertBinarySensor(device)
	case CapabilitySensor:
		return de.convertSensor(device)
	case CapabilityCover:
		return de.convertCover(device)
	default:
		return struct{}{}
	}
}

func (de *deviceExporter) convertProductInformation(device it600.Device) any {
	return &ProductInformation{
		Name:         device.Product,
		Manufacturer: "Salus",
	}
}

func (de *deviceExporter) convertClimate(ctx context.Context, device it600.Device) any {
	if device.Climate == nil {
		return nil
	}

	return &Climate{
		CurrentTemperature: device.Climate.CurrentTemperature,
		TargetTemperature:  device.Climate.TargetTemperature,
		Mode:               de.exportMode(ctx, device.ID, device.Climate.Mode),
		Action:             de.exportAction(ctx, device.ID, device.Climate.Action),
		Preset:             de.exportPreset(ctx, device.ID, device.Climate.Preset),
		MinTemperature:     device.Climate.MinTemperature,
		MaxTemperature:     device.Climate.MaxTemperature,
		TemperatureStep:    device.Climate.TemperatureStep,
	}
}

func (de *deviceExporter) convertOnOff(device it600.Device) any {
	if device.Switch == nil {
		return nil
	}

	return &OnOff{State: device.Switch.On}
}

func (de *deviceExporter) convertBinarySensor(device it600.Device) any {
	if device.BinarySensor == nil {
		return nil
	}

	return &BinarySensor{State: device.BinarySensor.On}
}

func (de *deviceExporter) convertSensor(device it600.Device) any {
	if device.Sensor == nil {
		return nil
	}

	return &Sensor{Value: device.Sensor.Value, Unit: device.Sensor.Unit}
}

func (de *deviceExporter) convertCover(device it600.Device) any {
	if device.Cover == nil {
		return nil
	}

	return &Cover{Position: device.Cover.Position}
}

func (de *deviceExporter) exportMode(ctx context.Context, id string, raw string) string {
	if mode, found := modesToExternal[raw]; found {
		return mode
	}

	de.logger.LogWarn(ctx, "Device reported an unrecognised mode.", logwrap.Datum("Identifier", id), logwrap.Datum("Mode", raw))
	return ModeHeat
}

func (de *deviceExporter) exportAction(ctx context.Context, id string, raw string) string {
	if action, found := actionsToExternal[raw]; found {
		return action
	}

	de.logger.LogWarn(ctx, "Device reported an unrecognised action.", logwrap.Datum("Identifier", id), logwrap.Datum("Action", raw))
	return ActionIdle
}

func (de *deviceExporter) exportPreset(ctx context.Context, id string, raw string) string {
	if raw == "" {
		return ""
	}

	if preset, found := presetsToExternal[raw]; found {
		return preset
	}

	de.logger.LogWarn(ctx, "Device reported an unrecognised preset.", logwrap.Datum("Identifier", id), logwrap.Datum("Preset", raw))
	return ""
}
