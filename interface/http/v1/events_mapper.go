package v1

import (
	"context"
	"fmt"

	"github.com/salushome/controller/interface/converters/exporter"
	"github.com/salushome/controller/state"
)

var _ eventMapper = stateEventMapper{}

type stateEventMapper struct {
	gatewayMapper   state.GatewayMapper
	deviceExporter  deviceExporter
	deviceOrganiser *state.DeviceOrganiser
}

func (m stateEventMapper) MapEvent(ctx context.Context, v any) ([]any, error) {
	switch e := v.(type) {
	case state.DeviceUpdate:
		return m.generateDeviceMessages(ctx, state.GatewayDevice{GatewayName: e.GatewayName, Device: e.Device}), nil
	case state.DeviceRemove:
		return []any{m.generateDeviceRemove(e.Device.ID)}, nil

	case state.GatewayStatusUpdate:
		if gw, found := m.gatewayMapper.Gateway(e.GatewayName); found {
			return []any{m.generateGatewayUpdateMessage(e.GatewayName, gw)}, nil
		}

		return nil, nil

	case state.DeviceMetadataUpdate:
		return m.generateDeviceUpdateByIdentifier(ctx, e.Identifier), nil
	case state.DeviceAddedToZone:
		return m.generateDeviceUpdateByIdentifier(ctx, e.DeviceIdentifier), nil
	case state.DeviceRemovedFromZone:
		return m.generateDeviceUpdateByIdentifier(ctx, e.DeviceIdentifier), nil

	case state.ZoneCreate:
		return []any{m.generateZoneUpdateMessage(state.Zone{Identifier: e.Identifier, Name: e.Name}, e.AfterZone)}, nil
	case state.ZoneUpdate:
		return []any{m.generateZoneUpdateMessage(state.Zone{Identifier: e.Identifier, Name: e.Name, ParentZone: e.ParentZone}, e.AfterZone)}, nil
	case state.ZoneRemove:
		return []any{ZoneRemoveMessage{
			ZoneMessage: ZoneMessage{
				Identifier: e.Identifier,
				Message: Message{
					Type: ZoneRemoveMessageName,
				},
			},
		}}, nil
	}

	return nil, fmt.Errorf("unimplemented map event")
}

func (m stateEventMapper) InitialEvents(ctx context.Context) ([]any, error) {
	var events []any

	after := 0

	for _, zone := range m.deviceOrganiser.RootZones() {
		events = append(events, m.initialEventsZone(zone, after)...)
		after = zone.Identifier
	}

	for gwName, gateway := range m.gatewayMapper.Gateways() {
		events = append(events, m.generateGatewayUpdateMessage(gwName, gateway))

		for _, device := range gateway.AllDevices() {
			events = append(events, m.generateDeviceMessages(ctx, state.GatewayDevice{GatewayName: gwName, Gateway: gateway, Device: device})...)
		}
	}

	return events, nil
}

func (m stateEventMapper) initialEventsZone(zone state.Zone, after int) []any {
	events := []any{m.generateZoneUpdateMessage(zone, after)}

	after = 0
	for _, zoneId := range zone.SubZones {
		if z, found := m.deviceOrganiser.Zone(zoneId); found {
			events = append(events, m.initialEventsZone(z, after)...)
			after = zoneId
		}
	}

	return events
}

func (m stateEventMapper) generateDeviceMessages(ctx context.Context, device state.GatewayDevice) []any {
	events := []any{m.generateDeviceUpdateMessage(ctx, device)}

	for _, capability := range exporter.CapabilityNames(device.Device) {
		events = append(events, DeviceUpdateCapabilityMessage{
			DeviceMessage: DeviceMessage{
				Message: Message{
					Type: DeviceUpdateCapabilityMessageName,
				},
			},
			Identifier: device.Device.ID,
			Capability: capability,
			Payload:    m.deviceExporter.ExportCapability(ctx, device.Device, capability),
		})
	}

	return events
}

func (m stateEventMapper) generateDeviceUpdateByIdentifier(ctx context.Context, identifier string) []any {
	device, found := m.gatewayMapper.Device(identifier)
	if !found {
		return nil
	}

	return []any{m.generateDeviceUpdateMessage(ctx, device)}
}

func (m stateEventMapper) generateDeviceUpdateMessage(ctx context.Context, device state.GatewayDevice) any {
	return DeviceUpdateMessage{
		DeviceMessage: DeviceMessage{
			Message: Message{
				Type: DeviceUpdateMessageName,
			},
		},
		ExportedSimpleDevice: m.deviceExporter.ExportSimpleDevice(ctx, device),
	}
}

func (m stateEventMapper) generateDeviceRemove(identifier string) any {
	return DeviceRemoveMessage{
		DeviceMessage: DeviceMessage{
			Message: Message{
				Type: DeviceRemoveMessageName,
			},
		},
		Identifier: identifier,
	}
}

func (m stateEventMapper) generateGatewayUpdateMessage(gwName string, gateway state.Gateway) any {
	return GatewayUpdateMessage{
		GatewayMessage: GatewayMessage{
			Message: Message{
				Type: GatewayUpdateMessageName,
			},
		},
		ExportedGateway: exporter.ExportGateway(gwName, gateway),
	}
}

func (m stateEventMapper) generateZoneUpdateMessage(zone state.Zone, after int) any {
	return ZoneUpdateMessage{
		ZoneMessage: ZoneMessage{
			Message: Message{
				Type: ZoneUpdateMessageName,
			},
			Identifier: zone.Identifier,
		},
		Name:   zone.Name,
		Parent: zone.ParentZone,
		After:  after,
	}
}

const (
	ZoneUpdateMessageName = "ZoneUpdate"
	ZoneRemoveMessageName = "ZoneRemove"

	GatewayUpdateMessageName = "GatewayUpdate"

	DeviceUpdateMessageName           = "DeviceUpdate"
	DeviceUpdateCapabilityMessageName = "DeviceUpdateCapability"
	DeviceRemoveMessageName           = "DeviceRemove"
)

type Message struct {
	Type string
}

type ZoneMessage struct {
	Message
	Identifier int
}

type ZoneUpdateMessage struct {
	ZoneMessage
	Name   string
	Parent int
	After  int
}

type ZoneRemoveMessage struct {
	ZoneMessage
}

type GatewayMessage struct {
	Message
}

type GatewayUpdateMessage struct {
	GatewayMessage
	exporter.ExportedGateway
}

type DeviceMessage struct {
	Message
}

type DeviceUpdateMessage struct {
	DeviceMessage
	exporter.ExportedSimpleDevice
}

type DeviceUpdateCapabilityMessage struct {
	DeviceMessage
	Identifier string
	Capability string
	Payload    any
}

type DeviceRemoveMessage struct {
	DeviceMessage
	Identifier string
}
