package state

import "github.com/salushome/controller/it600"

// Zone and device metadata events, published by the DeviceOrganiser. AfterZone
// carries the identifier of the preceding sibling so consumers can preserve
// ordering, zero means first.

type ZoneCreate struct {
	Identifier int
	Name       string
	AfterZone  int
}

type ZoneUpdate struct {
	Identifier int
	Name       string
	ParentZone int
	AfterZone  int
}

type ZoneRemove struct {
	Identifier int
}

type DeviceMetadataUpdate struct {
	Identifier string
	Name       string
}

type DeviceAddedToZone struct {
	ZoneIdentifier   int
	DeviceIdentifier string
}

type DeviceRemovedFromZone struct {
	ZoneIdentifier   int
	DeviceIdentifier string
}

// Gateway events, published by the GatewayMux as it drains its gateways.

type DeviceUpdate struct {
	GatewayName string
	Device      it600.Device
}

type DeviceRemove struct {
	GatewayName string
	Device      it600.Device
}

type GatewayStatusUpdate struct {
	GatewayName string
	Status      it600.Status
	Reason      string
}
