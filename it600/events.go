package it600

// Events emitted by a Poller, read back through Poller.ReadEvent.

type DeviceAdded struct {
	Device Device
}

type DeviceUpdated struct {
	Device Device
}

type DeviceRemoved struct {
	Device Device
}

type StatusChanged struct {
	Status Status
	// Reason carries the failure that caused the transition, empty on
	// recovery and for ordinary transitions.
	Reason string
}
