package state

// DeviceFilter restricts an interface to an allow listed set of devices. A
// filter with no entries admits every device. The set is fixed at
// construction, so no locking is required.
type DeviceFilter struct {
	devices map[string]bool
}

func NewDeviceFilter(ids []string) DeviceFilter {
	devices := map[string]bool{}

	for _, id := range ids {
		devices[id] = true
	}

	return DeviceFilter{devices: devices}
}

func (d DeviceFilter) Admits(id string) bool {
	if len(d.devices) == 0 {
		return true
	}

	return d.devices[id]
}

func (d DeviceFilter) FilterDevices(devices []GatewayDevice) []GatewayDevice {
	if len(d.devices) == 0 {
		return devices
	}

	var result []GatewayDevice

	for _, device := range devices {
		if d.Admits(device.Device.ID) {
			result = append(result, device)
		}
	}

	return result
}

// AdmitsEvent reports whether an event concerns an admitted device. Events
// that do not reference a device always pass.
func (d DeviceFilter) AdmitsEvent(e any) bool {
	switch ev := e.(type) {
	case DeviceUpdate:
		return d.Admits(ev.Device.ID)
	case DeviceRemove:
		return d.Admits(ev.Device.ID)
	case DeviceMetadataUpdate:
		return d.Admits(ev.Identifier)
	case DeviceAddedToZone:
		return d.Admits(ev.DeviceIdentifier)
	case DeviceRemovedFromZone:
		return d.Admits(ev.DeviceIdentifier)
	default:
		return true
	}
}
