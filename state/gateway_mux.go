package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/salushome/controller/it600"
)

// Gateway is the surface the mux requires of a running gateway, satisfied by
// it600.Poller.
type Gateway interface {
	ReadEvent(ctx context.Context) (any, error)
	Snapshot() map[string]it600.Device
	AllDevices() []it600.Device
	Devices(kind it600.DeviceKind) []it600.Device
	Device(id string) (it600.Device, bool)
	Status() it600.Status
	Host() string
	LastPoll() time.Time
	PollFailures() int64
	PollDuration() time.Duration
	Refresh()
	SetTemperature(ctx context.Context, id string, temperature float64) error
	SetMode(ctx context.Context, id string, mode string) error
	SetPreset(ctx context.Context, id string, preset string) error
	Stop() error
}

// GatewayDevice pairs a device with the gateway it lives behind.
type GatewayDevice struct {
	GatewayName string
	Gateway     Gateway
	Device      it600.Device
}

type GatewayMapper interface {
	Gateways() map[string]Gateway
	Gateway(string) (Gateway, bool)
	Device(string) (GatewayDevice, bool)
	Devices() []GatewayDevice
}

var _ GatewayMapper = (*GatewayMux)(nil)

// GatewayMux aggregates the device tables of every configured gateway and
// republishes their events, annotated with the gateway name, onto a single
// event bus.
type GatewayMux struct {
	lock sync.RWMutex

	deviceByIdentifier map[string]GatewayDevice
	gatewayByName      map[string]Gateway
	shutdownCh         []chan struct{}

	eventPublisher EventPublisher
}

func NewGatewayMux(publisher EventPublisher) *GatewayMux {
	return &GatewayMux{
		deviceByIdentifier: map[string]GatewayDevice{},
		gatewayByName:      map[string]Gateway{},
		eventPublisher:     publisher,
	}
}

func (m *GatewayMux) Add(n string, g Gateway) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.gatewayByName[n] = g

	ch := make(chan struct{}, 1)
	m.shutdownCh = append(m.shutdownCh, ch)

	for _, d := range g.AllDevices() {
		m.deviceByIdentifier[d.ID] = GatewayDevice{GatewayName: n, Gateway: g, Device: d}
	}

	go m.monitorGateway(n, g, ch)
}

func (m *GatewayMux) monitorGateway(n string, g Gateway, shutCh chan struct{}) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)

		if event, err := g.ReadEvent(ctx); err != nil && err != context.DeadlineExceeded {
			cancel()
			return
		} else if event != nil {
			switch e := event.(type) {
			case it600.DeviceAdded:
				m.storeDevice(n, g, e.Device)
				m.eventPublisher.Publish(DeviceUpdate{GatewayName: n, Device: e.Device})
			case it600.DeviceUpdated:
				m.storeDevice(n, g, e.Device)
				m.eventPublisher.Publish(DeviceUpdate{GatewayName: n, Device: e.Device})
			case it600.DeviceRemoved:
				m.lock.Lock()
				delete(m.deviceByIdentifier, e.Device.ID)
				m.lock.Unlock()
				m.eventPublisher.Publish(DeviceRemove{GatewayName: n, Device: e.Device})
			case it600.StatusChanged:
				m.eventPublisher.Publish(GatewayStatusUpdate{GatewayName: n, Status: e.Status, Reason: e.Reason})
			}
		}

		cancel()

		select {
		case _ = <-shutCh:
			return
		default:
		}
	}
}

func (m *GatewayMux) storeDevice(n string, g Gateway, d it600.Device) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.deviceByIdentifier[d.ID] = GatewayDevice{GatewayName: n, Gateway: g, Device: d}
}

func (m *GatewayMux) Gateways() map[string]Gateway {
	m.lock.RLock()
	defer m.lock.RUnlock()

	result := make(map[string]Gateway, len(m.gatewayByName))
	for k, v := range m.gatewayByName {
		result[k] = v
	}
	return result
}

func (m *GatewayMux) Gateway(n string) (Gateway, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	g, found := m.gatewayByName[n]
	return g, found
}

func (m *GatewayMux) Device(id string) (GatewayDevice, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	d, found := m.deviceByIdentifier[id]
	return d, found
}

func (m *GatewayMux) Devices() []GatewayDevice {
	m.lock.RLock()
	defer m.lock.RUnlock()

	result := make([]GatewayDevice, 0, len(m.deviceByIdentifier))
	for _, d := range m.deviceByIdentifier {
		result = append(result, d)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].GatewayName != result[j].GatewayName {
			return result[i].GatewayName < result[j].GatewayName
		}
		return result[i].Device.ID < result[j].Device.ID
	})

	return result
}

func (m *GatewayMux) Stop() {
	m.lock.RLock()
	defer m.lock.RUnlock()

	for _, ch := range m.shutdownCh {
		ch <- struct{}{}
	}
}
