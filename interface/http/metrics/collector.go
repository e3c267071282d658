package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/salushome/controller/it600"
	"github.com/salushome/controller/state"
)

var _ prometheus.Collector = (*Collector)(nil)

// Collector reads the gateway mux at scrape time, nothing accumulates
// between scrapes.
type Collector struct {
	lock sync.Mutex

	mapper    state.GatewayMapper
	organiser *state.DeviceOrganiser

	currentTemperature  *prometheus.GaugeVec
	targetTemperature   *prometheus.GaugeVec
	deviceAvailable     *prometheus.GaugeVec
	gatewayConnected    *prometheus.GaugeVec
	gatewayLastPoll     *prometheus.GaugeVec
	gatewayPollFailures *prometheus.CounterVec
	gatewayPollDuration *prometheus.GaugeVec
}

func NewCollector(mapper state.GatewayMapper, organiser *state.DeviceOrganiser) *Collector {
	deviceLabels := []string{"gateway", "device", "name"}
	gatewayLabels := []string{"gateway"}

	return &Collector{
		mapper:    mapper,
		organiser: organiser,
		currentTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_climate_current_temperature_celsius",
			Help: "Temperature reported by a climate device, degrees Celsius",
		}, deviceLabels),
		targetTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_climate_target_temperature_celsius",
			Help: "Setpoint of a climate device, degrees Celsius",
		}, deviceLabels),
		deviceAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_device_available",
			Help: "1 if the device is reachable through its gateway",
		}, deviceLabels),
		gatewayConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_gateway_connected",
			Help: "1 if the gateway session is established",
		}, gatewayLabels),
		gatewayLastPoll: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_gateway_last_poll_timestamp_seconds",
			Help: "Last successful poll, epoch seconds",
		}, gatewayLabels),
		gatewayPollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salus_gateway_poll_failures_total",
			Help: "Polls that have failed since the gateway started",
		}, gatewayLabels),
		gatewayPollDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salus_gateway_poll_duration_seconds",
			Help: "Wall time of the most recent poll",
		}, gatewayLabels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.currentTemperature.Describe(ch)
	c.targetTemperature.Describe(ch)
	c.deviceAvailable.Describe(ch)
	c.gatewayConnected.Describe(ch)
	c.gatewayLastPoll.Describe(ch)
	c.gatewayPollFailures.Describe(ch)
	c.gatewayPollDuration.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.currentTemperature.Reset()
	c.targetTemperature.Reset()
	c.deviceAvailable.Reset()
	c.gatewayConnected.Reset()
	c.gatewayLastPoll.Reset()
	c.gatewayPollFailures.Reset()
	c.gatewayPollDuration.Reset()

	for name, gw := range c.mapper.Gateways() {
		c.collectGateway(name, gw)
	}

	c.currentTemperature.Collect(ch)
	c.targetTemperature.Collect(ch)
	c.deviceAvailable.Collect(ch)
	c.gatewayConnected.Collect(ch)
	c.gatewayLastPoll.Collect(ch)
	c.gatewayPollFailures.Collect(ch)
	c.gatewayPollDuration.Collect(ch)
}

func (c *Collector) collectGateway(name string, gw state.Gateway) {
	labels := prometheus.Labels{"gateway": name}

	// Polling is a healthy session part way through a poll.
	connected := 0.0
	switch gw.Status() {
	case it600.StatusConnected, it600.StatusPolling:
		connected = 1
	}

	c.gatewayConnected.With(labels).Set(connected)

	if last := gw.LastPoll(); !last.IsZero() {
		c.gatewayLastPoll.With(labels).Set(float64(last.Unix()))
	}

	c.gatewayPollFailures.With(labels).Add(float64(gw.PollFailures()))
	c.gatewayPollDuration.With(labels).Set(gw.PollDuration().Seconds())

	for _, device := range gw.AllDevices() {
		c.collectDevice(name, device)
	}
}

func (c *Collector) collectDevice(gateway string, device it600.Device) {
	labels := prometheus.Labels{"gateway": gateway, "device": device.ID, "name": c.deviceName(device)}

	available := 0.0
	if device.Available {
		available = 1
	}

	c.deviceAvailable.With(labels).Set(available)

	if device.Climate != nil {
		c.currentTemperature.With(labels).Set(device.Climate.CurrentTemperature)
		c.targetTemperature.With(labels).Set(device.Climate.TargetTemperature)
	}
}

// deviceName prefers the name an operator assigned over the one the gateway
// reports.
func (c *Collector) deviceName(device it600.Device) string {
	if md, found := c.organiser.Device(device.ID); found && len(md.Name) > 0 {
		return md.Name
	}

	return device.Name
}
