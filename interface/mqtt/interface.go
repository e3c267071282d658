package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/salushome/controller/interface/converters/exporter"
	"github.com/salushome/controller/interface/converters/invoker"
	"github.com/salushome/controller/it600"
	"github.com/salushome/controller/layers"
	"github.com/salushome/controller/state"
	"github.com/shimmeringbee/logwrap"
)

type Publisher func(ctx context.Context, topic string, payload []byte) error

type mqttError string

func (m mqttError) Error() string {
	return string(m)
}

const DefaultMqttOutputLayer string = "mqtt"

const UnknownTopic = mqttError("unknown topic")
const UnknownDevice = mqttError("unknown device")

type Interface struct {
	lock      sync.RWMutex
	publisher Publisher
	stop      chan bool

	GatewayMux      state.GatewayMapper
	EventSubscriber state.EventSubscriber
	OutputStack     layers.OutputStack
	DeviceInvoker   invoker.Invoker
	DeviceExporter  exporter.DeviceExporter
	Logger          logwrap.Logger

	PublishStateOnConnect  bool
	PublishAggregatedState bool
	PublishIndividualState bool

	// DeviceFilter limits publishing to an allow listed set of devices, the
	// zero value publishes everything.
	DeviceFilter state.DeviceFilter
}

func (i *Interface) IncomingMessage(ctx context.Context, topic string, payload []byte) error {
	topicParts := strings.Split(topic, "/")

	if len(topicParts) > 0 {
		switch topicParts[0] {
		case "devices":
			return i.incomingMessageDevices(ctx, topicParts[1:], payload)
		}
	}

	return fmt.Errorf("%w: %s", UnknownTopic, topic)
}

func (i *Interface) incomingMessageDevices(ctx context.Context, topic []string, payload []byte) error {
	if len(topic) > 0 {
		d, ok := i.GatewayMux.Device(topic[0])

		if ok {
			return i.incomingMessageDevicesWith(ctx, topic[1:], payload, d)
		}
	}

	return fmt.Errorf("%w: %s", UnknownDevice, strings.Join(topic, "/"))
}

func (i *Interface) incomingMessageDevicesWith(ctx context.Context, topic []string, payload []byte, d state.GatewayDevice) error {
	if len(topic) > 0 {
		switch topic[0] {
		case "capabilities":
			return i.incomingMessageDevicesWithCapabilities(ctx, topic[1:], payload, d)
		}
	}

	return fmt.Errorf("%w: %s", UnknownTopic, strings.Join(topic, "/"))
}

func (i *Interface) incomingMessageDevicesWithCapabilities(ctx context.Context, topic []string, payload []byte, d state.GatewayDevice) error {
	if len(topic) >= 3 && topic[2] == "invoke" {
		if _, err := i.DeviceInvoker(ctx, i.OutputStack, DefaultMqttOutputLayer, layers.OneShot, d, topic[0], topic[1], payload); err != nil {
			return fmt.Errorf("unable to invoke action on device: %w", err)
		}

		return nil
	}

	return fmt.Errorf("%w: %s", UnknownTopic, strings.Join(topic, "/"))
}

func EmptyPublisher(ctx context.Context, topic string, payload []byte) error {
	return nil
}

func (i *Interface) Connected(ctx context.Context, publisher Publisher) error {
	i.lock.Lock()
	i.publisher = publisher
	i.lock.Unlock()

	if i.PublishStateOnConnect {
		i.Logger.LogInfo(ctx, "MQTT connected, publishing current state of all devices and capabilities.")
		go i.publishAll()
	}

	return nil
}

func (i *Interface) Disconnected() {
	i.lock.Lock()
	i.publisher = EmptyPublisher
	i.lock.Unlock()
}

func (i *Interface) publish(ctx context.Context, topic string, payload []byte) error {
	i.lock.RLock()
	publisher := i.publisher
	i.lock.RUnlock()

	if publisher == nil {
		return nil
	}

	return publisher(ctx, topic, payload)
}

func (i *Interface) publishAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, d := range i.DeviceFilter.FilterDevices(i.GatewayMux.Devices()) {
		i.publishDevice(ctx, d)
	}
}

func (i *Interface) publishDevice(ctx context.Context, device state.GatewayDevice) {
	deviceCtx := i.Logger.AddOptionsToContext(ctx, logwrap.Datum("device", device.Device.ID))

	availability := "offline"
	if device.Device.Available {
		availability = "online"
	}

	if err := i.publish(deviceCtx, fmt.Sprintf("devices/%s/availability", device.Device.ID), []byte(availability)); err != nil {
		i.Logger.LogError(deviceCtx, "Failed to publish availability of device.", logwrap.Err(err))
	}

	for _, capability := range exporter.CapabilityNames(device.Device) {
		i.publishDeviceCapability(deviceCtx, device.Device, capability)
	}
}

func (i *Interface) publishDeviceCapability(ctx context.Context, device it600.Device, capName string) {
	result := i.DeviceExporter.ExportCapability(ctx, device, capName)
	if result == nil {
		return
	}

	topic := fmt.Sprintf("devices/%s/capabilities/%s", device.ID, capName)

	if i.PublishAggregatedState {
		if err := i.publishDeviceCapabilityAggregated(ctx, topic, result); err != nil {
			i.Logger.LogError(ctx, "Failed to publish aggregated state of capability.", logwrap.Datum("capability", capName), logwrap.Err(err))
		}
	}

	if i.PublishIndividualState {
		if err := i.publishDeviceCapabilityIndividual(ctx, topic, result); err != nil {
			i.Logger.LogError(ctx, "Failed to publish individual state of capability.", logwrap.Datum("capability", capName), logwrap.Err(err))
		}
	}
}

func (i *Interface) publishDeviceCapabilityAggregated(ctx context.Context, topic string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err = i.publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	return nil
}

// publishDeviceRemoval clears the retained topics of a device that has left
// the gateway.
func (i *Interface) publishDeviceRemoval(ctx context.Context, device it600.Device) {
	topics := []string{fmt.Sprintf("devices/%s/availability", device.ID)}
	for _, capability := range exporter.CapabilityNames(device) {
		topics = append(topics, fmt.Sprintf("devices/%s/capabilities/%s", device.ID, capability))
	}

	for _, topic := range topics {
		if err := i.publish(ctx, topic, nil); err != nil {
			i.Logger.LogError(ctx, "Failed to clear topic of removed device.", logwrap.Datum("topic", topic), logwrap.Err(err))
		}
	}
}

func (i *Interface) publishGatewayStatus(ctx context.Context, event state.GatewayStatusUpdate) {
	topic := fmt.Sprintf("gateways/%s/status", event.GatewayName)

	if err := i.publish(ctx, topic, []byte(event.Status.String())); err != nil {
		i.Logger.LogError(ctx, "Failed to publish status of gateway.", logwrap.Datum("gateway", event.GatewayName), logwrap.Err(err))
	}
}

func (i *Interface) Start() {
	i.stop = make(chan bool, 1)

	go i.handleEvents(i.EventSubscriber.Subscribe())
}

func (i *Interface) Stop() {
	if i.stop != nil {
		i.stop <- true
	}
}

func (i *Interface) handleEvents(ch chan any) {
	defer i.EventSubscriber.Unsubscribe(ch)

	for {
		select {
		case event := <-ch:
			i.serviceUpdateOnEvent(event)
		case <-i.stop:
			return
		}
	}
}

const MaximumServiceUpdateTime = 1 * time.Second

func (i *Interface) serviceUpdateOnEvent(e any) {
	if !i.DeviceFilter.AdmitsEvent(e) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), MaximumServiceUpdateTime)
	defer cancel()

	switch event := e.(type) {
	case state.DeviceUpdate:
		i.publishDevice(ctx, state.GatewayDevice{GatewayName: event.GatewayName, Device: event.Device})
	case state.DeviceRemove:
		i.publishDeviceRemoval(ctx, event.Device)
	case state.GatewayStatusUpdate:
		i.publishGatewayStatus(ctx, event)
	}
}

func (i *Interface) publishDeviceCapabilityIndividual(ctx context.Context, topic string, result any) error {
	switch c := result.(type) {
	case *exporter.ProductInformation:
		return i.publishIndividualProductInformation(ctx, topic, c)
	case *exporter.Climate:
		return i.publishIndividualClimate(ctx, topic, c)
	case *exporter.OnOff:
		return i.publishIndividualBool(ctx, fmt.Sprintf("%s/State", topic), c.State)
	case *exporter.BinarySensor:
		return i.publishIndividualBool(ctx, fmt.Sprintf("%s/State", topic), c.State)
	case *exporter.Sensor:
		return i.publishIndividualSensor(ctx, topic, c)
	case *exporter.Cover:
		return i.publishIndividualBytes(ctx, fmt.Sprintf("%s/Position", topic), []byte(strconv.Itoa(c.Position)))
	}

	return nil
}

func (i *Interface) publishIndividualProductInformation(ctx context.Context, topic string, c *exporter.ProductInformation) error {
	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/Name", topic), fmtString(c.Name)); err != nil {
		return err
	}

	return i.publishIndividualBytes(ctx, fmt.Sprintf("%s/Manufacturer", topic), fmtString(c.Manufacturer))
}

func (i *Interface) publishIndividualClimate(ctx context.Context, topic string, c *exporter.Climate) error {
	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/CurrentTemperature", topic), fmtFloat(c.CurrentTemperature)); err != nil {
		return err
	}

	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/TargetTemperature", topic), fmtFloat(c.TargetTemperature)); err != nil {
		return err
	}

	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/Mode", topic), fmtString(c.Mode)); err != nil {
		return err
	}

	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/Action", topic), fmtString(c.Action)); err != nil {
		return err
	}

	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/Preset", topic), fmtString(c.Preset)); err != nil {
		return err
	}

	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/MinTemperature", topic), fmtFloat(c.MinTemperature)); err != nil {
		return err
	}

	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/MaxTemperature", topic), fmtFloat(c.MaxTemperature)); err != nil {
		return err
	}

	return i.publishIndividualBytes(ctx, fmt.Sprintf("%s/TemperatureStep", topic), fmtFloat(c.TemperatureStep))
}

func (i *Interface) publishIndividualSensor(ctx context.Context, topic string, c *exporter.Sensor) error {
	if err := i.publishIndividualBytes(ctx, fmt.Sprintf("%s/Value", topic), fmtFloat(c.Value)); err != nil {
		return err
	}

	return i.publishIndividualBytes(ctx, fmt.Sprintf("%s/Unit", topic), fmtString(c.Unit))
}

func (i *Interface) publishIndividualBool(ctx context.Context, topic string, value bool) error {
	return i.publishIndividualBytes(ctx, topic, []byte(strconv.FormatBool(value)))
}

func (i *Interface) publishIndividualBytes(ctx context.Context, topic string, payload []byte) error {
	if err := i.publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	return nil
}

func fmtString(s string) []byte {
	if len(s) == 0 {
		return []byte("null")
	}

	return []byte(s)
}

func fmtFloat(f float64) []byte {
	return []byte(strconv.FormatFloat(f, 'f', -1, 64))
}
