package it600

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shimmeringbee/logwrap"
)

const DefaultOperationTimeout = 30 * time.Second

type Config struct {
	// Host is the address of the gateway on the local network, with an
	// optional port.
	Host string
	// EUID is the gateway's pairing identifier. Empty selects DefaultEUID,
	// anything else must be 16 hexadecimal characters.
	EUID string
	// Timeout bounds each network operation against the gateway.
	Timeout time.Duration
}

// Client owns the session with one gateway. Network operations are
// serialized, a poll and a command never overlap. The device table is only
// ever replaced wholesale by a successful poll, so a table handed out by
// Snapshot is immutable and remains coherent during gateway outages.
type Client struct {
	cfg       Config
	transport Transport
	logger    logwrap.Logger

	opLock sync.Mutex

	stateLock sync.RWMutex
	status    Status
	devices   map[string]Device
	lastPoll  time.Time
}

var _ Gateway = (*Client)(nil)

func New(cfg Config, t Transport, l logwrap.Logger) (*Client, error) {
	if cfg.EUID == "" {
		cfg.EUID = DefaultEUID
	}

	if !ValidEUID(cfg.EUID) {
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidEUID, cfg.EUID)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOperationTimeout
	}

	return &Client{
		cfg:       cfg,
		transport: t,
		logger:    l,
		devices:   map[string]Device{},
	}, nil
}

// Connect opens the session and performs an authenticated probe read. The
// probe result is discarded, the device table only changes on PollStatus.
func (c *Client) Connect(ctx context.Context) error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	c.setStatus(StatusConnecting)
	c.logger.LogInfo(ctx, "Connecting to gateway.", logwrap.Datum("host", c.cfg.Host))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.transport.Open(ctx); err != nil {
		return c.absorbFailure(ctx, fmt.Errorf("open session: %w", err))
	}

	c.setStatus(StatusConnected)
	return nil
}

// PollStatus reads the full device table from the gateway. On success the
// served table is replaced, on failure it is left untouched.
func (c *Client) PollStatus(ctx context.Context) error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, err := c.transport.ReadDevices(ctx)
	if err != nil {
		return c.absorbFailure(ctx, fmt.Errorf("read devices: %w", err))
	}

	c.stateLock.Lock()
	c.devices = normalize(raw)
	c.lastPoll = time.Now()
	c.status = StatusPolling
	c.stateLock.Unlock()

	return nil
}

// Close releases the session. It is safe to call more than once, and the
// last polled device table remains readable afterwards.
func (c *Client) Close() error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	err := c.transport.Close()
	c.setStatus(StatusDisconnected)

	return err
}

// Snapshot returns the device table from the last successful poll, keyed by
// device identifier. The returned map must be treated as read only.
func (c *Client) Snapshot() map[string]Device {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	return c.devices
}

func (c *Client) AllDevices() []Device {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	var devices []Device

	for _, d := range c.devices {
		devices = append(devices, d)
	}

	sortDevices(devices)
	return devices
}

func (c *Client) Devices(kind DeviceKind) []Device {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	var devices []Device

	for _, d := range c.devices {
		if d.Kind == kind {
			devices = append(devices, d)
		}
	}

	sortDevices(devices)
	return devices
}

func (c *Client) Device(id string) (Device, bool) {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	d, found := c.devices[id]
	return d, found
}

func (c *Client) Status() Status {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	return c.status
}

func (c *Client) Host() string {
	return c.cfg.Host
}

func (c *Client) LastPoll() time.Time {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	return c.lastPoll
}

// SetTemperature moves a climate device's heating setpoint, rounded to the
// gateway's half degree granularity. The device and the value are checked
// against the last polled table before anything is sent to the gateway.
func (c *Client) SetTemperature(ctx context.Context, id string, temperature float64) error {
	device, err := c.climateDevice(id)
	if err != nil {
		return err
	}

	target := math.Round(temperature/TemperatureStep) * TemperatureStep

	if target < device.Climate.MinTemperature || target > device.Climate.MaxTemperature {
		return fmt.Errorf("%w: temperature %.1f outside range %.1f to %.1f", ErrUnsupportedValue,
			temperature, device.Climate.MinTemperature, device.Climate.MaxTemperature)
	}

	return c.write(ctx, id, map[string]any{AttributeHeatingSetpoint: target})
}

func (c *Client) SetMode(ctx context.Context, id string, mode string) error {
	if _, err := c.climateDevice(id); err != nil {
		return err
	}

	switch mode {
	case ModeHeat, ModeOff, ModeAuto:
	default:
		return fmt.Errorf("%w: mode '%s'", ErrUnsupportedValue, mode)
	}

	return c.write(ctx, id, map[string]any{AttributeSystemMode: mode})
}

func (c *Client) SetPreset(ctx context.Context, id string, preset string) error {
	if _, err := c.climateDevice(id); err != nil {
		return err
	}

	switch preset {
	case PresetFollowSchedule, PresetPermanentHold, PresetOff:
	default:
		return fmt.Errorf("%w: preset '%s'", ErrUnsupportedValue, preset)
	}

	return c.write(ctx, id, map[string]any{AttributeHoldType: preset})
}

func (c *Client) climateDevice(id string) (Device, error) {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()

	device, found := c.devices[id]
	if !found {
		return Device{}, fmt.Errorf("%w: '%s'", ErrDeviceNotFound, id)
	}

	if device.Climate == nil {
		return Device{}, fmt.Errorf("%w: device '%s' has no climate control", ErrUnsupportedValue, id)
	}

	return device, nil
}

func (c *Client) write(ctx context.Context, id string, values map[string]any) error {
	c.opLock.Lock()
	defer c.opLock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.transport.WriteDevice(ctx, id, values); err != nil {
		return c.absorbFailure(ctx, fmt.Errorf("write device '%s': %w", id, err))
	}

	return nil
}

func (c *Client) setStatus(s Status) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.status = s
}

// absorbFailure folds a transport failure into the connection state and
// normalises anything that is not already part of the error taxonomy into
// ErrConnection.
func (c *Client) absorbFailure(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrAuthentication):
		c.setStatus(StatusAuthFailed)
		c.logger.LogError(ctx, "Gateway rejected authentication.", logwrap.Datum("host", c.cfg.Host), logwrap.Err(err))
	case errors.Is(err, ErrConnection):
		c.setStatus(StatusUnreachable)
	default:
		c.setStatus(StatusUnreachable)
		err = fmt.Errorf("%w: %s", ErrConnection, err)
	}

	return err
}

func normalize(raw []RawDevice) map[string]Device {
	devices := make(map[string]Device, len(raw))

	for _, rd := range raw {
		if d, ok := normalizeDevice(rd); ok {
			devices[d.ID] = d
		}
	}

	return devices
}

func normalizeDevice(rd RawDevice) (Device, bool) {
	d := Device{
		ID:        rd.ID,
		Name:      rd.Name,
		Product:   rd.Product,
		Available: rd.Online,
	}

	if d.ID == "" {
		return Device{}, false
	}

	if d.Name == "" {
		d.Name = rd.ID
	}

	switch {
	case rd.Thermostat != nil:
		d.Kind = KindClimate
		d.Climate = normalizeClimate(*rd.Thermostat)
	case rd.OnOff != nil:
		d.Kind = KindSwitch
		d.Switch = &SwitchState{On: rd.OnOff.On}
	case rd.AlarmZone != nil:
		d.Kind = KindBinarySensor
		d.BinarySensor = &BinarySensorState{On: rd.AlarmZone.Alarmed}
	case rd.Temperature != nil:
		d.Kind = KindSensor
		d.Sensor = &SensorState{Value: rd.Temperature.Value, Unit: "°C"}
	case rd.Humidity != nil:
		d.Kind = KindSensor
		d.Sensor = &SensorState{Value: rd.Humidity.Value, Unit: "%"}
	case rd.Level != nil:
		d.Kind = KindCover
		d.Cover = &CoverState{Position: rd.Level.Level}
	default:
		return Device{}, false
	}

	return d, true
}

func normalizeClimate(rt RawThermostat) *ClimateState {
	c := &ClimateState{
		CurrentTemperature: rt.LocalTemperature,
		TargetTemperature:  rt.HeatingSetpoint,
		Mode:               rt.SystemMode,
		Action:             rt.RunningState,
		Preset:             rt.HoldType,
		MinTemperature:     DefaultMinTemperature,
		MaxTemperature:     DefaultMaxTemperature,
		TemperatureStep:    TemperatureStep,
	}

	if rt.MinSetpoint != nil {
		c.MinTemperature = *rt.MinSetpoint
	}

	if rt.MaxSetpoint != nil {
		c.MaxTemperature = *rt.MaxSetpoint
	}

	return c
}

func sortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})
}
