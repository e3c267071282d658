package it600

import (
	"context"
	"testing"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testClient(t *testing.T, cfg Config, transport Transport) *Client {
	c, err := New(cfg, transport, logwrap.New(discard.Discard()))
	assert.NoError(t, err)

	return c
}

func rawClimate(id string, name string, current float64, target float64) RawDevice {
	return RawDevice{
		ID:     id,
		Name:   name,
		Online: true,
		Thermostat: &RawThermostat{
			LocalTemperature: current,
			HeatingSetpoint:  target,
			SystemMode:       ModeHeat,
			RunningState:     ActionHeating,
			HoldType:         PresetFollowSchedule,
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("an empty EUID selects the unpaired default", func(t *testing.T) {
		c := testClient(t, Config{Host: "10.0.0.5"}, &MockTransport{})
		assert.Equal(t, DefaultEUID, c.cfg.EUID)
	})

	t.Run("a malformed EUID is rejected at construction", func(t *testing.T) {
		_, err := New(Config{Host: "10.0.0.5", EUID: "not-an-euid"}, &MockTransport{}, logwrap.New(discard.Discard()))
		assert.ErrorIs(t, err, ErrInvalidEUID)
	})
}

func TestClient_Connect(t *testing.T) {
	t.Run("a successful probe marks the gateway connected", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil)
		defer mt.AssertExpectations(t)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)

		assert.NoError(t, c.Connect(context.Background()))
		assert.Equal(t, StatusConnected, c.Status())
	})

	t.Run("a rejected EUID surfaces an authentication error and a terminal status", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(ErrAuthentication)
		defer mt.AssertExpectations(t)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)

		err := c.Connect(context.Background())
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.Equal(t, StatusAuthFailed, c.Status())
	})

	t.Run("an unreachable gateway surfaces a connection error", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(ErrConnection)
		defer mt.AssertExpectations(t)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)

		err := c.Connect(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
		assert.Equal(t, StatusUnreachable, c.Status())
	})
}

func TestClient_PollStatus(t *testing.T) {
	t.Run("a successful poll serves the gateway's device table", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil)
		defer mt.AssertExpectations(t)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)

		assert.NoError(t, c.PollStatus(context.Background()))
		assert.Equal(t, StatusPolling, c.Status())
		assert.False(t, c.LastPoll().IsZero())

		d, found := c.Device("dev1")
		assert.True(t, found)
		assert.True(t, d.Available)
		assert.Equal(t, "Lounge", d.Name)
		assert.Equal(t, KindClimate, d.Kind)
		assert.Equal(t, 21.0, d.Climate.CurrentTemperature)
		assert.Equal(t, 19.5, d.Climate.TargetTemperature)
		assert.Equal(t, ModeHeat, d.Climate.Mode)
		assert.Equal(t, ActionHeating, d.Climate.Action)
		assert.Equal(t, PresetFollowSchedule, d.Climate.Preset)
	})

	t.Run("setpoint bounds default when the gateway does not report them", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)
		assert.NoError(t, c.PollStatus(context.Background()))

		d, _ := c.Device("dev1")
		assert.Equal(t, 5.0, d.Climate.MinTemperature)
		assert.Equal(t, 35.0, d.Climate.MaxTemperature)
		assert.Equal(t, 0.5, d.Climate.TemperatureStep)
	})

	t.Run("gateway reported setpoint bounds are preferred over defaults", func(t *testing.T) {
		min, max := 7.0, 30.0

		raw := rawClimate("dev1", "Lounge", 21.0, 19.5)
		raw.Thermostat.MinSetpoint = &min
		raw.Thermostat.MaxSetpoint = &max

		mt := &MockTransport{}
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{raw}, nil)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)
		assert.NoError(t, c.PollStatus(context.Background()))

		d, _ := c.Device("dev1")
		assert.Equal(t, 7.0, d.Climate.MinTemperature)
		assert.Equal(t, 30.0, d.Climate.MaxTemperature)
	})

	t.Run("every reported capability group maps to its device kind", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
			{ID: "dev2", Online: true, OnOff: &RawOnOff{On: true}},
			{ID: "dev3", Online: true, AlarmZone: &RawAlarmZone{Alarmed: true}},
			{ID: "dev4", Online: true, Temperature: &RawTemperature{Value: 18.4}},
			{ID: "dev5", Online: true, Humidity: &RawHumidity{Value: 42}},
			{ID: "dev6", Online: true, Level: &RawLevel{Level: 75}},
			{ID: "dev7", Online: true},
		}, nil)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)
		assert.NoError(t, c.PollStatus(context.Background()))

		assert.Len(t, c.AllDevices(), 6)

		d, _ := c.Device("dev2")
		assert.Equal(t, KindSwitch, d.Kind)
		assert.True(t, d.Switch.On)
		assert.Equal(t, "dev2", d.Name)

		d, _ = c.Device("dev3")
		assert.Equal(t, KindBinarySensor, d.Kind)
		assert.True(t, d.BinarySensor.On)

		d, _ = c.Device("dev4")
		assert.Equal(t, KindSensor, d.Kind)
		assert.Equal(t, 18.4, d.Sensor.Value)
		assert.Equal(t, "°C", d.Sensor.Unit)

		d, _ = c.Device("dev5")
		assert.Equal(t, KindSensor, d.Kind)
		assert.Equal(t, "%", d.Sensor.Unit)

		d, _ = c.Device("dev6")
		assert.Equal(t, KindCover, d.Kind)
		assert.Equal(t, 75, d.Cover.Position)

		// dev7 reported no capability group and is not served.
		_, found := c.Device("dev7")
		assert.False(t, found)

		climates := c.Devices(KindClimate)
		assert.Len(t, climates, 1)
		assert.Equal(t, "dev1", climates[0].ID)

		sensors := c.Devices(KindSensor)
		assert.Len(t, sensors, 2)
		assert.Equal(t, "dev4", sensors[0].ID)
		assert.Equal(t, "dev5", sensors[1].ID)
	})

	t.Run("a failed poll leaves the previous device table being served", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("ReadDevices", mock.Anything).Return(nil, ErrConnection).Once()
		defer mt.AssertExpectations(t)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)

		assert.NoError(t, c.PollStatus(context.Background()))
		before := c.Snapshot()

		err := c.PollStatus(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
		assert.Equal(t, StatusUnreachable, c.Status())

		assert.Equal(t, before, c.Snapshot())

		d, found := c.Device("dev1")
		assert.True(t, found)
		assert.Equal(t, 21.0, d.Climate.CurrentTemperature)
	})

	t.Run("a poll that exceeds the operation timeout is a connection failure", func(t *testing.T) {
		ft := &flakyTransport{}

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677", Timeout: 50 * time.Millisecond}, ft)

		assert.NoError(t, c.PollStatus(context.Background()))

		err := c.PollStatus(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
		assert.Equal(t, StatusUnreachable, c.Status())

		_, found := c.Device("dev1")
		assert.True(t, found)
	})
}

// flakyTransport serves one good read and then hangs until the context
// expires.
type flakyTransport struct {
	calls int
}

func (f *flakyTransport) Open(ctx context.Context) error {
	return nil
}

func (f *flakyTransport) ReadDevices(ctx context.Context) ([]RawDevice, error) {
	f.calls++

	if f.calls == 1 {
		return []RawDevice{rawClimate("dev1", "Lounge", 21.0, 19.5)}, nil
	}

	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *flakyTransport) WriteDevice(ctx context.Context, id string, values map[string]any) error {
	return nil
}

func (f *flakyTransport) Close() error {
	return nil
}

func TestClient_Commands(t *testing.T) {
	polledClient := func(t *testing.T, mt *MockTransport) *Client {
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
			{ID: "dev2", Online: true, OnOff: &RawOnOff{On: true}},
		}, nil).Once()

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)
		assert.NoError(t, c.PollStatus(context.Background()))

		return c
	}

	t.Run("a setpoint change is written rounded to the half degree", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)

		mt.On("WriteDevice", mock.Anything, "dev1", map[string]any{AttributeHeatingSetpoint: 19.5}).Return(nil).Once()
		defer mt.AssertExpectations(t)

		assert.NoError(t, c.SetTemperature(context.Background(), "dev1", 19.3))
	})

	t.Run("an unknown device is rejected without touching the network", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)
		defer mt.AssertExpectations(t)

		err := c.SetTemperature(context.Background(), "missing", 19.5)
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("a setpoint outside the device bounds is rejected without touching the network", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)
		defer mt.AssertExpectations(t)

		assert.ErrorIs(t, c.SetTemperature(context.Background(), "dev1", 4.5), ErrUnsupportedValue)
		assert.ErrorIs(t, c.SetTemperature(context.Background(), "dev1", 36.0), ErrUnsupportedValue)
	})

	t.Run("a device without climate control rejects climate commands", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)
		defer mt.AssertExpectations(t)

		assert.ErrorIs(t, c.SetTemperature(context.Background(), "dev2", 19.5), ErrUnsupportedValue)
		assert.ErrorIs(t, c.SetMode(context.Background(), "dev2", ModeHeat), ErrUnsupportedValue)
	})

	t.Run("a mode outside the vocabulary is rejected without touching the network", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)
		defer mt.AssertExpectations(t)

		assert.ErrorIs(t, c.SetMode(context.Background(), "dev1", "cool"), ErrUnsupportedValue)
	})

	t.Run("a valid mode is written to the gateway", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)

		mt.On("WriteDevice", mock.Anything, "dev1", map[string]any{AttributeSystemMode: ModeAuto}).Return(nil).Once()
		defer mt.AssertExpectations(t)

		assert.NoError(t, c.SetMode(context.Background(), "dev1", ModeAuto))
	})

	t.Run("a preset outside the vocabulary is rejected without touching the network", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)
		defer mt.AssertExpectations(t)

		assert.ErrorIs(t, c.SetPreset(context.Background(), "dev1", "Permanent Hold"), ErrUnsupportedValue)
	})

	t.Run("a valid preset is written to the gateway", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)

		mt.On("WriteDevice", mock.Anything, "dev1", map[string]any{AttributeHoldType: PresetPermanentHold}).Return(nil).Once()
		defer mt.AssertExpectations(t)

		assert.NoError(t, c.SetPreset(context.Background(), "dev1", PresetPermanentHold))
	})

	t.Run("a write failure surfaces a connection error and marks the gateway unreachable", func(t *testing.T) {
		mt := &MockTransport{}
		c := polledClient(t, mt)

		mt.On("WriteDevice", mock.Anything, "dev1", mock.Anything).Return(ErrConnection).Once()
		defer mt.AssertExpectations(t)

		assert.ErrorIs(t, c.SetTemperature(context.Background(), "dev1", 19.5), ErrConnection)
		assert.Equal(t, StatusUnreachable, c.Status())
	})
}

func TestClient_Close(t *testing.T) {
	t.Run("closing releases the session and keeps the last table readable", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("Close").Return(nil).Twice()
		defer mt.AssertExpectations(t)

		c := testClient(t, Config{Host: "10.0.0.5", EUID: "0011223344556677"}, mt)
		assert.NoError(t, c.PollStatus(context.Background()))

		assert.NoError(t, c.Close())
		assert.Equal(t, StatusDisconnected, c.Status())

		_, found := c.Device("dev1")
		assert.True(t, found)

		assert.NoError(t, c.Close())
	})
}
