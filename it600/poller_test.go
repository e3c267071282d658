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

func testPoller(t *testing.T, mt *MockTransport, interval time.Duration) *Poller {
	c, err := New(Config{Host: "10.0.0.5", EUID: "0011223344556677", Timeout: time.Second}, mt, logwrap.New(discard.Discard()))
	assert.NoError(t, err)

	return NewPoller(c, PollerConfig{Interval: interval, Timeout: time.Second}, logwrap.New(discard.Discard()))
}

func nextEvent(t *testing.T, p *Poller) any {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e, err := p.ReadEvent(ctx)
	assert.NoError(t, err)

	return e
}

func TestPoller_Start(t *testing.T) {
	t.Run("a failed bootstrap is returned to the caller and nothing is emitted", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(ErrAuthentication).Once()
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		err := p.Start(context.Background())
		assert.ErrorIs(t, err, ErrAuthentication)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err = p.ReadEvent(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		assert.Empty(t, p.Snapshot())
	})

	t.Run("a first poll failure is also fatal to bootstrap", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return(nil, ErrConnection).Once()
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		err := p.Start(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
		assert.Empty(t, p.Snapshot())
	})

	t.Run("a successful bootstrap emits the initial population and a status transition", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("Close").Return(nil)
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		added, ok := nextEvent(t, p).(DeviceAdded)
		assert.True(t, ok)
		assert.Equal(t, "dev1", added.Device.ID)
		assert.Equal(t, ModeHeat, added.Device.Climate.Mode)

		status, ok := nextEvent(t, p).(StatusChanged)
		assert.True(t, ok)
		assert.Equal(t, StatusPolling, status.Status)
		assert.Equal(t, "", status.Reason)

		assert.Equal(t, StatusPolling, p.Status())
		assert.Equal(t, "10.0.0.5", p.Host())
		assert.Len(t, p.Devices(KindClimate), 1)
	})
}

func TestPoller_Polling(t *testing.T) {
	t.Run("polls on the configured interval and emits table changes", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.5, 19.5),
		}, nil)
		mt.On("Close").Return(nil)

		p := testPoller(t, mt, 50*time.Millisecond)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		nextEvent(t, p) // initial DeviceAdded
		nextEvent(t, p) // initial StatusChanged

		updated, ok := nextEvent(t, p).(DeviceUpdated)
		assert.True(t, ok)
		assert.Equal(t, 21.5, updated.Device.Climate.CurrentTemperature)
	})

	t.Run("a refresh polls out of band", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 20.0),
		}, nil).Once()
		mt.On("Close").Return(nil)
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		nextEvent(t, p)
		nextEvent(t, p)

		p.Refresh()

		updated, ok := nextEvent(t, p).(DeviceUpdated)
		assert.True(t, ok)
		assert.Equal(t, 20.0, updated.Device.Climate.TargetTemperature)
	})

	t.Run("a device that stops being reported is removed", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{}, nil).Once()
		mt.On("Close").Return(nil)
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		nextEvent(t, p)
		nextEvent(t, p)

		p.Refresh()

		removed, ok := nextEvent(t, p).(DeviceRemoved)
		assert.True(t, ok)
		assert.Equal(t, "dev1", removed.Device.ID)
	})

	t.Run("a transient failure keeps the last table and marks the gateway unreachable", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("ReadDevices", mock.Anything).Return(nil, ErrConnection).Once()
		mt.On("Close").Return(nil)
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		nextEvent(t, p)
		nextEvent(t, p)

		p.Refresh()

		status, ok := nextEvent(t, p).(StatusChanged)
		assert.True(t, ok)
		assert.Equal(t, StatusUnreachable, status.Status)
		assert.NotEmpty(t, status.Reason)

		d, found := p.Device("dev1")
		assert.True(t, found)
		assert.Equal(t, 21.0, d.Climate.CurrentTemperature)
		assert.Equal(t, int64(1), p.PollFailures())
	})

	t.Run("a poll after recovery emits a status transition back to polling", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("ReadDevices", mock.Anything).Return(nil, ErrConnection).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("Close").Return(nil)
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		nextEvent(t, p)
		nextEvent(t, p)

		p.Refresh()

		status := nextEvent(t, p).(StatusChanged)
		assert.Equal(t, StatusUnreachable, status.Status)

		p.Refresh()

		status = nextEvent(t, p).(StatusChanged)
		assert.Equal(t, StatusPolling, status.Status)
		assert.Equal(t, "", status.Reason)
	})

	t.Run("an authentication failure stops the schedule", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("ReadDevices", mock.Anything).Return(nil, ErrAuthentication).Once()
		mt.On("Close").Return(nil)
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		nextEvent(t, p)
		nextEvent(t, p)

		p.Refresh()

		status, ok := nextEvent(t, p).(StatusChanged)
		assert.True(t, ok)
		assert.Equal(t, StatusAuthFailed, status.Status)

		// The loop has exited, further refreshes must not reach the gateway.
		p.Refresh()
		time.Sleep(50 * time.Millisecond)

		d, found := p.Device("dev1")
		assert.True(t, found)
		assert.Equal(t, 19.5, d.Climate.TargetTemperature)
	})
}

func TestPoller_Commands(t *testing.T) {
	t.Run("a successful command polls out of band", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("WriteDevice", mock.Anything, "dev1", map[string]any{AttributeHeatingSetpoint: 20.0}).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 20.0),
		}, nil).Once()
		mt.On("Close").Return(nil)
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		nextEvent(t, p)
		nextEvent(t, p)

		assert.NoError(t, p.SetTemperature(context.Background(), "dev1", 20.0))

		updated, ok := nextEvent(t, p).(DeviceUpdated)
		assert.True(t, ok)
		assert.Equal(t, 20.0, updated.Device.Climate.TargetTemperature)
	})

	t.Run("a locally rejected command does not poll or touch the network", func(t *testing.T) {
		mt := &MockTransport{}
		mt.On("Open", mock.Anything).Return(nil).Once()
		mt.On("ReadDevices", mock.Anything).Return([]RawDevice{
			rawClimate("dev1", "Lounge", 21.0, 19.5),
		}, nil).Once()
		mt.On("Close").Return(nil)
		defer mt.AssertExpectations(t)

		p := testPoller(t, mt, time.Hour)

		assert.NoError(t, p.Start(context.Background()))
		defer p.Stop()

		nextEvent(t, p)
		nextEvent(t, p)

		assert.ErrorIs(t, p.SetTemperature(context.Background(), "missing", 20.0), ErrDeviceNotFound)
		assert.ErrorIs(t, p.SetMode(context.Background(), "dev1", "cool"), ErrUnsupportedValue)

		time.Sleep(50 * time.Millisecond)
	})
}
