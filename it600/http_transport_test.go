package it600

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func transportFor(s *httptest.Server) *HTTPTransport {
	return NewHTTPTransport(strings.TrimPrefix(s.URL, "http://"), "0011223344556677")
}

func TestHTTPTransport_ReadDevices(t *testing.T) {
	t.Run("decodes the gateway device table into raw attribute groups", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/deviceid/read", r.URL.Path)

			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"requestAttr":"readall","euid":"0011223344556677"}`, string(body))

			_, _ = w.Write([]byte(`{"status":"success","id":[
				{"data":{"UniID":"dev1","DeviceName":"Lounge","OnlineStatus_i":1},
				 "sBasicS":{"ModelIdentifier":"it600ThermHW"},
				 "sIT600TH":{"LocalTemperature_x100":2100,"HeatingSetpoint_x100":1950,"SystemMode":4,"RunningState":1,"HoldType":0,"MinHeatSetpoint_x100":500,"MaxHeatSetpoint_x100":3500}},
				{"data":{"UniID":"dev2","OnlineStatus_i":1},"sOnOffS":{"OnOff":1}},
				{"data":{"UniID":"dev3","OnlineStatus_i":0},"sIASZS":{"ErrorIASZSAlarmed1":1}},
				{"data":{"UniID":"dev4","OnlineStatus_i":1},"sTempS":{"MeasuredValue_x100":1840}},
				{"data":{"UniID":"dev5","OnlineStatus_i":1},"sRHS":{"MeasuredValue":42}},
				{"data":{"UniID":"dev6","OnlineStatus_i":1},"sLevelS":{"CurrentLevel":75}}
			]}`))
		}))
		defer s.Close()

		devices, err := transportFor(s).ReadDevices(context.Background())
		assert.NoError(t, err)
		assert.Len(t, devices, 6)

		th := devices[0]
		assert.Equal(t, "dev1", th.ID)
		assert.Equal(t, "Lounge", th.Name)
		assert.Equal(t, "it600ThermHW", th.Product)
		assert.True(t, th.Online)
		assert.Equal(t, 21.0, th.Thermostat.LocalTemperature)
		assert.Equal(t, 19.5, th.Thermostat.HeatingSetpoint)
		assert.Equal(t, ModeHeat, th.Thermostat.SystemMode)
		assert.Equal(t, ActionHeating, th.Thermostat.RunningState)
		assert.Equal(t, PresetFollowSchedule, th.Thermostat.HoldType)
		assert.Equal(t, 5.0, *th.Thermostat.MinSetpoint)
		assert.Equal(t, 35.0, *th.Thermostat.MaxSetpoint)

		assert.True(t, devices[1].OnOff.On)
		assert.False(t, devices[2].Online)
		assert.True(t, devices[2].AlarmZone.Alarmed)
		assert.Equal(t, 18.4, devices[3].Temperature.Value)
		assert.Equal(t, 42.0, devices[4].Humidity.Value)
		assert.Equal(t, 75, devices[5].Level.Level)
	})

	t.Run("an idle thermostat decodes by system mode", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success","id":[
				{"data":{"UniID":"idle","OnlineStatus_i":1},"sIT600TH":{"SystemMode":4,"RunningState":0}},
				{"data":{"UniID":"off","OnlineStatus_i":1},"sIT600TH":{"SystemMode":0,"RunningState":0}}
			]}`))
		}))
		defer s.Close()

		devices, err := transportFor(s).ReadDevices(context.Background())
		assert.NoError(t, err)

		assert.Equal(t, ActionIdle, devices[0].Thermostat.RunningState)
		assert.Equal(t, ActionOff, devices[1].Thermostat.RunningState)
		assert.Equal(t, ModeOff, devices[1].Thermostat.SystemMode)
	})

	t.Run("enumerations outside the known vocabulary decode as empty tokens", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success","id":[
				{"data":{"UniID":"dev1","OnlineStatus_i":1},"sIT600TH":{"SystemMode":9,"RunningState":0,"HoldType":5}}
			]}`))
		}))
		defer s.Close()

		devices, err := transportFor(s).ReadDevices(context.Background())
		assert.NoError(t, err)

		assert.Equal(t, "", devices[0].Thermostat.SystemMode)
		assert.Equal(t, "", devices[0].Thermostat.HoldType)
		assert.Equal(t, ActionIdle, devices[0].Thermostat.RunningState)
	})

	t.Run("a 401 from the gateway is an authentication error", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		}))
		defer s.Close()

		_, err := transportFor(s).ReadDevices(context.Background())
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("an unreachable gateway is a connection error", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		s.Close()

		_, err := transportFor(s).ReadDevices(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("a non success gateway status is a connection error", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"busy"}`))
		}))
		defer s.Close()

		_, err := transportFor(s).ReadDevices(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("a malformed response body is a connection error", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer s.Close()

		_, err := transportFor(s).ReadDevices(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
	})
}

func TestHTTPTransport_WriteDevice(t *testing.T) {
	t.Run("a setpoint write addresses the device and scales to hundredths", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/deviceid/write", r.URL.Path)

			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"requestAttr":"write","euid":"0011223344556677","id":[{"data":{"UniID":"dev1"},"sIT600TH":{"SetHeatingSetpoint_x100":1950}}]}`, string(body))

			_, _ = w.Write([]byte(`{"status":"success"}`))
		}))
		defer s.Close()

		err := transportFor(s).WriteDevice(context.Background(), "dev1", map[string]any{AttributeHeatingSetpoint: 19.5})
		assert.NoError(t, err)
	})

	t.Run("mode and hold writes encode their wire enumerations", func(t *testing.T) {
		var bodies []string

		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(body))

			_, _ = w.Write([]byte(`{"status":"success"}`))
		}))
		defer s.Close()

		tr := transportFor(s)

		assert.NoError(t, tr.WriteDevice(context.Background(), "dev1", map[string]any{AttributeSystemMode: ModeAuto}))
		assert.NoError(t, tr.WriteDevice(context.Background(), "dev1", map[string]any{AttributeHoldType: PresetPermanentHold}))

		assert.JSONEq(t, `{"requestAttr":"write","euid":"0011223344556677","id":[{"data":{"UniID":"dev1"},"sIT600TH":{"SetSystemMode":1}}]}`, bodies[0])
		assert.JSONEq(t, `{"requestAttr":"write","euid":"0011223344556677","id":[{"data":{"UniID":"dev1"},"sIT600TH":{"SetHoldType":2}}]}`, bodies[1])
	})

	t.Run("attributes outside the thermostat surface are rejected before any request", func(t *testing.T) {
		requests := 0

		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))
		defer s.Close()

		err := transportFor(s).WriteDevice(context.Background(), "dev1", map[string]any{"Fan": "high"})
		assert.ErrorIs(t, err, ErrUnsupportedValue)
		assert.Equal(t, 0, requests)
	})

	t.Run("a gateway rejection is a connection error", func(t *testing.T) {
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error"}`))
		}))
		defer s.Close()

		err := transportFor(s).WriteDevice(context.Background(), "dev1", map[string]any{AttributeHeatingSetpoint: 19.5})
		assert.ErrorIs(t, err, ErrConnection)
	})
}
