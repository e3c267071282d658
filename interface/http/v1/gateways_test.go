package v1

import (
	"encoding/json"
	"github.com/gorilla/mux"
	"github.com/salushome/controller/interface/converters/exporter"
	"github.com/salushome/controller/it600"
	"github.com/salushome/controller/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"net/http"
	"net/http/httptest"
	"testing"
)

type MockGatewayConverter struct {
	mock.Mock
}

func (m *MockGatewayConverter) ConvertGateway(name string, gw state.Gateway) exporter.ExportedGateway {
	args := m.Called(name, gw)
	return args.Get(0).(exporter.ExportedGateway)
}

func Test_gatewayController_listGateways(t *testing.T) {
	t.Run("returns a list of gateways", func(t *testing.T) {
		mgm := state.MockGatewayMapper{}
		defer mgm.AssertExpectations(t)

		mgwOne := state.MockGateway{}
		defer mgwOne.AssertExpectations(t)

		mgwTwo := state.MockGateway{}
		defer mgwTwo.AssertExpectations(t)

		mgm.On("Gateways").Return(map[string]state.Gateway{
			"one": &mgwOne,
			"two": &mgwTwo,
		})

		mdc := MockGatewayConverter{}
		defer mdc.AssertExpectations(t)
		mdc.On("ConvertGateway", "one", &mgwOne).Return(exporter.ExportedGateway{
			Identifier: "one",
			Host:       "192.168.1.10",
			Status:     "Connected",
			Devices:    2,
		})
		mdc.On("ConvertGateway", "two", &mgwTwo).Return(exporter.ExportedGateway{
			Identifier: "two",
			Host:       "192.168.1.11",
			Status:     "Unreachable",
		})

		controller := gatewayController{gatewayMapper: &mgm, gatewayConverter: mdc.ConvertGateway}

		expectedGateways := map[string]exporter.ExportedGateway{
			"one": {
				Identifier: "one",
				Host:       "192.168.1.10",
				Status:     "Connected",
				Devices:    2,
			},
			"two": {
				Identifier: "two",
				Host:       "192.168.1.11",
				Status:     "Unreachable",
			},
		}

		req, err := http.NewRequest("GET", "/gateways", nil)
		if err != nil {
			t.Fatal(err)
		}

		rr := httptest.NewRecorder()

		router := mux.NewRouter()
		router.HandleFunc("/gateways", controller.listGateways)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		actualData := []byte(rr.Body.String())
		actualGateways := map[string]exporter.ExportedGateway{}

		err = json.Unmarshal(actualData, &actualGateways)
		assert.NoError(t, err)

		assert.Equal(t, expectedGateways, actualGateways)
	})
}

func Test_gatewayController_getGateway(t *testing.T) {
	t.Run("returns a 404 if gateway is not present", func(t *testing.T) {
		mgm := state.MockGatewayMapper{}
		defer mgm.AssertExpectations(t)

		mgm.On("Gateway", "one").Return(nil, false)

		controller := gatewayController{gatewayMapper: &mgm}

		req, err := http.NewRequest("GET", "/gateways/one", nil)
		if err != nil {
			t.Fatal(err)
		}

		rr := httptest.NewRecorder()

		router := mux.NewRouter()
		router.HandleFunc("/gateways/{identifier}", controller.getGateway)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("returns a gateway if present", func(t *testing.T) {
		mgm := state.MockGatewayMapper{}
		defer mgm.AssertExpectations(t)

		mgwOne := state.MockGateway{}
		defer mgwOne.AssertExpectations(t)

		mgm.On("Gateway", "one").Return(&mgwOne, true)

		mdc := MockGatewayConverter{}
		defer mdc.AssertExpectations(t)
		mdc.On("ConvertGateway", "one", &mgwOne).Return(exporter.ExportedGateway{
			Identifier: "one",
			Host:       "192.168.1.10",
			Status:     "Connected",
		})

		controller := gatewayController{gatewayMapper: &mgm, gatewayConverter: mdc.ConvertGateway}

		expectedGateway := exporter.ExportedGateway{
			Identifier: "one",
			Host:       "192.168.1.10",
			Status:     "Connected",
		}

		req, err := http.NewRequest("GET", "/gateways/one", nil)
		if err != nil {
			t.Fatal(err)
		}

		rr := httptest.NewRecorder()

		router := mux.NewRouter()
		router.HandleFunc("/gateways/{identifier}", controller.getGateway)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		actualData := []byte(rr.Body.String())
		actualGateway := exporter.ExportedGateway{}

		err = json.Unmarshal(actualData, &actualGateway)
		assert.NoError(t, err)

		assert.Equal(t, expectedGateway, actualGateway)
	})
}

func Test_gatewayController_listDevicesOnGateway(t *testing.T) {
	t.Run("returns 404, not found when gateway does not exist", func(t *testing.T) {
		mgm := state.MockGatewayMapper{}
		defer mgm.AssertExpectations(t)
		mgm.On("Gateway", "non-existent").Return(nil, false)

		controller := gatewayController{gatewayMapper: &mgm}

		req, err := http.NewRequest("GET", "/gateways/non-existent/devices", nil)
		if err != nil {
			t.Fatal(err)
		}

		rr := httptest.NewRecorder()

		router := mux.NewRouter()
		router.HandleFunc("/gateways/{identifier}/devices", controller.listDevicesOnGateway)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("returns list of devices found on gateway", func(t *testing.T) {
		mgm := state.MockGatewayMapper{}
		defer mgm.AssertExpectations(t)

		mgwOne := state.MockGateway{}
		defer mgwOne.AssertExpectations(t)

		mgm.On("Gateway", "one").Return(&mgwOne, true)

		deviceOne := it600.Device{ID: "one-one", Kind: it600.KindClimate}

		mgwOne.On("AllDevices").Return([]it600.Device{deviceOne})

		expectedDeviceOne := exporter.ExportedDevice{
			Identifier:   "one-one",
			Capabilities: map[string]any{"capOne": struct{}{}},
			Gateway:      "one",
		}

		mdc := exporter.MockDeviceExporter{}
		defer mdc.AssertExpectations(t)
		mdc.On("ExportDevice", mock.Anything, state.GatewayDevice{GatewayName: "one", Gateway: &mgwOne, Device: deviceOne}).Return(expectedDeviceOne)

		controller := gatewayController{gatewayMapper: &mgm, deviceConverter: &mdc}

		expectedDevices := map[string]exporter.ExportedDevice{
			"one-one": {
				Identifier:   "one-one",
				Capabilities: map[string]any{"capOne": map[string]any{}},
				Gateway:      "one",
			},
		}

		req, err := http.NewRequest("GET", "/gateways/one/devices", nil)
		if err != nil {
			t.Fatal(err)
		}

		rr := httptest.NewRecorder()

		router := mux.NewRouter()
		router.HandleFunc("/gateways/{identifier}/devices", controller.listDevicesOnGateway)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		actualData := []byte(rr.Body.String())
		actualDevices := map[string]exporter.ExportedDevice{}

		err = json.Unmarshal(actualData, &actualDevices)
		assert.NoError(t, err)

		assert.Equal(t, expectedDevices, actualDevices)
	})
}
