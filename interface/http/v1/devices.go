package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/salushome/controller/interface/converters/exporter"
	"github.com/salushome/controller/interface/converters/invoker"
	"github.com/salushome/controller/it600"
	"github.com/salushome/controller/layers"
	"github.com/salushome/controller/state"
)

const DefaultHttpOutputLayer string = "http"

type deviceExporter interface {
	ExportDevice(context.Context, state.GatewayDevice) exporter.ExportedDevice
	ExportSimpleDevice(context.Context, state.GatewayDevice) exporter.ExportedSimpleDevice
	ExportCapability(context.Context, it600.Device, string) any
}

type deviceController struct {
	gatewayMapper   state.GatewayMapper
	deviceExporter  deviceExporter
	deviceInvoker   invoker.Invoker
	deviceOrganiser *state.DeviceOrganiser
	stack           layers.OutputStack
}

func (d *deviceController) listDevices(w http.ResponseWriter, r *http.Request) {
	apiDevices := make(map[string]exporter.ExportedDevice)

	for _, device := range d.gatewayMapper.Devices() {
		ed := d.deviceExporter.ExportDevice(r.Context(), device)
		apiDevices[ed.Identifier] = ed
	}

	data, err := json.Marshal(apiDevices)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

func (d *deviceController) getDevice(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	device, found := d.gatewayMapper.Device(id)
	if !found {
		http.NotFound(w, r)
		return
	}

	apiDevice := d.deviceExporter.ExportDevice(r.Context(), device)
	data, err := json.Marshal(apiDevice)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

type updateDeviceRequest struct {
	Name *string
}

func (d *deviceController) updateDevice(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	request := updateDeviceRequest{}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	err = json.Unmarshal(data, &request)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if request.Name != nil {
		if err := d.deviceOrganiser.NameDevice(id, *request.Name); err != nil {
			if errors.Is(err, state.ErrNotFound) {
				http.NotFound(w, r)
			} else {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}

			return
		}
	}

	http.Error(w, http.StatusText(http.StatusNoContent), http.StatusNoContent)
}

func (d *deviceController) useDeviceCapabilityAction(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	capabilityName, ok := params["name"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	capabilityAction, ok := params["action"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	device, found := d.gatewayMapper.Device(id)
	if !found {
		http.NotFound(w, r)
		return
	}

	layer := r.URL.Query().Get("layer")
	if layer == "" {
		layer = DefaultHttpOutputLayer
	}

	retention := layers.OneShot
	if r.URL.Query().Get("retention") == "maintain" {
		retention = layers.Maintain
	}

	var body []byte
	var err error

	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if r.Body.Close() != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	if data, err := d.deviceInvoker(r.Context(), d.stack, layer, retention, device, capabilityName, capabilityAction, body); err != nil {
		writeActionError(w, r, err)
	} else {
		if jsonData, err := json.Marshal(data); err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		} else {
			w.WriteHeader(http.StatusOK)
			w.Write(jsonData)
		}
	}
}

// writeActionError maps invocation failures onto status codes, separating
// caller mistakes from gateway side failures.
func writeActionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, invoker.ActionNotSupported), errors.Is(err, invoker.CapabilityNotSupported), errors.Is(err, it600.ErrDeviceNotFound):
		http.NotFound(w, r)
	case errors.Is(err, invoker.ActionUserError), errors.Is(err, it600.ErrUnsupportedValue):
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	case errors.Is(err, it600.ErrConnection), errors.Is(err, it600.ErrAuthentication):
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Device action exceeded permitted time.", http.StatusGatewayTimeout)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
