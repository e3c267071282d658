package v1

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/salushome/controller/interface/converters/exporter"
	"github.com/salushome/controller/state"
)

type gatewayConverter func(string, state.Gateway) exporter.ExportedGateway

type gatewayController struct {
	gatewayMapper    state.GatewayMapper
	gatewayConverter gatewayConverter
	deviceConverter  deviceExporter
}

func (g *gatewayController) listGateways(w http.ResponseWriter, r *http.Request) {
	apiGateways := make(map[string]exporter.ExportedGateway)

	for name, gw := range g.gatewayMapper.Gateways() {
		apiGateways[name] = g.gatewayConverter(name, gw)
	}

	data, err := json.Marshal(apiGateways)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

func (g *gatewayController) getGateway(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	gw, ok := g.gatewayMapper.Gateway(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := json.Marshal(g.gatewayConverter(id, gw))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

func (g *gatewayController) listDevicesOnGateway(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	id, ok := params["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	gw, ok := g.gatewayMapper.Gateway(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	apiDevices := make(map[string]exporter.ExportedDevice)

	for _, device := range gw.AllDevices() {
		ed := g.deviceConverter.ExportDevice(r.Context(), state.GatewayDevice{GatewayName: id, Gateway: gw, Device: device})
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
