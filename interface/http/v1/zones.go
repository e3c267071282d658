package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/salushome/controller/interface/converters/exporter"
	"github.com/salushome/controller/state"
)

type ExportedZone struct {
	Identifier int
	Name       string
	SubZones   []ExportedZone            `json:",omitempty"`
	Devices    []exporter.ExportedDevice `json:",omitempty"`
}

type zoneController struct {
	gatewayMapper   state.GatewayMapper
	deviceConverter deviceExporter
	deviceOrganiser *state.DeviceOrganiser
}

type zoneIncludes struct {
	devices  bool
	subzones bool
}

func parseZoneIncludes(r *http.Request) zoneIncludes {
	inc := zoneIncludes{}

	for _, part := range strings.Split(r.URL.Query().Get("include"), ",") {
		switch part {
		case "devices":
			inc.devices = true
		case "subzones":
			inc.subzones = true
		}
	}

	return inc
}

func (z *zoneController) exportZone(r *http.Request, zone state.Zone, inc zoneIncludes) ExportedZone {
	ez := ExportedZone{
		Identifier: zone.Identifier,
		Name:       zone.Name,
	}

	if inc.devices {
		for _, deviceId := range zone.Devices {
			if device, found := z.gatewayMapper.Device(deviceId); found {
				ez.Devices = append(ez.Devices, z.deviceConverter.ExportDevice(r.Context(), device))
			}
		}
	}

	if inc.subzones {
		for _, subId := range zone.SubZones {
			if sub, found := z.deviceOrganiser.Zone(subId); found {
				ez.SubZones = append(ez.SubZones, z.exportZone(r, sub, inc))
			}
		}
	}

	return ez
}

func (z *zoneController) listZones(w http.ResponseWriter, r *http.Request) {
	inc := parseZoneIncludes(r)

	zones := []ExportedZone{}

	for _, zone := range z.deviceOrganiser.RootZones() {
		zones = append(zones, z.exportZone(r, zone, inc))
	}

	data, err := json.Marshal(zones)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

func (z *zoneController) getZone(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneIdentifier(w, r)
	if !ok {
		return
	}

	zone, found := z.deviceOrganiser.Zone(id)
	if !found {
		http.NotFound(w, r)
		return
	}

	data, err := json.Marshal(z.exportZone(r, zone, parseZoneIncludes(r)))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

type createZoneRequest struct {
	Name string
}

func (z *zoneController) createZone(w http.ResponseWriter, r *http.Request) {
	request := createZoneRequest{}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := json.Unmarshal(data, &request); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	zone := z.deviceOrganiser.NewZone(request.Name)

	payload, err := json.Marshal(z.exportZone(r, zone, zoneIncludes{}))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(payload)
}

func (z *zoneController) deleteZone(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneIdentifier(w, r)
	if !ok {
		return
	}

	if err := z.deviceOrganiser.DeleteZone(id); err != nil {
		writeZoneError(w, r, err)
		return
	}

	http.Error(w, http.StatusText(http.StatusNoContent), http.StatusNoContent)
}

type updateZoneRequest struct {
	Name          *string
	ReorderBefore *int
	ReorderAfter  *int
}

func (z *zoneController) updateZone(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneIdentifier(w, r)
	if !ok {
		return
	}

	request := updateZoneRequest{}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := json.Unmarshal(data, &request); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if request.Name != nil {
		if err := z.deviceOrganiser.NameZone(id, *request.Name); err != nil {
			writeZoneError(w, r, err)
			return
		}
	}

	if request.ReorderBefore != nil {
		if err := z.deviceOrganiser.ReorderZoneBefore(id, *request.ReorderBefore); err != nil {
			writeZoneError(w, r, err)
			return
		}
	}

	if request.ReorderAfter != nil {
		if err := z.deviceOrganiser.ReorderZoneAfter(id, *request.ReorderAfter); err != nil {
			writeZoneError(w, r, err)
			return
		}
	}

	zone, found := z.deviceOrganiser.Zone(id)
	if !found {
		http.NotFound(w, r)
		return
	}

	payload, err := json.Marshal(z.exportZone(r, zone, zoneIncludes{}))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(payload)
}

func (z *zoneController) addDeviceToZone(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneIdentifier(w, r)
	if !ok {
		return
	}

	deviceId, ok := mux.Vars(r)["deviceIdentifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := z.deviceOrganiser.AddDeviceToZone(deviceId, id); err != nil {
		writeZoneError(w, r, err)
		return
	}

	http.Error(w, http.StatusText(http.StatusNoContent), http.StatusNoContent)
}

func (z *zoneController) removeDeviceToZone(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneIdentifier(w, r)
	if !ok {
		return
	}

	deviceId, ok := mux.Vars(r)["deviceIdentifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := z.deviceOrganiser.RemoveDeviceFromZone(deviceId, id); err != nil {
		writeZoneError(w, r, err)
		return
	}

	http.Error(w, http.StatusText(http.StatusNoContent), http.StatusNoContent)
}

func (z *zoneController) addSubzoneToZone(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneIdentifier(w, r)
	if !ok {
		return
	}

	subzoneId, ok := subzoneIdentifier(w, r)
	if !ok {
		return
	}

	if err := z.deviceOrganiser.MoveZone(subzoneId, id); err != nil {
		writeZoneError(w, r, err)
		return
	}

	http.Error(w, http.StatusText(http.StatusNoContent), http.StatusNoContent)
}

func (z *zoneController) removeSubzoneToZone(w http.ResponseWriter, r *http.Request) {
	if _, ok := zoneIdentifier(w, r); !ok {
		return
	}

	subzoneId, ok := subzoneIdentifier(w, r)
	if !ok {
		return
	}

	if err := z.deviceOrganiser.MoveZone(subzoneId, state.RootZoneId); err != nil {
		writeZoneError(w, r, err)
		return
	}

	http.Error(w, http.StatusText(http.StatusNoContent), http.StatusNoContent)
}

func zoneIdentifier(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw, ok := mux.Vars(r)["identifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return 0, false
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}

	return id, true
}

func subzoneIdentifier(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw, ok := mux.Vars(r)["subzoneIdentifier"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return 0, false
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}

	return id, true
}

func writeZoneError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, state.ErrNotFound) {
		http.NotFound(w, r)
	} else {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	}
}
