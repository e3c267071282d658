package it600

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
)

// HTTPTransport speaks the gateway's local JSON API. All requests are POSTs
// against the read and write endpoints, authenticated by the gateway EUID.
type HTTPTransport struct {
	baseURL string
	euid    string
	client  *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(host string, euid string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: fmt.Sprintf("http://%s", host),
		euid:    euid,
		client:  &http.Client{},
	}
}

type readRequest struct {
	RequestAttr string `json:"requestAttr"`
	EUID        string `json:"euid"`
}

type writeRequest struct {
	RequestAttr string          `json:"requestAttr"`
	EUID        string          `json:"euid"`
	ID          []wireWriteBody `json:"id"`
}

type wireWriteBody struct {
	Data       wireDeviceRef  `json:"data"`
	Thermostat map[string]any `json:"sIT600TH,omitempty"`
}

type wireDeviceRef struct {
	UniID string `json:"UniID"`
}

type readResponse struct {
	Status string       `json:"status"`
	ID     []wireDevice `json:"id"`
}

type writeResponse struct {
	Status string `json:"status"`
}

type wireDevice struct {
	Data struct {
		UniID      string `json:"UniID"`
		DeviceName string `json:"DeviceName"`
		Online     int    `json:"OnlineStatus_i"`
	} `json:"data"`
	Basic *struct {
		ModelIdentifier string `json:"ModelIdentifier"`
	} `json:"sBasicS"`
	Thermostat *struct {
		LocalTemperature int  `json:"LocalTemperature_x100"`
		HeatingSetpoint  int  `json:"HeatingSetpoint_x100"`
		SystemMode       int  `json:"SystemMode"`
		RunningState     int  `json:"RunningState"`
		HoldType         int  `json:"HoldType"`
		MinHeatSetpoint  *int `json:"MinHeatSetpoint_x100"`
		MaxHeatSetpoint  *int `json:"MaxHeatSetpoint_x100"`
	} `json:"sIT600TH"`
	OnOff *struct {
		OnOff int `json:"OnOff"`
	} `json:"sOnOffS"`
	AlarmZone *struct {
		Alarmed int `json:"ErrorIASZSAlarmed1"`
	} `json:"sIASZS"`
	Temperature *struct {
		MeasuredValue int `json:"MeasuredValue_x100"`
	} `json:"sTempS"`
	Humidity *struct {
		MeasuredValue int `json:"MeasuredValue"`
	} `json:"sRHS"`
	Level *struct {
		CurrentLevel int `json:"CurrentLevel"`
	} `json:"sLevelS"`
}

// Thermostat enumerations on the wire, mapped to and from raw tokens.
var wireSystemModes = map[int]string{
	0: ModeOff,
	1: ModeAuto,
	4: ModeHeat,
}

var systemModesToWire = map[string]int{
	ModeOff:  0,
	ModeAuto: 1,
	ModeHeat: 4,
}

var wireHoldTypes = map[int]string{
	0: PresetFollowSchedule,
	2: PresetPermanentHold,
	7: PresetOff,
}

var holdTypesToWire = map[string]int{
	PresetFollowSchedule: 0,
	PresetPermanentHold:  2,
	PresetOff:            7,
}

const runningStateHeatBit = 0x01

func (t *HTTPTransport) Open(ctx context.Context) error {
	_, err := t.ReadDevices(ctx)
	return err
}

func (t *HTTPTransport) ReadDevices(ctx context.Context) ([]RawDevice, error) {
	var decoded readResponse

	if err := t.post(ctx, "/deviceid/read", readRequest{RequestAttr: "readall", EUID: t.euid}, &decoded); err != nil {
		return nil, err
	}

	if decoded.Status != "success" {
		return nil, fmt.Errorf("%w: gateway reported status '%s'", ErrConnection, decoded.Status)
	}

	devices := make([]RawDevice, 0, len(decoded.ID))

	for _, wd := range decoded.ID {
		devices = append(devices, decodeWireDevice(wd))
	}

	return devices, nil
}

func (t *HTTPTransport) WriteDevice(ctx context.Context, id string, values map[string]any) error {
	attrs := map[string]any{}

	for key, value := range values {
		switch key {
		case AttributeHeatingSetpoint:
			temperature, ok := value.(float64)
			if !ok {
				return fmt.Errorf("%w: heating setpoint must be a number", ErrUnsupportedValue)
			}

			attrs["SetHeatingSetpoint_x100"] = int(math.Round(temperature * 100))
		case AttributeSystemMode:
			mode, _ := value.(string)

			encoded, found := systemModesToWire[mode]
			if !found {
				return fmt.Errorf("%w: mode '%v'", ErrUnsupportedValue, value)
			}

			attrs["SetSystemMode"] = encoded
		case AttributeHoldType:
			preset, _ := value.(string)

			encoded, found := holdTypesToWire[preset]
			if !found {
				return fmt.Errorf("%w: preset '%v'", ErrUnsupportedValue, value)
			}

			attrs["SetHoldType"] = encoded
		default:
			return fmt.Errorf("%w: attribute '%s'", ErrUnsupportedValue, key)
		}
	}

	req := writeRequest{
		RequestAttr: "write",
		EUID:        t.euid,
		ID: []wireWriteBody{
			{
				Data:       wireDeviceRef{UniID: id},
				Thermostat: attrs,
			},
		},
	}

	var decoded writeResponse

	if err := t.post(ctx, "/deviceid/write", req, &decoded); err != nil {
		return err
	}

	if decoded.Status != "success" {
		return fmt.Errorf("%w: gateway reported status '%s'", ErrConnection, decoded.Status)
	}

	return nil
}

func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to construct gateway request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: gateway returned %s", ErrAuthentication, resp.Status)
	default:
		return fmt.Errorf("%w: gateway returned %s", ErrConnection, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed gateway response: %s", ErrConnection, err)
	}

	return nil
}

func decodeWireDevice(wd wireDevice) RawDevice {
	rd := RawDevice{
		ID:     wd.Data.UniID,
		Name:   wd.Data.DeviceName,
		Online: wd.Data.Online != 0,
	}

	if wd.Basic != nil {
		rd.Product = wd.Basic.ModelIdentifier
	}

	if wd.Thermostat != nil {
		rd.Thermostat = &RawThermostat{
			LocalTemperature: float64(wd.Thermostat.LocalTemperature) / 100,
			HeatingSetpoint:  float64(wd.Thermostat.HeatingSetpoint) / 100,
			SystemMode:       wireSystemModes[wd.Thermostat.SystemMode],
			RunningState:     decodeRunningState(wd.Thermostat.RunningState, wd.Thermostat.SystemMode),
			HoldType:         wireHoldTypes[wd.Thermostat.HoldType],
		}

		if wd.Thermostat.MinHeatSetpoint != nil {
			min := float64(*wd.Thermostat.MinHeatSetpoint) / 100
			rd.Thermostat.MinSetpoint = &min
		}

		if wd.Thermostat.MaxHeatSetpoint != nil {
			max := float64(*wd.Thermostat.MaxHeatSetpoint) / 100
			rd.Thermostat.MaxSetpoint = &max
		}
	}

	if wd.OnOff != nil {
		rd.OnOff = &RawOnOff{On: wd.OnOff.OnOff != 0}
	}

	if wd.AlarmZone != nil {
		rd.AlarmZone = &RawAlarmZone{Alarmed: wd.AlarmZone.Alarmed != 0}
	}

	if wd.Temperature != nil {
		rd.Temperature = &RawTemperature{Value: float64(wd.Temperature.MeasuredValue) / 100}
	}

	if wd.Humidity != nil {
		rd.Humidity = &RawHumidity{Value: float64(wd.Humidity.MeasuredValue)}
	}

	if wd.Level != nil {
		rd.Level = &RawLevel{Level: wd.Level.CurrentLevel}
	}

	return rd
}

// A thermostat with the heat bit set is actively heating, otherwise it is
// idle, or off when the system mode is off.
func decodeRunningState(runningState int, systemMode int) string {
	if runningState&runningStateHeatBit != 0 {
		return ActionHeating
	}

	if wireSystemModes[systemMode] == ModeOff {
		return ActionOff
	}

	return ActionIdle
}
