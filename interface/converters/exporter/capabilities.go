package exporter

import (
	"encoding/json"
	"time"
)

// Capability names presented to HTTP and MQTT consumers. Every device
// carries ProductInformation, the remainder follow its kind.
const (
	CapabilityProductInformation = "ProductInformation"
	CapabilityClimate            = "Climate"
	CapabilityOnOff              = "OnOff"
	CapabilityBinarySensor       = "BinarySensor"
	CapabilitySensor             = "Sensor"
	CapabilityCover              = "Cover"
)

// External climate vocabulary. Gateways speak lowercase tokens, consumers
// see these values.
const (
	ModeHeat = "HEAT"
	ModeOff  = "OFF"
	ModeAuto = "AUTO"

	ActionHeating = "HEATING"
	ActionIdle    = "IDLE"
	ActionOff     = "OFF"

	PresetFollowSchedule = "Follow Schedule"
	PresetPermanentHold  = "Permanent Hold"
	PresetOff            = "Off"
)

var modesToExternal = map[string]string{
	"heat": ModeHeat,
	"off":  ModeOff,
	"auto": ModeAuto,
}

var modesToRaw = map[string]string{
	ModeHeat: "heat",
	ModeOff:  "off",
	ModeAuto: "auto",
}

var actionsToExternal = map[string]string{
	"heating": ActionHeating,
	"idle":    ActionIdle,
	"off":     ActionOff,
}

var presetsToExternal = map[string]string{
	"follow_schedule": PresetFollowSchedule,
	"permanent_hold":  PresetPermanentHold,
	"off":             PresetOff,
}

var presetsToRaw = map[string]string{
	PresetFollowSchedule: "follow_schedule",
	PresetPermanentHold:  "permanent_hold",
	PresetOff:            "off",
}

// ModeToRaw maps an external mode back to the gateway token, reporting
// whether the mode is part of the vocabulary.
func ModeToRaw(mode string) (string, bool) {
	raw, found := modesToRaw[mode]
	return raw, found
}

// PresetToRaw maps an external preset back to the gateway token, reporting
// whether the preset is part of the vocabulary.
func PresetToRaw(preset string) (string, bool) {
	raw, found := presetsToRaw[preset]
	return raw, found
}

type ProductInformation struct {
	Name         string `json:",omitempty"`
	Manufacturer string `json:",omitempty"`
}

type Climate struct {
	CurrentTemperature float64
	TargetTemperature  float64
	Mode               string
	Action             string
	Preset             string `json:",omitempty"`
	MinTemperature     float64
	MaxTemperature     float64
	TemperatureStep    float64
}

type OnOff struct {
	State bool
}

type BinarySensor struct {
	State bool
}

type Sensor struct {
	Value float64
	Unit  string `json:",omitempty"`
}

type Cover struct {
	Position int
}

// NullableTime marshals the zero time as JSON null rather than the epoch.
type NullableTime time.Time

func (n NullableTime) MarshalJSON() ([]byte, error) {
	t := time.Time(n)

	if t.IsZero() {
		return json.Marshal(nil)
	}

	return json.Marshal(t)
}
