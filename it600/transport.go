package it600

import "context"

// Attribute keys accepted by Transport.WriteDevice.
const (
	AttributeHeatingSetpoint = "HeatingSetpoint"
	AttributeSystemMode      = "SystemMode"
	AttributeHoldType        = "HoldType"
)

// Transport carries attribute documents between the client and a gateway.
// Implementations own the session and the gateway's local wire encoding, the
// client only ever sees decoded attribute groups in the raw token vocabulary.
type Transport interface {
	Open(ctx context.Context) error
	ReadDevices(ctx context.Context) ([]RawDevice, error)
	WriteDevice(ctx context.Context, id string, values map[string]any) error
	Close() error
}

// RawDevice is one device's decoded attribute document. Attribute groups the
// device did not report are nil.
type RawDevice struct {
	ID      string
	Name    string
	Product string
	Online  bool

	Thermostat  *RawThermostat
	OnOff       *RawOnOff
	AlarmZone   *RawAlarmZone
	Temperature *RawTemperature
	Humidity    *RawHumidity
	Level       *RawLevel
}

// RawThermostat carries the thermostat attribute group. Temperatures are in
// degrees celsius, mode, action and preset hold raw tokens, or are empty when
// the gateway reported a value outside the known vocabulary.
type RawThermostat struct {
	LocalTemperature float64
	HeatingSetpoint  float64
	SystemMode       string
	RunningState     string
	HoldType         string
	MinSetpoint      *float64
	MaxSetpoint      *float64
}

type RawOnOff struct {
	On bool
}

type RawAlarmZone struct {
	Alarmed bool
}

type RawTemperature struct {
	Value float64
}

type RawHumidity struct {
	Value float64
}

type RawLevel struct {
	Level int
}
