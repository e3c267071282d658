package it600

type DeviceKind string

const (
	KindClimate      DeviceKind = "climate"
	KindSwitch       DeviceKind = "switch"
	KindBinarySensor DeviceKind = "binary_sensor"
	KindSensor       DeviceKind = "sensor"
	KindCover        DeviceKind = "cover"
)

// Raw mode tokens, as reported by the gateway for a thermostat.
const (
	ModeHeat = "heat"
	ModeOff  = "off"
	ModeAuto = "auto"
)

// Raw action tokens, the thermostat's current activity.
const (
	ActionHeating = "heating"
	ActionIdle    = "idle"
	ActionOff     = "off"
)

// Raw preset tokens, the thermostat's schedule hold state.
const (
	PresetFollowSchedule = "follow_schedule"
	PresetPermanentHold  = "permanent_hold"
	PresetOff            = "off"
)

// Setpoint bounds used when the gateway does not report its own, and the
// setpoint granularity of IT600 thermostats.
const (
	DefaultMinTemperature = 5.0
	DefaultMaxTemperature = 35.0
	TemperatureStep       = 0.5
)

// Device is a point in time view of a single device attached to a gateway,
// produced by a poll. Exactly one of the capability fields is populated,
// matching Kind. Devices are values, a new table is built for each poll and
// existing ones are never mutated.
type Device struct {
	ID        string
	Name      string
	Kind      DeviceKind
	Product   string
	Available bool

	Climate      *ClimateState
	Switch       *SwitchState
	BinarySensor *BinarySensorState
	Sensor       *SensorState
	Cover        *CoverState
}

type ClimateState struct {
	CurrentTemperature float64
	TargetTemperature  float64
	Mode               string
	Action             string
	Preset             string
	MinTemperature     float64
	MaxTemperature     float64
	TemperatureStep    float64
}

type SwitchState struct {
	On bool
}

type BinarySensorState struct {
	On bool
}

type SensorState struct {
	Value float64
	Unit  string
}

type CoverState struct {
	Position int
}

type Status uint8

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusPolling
	StatusUnreachable
	StatusAuthFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusPolling:
		return "Polling"
	case StatusUnreachable:
		return "Unreachable"
	case StatusAuthFailed:
		return "AuthenticationFailed"
	default:
		return "Unknown"
	}
}
