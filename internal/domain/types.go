package domain

import "time"

// Mode selects between the automatic control policy and latched manual
// overrides (§3, §4.3).
type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "MANUAL"
	}
	return "AUTO"
}

// ParseMode accepts "AUTO"/"MANUAL" case-insensitively, plus the "0"/"1"
// shorthand accepted by command dispatch (§4.5.4).
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "AUTO", "auto", "Auto", "0":
		return ModeAuto, true
	case "MANUAL", "manual", "Manual", "1":
		return ModeManual, true
	default:
		return ModeAuto, false
	}
}

// SensorSnapshot is the volatile live sensor reading (§3), overwritten
// every sampling period by the sensing task and read by control,
// connectivity, and the UI.
type SensorSnapshot struct {
	TempC      float64
	HumPct     float64
	Eco2Ppm    int
	TvocPpb    int
	SoilPct    float64
	TankPct    float64 // derived water-level percent, see control.TankLevel
	TankDistCm float64 // raw distance reading, fail-safe = tank_empty_dist on timeout
	SampledAt  time.Time
}

// HasWater reports the tank "has-water" safety interlock (§4.3): true iff
// the measured distance is less than the configured empty threshold.
func (s SensorSnapshot) HasWater(cfg Config) bool {
	return s.TankDistCm < cfg.TankEmptyDist
}

// ActuatorState is the volatile output of the control task (§3).
type ActuatorState struct {
	Pump   bool
	Fan    bool
	Heater bool

	Mode Mode

	// Override* are latched manual commands, honored literally in
	// ModeManual and cleared whenever AUTO is (re-)entered (§4.3).
	OverridePump   bool
	OverrideFan    bool
	OverrideHeater bool
}

// ConnState is the volatile connectivity/provisioning state (§3, §4.5.1)
// read by the UI and mutated by the connectivity task.
type ConnState struct {
	WifiUp              bool
	MqttUp              bool
	PortalActive        bool
	ReconfigurePending  bool
	StopPortalPending   bool
}

// TelemetryRecord is one device→broker data-topic publish (§6).
type TelemetryRecord struct {
	DeviceID  string  `json:"device_id"`
	Version   string  `json:"version"`
	Timestamp int64   `json:"timestamp"`
	Temp      float64 `json:"temp"`
	Hum       float64 `json:"hum"`
	Soil      int     `json:"soil"`
	Co2       int     `json:"co2"`
	Tvoc      int     `json:"tvoc"`
	TankLevel int     `json:"tank_level"`
	Pump      int     `json:"pump"`
	Fan       int     `json:"fan"`
	Heater    int     `json:"heater"`
	Mode      string  `json:"mode"`
}

// AlertKind enumerates the device→broker alerts topic's alert kinds.
// Only ROLLBACK_EXECUTED is currently emitted.
type AlertKind string

const (
	AlertRollbackExecuted AlertKind = "ROLLBACK_EXECUTED"
)

// Alert is one device→broker alerts-topic publish (§6).
type Alert struct {
	ID        string    `json:"-"` // correlation id, not part of the wire payload
	Alert     AlertKind `json:"alert"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"`
}

// Command is the parsed, validated form of a broker→device commands-topic
// payload (§4.5.4). Every field is optional; a nil pointer means "field not
// present or failed validation", mirroring "ignored if out of range".
type Command struct {
	TempMin *float64
	TempMax *float64
	HumMax  *float64

	SoilDry *float64
	SoilWet *float64

	TankEmptyDist *float64
	TankFullDist  *float64

	CalAirRaw   *int
	CalWaterRaw *int

	Mode *Mode

	Pump   *bool
	Fan    *bool
	Heater *bool

	UpdateURL *string
}
