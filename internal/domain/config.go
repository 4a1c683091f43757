// Package domain holds the core types, sentinel errors, and port
// interfaces shared by the greenhouse node's components. It has no
// infrastructure dependency — infra packages implement the interfaces
// declared here.
package domain

import "fmt"

// Config holds the runtime-tunable setpoints persisted in the key/value
// store (see infra/store) and mutated by command dispatch (§3, §4.5.4).
type Config struct {
	TempMin float64 // °C, default 20.0
	TempMax float64 // °C, default 30.0
	HumMax  float64 // %, default 75.0

	SoilDry float64 // %, default 40
	SoilWet float64 // %, default 70

	TankEmptyDist float64 // cm, default 25
	TankFullDist  float64 // cm, default 5

	CalAirRaw   int // ADC counts at fully-dry, default 4095
	CalWaterRaw int // ADC counts at fully-wet, default 1670
}

// DefaultConfig returns the factory defaults for the runtime setpoint
// table.
func DefaultConfig() Config {
	return Config{
		TempMin:       20.0,
		TempMax:       30.0,
		HumMax:        75.0,
		SoilDry:       40,
		SoilWet:       70,
		TankEmptyDist: 25,
		TankFullDist:  5,
		CalAirRaw:     4095,
		CalWaterRaw:   1670,
	}
}

// Validate enforces the cross-field invariants. Any write that would
// violate one of these is rejected without mutating state.
func (c Config) Validate() error {
	if c.TempMin < 0 || c.TempMin > 100 || c.TempMax < 0 || c.TempMax > 100 {
		return fmt.Errorf("%w: temp_min/temp_max out of [0,100]", ErrInvalidConfig)
	}
	if c.TempMin >= c.TempMax {
		return fmt.Errorf("%w: temp_min must be < temp_max", ErrInvalidConfig)
	}
	if c.HumMax < 0 || c.HumMax > 100 {
		return fmt.Errorf("%w: hum_max out of [0,100]", ErrInvalidConfig)
	}
	if c.SoilDry < 0 || c.SoilDry > 100 || c.SoilWet < 0 || c.SoilWet > 100 {
		return fmt.Errorf("%w: soil_dry/soil_wet out of [0,100]", ErrInvalidConfig)
	}
	if c.SoilDry >= c.SoilWet {
		return fmt.Errorf("%w: soil_dry must be < soil_wet", ErrInvalidConfig)
	}
	if c.TankEmptyDist <= 0 || c.TankEmptyDist >= 1000 || c.TankFullDist <= 0 || c.TankFullDist >= 1000 {
		return fmt.Errorf("%w: tank distances out of (0,1000)", ErrInvalidConfig)
	}
	if c.TankFullDist >= c.TankEmptyDist {
		return fmt.Errorf("%w: tank_full_dist must be < tank_empty_dist", ErrInvalidConfig)
	}
	return nil
}

// BootHealth is the persisted boot-verification state (§3, §4.5.5).
type BootHealth struct {
	CrashCount       uint8
	RollbackHappened bool
}
