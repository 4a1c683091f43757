package control

import (
	"testing"

	"github.com/greenhouse-net/controller/internal/domain"
)

func testConfig() domain.Config {
	return domain.Config{
		TempMin:       20,
		TempMax:       30,
		HumMax:        75,
		SoilDry:       40,
		SoilWet:       70,
		TankEmptyDist: 25,
		TankFullDist:  5,
	}
}

func TestEvaluate_PumpHysteresis(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name     string
		soilPct  float64
		distCm   float64
		prevPump bool
		wantPump bool
	}{
		{"dry soil with water turns pump on", 30, 10, false, true},
		{"wet soil turns pump off", 80, 10, true, false},
		{"mid-band retains previous state on", 50, 10, true, true},
		{"mid-band retains previous state off", 50, 10, false, false},
		{"dry soil but empty tank stays off", 30, 30, false, false},
		{"empty tank interlock overrides even when dry and previously on", 30, 30, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := domain.SensorSnapshot{SoilPct: tt.soilPct, TankDistCm: tt.distCm}
			prev := domain.ActuatorState{Pump: tt.prevPump, Mode: domain.ModeAuto}
			next := Evaluate(snap, cfg, prev)
			if next.Pump != tt.wantPump {
				t.Errorf("Pump = %v, want %v", next.Pump, tt.wantPump)
			}
		})
	}
}

func TestEvaluate_FanHeaterThresholding(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name       string
		tempC      float64
		humPct     float64
		wantFan    bool
		wantHeater bool
	}{
		{"nominal", 25, 50, false, false},
		{"too hot triggers fan", 31, 50, true, false},
		{"too humid triggers fan", 25, 80, true, false},
		{"too cold triggers heater", 15, 50, false, true},
		{"hot and humid both trigger fan, not heater", 31, 80, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := domain.SensorSnapshot{TempC: tt.tempC, HumPct: tt.humPct, TankDistCm: 10}
			prev := domain.ActuatorState{Mode: domain.ModeAuto}
			next := Evaluate(snap, cfg, prev)
			if next.Fan != tt.wantFan {
				t.Errorf("Fan = %v, want %v", next.Fan, tt.wantFan)
			}
			if next.Heater != tt.wantHeater {
				t.Errorf("Heater = %v, want %v", next.Heater, tt.wantHeater)
			}
		})
	}
}

func TestEvaluate_ManualModeHonorsOverridesLiterally(t *testing.T) {
	cfg := testConfig()
	// Dry soil but empty tank (AUTO would refuse the pump); MANUAL honors
	// the override regardless, per the preserved open-question behavior.
	snap := domain.SensorSnapshot{SoilPct: 10, TankDistCm: 30}
	prev := domain.ActuatorState{
		Mode:         domain.ModeManual,
		OverridePump: true,
	}

	next := Evaluate(snap, cfg, prev)
	if !next.Pump {
		t.Error("MANUAL mode must honor OverridePump literally, even with an empty tank")
	}
}

func TestTankLevel(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		distCm       float64
		wantLevelPct float64
		wantHasWater bool
	}{
		{5, 100, true},   // at tank_full_dist
		{25, 0, false},   // at tank_empty_dist (boundary: not < empty)
		{15, 50, true},   // midpoint
		{1, 100, true},   // clamped below full
		{40, 0, false},   // clamped above empty
	}

	for _, tt := range tests {
		level, hasWater := TankLevel(tt.distCm, cfg)
		if level != tt.wantLevelPct {
			t.Errorf("TankLevel(%v) level = %v, want %v", tt.distCm, level, tt.wantLevelPct)
		}
		if hasWater != tt.wantHasWater {
			t.Errorf("TankLevel(%v) hasWater = %v, want %v", tt.distCm, hasWater, tt.wantHasWater)
		}
	}
}

func TestEnterAuto_ClearsOverrides(t *testing.T) {
	state := domain.ActuatorState{
		Mode:           domain.ModeManual,
		OverridePump:   true,
		OverrideFan:    true,
		OverrideHeater: true,
	}

	next := EnterAuto(state)
	if next.Mode != domain.ModeAuto {
		t.Errorf("Mode = %v, want ModeAuto", next.Mode)
	}
	if next.OverridePump || next.OverrideFan || next.OverrideHeater {
		t.Error("EnterAuto must clear all overrides")
	}
}
