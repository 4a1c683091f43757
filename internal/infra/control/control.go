// Package control runs the 1s policy engine: pump hysteresis with the
// tank-empty safety interlock, fan/heater thresholding in AUTO, and
// literal override playback in MANUAL.
package control

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
	"github.com/greenhouse-net/controller/internal/infra/watchdog"
)

// Period is the control task's cycle length.
const Period = 1 * time.Second

// Task computes desired actuator states once per Period and applies them
// to both the shared state and the physical relays in one pass.
type Task struct {
	sensors   *domain.SensorState
	actuators *domain.ActuatorStateHolder
	cfg       *domain.ConfigHolder
	relays    domain.Actuators
	wd        *watchdog.Watchdog
	log       *logrus.Entry
}

// New creates a control task.
func New(sensors *domain.SensorState, actuators *domain.ActuatorStateHolder, cfg *domain.ConfigHolder, relays domain.Actuators, wd *watchdog.Watchdog, log *logrus.Logger) *Task {
	return &Task{
		sensors:   sensors,
		actuators: actuators,
		cfg:       cfg,
		relays:    relays,
		wd:        wd,
		log:       log.WithField("task", "control"),
	}
}

// Run blocks, evaluating the policy every Period until ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	t.wd.Register("control")
	ticker := time.NewTicker(Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.cycle()
			t.wd.Pet("control")
		}
	}
}

func (t *Task) cycle() {
	snap := t.sensors.Load() // single coherent read pass
	cfg := t.cfg.Load()
	prev := t.actuators.Load()

	next := Evaluate(snap, cfg, prev)
	t.actuators.Store(next)

	if err := t.relays.SetRelay(domain.RelayPump, next.Pump); err != nil {
		t.log.WithError(err).Warn("set pump relay failed")
	}
	if err := t.relays.SetRelay(domain.RelayFan, next.Fan); err != nil {
		t.log.WithError(err).Warn("set fan relay failed")
	}
	if err := t.relays.SetRelay(domain.RelayHeater, next.Heater); err != nil {
		t.log.WithError(err).Warn("set heater relay failed")
	}
}

// Evaluate computes the next actuator state from a sensor snapshot, the
// active configuration, and the previous actuator state. It is pure and
// side-effect free so it can be unit tested directly against the
// hysteresis and interlock invariants.
func Evaluate(snap domain.SensorSnapshot, cfg domain.Config, prev domain.ActuatorState) domain.ActuatorState {
	next := prev

	if prev.Mode == domain.ModeManual {
		next.Pump = prev.OverridePump
		next.Fan = prev.OverrideFan
		next.Heater = prev.OverrideHeater
		return next
	}

	hasWater := snap.HasWater(cfg)

	// Pump hysteresis (§4.3, §8): ON only when soil < soil_dry AND
	// has_water; OFF when soil > soil_wet OR NOT has_water (the interlock
	// overrides the lower threshold unconditionally); otherwise retain.
	switch {
	case snap.SoilPct < cfg.SoilDry && hasWater:
		next.Pump = true
	case snap.SoilPct > cfg.SoilWet || !hasWater:
		next.Pump = false
	default:
		next.Pump = prev.Pump
	}

	// Fan: pure thresholding, no hysteresis (§4.3).
	next.Fan = snap.TempC > cfg.TempMax || snap.HumPct > cfg.HumMax

	// Heater: pure thresholding, no hysteresis (§4.3).
	next.Heater = snap.TempC < cfg.TempMin

	return next
}

// TankLevel computes the water-tank level percent and has-water flag from
// a raw distance reading: clamp distance into [tank_full_dist,
// tank_empty_dist], then linearly map to [0,100]%.
func TankLevel(distanceCm float64, cfg domain.Config) (levelPct float64, hasWater bool) {
	d := distanceCm
	if d < cfg.TankFullDist {
		d = cfg.TankFullDist
	}
	if d > cfg.TankEmptyDist {
		d = cfg.TankEmptyDist
	}
	span := cfg.TankEmptyDist - cfg.TankFullDist
	if span <= 0 {
		return 0, distanceCm < cfg.TankEmptyDist
	}
	level := (cfg.TankEmptyDist - d) / span * 100
	return level, distanceCm < cfg.TankEmptyDist
}

// EnterAuto clears all manual overrides (§4.3: "Entering AUTO clears all
// overrides").
func EnterAuto(state domain.ActuatorState) domain.ActuatorState {
	state.Mode = domain.ModeAuto
	state.OverridePump = false
	state.OverrideFan = false
	state.OverrideHeater = false
	return state
}
