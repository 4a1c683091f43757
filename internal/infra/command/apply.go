package command

import (
	"github.com/greenhouse-net/controller/internal/domain"
	"github.com/greenhouse-net/controller/internal/infra/store"
)

// Apply commits a parsed Command's config fields (validated as a whole
// against the cross-field invariants before persisting) and mode/override
// fields against actuator state, in field-iteration order — mode first,
// then overrides. It returns the OTA URL, if any, for the caller to act
// on separately (OTA is not part of this commit).
//
// A config field is only persisted if it changed by more than the store's
// wear-guard tolerance; Store.Save* already enforces that per key, so this
// function always calls SaveConfig when any field in the payload touched
// configuration, and lets the wear guard decide what actually gets written.
func Apply(cmd domain.Command, cfg *domain.ConfigHolder, st *store.Store, actuators *domain.ActuatorStateHolder) (otaURL *string) {
	if touchesConfig(cmd) {
		candidate := cfg.Load()
		applyConfigFields(cmd, &candidate)
		if err := cfg.Commit(candidate); err == nil {
			_ = st.SaveConfig(candidate)
		}
		// An invalid cross-field result is silently rejected without
		// mutating state — Commit already guarantees that.
	}

	if cmd.Mode != nil || cmd.Pump != nil || cmd.Fan != nil || cmd.Heater != nil {
		actuators.Store(applyModeAndOverrides(cmd, actuators.Load()))
	}

	return cmd.UpdateURL
}

func touchesConfig(cmd domain.Command) bool {
	return cmd.TempMin != nil || cmd.TempMax != nil || cmd.HumMax != nil ||
		cmd.SoilDry != nil || cmd.SoilWet != nil ||
		cmd.TankEmptyDist != nil || cmd.TankFullDist != nil ||
		cmd.CalAirRaw != nil || cmd.CalWaterRaw != nil
}

func applyConfigFields(cmd domain.Command, cfg *domain.Config) {
	if cmd.TempMin != nil {
		cfg.TempMin = *cmd.TempMin
	}
	if cmd.TempMax != nil {
		cfg.TempMax = *cmd.TempMax
	}
	if cmd.HumMax != nil {
		cfg.HumMax = *cmd.HumMax
	}
	if cmd.SoilDry != nil {
		cfg.SoilDry = *cmd.SoilDry
	}
	if cmd.SoilWet != nil {
		cfg.SoilWet = *cmd.SoilWet
	}
	if cmd.TankEmptyDist != nil {
		cfg.TankEmptyDist = *cmd.TankEmptyDist
	}
	if cmd.TankFullDist != nil {
		cfg.TankFullDist = *cmd.TankFullDist
	}
	if cmd.CalAirRaw != nil {
		cfg.CalAirRaw = *cmd.CalAirRaw
	}
	if cmd.CalWaterRaw != nil {
		cfg.CalWaterRaw = *cmd.CalWaterRaw
	}
}

// applyModeAndOverrides applies mode first, then pump/fan/heater
// overrides. Overrides are only honored in MANUAL; they are ignored in
// AUTO.
func applyModeAndOverrides(cmd domain.Command, state domain.ActuatorState) domain.ActuatorState {
	next := state

	if cmd.Mode != nil {
		if *cmd.Mode == domain.ModeAuto {
			next.Mode = domain.ModeAuto
			next.OverridePump = false
			next.OverrideFan = false
			next.OverrideHeater = false
		} else {
			next.Mode = domain.ModeManual
		}
	}

	if next.Mode == domain.ModeManual {
		if cmd.Pump != nil {
			next.OverridePump = *cmd.Pump
		}
		if cmd.Fan != nil {
			next.OverrideFan = *cmd.Fan
		}
		if cmd.Heater != nil {
			next.OverrideHeater = *cmd.Heater
		}
	}

	return next
}
