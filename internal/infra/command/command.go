// Package command turns a broker→device commands-topic JSON payload into a
// validated domain.Command. Unknown fields are ignored; invalid fields are
// dropped individually without rejecting the rest of the payload;
// oversized payloads are dropped whole.
package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/greenhouse-net/controller/internal/domain"
)

// MaxPayloadBytes is the hard size ceiling on a commands-topic payload.
const MaxPayloadBytes = 10 * 1024

// raw mirrors the recognized JSON fields loosely (json.Number / any) so
// each field can be validated independently before being promoted into a
// domain.Command.
type raw struct {
	TempMin *float64 `json:"temp_min"`
	MinTemp *float64 `json:"min_temp"`
	TempMax *float64 `json:"temp_max"`
	MaxTemp *float64 `json:"max_temp"`
	HumMax  *float64 `json:"hum_max"`
	MaxHum  *float64 `json:"max_hum"`

	SoilDry *float64 `json:"soil_dry"`
	SoilWet *float64 `json:"soil_wet"`

	TankEmptyDist *float64 `json:"tank_empty_dist"`
	TankFullDist  *float64 `json:"tank_full_dist"`

	CalAir   *int `json:"cal_air"`
	CalWater *int `json:"cal_water"`

	Mode *string `json:"mode"`

	Pump   *int `json:"pump"`
	Fan    *int `json:"fan"`
	Heater *int `json:"heater"`

	UpdateURL *string `json:"update_url"`
}

// Parse decodes payload into a domain.Command. Fields iterate in the
// struct-literal order below (mode before overrides), matching the
// "mode first, then overrides" ordering guarantee Apply relies on.
func Parse(payload []byte) (domain.Command, error) {
	if len(payload) > MaxPayloadBytes {
		return domain.Command{}, fmt.Errorf("%w: %d bytes", errPayloadTooLarge, len(payload))
	}

	var r raw
	if err := json.Unmarshal(payload, &r); err != nil {
		return domain.Command{}, fmt.Errorf("decode command payload: %w", err)
	}

	var cmd domain.Command

	cmd.TempMin = firstInRange(0, 100, r.TempMin, r.MinTemp)
	cmd.TempMax = firstInRange(0, 100, r.TempMax, r.MaxTemp)
	cmd.HumMax = firstInRange(0, 100, r.HumMax, r.MaxHum)
	cmd.SoilDry = firstInRange(0, 100, r.SoilDry)
	cmd.SoilWet = firstInRange(0, 100, r.SoilWet)
	cmd.TankEmptyDist = firstInRange(0, 1000, r.TankEmptyDist)
	cmd.TankFullDist = firstInRange(0, 1000, r.TankFullDist)
	cmd.CalAirRaw = r.CalAir
	cmd.CalWaterRaw = r.CalWater

	if r.Mode != nil {
		if mode, ok := domain.ParseMode(strings.TrimSpace(*r.Mode)); ok {
			cmd.Mode = &mode
		}
	}

	cmd.Pump = boolField(r.Pump)
	cmd.Fan = boolField(r.Fan)
	cmd.Heater = boolField(r.Heater)

	if r.UpdateURL != nil && *r.UpdateURL != "" {
		cmd.UpdateURL = r.UpdateURL
	}

	return cmd, nil
}

// errPayloadTooLarge is unexported to avoid widening the domain error
// surface for a transport-layer detail; callers that need to match on it
// can use errors.Is against the wrapped sentinel in domain.
var errPayloadTooLarge = domain.ErrPayloadTooLarge

func firstInRange(min, max float64, candidates ...*float64) *float64 {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if *c < min || *c > max {
			continue
		}
		v := *c
		return &v
	}
	return nil
}

func boolField(v *int) *bool {
	if v == nil {
		return nil
	}
	switch *v {
	case 0:
		b := false
		return &b
	case 1:
		b := true
		return &b
	default:
		return nil
	}
}
