// Package sensing runs the periodic acquisition task: temperature/
// humidity, CO2/TVOC, soil moisture, and water-tank distance, each with
// its own retain-previous-on-error behavior.
package sensing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
	"github.com/greenhouse-net/controller/internal/infra/control"
	"github.com/greenhouse-net/controller/internal/infra/watchdog"
)

// Period is the sensing task's cycle length.
const Period = 2 * time.Second

// ultrasonicTimeout bounds the echo-width measurement.
const ultrasonicTimeout = 30 * time.Millisecond

// Task samples sensors every Period and publishes a coherent snapshot to
// state.
type Task struct {
	sensors domain.Sensors
	state   *domain.SensorState
	cfg     *domain.ConfigHolder
	wd      *watchdog.Watchdog
	log     *logrus.Entry
}

// New creates a sensing task. cfg is read each cycle for the calibration
// and tank-distance fallback values.
func New(sensors domain.Sensors, state *domain.SensorState, cfg *domain.ConfigHolder, wd *watchdog.Watchdog, log *logrus.Logger) *Task {
	return &Task{
		sensors: sensors,
		state:   state,
		cfg:     cfg,
		wd:      wd,
		log:     log.WithField("task", "sensing"),
	}
}

// Run blocks, sampling every Period until ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	t.wd.Register("sensing")
	ticker := time.NewTicker(Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.cycle(ctx)
			t.wd.Pet("sensing")
		}
	}
}

func (t *Task) cycle(ctx context.Context) {
	prev := t.state.Load()
	cfg := t.cfg.Load()
	next := prev

	if tempC, humPct, err := t.sensors.ReadTempHumidity(ctx); err != nil {
		t.log.WithError(err).Debug("temp/humidity read failed, retaining previous value")
	} else {
		next.TempC = tempC
		next.HumPct = humPct
	}

	if eco2, tvoc, avail, err := t.sensors.ReadAirQuality(ctx); err != nil {
		t.log.WithError(err).Debug("air quality read failed, retaining previous value")
	} else if avail {
		next.Eco2Ppm = eco2
		next.TvocPpb = tvoc
	}

	if raw, err := t.sensors.ReadSoilRaw(ctx); err != nil {
		t.log.WithError(err).Debug("soil read failed, retaining previous value")
	} else {
		next.SoilPct = soilRawToPercent(raw, cfg.CalAirRaw, cfg.CalWaterRaw)
	}

	distCtx, cancel := context.WithTimeout(ctx, ultrasonicTimeout)
	dist, err := t.sensors.MeasureDistanceCm(distCtx)
	cancel()
	if err != nil {
		// Fail-safe: assume empty, which blocks the pump (§4.2, §8).
		next.TankDistCm = cfg.TankEmptyDist
		t.log.WithError(err).Debug("ultrasonic timeout, assuming empty tank")
	} else {
		next.TankDistCm = dist
	}

	next.TankPct, _ = control.TankLevel(next.TankDistCm, cfg)
	next.SampledAt = time.Now()
	t.state.Store(next)
}

// soilRawToPercent maps a raw ADC count to percent moisture: clamp raw to
// [calWaterRaw, calAirRaw] (order-independent), then linearly map so that
// calAirRaw -> 0% and calWaterRaw -> 100%; reversed calibration is
// supported symmetrically.
func soilRawToPercent(raw, calAirRaw, calWaterRaw int) float64 {
	lo, hi := calWaterRaw, calAirRaw
	if lo > hi {
		lo, hi = hi, lo
	}
	if raw < lo {
		raw = lo
	}
	if raw > hi {
		raw = hi
	}
	span := calAirRaw - calWaterRaw
	if span == 0 {
		return 0
	}
	return float64(calAirRaw-raw) / float64(span) * 100
}
