// Package ui drives the local status display and the physical
// reconfiguration button. It never blocks: the button only toggles
// intents consumed by the connectivity task.
package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
)

// RenderPeriod is the LCD refresh cadence.
const RenderPeriod = 500 * time.Millisecond

// debounce is the button's edge debounce window.
const debounce = 200 * time.Millisecond

// Task renders the 4-row status display and debounces the physical button.
type Task struct {
	display   domain.Display
	sensors   *domain.SensorState
	actuators *domain.ActuatorStateHolder
	conn      *domain.ConnStateHolder
	log       *logrus.Entry

	mu         sync.Mutex
	lastButton time.Time
}

// New creates a UI task.
func New(display domain.Display, sensors *domain.SensorState, actuators *domain.ActuatorStateHolder, conn *domain.ConnStateHolder, log *logrus.Logger) *Task {
	return &Task{
		display:   display,
		sensors:   sensors,
		actuators: actuators,
		conn:      conn,
		log:       log.WithField("task", "ui"),
	}
}

// Run blocks, re-rendering every RenderPeriod until ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	ticker := time.NewTicker(RenderPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.render()
		}
	}
}

func (t *Task) render() {
	conn := t.conn.Load()
	rows := [4]string{}

	if conn.PortalActive || conn.ReconfigurePending {
		rows = [4]string{
			"** PROVISIONING **",
			"Connect to:",
			"Greenhouse-Setup",
			"then open the portal",
		}
	} else {
		snap := t.sensors.Load()
		act := t.actuators.Load()
		rows[0] = fmt.Sprintf("T:%5.1fC H:%4.1f%%", snap.TempC, snap.HumPct)
		rows[1] = fmt.Sprintf("Soil:%3.0f%% Tank:%3.0f%%", snap.SoilPct, snap.TankPct)
		rows[2] = fmt.Sprintf("P:%s F:%s H:%s", onOff(act.Pump), onOff(act.Fan), onOff(act.Heater))
		rows[3] = fmt.Sprintf("Mode:%-6s %s", act.Mode, linkGlyph(conn))
	}

	for row, text := range rows {
		if err := t.display.LCDWrite(row, text); err != nil {
			t.log.WithError(err).Debug("lcd write failed")
		}
	}
}

func onOff(on bool) string {
	if on {
		return "ON "
	}
	return "OFF"
}

func linkGlyph(conn domain.ConnState) string {
	switch {
	case conn.MqttUp:
		return "*"
	case conn.WifiUp:
		return "~"
	default:
		return "x"
	}
}

// ButtonPressed is called by the button's interrupt/poll handler on a
// falling edge. It debounces in software and, depending on portal state,
// requests either "stop portal" or "start reconfiguration" — it never
// blocks.
func (t *Task) ButtonPressed() {
	t.mu.Lock()
	now := time.Now()
	if now.Sub(t.lastButton) < debounce {
		t.mu.Unlock()
		return
	}
	t.lastButton = now
	t.mu.Unlock()

	t.conn.Mutate(func(cs domain.ConnState) domain.ConnState {
		if cs.PortalActive {
			cs.StopPortalPending = true
		} else {
			cs.ReconfigurePending = true
		}
		return cs
	})
}
