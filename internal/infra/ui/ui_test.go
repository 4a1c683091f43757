package ui

import (
	"testing"
	"time"

	"github.com/greenhouse-net/controller/internal/domain"
)

func TestButtonPressed_DebouncesRapidPresses(t *testing.T) {
	conn := &domain.ConnStateHolder{}
	task := &Task{conn: conn}

	task.ButtonPressed()
	task.ButtonPressed() // within the debounce window, should be ignored

	if !conn.Load().ReconfigurePending {
		t.Fatal("first press should set ReconfigurePending")
	}

	// Reset and press again immediately: the second call above must not
	// have reset lastButton twice, so consuming the flag and pressing again
	// right away should still be debounced.
	conn.Mutate(func(cs domain.ConnState) domain.ConnState { cs.ReconfigurePending = false; return cs })
	task.ButtonPressed()
	if conn.Load().ReconfigurePending {
		t.Error("press within the debounce window should be ignored")
	}
}

func TestButtonPressed_TogglesBetweenStartAndStopByPortalState(t *testing.T) {
	conn := &domain.ConnStateHolder{}
	task := &Task{conn: conn}

	task.ButtonPressed()
	if !conn.Load().ReconfigurePending {
		t.Fatal("expected ReconfigurePending when portal is not active")
	}

	conn.Mutate(func(cs domain.ConnState) domain.ConnState {
		cs.ReconfigurePending = false
		cs.PortalActive = true
		return cs
	})

	task.lastButton = time.Now().Add(-debounce - time.Millisecond)
	task.ButtonPressed()
	if !conn.Load().StopPortalPending {
		t.Error("expected StopPortalPending when portal is active")
	}
}

func TestOnOff(t *testing.T) {
	if onOff(true) != "ON " {
		t.Errorf("onOff(true) = %q, want %q", onOff(true), "ON ")
	}
	if onOff(false) != "OFF" {
		t.Errorf("onOff(false) = %q, want %q", onOff(false), "OFF")
	}
}

func TestLinkGlyph(t *testing.T) {
	tests := []struct {
		conn domain.ConnState
		want string
	}{
		{domain.ConnState{MqttUp: true}, "*"},
		{domain.ConnState{WifiUp: true}, "~"},
		{domain.ConnState{}, "x"},
	}
	for _, tt := range tests {
		if got := linkGlyph(tt.conn); got != tt.want {
			t.Errorf("linkGlyph(%+v) = %q, want %q", tt.conn, got, tt.want)
		}
	}
}
