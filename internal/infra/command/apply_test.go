package command

import (
	"testing"

	"github.com/greenhouse-net/controller/internal/domain"
	"github.com/greenhouse-net/controller/internal/infra/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestApply_ModeBeforeOverridesOrdering(t *testing.T) {
	st := newTestStore(t)
	cfg := domain.NewConfigHolder(domain.DefaultConfig())
	actuators := &domain.ActuatorStateHolder{}
	actuators.Store(domain.ActuatorState{Mode: domain.ModeAuto})

	manual := domain.ModeManual
	pumpOn := true
	cmd := domain.Command{Mode: &manual, Pump: &pumpOn}

	Apply(cmd, cfg, st, actuators)

	next := actuators.Load()
	if next.Mode != domain.ModeManual {
		t.Fatalf("Mode = %v, want ModeManual", next.Mode)
	}
	if !next.OverridePump {
		t.Error("OverridePump should be honored once mode switches to MANUAL in the same command")
	}
}

func TestApply_OverridesIgnoredWhileAuto(t *testing.T) {
	st := newTestStore(t)
	cfg := domain.NewConfigHolder(domain.DefaultConfig())
	actuators := &domain.ActuatorStateHolder{}
	actuators.Store(domain.ActuatorState{Mode: domain.ModeAuto})

	pumpOn := true
	cmd := domain.Command{Pump: &pumpOn}

	Apply(cmd, cfg, st, actuators)

	next := actuators.Load()
	if next.OverridePump {
		t.Error("override fields must be ignored while mode is AUTO")
	}
}

func TestApply_SwitchingToAutoClearsOverrides(t *testing.T) {
	st := newTestStore(t)
	cfg := domain.NewConfigHolder(domain.DefaultConfig())
	actuators := &domain.ActuatorStateHolder{}
	actuators.Store(domain.ActuatorState{
		Mode:         domain.ModeManual,
		OverridePump: true,
	})

	auto := domain.ModeAuto
	Apply(domain.Command{Mode: &auto}, cfg, st, actuators)

	next := actuators.Load()
	if next.OverridePump {
		t.Error("entering AUTO must clear latched overrides")
	}
}

func TestApply_InvalidCrossFieldConfigRejectedWithoutMutation(t *testing.T) {
	st := newTestStore(t)
	original := domain.DefaultConfig()
	cfg := domain.NewConfigHolder(original)
	actuators := &domain.ActuatorStateHolder{}

	// temp_min >= temp_max violates the cross-field invariant.
	badMin := 35.0
	Apply(domain.Command{TempMin: &badMin}, cfg, st, actuators)

	if cfg.Load().TempMin != original.TempMin {
		t.Errorf("TempMin = %v, want unchanged %v after invalid commit", cfg.Load().TempMin, original.TempMin)
	}
}

func TestApply_ValidConfigFieldPersists(t *testing.T) {
	st := newTestStore(t)
	cfg := domain.NewConfigHolder(domain.DefaultConfig())
	actuators := &domain.ActuatorStateHolder{}

	newMin := 15.0
	Apply(domain.Command{TempMin: &newMin}, cfg, st, actuators)

	if cfg.Load().TempMin != 15 {
		t.Errorf("TempMin = %v, want 15", cfg.Load().TempMin)
	}
	if persisted := st.LoadConfig().TempMin; persisted != 15 {
		t.Errorf("persisted TempMin = %v, want 15", persisted)
	}
}

func TestApply_ReturnsOTAURL(t *testing.T) {
	st := newTestStore(t)
	cfg := domain.NewConfigHolder(domain.DefaultConfig())
	actuators := &domain.ActuatorStateHolder{}

	url := "https://example.com/fw.bin"
	got := Apply(domain.Command{UpdateURL: &url}, cfg, st, actuators)

	if got == nil || *got != url {
		t.Errorf("Apply() ota url = %v, want %q", got, url)
	}
}
