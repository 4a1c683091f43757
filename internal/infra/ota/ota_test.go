package ota

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
	"github.com/greenhouse-net/controller/internal/infra/store"
	"github.com/greenhouse-net/controller/internal/infra/watchdog"
)

type fakeUpdater struct {
	rollbackErr error
	rebooted    bool
}

func (f *fakeUpdater) FlashUpdate(ctx context.Context, url string) error { return nil }
func (f *fakeUpdater) FlashRollback() error                             { return f.rollbackErr }
func (f *fakeUpdater) Reboot()                                          { f.rebooted = true }

func newTestManager(t *testing.T, updater domain.FirmwareUpdater) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(st, updater, watchdog.New(), log), st
}

func TestVerifyBootOrRollback_IncrementsCrashCountEachBoot(t *testing.T) {
	updater := &fakeUpdater{}
	m, st := newTestManager(t, updater)
	ctx := context.Background()

	m.VerifyBootOrRollback(ctx)
	if got := st.LoadBootHealth().CrashCount; got != 1 {
		t.Fatalf("CrashCount = %d, want 1 after first boot", got)
	}

	m.VerifyBootOrRollback(ctx)
	if got := st.LoadBootHealth().CrashCount; got != 2 {
		t.Fatalf("CrashCount = %d, want 2 after second unverified boot", got)
	}
	if updater.rebooted {
		t.Error("should not request reboot before hitting maxCrashCount")
	}
}

func TestVerifyBootOrRollback_RollsBackAtThreshold(t *testing.T) {
	updater := &fakeUpdater{}
	m, st := newTestManager(t, updater)
	ctx := context.Background()

	for i := 0; i < maxCrashCount; i++ {
		m.VerifyBootOrRollback(ctx)
	}

	if !updater.rebooted {
		t.Fatal("expected Reboot() to be called once crash_count reaches the threshold")
	}
	bh := st.LoadBootHealth()
	if !bh.RollbackHappened {
		t.Error("RollbackHappened should be set after a rollback is requested")
	}
	if bh.CrashCount != 0 {
		t.Errorf("CrashCount = %d, want reset to 0 after rollback request", bh.CrashCount)
	}
}

func TestVerifyBootOrRollback_NoRollbackSlotContinuesOnCurrentImage(t *testing.T) {
	updater := &fakeUpdater{rollbackErr: errors.New("no slot")}
	m, st := newTestManager(t, updater)
	ctx := context.Background()

	for i := 0; i < maxCrashCount; i++ {
		m.VerifyBootOrRollback(ctx)
	}

	if updater.rebooted {
		t.Error("should not reboot when no rollback slot is available")
	}
	if got := st.LoadBootHealth().CrashCount; got != 0 {
		t.Errorf("CrashCount = %d, want reset to 0 even without a rollback slot", got)
	}
}

func TestClearOnMqttConnect_ResetsCrashCount(t *testing.T) {
	updater := &fakeUpdater{}
	m, st := newTestManager(t, updater)
	ctx := context.Background()

	m.VerifyBootOrRollback(ctx)
	m.ClearOnMqttConnect()

	if got := st.LoadBootHealth().CrashCount; got != 0 {
		t.Errorf("CrashCount = %d, want 0 after MQTT connect clears it", got)
	}
}

func TestDrainRollbackAlert_OnlyFiresOnTheBootAfterRollback(t *testing.T) {
	updater := &fakeUpdater{}
	m, st := newTestManager(t, updater)
	ctx := context.Background()

	if _, ok := m.DrainRollbackAlert(); ok {
		t.Error("no alert should be pending before any rollback occurred")
	}

	for i := 0; i < maxCrashCount; i++ {
		m.VerifyBootOrRollback(ctx)
	}
	if _, ok := m.DrainRollbackAlert(); ok {
		t.Error("the rollback's own boot must not itself see the alert — it fires on the next boot")
	}

	// The reboot lands on a fresh process; a new Manager over the same
	// store observes rb_happened and must now surface the alert.
	log := logrus.New()
	log.SetOutput(io.Discard)
	next := New(st, updater, watchdog.New(), log)
	next.VerifyBootOrRollback(ctx)

	alert, ok := next.DrainRollbackAlert()
	if !ok {
		t.Fatal("expected a pending ROLLBACK_EXECUTED alert on the boot after rollback")
	}
	if alert.Alert != domain.AlertRollbackExecuted {
		t.Errorf("Alert = %v, want %v", alert.Alert, domain.AlertRollbackExecuted)
	}

	if _, ok := next.DrainRollbackAlert(); ok {
		t.Error("DrainRollbackAlert should not fire twice without CommitRollbackCleared")
	}
}

func TestCommitRollbackCleared_ClearsPersistedFlagOnce(t *testing.T) {
	updater := &fakeUpdater{}
	m, st := newTestManager(t, updater)
	ctx := context.Background()

	for i := 0; i < maxCrashCount; i++ {
		m.VerifyBootOrRollback(ctx)
	}
	if !st.LoadBootHealth().RollbackHappened {
		t.Fatal("setup: expected RollbackHappened to be set")
	}

	m.CommitRollbackCleared()
	if st.LoadBootHealth().RollbackHappened {
		t.Error("RollbackHappened should be cleared once the alert publish is committed")
	}
}
