// Package ota implements the OTA download path and the boot-verification/
// rollback governance protocol. The boot-verification state machine is
// the safety-critical part: a bad image must not brick the device.
package ota

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
	"github.com/greenhouse-net/controller/internal/infra/metrics"
	"github.com/greenhouse-net/controller/internal/infra/store"
	"github.com/greenhouse-net/controller/internal/infra/watchdog"
)

// maxCrashCount is the boot-verification threshold: at crash_count >= 3
// a rollback is requested.
const maxCrashCount = 3

// downloadTimeout bounds the OTA HTTP download.
const downloadTimeout = 10 * time.Minute

// Manager owns the boot-verification counter and drives rollback/OTA.
type Manager struct {
	store   *store.Store
	updater domain.FirmwareUpdater
	wd      *watchdog.Watchdog
	log     *logrus.Entry

	// pendingRollbackAlert is set by VerifyBootOrRollback when this boot is
	// itself the post-rollback boot, so the first successful MQTT connect
	// can emit the ROLLBACK_EXECUTED alert.
	pendingRollbackAlert bool
}

// New creates an OTA manager.
func New(st *store.Store, updater domain.FirmwareUpdater, wd *watchdog.Watchdog, log *logrus.Logger) *Manager {
	return &Manager{store: st, updater: updater, wd: wd, log: log.WithField("task", "ota")}
}

// VerifyBootOrRollback runs the boot-verification protocol. Call once at
// startup before any other component reads boot health. If a rollback is
// requested, updater.Reboot is called
// and this function does not return (the process is expected to exit via
// the reboot, but for a host-process re-architecture it returns after
// requesting it so the caller can exit cleanly).
func (m *Manager) VerifyBootOrRollback(ctx context.Context) {
	bh := m.store.LoadBootHealth()

	if bh.CrashCount >= maxCrashCount {
		if err := m.updater.FlashRollback(); err != nil {
			m.log.WithError(err).Warn("no rollback slot available, continuing on current image")
			bh.CrashCount = 0
			_ = m.store.SaveBootHealth(bh)
			return
		}

		bh.RollbackHappened = true
		bh.CrashCount = 0
		_ = m.store.SaveBootHealth(bh)
		metrics.RollbacksExecuted.Inc()
		m.log.Warn("rollback requested after repeated unverified boots, rebooting")
		m.updater.Reboot()
		return
	}

	bh.CrashCount++
	_ = m.store.SaveBootHealth(bh)
	metrics.CrashCount.Set(float64(bh.CrashCount))

	if bh.RollbackHappened {
		m.pendingRollbackAlert = true
	}
}

// ClearOnMqttConnect resets crash_count to 0 — the "can reach broker" is
// the liveness proof of a good image.
func (m *Manager) ClearOnMqttConnect() {
	bh := m.store.LoadBootHealth()
	if bh.CrashCount == 0 {
		return
	}
	bh.CrashCount = 0
	_ = m.store.SaveBootHealth(bh)
	metrics.CrashCount.Set(0)
}

// DrainRollbackAlert returns a ROLLBACK_EXECUTED alert if this boot is the
// post-rollback boot and the alert has not yet been drained, clearing the
// pending flag. Call after a successful MQTT connect; the caller must
// publish with an ack-aware QoS and only call CommitRollbackCleared once
// the publish is acknowledged.
func (m *Manager) DrainRollbackAlert() (domain.Alert, bool) {
	if !m.pendingRollbackAlert {
		return domain.Alert{}, false
	}
	return domain.Alert{
		ID:        uuid.NewString(),
		Alert:     domain.AlertRollbackExecuted,
		Message:   "firmware rolled back after repeated unverified boots",
		Timestamp: time.Now().Unix(),
	}, true
}

// CommitRollbackCleared clears rb_happened in persistence once the
// ROLLBACK_EXECUTED publish has been broker-acknowledged — cleared iff
// the publish call succeeded, so the alert fires at most once.
func (m *Manager) CommitRollbackCleared() {
	m.pendingRollbackAlert = false
	bh := m.store.LoadBootHealth()
	if !bh.RollbackHappened {
		return
	}
	bh.RollbackHappened = false
	_ = m.store.SaveBootHealth(bh)
}

// Download streams url into the inactive firmware slot via updater, after
// de-registering the connectivity task's watchdog for the duration. OTA is
// not cancellable once it starts beyond ctx's own deadline/cancellation.
func (m *Manager) Download(ctx context.Context, url string) error {
	jobID := uuid.NewString()
	log := m.log.WithField("ota_job", jobID)
	log.WithField("url", url).Info("starting ota download")

	err := m.wd.Suspend("connectivity", func() error {
		dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
		defer cancel()
		return m.updater.FlashUpdate(dlCtx, url)
	})
	if err != nil {
		log.WithError(err).Warn("ota download failed, continuing on current image")
		return fmt.Errorf("%w: %v", domain.ErrOTADownloadFailed, err)
	}

	log.Info("ota image installed, rebooting to verify")
	m.updater.Reboot()
	return nil
}

// HTTPDownloadStream is a helper FirmwareUpdater implementations can use to
// stream an HTTPS image with redirect-following into an io.Writer — kept
// here as shared infrastructure rather than duplicated per hardware target.
func HTTPDownloadStream(ctx context.Context, url string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build ota request: %w", err)
	}

	client := &http.Client{} // default client follows redirects
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ota request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ota server returned status %d", resp.StatusCode)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("stream ota image: %w", err)
	}
	return nil
}
