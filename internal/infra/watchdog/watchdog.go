// Package watchdog models the hardware watchdog timer shared by the four
// cooperative tasks: each task registers with a 30s timeout and pets it
// once per cycle; a missed pet reboots the device, which then feeds the
// boot-health protocol (infra/ota). Long blocking operations (TLS
// handshakes, OTA downloads, portal waits) explicitly de-register for
// their duration via the Suspend envelope.
package watchdog

import (
	"sync"
	"time"
)

// Timeout is the watchdog's missed-pet timeout.
const Timeout = 30 * time.Second

// Watchdog tracks the last-pet time for each registered task.
type Watchdog struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// New creates an empty watchdog tracker.
func New() *Watchdog {
	return &Watchdog{last: make(map[string]time.Time)}
}

// Register adds a task to the watchdog with an initial pet.
func (w *Watchdog) Register(task string) {
	w.mu.Lock()
	w.last[task] = time.Now()
	w.mu.Unlock()
}

// Pet records that task is alive for this cycle.
func (w *Watchdog) Pet(task string) {
	w.mu.Lock()
	w.last[task] = time.Now()
	w.mu.Unlock()
}

// Deregister removes task from monitoring — used for the duration of a
// long blocking operation (OTA download, portal wait).
func (w *Watchdog) Deregister(task string) {
	w.mu.Lock()
	delete(w.last, task)
	w.mu.Unlock()
}

// Expired reports every registered task whose last pet is older than
// Timeout. In this re-architecture, an expired task triggers a log-level
// alert rather than an actual MCU reset (there is no real watchdog
// register to starve on the host this runs on); infra/ota's boot-health
// counter models the consequence a real reboot would have.
func (w *Watchdog) Expired() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var expired []string
	now := time.Now()
	for task, last := range w.last {
		if now.Sub(last) > Timeout {
			expired = append(expired, task)
		}
	}
	return expired
}

// Suspend de-registers task, runs fn, then re-registers it on return —
// the long-operation envelope used by OTA downloads and blocking portal
// waits so the watchdog never fires for intentional long I/O.
func (w *Watchdog) Suspend(task string, fn func() error) error {
	w.Deregister(task)
	defer w.Register(task)
	return fn()
}
