// Package simdrivers provides simulated implementations of the domain
// port interfaces (Sensors, Actuators, Display, WifiRadio, FirmwareUpdater)
// for running the controller without real hardware attached. A hardware
// build wires in real drivers instead; this package exists so
// `greenhoused serve` runs out of the box.
package simdrivers

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/greenhouse-net/controller/internal/domain"
)

// Sensors simulates slowly drifting readings around plausible greenhouse
// values.
type Sensors struct {
	mu       sync.Mutex
	tempC    float64
	humPct   float64
	soilRaw  int
	distance float64
}

// NewSensors creates a simulated sensor bundle seeded at mid-range values.
func NewSensors() *Sensors {
	return &Sensors{tempC: 24, humPct: 55, soilRaw: 2800, distance: 15}
}

func (s *Sensors) ReadTempHumidity(ctx context.Context) (tempC, humPct float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempC += (rand.Float64() - 0.5) * 0.4
	s.humPct += (rand.Float64() - 0.5) * 1.0
	s.humPct = clamp(s.humPct, 0, 100)
	return s.tempC, s.humPct, nil
}

func (s *Sensors) ReadAirQuality(ctx context.Context) (eco2Ppm, tvocPpb int, sampleAvailable bool, err error) {
	return 450 + rand.Intn(100), 80 + rand.Intn(40), true, nil
}

func (s *Sensors) ReadSoilRaw(ctx context.Context) (raw int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.soilRaw += rand.Intn(21) - 10
	return s.soilRaw, nil
}

func (s *Sensors) MeasureDistanceCm(ctx context.Context) (cm float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distance += (rand.Float64() - 0.5) * 0.5
	s.distance = clamp(s.distance, 1, 40)
	return s.distance, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Actuators logs relay transitions instead of driving real relays.
type Actuators struct {
	mu    sync.Mutex
	state map[domain.RelayID]bool
}

// NewActuators creates a simulated relay bank, all off.
func NewActuators() *Actuators {
	return &Actuators{state: make(map[domain.RelayID]bool)}
}

func (a *Actuators) SetRelay(id domain.RelayID, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state[id] = on
	return nil
}

// Display writes rendered rows to an in-memory buffer a status command can
// inspect instead of a physical LCD.
type Display struct {
	mu   sync.Mutex
	rows [4]string
}

// NewDisplay creates a simulated 4-row display.
func NewDisplay() *Display { return &Display{} }

func (d *Display) LCDWrite(row int, text string) error {
	if row < 0 || row > 3 {
		return fmt.Errorf("row %d out of range", row)
	}
	d.mu.Lock()
	d.rows[row] = text
	d.mu.Unlock()
	return nil
}

// Rows returns a snapshot of the rendered display.
func (d *Display) Rows() [4]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rows
}

// Radio simulates a WiFi stack with in-memory saved credentials. Until
// SaveCredentials is called it behaves like an unprovisioned device, so the
// provisioning state machine exercises its PORTAL path on first boot.
type Radio struct {
	mu    sync.Mutex
	ssid  string
	pass  string
	apUp  bool
	saved bool
}

// NewRadio creates a simulated radio with no saved credentials, forcing
// the provisioning portal path on first boot.
func NewRadio() *Radio { return &Radio{} }

func (r *Radio) ConnectSaved(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.saved {
		return domain.ErrWifiConnectFailed
	}
	select {
	case <-time.After(50 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Radio) StartAP(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apUp = true
	return nil
}

func (r *Radio) StopAP() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apUp = false
	return nil
}

func (r *Radio) SaveCredentials(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ssid, r.pass, r.saved = ssid, password, true
	return nil
}

// Updater simulates the bootloader's A/B update mechanism: it "installs"
// by sleeping proportionally to a fake image size and always succeeds.
type Updater struct{}

// NewUpdater creates a simulated firmware updater.
func NewUpdater() *Updater { return &Updater{} }

func (u *Updater) FlashUpdate(ctx context.Context, url string) error {
	select {
	case <-time.After(200 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Updater) FlashRollback() error {
	return nil
}

func (u *Updater) Reboot() {
	// No real process to restart under simulation; callers observe this as
	// a no-op and keep running so a developer can continue testing.
}
