package domain

import "context"

// ─── Port Interfaces ────────────────────────────────────────────────────────
// These interfaces are the hardware boundary: sensor and actuator drivers
// are opaque capability traits, out of scope for this module. Infra
// packages consume them; a hardware-specific build provides the concrete
// implementation (not part of this repo).

// Sensors is the opaque trait bundle read by the sensing task.
type Sensors interface {
	// ReadTempHumidity returns temperature (°C) and humidity (%). An error
	// means the driver had a transient fault; the caller retains the
	// previous snapshot value (§4.2, §7).
	ReadTempHumidity(ctx context.Context) (tempC, humPct float64, err error)

	// ReadAirQuality returns eCO2 (ppm) and TVOC (ppb). SampleAvailable
	// reports whether a fresh sample is ready; when false the caller
	// retains the previous values (§4.2).
	ReadAirQuality(ctx context.Context) (eco2Ppm, tvocPpb int, sampleAvailable bool, err error)

	// ReadSoilRaw returns the raw ADC count from the capacitive soil probe.
	ReadSoilRaw(ctx context.Context) (raw int, err error)

	// MeasureDistanceCm triggers an ultrasonic ping and returns the echo
	// distance in centimeters. Implementations must respect the caller's
	// context deadline (§4.2: 30ms timeout) and return
	// ErrUltrasonicTimeout on timeout.
	MeasureDistanceCm(ctx context.Context) (cm float64, err error)
}

// Actuators is the opaque trait for the three binary relay outputs (§4.3).
type Actuators interface {
	SetRelay(id RelayID, on bool) error
}

// RelayID identifies one of the three binary relay outputs.
type RelayID int

const (
	RelayPump RelayID = iota
	RelayFan
	RelayHeater
)

// Display is the opaque trait for the 20x4 character LCD (§4.4, §6).
type Display interface {
	// LCDWrite writes text to the given row (0-3). Implementations should
	// pad/truncate to the physical column count; this port does not
	// prescribe it.
	LCDWrite(row int, text string) error
}

// WifiRadio is the opaque trait for the platform's WiFi stack, driving
// the provisioning state machine.
type WifiRadio interface {
	// ConnectSaved attempts a connection using previously saved
	// credentials. Returns an error if none are saved or the attempt
	// fails/times out.
	ConnectSaved(ctx context.Context) error

	// StartAP brings up the captive-portal access point with the given
	// SSID/password.
	StartAP(ssid, password string) error

	// StopAP tears down the access point.
	StopAP() error

	// SaveCredentials persists WiFi credentials submitted through the
	// portal for future ConnectSaved calls.
	SaveCredentials(ssid, password string) error
}

// FirmwareUpdater is the opaque trait for the bootloader's A/B update
// mechanism.
type FirmwareUpdater interface {
	// FlashUpdate streams the image at url into the inactive slot and
	// marks it bootable. It does not reboot.
	FlashUpdate(ctx context.Context, url string) error

	// FlashRollback requests the bootloader boot the previous slot on
	// next reset. Returns ErrNoRollbackSlot if none exists.
	FlashRollback() error

	// Reboot requests an immediate device reset.
	Reboot()
}
