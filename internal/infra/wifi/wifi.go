// Package wifi implements the provisioning state machine:
// IDLE -> CONNECT_SAVED -> ONLINE/OFFLINE -> PORTAL -> ONLINE, plus the
// self-healing 30s reconnect while offline. The portal itself (the captive
// HTTP form) lives in infra/portal; this package only owns the state
// transitions and timing.
package wifi

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
	"github.com/greenhouse-net/controller/internal/infra/metrics"
)

// State names the provisioning state machine's states.
type State int

const (
	StateIdle State = iota
	StateConnectSaved
	StateOnline
	StateOffline
	StatePortal
)

const (
	bootConnectTimeout = 10 * time.Second
	portalTimeout      = 120 * time.Second
	reconnectInterval  = 30 * time.Second
)

// PortalHost starts/stops the captive-portal HTTP server (infra/portal).
type PortalHost interface {
	Start(ctx context.Context) error
	Stop()
}

// Machine owns the WiFi provisioning lifecycle.
type Machine struct {
	radio  domain.WifiRadio
	portal PortalHost
	conn   *domain.ConnStateHolder
	ssid   string
	pass   string
	log    *logrus.Entry

	state           State
	portalStartedAt time.Time
}

// New creates a provisioning state machine. ssid/pass are the portal's own
// access-point credentials, not the saved station credentials.
func New(radio domain.WifiRadio, portal PortalHost, conn *domain.ConnStateHolder, ssid, pass string, log *logrus.Logger) *Machine {
	return &Machine{
		radio:  radio,
		portal: portal,
		conn:   conn,
		ssid:   ssid,
		pass:   pass,
		log:    log.WithField("task", "wifi"),
		state:  StateIdle,
	}
}

// BootConnect attempts connection with saved credentials for up to 10s at
// startup. On failure it does not start a portal — it goes straight to
// OFFLINE so the device runs headlessly when the router is off at power-up.
func (m *Machine) BootConnect(ctx context.Context) {
	m.state = StateConnectSaved
	connectCtx, cancel := context.WithTimeout(ctx, bootConnectTimeout)
	defer cancel()

	if err := m.radio.ConnectSaved(connectCtx); err != nil {
		m.log.WithError(err).Info("boot-time wifi connect failed, staying offline")
		m.state = StateOffline
		m.conn.Mutate(func(cs domain.ConnState) domain.ConnState { cs.WifiUp = false; return cs })
		metrics.WifiUp.Set(0)
		return
	}

	m.state = StateOnline
	m.conn.Mutate(func(cs domain.ConnState) domain.ConnState { cs.WifiUp = true; return cs })
	metrics.WifiUp.Set(1)
}

// Tick runs one iteration of the state machine's background behavior: the
// 30s self-healing reconnect while OFFLINE, the 120s portal timeout, and
// servicing button-driven portal start/stop requests. lastReconnectAttempt
// is owned by the caller (the connectivity task) and threaded through so
// Tick stays free of its own timers.
func (m *Machine) Tick(ctx context.Context, lastReconnectAttempt *time.Time) {
	cs := m.conn.Load()

	if m.state == StatePortal {
		if cs.StopPortalPending || time.Since(m.portalStartedAt) > portalTimeout {
			m.stopPortal()
		}
		return
	}

	if cs.ReconfigurePending {
		m.conn.Mutate(func(cs domain.ConnState) domain.ConnState { cs.ReconfigurePending = false; return cs })
		m.startPortal(ctx)
		return
	}

	if m.state == StateOffline {
		if time.Since(*lastReconnectAttempt) < reconnectInterval {
			return
		}
		*lastReconnectAttempt = time.Now()

		connectCtx, cancel := context.WithTimeout(ctx, bootConnectTimeout)
		err := m.radio.ConnectSaved(connectCtx)
		cancel()
		if err != nil {
			m.log.WithError(err).Debug("self-healing reconnect attempt failed")
			return
		}
		m.state = StateOnline
		m.conn.Mutate(func(cs domain.ConnState) domain.ConnState { cs.WifiUp = true; return cs })
		metrics.WifiUp.Set(1)
	}
}

func (m *Machine) startPortal(ctx context.Context) {
	if err := m.radio.StartAP(m.ssid, m.pass); err != nil {
		m.log.WithError(err).Error("failed to start provisioning access point")
		return
	}
	if err := m.portal.Start(ctx); err != nil {
		m.log.WithError(err).Error("failed to start captive portal server")
		_ = m.radio.StopAP()
		return
	}
	m.state = StatePortal
	m.portalStartedAt = time.Now()
	m.conn.Mutate(func(cs domain.ConnState) domain.ConnState {
		cs.PortalActive = true
		cs.StopPortalPending = false
		return cs
	})
	m.log.Info("provisioning portal started")
}

func (m *Machine) stopPortal() {
	m.portal.Stop()
	_ = m.radio.StopAP()
	m.state = StateOffline
	m.conn.Mutate(func(cs domain.ConnState) domain.ConnState {
		cs.PortalActive = false
		cs.StopPortalPending = false
		return cs
	})
	m.log.Info("provisioning portal stopped, resuming self-healing reconnect")
}

// IsOnline reports whether the machine believes WiFi is currently up.
func (m *Machine) IsOnline() bool { return m.state == StateOnline }

// State returns the current provisioning state (for status reporting).
func (m *Machine) State() State { return m.state }

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnectSaved:
		return "CONNECT_SAVED"
	case StateOnline:
		return "ONLINE"
	case StateOffline:
		return "OFFLINE"
	case StatePortal:
		return "PORTAL"
	default:
		return "UNKNOWN"
	}
}
