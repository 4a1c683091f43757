package domain

import "sync"

// SharedState implements the single-producer/multiple-consumer discipline:
// each field group is updated behind a short critical section (no I/O held
// under the lock) and read as a coherent snapshot, so the control task
// never tears a multi-field read across a partial update.

// SensorState holds the live sensor snapshot.
type SensorState struct {
	mu   sync.RWMutex
	snap SensorSnapshot
}

func (s *SensorState) Store(snap SensorSnapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *SensorState) Load() SensorSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ActuatorStateHolder holds the volatile actuator/mode/override state.
type ActuatorStateHolder struct {
	mu    sync.RWMutex
	state ActuatorState
}

func (a *ActuatorStateHolder) Store(state ActuatorState) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}

func (a *ActuatorStateHolder) Load() ActuatorState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// ConnStateHolder holds the volatile connectivity/provisioning flags.
type ConnStateHolder struct {
	mu    sync.RWMutex
	state ConnState
}

func (c *ConnStateHolder) Store(state ConnState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *ConnStateHolder) Load() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Mutate applies fn to a copy of the current state and stores the result.
// fn must not perform I/O or block — the lock is held for its duration.
func (c *ConnStateHolder) Mutate(fn func(ConnState) ConnState) {
	c.mu.Lock()
	c.state = fn(c.state)
	c.mu.Unlock()
}

// ConfigHolder is the single owned configuration record behind an atomic
// handle (§9 re-architecture note). Command dispatch clones, validates,
// and commits; persistence writes happen on the commit side only (in
// infra/store), never here.
type ConfigHolder struct {
	mu  sync.RWMutex
	cfg Config
}

func NewConfigHolder(cfg Config) *ConfigHolder {
	return &ConfigHolder{cfg: cfg}
}

func (h *ConfigHolder) Load() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Commit validates candidate and, if valid, stores it. Returns the
// validation error (if any) without mutating state on failure.
func (h *ConfigHolder) Commit(candidate Config) error {
	if err := candidate.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	h.cfg = candidate
	h.mu.Unlock()
	return nil
}
