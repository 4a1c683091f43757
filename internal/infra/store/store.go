// Package store provides the namespaced key/value persistence layer for
// configuration tunables and boot-health counters, backed by SQLite in
// WAL mode.
package store

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO required

	"github.com/greenhouse-net/controller/internal/domain"
)

// floatTolerance is the flash-wear guard tolerance for float comparisons:
// a write is skipped when the new value is within this of the old one.
const floatTolerance = 0.1

const namespace = "greenhouse"

// Store is the namespaced key/value store over non-volatile memory.
// A nil *Store (returned when the filesystem fails to mount) is valid to
// use: all Get* return zero values and Put* are no-ops, so the caller
// falls back to in-memory defaults for this boot.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at dir/state.db. If the directory cannot
// be created or the database cannot be opened, it returns a nil *Store and
// a non-nil error — callers should log and continue with defaults rather
// than treat this as fatal.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		namespace TEXT NOT NULL,
		key       TEXT NOT NULL,
		value     TEXT NOT NULL,
		PRIMARY KEY (namespace, key)
	)`)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Close releases the underlying database handle. Safe to call on a nil
// store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) getRaw(key string) (string, bool) {
	if s == nil || s.db == nil {
		return "", false
	}
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key).Scan(&v)
	if err != nil {
		return "", false
	}
	return v, true
}

func (s *Store) putRaw(key, value string) error {
	if s == nil || s.db == nil {
		return nil // spool-disabled-style no-op when unavailable
	}
	_, err := s.db.Exec(
		`INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, key, value,
	)
	return err
}

// GetF32 reads a float key, returning def if absent or unparsable.
func (s *Store) GetF32(key string, def float64) float64 {
	raw, ok := s.getRaw(key)
	if !ok {
		return def
	}
	var v float64
	if _, err := fmt.Sscanf(raw, "%g", &v); err != nil {
		return def
	}
	return v
}

// PutF32 writes a float key, skipping the write when the new value equals
// the stored value within floatTolerance (flash-wear guard, §4.1).
func (s *Store) PutF32(key string, v float64) error {
	if cur, ok := s.getRaw(key); ok {
		var old float64
		if _, err := fmt.Sscanf(cur, "%g", &old); err == nil && math.Abs(old-v) <= floatTolerance {
			return nil
		}
	}
	return s.putRaw(key, fmt.Sprintf("%g", v))
}

// GetI32 reads an int key, returning def if absent or unparsable.
func (s *Store) GetI32(key string, def int) int {
	raw, ok := s.getRaw(key)
	if !ok {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return def
	}
	return v
}

// PutI32 writes an int key, skipping the write when unchanged.
func (s *Store) PutI32(key string, v int) error {
	if cur, ok := s.getRaw(key); ok {
		var old int
		if _, err := fmt.Sscanf(cur, "%d", &old); err == nil && old == v {
			return nil
		}
	}
	return s.putRaw(key, fmt.Sprintf("%d", v))
}

// GetU8 reads a uint8 key, returning def if absent or unparsable.
func (s *Store) GetU8(key string, def uint8) uint8 {
	return uint8(s.GetI32(key, int(def)))
}

// PutU8 writes a uint8 key, skipping the write when unchanged.
func (s *Store) PutU8(key string, v uint8) error {
	return s.PutI32(key, int(v))
}

// GetBool reads a bool key, returning def if absent.
func (s *Store) GetBool(key string, def bool) bool {
	raw, ok := s.getRaw(key)
	if !ok {
		return def
	}
	return raw == "1"
}

// PutBool writes a bool key, skipping the write when unchanged.
func (s *Store) PutBool(key string, v bool) error {
	if cur, ok := s.getRaw(key); ok {
		old := cur == "1"
		if old == v {
			return nil
		}
	}
	val := "0"
	if v {
		val = "1"
	}
	return s.putRaw(key, val)
}

// ─── Typed accessors for the persisted layout ───────────────────────────

// Keys matches the persistent storage layout table.
const (
	KeyTempMin     = "temp_min"
	KeyTempMax     = "temp_max"
	KeyHumMax      = "hum_max"
	KeySoilDry     = "soil_dry"
	KeySoilWet     = "soil_wet"
	KeyTankEmpty   = "tank_empty"
	KeyTankFull    = "tank_full"
	KeyCalAir      = "cal_air"
	KeyCalWater    = "cal_water"
	KeyCrashCount  = "crash_count"
	KeyRBHappened  = "rb_happened"
)

// LoadConfig reads the persisted configuration, falling back to
// domain.DefaultConfig for any key that is absent (e.g. first boot, or the
// filesystem failed to mount and s is nil).
func (s *Store) LoadConfig() domain.Config {
	def := domain.DefaultConfig()
	return domain.Config{
		TempMin:       s.GetF32(KeyTempMin, def.TempMin),
		TempMax:       s.GetF32(KeyTempMax, def.TempMax),
		HumMax:        s.GetF32(KeyHumMax, def.HumMax),
		SoilDry:       s.GetF32(KeySoilDry, def.SoilDry),
		SoilWet:       s.GetF32(KeySoilWet, def.SoilWet),
		TankEmptyDist: s.GetF32(KeyTankEmpty, def.TankEmptyDist),
		TankFullDist:  s.GetF32(KeyTankFull, def.TankFullDist),
		CalAirRaw:     s.GetI32(KeyCalAir, def.CalAirRaw),
		CalWaterRaw:   s.GetI32(KeyCalWater, def.CalWaterRaw),
	}
}

// SaveConfig persists every field of cfg (each individual Put* applies its
// own wear guard).
func (s *Store) SaveConfig(cfg domain.Config) error {
	for _, err := range []error{
		s.PutF32(KeyTempMin, cfg.TempMin),
		s.PutF32(KeyTempMax, cfg.TempMax),
		s.PutF32(KeyHumMax, cfg.HumMax),
		s.PutF32(KeySoilDry, cfg.SoilDry),
		s.PutF32(KeySoilWet, cfg.SoilWet),
		s.PutF32(KeyTankEmpty, cfg.TankEmptyDist),
		s.PutF32(KeyTankFull, cfg.TankFullDist),
		s.PutI32(KeyCalAir, cfg.CalAirRaw),
		s.PutI32(KeyCalWater, cfg.CalWaterRaw),
	} {
		if err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}
	return nil
}

// LoadBootHealth reads the persisted boot-health counters.
func (s *Store) LoadBootHealth() domain.BootHealth {
	return domain.BootHealth{
		CrashCount:       s.GetU8(KeyCrashCount, 0),
		RollbackHappened: s.GetBool(KeyRBHappened, false),
	}
}

// SaveBootHealth persists the boot-health counters.
func (s *Store) SaveBootHealth(bh domain.BootHealth) error {
	if err := s.PutU8(KeyCrashCount, bh.CrashCount); err != nil {
		return fmt.Errorf("save crash_count: %w", err)
	}
	if err := s.PutBool(KeyRBHappened, bh.RollbackHappened); err != nil {
		return fmt.Errorf("save rb_happened: %w", err)
	}
	return nil
}
