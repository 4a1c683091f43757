package timesync

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestSyncer_Plausible(t *testing.T) {
	log := logrus.New()
	log.SetOutput(testWriter{t})

	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"unix epoch, no correction", 0, time.Now().Unix() >= sanityThreshold},
		{"corrected far into the past", -100 * 365 * 24 * time.Hour, false},
		{"corrected to a plausible present", 0, time.Now().Unix() >= sanityThreshold},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New([2]string{"pool.ntp.org:123", "time.google.com:123"}, log)
			s.mu.Lock()
			s.offset = tc.offset
			s.mu.Unlock()

			if got := s.Plausible(); got != tc.want {
				t.Errorf("Plausible() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSyncer_EnsureSynced_ImplausibleReturnsErrAndStartsSync(t *testing.T) {
	log := logrus.New()
	log.SetOutput(testWriter{t})

	s := New([2]string{"", ""}, log) // no real servers: sync will fail quietly
	s.mu.Lock()
	s.offset = -100 * 365 * 24 * time.Hour // far in the past
	s.mu.Unlock()

	if err := s.EnsureSynced(context.Background()); err == nil {
		t.Fatal("EnsureSynced() with implausible clock = nil error, want ErrTimeNotSynced")
	}

	s.mu.Lock()
	syncing := s.syncing
	s.mu.Unlock()
	if !syncing {
		t.Error("EnsureSynced() did not mark a sync as in flight")
	}
}

func TestSyncer_Now_AppliesOffset(t *testing.T) {
	log := logrus.New()
	log.SetOutput(testWriter{t})

	s := New([2]string{"pool.ntp.org:123", "time.google.com:123"}, log)
	before := time.Now()
	s.mu.Lock()
	s.offset = time.Hour
	s.mu.Unlock()

	got := s.Now()
	if got.Sub(before) < 59*time.Minute {
		t.Errorf("Now() did not apply the learned offset: got %v, before %v", got, before)
	}
}

func TestParseTransmitTimestamp(t *testing.T) {
	resp := make([]byte, 48)
	// 2024-01-01T00:00:00Z in NTP seconds.
	const ntpSeconds = sanityThreshold + ntpEpochOffset
	resp[40] = byte(ntpSeconds >> 24)
	resp[41] = byte(ntpSeconds >> 16)
	resp[42] = byte(ntpSeconds >> 8)
	resp[43] = byte(ntpSeconds)

	got := parseTransmitTimestamp(resp)
	if got.Unix() != sanityThreshold {
		t.Errorf("parseTransmitTimestamp() = %v (unix %d), want unix %d", got, got.Unix(), sanityThreshold)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
