// Package timesync corrects the node's notion of wall-clock time against
// two configured NTP servers before anything that depends on an accurate
// clock — chiefly TLS certificate-validity checks — is allowed to proceed.
// A fresh device (or one that lost power long enough to drain its RTC
// backup) boots with a clock far in the past; dialing a TLS broker at that
// point fails cert validation even though the certificate itself is fine.
package timesync

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
)

// sanityThreshold is the earliest wall-clock time treated as plausible
// (2024-01-01T00:00:00Z). Anything before it means the clock has not been
// corrected since boot.
const sanityThreshold = 1704067200

// queryTimeout bounds a single NTP request/response round trip.
const queryTimeout = 3 * time.Second

// ntpEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// Syncer tracks a learned offset between the local clock and NTP time,
// queried once per boot (and re-queried on demand) from the two configured
// servers.
type Syncer struct {
	servers [2]string
	log     *logrus.Entry

	mu      sync.Mutex
	offset  time.Duration
	synced  bool
	syncing bool
}

// New creates a Syncer against the given servers (host:port, typically
// port 123).
func New(servers [2]string, log *logrus.Logger) *Syncer {
	return &Syncer{servers: servers, log: log.WithField("task", "timesync")}
}

// Now returns the corrected time: the local clock plus the learned offset.
// Before a sync succeeds, offset is zero and Now is just time.Now().
func (s *Syncer) Now() time.Time {
	s.mu.Lock()
	offset := s.offset
	s.mu.Unlock()
	return time.Now().Add(offset)
}

// Plausible reports whether the corrected clock is past the sanity
// threshold.
func (s *Syncer) Plausible() bool {
	return s.Now().Unix() >= sanityThreshold
}

// EnsureSynced gates a caller (the MQTT reconnect attempt) on a plausible
// clock. If the clock already looks plausible it returns nil immediately.
// Otherwise it kicks off a background sync (at most one in flight at a
// time) and returns domain.ErrTimeNotSynced without blocking the caller's
// ticker cadence.
func (s *Syncer) EnsureSynced(ctx context.Context) error {
	if s.Plausible() {
		return nil
	}

	s.mu.Lock()
	alreadySyncing := s.syncing
	s.syncing = true
	s.mu.Unlock()

	if !alreadySyncing {
		go s.sync(ctx)
	}
	return domain.ErrTimeNotSynced
}

func (s *Syncer) sync(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	for _, addr := range s.servers {
		if addr == "" {
			continue
		}
		offset, err := queryServer(ctx, addr)
		if err != nil {
			s.log.WithError(err).WithField("server", addr).Warn("ntp query failed")
			continue
		}

		s.mu.Lock()
		s.offset = offset
		s.synced = true
		s.mu.Unlock()

		s.log.WithField("server", addr).WithField("offset", offset).Info("clock corrected via ntp")
		return
	}

	s.log.Warn("ntp sync failed against every configured server")
}

// queryServer sends a single NTP v3 client request over UDP and returns the
// offset between the server's reported time and the local clock at receipt.
func queryServer(ctx context.Context, addr string) (time.Duration, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(queryTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}

	req := make([]byte, 48)
	req[0] = 0x1B // LI=0, VN=3, Mode=3 (client)
	if _, err := conn.Write(req); err != nil {
		return 0, fmt.Errorf("send ntp request: %w", err)
	}

	resp := make([]byte, 48)
	n, err := conn.Read(resp)
	if err != nil {
		return 0, fmt.Errorf("read ntp response: %w", err)
	}
	if n < 48 {
		return 0, fmt.Errorf("ntp response too short: %d bytes", n)
	}

	localNow := time.Now()
	serverTime := parseTransmitTimestamp(resp)
	return serverTime.Sub(localNow), nil
}

// parseTransmitTimestamp reads the 64-bit NTP timestamp at bytes 40-47
// (the transmit timestamp field) and converts it to a Unix time.
func parseTransmitTimestamp(resp []byte) time.Time {
	seconds := binary.BigEndian.Uint32(resp[40:44])
	fraction := binary.BigEndian.Uint32(resp[44:48])

	unixSeconds := int64(seconds) - ntpEpochOffset
	nanos := int64(float64(fraction) / (1 << 32) * 1e9)
	return time.Unix(unixSeconds, nanos)
}
