// Package spool implements the durable offline telemetry buffer: a
// bounded RAM batch that flushes to an append-only spool file, and a
// two-file rename-based drain protocol that guarantees no record is lost
// across a reboot mid-drain.
package spool

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// batchLimit is the RAM batch size that triggers a flush to disk.
const batchLimit = 50

const (
	spoolFile      = "offline_log.txt"
	processingFile = "processing.txt"
)

// Spool buffers telemetry records in RAM and, once the filesystem
// component is available, spills them to an append-only file with a
// two-phase-commit drain protocol. A nil *Spool (filesystem failed to
// mount) degrades to RAM-only with no disk durability, dropping records
// when the batch overflows.
type Spool struct {
	dir     string
	disabled bool
	batch   []string
}

// Open prepares the spool directory. If dir cannot be created, the spool
// is disabled for this boot: records are still accepted into the RAM batch
// but never flushed to disk, and the batch silently drops the oldest entry
// once it would exceed 2x batchLimit (bounded memory use).
func Open(dir string) *Spool {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &Spool{dir: dir, disabled: true}
	}
	return &Spool{dir: dir}
}

func (s *Spool) spoolPath() string      { return filepath.Join(s.dir, spoolFile) }
func (s *Spool) processingPath() string { return filepath.Join(s.dir, processingFile) }

// Append adds a JSON-encoded telemetry line to the RAM batch (§4.5.6: "Else:
// append to the RAM batch"). When the batch reaches batchLimit, it is
// flushed to the spool file.
func (s *Spool) Append(line string) error {
	s.batch = append(s.batch, line)
	if s.disabled {
		if len(s.batch) > 2*batchLimit {
			s.batch = s.batch[1:] // drop oldest, bound memory
		}
		return nil
	}
	if len(s.batch) >= batchLimit {
		return s.Flush()
	}
	return nil
}

// Flush writes the current RAM batch to the spool file and clears it. A
// no-op if the batch is empty or the spool is disabled.
func (s *Spool) Flush() error {
	if s.disabled || len(s.batch) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.spoolPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open spool file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range s.batch {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write spool line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush spool writer: %w", err)
	}
	s.batch = s.batch[:0]
	return nil
}

// BatchLen returns the number of records currently buffered in RAM
// (exposed for metrics and tests).
func (s *Spool) BatchLen() int { return len(s.batch) }

// Drain runs the two-phase drain protocol (§4.5.7):
//  1. If a processing file exists, iterate its lines, publishing each via
//     publish; stop at the first failure. On a complete pass, delete it.
//  2. Else if a fresh spool file exists, rename it to the processing file
//     and recurse.
//
// publish returning a non-nil error stops the drain (the record and
// everything after it remain in the processing file for the next attempt).
// Drain is a no-op when the spool is disabled.
func (s *Spool) Drain(publish func(line string) error) error {
	if s.disabled {
		return nil
	}

	if _, err := os.Stat(s.processingPath()); err == nil {
		return s.drainProcessing(publish)
	}

	if _, err := os.Stat(s.spoolPath()); err != nil {
		return nil // nothing to drain
	}
	if err := os.Rename(s.spoolPath(), s.processingPath()); err != nil {
		return fmt.Errorf("stage processing file: %w", err)
	}
	return s.drainProcessing(publish)
}

func (s *Spool) drainProcessing(publish func(line string) error) error {
	f, err := os.Open(s.processingPath())
	if err != nil {
		return fmt.Errorf("open processing file: %w", err)
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := publish(line); err != nil {
			f.Close()
			return fmt.Errorf("publish spooled record: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return fmt.Errorf("scan processing file: %w", err)
	}
	f.Close()

	if err := os.Remove(s.processingPath()); err != nil {
		return fmt.Errorf("remove processing file: %w", err)
	}
	return nil
}
