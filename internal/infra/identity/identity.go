// Package identity derives and persists the device's stable ID. On real
// hardware this would read the MCU's factory-fused unique ID; here it is
// generated once and cached to disk.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// idFile is the cache file name within the daemon's data directory.
const idFile = "device_id"

// LoadOrCreate returns the device ID, generating and persisting one on
// first boot. The ID is computed once and never mutated afterward.
func LoadOrCreate(dataDir string) (string, error) {
	path := filepath.Join(dataDir, idFile)

	if b, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(b))
		if isValid(id) {
			return id, nil
		}
		// Fall through and regenerate a malformed cache entry.
	}

	id, err := generate()
	if err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	return id, nil
}

// generate produces a "GH-" prefixed 19-character ID from 8 random bytes,
// standing in for the MCU's factory-fused unique ID.
func generate() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "GH-" + hex.EncodeToString(buf[:]), nil
}

func isValid(id string) bool {
	return strings.HasPrefix(id, "GH-") && len(id) == 19
}
