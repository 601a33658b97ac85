// Package storage owns the managed upload area on disk.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// tokenBytes is the amount of randomness in a stored name. Ten bytes
// hex-encoded gives a 20-character token, unguessable by construction.
const tokenBytes = 10

// DiskStore writes validated upload payloads under random names inside
// a single managed directory. The caller-supplied filename never reaches
// the filesystem: only the validated extension survives, which rules out
// path traversal, collisions, and overwrites.
type DiskStore struct {
	dir       string
	retention time.Duration
	log       *slog.Logger
}

func NewDiskStore(dir string, retention time.Duration, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, retention: retention, log: log}, nil
}

func (s *DiskStore) Dir() string { return s.dir }

// Save writes data under a fresh random name carrying the validated
// extension and returns that stored name.
func (s *DiskStore) Save(extension string, data []byte) (string, error) {
	token := make([]byte, tokenBytes)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("generating storage token: %w", err)
	}

	storedName := hex.EncodeToString(token) + "." + extension
	if err := os.WriteFile(filepath.Join(s.dir, storedName), data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", storedName, err)
	}
	return storedName, nil
}

// Remove deletes a stored file. A file that is already gone counts as
// success: expiry and manual deletion may race.
func (s *DiskStore) Remove(storedName string) error {
	path := filepath.Join(s.dir, filepath.Base(storedName))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", storedName, err)
	}
	return nil
}

// ScheduleRemoval arms a deferred best-effort deletion after the
// retention window. The timer is independent of the uploading
// connection: the file outlives the connection until expiry.
func (s *DiskStore) ScheduleRemoval(storedName string) {
	time.AfterFunc(s.retention, func() {
		if err := s.Remove(storedName); err != nil {
			s.log.Warn("Expiry deletion failed", "stored_name", storedName, "error", err)
			return
		}
		s.log.Debug("Stored file expired", "stored_name", storedName)
	})
}

// Sweep removes every stored file older than the retention window.
// It backs up the per-file timers across process restarts, where armed
// removals are lost. Filesystem errors are logged and skipped; a sweep
// must never take the store down.
func (s *DiskStore) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("Sweep could not read upload dir", "dir", s.dir, "error", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < s.retention {
			continue
		}
		if err := s.Remove(entry.Name()); err != nil {
			s.log.Warn("Sweep deletion failed", "stored_name", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}
