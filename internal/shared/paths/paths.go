// Package paths provides the on-disk layout of a LivePen data directory.
//
//	<data>/
//	  ├── livepen.db     (hosted projects)
//	  ├── backups/       (daily database snapshots)
//	  └── store/         (local project store and theme state)
package paths

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry names inside a data directory
const (
	DatabaseFile = "livepen.db"
	BackupsDir   = "backups"
	StoreDir     = "store"
)

// BackupPrefix and BackupExt frame every snapshot file name.
const (
	BackupPrefix = "livepen-"
	BackupExt    = ".db"
	backupLayout = "2006-01-02T15-04-05"
)

// Layout resolves paths relative to a data directory.
type Layout struct {
	Root string
}

// New returns a Layout rooted at dir. An empty dir resolves to DefaultRoot.
func New(dir string) Layout {
	if dir == "" {
		dir = DefaultRoot()
	}
	return Layout{Root: filepath.Clean(dir)}
}

// DefaultRoot returns the per-user data directory, falling back to ./data.
func DefaultRoot() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "livepen")
	}
	return "data"
}

// Database returns the SQLite database path.
func (l Layout) Database() string { return filepath.Join(l.Root, DatabaseFile) }

// Backups returns the snapshot directory.
func (l Layout) Backups() string { return filepath.Join(l.Root, BackupsDir) }

// Store returns the local key-value store directory.
func (l Layout) Store() string { return filepath.Join(l.Root, StoreDir) }

// BackupFile returns the snapshot path for time t.
func (l Layout) BackupFile(t time.Time) string {
	return filepath.Join(l.Backups(), BackupPrefix+t.UTC().Format(backupLayout)+BackupExt)
}

// BackupTime parses the timestamp out of a snapshot file name.
func BackupTime(name string) (time.Time, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, BackupPrefix) || !strings.HasSuffix(base, BackupExt) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(base, BackupPrefix), BackupExt)
	t, err := time.Parse(backupLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Ensure creates the data directory tree.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.Backups(), l.Store()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
