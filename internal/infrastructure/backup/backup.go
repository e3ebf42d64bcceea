// Package backup takes timestamped database snapshots and prunes old ones.
package backup

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/paths"
)

// Snapshotter writes a consistent copy of a database to a path.
type Snapshotter interface {
	Snapshot(ctx context.Context, dest string) error
}

// Snapshot describes one backup file.
type Snapshot struct {
	Path    string    `json:"path"`
	TakenAt time.Time `json:"takenAt"`
	Size    int64     `json:"size"`
}

// Manager owns the backups directory of a data layout.
type Manager struct {
	source  Snapshotter
	layout  paths.Layout
	maxAge  time.Duration
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Manager. maxAge <= 0 disables pruning.
func New(source Snapshotter, layout paths.Layout, maxAge time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		source:  source,
		layout:  layout,
		maxAge:  maxAge,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run takes a snapshot and prunes expired ones.
func (m *Manager) Run(ctx context.Context) (Snapshot, error) {
	snap, err := m.Take(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := m.Prune(); err != nil {
		m.logger.Warn("pruning backups failed", zap.Error(err))
	}
	return snap, nil
}

// Take writes a new snapshot.
func (m *Manager) Take(ctx context.Context) (Snapshot, error) {
	at := m.now()
	dest := m.layout.BackupFile(at)
	if err := m.source.Snapshot(ctx, dest); err != nil {
		m.metrics.RecordBackup("error")
		return Snapshot{}, fmt.Errorf("backup: %w", err)
	}
	m.metrics.RecordBackup("success")

	info, err := os.Stat(dest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: %w", err)
	}
	m.logger.Info("database backup created", zap.String("path", dest), zap.Int64("bytes", info.Size()))
	return Snapshot{Path: dest, TakenAt: at.UTC().Truncate(time.Second), Size: info.Size()}, nil
}

// List returns the snapshots on disk, newest first. Unrelated files are ignored.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.layout.Backups())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		at, ok := paths.BackupTime(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Path: m.layout.Backups() + string(os.PathSeparator) + e.Name(), TakenAt: at, Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

// Prune deletes snapshots older than maxAge and returns how many it removed.
func (m *Manager) Prune() (int, error) {
	if m.maxAge <= 0 {
		return 0, nil
	}
	snaps, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-m.maxAge)
	removed := 0
	for _, s := range snaps {
		if !s.TakenAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(s.Path); err != nil {
			return removed, fmt.Errorf("removing %s: %w", s.Path, err)
		}
		m.logger.Info("old backup removed", zap.String("path", s.Path))
		removed++
	}
	return removed, nil
}
