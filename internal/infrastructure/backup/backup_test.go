package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/shared/paths"
)

type fileSnapshotter struct{ err error }

func (f fileSnapshotter) Snapshot(_ context.Context, dest string) error {
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("sqlite"), 0o644)
}

func TestRunTakesAndPrunes(t *testing.T) {
	layout := paths.New(t.TempDir())
	require.NoError(t, layout.Ensure())

	now := time.Date(2024, 6, 10, 4, 0, 0, 0, time.UTC)
	old := layout.BackupFile(now.Add(-8 * 24 * time.Hour))
	recent := layout.BackupFile(now.Add(-2 * 24 * time.Hour))
	for _, p := range []string{old, recent} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(layout.Backups(), "README"), nil, 0o644))

	m := New(fileSnapshotter{}, layout, 7*24*time.Hour, nil, nil)
	m.now = func() time.Time { return now }

	snap, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, snap.Path)
	assert.Equal(t, int64(6), snap.Size)

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.FileExists(t, filepath.Join(layout.Backups(), "README"))

	snaps, err := m.List()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, snap.Path, snaps[0].Path)
}

func TestTakeFailure(t *testing.T) {
	boom := errors.New("locked")
	m := New(fileSnapshotter{err: boom}, paths.New(t.TempDir()), time.Hour, nil, nil)

	_, err := m.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
