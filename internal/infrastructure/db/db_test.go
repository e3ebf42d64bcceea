package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryAppliesSchema(t *testing.T) {
	d, err := OpenMemory()
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec(`INSERT INTO projects (id, created_at, updated_at) VALUES ('abc', 1, 1)`)
	require.NoError(t, err)

	var name string
	require.NoError(t, d.QueryRow(`SELECT project_name FROM projects WHERE id = 'abc'`).Scan(&name))
	assert.Equal(t, "Untitled Project", name)
}

func TestOpenFileAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "nested", "livepen.db"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec(`INSERT INTO projects (id, html, created_at, updated_at) VALUES ('p1', '<p>', 1, 1)`)
	require.NoError(t, err)

	dest := filepath.Join(dir, "backups", "snap.db")
	require.NoError(t, d.Snapshot(context.Background(), dest))
	assert.FileExists(t, dest)
	assert.Error(t, d.Snapshot(context.Background(), dest), "existing snapshot must not be overwritten")

	copyDB, err := Open(dest)
	require.NoError(t, err)
	defer copyDB.Close()

	var html string
	require.NoError(t, copyDB.QueryRow(`SELECT html FROM projects WHERE id = 'p1'`).Scan(&html))
	assert.Equal(t, "<p>", html)
}
