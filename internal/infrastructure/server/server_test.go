package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DataDir = t.TempDir()
	cfg.Logging.Development = true
	cfg.Logging.Level = "error"
	cfg.Sandbox.PoolSize = 2
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	w := get(srv, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = get(srv, "/api/libraries")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(srv, "/api/stats")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(srv, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "livepen_http_requests_total"))

	w = get(srv, "/metrics/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sandbox"`)

	// No admin hash configured
	w = get(srv, "/api/admin/backup")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerSchedulesRetentionJobs(t *testing.T) {
	srv := newTestServer(t, nil)

	jobs := srv.Scheduler().Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, JobBackup, jobs[0].Name)
	assert.Equal(t, JobSweep, jobs[1].Name)

	require.NoError(t, srv.Scheduler().RunNow(context.Background(), JobSweep))
	require.NoError(t, srv.Scheduler().RunNow(context.Background(), JobBackup))

	entries, err := os.ReadDir(filepath.Join(srv.config.Database.DataDir, "backups"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestServerRetentionDisabled(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) { cfg.Retention.Enabled = false })
	assert.Empty(t, srv.Scheduler().Jobs())
}

func TestServerRejectsBadSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DataDir = t.TempDir()
	cfg.Logging.Development = true
	cfg.Retention.SweepAt = "25:99"

	_, err := NewServer(cfg)
	assert.Error(t, err)
}
