package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSandboxRun("ok")
	m.RecordShare("encode", "success")
	m.IncWSConnections()
	NewTimer(m, "hosting", "create").Stop("success")
	assert.Zero(t, m.Uptime())
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestMiddlewareLabelsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	for _, path := range []string{"/aaaaaaaaaaaa", "/bbbbbbbbbbbb"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/:id", "200")))
	assert.Equal(t, int64(2), m.Snapshot().TotalRequests)
}

func TestCountersRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddProjectsDeleted("retention", 3)
	m.AddProjectsDeleted("retention", 0)
	m.RecordConsoleEvent("error")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ProjectsDeleted.WithLabelValues("retention")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsoleEvents.WithLabelValues("error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "livepen_uptime_seconds")
}
