package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GriffinCanCode/livepen/internal/api/middleware"
	"github.com/GriffinCanCode/livepen/internal/domain/hosting"
	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/backup"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/db"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
	"github.com/GriffinCanCode/livepen/internal/shared/paths"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

const adminToken = "let-me-in"

type fixture struct {
	router  *gin.Engine
	hosting *hosting.Service
	layout  paths.Layout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	layout := paths.New(t.TempDir())
	require.NoError(t, layout.Ensure())
	d, err := db.Open(layout.Database())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	svc := hosting.NewService(hosting.NewRepository(d), "https://pen.example.com", hosting.Retention{}, nil, nil)
	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewHandlers(Options{
		Hosting:   svc,
		Backups:   backup.New(d, layout, 0, nil, nil),
		Runner:    sandbox.NewPool(sandbox.New(sandbox.DefaultConfig(), nil), 2),
		PublicURL: "https://pen.example.com",
	})

	router := gin.New()
	h.Register(router, RouteGuards{
		Create: middleware.RateLimit(middleware.RateLimitConfig{Bucket: "create", Max: 5, Window: time.Hour}, nil, nil),
		Admin:  middleware.AdminAuth(string(hash), nil),
	})
	return &fixture{router: router, hosting: svc, layout: layout}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *fixture) create(t *testing.T, req map[string]any) types.CreateResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/create", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[types.CreateResponse](t, w)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["hosting"])
}

func TestCreateAndGetProject(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, map[string]any{
		"html":        "<h1>Hi</h1>",
		"css":         "h1{color:red}",
		"projectName": "Greeting",
		"tags":        "demo, css",
	})
	assert.True(t, created.Success)
	assert.Len(t, created.ID, 12)
	assert.Equal(t, "https://pen.example.com/"+created.ID, created.URL)

	w := f.do(t, http.MethodGet, "/api/project/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.ProjectResponse](t, w)
	require.NotNil(t, resp.Project)
	assert.Equal(t, "Greeting", resp.Project.Name)
	assert.True(t, resp.Project.HasHTML)
	assert.True(t, resp.Project.HasCSS)
	assert.False(t, resp.Project.HasJS)
	assert.Equal(t, types.Tags{"demo", "css"}, resp.Project.Tags)
	assert.NotContains(t, w.Body.String(), "<h1>Hi</h1>")
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{"empty project", map[string]any{"projectName": "Nothing"}},
		{"oversize", map[string]any{"html": strings.Repeat("a", 1<<20+1)}},
		{"long name", map[string]any{"html": "x", "projectName": strings.Repeat("n", 101)}},
		{"malformed body", "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/create", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			body := decode[types.ErrorResponse](t, w)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestCreateIsRateLimited(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.create(t, map[string]any{"html": "x"})
	}
	w := f.do(t, http.MethodPost, "/api/create", map[string]any{"html": "x"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, decode[types.ErrorResponse](t, w).Success)
}

func TestUpdateAndDeleteProject(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, map[string]any{"html": "<p>a</p>", "js": "1"})

	w := f.do(t, http.MethodPut, "/api/project/"+created.ID, map[string]any{"projectName": "Renamed", "js": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Project updated", decode[types.MessageResponse](t, w).Message)

	md := decode[types.ProjectResponse](t, f.do(t, http.MethodGet, "/api/project/"+created.ID, nil)).Project
	require.NotNil(t, md)
	assert.Equal(t, "Renamed", md.Name)
	assert.True(t, md.HasHTML)
	assert.False(t, md.HasJS)

	w = f.do(t, http.MethodPut, "/api/project/"+created.ID, map[string]any{"html": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code, "emptying every buffer is rejected after merge")

	w = f.do(t, http.MethodDelete, "/api/project/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Project deleted", decode[types.MessageResponse](t, w).Message)

	w = f.do(t, http.MethodGet, "/api/project/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project not found", decode[types.ErrorResponse](t, w).Error)

	w = f.do(t, http.MethodDelete, "/api/project/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchAndStats(t *testing.T) {
	f := newFixture(t)
	f.create(t, map[string]any{"html": "x", "projectName": "Solar system", "tags": []string{"space"}})
	f.create(t, map[string]any{"html": "x", "projectName": "Clock", "tags": []string{"time"}})

	w := f.do(t, http.MethodGet, "/api/search?query=solar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[types.SearchResponse](t, w)
	require.Len(t, found.Projects, 1)
	assert.Equal(t, "Solar system", found.Projects[0].Name)

	w = f.do(t, http.MethodGet, "/api/search?tag=nothing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"projects":[]`)

	w = f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[types.StatsResponse](t, w).Stats
	require.NotNil(t, stats)
	assert.Equal(t, int64(2), stats.TotalProjects)
	assert.NotEmpty(t, stats.Version)
}

func TestRenderPermalink(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, map[string]any{"html": "<h1>Live</h1>", "projectName": "Page"})

	w := f.do(t, http.MethodGet, "/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>Live</h1>")
	assert.Contains(t, w.Body.String(), "Views: 1")

	w = f.do(t, http.MethodGet, "/"+created.ID, nil)
	assert.Contains(t, w.Body.String(), "Views: 2")

	w = f.do(t, http.MethodGet, "/not-an-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", w.Body.String())

	w = f.do(t, http.MethodGet, "/abcdefABCDEF", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "abcdefABCDEF")
}

func TestExportProject(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, map[string]any{"html": "<p>zip</p>", "css": "p{}", "js": "go()", "projectName": "Zip Me"})

	w := f.do(t, http.MethodGet, "/api/export/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="Zip Me.zip"`)

	imported, err := packaging.Import(w.Body.Bytes(), "Zip Me.zip")
	require.NoError(t, err)
	assert.Equal(t, "<p>zip</p>", strings.TrimSpace(imported.Buffers.Markup))
	assert.Equal(t, "go()", imported.Buffers.Script)

	w = f.do(t, http.MethodGet, "/api/export/abcdefABCDEF", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminBackup(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/admin/backup", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/backup", nil, "Authorization", "Bearer "+adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[types.BackupResponse](t, w)
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Backup, paths.BackupPrefix))
	assert.FileExists(t, filepath.Join(f.layout.Backups(), resp.Backup))
}

func TestCompose(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"html": "<p>x</p>", "library": "jquery"}

	w := f.do(t, http.MethodPost, "/api/compose", body)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.ComposeResponse](t, w)
	assert.Contains(t, resp.Document, "<p>x</p>")
	assert.Contains(t, resp.Document, "jquery")
	assert.Contains(t, resp.Document, "postMessage")
	assert.Equal(t, resp.ETag, w.Header().Get("ETag"))

	w = f.do(t, http.MethodPost, "/api/compose", map[string]any{"html": "<p>x</p>", "instrument": false}, "Accept", "text/html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.True(t, strings.HasPrefix(w.Body.String(), "<!DOCTYPE html>"))
	assert.NotContains(t, w.Body.String(), "postMessage")

	w = f.do(t, http.MethodPost, "/api/compose", map[string]any{}, "Accept", "application/json")
	assert.Equal(t, http.StatusOK, w.Code, "empty buffers still compose")
}

func TestRunCollectsConsole(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/run", map[string]any{
		"js": "console.log('one'); console.warn('two'); nope();",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[RunResponse](t, w)
	assert.False(t, resp.TimedOut)
	require.Len(t, resp.Console, 3)
	assert.Equal(t, "one", resp.Console[0].Text)
	assert.Equal(t, "console-warn", resp.Console[1].Class)
	assert.Contains(t, resp.Console[2].Text, "nope")
}

func TestRunTimeout(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/run", map[string]any{"js": "while (true) {}", "timeoutMs": 100})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[RunResponse](t, w).TimedOut)
}

func TestShareRoundTrip(t *testing.T) {
	f := newFixture(t)
	buffers := map[string]any{"html": "<b>é</b>", "css": "b{}", "js": "1+1", "library": "https://cdn/x.js"}

	w := f.do(t, http.MethodPost, "/api/share", buffers)
	require.Equal(t, http.StatusOK, w.Code)
	shared := decode[types.ShareResponse](t, w)
	require.NotEmpty(t, shared.Code)
	assert.True(t, strings.HasPrefix(shared.URL, "https://pen.example.com/?code="))

	w = f.do(t, http.MethodPost, "/api/share/decode", map[string]any{"code": shared.Code})
	require.Equal(t, http.StatusOK, w.Code)
	decoded := decode[types.DecodeResponse](t, w)
	assert.Equal(t, "current", decoded.Format)
	assert.Equal(t, types.BufferSet{Markup: "<b>é</b>", Style: "b{}", Script: "1+1", Library: "https://cdn/x.js"}, decoded.Buffers)

	w = f.do(t, http.MethodPost, "/api/share", map[string]any{"html": "<i>old</i>", "legacy": true, "base": "https://old.example.com/"})
	require.Equal(t, http.StatusOK, w.Code)
	legacy := decode[types.ShareResponse](t, w)
	assert.Empty(t, legacy.Code)

	w = f.do(t, http.MethodPost, "/api/share/decode", map[string]any{"url": legacy.URL})
	require.Equal(t, http.StatusOK, w.Code)
	decoded = decode[types.DecodeResponse](t, w)
	assert.Equal(t, "legacy", decoded.Format)
	assert.Equal(t, "<i>old</i>", decoded.Buffers.Markup)
}

func TestShareDecodeErrors(t *testing.T) {
	f := newFixture(t)
	for _, body := range []map[string]any{
		{"code": "!!!not-base64"},
		{},
		{"url": "https://pen.example.com/?theme=dark"},
	} {
		w := f.do(t, http.MethodPost, "/api/share/decode", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.False(t, decode[types.ErrorResponse](t, w).Success)
	}
}

func TestExportImportUnsavedBuffers(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/export", map[string]any{
		"html": "<main>hi</main>", "css": "main{}", "js": "x()", "projectName": "Draft",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Draft.zip")

	req := httptest.NewRequest(http.MethodPost, "/api/import?name=Draft.zip", bytes.NewReader(w.Body.Bytes()))
	req.Header.Set("Content-Type", "application/zip")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	imported := decode[ImportResponse](t, rec)
	assert.Equal(t, "Draft", imported.ProjectName)
	assert.Equal(t, "main{}", imported.Buffers.Style)
	assert.Equal(t, "x()", imported.Buffers.Script)

	req = httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("plain text"))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogs(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/libraries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jquery")

	w = f.do(t, http.MethodGet, "/api/themes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.NotEmpty(t, body["default"])
	assert.NotEmpty(t, body["themes"])
}

func TestMetricsAggregator(t *testing.T) {
	f := newFixture(t)
	f.create(t, map[string]any{"html": "x"})

	pool := sandbox.NewPool(sandbox.New(sandbox.DefaultConfig(), nil), 3)
	agg := NewMetricsAggregator(nil, f.hosting, pool)
	snap := agg.Collect(context.Background())

	require.NotNil(t, snap.Sandbox)
	assert.Equal(t, 3, snap.Sandbox.Size)
	require.NotNil(t, snap.Hosting)
	assert.Equal(t, int64(1), snap.Hosting.TotalProjects)
	assert.Equal(t, "closed", snap.Backend["breaker_state"])
}

func TestRoutesWithoutHosting(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandlers(Options{}).Register(router, RouteGuards{})

	for _, path := range []string{"/api/stats", "/abcdefABCDEF", "/api/admin/backup"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}
