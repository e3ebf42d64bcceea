package main

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/server"
)

type harness struct {
	t    *testing.T
	data string
	host string
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, data: t.TempDir()}
}

func (h *harness) exec(stdin string, args ...string) (string, string, error) {
	return h.execContext(context.Background(), stdin, args...)
}

func (h *harness) execContext(ctx context.Context, stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	full := append([]string{"--data", h.data}, args...)
	if h.host != "" {
		full = append(full, "--host", h.host)
	}
	cmd.SetArgs(full)
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func (h *harness) run(args ...string) string {
	h.t.Helper()
	out, errOut, err := h.exec("", args...)
	require.NoError(h.t, err, errOut)
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out := newHarness(t).run("version")
	assert.Equal(t, "penctl "+config.Version+"\n", out)
}

func TestCompose(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	html := writeFile(t, dir, "page.html", "<h1>Hi</h1>")
	css := writeFile(t, dir, "page.css", "h1 { color: red; }")

	out := h.run("compose", "--html", html, "--css", css, "-l", "jquery")
	assert.Contains(t, out, "<h1>Hi</h1>")
	assert.Contains(t, out, "h1 { color: red; }")
	assert.Contains(t, out, "jquery")

	target := filepath.Join(dir, "out.html")
	h.run("compose", "--html", html, "--standalone", "--title", "Demo page", "-o", target)
	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<title>Demo page</title>")
}

func TestComposeFromStdin(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.exec("<p>piped</p>", "compose", "--html", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "<p>piped</p>")
}

func TestRun(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	js := writeFile(t, dir, "app.js", "console.log('hi'); console.error('bad');")

	out := h.run("run", "--js", js)
	assert.Contains(t, out, "[log] hi\n")
	assert.Contains(t, out, "[error] bad\n")

	out = h.run("run", "--js", js, "--json")
	assert.Contains(t, out, `"timedOut": false`)
	assert.Contains(t, out, `"text": "hi"`)

	_, _, err := h.exec("", "run", "--js", js, "--strict")
	assert.Error(t, err)

	loop := writeFile(t, dir, "loop.js", "while (true) {}")
	_, _, err = h.exec("", "run", "--js", loop, "-t", "100ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestShareRoundTrip(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	html := writeFile(t, dir, "index.html", "<b>shared</b>")

	token := strings.TrimSpace(h.run("share", "encode", "--html", html, "--code"))
	require.NotEmpty(t, token)
	out := h.run("share", "decode", token)
	assert.Contains(t, out, `"format": "current"`)
	assert.Contains(t, out, "<b>shared</b>")

	link := strings.TrimSpace(h.run("share", "encode", "--html", html, "--legacy", "--base", "https://pen.example.com/"))
	assert.True(t, strings.HasPrefix(link, "https://pen.example.com/?"))
	out = h.run("share", "decode", link)
	assert.Contains(t, out, `"format": "legacy"`)

	// Decoded sources read back as a directory
	srcDir := filepath.Join(t.TempDir(), "demo")
	h.run("share", "decode", token, "--out", srcDir)
	out = h.run("compose", "--dir", srcDir)
	assert.Contains(t, out, "<b>shared</b>")

	_, _, err := h.exec("", "share", "decode", "https://pen.example.com/?theme=dark")
	assert.Error(t, err)
	_, _, err = h.exec("", "share", "decode", "!!!")
	assert.Error(t, err)
}

func TestExportImport(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<h1>Zipped</h1>")
	writeFile(t, dir, "style.css", "h1 { color: blue; }")
	writeFile(t, dir, "script.js", "console.log('zip')")

	archive := filepath.Join(t.TempDir(), "demo.zip")
	out := h.run("export", "--dir", dir, "--name", "Zip Demo", "-o", archive)
	assert.Equal(t, archive+"\n", out)

	zr, err := zip.OpenReader(archive)
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	zr.Close()
	assert.Contains(t, names, "index.html")
	assert.Contains(t, names, "style.css")

	out = h.run("import", archive)
	assert.Contains(t, out, `"projectName": "Zip Demo"`)
	assert.Contains(t, out, "h1 { color: blue; }")

	key := strings.TrimSpace(h.run("import", archive, "--save"))
	require.NotEmpty(t, key)
	out = h.run("projects", "list")
	assert.Regexp(t, `(?m)^\*\s+`+key+`\s+Zip Demo$`, out)
}

func TestProjectsLifecycle(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	js := writeFile(t, dir, "demo.js", "console.log('demo')")

	out := h.run("projects", "list")
	assert.Contains(t, out, "My first project")

	key := strings.TrimSpace(h.run("projects", "new", "Demo", "--js", js))
	out = h.run("projects", "show")
	assert.Contains(t, out, `"key": "`+key+`"`)
	assert.Contains(t, out, "console.log('demo')")

	h.run("projects", "rename", key, "Renamed")
	out = h.run("projects", "list")
	assert.Contains(t, out, "Renamed")

	// The compose command reads stored projects
	out = h.run("compose", "--project", key)
	assert.Contains(t, out, "console.log('demo')")

	css := writeFile(t, dir, "demo.css", "p { margin: 0; }")
	h.run("projects", "save", key, "--css", css)
	out = h.run("projects", "show", key)
	assert.Contains(t, out, "p { margin: 0; }")

	_, errOut, err := h.exec("n\n", "projects", "delete", key)
	require.NoError(t, err)
	assert.Contains(t, errOut, "cancelled")

	h.run("projects", "delete", key, "--yes")
	out = h.run("projects", "list")
	assert.NotContains(t, out, "Renamed")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	last := strings.Fields(lines[0])[1]
	_, _, err = h.exec("", "projects", "delete", last, "--yes")
	assert.Error(t, err)

	_, _, err = h.exec("", "projects", "show", "missing")
	assert.Error(t, err)
}

func TestThemeCommands(t *testing.T) {
	h := newHarness(t)

	out := h.run("theme")
	assert.Contains(t, out, "* ")
	assert.Contains(t, out, "light")

	_, _, err := h.exec("", "theme", "apply", "sepia-neon")
	assert.Error(t, err)

	h.run("theme", "apply", "dark", "--inject")
	out = h.run("theme")
	assert.Regexp(t, `inject css\s+true`, out)
	out = h.run("projects", "show")
	assert.Contains(t, out, "/* === Theme: Dark === */")

	h.run("theme", "apply", "dark", "--no-inject")
	out = h.run("projects", "show")
	assert.NotContains(t, out, "=== Theme:")
}

func TestLibraries(t *testing.T) {
	out := newHarness(t).run("libraries")
	assert.Contains(t, out, "jquery")
}

func TestWatchRewritesPreview(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<p>first</p>")
	preview := filepath.Join(t.TempDir(), "preview.html")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := h.execContext(ctx, "", "watch", dir, "-o", preview, "--delay", "20ms")
		done <- err
	}()

	contains := func(s string) func() bool {
		return func() bool {
			raw, err := os.ReadFile(preview)
			return err == nil && strings.Contains(string(raw), s)
		}
	}
	require.Eventually(t, contains("<p>first</p>"), 5*time.Second, 20*time.Millisecond)

	// Rewrite until the watcher, which starts after the first compose, sees it
	require.Eventually(t, func() bool {
		if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>second</p>"), 0o644); err != nil {
			return false
		}
		return contains("<p>second</p>")()
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchNeedsATarget(t *testing.T) {
	_, _, err := newHarness(t).exec("", "watch", t.TempDir())
	assert.Error(t, err)
}

func TestHostedCommands(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Database.DataDir = t.TempDir()
	cfg.Logging.Development = true
	cfg.Logging.Level = "error"
	cfg.Retention.Enabled = false
	srv, err := server.NewServer(cfg)
	require.NoError(t, err)
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	h := newHarness(t)
	h.host = ts.URL
	dir := t.TempDir()
	html := writeFile(t, dir, "page.html", "<h1>Published</h1>")

	out := h.run("publish", "--html", html, "--name", "Hosted", "--tag", "demo", "--tag", "cli")
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	id := fields[0]
	assert.Len(t, id, 12)
	assert.True(t, strings.HasSuffix(fields[1], "/"+id))

	out = h.run("info", id)
	assert.Contains(t, out, `"projectName": "Hosted"`)
	assert.Contains(t, out, `"hasHtml": true`)

	h.run("update", id, "--name", "Hosted v2")
	out = h.run("search", "v2")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "demo,cli")

	out = h.run("stats")
	assert.Contains(t, out, "projects\t1")

	archive := filepath.Join(t.TempDir(), "dl.zip")
	h.run("download", id, "-o", archive)
	out = h.run("import", archive)
	assert.Contains(t, out, "<h1>Published</h1>")

	_, _, err = h.exec("", "update", id)
	assert.Error(t, err)

	h.run("delete", id)
	_, _, err = h.exec("", "info", id)
	assert.Error(t, err)

	// Without flags the active local project is published
	out = h.run("publish")
	assert.Len(t, strings.Fields(out), 2)
}
