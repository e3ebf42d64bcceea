package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/domain/library"
	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/providers/watch"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// Source file names written by --out and read back by --dir.
const (
	markupFile = "index.html"
	styleFile  = "style.css"
	scriptFile = "script.js"
)

// sources selects the buffers a command works on: a directory, individual
// files, or a project from the local store. Individual files override the
// directory or project they are combined with.
type sources struct {
	dir      string
	html     string
	css      string
	js       string
	library  string
	project  string
	suppress bool
}

func (s *sources) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&s.dir, "dir", "d", "", "project directory (index.html, style.css, script.js)")
	f.StringVar(&s.html, "html", "", "markup file")
	f.StringVar(&s.css, "css", "", "style file")
	f.StringVar(&s.js, "js", "", "script file")
	f.StringVarP(&s.library, "library", "l", "", "library catalog id or URL")
	f.StringVarP(&s.project, "project", "p", "", "project key in the local store")
	f.BoolVar(&s.suppress, "suppress-dialogs", false, "replace alert/confirm/prompt with console entries")
}

// load returns the selected buffers and a project name suggestion.
func (s *sources) load(c *cli) (types.BufferSet, string, error) {
	var (
		b    types.BufferSet
		name string
	)
	switch {
	case s.dir != "" && s.project != "":
		return b, "", fmt.Errorf("--dir and --project are mutually exclusive")
	case s.dir != "":
		imported, err := watch.Load(s.dir)
		if err != nil {
			return b, "", fmt.Errorf("loading %s: %w", s.dir, err)
		}
		b, name = imported.Buffers, imported.Name
	case s.project != "":
		sess, err := c.openSession()
		if err != nil {
			return b, "", err
		}
		p, ok := sess.pg.Store().Get(s.project)
		sess.close()
		if !ok {
			return b, "", fmt.Errorf("project %s: %w", s.project, types.ErrNotFound)
		}
		b, name = p.Buffers, p.Name
	}

	for _, f := range []struct {
		path string
		dst  *string
	}{{s.html, &b.Markup}, {s.css, &b.Style}, {s.js, &b.Script}} {
		if f.path == "" {
			continue
		}
		raw, err := readInput(c.in, f.path)
		if err != nil {
			return b, "", err
		}
		*f.dst = raw
		if name == "" && f.path != "-" {
			name = strings.TrimSuffix(filepath.Base(f.path), filepath.Ext(f.path))
		}
	}

	if s.library != "" {
		b.Library = library.Builtin().Resolve(s.library)
	}
	if s.suppress {
		b.SuppressDialogs = true
	}
	return b, name, nil
}

// readInput reads a file, or standard input for "-".
func readInput(in io.Reader, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(io.LimitReader(in, packaging.MaxArchiveBytes))
		return string(raw), err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// writeSources writes b as a directory that --dir reads back.
func writeSources(dir string, b types.BufferSet) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	markup := b.Markup
	if b.Library != "" {
		markup = compositor.LibraryTag(b.Library) + "\n" + markup
	}
	files := map[string]string{markupFile: markup, styleFile: b.Style, scriptFile: b.Script}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) printJSON(v any) error {
	raw, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	c.printf("%s\n", raw)
	return nil
}
