package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GriffinCanCode/livepen/internal/app"
	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/domain/console"
	"github.com/GriffinCanCode/livepen/internal/domain/project"
	"github.com/GriffinCanCode/livepen/internal/providers/storage"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// session is a playground over the local project store.
type session struct {
	pg *app.Playground
}

type sessionOptions struct {
	preview   app.Preview
	view      console.View
	confirmer project.Confirmer
}

// openSession loads the local store. The caller must close the session so
// pending edits are flushed.
func (c *cli) openSession(opts ...func(*sessionOptions)) (*session, error) {
	o := sessionOptions{preview: discardPreview{}}
	for _, fn := range opts {
		fn(&o)
	}

	layout := c.layout()
	if err := layout.Ensure(); err != nil {
		return nil, fmt.Errorf("preparing data directory: %w", err)
	}
	kv, err := storage.NewFile(layout.Store())
	if err != nil {
		return nil, err
	}

	pg := app.New(app.Options{
		KV:            kv,
		Editors:       app.NewTextEditors(),
		Preview:       o.preview,
		ConsoleView:   o.view,
		Confirmer:     o.confirmer,
		Notifier:      c.notifier(),
		ShareBase:     c.cfg.Server.PublicURL + "/",
		AutosaveDelay: c.cfg.Playground.AutosaveDelay,
		Logger:        c.logger,
	})
	if err := pg.Init(context.Background(), nil); err != nil {
		return nil, err
	}
	return &session{pg: pg}, nil
}

func (s *session) close() error { return s.pg.Teardown() }

// notifier prints warnings and errors on stderr. Info notices only show
// with --verbose.
func (c *cli) notifier() types.Notifier {
	return types.NotifierFunc(func(level types.NoticeLevel, message string) {
		if level == types.NoticeInfo || level == types.NoticeSuccess {
			if !c.verbose {
				return
			}
		}
		fmt.Fprintf(c.errOut, "%s: %s\n", level, message)
	})
}

// confirmer asks on stdin unless assumeYes is set.
func (c *cli) confirmer(assumeYes bool) project.Confirmer {
	if assumeYes {
		return project.AlwaysConfirm
	}
	return project.ConfirmFunc(func(message string) bool {
		fmt.Fprintf(c.errOut, "%s [y/N] ", message)
		line, _ := bufio.NewReader(c.in).ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
}

type discardPreview struct{}

func (discardPreview) Load(string) {}

// lineView prints console lines as they arrive.
type lineView struct {
	w io.Writer
}

func (v *lineView) Append(l console.Line) {
	fmt.Fprintf(v.w, "[%s] %s\n", l.Kind, l.Text)
}

func (v *lineView) Clear() {}

func (v *lineView) ScrollToBottom() {}

// filePreview writes every composed document to a file and optionally
// runs it in the sandbox.
type filePreview struct {
	path    string
	sandbox *app.SandboxPreview
	onErr   func(error)
}

func (p *filePreview) Load(document string) {
	if p.path != "" {
		if err := os.WriteFile(p.path, []byte(document), 0o644); err != nil && p.onErr != nil {
			p.onErr(err)
		}
	}
	if p.sandbox != nil {
		p.sandbox.Load(document)
	}
}

func (p *filePreview) Attach(sink func(bridge.Event)) {
	if p.sandbox != nil {
		p.sandbox.Attach(sink)
	}
}

func (p *filePreview) Close() {
	if p.sandbox != nil {
		p.sandbox.Close()
	}
}
