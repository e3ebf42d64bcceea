package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/domain/console"
	"github.com/GriffinCanCode/livepen/internal/domain/library"
	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/domain/project"
	"github.com/GriffinCanCode/livepen/internal/domain/share"
	"github.com/GriffinCanCode/livepen/internal/domain/theme"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/providers/storage"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

// Publisher creates hosted projects. *hostclient.Client satisfies it.
type Publisher interface {
	Create(ctx context.Context, req types.CreateRequest) (*types.CreateResponse, error)
}

// ErrNoPublisher is returned by Publish when no hosting server is configured.
var ErrNoPublisher = errors.New("no hosting server configured")

// Options configures a Playground. KV, Editors and Preview are required.
type Options struct {
	KV          storage.KV
	Editors     Editors
	Preview     Preview
	ConsoleView console.View

	Chrome        theme.Chrome
	EditorTheming theme.EditorTheming
	Themes        *theme.Catalog
	Libraries     *library.Catalog

	Confirmer project.Confirmer
	Notifier  types.Notifier
	Publisher Publisher
	Codec     *share.Codec
	ShareBase string

	AutosaveDelay  time.Duration
	RecomposeDelay time.Duration

	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Playground is one editing session.
type Playground struct {
	editors   Editors
	preview   Preview
	console   *console.Aggregator
	store     *project.Store
	theme     *theme.Layer
	libraries *library.Catalog
	codec     *share.Codec
	publisher Publisher
	notifier  types.Notifier
	shareBase string
	logger    *zap.Logger
	debounce  func(func())

	mu              sync.Mutex
	ready           bool
	wired           bool
	loading         int
	library         string
	suppressDialogs bool
	fullscreen      Preview
	cursors         map[string]Cursor
	surfaces        theme.Surfaces
}

// New builds a Playground. Nothing is loaded until Init.
func New(opts Options) *Playground {
	if opts.Notifier == nil {
		opts.Notifier = types.DiscardNotices
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Libraries == nil {
		opts.Libraries = library.Builtin()
	}
	if opts.Codec == nil {
		opts.Codec = share.NewCodec(0, opts.Metrics)
	}
	if opts.ShareBase == "" {
		opts.ShareBase = "http://localhost:3000/"
	}

	p := &Playground{
		editors:   opts.Editors,
		preview:   opts.Preview,
		console:   console.New(opts.ConsoleView, opts.Metrics),
		libraries: opts.Libraries,
		codec:     opts.Codec,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		shareBase: opts.ShareBase,
		logger:    opts.Logger,
		cursors:   make(map[string]Cursor),
	}
	if opts.RecomposeDelay > 0 {
		p.debounce = debounce.New(opts.RecomposeDelay)
	}
	p.store = project.NewStore(opts.KV, p, project.Options{
		AutosaveDelay: opts.AutosaveDelay,
		Confirmer:     opts.Confirmer,
		Notifier:      opts.Notifier,
		Logger:        opts.Logger.Named("store"),
	})
	p.theme = theme.NewLayer(opts.KV, opts.Themes, opts.Notifier, opts.Logger.Named("theme"))
	p.surfaces = theme.Surfaces{
		Chrome:    opts.Chrome,
		Editors:   opts.EditorTheming,
		Style:     styleBuffer{p},
		Recompose: p.Recompose,
	}
	if src, ok := opts.Preview.(EventSource); ok {
		src.Attach(p.HandleEvent)
	}
	return p
}

// Store returns the project store.
func (p *Playground) Store() *project.Store { return p.store }

// Theme returns the theme layer.
func (p *Playground) Theme() *theme.Layer { return p.theme }

// Console returns the console aggregator.
func (p *Playground) Console() *console.Aggregator { return p.console }

// Init loads the saved projects into the editors, restores the theme,
// applies a share query (current format first, legacy parameters as a
// fallback), wires the editors and performs the first recomposition.
// Storage failures are reported through the notifier; the session keeps
// working from memory.
func (p *Playground) Init(ctx context.Context, query url.Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.ready {
		p.mu.Unlock()
		return errors.New("playground already initialised")
	}
	p.ready = true
	p.mu.Unlock()

	if active, err := p.store.Load(); err != nil {
		p.logger.Warn("project store load failed", zap.Error(err))
	} else {
		p.logger.Info("project loaded", zap.String("key", active.Key), zap.String("name", active.Name))
	}

	p.theme.Attach(p.surfaces)
	p.theme.Load()

	if len(query) > 0 {
		p.applyShare(query)
	}

	p.wire()

	p.mu.Lock()
	p.wired = true
	p.mu.Unlock()
	p.Recompose()
	return nil
}

func (p *Playground) applyShare(query url.Values) {
	b, _ := p.Snapshot()
	format, err := p.codec.Apply(query, &b)
	if err != nil {
		p.logger.Warn("share link rejected", zap.Error(err))
		p.notifier.Notify(types.NoticeWarning, "The shared link could not be decoded")
		return
	}
	if format == share.FormatNone {
		return
	}
	p.Load(b)
	p.store.ScheduleSave()
	p.logger.Info("share link applied", zap.String("format", format.String()))
	p.notifier.Notify(types.NoticeInfo, "Loaded shared code")
}

func (p *Playground) wire() {
	for name, ed := range p.namedEditors() {
		if ed == nil {
			continue
		}
		name := name
		ed.OnChange(p.onEdit)
		ed.OnCursor(func(c Cursor) {
			p.mu.Lock()
			p.cursors[name] = c
			p.mu.Unlock()
		})
	}
}

func (p *Playground) namedEditors() map[string]Editor {
	return map[string]Editor{"html": p.editors.Markup, "css": p.editors.Style, "js": p.editors.Script}
}

func (p *Playground) onEdit() {
	p.mu.Lock()
	skip := p.loading > 0 || !p.wired
	p.mu.Unlock()
	if skip {
		return
	}
	p.store.ScheduleSave()
	if p.debounce != nil {
		p.debounce(p.Recompose)
		return
	}
	p.Recompose()
}

// Teardown flushes any pending autosave and abandons the running preview.
func (p *Playground) Teardown() error {
	err := p.store.Flush()
	if c, ok := p.preview.(interface{ Close() }); ok {
		c.Close()
	}
	p.mu.Lock()
	p.wired = false
	p.mu.Unlock()
	return err
}

// Snapshot returns the live buffers. It reports false before Init.
func (p *Playground) Snapshot() (types.BufferSet, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return types.BufferSet{}, false
	}
	return types.BufferSet{
		Markup:          value(p.editors.Markup),
		Style:           value(p.editors.Style),
		Script:          value(p.editors.Script),
		Library:         p.library,
		SuppressDialogs: p.suppressDialogs,
	}, true
}

// Load puts b into the editors and recomposes. Editor change handlers do
// not fire autosave for a load.
func (p *Playground) Load(b types.BufferSet) {
	p.mu.Lock()
	p.loading++
	p.library = b.Library
	p.suppressDialogs = b.SuppressDialogs
	p.mu.Unlock()

	setValue(p.editors.Markup, b.Markup)
	setValue(p.editors.Style, b.Style)
	setValue(p.editors.Script, b.Script)

	p.mu.Lock()
	p.loading--
	p.mu.Unlock()
	p.Recompose()
}

// Recompose clears the console and loads a freshly composed document into
// the active preview surface.
func (p *Playground) Recompose() {
	p.mu.Lock()
	wired := p.wired
	target := p.preview
	if p.fullscreen != nil {
		target = p.fullscreen
	}
	p.mu.Unlock()
	if !wired || target == nil {
		return
	}
	b, ok := p.Snapshot()
	if !ok {
		return
	}

	p.console.Clear()
	target.Load(compositor.Compose(b, compositor.Live))
}

// Document returns the composed document for the live buffers.
func (p *Playground) Document() string {
	b, _ := p.Snapshot()
	return compositor.Compose(b, compositor.Live)
}

// HandleMessage accepts a raw message from the preview. Malformed
// messages are ignored.
func (p *Playground) HandleMessage(msg any) {
	if ev, ok := bridge.ParseMessage(msg); ok {
		p.console.OnEvent(ev)
	}
}

// HandleEvent appends a decoded bridge event to the console.
func (p *Playground) HandleEvent(ev bridge.Event) {
	p.console.OnEvent(ev)
}

// SetLibrary selects the external library by catalog id or URL. "" clears it.
func (p *Playground) SetLibrary(value string) error {
	lib := p.libraries.Resolve(value)
	if err := utils.ValidateString(lib, "library", 0, utils.MaxLibraryURL, false); err != nil {
		p.notifier.Notify(types.NoticeError, err.Error())
		return err
	}
	p.mu.Lock()
	changed := p.library != lib
	p.library = lib
	p.mu.Unlock()
	if changed {
		p.store.ScheduleSave()
		p.Recompose()
	}
	return nil
}

// SetSuppressDialogs toggles dialog suppression in the preview.
func (p *Playground) SetSuppressDialogs(enabled bool) {
	p.mu.Lock()
	changed := p.suppressDialogs != enabled
	p.suppressDialogs = enabled
	p.mu.Unlock()
	if changed {
		p.store.ScheduleSave()
		p.Recompose()
	}
}

// SetFullscreen moves the preview into surface, or back to the inline
// preview when surface is nil, and recomposes into it.
func (p *Playground) SetFullscreen(surface Preview) {
	p.mu.Lock()
	p.fullscreen = surface
	p.mu.Unlock()
	if src, ok := surface.(EventSource); ok {
		src.Attach(p.HandleEvent)
	}
	p.Recompose()
}

// ClearConsole empties the console.
func (p *Playground) ClearConsole() {
	p.console.Clear()
}

// Cursor returns the last caret position reported by an editor ("html",
// "css" or "js").
func (p *Playground) Cursor(buffer string) Cursor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursors[buffer]
}

// ShareURL returns a share link for the live buffers. base defaults to the
// configured share base.
func (p *Playground) ShareURL(base string, legacy bool) (string, error) {
	if base == "" {
		base = p.shareBase
	}
	b, _ := p.Snapshot()
	var (
		link string
		err  error
	)
	if legacy {
		link, err = share.LegacyURL(base, b.Shareable())
	} else {
		link, err = p.codec.URL(base, b.Shareable())
	}
	if err != nil {
		p.notifier.Notify(types.NoticeError, "Could not create share link")
		return "", err
	}
	return link, nil
}

// Publish uploads the live buffers to the hosting server. name defaults to
// the active project's name.
func (p *Playground) Publish(ctx context.Context, name string, tags []string) (*types.CreateResponse, error) {
	if p.publisher == nil {
		return nil, ErrNoPublisher
	}
	b, _ := p.Snapshot()
	if err := utils.ValidateBuffers(b); err != nil {
		p.notifier.Notify(types.NoticeError, err.Error())
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = p.store.Active().Name
	}

	resp, err := p.publisher.Create(ctx, types.CreateRequest{
		HTML:        b.Markup,
		CSS:         b.Style,
		JS:          b.Script,
		Library:     b.Library,
		ProjectName: name,
		Tags:        tags,
	})
	if err != nil {
		p.logger.Warn("publish failed", zap.Error(err))
		p.notifier.Notify(types.NoticeError, "Publishing failed")
		return nil, fmt.Errorf("publishing: %w", err)
	}
	p.notifier.Notify(types.NoticeSuccess, "Published to "+resp.URL)
	return resp, nil
}

// ExportZIP writes the active project as a ZIP archive.
func (p *Playground) ExportZIP(w io.Writer) error {
	if err := p.store.Save(); err != nil {
		p.logger.Warn("save before export failed", zap.Error(err))
	}
	active := p.store.Active()
	b, ok := p.Snapshot()
	if !ok {
		b = active.Buffers
	}
	return packaging.Export(w, packaging.Archive{
		Name:     active.Name,
		Buffers:  b,
		Modified: time.Now(),
	})
}

// ImportZIP creates a project from an archive and makes it active.
func (p *Playground) ImportZIP(data []byte, archiveName string) (string, error) {
	imported, err := packaging.Import(data, archiveName)
	if err != nil {
		p.notifier.Notify(types.NoticeError, "Import failed: "+err.Error())
		return "", err
	}
	name := imported.Name
	if r := []rune(name); len(r) > utils.MaxProjectNameLength {
		name = string(r[:utils.MaxProjectNameLength])
	}
	return p.store.CreateWith(name, imported.Buffers)
}

type styleBuffer struct{ p *Playground }

func (s styleBuffer) Style() (string, bool) {
	s.p.mu.Lock()
	ready := s.p.ready
	s.p.mu.Unlock()
	if !ready || s.p.editors.Style == nil {
		return "", false
	}
	return s.p.editors.Style.Value(), true
}

// SetStyle writes theme-injected rules. The theme layer recomposes itself.
func (s styleBuffer) SetStyle(v string) {
	s.p.mu.Lock()
	s.p.loading++
	s.p.mu.Unlock()
	setValue(s.p.editors.Style, v)
	s.p.mu.Lock()
	s.p.loading--
	s.p.mu.Unlock()
	s.p.store.ScheduleSave()
}

func value(e Editor) string {
	if e == nil {
		return ""
	}
	return e.Value()
}

func setValue(e Editor, v string) {
	if e != nil {
		e.SetValue(v)
	}
}
