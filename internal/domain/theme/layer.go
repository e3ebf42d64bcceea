// Package theme applies the global visual theme to the host chrome and the
// editors, and optionally injects theme rules into the style buffer.
package theme

import (
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/providers/storage"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// StorageKey is the KV key holding the theme state.
const StorageKey = "livepen.theme"

// Chrome is the host page around the editors.
type Chrome interface {
	AddClass(class string)
	RemoveClass(class string)
	// SetStylesheet replaces the theme stylesheet; "" removes it.
	SetStylesheet(href string)
}

// EditorTheming sets the colour scheme of every editor.
type EditorTheming interface {
	SetEditorTheme(name string)
}

// StyleBuffer gives access to the style editor. Style reports false while
// the editor does not exist yet.
type StyleBuffer interface {
	Style() (string, bool)
	SetStyle(string)
}

// Surfaces groups the collaborators a Layer drives. Any of them may be nil
// until the page has finished building; the layer skips missing ones.
type Surfaces struct {
	Chrome    Chrome
	Editors   EditorTheming
	Style     StyleBuffer
	Recompose func()
}

// Layer owns the process-wide ThemeState.
type Layer struct {
	mu       sync.Mutex
	kv       storage.KV
	catalog  *Catalog
	surfaces Surfaces
	state    types.ThemeState
	applied  string
	notifier types.Notifier
	logger   *zap.Logger
}

// NewLayer creates a layer with the default theme selected.
func NewLayer(kv storage.KV, catalog *Catalog, notifier types.Notifier, logger *zap.Logger) *Layer {
	if catalog == nil {
		catalog = Builtin()
	}
	if notifier == nil {
		notifier = types.DiscardNotices
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Layer{
		kv:       kv,
		catalog:  catalog,
		state:    types.ThemeState{ThemeName: catalog.Default},
		notifier: notifier,
		logger:   logger,
	}
}

// Attach sets the surfaces and re-applies the current state to them.
func (l *Layer) Attach(s Surfaces) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.surfaces = s
	l.applyLocked(l.mustTheme(l.state.ThemeName))
	if l.state.InjectCSS {
		l.syncBlockLocked()
	}
}

// Catalog returns the theme catalog.
func (l *Layer) Catalog() *Catalog { return l.catalog }

// State returns the current theme state.
func (l *Layer) State() types.ThemeState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Load restores the persisted state and applies it. Unknown or unreadable
// state falls back to the catalog default.
func (l *Layer) Load() types.ThemeState {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, ok, err := l.kv.Get(StorageKey)
	switch {
	case err != nil:
		l.logger.Warn("reading theme state failed", zap.Error(err))
	case ok:
		var st types.ThemeState
		if err := sonic.UnmarshalString(raw, &st); err != nil {
			l.logger.Warn("discarding unreadable theme state", zap.Error(err))
		} else {
			if _, known := l.catalog.Lookup(st.ThemeName); !known {
				st.ThemeName = l.catalog.Default
			}
			l.state = st
		}
	}

	l.applyLocked(l.mustTheme(l.state.ThemeName))
	if l.state.InjectCSS {
		l.syncBlockLocked()
	}
	return l.state
}

// Apply switches to the named theme and persists the choice. When injection
// is on, the injected block is replaced with the new theme's rules.
func (l *Layer) Apply(name string) error {
	t, ok := l.catalog.Lookup(name)
	if !ok {
		return types.NewValidationError("theme", fmt.Sprintf("unknown theme %q", name))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.applyLocked(t)
	l.state.ThemeName = name
	if l.state.InjectCSS {
		l.syncBlockLocked()
	}
	return l.persistLocked()
}

// ToggleCSSInjection adds or strips the theme block in the style buffer and
// recomposes. Repeating the same call changes nothing.
func (l *Layer) ToggleCSSInjection(enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.InjectCSS = enabled
	l.syncBlockLocked()
	return l.persistLocked()
}

func (l *Layer) mustTheme(name string) Theme {
	if t, ok := l.catalog.Lookup(name); ok {
		return t
	}
	t, _ := l.catalog.Lookup(l.catalog.Default)
	return t
}

func (l *Layer) applyLocked(t Theme) {
	if c := l.surfaces.Chrome; c != nil {
		if prev, ok := l.catalog.Lookup(l.applied); ok && prev.ChromeClass != "" {
			c.RemoveClass(prev.ChromeClass)
		}
		c.SetStylesheet("")
		if t.ChromeClass != "" {
			c.AddClass(t.ChromeClass)
		}
		if t.Stylesheet != "" {
			c.SetStylesheet(t.Stylesheet)
		}
		l.applied = t.Name
	}
	if e := l.surfaces.Editors; e != nil && t.EditorTheme != "" {
		e.SetEditorTheme(t.EditorTheme)
	}
}

// syncBlockLocked makes the style buffer match InjectCSS, recomposing only
// when the buffer actually changed.
func (l *Layer) syncBlockLocked() {
	sb := l.surfaces.Style
	if sb == nil {
		return
	}
	style, ok := sb.Style()
	if !ok {
		return
	}

	var next string
	if l.state.InjectCSS {
		next = InjectBlock(style, l.mustTheme(l.state.ThemeName))
	} else {
		next = StripBlocks(style)
	}
	if next == style {
		return
	}
	sb.SetStyle(next)
	if l.surfaces.Recompose != nil {
		l.surfaces.Recompose()
	}
}

func (l *Layer) persistLocked() error {
	raw, err := sonic.MarshalString(l.state)
	if err == nil {
		err = l.kv.Set(StorageKey, raw)
	}
	if err != nil {
		l.logger.Error("saving theme state failed", zap.Error(err))
		l.notifier.Notify(types.NoticeError, "Could not save theme")
		return &types.PersistenceError{Op: "write", Err: err}
	}
	return nil
}
