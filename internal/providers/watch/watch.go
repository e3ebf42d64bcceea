// Package watch reloads a project directory whenever one of its source
// files changes. It backs `penctl watch`.
package watch

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
)

// DefaultDelay coalesces editor save bursts into one reload.
const DefaultDelay = 200 * time.Millisecond

var sourceExts = map[string]bool{".html": true, ".htm": true, ".css": true, ".js": true}

// Load reads the project stored in dir. The entry search is the same as
// for ZIP imports; the directory name is the fallback project name.
func Load(dir string) (*packaging.Imported, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	files := make(map[string]packaging.Source)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p != root && hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !sourceExts[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		path := p
		mu.Lock()
		files[filepath.ToSlash(rel)] = packaging.Source{
			Size: info.Size(),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return packaging.Assemble(files, filepath.Base(root))
}

// Watcher calls a handler with the reloaded project after changes settle.
type Watcher struct {
	root     string
	fs       *fsnotify.Watcher
	debounce func(func())
	onChange func(*packaging.Imported)
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Options tunes a Watcher.
type Options struct {
	Delay  time.Duration
	Logger *zap.Logger
}

// New watches dir and its non-hidden subdirectories.
func New(dir string, onChange func(*packaging.Imported), opts Options) (*Watcher, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		fs:       fsw,
		debounce: debounce.New(opts.Delay),
		onChange: onChange,
		logger:   opts.Logger,
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	var mu sync.Mutex
	var dirs []string
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		mu.Lock()
		dirs = append(dirs, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := w.fs.Add(d); err != nil {
			return err
		}
		w.logger.Debug("watching directory", zap.String("dir", d))
	}
	return nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if hidden(part) {
			return
		}
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("cannot watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !sourceExts[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.logger.Debug("source changed", zap.String("file", rel), zap.String("op", event.Op.String()))
		w.debounce(w.reload)
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	project, err := Load(w.root)
	if err != nil {
		w.logger.Warn("reload failed", zap.String("dir", w.root), zap.Error(err))
		return
	}
	w.onChange(project)
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("watcher already closed")
	}
	w.closed = true
	w.mu.Unlock()
	return w.fs.Close()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}
