package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File stores each key as a file in a directory. Writes go to a temporary
// file that is renamed into place, so readers never see a partial value.
type File struct {
	dir   string
	cache sync.Map
	mu    sync.Mutex
}

// NewFile returns a File store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &File{dir: dir}, nil
}

// Dir returns the backing directory.
func (f *File) Dir() string { return f.dir }

func (f *File) keyPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." || strings.ContainsRune(key, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

// Get implements KV.
func (f *File) Get(key string) (string, bool, error) {
	if v, ok := f.cache.Load(key); ok {
		return v.(string), true, nil
	}

	path, err := f.keyPath(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}

	value := string(data)
	f.cache.Store(key, value)
	return value, true, nil
}

// Set implements KV.
func (f *File) Set(key, value string) error {
	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}

	f.cache.Store(key, value)
	return nil
}
