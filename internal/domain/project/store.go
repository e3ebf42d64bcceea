// Package project keeps the user's named projects and tracks which one is
// loaded in the editors.
package project

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/providers/storage"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

// StorageKey is the KV key holding the store document.
const StorageKey = "livepen.store"

// DefaultProjectName names the project seeded into an empty store.
const DefaultProjectName = "My first project"

// LiveBuffers is the editing surface the store reads from and writes to.
// Snapshot reports false while the editors are not initialised yet.
type LiveBuffers interface {
	Snapshot() (types.BufferSet, bool)
	Load(types.BufferSet)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(message string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

// AlwaysConfirm approves every confirmation.
var AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })

// Options configures a Store.
type Options struct {
	AutosaveDelay time.Duration
	Confirmer     Confirmer
	Notifier      types.Notifier
	Logger        *zap.Logger
	Now           func() time.Time
}

type document struct {
	Version   int             `json:"version"`
	Projects  []types.Project `json:"projects"`
	ActiveKey string          `json:"activeKey"`
}

// Store owns the ordered project list and the active project key.
// Invariant after Load: at least one project exists and activeKey names one.
type Store struct {
	mu        sync.Mutex
	kv        storage.KV
	live      LiveBuffers
	projects  []types.Project
	activeKey string
	loaded    bool

	confirm  Confirmer
	notifier types.Notifier
	logger   *zap.Logger
	now      func() time.Time
	debounce func(func())
}

// NewStore creates a store backed by kv that syncs with live.
func NewStore(kv storage.KV, live LiveBuffers, opts Options) *Store {
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = time.Second
	}
	if opts.Confirmer == nil {
		opts.Confirmer = AlwaysConfirm
	}
	if opts.Notifier == nil {
		opts.Notifier = types.DiscardNotices
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		kv:       kv,
		live:     live,
		confirm:  opts.Confirmer,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
		debounce: debounce.New(opts.AutosaveDelay),
	}
}

// Load reads the persisted document, repairs the active key, seeds a default
// project when none exist, and loads the active project into the editors.
// A corrupt document is reported and replaced by a fresh one.
func (s *Store) Load() (types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects = nil
	s.activeKey = ""

	raw, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		perr := &types.PersistenceError{Op: "read", Err: err}
		s.logger.Error("reading project store failed", zap.Error(err))
		s.notifier.Notify(types.NoticeError, "Could not read saved projects")
		return s.finishLoad(perr)
	}
	if ok {
		var doc document
		if err := sonic.UnmarshalString(raw, &doc); err != nil {
			s.logger.Warn("discarding corrupt project store", zap.Error(err))
			s.notifier.Notify(types.NoticeWarning, "Saved projects were unreadable and have been reset")
		} else {
			s.projects = dedupe(doc.Projects)
			s.activeKey = doc.ActiveKey
		}
	}

	return s.finishLoad(nil)
}

func (s *Store) finishLoad(loadErr error) (types.Project, error) {
	seeded := false
	if len(s.projects) == 0 {
		now := s.now()
		s.projects = []types.Project{{
			Key:       id.NewProjectKey().String(),
			Name:      DefaultProjectName,
			Buffers:   types.DefaultBuffers(),
			CreatedAt: now,
			UpdatedAt: now,
		}}
		seeded = true
	}
	if s.indexOf(s.activeKey) < 0 {
		s.activeKey = s.projects[0].Key
	}
	s.loaded = true

	active := s.projects[s.indexOf(s.activeKey)]
	s.live.Load(active.Buffers)

	if seeded && loadErr == nil {
		loadErr = s.persist()
	}
	return active, loadErr
}

func dedupe(in []types.Project) []types.Project {
	seen := make(map[string]bool, len(in))
	out := make([]types.Project, 0, len(in))
	for _, p := range in {
		if p.Key == "" || seen[p.Key] {
			continue
		}
		seen[p.Key] = true
		out = append(out, p)
	}
	return out
}

// Create adds a project with default buffers and makes it active.
func (s *Store) Create(name string) (string, error) {
	return s.CreateWith(name, types.DefaultBuffers())
}

// CreateWith adds a project with the given buffers and makes it active. The
// outgoing project's live buffers are saved first. On a storage failure the
// new key is still returned: the in-memory state has changed.
func (s *Store) CreateWith(name string, buffers types.BufferSet) (string, error) {
	name = strings.TrimSpace(name)
	if err := utils.ValidateProjectName(name); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLoaded(); err != nil {
		return "", err
	}
	s.captureLive()

	now := s.now()
	p := types.Project{
		Key:       id.NewProjectKey().String(),
		Name:      name,
		Buffers:   buffers,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.projects = append(s.projects, p)
	s.activeKey = p.Key
	s.live.Load(p.Buffers)

	s.logger.Info("project created", zap.String("key", p.Key), zap.String("name", name))
	if err := s.persist(); err != nil {
		return p.Key, err
	}
	s.notifier.Notify(types.NoticeSuccess, fmt.Sprintf("Project %q created", name))
	return p.Key, nil
}

// SwitchTo saves the live buffers into the active project and loads key.
// An unknown key is ignored.
func (s *Store) SwitchTo(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLoaded(); err != nil {
		return err
	}
	i := s.indexOf(key)
	if i < 0 {
		s.logger.Debug("switch to unknown project ignored", zap.String("key", key))
		return nil
	}

	s.captureLive()
	if key != s.activeKey {
		s.activeKey = key
		s.live.Load(s.projects[i].Buffers)
	}
	return s.persist()
}

// Save copies the live buffers into the active project and persists. It is
// a no-op while the editors are not initialised.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil
	}
	if !s.captureLive() {
		return nil
	}
	return s.persist()
}

// Delete removes a project after confirmation. Deleting the active project
// activates the first remaining one. Unknown keys are ignored.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLoaded(); err != nil {
		return err
	}
	i := s.indexOf(key)
	if i < 0 {
		return nil
	}
	if len(s.projects) == 1 {
		s.notifier.Notify(types.NoticeWarning, "The last project cannot be deleted")
		return types.ErrLastProject
	}
	name := s.projects[i].Name
	if !s.confirm.Confirm(fmt.Sprintf("Delete project %q?", name)) {
		return types.ErrCancelled
	}

	wasActive := key == s.activeKey
	if !wasActive {
		s.captureLive()
	}
	s.projects = append(s.projects[:i:i], s.projects[i+1:]...)
	if wasActive {
		s.activeKey = s.projects[0].Key
		s.live.Load(s.projects[0].Buffers)
	}

	s.logger.Info("project deleted", zap.String("key", key))
	if err := s.persist(); err != nil {
		return err
	}
	s.notifier.Notify(types.NoticeInfo, fmt.Sprintf("Project %q deleted", name))
	return nil
}

// Rename changes a project's name.
func (s *Store) Rename(key, name string) error {
	name = strings.TrimSpace(name)
	if err := utils.ValidateProjectName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(key)
	if i < 0 {
		return fmt.Errorf("project %s: %w", key, types.ErrNotFound)
	}
	s.projects[i].Name = name
	s.projects[i].UpdatedAt = s.now()
	return s.persist()
}

// ScheduleSave requests a save after the autosave delay. Calls within the
// delay collapse into one trailing save.
func (s *Store) ScheduleSave() {
	s.debounce(func() {
		if err := s.Save(); err != nil {
			s.logger.Warn("autosave failed", zap.Error(err))
		}
	})
}

// Flush cancels any pending autosave and saves immediately.
func (s *Store) Flush() error {
	s.debounce(func() {})
	return s.Save()
}

// List returns project summaries in insertion order.
func (s *Store) List() []types.ProjectSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.ProjectSummary, len(s.projects))
	for i, p := range s.projects {
		out[i] = types.ProjectSummary{Key: p.Key, Name: p.Name, Active: p.Key == s.activeKey}
	}
	return out
}

// Active returns a copy of the active project as last saved.
func (s *Store) Active() types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(s.activeKey); i >= 0 {
		return s.projects[i]
	}
	return types.Project{}
}

// Get returns a copy of the project with key.
func (s *Store) Get(key string) (types.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(key); i >= 0 {
		return s.projects[i], true
	}
	return types.Project{}, false
}

var errNotLoaded = errors.New("project store not loaded")

func (s *Store) requireLoaded() error {
	if !s.loaded {
		return errNotLoaded
	}
	return nil
}

func (s *Store) indexOf(key string) int {
	if key == "" {
		return -1
	}
	for i, p := range s.projects {
		if p.Key == key {
			return i
		}
	}
	return -1
}

// captureLive copies the live buffers into the active project.
func (s *Store) captureLive() bool {
	b, ok := s.live.Snapshot()
	if !ok {
		return false
	}
	i := s.indexOf(s.activeKey)
	if i < 0 {
		return false
	}
	if s.projects[i].Buffers != b {
		s.projects[i].Buffers = b
		s.projects[i].UpdatedAt = s.now()
	}
	return true
}

// persist writes the document. Failures are reported and returned; the
// in-memory state is kept either way.
func (s *Store) persist() error {
	doc := document{Version: 1, Projects: s.projects, ActiveKey: s.activeKey}
	raw, err := sonic.MarshalString(doc)
	if err == nil {
		err = s.kv.Set(StorageKey, raw)
	}
	if err != nil {
		s.logger.Error("saving project store failed", zap.Error(err))
		s.notifier.Notify(types.NoticeError, "Could not save projects: "+err.Error())
		return &types.PersistenceError{Op: "write", Err: err}
	}
	return nil
}
