// Package scheduler runs maintenance jobs once a day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler performs one run of a job.
type Handler func(ctx context.Context) error

// Job is a daily job.
type Job struct {
	Name    string
	Hour    int
	Minute  int
	Handler Handler

	NextRun time.Time
	LastRun time.Time
	LastErr error
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextOccurrence returns the first hour:minute strictly after now in loc.
func NextOccurrence(now time.Time, hour, minute int, loc *time.Location) time.Time {
	now = now.In(loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Scheduler checks registered jobs on a ticker and runs those that are due.
type Scheduler struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	location *time.Location
	interval time.Duration
	logger   *zap.Logger
	done     chan struct{}
	wg       sync.WaitGroup
	running  bool

	nowFunc func() time.Time
}

// New creates a scheduler in loc (time.Local when nil).
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:     make(map[string]*Job),
		location: loc,
		interval: 30 * time.Second,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// SetTimeFunc sets a custom time source (for testing).
func (s *Scheduler) SetTimeFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = fn
}

func (s *Scheduler) now() time.Time {
	return s.nowFunc().In(s.location)
}

// AddDaily registers a job at "HH:MM" local time.
func (s *Scheduler) AddDaily(name, at string, h Handler) error {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = &Job{
		Name:    name,
		Hour:    hour,
		Minute:  minute,
		Handler: h,
		NextRun: NextOccurrence(s.nowFunc(), hour, minute, s.location),
	}
	return nil
}

// Jobs returns copies of the registered jobs ordered by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Start begins the ticker loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, done)
}

// Stop halts the loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every job that is due. Exposed for tests.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.RLock()
	due := make([]*Job, 0)
	for _, j := range s.jobs {
		if !j.NextRun.After(now) {
			due = append(due, j)
		}
	}
	s.mu.RUnlock()

	for _, j := range due {
		s.execute(ctx, j, now)
	}
}

// RunNow runs a job immediately without changing its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return j.Handler(ctx)
}

func (s *Scheduler) execute(ctx context.Context, j *Job, now time.Time) {
	start := time.Now()
	err := j.Handler(ctx)
	if err != nil {
		s.logger.Error("scheduled job failed", zap.String("job", j.Name), zap.Error(err))
	} else {
		s.logger.Info("scheduled job finished", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j.LastRun = now
	j.LastErr = err
	j.NextRun = NextOccurrence(now, j.Hour, j.Minute, s.location)
}
