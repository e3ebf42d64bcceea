package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestNextOccurrence(t *testing.T) {
	loc := time.UTC
	base := time.Date(2024, 5, 1, 2, 59, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 5, 1, 3, 0, 0, 0, loc), NextOccurrence(base, 3, 0, loc))
	at := time.Date(2024, 5, 1, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 5, 2, 3, 0, 0, 0, loc), NextOccurrence(at, 3, 0, loc))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("04:30")
	require.NoError(t, err)
	assert.Equal(t, 4, h)
	assert.Equal(t, 30, m)

	_, _, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestTickRunsDueJobsOncePerDay(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)}
	s := New(time.UTC, nil)
	s.SetTimeFunc(c.Now)

	runs := 0
	require.NoError(t, s.AddDaily("sweep", "03:00", func(context.Context) error {
		runs++
		return nil
	}))

	s.Tick(context.Background())
	assert.Equal(t, 0, runs)

	c.Set(time.Date(2024, 5, 1, 3, 0, 10, 0, time.UTC))
	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Equal(t, 1, runs)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC), jobs[0].NextRun)
}

func TestFailedJobIsRescheduled(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 3, 59, 0, 0, time.UTC)}
	s := New(time.UTC, nil)
	s.SetTimeFunc(c.Now)

	boom := errors.New("disk full")
	require.NoError(t, s.AddDaily("backup", "04:00", func(context.Context) error { return boom }))

	c.Set(time.Date(2024, 5, 1, 4, 1, 0, 0, time.UTC))
	s.Tick(context.Background())

	job := s.Jobs()[0]
	assert.ErrorIs(t, job.LastErr, boom)
	assert.True(t, job.NextRun.After(c.Now()))
}

func TestStartStop(t *testing.T) {
	s := New(nil, nil)
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()

	assert.Error(t, s.RunNow(context.Background(), "missing"))
}
