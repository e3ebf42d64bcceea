package sandbox

import (
	"context"
	"sync"
)

// Pool bounds the number of concurrent runs.
type Pool struct {
	runtime *Runtime
	slots   chan struct{}
	size    int
	mu      sync.RWMutex
	closed  bool
}

// NewPool creates a pool allowing size concurrent runs.
func NewPool(runtime *Runtime, size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{
		runtime: runtime,
		slots:   make(chan struct{}, size),
		size:    size,
	}
}

// Run waits for a free slot and executes document.
func (p *Pool) Run(ctx context.Context, document string, sink Sink) (*Result, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.slots }()

	return p.runtime.Run(ctx, document, sink)
}

// Close rejects further runs. Runs already in progress finish normally.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// PoolStats reports slot usage.
type PoolStats struct {
	Size   int  `json:"size"`
	InUse  int  `json:"inUse"`
	Closed bool `json:"closed"`
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PoolStats{Size: p.size, InUse: len(p.slots), Closed: p.closed}
}
