package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
)

// Preview displays composed documents.
type Preview interface {
	Load(document string)
}

// EventSource is a Preview that reports bridge events back to the host.
type EventSource interface {
	Attach(sink func(bridge.Event))
}

// Runner executes a document. *sandbox.Pool and *sandbox.Runtime satisfy it.
type Runner interface {
	Run(ctx context.Context, document string, sink sandbox.Sink) (*sandbox.Result, error)
}

// SandboxPreview runs every loaded document in a fresh sandbox. Loading a
// document abandons the previous run: its context is cancelled and any
// events it still emits are dropped.
type SandboxPreview struct {
	runner Runner
	logger *zap.Logger

	mu       sync.Mutex
	sink     func(bridge.Event)
	cancel   context.CancelFunc
	gen      uint64
	document string
	result   *sandbox.Result
	wg       sync.WaitGroup
}

// NewSandboxPreview creates a preview backed by runner.
func NewSandboxPreview(runner Runner, logger *zap.Logger) *SandboxPreview {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SandboxPreview{runner: runner, logger: logger}
}

// Attach sets the receiver of bridge events.
func (p *SandboxPreview) Attach(sink func(bridge.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// Load starts running document and returns immediately.
func (p *SandboxPreview) Load(document string) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.gen++
	gen := p.gen
	p.document = document
	p.result = nil
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel()

		res, err := p.runner.Run(ctx, document, func(ev bridge.Event) {
			p.mu.Lock()
			current := gen == p.gen
			sink := p.sink
			p.mu.Unlock()
			if current && sink != nil {
				sink(ev)
			}
		})
		switch {
		case errors.Is(err, context.Canceled):
			p.logger.Debug("preview run abandoned", zap.Uint64("generation", gen))
			return
		case err != nil && res == nil:
			p.logger.Warn("preview run failed", zap.Uint64("generation", gen), zap.Error(err))
			return
		}

		p.mu.Lock()
		if gen == p.gen {
			p.result = res
		}
		p.mu.Unlock()
	}()
}

// Document returns the most recently loaded document.
func (p *SandboxPreview) Document() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.document
}

// Result returns the outcome of the current run once it has finished.
func (p *SandboxPreview) Result() *sandbox.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Wait blocks until every started run has returned.
func (p *SandboxPreview) Wait() {
	p.wg.Wait()
}

// Close abandons the current run and waits for it.
func (p *SandboxPreview) Close() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	p.mu.Unlock()
	p.wg.Wait()
}
