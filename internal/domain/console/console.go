// Package console aggregates bridge events into the ordered console shown
// beside the preview.
package console

import (
	"sync"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

// Line is one rendered console entry.
type Line struct {
	Seq   int         `json:"seq"`
	Kind  bridge.Kind `json:"kind"`
	Text  string      `json:"text"`
	Class string      `json:"class"`
}

// ClassFor returns the style class for a kind.
func ClassFor(k bridge.Kind) string {
	return "console-" + string(k)
}

// View renders the console. Calls arrive in order and never concurrently.
type View interface {
	Append(Line)
	Clear()
	ScrollToBottom()
}

// Update is delivered to subscribers: either a new line or a clear.
type Update struct {
	Cleared bool
	Line    Line
}

// Aggregator owns the console contents.
type Aggregator struct {
	mu      sync.Mutex
	lines   []Line
	seq     int
	view    View
	subs    map[int]func(Update)
	nextSub int
	metrics *monitoring.Metrics
}

// New creates an aggregator rendering into view (which may be nil).
func New(view View, metrics *monitoring.Metrics) *Aggregator {
	return &Aggregator{
		view:    view,
		subs:    make(map[int]func(Update)),
		metrics: metrics,
	}
}

// OnEvent appends one event as a line. Events of unknown kind are ignored.
func (a *Aggregator) OnEvent(ev bridge.Event) {
	if !ev.Kind.Valid() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	line := Line{Seq: a.seq, Kind: ev.Kind, Text: ev.Text, Class: ClassFor(ev.Kind)}
	a.lines = append(a.lines, line)
	a.metrics.RecordConsoleEvent(string(ev.Kind))

	if a.view != nil {
		a.view.Append(line)
		a.view.ScrollToBottom()
	}
	a.publish(Update{Line: line})
}

// Clear empties the console. It is safe to call at any time.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lines = nil
	if a.view != nil {
		a.view.Clear()
	}
	a.publish(Update{Cleared: true})
}

// Lines returns a copy of the current lines in arrival order.
func (a *Aggregator) Lines() []Line {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Line, len(a.lines))
	copy(out, a.lines)
	return out
}

// Subscribe registers fn for every subsequent update and returns a function
// that removes it. fn runs under the aggregator lock and must not call back
// into the aggregator.
func (a *Aggregator) Subscribe(fn func(Update)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

func (a *Aggregator) publish(u Update) {
	for _, fn := range a.subs {
		fn(u)
	}
}
