package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

// Runtime executes composed documents. It keeps no per-run state, so one
// Runtime may serve concurrent runs.
type Runtime struct {
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a runtime.
func New(config Config, logger *zap.Logger) *Runtime {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxTasks <= 0 {
		config.MaxTasks = DefaultConfig().MaxTasks
	}
	if config.MaxCallStackSize <= 0 {
		config.MaxCallStackSize = DefaultConfig().MaxCallStackSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{config: config, logger: logger}
}

// WithMetrics records run outcomes on m.
func (r *Runtime) WithMetrics(m *monitoring.Metrics) *Runtime {
	r.metrics = m
	return r
}

// Config returns the runtime limits.
func (r *Runtime) Config() Config { return r.config }

// Run executes every inline script of document in a fresh VM, then drains
// the virtual timer queue. sink, if non-nil, receives each well-formed
// bridge message as it is posted.
func (r *Runtime) Run(ctx context.Context, document string, sink Sink) (*Result, error) {
	r.metrics.SandboxStarted()
	defer r.metrics.SandboxFinished()

	res, err := r.run(ctx, document, sink)
	switch {
	case err == nil:
		r.metrics.RecordSandboxRun("ok")
	case errors.Is(err, ErrTimeout):
		r.metrics.RecordSandboxRun("timeout")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.metrics.RecordSandboxRun("cancelled")
	default:
		r.metrics.RecordSandboxRun("error")
	}
	return res, err
}

func (r *Runtime) run(ctx context.Context, document string, sink Sink) (*Result, error) {
	start := time.Now()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	x := newExecution(r, doc, sink)
	scripts := collectScripts(document, doc, x.res)
	x.res.Scripts = len(scripts)

	done := make(chan struct{})
	defer close(done)
	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()
	go func() {
		select {
		case <-timer.C:
			x.halt(ErrTimeout)
		case <-ctx.Done():
			x.halt(ctx.Err())
		case <-done:
		}
	}()

	err = x.guardedExecute(scripts)
	x.res.Body = x.dom.body()
	x.res.VirtualTime = x.clock.now
	x.res.Duration = time.Since(start)
	if err != nil {
		r.logger.Debug("sandbox run halted", zap.Error(err), zap.Int("scripts", len(scripts)))
		return x.res, err
	}
	return x.res, nil
}

// script is one inline script with its first line in the document.
type script struct {
	name   string
	source string
	line   int
}

var scriptTypes = map[string]bool{
	"":                       true,
	"text/javascript":        true,
	"application/javascript": true,
	"module":                 true,
}

// collectScripts extracts inline scripts in document order. External
// scripts are recorded but never fetched.
func collectScripts(document string, doc *goquery.Document, res *Result) []script {
	var out []script
	cursor := 0
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			res.External = append(res.External, src)
			return
		}
		if !scriptTypes[strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))] {
			return
		}
		source := s.Text()
		line := 1
		if idx := strings.Index(document[cursor:], source); idx >= 0 && source != "" {
			pos := cursor + idx
			line = strings.Count(document[:pos], "\n") + 1
			cursor = pos + len(source)
		}
		out = append(out, script{name: fmt.Sprintf("inline-%d", len(out)+1), source: source, line: line})
	})
	return out
}

// execution is the state of a single run.
type execution struct {
	rt    *Runtime
	vm    *goja.Runtime
	sink  Sink
	res   *Result
	clock *clock
	dom   *dom

	listeners map[string][]goja.Value
	offsets   map[string]int
	pending   []*goja.Promise

	haltMu sync.Mutex
	halted error
}

func newExecution(rt *Runtime, doc *goquery.Document, sink Sink) *execution {
	vm := goja.New()
	vm.SetMaxCallStackSize(rt.config.MaxCallStackSize)
	x := &execution{
		rt:        rt,
		vm:        vm,
		sink:      sink,
		res:       &Result{},
		clock:     newClock(),
		listeners: make(map[string][]goja.Value),
		offsets:   make(map[string]int),
	}
	x.dom = newDOM(vm, doc, x.addListener)
	vm.SetPromiseRejectionTracker(x.trackRejection)
	x.installGlobals()
	return x
}

func (x *execution) halt(err error) {
	x.haltMu.Lock()
	if x.halted == nil {
		x.halted = err
	}
	x.haltMu.Unlock()
	x.vm.Interrupt(err)
}

func (x *execution) haltErr() error {
	x.haltMu.Lock()
	defer x.haltMu.Unlock()
	return x.halted
}

func (x *execution) execute(scripts []script) error {
	for _, s := range scripts {
		x.offsets[s.name] = s.line
		if err := x.runScript(s); err != nil {
			return err
		}
		if err := x.settle(); err != nil {
			return err
		}
	}

	if err := x.dispatch("document", "DOMContentLoaded", x.vm.NewObject()); err != nil {
		return err
	}
	if err := x.dispatch("window", "load", x.vm.NewObject()); err != nil {
		return err
	}
	if err := x.settle(); err != nil {
		return err
	}
	return x.drain()
}

// guardedExecute runs execute and turns a host panic into a page error, so
// that no script can take down the caller.
func (x *execution) guardedExecute(scripts []script) (err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		x.rt.logger.Warn("sandbox run panicked", zap.Any("panic", p))
		se := ScriptError{Message: fmt.Sprintf("Uncaught %v", p)}
		x.res.Errors = append(x.res.Errors, se)
		ev := bridge.Event{Kind: bridge.KindError, Text: se.Message}
		x.res.Events = append(x.res.Events, ev)
		if x.sink != nil {
			x.sink(ev)
		}
		err = x.haltErr()
	}()
	return x.execute(scripts)
}

func (x *execution) runScript(s script) error {
	ast, err := parser.ParseFile(nil, s.name, s.source, 0)
	if err != nil {
		se := ScriptError{Message: "Uncaught SyntaxError: " + err.Error(), Line: s.line}
		var list parser.ErrorList
		if errors.As(err, &list) && len(list) > 0 {
			se.Message = "Uncaught SyntaxError: " + list[0].Message
			se.Line = s.line + list[0].Position.Line - 1
			se.Column = list[0].Position.Column
		}
		return x.reportError(se, goja.Null())
	}
	prg, err := goja.CompileAST(ast, false)
	if err != nil {
		return x.reportError(ScriptError{Message: "Uncaught " + err.Error(), Line: s.line}, goja.Null())
	}
	_, err = x.vm.RunProgram(prg)
	return x.handle(err)
}

// handle turns a VM error into either a host failure or a page-level error
// event.
func (x *execution) handle(err error) error {
	if err == nil {
		return x.haltErr()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if h := x.haltErr(); h != nil {
			return h
		}
		return ErrTimeout
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return x.reportError(x.describe(ex), ex.Value())
	}
	return x.reportError(ScriptError{Message: "Uncaught " + err.Error()}, goja.Null())
}

// describe builds the browser-style message and document position of ex.
func (x *execution) describe(ex *goja.Exception) ScriptError {
	se := ScriptError{Message: "Uncaught " + x.thrownText(ex.Value())}
	for _, frame := range ex.Stack() {
		offset, ok := x.offsets[frame.SrcName()]
		if !ok {
			continue
		}
		pos := frame.Position()
		se.Line = offset + pos.Line - 1
		se.Column = pos.Column
		break
	}
	return se
}

// reportError records se and dispatches an ErrorEvent to window listeners.
func (x *execution) reportError(se ScriptError, thrown goja.Value) error {
	x.res.Errors = append(x.res.Errors, se)
	ev := x.vm.NewObject()
	_ = ev.Set("type", "error")
	_ = ev.Set("message", se.Message)
	_ = ev.Set("lineno", se.Line)
	_ = ev.Set("colno", se.Column)
	_ = ev.Set("filename", "")
	_ = ev.Set("error", thrown)
	return x.dispatch("window", "error", ev)
}

// dispatch calls every listener for target/typ. A throwing listener is
// logged and otherwise ignored so that error reporting cannot recurse.
func (x *execution) dispatch(target, typ string, ev *goja.Object) error {
	_ = ev.Set("type", typ)
	for _, l := range x.listeners[target+":"+typ] {
		fn, ok := goja.AssertFunction(l)
		if !ok {
			continue
		}
		if _, err := fn(x.vm.GlobalObject(), ev); err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				return x.handle(err)
			}
			x.rt.logger.Debug("listener threw", zap.String("event", typ), zap.Error(err))
		}
	}
	return x.haltErr()
}

func (x *execution) addListener(target, typ string, fn goja.Value) {
	if _, ok := goja.AssertFunction(fn); !ok {
		return
	}
	key := target + ":" + typ
	x.listeners[key] = append(x.listeners[key], fn)
}

func (x *execution) removeListener(target, typ string, fn goja.Value) {
	key := target + ":" + typ
	ls := x.listeners[key]
	for i, l := range ls {
		if l.SameAs(fn) {
			x.listeners[key] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

func (x *execution) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		x.pending = append(x.pending, p)
	case goja.PromiseRejectionHandle:
		for i, q := range x.pending {
			if q == p {
				x.pending = append(x.pending[:i], x.pending[i+1:]...)
				return
			}
		}
	}
}

// settle reports promises that were rejected during the last task and are
// still unhandled once its microtasks have run.
func (x *execution) settle() error {
	for len(x.pending) > 0 {
		p := x.pending[0]
		x.pending = x.pending[1:]
		ev := x.vm.NewObject()
		_ = ev.Set("reason", p.Result())
		if err := x.dispatch("window", "unhandledrejection", ev); err != nil {
			return err
		}
	}
	return x.haltErr()
}

// drain runs timer callbacks in virtual-time order until the queue is empty
// or the task budget is spent.
func (x *execution) drain() error {
	for {
		if err := x.haltErr(); err != nil {
			return err
		}
		t, ok := x.clock.next()
		if !ok {
			return nil
		}
		if x.res.Tasks >= x.rt.config.MaxTasks {
			x.res.Truncated = true
			return nil
		}
		x.res.Tasks++

		var err error
		if t.fn != nil {
			_, err = t.fn(x.vm.GlobalObject(), t.args...)
		} else {
			_, err = x.vm.RunString(t.code)
		}
		if err := x.handle(err); err != nil {
			return err
		}
		if err := x.settle(); err != nil {
			return err
		}
		if t.repeat {
			if _, live := x.clock.byID[t.id]; live {
				x.clock.schedule(t, t.interval)
			}
		}
	}
}

// post receives window.parent.postMessage.
func (x *execution) post(data goja.Value) {
	var raw any
	if data != nil {
		raw = data.Export()
	}
	x.res.Messages = append(x.res.Messages, raw)
	ev, ok := bridge.ParseMessage(raw)
	if !ok {
		return
	}
	x.res.Events = append(x.res.Events, ev)
	if x.sink != nil {
		x.sink(ev)
	}
}

// thrownText converts v inside the VM. A value whose conversion throws or
// has no primitive form prints as "exception".
func (x *execution) thrownText(v goja.Value) (text string) {
	defer func() {
		if p := recover(); p != nil {
			text = "exception"
		}
	}()
	if ex := x.vm.Try(func() { text = valueText(v) }); ex != nil {
		return "exception"
	}
	return text
}

// valueText renders a thrown value the way browsers print it after
// "Uncaught". It may panic on hostile values; call it through thrownText.
func valueText(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		name := obj.Get("name")
		msg := obj.Get("message")
		if name != nil && msg != nil && !goja.IsUndefined(name) && !goja.IsUndefined(msg) {
			return name.String() + ": " + msg.String()
		}
	}
	return v.String()
}
