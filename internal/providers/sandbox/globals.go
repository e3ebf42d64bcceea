package sandbox

import (
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

const shim = `
globalThis.queueMicrotask = function (fn) { Promise.resolve().then(fn); };
`

// installGlobals builds the browser surface seen by page code.
func (x *execution) installGlobals() {
	vm := x.vm
	global := vm.GlobalObject()

	for _, name := range []string{"require", "process", "module", "exports"} {
		_ = vm.Set(name, goja.Undefined())
	}
	_ = vm.Set("window", global)
	_ = vm.Set("self", global)

	parent := vm.NewObject()
	_ = parent.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		x.post(call.Argument(0))
		return goja.Undefined()
	})
	_ = vm.Set("parent", parent)
	_ = vm.Set("top", parent)

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, x.consoleFunc(level))
	}
	_ = vm.Set("console", console)

	_ = vm.Set("alert", func(call goja.FunctionCall) goja.Value {
		x.dialog("alert", call)
		return goja.Undefined()
	})
	_ = vm.Set("confirm", func(call goja.FunctionCall) goja.Value {
		x.dialog("confirm", call)
		return vm.ToValue(false)
	})
	_ = vm.Set("prompt", func(call goja.FunctionCall) goja.Value {
		x.dialog("prompt", call)
		return goja.Null()
	})

	_ = vm.Set("addEventListener", func(typ string, fn goja.Value) { x.addListener("window", typ, fn) })
	_ = vm.Set("removeEventListener", func(typ string, fn goja.Value) { x.removeListener("window", typ, fn) })

	_ = vm.Set("setTimeout", x.timerFunc(false))
	_ = vm.Set("setInterval", x.timerFunc(true))
	clear := func(id int64) { x.clock.cancel(id) }
	_ = vm.Set("clearTimeout", clear)
	_ = vm.Set("clearInterval", clear)
	_ = vm.Set("requestAnimationFrame", func(fn goja.Value) int64 {
		call, ok := goja.AssertFunction(fn)
		if !ok {
			return 0
		}
		return x.clock.schedule(&task{fn: call, args: []goja.Value{vm.ToValue(x.millis())}}, 16*time.Millisecond)
	})
	_ = vm.Set("cancelAnimationFrame", clear)

	performance := vm.NewObject()
	_ = performance.Set("now", func() float64 { return x.millis() })
	_ = vm.Set("performance", performance)

	location := vm.NewObject()
	_ = location.Set("href", "about:srcdoc")
	_ = location.Set("protocol", "about:")
	_ = vm.Set("location", location)

	navigator := vm.NewObject()
	_ = navigator.Set("userAgent", "livepen-sandbox")
	_ = navigator.Set("language", "en-US")
	_ = vm.Set("navigator", navigator)

	_ = vm.Set("document", x.dom.document())

	if _, err := vm.RunString(shim); err != nil {
		x.rt.logger.Warn("sandbox shim failed", zap.Error(err))
	}
}

func (x *execution) millis() float64 {
	return float64(x.clock.now) / float64(time.Millisecond)
}

func (x *execution) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		x.res.Console = append(x.res.Console, LogEntry{Level: level, Message: strings.Join(parts, " ")})
		return goja.Undefined()
	}
}

func (x *execution) dialog(kind string, call goja.FunctionCall) {
	msg := ""
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		msg = arg.String()
	}
	x.res.DialogsInvoked = append(x.res.DialogsInvoked, Dialog{Kind: kind, Message: msg})
}

// timerFunc implements setTimeout and setInterval on the virtual clock.
// String handlers are evaluated when the timer fires.
func (x *execution) timerFunc(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		t := &task{repeat: repeat}
		handler := call.Argument(0)
		if fn, ok := goja.AssertFunction(handler); ok {
			t.fn = fn
		} else {
			t.code = handler.String()
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		if repeat && delay == 0 {
			delay = time.Millisecond
		}
		t.interval = delay
		if len(call.Arguments) > 2 {
			t.args = append([]goja.Value(nil), call.Arguments[2:]...)
		}
		return x.vm.ToValue(x.clock.schedule(t, delay))
	}
}
