package sandbox

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

func runBuffers(t *testing.T, b types.BufferSet) *Result {
	t.Helper()
	rt := New(DefaultConfig(), nil)
	res, err := rt.Run(context.Background(), compositor.Compose(b, compositor.Live), nil)
	require.NoError(t, err)
	return res
}

func TestSuppressedAlertBecomesLogEvent(t *testing.T) {
	res := runBuffers(t, types.BufferSet{Script: "alert('x')", SuppressDialogs: true})

	require.Len(t, res.Events, 1)
	assert.Equal(t, bridge.KindLog, res.Events[0].Kind)
	assert.Contains(t, res.Events[0].Text, bridge.SuppressedMarker)
	assert.Contains(t, res.Events[0].Text, "x")
	assert.Empty(t, res.DialogsInvoked)
}

func TestDialogsReachHostWhenNotSuppressed(t *testing.T) {
	res := runBuffers(t, types.BufferSet{Script: "var ok = confirm('sure?'); console.log(String(ok));"})

	require.Len(t, res.DialogsInvoked, 1)
	assert.Equal(t, Dialog{Kind: "confirm", Message: "sure?"}, res.DialogsInvoked[0])
	require.Len(t, res.Events, 1)
	assert.Equal(t, "false", res.Events[0].Text)
}

func TestSuppressedConfirmAndPromptDefaults(t *testing.T) {
	res := runBuffers(t, types.BufferSet{
		Script:          "console.log(String(confirm('a')), String(prompt('b')));",
		SuppressDialogs: true,
	})

	require.Len(t, res.Events, 3)
	assert.Contains(t, res.Events[0].Text, "[confirm suppressed] a")
	assert.Contains(t, res.Events[1].Text, "[prompt suppressed] b")
	assert.Equal(t, "true null", res.Events[2].Text)
}

func TestUncaughtErrorCarriesDocumentLine(t *testing.T) {
	b := types.BufferSet{Script: "undefinedFn()"}
	doc := compositor.Compose(b, compositor.Live)
	line := strings.Count(doc[:strings.Index(doc, "undefinedFn()")], "\n") + 1

	res := runBuffers(t, b)

	require.Len(t, res.Events, 1)
	assert.Equal(t, bridge.KindError, res.Events[0].Kind)
	assert.Contains(t, res.Events[0].Text, "undefinedFn is not defined")
	assert.Contains(t, res.Events[0].Text, fmt.Sprintf("(line: %d)", line))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, line, res.Errors[0].Line)
}

func TestConsoleForwarding(t *testing.T) {
	res := runBuffers(t, types.BufferSet{Script: strings.Join([]string{
		"console.log({a: 1}, 2);",
		"console.info('info');",
		"console.warn('careful');",
		"console.error(new TypeError('bad'));",
		"console.log(undefined, null, [1, 'x']);",
	}, "\n")})

	assert.Equal(t, []bridge.Event{
		{Kind: bridge.KindLog, Text: `{"a":1} 2`},
		{Kind: bridge.KindLog, Text: "info"},
		{Kind: bridge.KindWarn, Text: "careful"},
		{Kind: bridge.KindError, Text: "TypeError: bad"},
		{Kind: bridge.KindLog, Text: `undefined null [1,"x"]`},
	}, res.Events)
	assert.Len(t, res.Console, 5)
}

func TestUnhandledRejection(t *testing.T) {
	res := runBuffers(t, types.BufferSet{Script: "Promise.reject(new Error('nope')); Promise.reject(1).catch(function () {});"})

	require.Len(t, res.Events, 1)
	assert.Equal(t, bridge.Event{Kind: bridge.KindError, Text: "Promise rejected: Error: nope"}, res.Events[0])
}

func TestTimersRunInVirtualOrder(t *testing.T) {
	res := runBuffers(t, types.BufferSet{Script: strings.Join([]string{
		"setTimeout(function () { console.log('b'); }, 20);",
		"var id = setTimeout(function () { console.log('never'); }, 5);",
		"setTimeout(function (x) { console.log(x); }, 10, 'a');",
		"clearTimeout(id);",
	}, "\n")})

	require.Len(t, res.Events, 2)
	assert.Equal(t, "a", res.Events[0].Text)
	assert.Equal(t, "b", res.Events[1].Text)
	assert.Equal(t, 20*time.Millisecond, res.VirtualTime)
	assert.Equal(t, 2, res.Tasks)
}

func TestIntervalIsBoundedByTaskBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTasks = 25
	rt := New(cfg, nil)

	res, err := rt.Run(context.Background(), "<script>var n = 0; setInterval(function () { n++; }, 0);</script>", nil)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 25, res.Tasks)
}

func TestClearIntervalFromCallback(t *testing.T) {
	rt := New(DefaultConfig(), nil)
	doc := `<script>var n = 0; var id = setInterval(function () { n++; console.log(n); if (n === 3) clearInterval(id); }, 100);</script>`

	res, err := rt.Run(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Len(t, res.Console, 3)
	assert.Equal(t, 300*time.Millisecond, res.VirtualTime)
}

func TestInfiniteLoopTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	rt := New(cfg, nil)

	_, err := rt.Run(context.Background(), "<script>while (true) {}</script>", nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCancelledContextStopsRun(t *testing.T) {
	rt := New(DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rt.Run(ctx, "<script>while (true) {}</script>", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScriptsContinueAfterError(t *testing.T) {
	rt := New(DefaultConfig(), nil)
	doc := "<script>throw new Error('one')</script>\n<script>console.log('two')</script>"

	res, err := rt.Run(context.Background(), doc, nil)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Uncaught Error: one", res.Errors[0].Message)
	assert.Equal(t, 1, res.Errors[0].Line)
	require.Len(t, res.Console, 1)
	assert.Equal(t, "two", res.Console[0].Message)
}

func TestUnprintableThrownValues(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"null prototype", "throw Object.create(null)"},
		{"throwing toString", "throw {toString: function(){ throw 1 }}"},
		{"throwing getter", "throw Object.defineProperty(new Error('x'), 'message', {get: function(){ throw 2 }})"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := types.BufferSet{Script: tt.script + "\n;"}
			doc := compositor.Compose(b, compositor.Live) + "<script>console.log('after')</script>"
			var res *Result
			assert.NotPanics(t, func() {
				var err error
				res, err = New(DefaultConfig(), nil).Run(context.Background(), doc, nil)
				require.NoError(t, err)
			})
			require.NotNil(t, res)
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, "Uncaught exception", res.Errors[0].Message)

			var texts []string
			for _, ev := range res.Events {
				texts = append(texts, ev.Text)
			}
			assert.Contains(t, texts, "after", "later scripts still run")
		})
	}
}

func TestSyntaxErrorIsReported(t *testing.T) {
	rt := New(DefaultConfig(), nil)

	res, err := rt.Run(context.Background(), "<body>\n<script>\nvar = ;\n</script></body>", nil)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0].Message, "Uncaught SyntaxError"))
	assert.Equal(t, 3, res.Errors[0].Line)
}

func TestMalformedMessagesAreIgnored(t *testing.T) {
	rt := New(DefaultConfig(), nil)
	doc := `<script>parent.postMessage({kind: 'shout', text: 'x'}, '*'); parent.postMessage('hi', '*'); parent.postMessage({kind: 'log', text: 3}, '*');</script>`

	var seen []bridge.Event
	res, err := rt.Run(context.Background(), doc, func(ev bridge.Event) { seen = append(seen, ev) })
	require.NoError(t, err)
	assert.Len(t, res.Messages, 3)
	assert.Empty(t, res.Events)
	assert.Empty(t, seen)
}

func TestSinkReceivesEventsInOrder(t *testing.T) {
	rt := New(DefaultConfig(), nil)
	doc := compositor.Compose(types.BufferSet{Script: "console.log(1); console.warn(2); setTimeout(function () { console.error(3); }, 1);"}, compositor.Live)

	var seen []string
	_, err := rt.Run(context.Background(), doc, func(ev bridge.Event) { seen = append(seen, string(ev.Kind)+":"+ev.Text) })
	require.NoError(t, err)
	assert.Equal(t, []string{"log:1", "warn:2", "error:3"}, seen)
}

func TestDocumentProxy(t *testing.T) {
	res := runBuffers(t, types.DefaultBuffers())
	assert.Contains(t, res.Body, "<p>JS executed</p>")
	assert.Contains(t, res.Body, "<h1>Hello World</h1>")

	res = runBuffers(t, types.BufferSet{
		Markup: `<div id="app" class="box big"><span>hi</span></div>`,
		Script: strings.Join([]string{
			"var app = document.getElementById('app');",
			"console.log(app === document.querySelector('#app'), app.tagName, app.textContent);",
			"console.log(document.getElementsByClassName('big').length, document.querySelectorAll('span').length);",
			"var p = document.createElement('p'); p.textContent = 'added'; app.appendChild(p);",
			"app.classList.add('ready'); app.setAttribute('data-x', '1');",
			"document.title = 'Demo'; console.log(document.title);",
		}, "\n"),
	})
	require.Len(t, res.Events, 3)
	assert.Equal(t, "true DIV hi", res.Events[0].Text)
	assert.Equal(t, "1 1", res.Events[1].Text)
	assert.Equal(t, "Demo", res.Events[2].Text)
	assert.Contains(t, res.Body, "<p>added</p>")
	assert.Contains(t, res.Body, `class="box big ready"`)
	assert.Contains(t, res.Body, `data-x="1"`)
}

func TestInvalidSelectorThrowsInPage(t *testing.T) {
	res := runBuffers(t, types.BufferSet{Script: "document.querySelector('##');"})
	require.Len(t, res.Events, 1)
	assert.Equal(t, bridge.KindError, res.Events[0].Kind)
	assert.Contains(t, res.Events[0].Text, "not a valid selector")
}

func TestLoadEventsFire(t *testing.T) {
	res := runBuffers(t, types.BufferSet{Script: strings.Join([]string{
		"window.addEventListener('load', function () { console.log('load'); });",
		"document.addEventListener('DOMContentLoaded', function () { console.log('ready'); });",
	}, "\n")})

	require.Len(t, res.Events, 2)
	assert.Equal(t, "ready", res.Events[0].Text)
	assert.Equal(t, "load", res.Events[1].Text)
}

func TestExternalScriptsAreRecorded(t *testing.T) {
	res := runBuffers(t, types.BufferSet{Library: "https://cdn.example.com/lib.js", Script: "console.log(typeof require);"})
	assert.Equal(t, []string{"https://cdn.example.com/lib.js"}, res.External)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "undefined", res.Events[0].Text)
}

func TestPool(t *testing.T) {
	pool := NewPool(New(DefaultConfig(), nil), 2)
	res, err := pool.Run(context.Background(), "<script>console.log('pooled')</script>", nil)
	require.NoError(t, err)
	assert.Len(t, res.Console, 1)
	assert.Equal(t, PoolStats{Size: 2}, pool.Stats())

	require.NoError(t, pool.Close())
	_, err = pool.Run(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrPoolClosed)
}
