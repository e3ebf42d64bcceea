package sandbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

// collector records every posted message on the top-level window. A page
// loaded directly in a tab is its own parent, so the preamble posts to it.
const collector = `window.__livepenMessages = [];
window.addEventListener('message', function (e) { window.__livepenMessages.push(e.data); });`

// ChromeOptions configures a headless browser runner.
type ChromeOptions struct {
	// ExecPath overrides chromedp's browser lookup.
	ExecPath string
	// Settle is how long a page may run after load before messages are read.
	Settle  time.Duration
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Chrome runs documents in headless Chrome tabs. It reports the same bridge
// events as Runtime and can replace it where a page needs real layout.
type Chrome struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	opts     ChromeOptions
	logger   *zap.Logger
}

// NewChrome starts an allocator. The browser process itself is launched
// lazily by the first run.
func NewChrome(opts ChromeOptions) *Chrome {
	if opts.Settle <= 0 {
		opts.Settle = 250 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &Chrome{allocCtx: allocCtx, cancel: cancel, opts: opts, logger: logger}
}

// Run loads document into a fresh tab, lets it settle and collects the
// messages it posted. Blocking dialogs are accepted and recorded.
func (c *Chrome) Run(ctx context.Context, document string, sink Sink) (*Result, error) {
	c.opts.Metrics.SandboxStarted()
	defer c.opts.Metrics.SandboxFinished()

	start := time.Now()
	tabCtx, cancelTab := chromedp.NewContext(c.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.opts.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	res := &Result{}
	var (
		mu      sync.Mutex
		dialogs []Dialog
	)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		mu.Lock()
		dialogs = append(dialogs, Dialog{Kind: string(e.Type), Message: e.Message})
		mu.Unlock()
		go func() {
			if err := chromedp.Run(tabCtx, page.HandleJavaScriptDialog(true)); err != nil {
				c.logger.Debug("Dialog dismissal failed", zap.Error(err))
			}
		}()
	})

	var raw []any
	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(collector).Do(ctx)
			return err
		}),
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(document))),
		chromedp.Sleep(c.opts.Settle),
		chromedp.Evaluate(`window.__livepenMessages || []`, &raw),
		chromedp.Evaluate(`document.body ? document.body.innerHTML : ""`, &res.Body),
	)
	res.Duration = time.Since(start)
	mu.Lock()
	res.DialogsInvoked = append([]Dialog(nil), dialogs...)
	mu.Unlock()
	if err != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "cancelled"
			err = ctx.Err()
		} else if tabCtx.Err() != nil {
			status = "timeout"
			err = ErrTimeout
		}
		c.opts.Metrics.RecordSandboxRun(status)
		return res, fmt.Errorf("chrome run: %w", err)
	}

	for _, msg := range raw {
		res.Messages = append(res.Messages, msg)
		ev, ok := bridge.ParseMessage(msg)
		if !ok {
			continue
		}
		res.Events = append(res.Events, ev)
		if sink != nil {
			sink(ev)
		}
	}
	c.opts.Metrics.RecordSandboxRun("ok")
	return res, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	c.cancel()
	return nil
}
