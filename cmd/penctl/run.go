package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/domain/console"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
)

type runReport struct {
	TimedOut bool            `json:"timedOut"`
	Console  []console.Line  `json:"console"`
	Result   *sandbox.Result `json:"result"`
}

func (c *cli) runCmd() *cobra.Command {
	var (
		src      sources
		timeout  time.Duration
		browser  bool
		chrome   string
		asJSON   bool
		strict   bool
		maxTasks int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run sources in the headless sandbox and print the console",
		Long: `Run composes the sources with the console bridge and executes them.
The default engine is an embedded JavaScript sandbox with a minimal DOM.
--browser runs the document in headless Chrome instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := src.load(c)
			if err != nil {
				return err
			}

			var runner interface {
				Run(ctx context.Context, document string, sink sandbox.Sink) (*sandbox.Result, error)
			}
			if browser {
				ch := sandbox.NewChrome(sandbox.ChromeOptions{ExecPath: chrome, Timeout: timeout, Logger: c.logger})
				defer ch.Close()
				runner = ch
			} else {
				cfg := sandbox.DefaultConfig()
				cfg.Timeout = timeout
				if maxTasks > 0 {
					cfg.MaxTasks = maxTasks
				}
				runner = sandbox.New(cfg, c.logger)
			}

			var view console.View
			if !asJSON {
				view = &lineView{w: c.out}
			}
			agg := console.New(view, nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := runner.Run(ctx, compositor.Compose(b, compositor.Live), agg.OnEvent)
			timedOut := errors.Is(err, sandbox.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
			if err != nil && !timedOut {
				return fmt.Errorf("run failed: %w", err)
			}

			if asJSON {
				if err := c.printJSON(runReport{TimedOut: timedOut, Console: agg.Lines(), Result: res}); err != nil {
					return err
				}
			} else if timedOut {
				return fmt.Errorf("run timed out after %s", timeout)
			}

			if strict {
				for _, l := range agg.Lines() {
					if l.Kind == bridge.KindError {
						return errors.New("script reported errors")
					}
				}
			}
			return nil
		},
	}
	src.register(cmd)
	f := cmd.Flags()
	f.DurationVarP(&timeout, "timeout", "t", 5*time.Second, "wall-clock limit for the run")
	f.IntVar(&maxTasks, "max-tasks", 0, "timer callbacks to execute before stopping (embedded engine)")
	f.BoolVar(&browser, "browser", false, "run in headless Chrome")
	f.StringVar(&chrome, "chrome", "", "Chrome executable for --browser")
	f.BoolVar(&asJSON, "json", false, "print the console and run details as JSON")
	f.BoolVar(&strict, "strict", false, "exit non-zero when the script logs errors")
	return cmd
}
