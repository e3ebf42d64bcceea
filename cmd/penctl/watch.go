package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/app"
	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
	"github.com/GriffinCanCode/livepen/internal/providers/storage"
	"github.com/GriffinCanCode/livepen/internal/providers/watch"
)

func (c *cli) watchCmd() *cobra.Command {
	var (
		output  string
		run     bool
		timeout time.Duration
		delay   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Recompose a source directory whenever it changes",
		Long: `Watch loads index.html, style.css and script.js from a directory and
recomposes after every change. --output rewrites a preview file; --run
executes each document in the sandbox and prints its console. A newer
change abandons the run of the previous one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if output == "" && !run {
				return fmt.Errorf("nothing to do: pass --output and/or --run")
			}

			preview := &filePreview{
				path:  output,
				onErr: func(err error) { c.logger.Warn("writing preview failed", zap.Error(err)) },
			}
			if run {
				cfg := sandbox.DefaultConfig()
				cfg.Timeout = timeout
				preview.sandbox = app.NewSandboxPreview(sandbox.New(cfg, c.logger), c.logger.Named("preview"))
			}

			pg := app.New(app.Options{
				KV:          storage.NewMemory(),
				Editors:     app.NewTextEditors(),
				Preview:     preview,
				ConsoleView: &lineView{w: c.out},
				Notifier:    c.notifier(),
				Logger:      c.logger,
			})
			if err := pg.Init(cmd.Context(), nil); err != nil {
				return err
			}
			defer pg.Teardown()

			reload := func(imported *packaging.Imported) {
				fmt.Fprintf(c.errOut, "recomposed %s\n", imported.Name)
				pg.Load(imported.Buffers)
			}
			initial, err := watch.Load(dir)
			if err != nil {
				return err
			}
			reload(initial)

			w, err := watch.New(dir, reload, watch.Options{Delay: delay, Logger: c.logger.Named("watch")})
			if err != nil {
				return err
			}
			defer w.Close()
			fmt.Fprintf(c.errOut, "watching %s\n", dir)
			return w.Run(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "rewrite this file with each composed document")
	f.BoolVar(&run, "run", false, "run each document and print its console")
	f.DurationVarP(&timeout, "timeout", "t", 5*time.Second, "wall-clock limit per run")
	f.DurationVar(&delay, "delay", watch.DefaultDelay, "quiet period before reloading")
	return cmd
}
