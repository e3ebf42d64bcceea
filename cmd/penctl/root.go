package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/shared/paths"
)

// cli carries state shared by every command.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	dataDir string
	hostURL string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "penctl",
		Short: "Compose, run and share HTML/CSS/JS playground projects",
		Long: `penctl works with LivePen projects from the command line. It composes
preview documents, runs them in a headless sandbox, encodes share links,
packages ZIP archives, manages the local project store, watches a source
directory, and publishes to a LivePen hosting server.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.setup() },
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&c.dataDir, "data", "", "data directory (default: per-user config dir)")
	root.PersistentFlags().StringVar(&c.hostURL, "host", "", "hosting server URL (default: $HOST_URL)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "verbose logging on stderr")

	root.AddCommand(
		c.composeCmd(),
		c.runCmd(),
		c.shareCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.projectsCmd(),
		c.themeCmd(),
		c.watchCmd(),
		c.publishCmd(),
		c.updateCmd(),
		c.searchCmd(),
		c.infoCmd(),
		c.statsCmd(),
		c.deleteCmd(),
		c.downloadCmd(),
		c.librariesCmd(),
		c.versionCmd(),
	)
	return root
}

func (c *cli) setup() error {
	c.cfg = config.LoadOrDefault()
	if c.hostURL != "" {
		c.cfg.Client.BaseURL = c.hostURL
	}
	if c.dataDir == "" {
		c.dataDir = c.cfg.Database.DataDir
	}

	c.cfg.Logging.Level = "warn"
	if c.verbose {
		c.cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(logging.FromConfig(c.cfg.Logging, "stderr"))
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	c.logger = logger.Logger
	return nil
}

func (c *cli) layout() paths.Layout { return paths.New(c.dataDir) }

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the penctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			c.printf("penctl %s\n", config.Version)
		},
	}
}
