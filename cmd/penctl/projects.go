package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

func (c *cli) projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Manage the local project store",
	}
	cmd.AddCommand(
		c.projectsListCmd(),
		c.projectsNewCmd(),
		c.projectsShowCmd(),
		c.projectsSwitchCmd(),
		c.projectsSaveCmd(),
		c.projectsRenameCmd(),
		c.projectsDeleteCmd(),
	)
	return cmd
}

// withSession opens the store, runs fn and flushes, reporting the first error.
func (c *cli) withSession(fn func(*session) error, opts ...func(*sessionOptions)) error {
	sess, err := c.openSession(opts...)
	if err != nil {
		return err
	}
	err = fn(sess)
	if cerr := sess.close(); err == nil {
		err = cerr
	}
	return err
}

func (c *cli) projectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects; the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(func(s *session) error {
				tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				for _, p := range s.pg.Store().List() {
					mark := " "
					if p.Active {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, p.Key, p.Name)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) projectsNewCmd() *cobra.Command {
	var src sources
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a project and make it active",
		Long: `New creates a project from the given sources, or with the placeholder
content when none are given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := src.load(c)
			if err != nil {
				return err
			}
			return c.withSession(func(s *session) error {
				var key string
				if b.IsEmpty() && b.Library == "" {
					key, err = s.pg.Store().Create(args[0])
				} else {
					key, err = s.pg.Store().CreateWith(args[0], b)
				}
				if err != nil {
					return err
				}
				c.printf("%s\n", key)
				return nil
			})
		},
	}
	src.register(cmd)
	return cmd
}

func (c *cli) projectsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [key]",
		Short: "Print a project as JSON (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(func(s *session) error {
				p := s.pg.Store().Active()
				if len(args) == 1 {
					var ok bool
					if p, ok = s.pg.Store().Get(args[0]); !ok {
						return fmt.Errorf("project %s: %w", args[0], types.ErrNotFound)
					}
				}
				return c.printJSON(p)
			})
		},
	}
}

func (c *cli) projectsSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <key>",
		Short: "Make a project active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(func(s *session) error {
				if _, ok := s.pg.Store().Get(args[0]); !ok {
					return fmt.Errorf("project %s: %w", args[0], types.ErrNotFound)
				}
				return s.pg.Store().SwitchTo(args[0])
			})
		},
	}
}

func (c *cli) projectsSaveCmd() *cobra.Command {
	var src sources
	cmd := &cobra.Command{
		Use:   "save [key]",
		Short: "Replace a project's sources (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := src.load(c)
			if err != nil {
				return err
			}
			if b.IsEmpty() && b.Library == "" {
				return errors.New("no sources given")
			}
			return c.withSession(func(s *session) error {
				if len(args) == 1 {
					if _, ok := s.pg.Store().Get(args[0]); !ok {
						return fmt.Errorf("project %s: %w", args[0], types.ErrNotFound)
					}
					if err := s.pg.Store().SwitchTo(args[0]); err != nil {
						return err
					}
				}
				s.pg.Load(b)
				return s.pg.Store().Save()
			})
		},
	}
	src.register(cmd)
	return cmd
}

func (c *cli) projectsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <key> <name>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(func(s *session) error {
				return s.pg.Store().Rename(args[0], args[1])
			})
		},
	}
}

func (c *cli) projectsDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a project after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(func(s *session) error {
				if _, ok := s.pg.Store().Get(args[0]); !ok {
					return fmt.Errorf("project %s: %w", args[0], types.ErrNotFound)
				}
				err := s.pg.Store().Delete(args[0])
				if errors.Is(err, types.ErrCancelled) {
					fmt.Fprintln(c.errOut, "cancelled")
					return nil
				}
				return err
			}, func(o *sessionOptions) { o.confirmer = c.confirmer(yes) })
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
