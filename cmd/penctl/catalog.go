package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/library"
)

func (c *cli) librariesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List the library catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			for _, l := range library.Builtin().Libraries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.ID, l.Name, l.URL)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) themeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the global theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(func(s *session) error {
				st := s.pg.Theme().State()
				tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				for _, t := range s.pg.Theme().Catalog().Themes {
					mark := " "
					if t.Name == st.ThemeName {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, t.Name, t.Label)
				}
				fmt.Fprintf(tw, "\tinject css\t%t\n", st.InjectCSS)
				return tw.Flush()
			})
		},
	}

	var inject, noInject bool
	apply := &cobra.Command{
		Use:   "apply <name>",
		Short: "Select a theme; --inject also writes its rules into the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inject && noInject {
				return fmt.Errorf("--inject and --no-inject are mutually exclusive")
			}
			return c.withSession(func(s *session) error {
				if inject || noInject {
					if err := s.pg.Theme().ToggleCSSInjection(inject); err != nil {
						return err
					}
				}
				return s.pg.Theme().Apply(args[0])
			})
		},
	}
	apply.Flags().BoolVar(&inject, "inject", false, "inject the theme rules into the style buffer")
	apply.Flags().BoolVar(&noInject, "no-inject", false, "remove injected theme rules from the style buffer")
	cmd.AddCommand(apply)
	return cmd
}
