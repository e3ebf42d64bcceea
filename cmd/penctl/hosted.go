package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/providers/hostclient"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

func (c *cli) client() *hostclient.Client {
	return hostclient.New(c.cfg.Client, c.logger.Named("hostclient"))
}

func (c *cli) publishCmd() *cobra.Command {
	var (
		src  sources
		name string
		tags []string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish sources to the hosting server",
		Long: `Publish uploads a project and prints its permalink. Without source
flags the active project of the local store is published.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if src.dir == "" && src.html == "" && src.css == "" && src.js == "" && src.project == "" {
				if err := c.withSession(func(s *session) error {
					src.project = s.pg.Store().Active().Key
					return nil
				}); err != nil {
					return err
				}
			}
			b, suggested, err := src.load(c)
			if err != nil {
				return err
			}
			if err := utils.ValidateBuffers(b); err != nil {
				return err
			}
			if name == "" {
				name = suggested
			}

			resp, err := c.client().Create(cmd.Context(), types.CreateRequest{
				HTML:        b.Markup,
				CSS:         b.Style,
				JS:          b.Script,
				Library:     b.Library,
				ProjectName: name,
				Tags:        tags,
			})
			if err != nil {
				return err
			}
			c.printf("%s\t%s\n", resp.ID, resp.URL)
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "project name")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var (
		html, css, js string
		library       string
		name          string
		tags          []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a published project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req types.UpdateRequest
			for _, f := range []struct {
				flag string
				path string
				dst  **string
			}{{"html", html, &req.HTML}, {"css", css, &req.CSS}, {"js", js, &req.JS}} {
				if !cmd.Flags().Changed(f.flag) {
					continue
				}
				raw, err := readInput(c.in, f.path)
				if err != nil {
					return err
				}
				*f.dst = &raw
			}
			if cmd.Flags().Changed("library") {
				req.Library = &library
			}
			if cmd.Flags().Changed("name") {
				req.ProjectName = &name
			}
			if cmd.Flags().Changed("tag") {
				req.Tags = tags
			}
			if req.HTML == nil && req.CSS == nil && req.JS == nil && req.Library == nil && req.ProjectName == nil && req.Tags == nil {
				return errors.New("nothing to update")
			}
			return c.client().Update(cmd.Context(), args[0], req)
		},
	}
	f := cmd.Flags()
	f.StringVar(&html, "html", "", "markup file")
	f.StringVar(&css, "css", "", "style file")
	f.StringVar(&js, "js", "", "script file")
	f.StringVarP(&library, "library", "l", "", "library URL")
	f.StringVarP(&name, "name", "n", "", "project name")
	f.StringSliceVar(&tags, "tag", nil, "tag (repeatable, replaces all tags)")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "List recent published projects",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			found, err := c.client().Search(cmd.Context(), query, tag)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			for _, p := range found {
				fmt.Fprintf(tw, "%s\t%s\t%d views\t%s\t%s\n",
					p.ID, p.Name, p.Views, strings.Join(p.Tags, ","), p.CreatedAt.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only projects with this tag")
	return cmd
}

func (c *cli) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Print the metadata of a published project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := c.client().Metadata(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(meta)
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print hosting server totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := c.client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			c.printf("projects\t%d\nviews\t%d\nuptime\t%s\nversion\t%s\n",
				stats.TotalProjects, stats.TotalViews,
				(time.Duration(stats.ServerUptime) * time.Second).String(), stats.Version)
			return nil
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a published project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.client().Delete(cmd.Context(), args[0])
		},
	}
}

func (c *cli) downloadCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a published project as a ZIP archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = packaging.FileName(args[0])
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := c.client().Export(cmd.Context(), args[0], f); err != nil {
				f.Close()
				os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			c.printf("%s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path")
	return cmd
}
