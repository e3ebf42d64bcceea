package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

func (c *cli) exportCmd() *cobra.Command {
	var (
		src    sources
		name   string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Package sources as a ZIP archive",
		Long: `Export writes a ZIP with a standalone index.html that links style.css
and script.js, the two source files, and a README.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, suggested, err := src.load(c)
			if err != nil {
				return err
			}
			if name == "" {
				name = suggested
			}
			if strings.TrimSpace(name) == "" {
				name = utils.DefaultProjectName
			}
			if output == "" {
				output = packaging.FileName(name)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := packaging.Export(f, packaging.Archive{Name: name, Buffers: b}); err != nil {
				f.Close()
				os.Remove(output)
				return fmt.Errorf("exporting: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			c.printf("%s\n", output)
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "project name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default: derived from the name)")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var (
		outDir string
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Read a ZIP archive into sources or the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(c.in, args[0])
			if err != nil {
				return err
			}
			archiveName := filepath.Base(args[0])

			if save {
				sess, err := c.openSession()
				if err != nil {
					return err
				}
				key, ierr := sess.pg.ImportZIP([]byte(data), archiveName)
				if err := sess.close(); ierr == nil {
					ierr = err
				}
				if ierr != nil {
					return ierr
				}
				c.printf("%s\n", key)
				return nil
			}

			imported, err := packaging.Import([]byte(data), archiveName)
			if err != nil {
				return err
			}
			if outDir != "" {
				return writeSources(outDir, imported.Buffers)
			}
			return c.printJSON(map[string]any{
				"projectName": imported.Name,
				"buffers":     imported.Buffers,
				"files":       imported.Files,
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write the sources into a directory")
	cmd.Flags().BoolVar(&save, "save", false, "add the archive to the local store as the active project")
	return cmd
}
