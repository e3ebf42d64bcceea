package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
)

func (c *cli) composeCmd() *cobra.Command {
	var (
		src        sources
		output     string
		standalone bool
		plain      bool
		title      string
	)
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print the preview document for a set of sources",
		Example: `  penctl compose --dir ./demo
  penctl compose --html page.html --js app.js -l jquery -o preview.html
  penctl compose --project 01J... --standalone --title "Demo"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, name, err := src.load(c)
			if err != nil {
				return err
			}

			var doc string
			if standalone {
				if title == "" {
					title = name
				}
				doc = compositor.Standalone(b, compositor.StandaloneOptions{Title: title})
			} else {
				doc = compositor.Compose(b, compositor.Options{Instrument: !plain})
			}

			if output == "" {
				c.printf("%s", doc)
				return nil
			}
			return os.WriteFile(output, []byte(doc), 0o644)
		},
	}
	src.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to a file")
	cmd.Flags().BoolVar(&standalone, "standalone", false, "render a standalone page without the console bridge")
	cmd.Flags().BoolVar(&plain, "no-bridge", false, "omit the console bridge from the live document")
	cmd.Flags().StringVar(&title, "title", "", "page title for --standalone")
	return cmd
}
