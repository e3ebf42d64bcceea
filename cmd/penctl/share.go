package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livepen/internal/domain/share"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

func (c *cli) shareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Encode and decode share links",
	}
	cmd.AddCommand(c.shareEncodeCmd(), c.shareDecodeCmd())
	return cmd
}

func (c *cli) shareEncodeCmd() *cobra.Command {
	var (
		src      sources
		base     string
		legacy   bool
		codeOnly bool
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print a share link for a set of sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := src.load(c)
			if err != nil {
				return err
			}
			codec := share.NewCodec(c.cfg.Playground.MaxTokenBytes, nil)
			shared := b.Shareable()

			if codeOnly {
				token, err := codec.Encode(shared)
				if err != nil {
					return err
				}
				c.printf("%s\n", token)
				return nil
			}

			if base == "" {
				base = c.cfg.Server.PublicURL + "/"
			}
			var link string
			if legacy {
				link, err = share.LegacyURL(base, shared)
			} else {
				link, err = codec.URL(base, shared)
			}
			if err != nil {
				return err
			}
			c.printf("%s\n", link)
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&base, "base", "", "base URL of the playground (default: $PUBLIC_URL/)")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "use the uncompressed html/css/js query format")
	cmd.Flags().BoolVar(&codeOnly, "code", false, "print only the token")
	return cmd
}

func (c *cli) shareDecodeCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "decode <token|link>",
		Short: "Decode a share token or link",
		Long: `Decode accepts a bare token or a whole link in either the current or
the legacy format. The buffers are printed as JSON, or written as a
source directory with --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := shareQuery(args[0])
			if err != nil {
				return err
			}

			var b types.BufferSet
			codec := share.NewCodec(c.cfg.Playground.MaxTokenBytes, nil)
			format, err := codec.Apply(values, &b)
			if err != nil {
				return err
			}
			if format == share.FormatNone {
				return errors.New("link carries no shared code")
			}

			if outDir != "" {
				if err := writeSources(outDir, b); err != nil {
					return err
				}
				fmt.Fprintf(c.errOut, "wrote %s (%s format)\n", outDir, format)
				return nil
			}
			return c.printJSON(types.DecodeResponse{Success: true, Format: format.String(), Buffers: b})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write index.html, style.css and script.js into a directory")
	return cmd
}

// shareQuery turns a link or a bare token into query parameters.
func shareQuery(arg string) (url.Values, error) {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, "?") || strings.Contains(arg, "://") {
		u, err := url.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid link: %w", err)
		}
		return u.Query(), nil
	}
	if strings.HasPrefix(arg, share.ParamCode+"=") {
		return url.ParseQuery(arg)
	}
	return url.Values{share.ParamCode: {arg}}, nil
}
