// Package compositor assembles the single HTML document shown in the preview.
package compositor

import (
	"html"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// Options controls live composition.
type Options struct {
	// Instrument injects the console bridge preamble ahead of user script.
	Instrument bool
}

// Live is the option set used for the interactive preview.
var Live = Options{Instrument: true}

// Compose builds the preview document for b. It never fails: markup, style
// and script are inserted verbatim, so malformed input yields a malformed
// but well-delimited document.
func Compose(b types.BufferSet, opts Options) string {
	var sb strings.Builder
	sb.Grow(len(b.Markup) + len(b.Style) + len(b.Script) + 4096)

	sb.WriteString("<!DOCTYPE html><html><head>")
	sb.WriteString(LibraryTag(b.Library))
	sb.WriteString("<style>")
	sb.WriteString(b.Style)
	sb.WriteString("</style></head><body>")
	sb.WriteString(b.Markup)
	if opts.Instrument {
		sb.WriteString("<script>")
		sb.WriteString(bridge.Preamble(b.SuppressDialogs))
		sb.WriteString("</script>")
	}
	sb.WriteString("<script>")
	sb.WriteString(b.Script)
	sb.WriteString("</script></body></html>")
	return sb.String()
}

// IsStylesheet reports whether a library identifier refers to a stylesheet.
func IsStylesheet(lib string) bool {
	return strings.Contains(strings.ToLower(lib), ".css")
}

// LibraryTag returns the single tag that loads lib, or "" when lib is blank.
func LibraryTag(lib string) string {
	lib = strings.TrimSpace(lib)
	if lib == "" {
		return ""
	}
	href := html.EscapeString(lib)
	if IsStylesheet(lib) {
		return `<link rel="stylesheet" href="` + href + `">`
	}
	return `<script src="` + href + `"></script>`
}

// StandaloneOptions describes an uninstrumented page for permalinks and exports.
type StandaloneOptions struct {
	Title       string
	Description string
	Lang        string
	// StyleHref and ScriptHref link external files instead of inlining buffers.
	StyleHref  string
	ScriptHref string
	// Footer lines are logged to the console after the user script.
	Footer []string
}

var textOnly = bluemonday.StrictPolicy()

// Standalone renders a complete, readable page for b without the bridge.
func Standalone(b types.BufferSet, opts StandaloneOptions) string {
	title := textOnly.Sanitize(opts.Title)
	desc := textOnly.Sanitize(opts.Description)
	lang := opts.Lang
	if lang == "" {
		lang = "en"
	}

	var sb strings.Builder
	sb.Grow(len(b.Markup) + len(b.Style) + len(b.Script) + 1024)

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"" + html.EscapeString(lang) + "\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("    <title>" + title + "</title>\n")
	if desc != "" {
		sb.WriteString("    <meta name=\"description\" content=\"" + desc + "\">\n")
		sb.WriteString("    <meta property=\"og:title\" content=\"" + title + "\">\n")
		sb.WriteString("    <meta property=\"og:description\" content=\"" + desc + "\">\n")
	}
	if tag := LibraryTag(b.Library); tag != "" {
		sb.WriteString("    " + tag + "\n")
	}
	if opts.StyleHref != "" {
		sb.WriteString("    <link rel=\"stylesheet\" href=\"" + html.EscapeString(opts.StyleHref) + "\">\n")
	} else {
		sb.WriteString("    <style>" + b.Style + "</style>\n")
	}
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(b.Markup)
	sb.WriteString("\n")
	if opts.ScriptHref != "" {
		sb.WriteString("    <script src=\"" + html.EscapeString(opts.ScriptHref) + "\"></script>\n")
	} else {
		sb.WriteString("    <script>" + b.Script + "</script>\n")
	}
	if len(opts.Footer) > 0 {
		sb.WriteString("    <script>\n")
		for _, line := range opts.Footer {
			sb.WriteString("        console.log(" + jsString(line) + ");\n")
		}
		sb.WriteString("    </script>\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// jsString quotes s as a JavaScript string literal that is safe inside <script>.
func jsString(s string) string {
	out, err := sonic.ConfigStd.MarshalToString(s)
	if err != nil {
		return `""`
	}
	return out
}
