// Package packaging converts projects to and from ZIP archives.
package packaging

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// Archive entry names.
const (
	IndexFile  = "index.html"
	StyleFile  = "style.css"
	ScriptFile = "script.js"
	ReadmeFile = "README.md"
)

// Archive describes the project being exported.
type Archive struct {
	ID       string
	Name     string
	URL      string
	Buffers  types.BufferSet
	Modified time.Time
}

// Export writes a ZIP containing a standalone index.html that links
// style.css and script.js, the two source files, and a README.
func Export(w io.Writer, a Archive) error {
	if a.Modified.IsZero() {
		a.Modified = time.Now()
	}
	name := a.Name
	if strings.TrimSpace(name) == "" {
		name = "Untitled Project"
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	index := compositor.Standalone(a.Buffers, compositor.StandaloneOptions{
		Title:      name,
		StyleHref:  StyleFile,
		ScriptHref: ScriptFile,
	})
	readme := fmt.Sprintf("# %s\n\nCreated with LivePen\n", name)
	if a.ID != "" {
		readme += "ID: " + a.ID + "\n"
	}
	if a.URL != "" {
		readme += "URL: " + a.URL + "\n"
	}

	entries := []struct {
		name string
		body string
	}{
		{IndexFile, index},
		{StyleFile, a.Buffers.Style},
		{ScriptFile, a.Buffers.Script},
		{ReadmeFile, readme},
	}
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: a.Modified,
		})
		if err != nil {
			return fmt.Errorf("adding %s: %w", e.name, err)
		}
		if _, err := io.WriteString(fw, e.body); err != nil {
			return fmt.Errorf("writing %s: %w", e.name, err)
		}
	}
	return zw.Close()
}

var (
	fileNamePolicy = bluemonday.StrictPolicy()
	unsafeFileChar = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)
)

// FileName returns a safe download name for an archive of the named project.
func FileName(name string) string {
	name = html.UnescapeString(fileNamePolicy.Sanitize(name))
	name = unsafeFileChar.ReplaceAllString(name, "-")
	name = strings.Trim(strings.TrimSpace(name), ".-")
	if name == "" {
		name = "project"
	}
	return name + ".zip"
}
