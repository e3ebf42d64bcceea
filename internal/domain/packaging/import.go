package packaging

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

// Import limits.
const (
	MaxArchiveBytes = 8 << 20
	MaxEntryBytes   = 2 << 20
)

// Entry search order. The shallowest match of the first matching pattern
// wins.
var (
	indexPatterns  = []string{"index.html", "*/index.html", "**/index.html", "**/*.html", "**/*.htm"}
	stylePatterns  = []string{"style.css", "*/style.css", "**/style.css", "**/*.css"}
	scriptPatterns = []string{"script.js", "*/script.js", "**/script.js", "**/*.js"}
	ignorePatterns = []string{"__MACOSX/**", "**/.*"}
)

// Imported is the project recovered from an archive.
type Imported struct {
	Name    string
	Buffers types.BufferSet
	Files   map[string]string // buffer ("html", "css", "js") to archive entry
}

// Import reads a ZIP archive produced by Export or assembled by hand.
// Markup is the body of the HTML entry with scripts removed; style and
// script come from the archive files or, failing that, from inline blocks.
func Import(data []byte, archiveName string) (*Imported, error) {
	if len(data) > MaxArchiveBytes {
		return nil, types.NewValidationError("archive", fmt.Sprintf("exceeds %d bytes", MaxArchiveBytes))
	}
	if !isZip(data) {
		return nil, types.NewValidationError("archive", "not a zip archive (detected "+mimetype.Detect(data).String()+")")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewValidationError("archive", err.Error())
	}

	files := make(map[string]Source, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files[f.Name] = Source{Size: int64(f.UncompressedSize64), Open: f.Open}
	}
	return Assemble(files, nameFromArchive(archiveName))
}

// Source is one candidate file for Assemble.
type Source struct {
	Size int64
	Open func() (io.ReadCloser, error)
}

// Assemble builds a project from slash-separated file names using the
// same entry search as Import. fallbackName is used when the HTML entry
// has no title.
func Assemble(files map[string]Source, fallbackName string) (*Imported, error) {
	var names []string
	for name := range files {
		if !ignored(name) {
			names = append(names, name)
		}
	}

	out := &Imported{Files: make(map[string]string)}
	var doc *goquery.Document
	if name := find(names, indexPatterns); name != "" {
		text, err := readText(name, files[name])
		if err != nil {
			return nil, err
		}
		if doc, err = goquery.NewDocumentFromReader(strings.NewReader(text)); err != nil {
			return nil, types.NewValidationError("archive", "unreadable html in "+name)
		}
		out.Files["html"] = name
	}
	if name := find(names, stylePatterns); name != "" {
		text, err := readText(name, files[name])
		if err != nil {
			return nil, err
		}
		out.Buffers.Style = text
		out.Files["css"] = name
	}
	if name := find(names, scriptPatterns); name != "" {
		text, err := readText(name, files[name])
		if err != nil {
			return nil, err
		}
		out.Buffers.Script = text
		out.Files["js"] = name
	}

	if doc != nil {
		extractDocument(doc, out)
	}
	if out.Name == "" {
		out.Name = fallbackName
	}
	if err := utils.ValidateBuffers(out.Buffers); err != nil {
		return nil, err
	}
	return out, nil
}

// extractDocument fills markup, library, title and any inline style or
// script not already provided by archive files.
func extractDocument(doc *goquery.Document, out *Imported) {
	out.Name = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(`script[src], link[rel="stylesheet"][href]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ref := s.AttrOr("src", s.AttrOr("href", ""))
		if isExternal(ref) {
			out.Buffers.Library = ref
			return false
		}
		return true
	})

	var inlineStyle, inlineScript []string
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		inlineStyle = append(inlineStyle, strings.TrimSpace(s.Text()))
	})
	body := doc.Find("body")
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("src"); !ok {
			if text := strings.TrimSpace(s.Text()); text != "" {
				inlineScript = append(inlineScript, text)
			}
		}
	})
	body.Find("script, style").Remove()
	body.Find(`link[rel="stylesheet"]`).Remove()

	if _, ok := out.Files["css"]; !ok && len(inlineStyle) > 0 {
		out.Buffers.Style = strings.Join(inlineStyle, "\n\n")
	}
	if _, ok := out.Files["js"]; !ok && len(inlineScript) > 0 {
		out.Buffers.Script = strings.Join(inlineScript, "\n\n")
	}
	markup, _ := body.Html()
	out.Buffers.Markup = strings.TrimSpace(markup)
}

func isZip(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func ignored(name string) bool {
	for _, p := range ignorePatterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// find returns the shallowest entry matching the first pattern that
// matches anything.
func find(names []string, patterns []string) string {
	for _, p := range patterns {
		var hits []string
		for _, n := range names {
			if ok, _ := doublestar.Match(p, n); ok {
				hits = append(hits, n)
			}
		}
		if len(hits) == 0 {
			continue
		}
		sort.SliceStable(hits, func(i, j int) bool {
			di, dj := strings.Count(hits[i], "/"), strings.Count(hits[j], "/")
			if di != dj {
				return di < dj
			}
			return hits[i] < hits[j]
		})
		return hits[0]
	}
	return ""
}

// readText reads an entry and transcodes it to UTF-8.
func readText(name string, src Source) (string, error) {
	if src.Size > MaxEntryBytes {
		return "", types.NewValidationError("archive", fmt.Sprintf("%s exceeds %d bytes", name, MaxEntryBytes))
	}
	rc, err := src.Open()
	if err != nil {
		return "", types.NewValidationError("archive", "cannot open "+name)
	}
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, MaxEntryBytes+1))
	if err != nil {
		return "", types.NewValidationError("archive", "cannot read "+name)
	}
	if len(raw) > MaxEntryBytes {
		return "", types.NewValidationError("archive", fmt.Sprintf("%s exceeds %d bytes", name, MaxEntryBytes))
	}
	return toUTF8(raw), nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// toUTF8 strips a BOM and transcodes text that is not valid UTF-8 using
// the detected charset.
func toUTF8(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw)
	}
	res, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	enc, _ := charset.Lookup(res.Charset)
	if enc == nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(decoded)
}

func isExternal(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "//")
}

func nameFromArchive(archiveName string) string {
	base := path.Base(strings.ReplaceAll(archiveName, `\`, "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "Imported project"
	}
	return base
}
