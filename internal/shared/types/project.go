package types

import "time"

// BufferSet is the unit of a playground project: three source buffers plus
// the selected external library and the dialog suppression flag.
type BufferSet struct {
	Markup          string `json:"html"`
	Style           string `json:"css"`
	Script          string `json:"js"`
	Library         string `json:"library"`
	SuppressDialogs bool   `json:"suppressDialogs"`
}

// IsEmpty reports whether all three source buffers are empty.
func (b BufferSet) IsEmpty() bool {
	return b.Markup == "" && b.Style == "" && b.Script == ""
}

// Size returns the combined length of the source buffers in bytes.
func (b BufferSet) Size() int {
	return len(b.Markup) + len(b.Style) + len(b.Script)
}

// Shareable returns the fields carried by a share token.
func (b BufferSet) Shareable() SharedBuffers {
	return SharedBuffers{
		Markup:  b.Markup,
		Style:   b.Style,
		Script:  b.Script,
		Library: b.Library,
	}
}

// WithShared overlays shared fields onto b, keeping SuppressDialogs.
func (b BufferSet) WithShared(s SharedBuffers) BufferSet {
	b.Markup = s.Markup
	b.Style = s.Style
	b.Script = s.Script
	b.Library = s.Library
	return b
}

// SharedBuffers is the reduced field set exchanged through share links.
// Project name and dialog suppression are deliberately absent.
type SharedBuffers struct {
	Markup  string `json:"h"`
	Style   string `json:"c"`
	Script  string `json:"j"`
	Library string `json:"l"`
}

// Project is a named, persisted buffer set owned by the project store.
type Project struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Buffers   BufferSet `json:"buffers"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectSummary is the list view of a project.
type ProjectSummary struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ThemeState is the process-wide theme selection.
type ThemeState struct {
	ThemeName string `json:"themeName"`
	InjectCSS bool   `json:"injectThemeCss"`
}

// DefaultBuffers returns the placeholder content seeded into new projects.
func DefaultBuffers() BufferSet {
	return BufferSet{
		Markup: "<h1>Hello World</h1>",
		Style:  "body { background-color: #f0f0f0; }",
		Script: `document.body.innerHTML += "<p>JS executed</p>";`,
	}
}
