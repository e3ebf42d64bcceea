package theme

import (
	_ "embed"
	"fmt"

	"github.com/goccy/go-yaml"
)

// Theme describes one visual theme.
type Theme struct {
	Name        string `yaml:"name" json:"name"`
	Label       string `yaml:"label" json:"label"`
	ChromeClass string `yaml:"chromeClass" json:"chromeClass"`
	Stylesheet  string `yaml:"stylesheet" json:"stylesheet"`
	EditorTheme string `yaml:"editorTheme" json:"editorTheme"`
	CSS         string `yaml:"css" json:"css"`
}

// Catalog is the ordered set of available themes.
type Catalog struct {
	Default string  `yaml:"default" json:"default"`
	Themes  []Theme `yaml:"themes" json:"themes"`
}

//go:embed themes.yaml
var builtinCatalog []byte

// ParseCatalog decodes a YAML catalog and checks it for duplicates and a
// valid default.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing theme catalog: %w", err)
	}
	if len(c.Themes) == 0 {
		return nil, fmt.Errorf("theme catalog is empty")
	}
	seen := make(map[string]bool, len(c.Themes))
	for _, t := range c.Themes {
		if t.Name == "" {
			return nil, fmt.Errorf("theme catalog: theme without name")
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("theme catalog: duplicate theme %q", t.Name)
		}
		seen[t.Name] = true
	}
	if c.Default == "" {
		c.Default = c.Themes[0].Name
	}
	if !seen[c.Default] {
		return nil, fmt.Errorf("theme catalog: unknown default %q", c.Default)
	}
	return &c, nil
}

// Builtin returns the embedded catalog.
func Builtin() *Catalog {
	c, err := ParseCatalog(builtinCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup finds a theme by name.
func (c *Catalog) Lookup(name string) (Theme, bool) {
	for _, t := range c.Themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

// Names returns theme names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.Themes))
	for i, t := range c.Themes {
		out[i] = t.Name
	}
	return out
}
