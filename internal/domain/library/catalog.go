// Package library lists the external libraries offered in the library
// selector. A selection is just the library URL; anything else the user
// types is passed through untouched.
package library

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
)

// Library is one selectable external resource.
type Library struct {
	ID         string `toml:"id" json:"id"`
	Name       string `toml:"name" json:"name"`
	URL        string `toml:"url" json:"url"`
	Stylesheet bool   `toml:"-" json:"stylesheet"`
}

// Catalog is the ordered list of libraries.
type Catalog struct {
	Libraries []Library `toml:"library" json:"libraries"`
}

//go:embed libraries.toml
var builtin []byte

// Parse decodes a TOML catalog. Every entry needs a unique id and an
// absolute http(s) URL.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing library catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Libraries))
	for i := range c.Libraries {
		lib := &c.Libraries[i]
		if lib.ID == "" || seen[lib.ID] {
			return nil, fmt.Errorf("library catalog: missing or duplicate id %q", lib.ID)
		}
		seen[lib.ID] = true
		u, err := url.Parse(lib.URL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return nil, fmt.Errorf("library catalog: %s has invalid url %q", lib.ID, lib.URL)
		}
		lib.Stylesheet = compositor.IsStylesheet(lib.URL)
	}
	return &c, nil
}

// Builtin returns the embedded catalog.
func Builtin() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup finds a library by id.
func (c *Catalog) Lookup(id string) (Library, bool) {
	for _, l := range c.Libraries {
		if l.ID == id {
			return l, true
		}
	}
	return Library{}, false
}

// Resolve maps a selector value to the library URL stored in the buffers.
// Known ids become their URL, anything else is returned trimmed.
func (c *Catalog) Resolve(value string) string {
	value = strings.TrimSpace(value)
	if l, ok := c.Lookup(value); ok {
		return l.URL
	}
	return value
}

// Match returns the catalog entry whose URL equals lib.
func (c *Catalog) Match(lib string) (Library, bool) {
	for _, l := range c.Libraries {
		if l.URL == lib {
			return l, true
		}
	}
	return Library{}, false
}
