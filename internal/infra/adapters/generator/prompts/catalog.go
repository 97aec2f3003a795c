// File: internal/infra/adapters/generator/prompts/catalog.go
package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed templates
var TemplatesFS embed.FS

// Catalog maps a session category to the system frame handed to the model.
// Categories absent from the file fall back to a generic frame so a new
// product category never breaks generation.
type Catalog struct {
	frames   map[string]string
	fallback string
}

func NewCatalog(fsys fs.FS) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, "templates/categories.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read category templates: %w", err)
	}
	var raw struct {
		Fallback   string            `yaml:"fallback"`
		Categories map[string]string `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse category templates: %w", err)
	}
	if raw.Fallback == "" {
		return nil, fmt.Errorf("category templates missing fallback frame")
	}
	return &Catalog{frames: raw.Categories, fallback: raw.Fallback}, nil
}

// Frame returns the system frame for a category, appending client details
// when present.
func (c *Catalog) Frame(category, userData string) string {
	frame, ok := c.frames[strings.ToLower(strings.TrimSpace(category))]
	if !ok || frame == "" {
		frame = c.fallback
	}
	if strings.TrimSpace(userData) == "" {
		return frame
	}
	var b strings.Builder
	b.WriteString(frame)
	b.WriteString("\n\nClient details:\n")
	b.WriteString(userData)
	return b.String()
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog built from the embedded templates. The embed
// is compile-time content, so a parse failure here is a programmer error.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog(TemplatesFS)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
