package digest

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCategory receives every handle that no category lists.
const DefaultCategory = "Other"

// Category is one named group of handles.
type Category struct {
	Name    string
	Handles []string
}

// CategoryMap is the user's handle-to-category mapping in declaration order.
type CategoryMap struct {
	Categories []Category
}

// UnmarshalYAML decodes a mapping of category name to handle list while
// keeping the order in which categories were declared.
func (m *CategoryMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: categories must map a name to a list of handles", node.Line)
	}
	pos := make(map[string]int)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return fmt.Errorf("line %d: category name: %w", node.Content[i].Line, err)
		}
		var handles []string
		if err := node.Content[i+1].Decode(&handles); err != nil {
			return fmt.Errorf("category %q: %w", name, err)
		}
		if idx, ok := pos[name]; ok {
			m.Categories[idx].Handles = append(m.Categories[idx].Handles, handles...)
			continue
		}
		pos[name] = len(m.Categories)
		m.Categories = append(m.Categories, Category{Name: name, Handles: handles})
	}
	return nil
}

// ParseCategories decodes a YAML or JSON category document.
func ParseCategories(data []byte) (*CategoryMap, error) {
	var m CategoryMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing categories: %w", err)
	}
	return &m, nil
}

// LoadCategories reads the category file at path. A missing file yields an
// empty map, which sends every tweet to DefaultCategory, and a warning on
// log (slog.Default when nil).
func LoadCategories(path string, log *slog.Logger) (*CategoryMap, error) {
	if log == nil {
		log = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("category file not found, all tweets go to "+DefaultCategory, slog.String("path", path))
			return &CategoryMap{}, nil
		}
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	m, err := ParseCategories(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Categorizer resolves handles to categories through an inverse index built once per run.
type Categorizer struct {
	index    map[string]string
	order    []string
	shadowed []Shadowed
}

// Shadowed is a handle listed again under a later category and ignored there.
type Shadowed struct {
	Handle  string
	Kept    string
	Ignored string
}

// NewCategorizer indexes m. When a handle is listed under several categories
// the first declared one wins.
func NewCategorizer(m *CategoryMap) *Categorizer {
	c := &Categorizer{index: make(map[string]string)}
	seen := make(map[string]bool)
	if m != nil {
		for _, cat := range m.Categories {
			if cat.Name != DefaultCategory && !seen[cat.Name] {
				seen[cat.Name] = true
				c.order = append(c.order, cat.Name)
			}
			for _, h := range cat.Handles {
				key := normalizeHandle(h)
				if key == "" {
					continue
				}
				if prev, dup := c.index[key]; dup {
					if prev != cat.Name {
						c.shadowed = append(c.shadowed, Shadowed{Handle: key, Kept: prev, Ignored: cat.Name})
					}
					continue
				}
				c.index[key] = cat.Name
			}
		}
	}
	c.order = append(c.order, DefaultCategory)
	return c
}

// Shadowed returns the handles whose later category listings were ignored.
func (c *Categorizer) Shadowed() []Shadowed {
	return c.shadowed
}

// Category returns the category of handle, or DefaultCategory.
func (c *Categorizer) Category(handle string) string {
	if cat, ok := c.index[normalizeHandle(handle)]; ok {
		return cat
	}
	return DefaultCategory
}

// Order returns the category names in output order, DefaultCategory last.
func (c *Categorizer) Order() []string {
	return append([]string(nil), c.order...)
}

// Handles returns the number of indexed handles.
func (c *Categorizer) Handles() int {
	return len(c.index)
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}
