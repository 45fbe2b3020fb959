package perspectives

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"redteam/pkg/errors"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Perspective is one analytical lens a strategy is examined through.
type Perspective struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	SystemRole   string `yaml:"system_role"`
	SystemPrompt string `yaml:"system_prompt"`
	Instructions string `yaml:"instructions"`
}

// MentalModel is an optional reasoning framework injected into perspective prompts.
type MentalModel struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type catalogFile struct {
	Version      int           `yaml:"version"`
	Perspectives []Perspective `yaml:"perspectives"`
	MentalModels []MentalModel `yaml:"mental_models"`
}

// Catalog is a read-only lookup of perspectives and mental models; safe for concurrent use.
type Catalog struct {
	perspectives []Perspective
	mentalModels []MentalModel
	byID         map[string]Perspective
	modelsByID   map[string]MentalModel
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic("perspectives: invalid embedded catalog: " + err.Error())
	}
	return c
}

// Load reads a catalog from path; an empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "read catalog %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "decode catalog: %v", err)
	}

	c := &Catalog{
		byID:       make(map[string]Perspective, len(f.Perspectives)),
		modelsByID: make(map[string]MentalModel, len(f.MentalModels)),
	}

	for _, p := range f.Perspectives {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" || strings.TrimSpace(p.SystemPrompt) == "" || strings.TrimSpace(p.Instructions) == "" {
			return nil, errors.Wrapf(errors.ErrConfiguration, "perspective %q needs id, system_prompt and instructions", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, errors.Wrapf(errors.ErrConfiguration, "duplicate perspective %q", p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		c.byID[p.ID] = p
		c.perspectives = append(c.perspectives, p)
	}

	for _, m := range f.MentalModels {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" || strings.TrimSpace(m.Description) == "" {
			return nil, errors.Wrapf(errors.ErrConfiguration, "mental model %q needs id and description", m.ID)
		}
		if _, dup := c.modelsByID[m.ID]; dup {
			return nil, errors.Wrapf(errors.ErrConfiguration, "duplicate mental model %q", m.ID)
		}
		c.modelsByID[m.ID] = m
		c.mentalModels = append(c.mentalModels, m)
	}

	if len(c.perspectives) == 0 {
		return nil, errors.Wrap(errors.ErrConfiguration, "catalog defines no perspectives")
	}
	return c, nil
}

// Perspective looks up a perspective by id.
func (c *Catalog) Perspective(id string) (Perspective, error) {
	p, ok := c.byID[id]
	if !ok {
		return Perspective{}, errors.Wrapf(errors.ErrUnknownPerspective, "%q", id)
	}
	return p, nil
}

// Has reports whether id names a known perspective.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// MentalModels resolves ids in order. Unknown ids are skipped.
func (c *Catalog) MentalModels(ids []string) []MentalModel {
	out := make([]MentalModel, 0, len(ids))
	for _, id := range ids {
		if m, ok := c.modelsByID[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Perspectives returns all perspectives in catalog order.
func (c *Catalog) Perspectives() []Perspective {
	return append([]Perspective(nil), c.perspectives...)
}

// AllMentalModels returns all mental models in catalog order.
func (c *Catalog) AllMentalModels() []MentalModel {
	return append([]MentalModel(nil), c.mentalModels...)
}

// IDs returns perspective ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.perspectives))
	for i, p := range c.perspectives {
		ids[i] = p.ID
	}
	return ids
}

// Label returns the display name for a perspective id, or the id itself.
func (c *Catalog) Label(id string) string {
	if p, ok := c.byID[id]; ok {
		return p.Name
	}
	return id
}

// Order sorts ids into catalog order. Ids missing from the catalog follow,
// alphabetically. Duplicates are dropped.
func (c *Catalog) Order(ids []string) []string {
	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}

	out := make([]string, 0, len(present))
	for _, p := range c.perspectives {
		if _, ok := present[p.ID]; ok {
			out = append(out, p.ID)
			delete(present, p.ID)
		}
	}
	extra := make([]string, 0, len(present))
	for id := range present {
		extra = append(extra, id)
	}
	sort.Strings(extra)
	return append(out, extra...)
}
