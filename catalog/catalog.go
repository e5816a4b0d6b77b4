// Package catalog holds the curated list of timezones the widget can show.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// UTCZone is the identifier of Coordinated Universal Time
	UTCZone = "UTC"
	// SystemZone is the SFMC system clock: fixed UTC-6, never observes DST
	SystemZone = "Etc/GMT+6"
	// SystemOffsetMinutes is the UTC offset of SystemZone
	SystemOffsetMinutes = -360
	// DefaultZone is the Standard subscription seeded on first run
	DefaultZone = SystemZone
)

//go:embed zones.yaml
var zonesYAML []byte

// Descriptor is a catalog entry
type Descriptor struct {
	ID           string   `yaml:"id"`
	Label        string   `yaml:"label,omitempty"`
	ExternalName string   `yaml:"external,omitempty"`
	Aliases      []string `yaml:"aliases,omitempty"`
	NoDST        bool     `yaml:"nodst,omitempty"`
}

// Catalog is a read-only set of descriptors in display order
type Catalog struct {
	zones []Descriptor
	index map[string]int
}

type document struct {
	Zones []Descriptor `yaml:"zones"`
}

var defaultCatalog = mustParse(zonesYAML)

// Default returns the built-in catalog
func Default() *Catalog {
	return defaultCatalog
}

// Parse builds a catalog from YAML
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(doc.Zones) == 0 {
		return nil, fmt.Errorf("catalog has no zones")
	}

	c := &Catalog{
		zones: make([]Descriptor, 0, len(doc.Zones)),
		index: make(map[string]int, len(doc.Zones)),
	}
	for i, z := range doc.Zones {
		if z.ID == "" {
			return nil, fmt.Errorf("zone at index %d has no id", i)
		}
		if _, dup := c.index[z.ID]; dup {
			return nil, fmt.Errorf("zone '%s' is listed twice", z.ID)
		}
		if z.Label == "" {
			z.Label = labelFromID(z.ID)
		}
		c.index[z.ID] = len(c.zones)
		c.zones = append(c.zones, z)
	}
	return c, nil
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns a copy of every descriptor in catalog order
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.zones))
	copy(out, c.zones)
	return out
}

// Len returns the number of zones
func (c *Catalog) Len() int {
	return len(c.zones)
}

// Contains reports whether id is in the catalog
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Lookup returns the descriptor for id. Zones outside the catalog (the
// device's own zone, typically) get a synthesized descriptor and ok=false.
func (c *Catalog) Lookup(id string) (Descriptor, bool) {
	if i, ok := c.index[id]; ok {
		return c.zones[i], true
	}
	return Descriptor{ID: id}, false
}

// DisplayLabel returns the label shown under a clock face.
// "America/Los_Angeles" becomes "America / Los Angeles".
func (c *Catalog) DisplayLabel(id string) string {
	if d, ok := c.Lookup(id); ok && d.Label != "" {
		return d.Label
	}
	return labelFromID(id)
}

func labelFromID(id string) string {
	return strings.Join(strings.Split(strings.ReplaceAll(id, "_", " "), "/"), " / ")
}

// City returns the last path element of id with underscores replaced
func City(id string) string {
	parts := strings.Split(id, "/")
	return strings.ReplaceAll(parts[len(parts)-1], "_", " ")
}

// Search returns zones matching query on city, id, label or alias.
// An empty query returns the whole catalog. Exact city matches come first.
func (c *Catalog) Search(query string, maxResults int) []Descriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		all := c.All()
		if maxResults > 0 && len(all) > maxResults {
			all = all[:maxResults]
		}
		return all
	}

	var exactMatches []Descriptor
	var partialMatches []Descriptor

	for _, z := range c.zones {
		if strings.ToLower(City(z.ID)) == query || strings.ToLower(z.Label) == query {
			exactMatches = append(exactMatches, z)
		} else if strings.Contains(searchText(z), query) {
			partialMatches = append(partialMatches, z)
		}
	}

	results := append(exactMatches, partialMatches...)
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

func searchText(z Descriptor) string {
	parts := []string{City(z.ID), z.ID, z.Label}
	parts = append(parts, z.Aliases...)
	return strings.ToLower(strings.Join(parts, " "))
}
