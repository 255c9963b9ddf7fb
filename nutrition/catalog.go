// Package nutrition - Local food catalog used to attach nutrition facts to predictions.
package nutrition

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/models/postprocess"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultServingSizeG is the serving size reported for every catalog match.
const DefaultServingSizeG = 100

//go:embed assets/foods.yaml
var embeddedCatalog []byte

// Nutrients holds the macros of one serving.
type Nutrients struct {
	Calories float64 `json:"calories" yaml:"calories"`
	ProteinG float64 `json:"protein_g" yaml:"protein_g"`
	FatG     float64 `json:"fat_g" yaml:"fat_g"`
	CarbsG   float64 `json:"carbs_g" yaml:"carbs_g"`
	FiberG   float64 `json:"fiber_g" yaml:"fiber_g"`
	SugarG   float64 `json:"sugar_g" yaml:"sugar_g"`
}

// Food is one catalog entry.
type Food struct {
	Name      string    `json:"name" yaml:"name"`
	Emoji     string    `json:"emoji,omitempty" yaml:"emoji"`
	Query     string    `json:"query" yaml:"query"`
	Aliases   []string  `json:"aliases,omitempty" yaml:"aliases"`
	Nutrients Nutrients `json:"nutrients" yaml:"nutrients"`
}

// Item is the nutrition summary shown for a recognized food.
type Item struct {
	Name                string  `json:"name"`
	Emoji               string  `json:"emoji,omitempty"`
	Calories            float64 `json:"calories"`
	ServingSizeG        float64 `json:"serving_size_g"`
	FatTotalG           float64 `json:"fat_total_g"`
	ProteinG            float64 `json:"protein_g"`
	CarbohydratesTotalG float64 `json:"carbohydrates_total_g"`
	FiberG              float64 `json:"fiber_g"`
	SugarG              float64 `json:"sugar_g"`
}

// Item converts the food to its nutrition summary.
func (f Food) Item() Item {
	return Item{
		Name:                f.Name,
		Emoji:               f.Emoji,
		Calories:            f.Nutrients.Calories,
		ServingSizeG:        DefaultServingSizeG,
		FatTotalG:           f.Nutrients.FatG,
		ProteinG:            f.Nutrients.ProteinG,
		CarbohydratesTotalG: f.Nutrients.CarbsG,
		FiberG:              f.Nutrients.FiberG,
		SugarG:              f.Nutrients.SugarG,
	}
}

// Match pairs a prediction with the catalog item found for it.
type Match struct {
	Prediction postprocess.Prediction `json:"prediction"`
	Item       Item                   `json:"item"`
}

// Catalog is an ordered, read-only list of foods. Earlier entries win ties.
type Catalog struct {
	foods   []Food
	aliases map[string]int
}

type catalogFile struct {
	Foods []Food `yaml:"foods"`
}

// NewCatalog builds a catalog from foods.
//
// Arguments:
//   - foods: The entries in priority order.
//
// Returns:
//   - *Catalog: The catalog.
//   - error: An error wrapping common.ErrInvalidArgument for an unnamed entry.
func NewCatalog(foods []Food) (*Catalog, error) {
	c := &Catalog{foods: make([]Food, len(foods)), aliases: make(map[string]int)}
	copy(c.foods, foods)

	for i, f := range c.foods {
		if strings.TrimSpace(f.Name) == "" {
			return nil, errors.Wrapf(common.ErrInvalidArgument, "food %d has no name", i)
		}
		for _, alias := range f.Aliases {
			key := strings.ToLower(strings.TrimSpace(alias))
			if _, ok := c.aliases[key]; !ok && key != "" {
				c.aliases[key] = i
			}
		}
	}
	return c, nil
}

// LoadCatalog parses a YAML catalog with a top-level foods list.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrapf(common.ErrInvalidArgument, "failed to parse catalog: %v", err)
	}
	return NewCatalog(file.Foods)
}

// LoadCatalogFile parses a YAML catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open catalog %s", path)
	}
	defer f.Close()
	return LoadCatalog(f)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := LoadCatalog(bytes.NewReader(embeddedCatalog))
		if err != nil {
			panic(errors.Wrap(err, "embedded food catalog"))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Len returns the number of foods.
func (c *Catalog) Len() int {
	return len(c.foods)
}

// Foods returns a copy of the entries.
func (c *Catalog) Foods() []Food {
	out := make([]Food, len(c.foods))
	copy(out, c.foods)
	return out
}

// Lookup returns the first food whose name or serving query contains query,
// ignoring case.
//
// Arguments:
//   - query: The search text.
//
// Returns:
//   - Food: The matching food.
//   - bool: False when nothing matched or query is blank.
//
// @example
// food, ok := DefaultCatalog().Lookup("banana")
func (c *Catalog) Lookup(query string) (Food, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Food{}, false
	}
	for _, f := range c.foods {
		if strings.Contains(strings.ToLower(f.Name), q) || strings.Contains(strings.ToLower(f.Query), q) {
			return f, true
		}
	}
	return Food{}, false
}

// ForLabel returns the food named by a classifier label.
//
// Aliases are matched exactly. Otherwise the label must appear in a food name
// as whole words, so "ear" does not match "Pear".
func (c *Catalog) ForLabel(label string) (Food, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" || l == postprocess.UnknownLabel {
		return Food{}, false
	}
	if i, ok := c.aliases[l]; ok {
		return c.foods[i], true
	}
	for _, f := range c.foods {
		if containsWords(strings.ToLower(f.Name), l) {
			return f, true
		}
	}
	return Food{}, false
}

// Match walks predictions in rank order and returns the first one the catalog knows.
//
// Arguments:
//   - predictions: Ranked predictions, best first.
//
// Returns:
//   - Match: The prediction and its nutrition item.
//   - bool: False when no prediction names a catalog food.
func (c *Catalog) Match(predictions []postprocess.Prediction) (Match, bool) {
	for _, p := range predictions {
		if p.Degraded {
			continue
		}
		if f, ok := c.ForLabel(p.Label); ok {
			return Match{Prediction: p, Item: f.Item()}, true
		}
	}
	return Match{}, false
}

// containsWords reports whether phrase occurs in s bounded by non-letters.
func containsWords(s, phrase string) bool {
	for start := 0; start <= len(s)-len(phrase); {
		i := strings.Index(s[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if boundary(s, i-1) && boundary(s, end) {
			return true
		}
		start = i + 1
	}
	return false
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	return !unicode.IsLetter(rune(s[i]))
}
