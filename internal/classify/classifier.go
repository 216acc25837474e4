// Package classify assigns record categories to grounding citations.
package classify

import (
	"strings"

	"github.com/ppiankov/originpoint/internal/model"
)

// Rule maps any of its keywords to a category
type Rule struct {
	Category model.Category
	Keywords []string
}

// Classifier evaluates an ordered rule table against a citation's title and URI.
// The first rule with a matching keyword wins; no match yields model.CategoryWeb.
type Classifier struct {
	rules []Rule
}

// ArchivalRules is the keyword taxonomy, in priority order:
// census, tax, newspaper, map, legal.
var ArchivalRules = []Rule{
	{
		Category: model.CategoryCensus,
		Keywords: []string{"census", "enumeration", "population schedule"},
	},
	{
		Category: model.CategoryTax,
		Keywords: []string{"tax", "assessor", "assessment roll", "levy", "tithe"},
	},
	{
		Category: model.CategoryNewspaper,
		Keywords: []string{
			"newspaper", "gazette", "chronicle", "herald", "tribune",
			"chroniclingamerica", "obituar",
		},
	},
	{
		Category: model.CategoryMap,
		Keywords: []string{"maps.google", "google.com/maps", "map", "plat", "atlas", "survey"},
	},
	{
		Category: model.CategoryLegal,
		Keywords: []string{
			"deed", "probate", "court", "legal", "registry", "recorder",
			"land office", "glorecords", "statute",
		},
	},
}

// New creates a classifier over the given rules.
// Keywords are lowered once so Classify stays allocation-light.
func New(rules []Rule) *Classifier {
	compiled := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				kw = append(kw, k)
			}
		}
		if len(kw) == 0 || !r.Category.Valid() {
			continue
		}
		compiled = append(compiled, Rule{Category: r.Category, Keywords: kw})
	}
	return &Classifier{rules: compiled}
}

// NewArchival creates a classifier with the keyword taxonomy
func NewArchival() *Classifier {
	return New(ArchivalRules)
}

// Classify returns the category for a citation
func (c *Classifier) Classify(title, uri string) model.Category {
	category, _ := c.Match(title, uri)
	return category
}

// Match is Classify plus whether a rule (rather than the fallback) decided
func (c *Classifier) Match(title, uri string) (model.Category, bool) {
	t := strings.ToLower(title)
	u := strings.ToLower(uri)

	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(t, k) || strings.Contains(u, k) {
				return r.Category, true
			}
		}
	}
	return model.CategoryWeb, false
}

// Rules returns a copy of the active rule table
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = Rule{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}
