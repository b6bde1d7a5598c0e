// Package classify tags charge columns of the primary ledger by cost-share category.
//
// Categories come from an ordered rule table evaluated once against the header set,
// before any row is processed. The resulting Classification is immutable and applied
// uniformly to every record of the run.
package classify

import (
	"fmt"
	"sort"
	"strings"

	apperrors "marginreco/internal/errors"
)

// Category is a cost-share bucket for a charge column
type Category string

const (
	Additional        Category = "Additional"
	DealerShare       Category = "DealerShare"
	ManufacturerShare Category = "ManufacturerShare"
)

// Categories lists every category in evaluation order.
var Categories = []Category{Additional, DealerShare, ManufacturerShare}

// MatchMode selects how a rule compares its tokens with a header
type MatchMode string

const (
	// MatchContains is a case-sensitive substring match
	MatchContains MatchMode = "contains"
	// MatchContainsFold is a case-insensitive substring match
	MatchContainsFold MatchMode = "contains_fold"
)

// Rule tags a column with Category when the header contains any of Tokens.
type Rule struct {
	Category Category  `yaml:"category" validate:"required,oneof=Additional DealerShare ManufacturerShare"`
	Match    MatchMode `yaml:"match" validate:"required,oneof=contains contains_fold"`
	Tokens   []string  `yaml:"tokens" validate:"required,min=1,dive,required"`
}

// Matches reports whether the header satisfies the rule
func (r Rule) Matches(header string) bool {
	subject := header
	if r.Match == MatchContainsFold {
		subject = strings.ToLower(header)
	}
	for _, tok := range r.Tokens {
		if r.Match == MatchContainsFold {
			tok = strings.ToLower(tok)
		}
		if strings.Contains(subject, tok) {
			return true
		}
	}
	return false
}

// DefaultRules returns the dealer management system naming conventions.
func DefaultRules() []Rule {
	return []Rule{
		{Category: Additional, Match: MatchContains, Tokens: []string{"Additional"}},
		{Category: DealerShare, Match: MatchContainsFold, Tokens: []string{"dlr", "dealer"}},
		{Category: ManufacturerShare, Match: MatchContainsFold, Tokens: []string{"tata", "mfr", "mfg", "manuf(+)"}},
	}
}

// Classifier evaluates a rule table against a header set
type Classifier struct {
	rules        []Rule
	allowOverlap bool
}

// NewClassifier creates a classifier. With allowOverlap a column may land in several
// categories and is then summed once per category.
func NewClassifier(rules []Rule, allowOverlap bool) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Classifier{rules: cp, allowOverlap: allowOverlap}
}

// Classify tags every header. In strict mode a header claimed by two categories is a
// SchemaError.
func (c *Classifier) Classify(headers []string) (*Classification, error) {
	cl := &Classification{
		members: make(map[Category][]string, len(Categories)),
		tags:    make(map[string][]Category),
	}

	var overlaps []string
	for _, h := range headers {
		var cats []Category
		for _, r := range c.rules {
			if r.Matches(h) && !containsCategory(cats, r.Category) {
				cats = append(cats, r.Category)
			}
		}
		if len(cats) == 0 {
			continue
		}
		if len(cats) > 1 {
			overlaps = append(overlaps, fmt.Sprintf("%q (%s)", h, joinCategories(cats)))
		}
		cl.tagged = append(cl.tagged, h)
		cl.tags[h] = cats
		for _, cat := range cats {
			cl.members[cat] = append(cl.members[cat], h)
		}
	}

	if len(overlaps) > 0 && !c.allowOverlap {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("columns match more than one share category: %s",
			strings.Join(overlaps, ", "))).WithContext("overlapping_columns", overlaps)
	}
	cl.overlapping = len(overlaps)
	return cl, nil
}

// Classification is the immutable category membership of a header set
type Classification struct {
	members     map[Category][]string
	tags        map[string][]Category
	tagged      []string
	overlapping int
}

// Members returns the columns of a category in header order
func (c *Classification) Members(cat Category) []string {
	out := make([]string, len(c.members[cat]))
	copy(out, c.members[cat])
	return out
}

// Tagged returns every classified column once, in header order
func (c *Classification) Tagged() []string {
	out := make([]string, len(c.tagged))
	copy(out, c.tagged)
	return out
}

// CategoriesOf returns the categories of a column
func (c *Classification) CategoriesOf(col string) []Category {
	out := make([]Category, len(c.tags[col]))
	copy(out, c.tags[col])
	return out
}

// Overlapping returns how many columns belong to more than one category
func (c *Classification) Overlapping() int {
	return c.overlapping
}

// Counts returns the member count per category, for logging
func (c *Classification) Counts() map[string]int {
	out := make(map[string]int, len(Categories))
	for _, cat := range Categories {
		out[string(cat)] = len(c.members[cat])
	}
	return out
}

func containsCategory(cats []Category, cat Category) bool {
	for _, c := range cats {
		if c == cat {
			return true
		}
	}
	return false
}

func joinCategories(cats []Category) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}
