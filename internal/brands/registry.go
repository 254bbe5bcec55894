// Package brands holds the manufacturer rule registry: mixing ratio, developer,
// shade-code rules and guard flags per brand. A Registry is built once from a
// Catalog and is safe for concurrent reads.
package brands

import (
	"fmt"
	"regexp"
	"strings"
)

type Category string

const (
	CategoryPermanent Category = "permanent"
	CategoryDemi      Category = "demi"
	CategorySemi      Category = "semi"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryPermanent, CategoryDemi, CategorySemi}

const (
	RatioRTU      = "RTU"
	DeveloperNone = "None"
)

// ParseCategory clamps free-form input to a known category, defaulting to permanent.
func ParseCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryDemi:
		return CategoryDemi
	case CategorySemi:
		return CategorySemi
	default:
		return CategoryPermanent
	}
}

// SingleScenario reports whether results in this category collapse to one scenario.
func (c Category) SingleScenario() bool {
	return c == CategoryDemi || c == CategorySemi
}

type Rule struct {
	Name      string   `yaml:"name" json:"name" validate:"required"`
	Category  Category `yaml:"category" json:"category" validate:"required,oneof=permanent demi semi"`
	Ratio     string   `yaml:"ratio" json:"ratio" validate:"required"`
	Developer string   `yaml:"developer" json:"developer" validate:"required"`
	Notes     string   `yaml:"notes" json:"notes,omitempty"`
	Patterns  []string `yaml:"patterns,omitempty" json:"patterns,omitempty" validate:"dive,required"`
	Shades    []string `yaml:"shades,omitempty" json:"shades,omitempty" validate:"dive,required"`

	// TonerGuard marks deposit-only toner lines that cannot work on unlightened
	// black, saturated reds or warm blondes the way the model tends to suggest.
	TonerGuard bool `yaml:"toner_guard,omitempty" json:"toner_guard,omitempty"`
	// NeutralBlack marks lines whose darkest neutral is an N-series code.
	NeutralBlack bool `yaml:"neutral_black,omitempty" json:"neutral_black,omitempty"`

	compiled []*regexp.Regexp
	shadeSet map[string]struct{}
}

var (
	fixedRatioPattern  = regexp.MustCompile(`^\d+(?:\.\d+)?:\d+(?:\.\d+)?$`)
	developerAltSplit  = regexp.MustCompile(`/|\b(?:or|OR)\b`)
	developerParens    = regexp.MustCompile(`\([^)]*\)`)
	developerPercent   = regexp.MustCompile(`\d+(?:\.\d+)?\s*%`)
	developerVolume    = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*-?\s*vol(?:ume)?\b\.?`)
	whitespaceSequence = regexp.MustCompile(`\s+`)
)

func (r *Rule) compile() error {
	r.compiled = r.compiled[:0]
	for _, p := range r.Patterns {
		re, err := regexp.Compile(`(?i)^(?:` + p + `)$`)
		if err != nil {
			return fmt.Errorf("brand %q: shade pattern %q: %w", r.Name, p, err)
		}
		r.compiled = append(r.compiled, re)
	}
	r.shadeSet = make(map[string]struct{}, len(r.Shades))
	for _, s := range r.Shades {
		r.shadeSet[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return nil
}

func (r Rule) IsRTU() bool {
	return strings.EqualFold(strings.TrimSpace(r.Ratio), RatioRTU)
}

// FixedRatio returns the ratio when it is a plain "a:b" or "a:b.c" value.
// Compound descriptions and RTU report false.
func (r Rule) FixedRatio() (string, bool) {
	ratio := strings.TrimSpace(r.Ratio)
	if r.IsRTU() || !fixedRatioPattern.MatchString(ratio) {
		return "", false
	}
	return ratio, true
}

// CanonicalDeveloper reduces the developer field to the display name that must
// appear in a formula: first alternative only, without strength annotations.
// Returns "" when the brand takes no developer.
func (r Rule) CanonicalDeveloper() string {
	dev := strings.TrimSpace(r.Developer)
	if dev == "" || strings.EqualFold(dev, DeveloperNone) {
		return ""
	}
	if loc := developerAltSplit.FindStringIndex(dev); loc != nil {
		dev = dev[:loc[0]]
	}
	dev = developerParens.ReplaceAllString(dev, " ")
	dev = developerPercent.ReplaceAllString(dev, " ")
	dev = developerVolume.ReplaceAllString(dev, " ")
	dev = whitespaceSequence.ReplaceAllString(dev, " ")
	dev = strings.Trim(dev, " ,;-")
	if strings.EqualFold(dev, DeveloperNone) {
		return ""
	}
	return dev
}

// UsesAllowList reports whether shade codes are checked against an explicit list.
func (r Rule) UsesAllowList() bool {
	return len(r.Shades) > 0
}

// AcceptsShade checks one extracted code, case-insensitively.
func (r Rule) AcceptsShade(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	if r.UsesAllowList() {
		_, ok := r.shadeSet[strings.ToLower(code)]
		return ok
	}
	for _, re := range r.compiled {
		if re.MatchString(code) {
			return true
		}
	}
	return false
}

// Registry is immutable after NewRegistry returns.
type Registry struct {
	rules    []Rule
	byName   map[string]int
	defaults map[Category]string
}

func NewRegistry(c Catalog) (*Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	reg := &Registry{
		rules:    make([]Rule, 0, len(c.Brands)),
		byName:   make(map[string]int, len(c.Brands)),
		defaults: make(map[Category]string, len(c.Defaults)),
	}
	for _, b := range c.Brands {
		rule := b
		rule.Patterns = append([]string(nil), b.Patterns...)
		rule.Shades = append([]string(nil), b.Shades...)
		if err := rule.compile(); err != nil {
			return nil, err
		}
		reg.byName[strings.ToLower(rule.Name)] = len(reg.rules)
		reg.rules = append(reg.rules, rule)
	}
	for cat, name := range c.Defaults {
		reg.defaults[cat] = name
	}
	return reg, nil
}

func (r *Registry) Lookup(name string) (Rule, bool) {
	idx, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Rule{}, false
	}
	return r.rules[idx], true
}

// Brands returns the rules of a category in registration order.
func (r *Registry) Brands(cat Category) []Rule {
	var out []Rule
	for _, rule := range r.rules {
		if rule.Category == cat {
			out = append(out, rule)
		}
	}
	return out
}

func (r *Registry) Default(cat Category) Rule {
	rule, _ := r.Lookup(r.defaults[cat])
	return rule
}

// NormalizeBrandName maps user or model input onto a brand of the category.
// Exact case-insensitive names win, then the first brand (registration order)
// whose first or last name token appears in the input, then the category default.
func (r *Registry) NormalizeBrandName(cat Category, raw string) string {
	input := strings.ToLower(strings.TrimSpace(raw))
	if input == "" {
		return r.defaults[cat]
	}
	candidates := r.Brands(cat)
	for _, rule := range candidates {
		if strings.ToLower(rule.Name) == input {
			return rule.Name
		}
	}
	for _, rule := range candidates {
		tokens := strings.Fields(strings.ToLower(rule.Name))
		if len(tokens) == 0 {
			continue
		}
		if strings.Contains(input, tokens[0]) || strings.Contains(input, tokens[len(tokens)-1]) {
			return rule.Name
		}
	}
	return r.defaults[cat]
}

// Resolve normalizes the brand name and returns its rule.
func (r *Registry) Resolve(cat Category, raw string) Rule {
	rule, ok := r.Lookup(r.NormalizeBrandName(cat, raw))
	if !ok {
		return r.Default(cat)
	}
	return rule
}
