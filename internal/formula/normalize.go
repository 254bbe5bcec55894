package formula

import (
	"regexp"
	"strings"

	"github.com/ihblv/hairhub-server/internal/brands"
)

var (
	ratioToken = regexp.MustCompile(`\d+(?:\.\d+)?\s*:\s*\d+(?:\.\d+)?`)
	withToken  = regexp.MustCompile(`(?i) with `)
)

// Mix is a formula split around its mixing clause. Enforce edits the structured
// value and renders text once, so repeated enforcement is a no-op.
type Mix struct {
	// Head is everything before the first " with ": shade codes, any ratio the
	// formula already states, free notes.
	Head string
	// Ratio is injected after Head as "(a:b)".
	Ratio string
	// WithToken preserves the original " with " spelling; empty when absent.
	WithToken string
	// Developer is injected at the start of the mixing clause.
	Developer string
	// Clause is the original text after " with ".
	Clause string
}

func ParseMix(formula string) Mix {
	loc := withToken.FindStringIndex(formula)
	if loc == nil {
		return Mix{Head: formula}
	}
	return Mix{
		Head:      formula[:loc[0]],
		WithToken: formula[loc[0]:loc[1]],
		Clause:    formula[loc[1]:],
	}
}

func (m Mix) String() string {
	var b strings.Builder
	if m.Ratio != "" {
		b.WriteString(strings.TrimRight(m.Head, " "))
		b.WriteString(" (")
		b.WriteString(m.Ratio)
		b.WriteString(")")
	} else {
		b.WriteString(m.Head)
	}
	if m.WithToken == "" && m.Developer == "" {
		return b.String()
	}
	token := m.WithToken
	if token == "" {
		token = " with "
	}
	b.WriteString(token)
	if m.Developer != "" {
		b.WriteString(m.Developer)
		if m.Clause != "" {
			b.WriteString(" ")
		}
	}
	b.WriteString(m.Clause)
	return b.String()
}

// Enforce injects the brand's canonical developer and fixed ratio into a
// formula when they are missing. Empty and "N/A" formulas are returned as is.
func Enforce(formula string, rule brands.Rule) string {
	f := strings.TrimSpace(formula)
	if f == "" || IsNotApplicable(f) {
		return formula
	}
	m := ParseMix(f)
	if dev := rule.CanonicalDeveloper(); dev != "" && !containsFold(f, dev) {
		m.Developer = dev
	}
	if ratio, ok := rule.FixedRatio(); ok && !ratioToken.MatchString(f) {
		m.Ratio = ratio
	}
	return m.String()
}

// NormalizeResult applies Enforce to every step of every scenario.
func NormalizeResult(result AnalysisResult, rule brands.Rule) AnalysisResult {
	out := result.clone()
	for i := range out.Scenarios {
		for _, step := range out.Scenarios[i].Steps() {
			step.Formula = Enforce(step.Formula, rule)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
