package formula

import (
	"regexp"
	"strings"

	"github.com/ihblv/hairhub-server/internal/brands"
)

var parenClause = regexp.MustCompile(`\([^)]*\)`)

// ExtractCodes pulls candidate shade codes out of a formula: parenthesised
// clauses are dropped, the text is cut at the first " with ", split on "+",
// and the first word of each part is taken.
func ExtractCodes(formula string) []string {
	f := parenClause.ReplaceAllString(formula, " ")
	if loc := withToken.FindStringIndex(f); loc != nil {
		f = f[:loc[0]]
	}
	var codes []string
	for _, part := range strings.Split(f, "+") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if code := strings.Trim(fields[0], ",;.:"); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// InvalidCodes returns the extracted codes the brand does not recognize.
func InvalidCodes(formula string, rule brands.Rule) []string {
	var bad []string
	for _, code := range ExtractCodes(formula) {
		if !rule.AcceptsShade(code) {
			bad = append(bad, code)
		}
	}
	return bad
}

// StepValid is true for absent, empty and "N/A" steps; otherwise every
// extracted code must be accepted by the brand and at least one must exist.
func StepValid(step *Step, rule brands.Rule) bool {
	if step == nil {
		return true
	}
	f := strings.TrimSpace(step.Formula)
	if f == "" || IsNotApplicable(f) {
		return true
	}
	codes := ExtractCodes(f)
	if len(codes) == 0 {
		return false
	}
	for _, code := range codes {
		if !rule.AcceptsShade(code) {
			return false
		}
	}
	return true
}

func ScenarioValid(s *Scenario, rule brands.Rule) bool {
	for _, step := range s.Steps() {
		if !StepValid(step, rule) {
			return false
		}
	}
	return true
}
