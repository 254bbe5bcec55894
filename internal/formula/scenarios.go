package formula

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ihblv/hairhub-server/internal/brands"
)

// AlternateLevelCeiling is a fixed business rule: an alternate plan that
// reaches level 7 or lighter on a deposit-only category is not offered.
const AlternateLevelCeiling = 7

const (
	alternateNote   = "Not applicable for this hair; follow the primary plan."
	primaryAdvisory = "Check shade codes against the manufacturer chart: an unrecognized code was removed from this formula."
)

var (
	vividFashionCue = regexp.MustCompile(`\b(?:vivid|fashion\s+colou?r|neon|pastel|magenta|teal|turquoise|fuchsia|electric\s+blue|hot\s+pink)\b`)
	levelPrefix     = regexp.MustCompile(`^0?(\d{1,2})`)
)

// MarkAlternates flags alternate scenarios that do not apply. Permanent color
// passes through untouched.
func MarkAlternates(result AnalysisResult, rule brands.Rule, category brands.Category) AnalysisResult {
	if category == brands.CategoryPermanent {
		return result
	}
	out := result.clone()
	blackOrVivid := blackOrSingleVivid(out.Analysis)
	for i := range out.Scenarios {
		s := &out.Scenarios[i]
		if !strings.Contains(strings.ToLower(s.Title), "alternate") {
			continue
		}
		if blackOrVivid || maxLevel(s) >= AlternateLevelCeiling || !ScenarioValid(s, rule) {
			s.NA = true
			s.Note = stringPtr(alternateNote)
		}
	}
	return out
}

func blackOrSingleVivid(analysis string) bool {
	text := strings.ToLower(analysis)
	return jetBlackCue.MatchString(text) || vividFashionCue.MatchString(text)
}

// maxLevel is the highest 1-12 level read from the leading digits of the
// scenario's shade codes, or 0.
func maxLevel(s *Scenario) int {
	highest := 0
	for _, step := range s.Steps() {
		if IsNotApplicable(step.Formula) {
			continue
		}
		for _, code := range ExtractCodes(step.Formula) {
			m := levelPrefix.FindStringSubmatch(code)
			if m == nil {
				continue
			}
			level, err := strconv.Atoi(m[1])
			if err != nil || level < 1 || level > 12 {
				continue
			}
			if level > highest {
				highest = level
			}
		}
	}
	return highest
}

// SanitizePrimary repairs the first scenario instead of rejecting it: the
// leading token of each failing step is dropped and an advisory is added once.
func SanitizePrimary(result AnalysisResult, rule brands.Rule) AnalysisResult {
	if len(result.Scenarios) == 0 {
		return result
	}
	out := result.clone()
	primary := &out.Scenarios[0]
	repaired := false
	for _, step := range primary.Steps() {
		if StepValid(step, rule) {
			continue
		}
		step.Formula = dropLeadingToken(step.Formula)
		repaired = true
	}
	if repaired {
		primary.Processing = append([]string{primaryAdvisory}, primary.Processing...)
	}
	return out
}

func dropLeadingToken(formula string) string {
	f := strings.TrimSpace(formula)
	i := strings.IndexFunc(f, func(r rune) bool { return r == ' ' || r == '\t' })
	if i < 0 {
		return ""
	}
	return strings.TrimLeft(strings.TrimSpace(f[i:]), "+ ")
}

// Collapse keeps a single scenario for demi and semi, preferring one titled
// "primary", and caps permanent at MaxScenarios.
func Collapse(result AnalysisResult, category brands.Category) AnalysisResult {
	if !category.SingleScenario() {
		if len(result.Scenarios) <= MaxScenarios {
			return result
		}
		out := result.clone()
		out.Scenarios = out.Scenarios[:MaxScenarios]
		return out
	}
	if len(result.Scenarios) <= 1 {
		return result
	}
	out := result.clone()
	keep := out.Scenarios[0]
	for _, s := range out.Scenarios {
		if strings.Contains(strings.ToLower(s.Title), "primary") {
			keep = s
			break
		}
	}
	out.Scenarios = []Scenario{keep}
	return out
}

// Fallback is the fixed response once both attempts fail validation.
func Fallback(brand, reason string) AnalysisResult {
	if strings.TrimSpace(reason) == "" {
		reason = unrecognizedShadeReason(brand)
	}
	return AnalysisResult{
		Analysis: reason,
		Scenarios: []Scenario{{
			Title:      "Primary",
			Ends:       Step{Formula: "N/A — " + reason + "."},
			Processing: []string{reason},
			Confidence: 0,
		}},
	}
}

// finalize guarantees non-nil slices so the JSON shape never carries null lists.
func finalize(result AnalysisResult) AnalysisResult {
	if result.Scenarios == nil {
		result.Scenarios = []Scenario{}
	}
	for i := range result.Scenarios {
		if result.Scenarios[i].Processing == nil {
			result.Scenarios[i].Processing = []string{}
		}
	}
	return result
}
