package formula

import (
	"regexp"
	"strings"

	"github.com/ihblv/hairhub-server/internal/brands"
)

// Guard names, used as metric labels and log fields.
const (
	GuardJetBlack     = "jet_black"
	GuardVividRed     = "vivid_red"
	GuardWarmBlonde   = "warm_blonde"
	GuardNeutralBlack = "neutral_black"
)

const (
	tonerTimingCaution = "Process 5-10 minutes maximum; watch closely, toners deposit quickly on porous ends."
	warmBlondeRecipe   = "Gold + Beige"
	primaryPlanTitle   = "Primary plan"
)

var (
	jetBlackCue = regexp.MustCompile(`\blevels?[\s-]*[12]\b|\bjet[\s-]*black\b|\bsolid\s+black\b`)
	vividRedCue = regexp.MustCompile(`\b(?:vivid|vibrant|rich)\s+red\b|\bcherry\b|\bruby\b|\bcrimson\b|\bscarlet\b`)
	warmCue     = regexp.MustCompile(`\b(?:warm|golden|honey|caramel)\b`)
	blondeCue   = regexp.MustCompile(`\bblonde?\b`)
	blackCue    = regexp.MustCompile(`\bblack\b`)
	neutralOneA = regexp.MustCompile(`\b1A\b`)
)

// ApplyTonerGuards handles deposit-only toner lines. Unlightened black and
// saturated red hair get a single not-applicable plan; warm blondes get a fixed
// ends recipe. Every present ends timing is then replaced with a short
// processing caution. It returns the guard that fired, or "".
func ApplyTonerGuards(result AnalysisResult, rule brands.Rule) (AnalysisResult, string) {
	if !rule.TonerGuard {
		return result, ""
	}
	text := strings.ToLower(result.Analysis)
	out := result.clone()
	guard := ""
	switch {
	case jetBlackCue.MatchString(text):
		out.Scenarios = []Scenario{jetBlackScenario(rule)}
		guard = GuardJetBlack
	case vividRedCue.MatchString(text):
		out.Scenarios = []Scenario{vividRedScenario(rule)}
		guard = GuardVividRed
	case warmCue.MatchString(text) && blondeCue.MatchString(text) && len(out.Scenarios) > 0:
		out.Scenarios[0].Ends = Step{
			Formula: Enforce(warmBlondeRecipe, rule),
			Timing:  tonerTimingCaution,
		}
		guard = GuardWarmBlonde
	}
	for i := range out.Scenarios {
		if strings.TrimSpace(out.Scenarios[i].Ends.Timing) != "" {
			out.Scenarios[i].Ends.Timing = tonerTimingCaution
		}
	}
	return out, guard
}

func jetBlackScenario(rule brands.Rule) Scenario {
	return Scenario{
		Title: primaryPlanTitle,
		Ends: Step{
			Formula: "N/A — " + rule.Name + " is deposit-only and cannot lift or visibly tone unlightened level 1-2 or solid black hair.",
		},
		Processing: []string{
			"Not applicable: toners only show on pre-lightened hair.",
			"Lighten to the desired level first, then tone.",
		},
		Confidence: 0.85,
	}
}

func vividRedScenario(rule brands.Rule) Scenario {
	return Scenario{
		Title: primaryPlanTitle,
		Ends: Step{
			Formula: "N/A — " + rule.Name + " cannot produce saturated vivid reds; use a direct dye such as Pravana ChromaSilk Vivids.",
		},
		Processing: []string{
			"Not applicable: redirect to a direct-dye line for vivid red results.",
		},
		Confidence: 0.8,
	}
}

// ApplyNeutralBlack swaps the ash "1A" for the neutral "1N" on brands whose
// ash blacks read blue, when the analysis describes black hair. Only the whole
// token is replaced.
func ApplyNeutralBlack(result AnalysisResult, rule brands.Rule) (AnalysisResult, bool) {
	if !rule.NeutralBlack {
		return result, false
	}
	text := strings.ToLower(result.Analysis)
	if !jetBlackCue.MatchString(text) && !blackCue.MatchString(text) {
		return result, false
	}
	out := result.clone()
	changed := false
	for i := range out.Scenarios {
		for _, step := range out.Scenarios[i].Steps() {
			replaced := neutralOneA.ReplaceAllString(step.Formula, "1N")
			if replaced != step.Formula {
				step.Formula = replaced
				changed = true
			}
		}
	}
	return out, changed
}
