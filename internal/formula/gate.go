package formula

import (
	"regexp"
	"strings"

	"github.com/ihblv/hairhub-server/internal/brands"
)

var withWord = regexp.MustCompile(`(?i)\bwith\b`)

// GateStep checks mixing instructions on one formula. Non-RTU brands need the
// canonical ratio and developer; RTU brands must mention neither. Compound
// ratio descriptions only require some explicit "n:m" ratio.
func GateStep(formula string, rule brands.Rule) error {
	f := strings.TrimSpace(formula)
	if f == "" || IsNotApplicable(f) {
		return nil
	}
	if rule.IsRTU() {
		if ratioToken.MatchString(f) || withWord.MatchString(f) {
			return &ValidationError{Reason: rtuMixingReason(rule.Name), Err: ErrRTUMixingReference}
		}
		return nil
	}
	if !hasRatio(f, rule) {
		return &ValidationError{Reason: missingMixingReason(rule.Name), Err: ErrRatioOrDeveloperMissing}
	}
	if dev := rule.CanonicalDeveloper(); dev != "" && !containsFold(f, dev) {
		return &ValidationError{Reason: missingMixingReason(rule.Name), Err: ErrRatioOrDeveloperMissing}
	}
	return nil
}

func hasRatio(formula string, rule brands.Rule) bool {
	ratio, fixed := rule.FixedRatio()
	for _, tok := range ratioToken.FindAllString(formula, -1) {
		if !fixed {
			return true
		}
		if strings.ReplaceAll(tok, " ", "") == ratio {
			return true
		}
	}
	return false
}

// Check runs the acceptance checks over a whole candidate. Alternates marked
// not applicable are skipped; the first scenario never is. An empty candidate
// or a checked scenario without an ends formula is rejected.
func Check(result AnalysisResult, rule brands.Rule) error {
	if len(result.Scenarios) == 0 {
		return &ValidationError{Err: ErrUpstreamFormat}
	}
	for i := range result.Scenarios {
		s := &result.Scenarios[i]
		if s.NA && i > 0 {
			continue
		}
		if strings.TrimSpace(s.Ends.Formula) == "" {
			return &ValidationError{Err: ErrUpstreamFormat}
		}
		for _, step := range s.Steps() {
			if !StepValid(step, rule) {
				return &ValidationError{Reason: unrecognizedShadeReason(rule.Name), Err: ErrShadeValidation}
			}
			if err := GateStep(step.Formula, rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate is Check expressed as a ValidationOutcome.
func Validate(result AnalysisResult, rule brands.Rule) ValidationOutcome {
	err := Check(result, rule)
	if err == nil {
		return ValidationOutcome{Valid: true}
	}
	out := ValidationOutcome{Valid: false}
	if ve, ok := err.(*ValidationError); ok {
		out.Reason = ve.Reason
	}
	return out
}
