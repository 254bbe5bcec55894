package formula

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var leadingInt = regexp.MustCompile(`\d+`)

// ParseResult reads a collaborator reply into an AnalysisResult. Markdown
// fences and chatter around the object are ignored, and missing, null or
// loosely typed fields fall back to zero values. Only a reply with no usable
// JSON object yields ErrUpstreamFormat.
func ParseResult(raw string) (AnalysisResult, error) {
	doc := extractJSONObject(raw)
	if doc == "" || !gjson.Valid(doc) {
		return AnalysisResult{}, ErrUpstreamFormat
	}
	root := gjson.Parse(doc)
	if !root.IsObject() {
		return AnalysisResult{}, ErrUpstreamFormat
	}
	result := AnalysisResult{Analysis: strings.TrimSpace(root.Get("analysis").String())}
	if scenarios := root.Get("scenarios"); scenarios.IsArray() {
		for _, v := range scenarios.Array() {
			if v.IsObject() {
				result.Scenarios = append(result.Scenarios, parseScenario(v))
			}
		}
	}
	return result, nil
}

func extractJSONObject(raw string) string {
	s := stripCodeFences(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func parseScenario(v gjson.Result) Scenario {
	s := Scenario{
		Title:       strings.TrimSpace(v.Get("title").String()),
		Condition:   optionalString(v.Get("condition")),
		TargetLevel: optionalInt(v.Get("target_level")),
		Roots:       optionalStep(v.Get("roots")),
		Melt:        optionalStep(v.Get("melt")),
		Ends:        parseStep(v.Get("ends")),
		Confidence:  clampConfidence(v.Get("confidence").Float()),
	}
	processing := v.Get("processing")
	switch {
	case processing.IsArray():
		for _, item := range processing.Array() {
			if line := strings.TrimSpace(item.String()); line != "" {
				s.Processing = append(s.Processing, line)
			}
		}
	case processing.Type == gjson.String:
		if line := strings.TrimSpace(processing.String()); line != "" {
			s.Processing = []string{line}
		}
	}
	return s
}

func parseStep(v gjson.Result) Step {
	if v.Type == gjson.String {
		return Step{Formula: strings.TrimSpace(v.String())}
	}
	return Step{
		Formula: strings.TrimSpace(v.Get("formula").String()),
		Timing:  strings.TrimSpace(v.Get("timing").String()),
		Note:    optionalString(v.Get("note")),
	}
}

func optionalStep(v gjson.Result) *Step {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	if v.Type != gjson.String && !v.IsObject() {
		return nil
	}
	step := parseStep(v)
	return &step
}

func optionalString(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(v gjson.Result) *int {
	switch v.Type {
	case gjson.Number:
		n := int(v.Int())
		return &n
	case gjson.String:
		digits := leadingInt.FindString(v.String())
		if digits == "" {
			return nil
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
