package formula

import (
	"strings"

	"github.com/ihblv/hairhub-server/internal/brands"
)

const (
	NotApplicablePrefix = "N/A"
	MaxScenarios        = 3
)

type Step struct {
	Formula string  `json:"formula"`
	Timing  string  `json:"timing"`
	Note    *string `json:"note"`
}

type Scenario struct {
	Title       string   `json:"title"`
	Condition   *string  `json:"condition"`
	TargetLevel *int     `json:"target_level"`
	Roots       *Step    `json:"roots"`
	Melt        *Step    `json:"melt"`
	Ends        Step     `json:"ends"`
	Processing  []string `json:"processing"`
	Confidence  float64  `json:"confidence"`
	NA          bool     `json:"na,omitempty"`
	Note        *string  `json:"note,omitempty"`
}

type AnalysisResult struct {
	Analysis  string     `json:"analysis"`
	Scenarios []Scenario `json:"scenarios"`
}

type ValidationOutcome struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Request is one generation call. Image must already be read into memory.
type Request struct {
	Category brands.Category
	Brand    brands.Rule
	Image    Image
}

type Image struct {
	MediaType string
	Data      []byte
}

// Steps returns pointers to the scenario's present steps in roots, melt, ends order.
func (s *Scenario) Steps() []*Step {
	steps := make([]*Step, 0, 3)
	if s.Roots != nil {
		steps = append(steps, s.Roots)
	}
	if s.Melt != nil {
		steps = append(steps, s.Melt)
	}
	steps = append(steps, &s.Ends)
	return steps
}

// IsNotApplicable reports whether a formula is an explicit "N/A ..." marker.
func IsNotApplicable(formula string) bool {
	f := strings.TrimSpace(formula)
	return len(f) >= len(NotApplicablePrefix) && strings.EqualFold(f[:len(NotApplicablePrefix)], NotApplicablePrefix)
}

func (r AnalysisResult) clone() AnalysisResult {
	out := AnalysisResult{Analysis: r.Analysis, Scenarios: make([]Scenario, len(r.Scenarios))}
	for i, s := range r.Scenarios {
		out.Scenarios[i] = s.clone()
	}
	return out
}

func (s Scenario) clone() Scenario {
	c := s
	c.Condition = cloneString(s.Condition)
	c.Note = cloneString(s.Note)
	if s.TargetLevel != nil {
		v := *s.TargetLevel
		c.TargetLevel = &v
	}
	if s.Roots != nil {
		v := s.Roots.clone()
		c.Roots = &v
	}
	if s.Melt != nil {
		v := s.Melt.clone()
		c.Melt = &v
	}
	c.Ends = s.Ends.clone()
	c.Processing = append([]string(nil), s.Processing...)
	return c
}

func (s Step) clone() Step {
	c := s
	c.Note = cloneString(s.Note)
	return c
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func stringPtr(s string) *string { return &s }
