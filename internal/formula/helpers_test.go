package formula

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ihblv/hairhub-server/internal/brands"
)

func testRegistry(t *testing.T) *brands.Registry {
	t.Helper()
	cat, err := brands.DefaultCatalog()
	require.NoError(t, err)
	reg, err := brands.NewRegistry(cat)
	require.NoError(t, err)
	return reg
}

func mustRule(t *testing.T, name string) brands.Rule {
	t.Helper()
	rule, ok := testRegistry(t).Lookup(name)
	require.True(t, ok, "brand %q missing from default catalog", name)
	return rule
}

const (
	shadesEQ     = "Redken Shades EQ"
	gelsLacquers = "Redken Color Gels Lacquers"
	expressTones = "Pravana ChromaSilk Express Tones"
	vivids       = "Pravana ChromaSilk Vivids"
	soColor      = "Matrix SoColor"
	colorance    = "Goldwell Colorance"
)

// scriptedCaller replays one reply (or error) per call and repeats the last.
type scriptedCaller struct {
	replies []string
	errs    []error
	prompts []string
}

func (s *scriptedCaller) GenerateJSON(_ context.Context, systemPrompt string, _ Image) (string, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, systemPrompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i], nil
}

func (s *scriptedCaller) ModelName() string { return "scripted" }

type countingRecorder struct {
	mu       sync.Mutex
	attempts int
	outcomes map[string]int
	guards   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[string]int{}, guards: map[string]int{}}
}

func (r *countingRecorder) Attempt(string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

func (r *countingRecorder) Outcome(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[o]++
}

func (r *countingRecorder) GuardOverride(g string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[g]++
}

func (r *countingRecorder) ObserveCollaborator(string, time.Duration) {}

func stepPtr(formula string) *Step { return &Step{Formula: formula} }
