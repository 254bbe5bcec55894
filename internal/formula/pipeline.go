package formula

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/ihblv/hairhub-server/internal/brands"
)

// MaxAttempts caps collaborator calls per request.
const MaxAttempts = 2

const (
	StateAttempt    = "attempt"
	StateValidating = "validating"
	StateAccepted   = "accepted"
	StateFallback   = "fallback"
)

const (
	EventRespond = "respond"
	EventAccept  = "accept"
	EventRetry   = "retry"
	EventGiveUp  = "give_up"
)

// Outcome labels reported to the Recorder.
const (
	OutcomeAccepted = "accepted"
	OutcomeFallback = "fallback"
	OutcomeUpstream = "upstream_error"
)

// Recorder receives pipeline measurements. observability.Metrics implements it.
type Recorder interface {
	Attempt(brand string, attempt int)
	Outcome(outcome string)
	GuardOverride(guard string)
	ObserveCollaborator(provider string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) Attempt(string, int)                        {}
func (noopRecorder) Outcome(string)                             {}
func (noopRecorder) GuardOverride(string)                       {}
func (noopRecorder) ObserveCollaborator(string, time.Duration) {}

type Pipeline struct {
	caller   LLMCaller
	provider string
	log      *zap.Logger
	metrics  Recorder
	tracer   trace.Tracer
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.metrics = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithProvider names the collaborator in errors, spans and metrics.
func WithProvider(name string) Option {
	return func(p *Pipeline) { p.provider = name }
}

func NewPipeline(caller LLMCaller, opts ...Option) *Pipeline {
	p := &Pipeline{
		caller:   caller,
		provider: ProviderAnthropic,
		log:      zap.NewNop(),
		metrics:  noopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer("formula"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// generation is the per-request state carried across transitions.
type generation struct {
	req       Request
	attempt   int
	candidate AnalysisResult
	outcome   ValidationOutcome
}

func newGenerationFSM(log *zap.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateAttempt,
		fsm.Events{
			{Name: EventRespond, Src: []string{StateAttempt}, Dst: StateValidating},
			{Name: EventAccept, Src: []string{StateValidating}, Dst: StateAccepted},
			{Name: EventRetry, Src: []string{StateValidating}, Dst: StateAttempt},
			{Name: EventGiveUp, Src: []string{StateValidating}, Dst: StateFallback},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug("generation transition",
					zap.String("event", e.Event),
					zap.String("from", e.Src),
					zap.String("to", e.Dst))
			},
		},
	)
}

// Generate turns one photo into a brand-compliant result. Validation failures
// are retried once with a stricter prompt and then answered with Fallback.
// The returned error is always an *UpstreamError.
func (p *Pipeline) Generate(ctx context.Context, req Request) (AnalysisResult, error) {
	ctx, span := p.tracer.Start(ctx, "formula.generate", trace.WithAttributes(
		attribute.String("brand", req.Brand.Name),
		attribute.String("category", string(req.Category)),
		attribute.String("provider", p.provider),
	))
	defer span.End()

	log := p.log.With(zap.String("brand", req.Brand.Name), zap.String("category", string(req.Category)))
	run := &generation{req: req}
	machine := newGenerationFSM(log)

	for {
		switch machine.Current() {
		case StateAttempt:
			if err := p.attempt(ctx, run, log); err != nil {
				p.metrics.Outcome(OutcomeUpstream)
				span.RecordError(err)
				span.SetStatus(codes.Error, "collaborator failed")
				return AnalysisResult{}, err
			}
			if err := p.fire(ctx, machine, EventRespond); err != nil {
				return AnalysisResult{}, err
			}

		case StateValidating:
			run.outcome = Validate(run.candidate, req.Brand)
			event := EventAccept
			if !run.outcome.Valid {
				log.Info("candidate rejected", zap.Int("attempt", run.attempt), zap.String("reason", run.outcome.Reason))
				event = EventGiveUp
				if run.attempt+1 < MaxAttempts {
					run.attempt++
					event = EventRetry
				}
			}
			if err := p.fire(ctx, machine, event); err != nil {
				return AnalysisResult{}, err
			}

		case StateAccepted:
			result := Collapse(SanitizePrimary(run.candidate, req.Brand), req.Category)
			p.metrics.Outcome(OutcomeAccepted)
			span.SetAttributes(attribute.String("outcome", OutcomeAccepted), attribute.Int("attempts", run.attempt+1))
			return finalize(result), nil

		case StateFallback:
			p.metrics.Outcome(OutcomeFallback)
			span.SetAttributes(attribute.String("outcome", OutcomeFallback), attribute.Int("attempts", run.attempt+1))
			log.Warn("returning fallback", zap.String("reason", run.outcome.Reason))
			return finalize(Fallback(req.Brand.Name, run.outcome.Reason)), nil

		default:
			return AnalysisResult{}, fmt.Errorf("generation reached unknown state %q", machine.Current())
		}
	}
}

func (p *Pipeline) fire(ctx context.Context, machine *fsm.FSM, event string) error {
	if err := machine.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
		return fmt.Errorf("generation %s: %w", event, err)
	}
	return nil
}

// attempt calls the collaborator and post-processes its reply into
// run.candidate. Unparseable output becomes an empty candidate.
func (p *Pipeline) attempt(ctx context.Context, run *generation, log *zap.Logger) error {
	ctx, span := p.tracer.Start(ctx, "formula.attempt", trace.WithAttributes(attribute.Int("attempt", run.attempt)))
	defer span.End()

	req := run.req
	prompt := BuildSystemPrompt(req.Category, req.Brand, run.attempt, run.outcome.Reason)
	p.metrics.Attempt(req.Brand.Name, run.attempt)

	started := time.Now()
	raw, err := p.caller.GenerateJSON(ctx, prompt, req.Image)
	p.metrics.ObserveCollaborator(p.provider, time.Since(started))
	if err != nil {
		log.Error("collaborator call failed",
			zap.Int("attempt", run.attempt),
			zap.String("class", TransportClass(err)),
			zap.Error(err))
		span.RecordError(err)
		return &UpstreamError{Provider: p.provider, Attempt: run.attempt, Err: err}
	}

	parsed, err := ParseResult(raw)
	if err != nil {
		log.Warn("collaborator output unparseable", zap.Int("attempt", run.attempt), zap.Int("bytes", len(raw)))
		parsed = AnalysisResult{}
	}
	run.candidate = p.postProcess(parsed, req)
	span.SetAttributes(attribute.Int("scenarios", len(run.candidate.Scenarios)))
	return nil
}

func (p *Pipeline) postProcess(result AnalysisResult, req Request) AnalysisResult {
	result = NormalizeResult(result, req.Brand)
	result, guard := ApplyTonerGuards(result, req.Brand)
	if guard != "" {
		p.metrics.GuardOverride(guard)
	}
	result, swapped := ApplyNeutralBlack(result, req.Brand)
	if swapped {
		p.metrics.GuardOverride(GuardNeutralBlack)
	}
	return MarkAlternates(result, req.Brand, req.Category)
}

// Process runs the deterministic post-processing and acceptance on an already
// parsed candidate, without calling a collaborator. Used to re-check saved
// results.
func Process(result AnalysisResult, rule brands.Rule, category brands.Category) (AnalysisResult, ValidationOutcome) {
	p := NewPipeline(nil)
	candidate := p.postProcess(result, Request{Category: category, Brand: rule})
	outcome := Validate(candidate, rule)
	if !outcome.Valid {
		return finalize(candidate), outcome
	}
	return finalize(Collapse(SanitizePrimary(candidate, rule), category)), outcome
}
