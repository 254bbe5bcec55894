package formula

import (
	"errors"
	"fmt"
)

var (
	ErrUpstreamFormat          = errors.New("collaborator output is not a usable JSON result")
	ErrShadeValidation         = errors.New("unrecognized shade code")
	ErrRatioOrDeveloperMissing = errors.New("mixing ratio or developer missing")
	ErrRTUMixingReference      = errors.New("ready-to-use formula references a ratio or developer")
)

// ValidationError carries the user-facing reason for a rejected candidate.
// It never leaves the pipeline: the orchestrator retries, then falls back.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UpstreamError is the only error Generate returns: the collaborator could not
// be reached or refused the call.
type UpstreamError struct {
	Provider string
	Attempt  int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s collaborator failed on attempt %d: %v", e.Provider, e.Attempt, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func unrecognizedShadeReason(brand string) string {
	return "Unrecognized shade(s) for " + brand
}

func missingMixingReason(brand string) string {
	return "Missing mixing ratio or developer for " + brand
}

func rtuMixingReason(brand string) string {
	return brand + " is ready to use; formulas must not include a ratio or developer"
}
