package adapter

import (
	"context"
	"fmt"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

// Adapter obtains and normalizes rate data for a single entity. Errors of
// any kind are converted to a Failure outcome at this boundary; Fetch never
// panics and never returns an error to the caller.
type Adapter interface {
	Fetch(ctx context.Context) Outcome
}

// OutcomeKind tags the variant carried by an Outcome.
type OutcomeKind string

const (
	KindSuccess OutcomeKind = "SUCCESS"
	KindPartial OutcomeKind = "PARTIAL"
	KindFailure OutcomeKind = "FAILURE"
)

// FailureReason classifies why a fetch produced no usable records.
type FailureReason string

const (
	ReasonNetwork    FailureReason = "NETWORK"
	ReasonTimeout    FailureReason = "TIMEOUT"
	ReasonParse      FailureReason = "PARSE"
	ReasonValidation FailureReason = "VALIDATION"
)

// Outcome is the uniform result contract shared by all adapter variants.
type Outcome struct {
	Kind         OutcomeKind
	Records      []rates.Record
	Warnings     []string
	MissingTerms []int
	Reason       FailureReason
	Detail       string
}

// Success wraps one or more extracted records.
func Success(records []rates.Record, warnings []string) Outcome {
	return Outcome{Kind: KindSuccess, Records: records, Warnings: warnings}
}

// Partial wraps records extracted alongside terms that could not be found.
func Partial(records []rates.Record, missingTerms []int, warnings []string) Outcome {
	return Outcome{Kind: KindPartial, Records: records, MissingTerms: missingTerms, Warnings: warnings}
}

// Failure marks the whole entity as down for this run.
func Failure(reason FailureReason, detail string) Outcome {
	return Outcome{Kind: KindFailure, Reason: reason, Detail: detail}
}

// Failuref is Failure with fmt-style detail.
func Failuref(reason FailureReason, format string, args ...any) Outcome {
	return Failure(reason, fmt.Sprintf(format, args...))
}
