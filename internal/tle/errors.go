package tle

import "errors"

// Sentinels for errors.Is. The concrete error types below match them.
var (
	ErrMalformed   = errors.New("TLE was malformed")
	ErrPropagation = errors.New("error in SGP4 propagator")
)

// MalformedError reports a structural problem in TLE text: wrong line
// length, wrong line count, or rejection by the propagator's ingestion.
// The caller can fix the input and retry.
type MalformedError struct {
	Detail string
	cause  error
}

func (e *MalformedError) Error() string { return ErrMalformed.Error() + ": " + e.Detail }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

func (e *MalformedError) Unwrap() error { return e.cause }

// PropagationError reports that SGP4 produced no state for the requested
// time. The message is fixed; the propagator's reason is only reachable
// through errors.Unwrap. Failures are deterministic for a TLE/time pair.
type PropagationError struct {
	cause error
}

func (e *PropagationError) Error() string { return ErrPropagation.Error() }

func (e *PropagationError) Is(target error) bool { return target == ErrPropagation }

func (e *PropagationError) Unwrap() error { return e.cause }

// UnknownError covers conditions not otherwise classified. Not retryable.
type UnknownError struct {
	Detail string
}

func (e *UnknownError) Error() string { return e.Detail }
