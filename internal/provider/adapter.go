package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a provider attempt failed. The cascade treats all
// kinds the same way (move on to the next adapter) but records them
// separately so operators can tell an outage from a bad completion.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindTimeout     ErrorKind = "timeout"
	KindMalformed   ErrorKind = "malformed"
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a provider name and failure kind.
func NewError(provider string, kind ErrorKind, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err, defaulting to unavailable for
// unclassified errors and timeout for context deadline errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnavailable
}

// Prompt is one generation request: a system framing plus the user message.
type Prompt struct {
	System string
	User   string
}

// Adapter is a single text-generation backend. Generate must honor ctx
// cancellation and return a classified *Error on failure.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
