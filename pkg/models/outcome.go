package models

import (
	"encoding/json"
	"time"
)

// ErrorKind classifies a failed work request.
type ErrorKind string

const (
	ErrUnknownModel          ErrorKind = "UnknownModel"
	ErrNetworkFailure        ErrorKind = "NetworkFailure"
	ErrProtocolDecodeFailure ErrorKind = "ProtocolDecodeFailure"
	ErrProviderError         ErrorKind = "ProviderError"
	ErrJournalUnavailable    ErrorKind = "JournalUnavailable"
	ErrDeadlineExceeded      ErrorKind = "DeadlineExceeded"
	ErrPanic                 ErrorKind = "Panic"
)

// Success is the payload of a completed request.
type Success struct {
	Thinking *string         `json:"thinking,omitempty"`
	Value    string          `json:"value"`
	Params   SampleParams    `json:"params,omitzero"`
	Usage    *Usage          `json:"usage,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
	Start    time.Time       `json:"t0"`
	End      time.Time       `json:"t1"`
}

// Failure is the payload of a request that did not produce a completion.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
	// Raw holds the provider body when one was received, for diagnosis.
	Raw string `json:"raw,omitempty"`
}

// WorkOutcome is the terminal result of a WorkRequest. Exactly one of
// Success and Failure is set.
type WorkOutcome struct {
	Request WorkRequest `json:"request"`
	Success *Success    `json:"success,omitempty"`
	Failure *Failure    `json:"failure,omitempty"`
	// CacheHit is set when the outcome was served from the journal.
	CacheHit bool `json:"-"`
}

// NewSuccess builds a successful outcome for req.
func NewSuccess(req WorkRequest, s Success) *WorkOutcome {
	return &WorkOutcome{Request: req, Success: &s}
}

// NewFailure builds a failed outcome for req.
func NewFailure(req WorkRequest, kind ErrorKind, msg, stack string) *WorkOutcome {
	return &WorkOutcome{Request: req, Failure: &Failure{Kind: kind, Message: msg, Stack: stack}}
}

// OK reports whether the outcome is a Success.
func (o *WorkOutcome) OK() bool {
	return o != nil && o.Success != nil
}

// Value returns the completion text, or "" for failures.
func (o *WorkOutcome) Value() string {
	if !o.OK() {
		return ""
	}
	return o.Success.Value
}

// Kind returns the failure kind, or "" for successes.
func (o *WorkOutcome) Kind() ErrorKind {
	if o == nil || o.Failure == nil {
		return ""
	}
	return o.Failure.Kind
}
