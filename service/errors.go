package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lookup and state-conflict failures. Handlers map these
// onto HTTP status codes; callers branch with errors.Is.
var (
	// ErrNotFound is returned when a record does not exist for the caller.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadySigned rejects submission of an executed authorization.
	ErrAlreadySigned = errors.New("authorization already signed")
	// ErrInvalidState rejects an operation the current status does not allow.
	ErrInvalidState = errors.New("operation not allowed in current status")
	// ErrConcurrentModification is returned when a conditional persist found
	// the record changed underneath it; the caller must re-fetch and retry.
	ErrConcurrentModification = errors.New("authorization modified concurrently")
	// ErrPropertyHasActiveAuthorization enforces one in-flight authorization
	// per property.
	ErrPropertyHasActiveAuthorization = errors.New("property already has an authorization awaiting signature")
	// ErrMalformedEvent is returned for webhook payloads missing the
	// document reference.
	ErrMalformedEvent = errors.New("event is missing the document key")
)

// GenerationError reports required party/property fields missing for the
// party-type variant being rendered.
type GenerationError struct {
	PartyType string
	Missing   []string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("cannot generate authorization document for party type %q: missing %s",
		e.PartyType, strings.Join(e.Missing, ", "))
}

// GatewayError is a non-2xx response from the signing provider. The client
// never retries on its own; the lifecycle controller decides retryability.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("clicksign %s failed: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// PartialSubmissionError means the document was already submitted to the
// provider but a later step failed. The document key has been persisted, so
// re-running SubmitForSigning resumes at signer registration instead of
// creating a duplicate external document.
type PartialSubmissionError struct {
	Step        string
	DocumentKey string
	Err         error
}

func (e *PartialSubmissionError) Error() string {
	return fmt.Sprintf("submission incomplete at %s (document %s already submitted): %v",
		e.Step, e.DocumentKey, e.Err)
}

func (e *PartialSubmissionError) Unwrap() error { return e.Err }
