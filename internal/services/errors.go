package services

import "errors"

// Sentinel errors shared by the stage functions. Stages wrap them with
// context via fmt.Errorf and %w, so callers test with errors.Is.
var (
	// ErrMalformedSource marks a source object that cannot be parsed as
	// its claimed format. The record is logged and skipped; no partial
	// artifact is written for it.
	ErrMalformedSource = errors.New("malformed source document")

	// ErrMissingPrompt is returned by the router when the request has no
	// prompt. The HTTP wrapper turns it into a 400.
	ErrMissingPrompt = errors.New("missing 'prompt'")

	// ErrMissingQuery is returned by the knowledge base query stage when
	// the request has no query text.
	ErrMissingQuery = errors.New("missing 'query'")

	// ErrUnknownBackend is returned when a request names a backend that
	// is not configured.
	ErrUnknownBackend = errors.New("unknown backend")
)
