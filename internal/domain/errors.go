package domain

import "errors"

var (
	// ErrInvalidQuery signals a missing or malformed required query field.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnknownBackend signals a backend selector that resolves to nothing.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrProviderUnavailable signals an embedding provider that cannot be used
	// at all, typically because its credential is absent.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrEmbeddingFailed signals a failed or malformed remote embedding call.
	ErrEmbeddingFailed = errors.New("embedding request failed")
	// ErrBackendUnavailable signals that the vector backend errored or returned
	// nothing usable. The orchestrator absorbs it via the lexical fallback; it
	// surfaces to the caller only when the fallback fails too.
	ErrBackendUnavailable = errors.New("vector backend unavailable")
	// ErrRecordNotFound signals a lookup for an id the corpus does not hold.
	ErrRecordNotFound = errors.New("record not found")
)
