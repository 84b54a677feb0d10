package domain

import "errors"

var (
	// ErrValidation signals invalid caller input, rejected before any I/O.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream signals a knowledge-source, vector-store, or generation backend failure.
	ErrUpstream = errors.New("upstream failure")
	// ErrConfig signals a fatal configuration mismatch detected at startup or first use.
	ErrConfig = errors.New("configuration error")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference signals a URL outside the knowledge source's domain.
	ErrInvalidReference = errors.New("invalid reference")
)
