package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists.
	// The store's key constraints win races: the loser of a
	// (source_id, chunk_number) or URL race receives this, not an
	// opaque transport error.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates the backing store could not be reached
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidProvider indicates an unknown embedding provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrConverterUnavailable indicates the heavy document converter is
	// not installed; callers should probe availability before dispatch
	ErrConverterUnavailable = errors.New("converter unavailable")

	// ErrUnsupportedFormat indicates no parser handles the file format
	ErrUnsupportedFormat = errors.New("unsupported format")
)
