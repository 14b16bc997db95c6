// Package httpapi serves the vault over HTTP. Chat answers are streamed
// as server-sent events.
package httpapi

import "errors"

// Sentinel errors for the HTTP adapter.
var (
	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("search service is required")

	// ErrMissingRecordService is returned when the record service is not provided.
	ErrMissingRecordService = errors.New("record service is required")
)
