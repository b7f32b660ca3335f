package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbedding indicates the embedding backend failed or returned a
	// malformed response
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch indicates the embedding dimension does not match
	// the vector store collection. This is a configuration fault, not a
	// per-request condition.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrVectorStore indicates a vector store transport or collection failure
	ErrVectorStore = errors.New("vector store failure")

	// ErrGeneration indicates the generation backend failed before or during
	// streaming
	ErrGeneration = errors.New("generation failed")

	// ErrUpstreamData indicates a weather/geocode/air-quality lookup failed.
	// Always non-fatal to a chat turn.
	ErrUpstreamData = errors.New("upstream data unavailable")

	// ErrServiceUnavailable indicates a backend could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")
)
