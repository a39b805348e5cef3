package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidProduct signals a product that failed validation.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrQueryRequired signals a blank query where one is mandatory.
	ErrQueryRequired = errors.New("query is required")

	// ErrIndexUnavailable signals a vector index that is missing or not ready.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrDimensionMismatch signals an embedding width that differs from the index.
	// It is a configuration error: never retried, fatal at startup.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingTimeout signals an embedding call that ran past its deadline.
	ErrEmbeddingTimeout = errors.New("embedding timeout")

	// ErrChatUnavailable signals a chat completion provider failure.
	ErrChatUnavailable = errors.New("chat provider unavailable")
)
