package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingQuery signals an empty or malformed RAG request.
	ErrMissingQuery = errors.New("missing query")
	// ErrNotConfigured signals that a credential or endpoint required by a code path is absent.
	ErrNotConfigured = errors.New("not configured")
	// ErrRetrievalFailed signals a vector search failure.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrStoreFailed signals a record store failure.
	ErrStoreFailed = errors.New("record store failed")
	// ErrCompletionFailed signals a language model failure.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrMissingQuery }

// ConfigurationError names the configuration key a code path could not find.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return e.Key + " missing"
}

func (e *ConfigurationError) Unwrap() error { return ErrNotConfigured }

// NewConfigurationError creates a configuration error for key.
func NewConfigurationError(key string) error {
	return &ConfigurationError{Key: key}
}
