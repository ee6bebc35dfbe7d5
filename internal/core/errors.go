// Package core provides core types and interfaces for the offline question cache.
package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of cache error that occurred
type ErrorType string

const (
	// ErrorTypeOffline indicates an action that needs connectivity was attempted while offline
	ErrorTypeOffline ErrorType = "offline_error"
	// ErrorTypeFetch indicates the remote question source failed
	ErrorTypeFetch ErrorType = "fetch_error"
	// ErrorTypeCacheWrite indicates the local persistent write failed
	ErrorTypeCacheWrite ErrorType = "cache_write_error"
	// ErrorTypeStorageCorruption indicates malformed persisted data.
	// It never reaches callers of the store; it is logged and treated as absent.
	ErrorTypeStorageCorruption ErrorType = "storage_read_corruption"
	// ErrorTypeInvalidRequest indicates a client error such as an unknown subject
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
)

// ErrUnknownSubject is returned when a subject name is not part of the fixed subject set.
var ErrUnknownSubject = errors.New("unknown subject")

// CacheError is the error type for all offline cache failures
type CacheError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Subject Subject   `json:"subject,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *CacheError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Subject, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *CacheError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *CacheError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeOffline:
		return http.StatusServiceUnavailable
	case ErrorTypeFetch:
		return http.StatusBadGateway
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *CacheError) ToJSON() map[string]interface{} {
	body := map[string]interface{}{
		"type":    e.Type,
		"message": e.Message,
	}
	if e.Subject != "" {
		body["subject"] = e.Subject
	}
	return map[string]interface{}{"error": body}
}

// NewOfflineError creates an error for an action attempted without connectivity
func NewOfflineError(subject Subject) *CacheError {
	return &CacheError{
		Type:    ErrorTypeOffline,
		Message: "you are offline; connect to the internet to download questions",
		Subject: subject,
	}
}

// NewFetchError creates an error for a failed remote fetch
func NewFetchError(subject Subject, err error) *CacheError {
	return &CacheError{
		Type:    ErrorTypeFetch,
		Message: fmt.Sprintf("failed to download %s questions", subject),
		Subject: subject,
		Err:     err,
	}
}

// NewCacheWriteError creates an error for a failed local write
func NewCacheWriteError(subject Subject, err error) *CacheError {
	return &CacheError{
		Type:    ErrorTypeCacheWrite,
		Message: fmt.Sprintf("failed to save %s questions for offline use", subject),
		Subject: subject,
		Err:     err,
	}
}

// NewStorageCorruptionError creates an error describing unreadable persisted data
func NewStorageCorruptionError(subject Subject, err error) *CacheError {
	return &CacheError{
		Type:    ErrorTypeStorageCorruption,
		Message: "cached data is unreadable",
		Subject: subject,
		Err:     err,
	}
}

// NewInvalidRequestError creates a client error
func NewInvalidRequestError(message string, err error) *CacheError {
	return &CacheError{
		Type:    ErrorTypeInvalidRequest,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err is a *CacheError of the given type.
func IsType(err error, t ErrorType) bool {
	var cacheErr *CacheError
	return errors.As(err, &cacheErr) && cacheErr.Type == t
}
