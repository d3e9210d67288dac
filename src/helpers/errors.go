package helpers

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type AnalyticsError struct {
	Message string
	Cause   error
}

func (e *AnalyticsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AnalyticsError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds for errors.As
type ConfigurationError struct{ AnalyticsError }
type NetworkError struct{ AnalyticsError }
type DataSourceError struct{ AnalyticsError }
type DatabaseError struct{ AnalyticsError }
type ValidationError struct{ AnalyticsError }
type FeedError struct{ AnalyticsError }

// -----------------------------------------------------------------------------

func NewNetworkError(msg string, cause error) error {
	return &NetworkError{AnalyticsError{Message: msg, Cause: cause}}
}

func NewDataSourceError(msg string, cause error) error {
	return &DataSourceError{AnalyticsError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{AnalyticsError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string) error {
	return &ValidationError{AnalyticsError{Message: msg}}
}

func NewFeedError(msg string, cause error) error {
	return &FeedError{AnalyticsError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")
