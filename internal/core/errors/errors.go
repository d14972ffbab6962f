package errors

import (
	"errors"
	"fmt"
)

const (
	HttpInternalError      = "internal_error"
	HttpInvalidJsonError   = "invalid_json"
	HttpInvalidReading     = "invalid_reading"
	HttpDuplicateReading   = "duplicate_reading"
	HttpInvalidDocumentID  = "invalid_document_id"
	HttpDocumentNotFound   = "document_not_found"
	HttpCalibrationFailure = "calibration_failed"
)

// ErrorResponse is the error response body for control-surface errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// Sentinels for errors.Is matching across the typed errors below.
var (
	ErrValidation   = errors.New("validation failed")
	ErrSubscription = errors.New("subscription failed")
	ErrQuery        = errors.New("query failed")
	ErrWrite        = errors.New("write failed")
)

// ValidationError reports a required sensor channel that is missing or not numeric.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing field: %s", e.Field)
	}
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SubscriptionError is returned when a collection watch cannot be established
// or terminates with an error.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

func (e *SubscriptionError) Is(target error) bool { return target == ErrSubscription }

// QueryError wraps a failed read against a collection.
type QueryError struct {
	Collection string
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Collection, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// WriteError wraps a failed insert or update of a single document.
type WriteError struct {
	Collection string
	DocumentID string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s/%s: %v", e.Collection, e.DocumentID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }
