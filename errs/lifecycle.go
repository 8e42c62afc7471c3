package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Post lifecycle errors
var (
	// ErrSchemaMismatch marks a store error caused by an older schema
	// generation. The store adapter resolves it and it never reaches a caller.
	ErrSchemaMismatch     = errors.New("schema mismatch")
	ErrFeatureUnavailable = errors.New("feature unavailable")
	ErrPartialFailure     = errors.New("partial failure")
	ErrUnsupportedAction  = errors.New("unsupported action")
)

// MigrationHint is appended to every FeatureUnavailable response.
const MigrationHint = "Run DB migration first."

func NewSchemaMismatchError(operation string, cause error) error {
	return fmt.Errorf("%s: %w: %w", operation, ErrSchemaMismatch, cause)
}

// NewFeatureUnavailableError reports that the detected schema generation lacks
// the columns a transition needs.
func NewFeatureUnavailableError(feature string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        tagged(fmt.Sprintf("%s is not available", feature), ErrFeatureUnavailable),
		Details:    MigrationHint,
		Field:      "migration",
	}
}

func NewUnsupportedActionError(action string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        tagged("Unsupported action", ErrUnsupportedAction),
		Details:    action,
		Field:      "action",
	}
}

// NewPartialFailureError wraps a subordinate write failure whose primary
// write already succeeded.
func NewPartialFailureError(primary, secondary string, cause error) error {
	return fmt.Errorf("%s succeeded but %s failed: %w: %w", primary, secondary, ErrPartialFailure, cause)
}

func IsSchemaMismatch(err error) bool {
	return errors.Is(err, ErrSchemaMismatch)
}

func IsFeatureUnavailable(err error) bool {
	return errors.Is(err, ErrFeatureUnavailable)
}

func IsPartialFailure(err error) bool {
	return errors.Is(err, ErrPartialFailure)
}
