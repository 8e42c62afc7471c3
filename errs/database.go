package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrDatabaseQuery      = errors.New("database query failed")
	ErrDatabaseConnection = errors.New("database connection failed")
)

// Database & Storage Specific Errors
var (
	ErrUniqueConstraintViolation = errors.New("unique constraint violation")
	ErrForeignKeyConstraint      = errors.New("foreign key constraint violation")
	ErrMigrationMismatch         = errors.New("migration mismatch")
)

// StoreCondition is what a store error means to the lifecycle code.
type StoreCondition int

const (
	ConditionUnexpected StoreCondition = iota
	ConditionNoRows
	ConditionMissingColumn
	ConditionMissingTable
	ConditionUniqueViolation
	ConditionForeignKeyViolation
	ConditionInvalidTextRepresentation
	ConditionConnection
)

// Postgres SQLSTATE codes the store reacts to.
const (
	codeUndefinedColumn           = "42703"
	codeUndefinedTable            = "42P01"
	codeUniqueViolation           = "23505"
	codeForeignKeyViolation       = "23503"
	codeInvalidTextRepresentation = "22P02"
)

func (c StoreCondition) String() string {
	switch c {
	case ConditionNoRows:
		return "no_rows"
	case ConditionMissingColumn:
		return "missing_column"
	case ConditionMissingTable:
		return "missing_table"
	case ConditionUniqueViolation:
		return "unique_violation"
	case ConditionForeignKeyViolation:
		return "foreign_key_violation"
	case ConditionInvalidTextRepresentation:
		return "invalid_text_representation"
	case ConditionConnection:
		return "connection"
	default:
		return "unexpected"
	}
}

// IsSchema reports whether the condition means the schema is older than the
// code expected.
func (c StoreCondition) IsSchema() bool {
	return c == ConditionMissingColumn || c == ConditionMissingTable
}

// ClassifyStoreError maps an error from gorm or pgx onto a StoreCondition.
// The decision depends only on error identity and SQLSTATE code.
func ClassifyStoreError(err error) StoreCondition {
	if err == nil {
		return ConditionUnexpected
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ConditionNoRows
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ConditionUniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ConditionForeignKeyViolation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedColumn:
			return ConditionMissingColumn
		case codeUndefinedTable:
			return ConditionMissingTable
		case codeUniqueViolation:
			return ConditionUniqueViolation
		case codeForeignKeyViolation:
			return ConditionForeignKeyViolation
		case codeInvalidTextRepresentation:
			return ConditionInvalidTextRepresentation
		}
		return ConditionUnexpected
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ConditionConnection
	}
	return ConditionUnexpected
}

// StoreErrorCode returns the SQLSTATE of a Postgres error, or "" otherwise.
func StoreErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func NewNotFound(entity string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusNotFound,
		err:        fmt.Errorf("%s %w", entity, ErrNotFound),
	}
}

// NewDatabaseError creates a new database error with details about the operation
func NewDatabaseError(operation, entity string, cause error) *ApiErr {
	details := fmt.Sprintf("Failed to %s %s", operation, entity)

	switch ClassifyStoreError(cause) {
	case ConditionNoRows:
		return &ApiErr{
			StatusCode: http.StatusNotFound,
			err:        fmt.Errorf("%s %w", entity, ErrNotFound),
			Details:    details,
			Cause:      cause,
		}
	case ConditionUniqueViolation:
		return &ApiErr{
			StatusCode: http.StatusConflict,
			err:        fmt.Errorf("%s %w", entity, ErrAlreadyExists),
			Details:    details,
			Cause:      cause,
		}
	case ConditionForeignKeyViolation:
		return &ApiErr{
			StatusCode: http.StatusBadRequest,
			err:        ErrForeignKeyConstraint,
			Details:    "The referenced resource does not exist or cannot be linked",
			Cause:      cause,
		}
	case ConditionConnection:
		return &ApiErr{
			StatusCode: http.StatusServiceUnavailable,
			err:        ErrDatabaseConnection,
			Details:    "Unable to connect to database",
			Cause:      cause,
		}
	}

	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrDatabaseQuery,
		Details:    details,
		Cause:      cause,
	}
}

func NewUniqueConstraintViolationError(entity, field string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusConflict,
		err:        ErrUniqueConstraintViolation,
		Details:    fmt.Sprintf("Unique constraint violation on %s.%s", entity, field),
		Cause:      cause,
		Field:      field,
	}
}

func NewMigrationMismatchError(expected, actual string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrMigrationMismatch,
		Details:    fmt.Sprintf("Migration mismatch: expected %s, got %s", expected, actual),
		Field:      "migration",
	}
}

func IsUniqueConstraintViolationError(err error) bool {
	return errors.Is(err, ErrUniqueConstraintViolation)
}

func IsMigrationMismatchError(err error) bool {
	return errors.Is(err, ErrMigrationMismatch)
}
