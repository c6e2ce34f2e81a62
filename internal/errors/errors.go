package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/tally/internal/logger"
)

var (
	// ErrSchemaMigrationFailed means an upgrade step failed and the store must not be used.
	ErrSchemaMigrationFailed = errors.New("schema migration failed")
	// ErrSchemaTooNew means the stored data was written by a newer build.
	ErrSchemaTooNew = errors.New("schema version is newer than supported")
	// ErrFixedCategoryProtected is returned when deleting one of the reserved categories.
	ErrFixedCategoryProtected = errors.New("fixed category cannot be deleted")
	// ErrEntityNotFound is returned when a mutation targets a record that does not exist.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrValidation is returned before any write when input violates an entity invariant.
	ErrValidation = errors.New("validation failed")
	// ErrTransferFormatInvalid is returned when a snapshot is missing required fields.
	ErrTransferFormatInvalid = errors.New("invalid transfer format")
	// ErrSinkUnavailable marks a collaborator failure. It is logged, never returned from core paths.
	ErrSinkUnavailable = errors.New("sink unavailable")
)

// MigrationError describes the upgrade step that failed
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() []error {
	return []error{ErrSchemaMigrationFailed, e.Err}
}

// NotFoundError identifies the missing record
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrEntityNotFound
}

// NotFound builds a NotFoundError
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransferFormat wraps a snapshot problem with ErrTransferFormatInvalid
func TransferFormat(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTransferFormatInvalid, fmt.Sprintf(format, args...))
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSchemaMigrationFailed) || errors.Is(err, ErrSchemaTooNew) {
		return fmt.Sprintf("Error: cannot open your data: %v\nYour data has not been modified. Restore a backup or upgrade tally.", err)
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
