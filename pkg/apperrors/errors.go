package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedStatement is returned when the SQL text cannot be scanned or
	// classified: unterminated quote or comment, unrecognized statement shape.
	ErrMalformedStatement = errors.New("malformed statement")

	// ErrUnknownParameter is returned when a parameter marker reaches the binder
	// without a usable name.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrStatementInvalid is returned when the live database rejects the statement
	// during introspection. Use StatementInvalidError to read the diagnostic.
	ErrStatementInvalid = errors.New("statement invalid")

	// ErrProcedureNotFound is returned when a CALL or discovery request references
	// a procedure that is absent from the catalog.
	ErrProcedureNotFound = errors.New("procedure not found")
)

// StatementInvalidError carries the raw diagnostic reported by the database.
type StatementInvalidError struct {
	Diagnostic string
	Err        error
}

// NewStatementInvalid wraps a driver error into a StatementInvalidError.
func NewStatementInvalid(err error) *StatementInvalidError {
	diag := ""
	if err != nil {
		diag = err.Error()
	}
	return &StatementInvalidError{Diagnostic: diag, Err: err}
}

func (e *StatementInvalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrStatementInvalid, e.Diagnostic)
}

// Unwrap exposes both the sentinel and the driver error to errors.Is/As.
func (e *StatementInvalidError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStatementInvalid}
	}
	return []error{ErrStatementInvalid, e.Err}
}

// MalformedStatement builds an ErrMalformedStatement with positional detail.
func MalformedStatement(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedStatement, fmt.Sprintf(format, args...))
}

// ProcedureNotFound builds an ErrProcedureNotFound naming the procedure.
func ProcedureNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrProcedureNotFound, name)
}
