package errorx

import (
	"errors"
	"fmt"
)

// ErrorCode - machine readable identifier attached to every error raised by this module.
type ErrorCode string

const (
	CodeUnknownConnection      ErrorCode = "E_NO_MONGODB_CONNECTION"
	CodeDuplicateConnection    ErrorCode = "E_DUPLICATE_CONNECTION"
	CodeInvalidName            ErrorCode = "E_INVALID_CONNECTION_NAME"
	CodeConnectionUnavailable  ErrorCode = "E_MONGODB_CONNECTION"
	CodeDocumentNotFound       ErrorCode = "E_DOCUMENT_NOT_FOUND"
	CodeDocumentDeleted        ErrorCode = "E_DOCUMENT_DELETED"
	CodeAlreadyInTransaction   ErrorCode = "E_ALREADY_IN_TRANSACTION"
	CodeForbiddenOption        ErrorCode = "E_FORBIDDEN_OPTION"
	CodeMalformedMigrationName ErrorCode = "E_MALFORMED_MIGRATION_NAME"
	CodeDuplicateMigrationName ErrorCode = "E_DUPLICATE_MIGRATION_NAME"
	CodeMigrationLockHeld      ErrorCode = "E_MIGRATION_LOCK_HELD"
	CodeInvalidConfig          ErrorCode = "E_INVALID_CONFIG"
	CodeInvalidArgument        ErrorCode = "E_INVALID_ARGUMENT"
	CodeDatabase               ErrorCode = "E_DATABASE"
)

var errorMessages = map[ErrorCode]string{
	CodeUnknownConnection:      "unknown MongoDB connection",
	CodeDuplicateConnection:    "a connection with this name already exists",
	CodeInvalidName:            "connection name must be a non-empty string",
	CodeConnectionUnavailable:  "MongoDB connection is not available",
	CodeDocumentNotFound:       "document not found",
	CodeDocumentDeleted:        "this document was deleted and can no longer be used",
	CodeAlreadyInTransaction:   "document is already bound to a transaction",
	CodeForbiddenOption:        "option is forbidden here",
	CodeMalformedMigrationName: "invalid migration file name",
	CodeDuplicateMigrationName: "duplicate migration file name",
	CodeMigrationLockHeld:      "a migration is already running",
	CodeInvalidConfig:          "invalid MongoDB configuration",
	CodeInvalidArgument:        "invalid argument",
	CodeDatabase:               "database operation failed",
}

// Sentinels usable with errors.Is. Any *Error carrying the same code matches.
var (
	ErrUnknownConnection      = &Error{Code: CodeUnknownConnection}
	ErrDuplicateConnection    = &Error{Code: CodeDuplicateConnection}
	ErrInvalidName            = &Error{Code: CodeInvalidName}
	ErrConnectionUnavailable  = &Error{Code: CodeConnectionUnavailable}
	ErrDocumentNotFound       = &Error{Code: CodeDocumentNotFound}
	ErrDocumentDeleted        = &Error{Code: CodeDocumentDeleted}
	ErrAlreadyInTransaction   = &Error{Code: CodeAlreadyInTransaction}
	ErrForbiddenOption        = &Error{Code: CodeForbiddenOption}
	ErrMalformedMigrationName = &Error{Code: CodeMalformedMigrationName}
	ErrDuplicateMigrationName = &Error{Code: CodeDuplicateMigrationName}
	ErrMigrationLockHeld      = &Error{Code: CodeMigrationLockHeld}
	ErrInvalidConfig          = &Error{Code: CodeInvalidConfig}
	ErrInvalidArgument        = &Error{Code: CodeInvalidArgument}
)

// CODED ERROR:

// Error - module error carrying a code, a human readable message and an optional cause.
type Error struct {
	Code    ErrorCode
	message string
	err     error
}

// New - Error constructor. An empty msg falls back to the default message of the code.
func New(code ErrorCode, msg string, args ...any) *Error {
	if msg == "" {
		return &Error{Code: code, message: errorMessages[code]}
	}

	return &Error{Code: code, message: fmt.Sprintf(msg, args...)}
}

// Wrap - Error constructor for wrapper of another error.
func Wrap(err error, code ErrorCode, msg string, args ...any) *Error {
	e := New(code, msg, args...)
	e.err = err

	return e
}

// Error - return the error string.
func (e *Error) Error() string {
	msg := e.message
	if msg == "" {
		msg = errorMessages[e.Code]
	}

	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.err)
	}

	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Message - return the message without the code prefix.
func (e *Error) Message() string {
	if e.message == "" {
		return errorMessages[e.Code]
	}

	return e.message
}

// Unwrap - return the wrapped cause.
func (e *Error) Unwrap() error {
	return e.err
}

// Is - two coded errors match when they carry the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error found in the chain of err, or an empty code.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ""
}

// DATABASE ERROR

// DatabaseError - wraps failures reported by the MongoDB driver.
type DatabaseError struct {
	message string
	err     error
}

// NewDatabaseError - DatabaseError constructor.
func NewDatabaseError(msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewDatabaseErrorWrapper - DatabaseError constructor for wrapper of a driver error.
func NewDatabaseErrorWrapper(err error, msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (de *DatabaseError) Error() string {
	if de.err != nil {
		return fmt.Sprintf("%s: %v", de.message, de.err)
	}

	return de.message
}

// Unwrap - return the driver error.
func (de *DatabaseError) Unwrap() error {
	return de.err
}

// Is - every DatabaseError matches the CodeDatabase sentinel.
func (de *DatabaseError) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == CodeDatabase
	}

	return false
}
