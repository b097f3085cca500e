package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Error is an execution failure reported at the query boundary.
//
// Message is the complete user-facing text; Code categorizes the failure
// for callers that need to branch on it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is the human-readable description returned by Error().
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// ErrCodeConnectionFailed indicates TCP, handshake or login failure.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"

	// ErrCodeNotConnected indicates no session is attached.
	ErrCodeNotConnected ErrorCode = "NOT_CONNECTED"

	// ErrCodeSessionBusy indicates the caller gave up waiting for the session.
	ErrCodeSessionBusy ErrorCode = "SESSION_BUSY"

	// ErrCodeQueryFailed indicates the server or driver rejected the query.
	ErrCodeQueryFailed ErrorCode = "QUERY_FAILED"

	// ErrCodeUnsupportedColumnType indicates the result contained a column
	// type the client cannot decode.
	ErrCodeUnsupportedColumnType ErrorCode = "UNSUPPORTED_COLUMN_TYPE"

	// ErrCodeModeToggleFailed indicates a plan-capture SET option could not
	// be switched on or off.
	ErrCodeModeToggleFailed ErrorCode = "MODE_TOGGLE_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotConnected is returned by Execute when no session is attached.
var ErrNotConnected = &Error{Code: ErrCodeNotConnected, Message: "Not connected to database"}

// CodeOf returns the code of the first *Error in err's chain, or "".
// Uses errors.As to handle wrapped and joined errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsModeToggleError reports whether any error in err's tree is a failed
// plan-mode toggle.
func IsModeToggleError(err error) bool {
	return hasCode(err, ErrCodeModeToggleFailed)
}

// IsUnsupportedColumnTypeError reports whether err carries the
// unsupported column type remediation.
func IsUnsupportedColumnTypeError(err error) bool {
	return hasCode(err, ErrCodeUnsupportedColumnType)
}

func hasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Code == code {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if hasCode(inner, code) {
				return true
			}
		}
	}
	return false
}

// NewConnectionError wraps a failure to open a session.
func NewConnectionError(err error) *Error {
	return &Error{Code: ErrCodeConnectionFailed, Message: err.Error(), Err: err}
}

func newToggleError(action, option string, err error) *Error {
	return &Error{
		Code:    ErrCodeModeToggleFailed,
		Message: fmt.Sprintf("Failed to %s %s: %v", action, option, err),
		Err:     err,
	}
}

// unsupportedTypeMarker is the driver error text that triggers remediation.
const unsupportedTypeMarker = "column type"

// newQueryError classifies a failed query. Failures caused by an
// undecodable column type get mode-specific remediation text.
func newQueryError(mode PlanMode, err error) *Error {
	msg := err.Error()
	if strings.Contains(msg, unsupportedTypeMarker) {
		return &Error{Code: ErrCodeUnsupportedColumnType, Message: remediation(mode, msg), Err: err}
	}
	return &Error{Code: ErrCodeQueryFailed, Message: "Query failed: " + msg, Err: err}
}

func remediation(mode PlanMode, cause string) string {
	var b strings.Builder
	if mode == PlanNone {
		b.WriteString("Query contains unsupported column types that are not supported by the database client.\n")
	} else {
		b.WriteString("Query contains unsupported column types that cannot be used with execution plans.\n")
	}
	b.WriteString("Unsupported types include: date, geometry, geography, hierarchyid, and certain CLR types.\n")
	b.WriteString("\nWorkarounds:\n")
	b.WriteString("• Cast date columns to datetime: SELECT CAST(ExpiresOn AS datetime) AS ExpiresOn\n")
	b.WriteString("• Exclude these columns from your SELECT statement\n")
	if mode != PlanNone {
		b.WriteString("• Use 'No Plan' mode (though unsupported types will still cause errors)\n")
	}
	b.WriteString("\nOriginal error: ")
	b.WriteString(cause)
	return b.String()
}
