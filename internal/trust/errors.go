package trust

import (
	"errors"
	"net/http"
)

// Code is a machine-readable ledger error code.
type Code string

const (
	CodeAlreadyRegistered    Code = "ALREADY_REGISTERED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeGovernanceViolation  Code = "GOVERNANCE_VIOLATION"
	CodeInsufficientHeadroom Code = "INSUFFICIENT_HEADROOM"
	CodeNotEligible          Code = "NOT_ELIGIBLE"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeLedgerClosed         Code = "LEDGER_CLOSED"
)

// HTTPStatus maps a code to the status the HTTP adapter reports.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeAlreadyRegistered:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeGovernanceViolation:
		return http.StatusForbidden
	case CodeInsufficientHeadroom, CodeNotEligible:
		return http.StatusUnprocessableEntity
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeLedgerClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a ledger error with a machine-readable code.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable reason
	Metadata map[string]string // Offending values, for logs and API bodies
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, msg string, kv ...string) *Error {
	e := &Error{Code: code, Message: msg}
	if len(kv) > 0 {
		e.Metadata = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Metadata[kv[i]] = kv[i+1]
		}
	}
	return e
}

// Sentinels for errors.Is. Returned errors carry more specific messages.
var (
	ErrAlreadyRegistered    = &Error{Code: CodeAlreadyRegistered, Message: "user already registered"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "user not found"}
	ErrGovernanceViolation  = &Error{Code: CodeGovernanceViolation, Message: "governance violation"}
	ErrInsufficientHeadroom = &Error{Code: CodeInsufficientHeadroom, Message: "insufficient headroom"}
	ErrNotEligible          = &Error{Code: CodeNotEligible, Message: "not eligible"}
	ErrInvalidArgument      = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrClosed               = &Error{Code: CodeLedgerClosed, Message: "ledger is shut down"}
)

// CodeOf extracts the ledger code from err, or "" when err is not a ledger error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
