// Package apperr defines the error taxonomy shared by every business
// component. Components return *Error (or a plain wrapped error for truly
// unexpected conditions); only the MCP boundary converts these into the
// wire envelope.
package apperr

import "fmt"

// Code is one of the fixed taxonomy entries from the coordination bus
// error contract. New codes require updating recoverability below.
type Code string

const (
	InvalidArgument     Code = "INVALID_ARGUMENT"
	InvalidTimestamp    Code = "INVALID_TIMESTAMP"
	InvalidAgentName    Code = "INVALID_AGENT_NAME"
	InvalidThreadID     Code = "INVALID_THREAD_ID"
	InvalidTopic        Code = "INVALID_TOPIC"
	InvalidWindowUUID   Code = "INVALID_WINDOW_UUID"
	NotFound            Code = "NOT_FOUND"
	ConfigurationError  Code = "CONFIGURATION_ERROR"
	ContactBlocked      Code = "CONTACT_BLOCKED"
	ContactRequired     Code = "CONTACT_REQUIRED"
	RecipientNotFound   Code = "RECIPIENT_NOT_FOUND"
	FileReservationConf Code = "FILE_RESERVATION_CONFLICT"
	ReservationActive   Code = "RESERVATION_ACTIVE"
	ArchiveLockTimeout  Code = "ARCHIVE_LOCK_TIMEOUT"
	GitIndexLock        Code = "GIT_INDEX_LOCK"
	DatabasePoolExh     Code = "DATABASE_POOL_EXHAUSTED"
	DatabaseError       Code = "DATABASE_ERROR"
	Timeout             Code = "TIMEOUT"
	ResourceBusy        Code = "RESOURCE_BUSY"
	ConnectionError     Code = "CONNECTION_ERROR"
	ResourceExhausted   Code = "RESOURCE_EXHAUSTED"
	PermissionError     Code = "PERMISSION_ERROR"
	OSError             Code = "OS_ERROR"
	CapabilityDenied    Code = "CAPABILITY_DENIED"
	FeatureDisabled     Code = "FEATURE_DISABLED"
	UnhandledException  Code = "UNHANDLED_EXCEPTION"
)

// recoverable records, per the contract table, whether a code is one the
// caller can sensibly retry or correct and resubmit.
var recoverable = map[Code]bool{
	InvalidArgument:     true,
	InvalidTimestamp:    true,
	InvalidAgentName:    true,
	InvalidThreadID:     true,
	InvalidTopic:        true,
	InvalidWindowUUID:   true,
	NotFound:            true,
	ConfigurationError:  true,
	ContactBlocked:      true,
	ContactRequired:     true,
	RecipientNotFound:   true,
	FileReservationConf: true,
	ReservationActive:   true,
	ArchiveLockTimeout:  true,
	GitIndexLock:        true,
	DatabasePoolExh:     true,
	DatabaseError:       true,
	Timeout:             true,
	ResourceBusy:        true,
	ConnectionError:     true,
	ResourceExhausted:   true,
	PermissionError:     false,
	OSError:             false,
	CapabilityDenied:    false,
	FeatureDisabled:     false,
	UnhandledException:  false,
}

// Error is the tagged-variant error type every business component returns.
// Data carries machine-readable remediation context (suggestion lists,
// conflict details, concrete follow-up tool calls) — never prose.
type Error struct {
	Code    Code
	Message string
	Data    any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Recoverable reports whether the caller can retry/correct and resubmit.
func (e *Error) Recoverable() bool { return recoverable[e.Code] }

// New creates a taxonomy error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a taxonomy error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a taxonomy code to an underlying error.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithData attaches machine-readable remediation data and returns e for chaining.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// As extracts an *Error from err, falling back to UNHANDLED_EXCEPTION
// wrapping the original error if it isn't already tagged.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if ok := errorsAs(err, &tagged); ok {
		return tagged
	}
	return &Error{Code: UnhandledException, Message: err.Error(), cause: err}
}

// errorsAs is a tiny local shim so this package doesn't need to import
// "errors" just for one call site used twice.
func errorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
