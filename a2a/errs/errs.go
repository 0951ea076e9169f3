// Package errs defines the typed error taxonomy used across the A2A task
// manager. Errors carry a stable Name (for programmatic matching, the way
// goa-generated services attach a Name to service errors) alongside the
// numeric JSON-RPC code spec'd for the wire transport. Transports translate
// Name/Code to their own representation (JSON-RPC error object, HTTP status)
// without re-deriving the classification.
package errs

import "fmt"

// Name identifies an error kind independent of any particular transport.
type Name string

// Closed set of error names. Every Error constructed by this package uses one
// of these.
const (
	NameInvalidRequest             Name = "invalid_request"
	NameInvalidParams              Name = "invalid_params"
	NameMethodNotFound             Name = "method_not_found"
	NameTaskNotFound                Name = "task_not_found"
	NameTaskNotCancelable           Name = "task_not_cancelable"
	NamePushNotificationNotSupported Name = "push_notification_not_supported"
	NameUnsupportedOperation        Name = "unsupported_operation"
	NameContentTypeNotSupported     Name = "content_type_not_supported"
	NameInternal                    Name = "internal"
)

// JSON-RPC 2.0 / A2A error codes, per spec section 6.
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeTaskNotFound    = -32001
	CodeTaskNotCancelable = -32002
	CodePushNotificationNotSupported = -32003
	CodeUnsupportedOperation = -32004
	CodeContentTypeNotSupported = -32005
)

var codeByName = map[Name]int{
	NameInvalidRequest:               CodeInvalidRequest,
	NameInvalidParams:                CodeInvalidParams,
	NameMethodNotFound:                CodeMethodNotFound,
	NameTaskNotFound:                  CodeTaskNotFound,
	NameTaskNotCancelable:             CodeTaskNotCancelable,
	NamePushNotificationNotSupported:  CodePushNotificationNotSupported,
	NameUnsupportedOperation:          CodeUnsupportedOperation,
	NameContentTypeNotSupported:       CodeContentTypeNotSupported,
	NameInternal:                      CodeInternalError,
}

// Error is the single error type returned by every a2a/* package. It is
// deliberately flat (no subclassing per kind) so callers can match on Name
// with errors.As and transports can map Code without a type switch.
type Error struct {
	// Name is the stable, transport-independent error kind.
	Name Name
	// Code is the JSON-RPC numeric code associated with Name.
	Code int
	// Message is a short human-readable description safe to surface to callers.
	Message string
	// cause is the underlying error, if any. Only Internal errors retain one;
	// it is never serialized to the wire (see Wrap).
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error for the given name with the code looked up from the
// closed name table. Panics on an unknown name: this is a programmer error,
// not a runtime condition.
func New(name Name, format string, args ...any) *Error {
	code, ok := codeByName[name]
	if !ok {
		panic(fmt.Sprintf("errs: unknown error name %q", name))
	}
	return &Error{Name: name, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Internal error that retains cause for errors.Is/As while
// keeping Message generic, per the propagation policy in spec section 7:
// internal causes are logged, never leaked to the wire.
func Wrap(cause error, context string) *Error {
	return &Error{
		Name:    NameInternal,
		Code:    CodeInternalError,
		Message: context,
		cause:   cause,
	}
}

// TaskNotFound constructs the canonical "task not found" error for id.
func TaskNotFound(id string) *Error {
	return New(NameTaskNotFound, "task %q not found", id)
}

// TaskNotCancelable constructs the canonical "task not cancelable" error.
func TaskNotCancelable(id, state string) *Error {
	return New(NameTaskNotCancelable, "task %q is in terminal state %q and cannot be canceled", id, state)
}

// UnsupportedOperation constructs the canonical "unsupported operation" error
// for attempts to mutate a terminal task or otherwise violate the state
// machine.
func UnsupportedOperation(format string, args ...any) *Error {
	return New(NameUnsupportedOperation, format, args...)
}

// InvalidRequest constructs the canonical "invalid request" error used by the
// wire codec for malformed or undiscriminated payloads.
func InvalidRequest(format string, args ...any) *Error {
	return New(NameInvalidRequest, format, args...)
}

// InvalidParams constructs the canonical "invalid params" error.
func InvalidParams(format string, args ...any) *Error {
	return New(NameInvalidParams, format, args...)
}

// PushNotificationNotSupported constructs the canonical capability error for
// servers that advertise no push-notification support.
func PushNotificationNotSupported() *Error {
	return New(NamePushNotificationNotSupported, "push notifications are not supported by this agent")
}

// ContentTypeNotSupported constructs the canonical capability error for an
// unsupported message content type.
func ContentTypeNotSupported(mimeType string) *Error {
	return New(NameContentTypeNotSupported, "content type %q is not supported", mimeType)
}

// IsNotFound reports whether err is (or wraps) a TaskNotFound error.
func IsNotFound(err error) bool { return hasName(err, NameTaskNotFound) }

// IsUnsupportedOperation reports whether err is (or wraps) an
// UnsupportedOperation error.
func IsUnsupportedOperation(err error) bool { return hasName(err, NameUnsupportedOperation) }

func hasName(err error, name Name) bool {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Name == name
}
