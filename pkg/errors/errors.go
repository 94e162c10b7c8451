package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

var (
	ErrNotFound   = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal   = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)

	// ErrUnavailable marks a storage or cache backend that cannot be reached.
	ErrUnavailable = NewError("UNAVAILABLE", "backend unavailable", http.StatusServiceUnavailable)

	// ErrLifecycle marks a message lifecycle event observed out of order.
	ErrLifecycle = NewError("LIFECYCLE_ERROR", "message lifecycle violated", http.StatusInternalServerError)
	// ErrUsage marks a query that is meaningless for its inputs.
	ErrUsage = NewError("USAGE_ERROR", "invalid usage", http.StatusBadRequest)
	// ErrInvalidArgument is returned by lookups that require the named item to exist.
	ErrInvalidArgument = NewError("INVALID_ARGUMENT", "invalid argument", http.StatusNotFound)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches an *Error with the same code. When the target carries a
// message detail, the messages must match too, so derived sentinels such as
// ErrLifecycle.WithMessage("...") stay distinguishable from each other.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok || e.Code != other.Code {
		return false
	}
	want, ok := other.Details["message"]
	if !ok {
		return true
	}
	return e.Details["message"] == want
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return !e.isFatalCode()
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}

	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}

	return e.isFatalCode()
}

func (e *Error) isFatalCode() bool {
	switch e.Code {
	case ErrValidation.Code, ErrNotFound.Code, ErrLifecycle.Code, ErrUsage.Code, ErrInvalidArgument.Code:
		return true
	}
	return false
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

// WithMessage is shorthand for WithDetail("message", ...), which replaces the
// default message in Error().
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return e.WithDetail("message", fmt.Sprintf(format, args...))
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

func IsLifecycle(err error) bool {
	return hasCode(err, ErrLifecycle.Code)
}

func IsUnavailable(err error) bool {
	return hasCode(err, ErrUnavailable.Code)
}

func IsUsage(err error) bool {
	return hasCode(err, ErrUsage.Code)
}

func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrInvalidArgument.Code)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}

// FromPanic turns a value returned by recover into a fatal ErrInternal whose
// "stack" detail holds the panicking goroutine's stack. A nil value yields nil.
func FromPanic(r interface{}) error {
	if r == nil {
		return nil
	}
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}
	return ErrInternal.
		WithMessage("panic recovered").
		WithCause(cause).
		WithDetail("stack", string(debug.Stack())).
		AsFatal()
}
