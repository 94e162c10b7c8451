package messenger

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// HandlerFailedError aggregates the errors raised by the handlers of one
// message. Each nested error carries a stack trace.
type HandlerFailedError struct {
	errs []error
}

func NewHandlerFailedError(errs ...error) *HandlerFailedError {
	nested := make([]error, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		nested = append(nested, WithStack(err))
	}
	return &HandlerFailedError{errs: nested}
}

func (e *HandlerFailedError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	if len(msgs) == 1 {
		return fmt.Sprintf("handling failed: %s", msgs[0])
	}
	return fmt.Sprintf("handling failed with %d errors: %s", len(msgs), strings.Join(msgs, "; "))
}

func (e *HandlerFailedError) Errors() []error {
	return append([]error(nil), e.errs...)
}

func (e *HandlerFailedError) Unwrap() []error {
	return e.errs
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// WithStack attaches the caller's stack to err unless it already has one.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(stackTracer); ok {
		return err
	}
	return pkgerrors.WithStack(err)
}

// Unstacked returns the error beneath any stack-only wrappers added by WithStack.
func Unstacked(err error) error {
	for err != nil {
		if _, ok := err.(stackTracer); !ok {
			return err
		}
		inner := errors.Unwrap(err)
		if inner == nil || inner.Error() != err.Error() {
			return err
		}
		err = inner
	}
	return err
}

// ErrorType names the concrete type of err, ignoring stack-only wrappers.
func ErrorType(err error) string {
	return fmt.Sprintf("%T", Unstacked(err))
}
