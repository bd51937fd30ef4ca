// Package errors defines the failure taxonomy of the profile retrieval pipeline.
package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeTransport        ErrorType = "TRANSPORT"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypeUnauthorized     ErrorType = "UNAUTHORIZED"
	ErrTypeRateLimit        ErrorType = "RATE_LIMIT"
	ErrTypePollTimeout      ErrorType = "POLL_TIMEOUT"
	ErrTypeResolutionFailed ErrorType = "RESOLUTION_FAILED"
	ErrTypeInvalidInput     ErrorType = "INVALID_INPUT"
	ErrTypeInternal         ErrorType = "INTERNAL"
)

// DomainError carries the failure type and the stack where it was created.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		var stackErr *goerrors.Error
		if stderrors.As(err, &stackErr) {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

// IsType reports whether any error in the chain is a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	for err != nil {
		if !stderrors.As(err, &domainErr) {
			return false
		}
		if domainErr.Type == errType {
			return true
		}
		err = domainErr.Err
	}
	return false
}

// TypeOf returns the type of the outermost DomainError in the chain or an empty string.
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if stderrors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

func Transport(message string, err error) *DomainError {
	return New(ErrTypeTransport, message, err)
}

func NotFound(message string, err error) *DomainError {
	return New(ErrTypeNotFound, message, err)
}

func Unauthorized(message string, err error) *DomainError {
	return New(ErrTypeUnauthorized, message, err)
}

func RateLimit(message string, err error) *DomainError {
	return New(ErrTypeRateLimit, message, err)
}

func PollTimeout(message string, err error) *DomainError {
	return New(ErrTypePollTimeout, message, err)
}

func ResolutionFailed(message string, err error) *DomainError {
	return New(ErrTypeResolutionFailed, message, err)
}

func InvalidInput(message string, err error) *DomainError {
	return New(ErrTypeInvalidInput, message, err)
}

func Internal(message string, err error) *DomainError {
	return New(ErrTypeInternal, message, err)
}
