package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrObjectNotFound          = NewError(ErrCodeNotFound, "object not found")
	ErrUnknownType             = NewError(ErrCodeNotFound, "unknown type tag")
	ErrConflictingRegistration = NewError(ErrCodeConflict, "type tag already registered")
	ErrInvalidRecord           = NewError(ErrCodeInvalid, "invalid record")
	ErrForbidden               = NewError(ErrCodeForbidden, "forbidden")
	ErrUnauthorized            = NewError(ErrCodeUnauthorized, "unauthorized")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// ObjectNotFound describes a miss for a specific object. It matches ErrObjectNotFound via errors.Is.
func ObjectNotFound(typeTag, id string) error {
	if typeTag == "" {
		return WrapError(ErrCodeNotFound, fmt.Sprintf("object %q", id), ErrObjectNotFound)
	}
	return WrapError(ErrCodeNotFound, fmt.Sprintf("%s %q", typeTag, id), ErrObjectNotFound)
}
