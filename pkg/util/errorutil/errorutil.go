package errorutil

import (
	"errors"
	"fmt"
)

// Kind classifies a DomainError independently of any transport.
type Kind string

const (
	KindValidation   Kind = "VALIDATION_FAILED"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindPermission   Kind = "FORBIDDEN"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindRateLimited  Kind = "RATE_LIMITED"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(kind Kind, message string, details map[string]any) *DomainError {
	return &DomainError{Kind: kind, Message: message, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(KindValidation, message, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(KindUnauthorized, message, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(KindPermission, message, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(KindConflict, message, details)
}

func NewRateLimited(message string) error {
	return NewDomainError(KindRateLimited, message, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Kind:    KindInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Kind:    KindInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// KindOf reports the kind of err; foreign errors are INTERNAL_ERROR.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Kind
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Message
}
