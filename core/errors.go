package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// AuthenticationError means no valid identity could be resolved from the request.
type AuthenticationError struct {
	Reason string // internal only, never sent to the client
}

func NewAuthenticationError(reason string) error {
	return &AuthenticationError{Reason: reason}
}

func (err AuthenticationError) Error() string {
	return "user not authenticated: " + err.Reason
}

// AuthorizationError means the identity was resolved but its role is not allowed on the route.
type AuthorizationError struct {
	Role string
}

func NewAuthorizationError(role string) error {
	return &AuthorizationError{Role: role}
}

func (err AuthorizationError) Error() string {
	return "permission denied for role " + err.Role
}

// NotFoundError covers both missing resources and resources owned by someone else.
type NotFoundError struct {
	Resource string
	ID       int
}

func NewNotFoundError(resource string, id int) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

func IsAuthenticationError(err error) bool {
	_, ok := errors.Cause(err).(*AuthenticationError)
	return ok
}

func IsAuthorizationError(err error) bool {
	_, ok := errors.Cause(err).(*AuthorizationError)
	return ok
}

func IsNotFoundError(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
