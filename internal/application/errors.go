package application

import "errors"

var (
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrUnauthenticated is returned when no valid identity accompanies a request.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique resource would be duplicated.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrDuplicateBorrow is returned when the user already holds an active record for the book.
	ErrDuplicateBorrow = errors.New("application: book already borrowed")
	// ErrInvalidCredentials is returned when login fails password verification.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrTokenRevoked is returned when a presented token was invalidated by logout.
	ErrTokenRevoked = errors.New("application: token revoked")
	// ErrTokenExpired is returned when a presented token is past its expiry.
	ErrTokenExpired = errors.New("application: token expired")
)

// InvalidStateError reports a lifecycle transition that the record's current
// status does not allow.
type InvalidStateError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	if e == nil || e.Reason == "" {
		return "invalid state transition"
	}
	return e.Reason
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
