package goSession

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/internal/flows"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrAuthentication matches every *AuthenticationError.
	ErrAuthentication = errors.New("authentication failed")
	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("credential persistence failed")
	// ErrNoRefreshToken is returned by Refresh when no refresh token is on
	// record. The store is signed out before it is returned.
	ErrNoRefreshToken = errors.New("no refresh token on record")
	// ErrOperationInFlight is returned when another operation holds the store.
	ErrOperationInFlight = errors.New("session operation already in flight")
	// ErrBootstrapPending is returned by mutating operations before Bootstrap
	// has completed.
	ErrBootstrapPending = errors.New("session bootstrap pending")
	// ErrNotAuthenticated is returned by EnsureFresh without a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCorruptValue is what a CredentialPersistence wraps when a stored
	// entry exists but can never be decoded. The store treats such entries
	// as absent and discards them instead of failing.
	ErrCorruptValue = flows.ErrCorruptValue
	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("session store closed")
)

// ValidationError reports a local precondition failure. The identity service
// is never contacted when one is returned. Message is meant to be shown to the
// user verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AuthenticationError reports a rejected remote identity call. Message carries
// the service's own text when it provided one.
type AuthenticationError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// PersistenceError reports a failed credential commit after the remote call
// succeeded. The sign-in or sign-up partially succeeded and should be retried.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s (%s): %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
