// Package errors provides structured error types for tabpile.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound        = errors.New("not found")
	ErrNotReady        = errors.New("archive destination not resolved")
	ErrSweepInProgress = errors.New("sweep already in progress")
	ErrInvalidInput    = errors.New("invalid input")
	ErrExempt          = errors.New("tab is exempt from archiving")
)

// Collaborator names used in CollaboratorError.
const (
	Host       = "host"
	Storage    = "storage"
	Bookmarks  = "bookmarks"
	Timer      = "timer"
	Affordance = "affordance"
)

// CollaboratorError wraps a failure returned by one of the external
// collaborators (tab host, storage, bookmark store, timer, affordance).
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Wrap returns nil if err is nil, otherwise a CollaboratorError.
func Wrap(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}

// IsCollaborator reports whether err came from the named collaborator.
// An empty name matches any collaborator.
func IsCollaborator(err error, collaborator string) bool {
	var ce *CollaboratorError
	if !errors.As(err, &ce) {
		return false
	}
	return collaborator == "" || ce.Collaborator == collaborator
}
