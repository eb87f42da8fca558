package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateName is returned when a machine name is already registered.
var ErrDuplicateName = errors.New("duplicate machine name")

// ErrPersistenceIO is returned when a definition file or stream cannot be opened.
var ErrPersistenceIO = errors.New("persistence i/o failure")

// ErrDefinitionNotFound is returned when a definition store has no entry for a name.
var ErrDefinitionNotFound = errors.New("definition not found")

// ErrUnknownState is returned when a definition references a state it does not declare.
var ErrUnknownState = errors.New("unknown state")

// DuplicateNameError reports the offending name. It unwraps to ErrDuplicateName.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateName, e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// PersistenceIOError reports the path (or stream label) that could not be used.
// It unwraps to both ErrPersistenceIO and the underlying cause.
type PersistenceIOError struct {
	Path string
	Err  error
}

func (e *PersistenceIOError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistenceIO, e.Path, e.Err)
}

func (e *PersistenceIOError) Unwrap() []error { return []error{ErrPersistenceIO, e.Err} }

// AggregateError collects multiple definition validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
