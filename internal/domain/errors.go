package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAttemptNotFound is returned when an attempt id is unknown to the store.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrQuestionNotFound indicates a referenced question is missing from the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions indicates an attempt exists with zero assigned questions.
	ErrNoQuestions = errors.New("no questions assigned to this attempt")
	// ErrAssignmentMismatch is returned when the allocator does not yield the configured count.
	ErrAssignmentMismatch = errors.New("question assignment mismatch")
	// ErrInsufficientQuestions is returned when the bank cannot fill an attempt.
	ErrInsufficientQuestions = errors.New("not enough questions in bank")
)

// ValidationError is a client-caused input error on a single field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IncompleteError is returned by Finish when not every assigned question has an answer.
type IncompleteError struct {
	Assigned  int `json:"total"`
	Answered  int `json:"answered"`
	Remaining int `json:"remaining"`
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("attempt not complete: %d of %d answered, %d remaining", e.Answered, e.Assigned, e.Remaining)
}

// StoreError wraps an infrastructure failure of a persistence operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// StoreFailure wraps err as a StoreError unless it is nil or already a domain error
// the caller should see unchanged.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAttemptNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
