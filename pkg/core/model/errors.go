package model

import "fmt"

// NetworkError is returned when the forms provider could not be reached or answered with a failure
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error: %s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError is returned when a payload does not match any accepted shape.
// Raw holds the offending payload for diagnosis.
type DecodeError struct {
	Msg string
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("decode error: %s", e.Msg)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PersistenceError is returned when writing a single submission to the store failed
type PersistenceError struct {
	SubmissionID string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist submission %s: %v", e.SubmissionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError is returned when an operation names a submission that is not loaded
type NotFoundError struct {
	SubmissionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("submission %s not found", e.SubmissionID)
}
