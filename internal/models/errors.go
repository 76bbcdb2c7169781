package models

import "fmt"

// AuthError means a session could not be established. Fatal: aborts the run.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Msg)
}

// MalformedInputError names the offending spreadsheet row and column.
// The row is skipped; the run continues.
type MalformedInputError struct {
	Row    int
	Column string
	Msg    string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("row %d column %q: %s", e.Row, e.Column, e.Msg)
}

// SessionLostError means the browser or its session died mid-run.
// Fatal: aborts the run but preserves the partial summary.
type SessionLostError struct {
	Err error
}

func (e *SessionLostError) Error() string {
	return fmt.Sprintf("browser session lost: %v", e.Err)
}

func (e *SessionLostError) Unwrap() error { return e.Err }

// StepError is a typed per-action failure produced by the navigation state
// machine. It never propagates past the batch runner; the runner converts it
// into a Failed outcome.
type StepError struct {
	Kind  FailureKind
	State NavState // state the machine was in when the step failed
	Step  string
	Msg   string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s at %s (%s): %s", e.Kind, e.State, e.Step, e.Msg)
}
