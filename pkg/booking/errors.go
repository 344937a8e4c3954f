package booking

import (
	"fmt"
	"strings"
)

// ValidationError lists every missing or malformed request field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// ElementNotFoundError means an expected form control was not on the page.
type ElementNotFoundError struct {
	Control string
}

func (e *ElementNotFoundError) Error() string {
	return e.Control + " not found"
}

// NoCandidateError means nothing on the page could serve a required choice.
type NoCandidateError struct {
	What string
}

func (e *NoCandidateError) Error() string {
	return "no " + e.What + " found"
}

// TransportError wraps a failure reported by the browser driver.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StepError names the pipeline step that aborted a run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
