// Package gerrors provides a small contextual error type for
// infrastructure-layer faults (broker connectivity, sink I/O, config
// loading) — faults that sit outside the Outcome algebra because they
// happen before or around a pipeline run, not inside one. Modeled on
// hooks.HookDeniedError (named struct carrying the denying component and a
// reason, formatted by Error()) and providers.ParsePlatformHTTPError
// (component-qualified wrapping of a lower-level cause).
package gerrors

import "fmt"

// Error wraps a lower-level cause with the component and operation that
// were in progress when it occurred.
type Error struct {
	Component string
	Operation string
	Cause     error
}

// New constructs an Error.
func New(component, operation string, cause error) *Error {
	return &Error{Component: component, Operation: operation, Cause: cause}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Operation, e.Cause)
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}
