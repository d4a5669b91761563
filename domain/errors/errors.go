// Package errors provides the dispatcher's error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// ErrNotFound matches every "no such entry point" failure, including entries
// excluded by discovery policy.
var ErrNotFound = stdErrors.New("entry point not found")

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail. New error types only need to implement this
// interface without modifying ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// NotFoundError reports that a capability type or component has no entry point
// with the requested identifier.
type NotFoundError struct {
	Owner      string
	Identifier string
	Static     bool
}

func (e *NotFoundError) Error() string {
	if e.Static {
		return fmt.Sprintf("component %q does not contain a type with a static entry point %q", e.Owner, e.Identifier)
	}
	return fmt.Sprintf("capability %q does not contain a public entry point %q", e.Owner, e.Identifier)
}

// Is makes errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ToErrorDetail implements DetailedError.
func (e *NotFoundError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "not_found", Code: e.Identifier, IsNotFound: true}
}

// UnsuitableError reports an entry that exists but is excluded from lookup by
// discovery policy. Callers treat it exactly like NotFoundError.
type UnsuitableError struct {
	Owner      string
	Identifier string
	Reason     string
}

func (e *UnsuitableError) Error() string {
	return fmt.Sprintf("entry point %q of %q cannot be invoked: %s", e.Identifier, e.Owner, e.Reason)
}

// Is makes errors.Is(err, ErrNotFound) succeed.
func (e *UnsuitableError) Is(target error) bool {
	return target == ErrNotFound
}

// ToErrorDetail implements DetailedError.
func (e *UnsuitableError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "unsuitable", Code: e.Identifier, IsNotFound: true}
}

// SelectorError reports an invalid call target: both or neither of component
// and handle were given, or the identifier was empty.
type SelectorError struct {
	Component string
	Reason    string
	Handle    entities.Handle
}

func (e *SelectorError) Error() string {
	return "ambiguous selector: " + e.Reason
}

// ToErrorDetail implements DetailedError.
func (e *SelectorError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "ambiguous_selector", Code: e.Component}
}

// ArityMismatchError reports a wrong number of supplied arguments.
type ArityMismatchError struct {
	Identifier string
	Expected   int
	Actual     int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("in call to %q, expected %d parameters but received %d", e.Identifier, e.Expected, e.Actual)
}

// ToErrorDetail implements DetailedError.
func (e *ArityMismatchError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("arity_mismatch", e.Error()).
		WithCode(e.Identifier).
		WithDetails(map[string]any{"expected": e.Expected, "actual": e.Actual})
}

// CoercionError reports that an argument could not be converted to its declared
// parameter type. Index is -1 when the argument list itself is malformed.
type CoercionError struct {
	Err        error
	Identifier string
	Target     string
	Index      int
}

func (e *CoercionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("in call to %q, invalid argument list: %v", e.Identifier, e.Err)
	}
	return fmt.Sprintf("in call to %q, cannot convert argument %d to %s: %v", e.Identifier, e.Index, e.Target, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *CoercionError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("coercion", e.Error()).
		WithCode(e.Identifier).
		WithDetails(map[string]any{"index": e.Index, "target": e.Target})
}

// HandleExpiredError reports a handle that was released or never minted.
type HandleExpiredError struct {
	Handle entities.Handle
}

func (e *HandleExpiredError) Error() string {
	return fmt.Sprintf("there is no tracked object with handle %d", uint64(e.Handle))
}

// ToErrorDetail implements DetailedError.
func (e *HandleExpiredError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "handle_expired", Code: e.Handle.String()}
}

// InvocationError carries the innermost failure raised by invoked code.
type InvocationError struct {
	Err        error
	Identifier string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Identifier, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *InvocationError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{Message: e.Err.Error(), Type: "invocation", Code: e.Identifier}
	var pe *PanicError
	if stdErrors.As(e.Err, &pe) {
		detail.Type = "panic"
		detail.Stack = pe.Stack
	}
	return detail
}

// ConfigurationError reports a fatal discovery failure: duplicate identifiers,
// generic declarations, or malformed entry points. It is surfaced on first use
// and never retried.
type ConfigurationError struct {
	Owner      string
	Identifier string
	Reason     string
	Entries    []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration of %q: %s", e.Owner, e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *ConfigurationError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{Message: e.Error(), Type: "configuration", Code: e.Identifier}
	if len(e.Entries) > 0 {
		detail.Details = map[string]any{"entries": e.Entries}
	}
	return detail
}

// ComponentNotLoadedError reports a static lookup against a component that has
// not been loaded into the registry.
type ComponentNotLoadedError struct {
	Component string
}

func (e *ComponentNotLoadedError) Error() string {
	return fmt.Sprintf("component not loaded: there is no loaded component with the name %q", e.Component)
}

// ToErrorDetail implements DetailedError.
func (e *ComponentNotLoadedError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "component_not_loaded", Code: e.Component}
}

// TargetInvocationError is the wrapper the call layer puts around whatever the
// invoked code raised. Flatten strips it before the error reaches a caller.
type TargetInvocationError struct {
	Err error
}

func (e *TargetInvocationError) Error() string {
	return fmt.Sprintf("target of invocation failed: %v", e.Err)
}

func (e *TargetInvocationError) Unwrap() error {
	return e.Err
}

// PanicError is produced when invoked code panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	switch v := e.Value.(type) {
	case error:
		return "panic: " + v.Error()
	case string:
		return "panic: " + v
	default:
		return fmt.Sprintf("panic: %v", v)
	}
}

// RemoteError is the failure reported by the calling side for a call the host
// made to it.
type RemoteError struct {
	Message string
	CallID  int64
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote call %d failed: %s", e.CallID, e.Message)
}

// ToErrorDetail implements DetailedError.
func (e *RemoteError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "remote"}
}

// Flatten strips invocation wrapper layers until a non-wrapper error remains.
// Wrappers are TargetInvocationError and joined errors holding exactly one error.
// Errors that add context with %w are not wrappers and are kept.
func Flatten(err error) error {
	for err != nil {
		switch w := err.(type) {
		case *TargetInvocationError:
			if w.Err == nil {
				return err
			}
			err = w.Err
		case interface{ Unwrap() []error }:
			inner := w.Unwrap()
			if len(inner) != 1 || inner[0] == nil {
				return err
			}
			err = inner[0]
		default:
			return err
		}
	}
	return err
}
