package entities

import (
	"context"
	"fmt"
)

// InvokeFunc calls an entry point. target is the tracked instance for instance
// entries and nil for static ones; args are already converted to the declared
// parameter types.
type InvokeFunc func(ctx context.Context, target any, args []any) (any, error)

// EntryDescriptor is the immutable metadata for one invokable entry point.
// Descriptors are created by the registry and shared read-only with dispatchers.
type EntryDescriptor struct {
	invoke     InvokeFunc
	owner      string
	identifier string
	method     string
	params     []TypeDescriptor
	returns    TypeDescriptor
}

// NewEntryDescriptor builds a descriptor. The parameter slice is copied.
func NewEntryDescriptor(owner, identifier, method string, params []TypeDescriptor, returns TypeDescriptor, invoke InvokeFunc) *EntryDescriptor {
	p := make([]TypeDescriptor, len(params))
	copy(p, params)
	return &EntryDescriptor{
		invoke:     invoke,
		owner:      owner,
		identifier: identifier,
		method:     method,
		params:     p,
		returns:    returns,
	}
}

// Owner returns the capability type or component type that declares the entry.
func (e *EntryDescriptor) Owner() string { return e.owner }

// Identifier returns the identifier the entry is addressed by.
func (e *EntryDescriptor) Identifier() string { return e.identifier }

// Method returns the declared method or function name.
func (e *EntryDescriptor) Method() string { return e.method }

// Arity returns the number of declared parameters.
func (e *EntryDescriptor) Arity() int { return len(e.params) }

// ParameterType returns the declared type of parameter i.
func (e *EntryDescriptor) ParameterType(i int) TypeDescriptor { return e.params[i] }

// ParameterTypes returns a copy of the declared parameter types.
func (e *EntryDescriptor) ParameterTypes() []TypeDescriptor {
	p := make([]TypeDescriptor, len(e.params))
	copy(p, e.params)
	return p
}

// ReturnType returns the declared return type.
func (e *EntryDescriptor) ReturnType() TypeDescriptor { return e.returns }

// IsVoid reports whether the entry produces no value.
func (e *EntryDescriptor) IsVoid() bool { return e.returns.IsVoid() }

// Invoke calls the underlying entry point.
func (e *EntryDescriptor) Invoke(ctx context.Context, target any, args []any) (any, error) {
	return e.invoke(ctx, target, args)
}

// String returns "Owner.Method".
func (e *EntryDescriptor) String() string {
	return fmt.Sprintf("%s.%s", e.owner, e.method)
}
