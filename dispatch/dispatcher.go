package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
	"github.com/reglet-dev/reglet-interop/domain/ports"
)

// Call selects an entry point and carries its raw JSON arguments.
// Exactly one of Component and Handle must be set.
type Call struct {
	Component  string
	Identifier string
	Args       json.RawMessage
	Handle     entities.Handle
}

// Result is the outcome of a successful dispatch. Void is set for entries that
// produce no value and is distinct from a nil Value.
type Result struct {
	Value any
	Void  bool
}

// Dispatcher resolves calls to entry points and invokes them.
// It holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	resolver     ports.EntryResolver
	store        ports.ObjectStore
	coercer      *Coercer
	logger       *slog.Logger
	handler      Handler
	validator    ArgsValidator
	middlewares  []Middleware
	maxArgsBytes int
}

// ArgsValidator checks parsed arguments before they are coerced.
type ArgsValidator interface {
	Validate(entry *entities.EntryDescriptor, args []json.RawMessage) error
}

// Option is a functional option for configuring a Dispatcher.
type Option func(*Dispatcher)

// WithMiddleware adds middleware around every dispatch.
func WithMiddleware(mw ...Middleware) Option {
	return func(d *Dispatcher) {
		d.middlewares = append(d.middlewares, mw...)
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithArgsValidator runs v on every call's arguments before coercion.
func WithArgsValidator(v ArgsValidator) Option {
	return func(d *Dispatcher) {
		d.validator = v
	}
}

// WithMaxArgsBytes limits the size of a call's argument payload. Zero means unlimited.
func WithMaxArgsBytes(n int) Option {
	return func(d *Dispatcher) {
		d.maxArgsBytes = n
	}
}

// New creates a Dispatcher.
func New(resolver ports.EntryResolver, store ports.ObjectStore, codec ports.Codec, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver: resolver,
		store:    store,
		coercer:  NewCoercer(codec),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.handler = chain(d.dispatch, d.middlewares)
	return d
}

// Invoke runs a call to completion on the caller's goroutine.
//
// A value that implements future.Pending is returned as is; awaiting it is up
// to the caller.
func (d *Dispatcher) Invoke(ctx context.Context, call Call) (Result, error) {
	return d.handler(NewCallContext(ctx, call), call)
}

func (d *Dispatcher) dispatch(ctx context.Context, call Call) (Result, error) {
	if err := validateSelector(call); err != nil {
		return Result{}, err
	}

	entry, target, err := d.resolve(call)
	if err != nil {
		return Result{}, err
	}

	if d.maxArgsBytes > 0 && len(call.Args) > d.maxArgsBytes {
		return Result{}, &errors.CoercionError{
			Identifier: call.Identifier,
			Index:      -1,
			Err:        fmt.Errorf("payload of %d bytes exceeds limit of %d", len(call.Args), d.maxArgsBytes),
		}
	}
	raw, err := ParseArgs(call.Args)
	if err != nil {
		return Result{}, &errors.CoercionError{Identifier: call.Identifier, Index: -1, Err: err}
	}
	// Arity is checked ahead of the validator so a wrong argument count is
	// reported as such regardless of the arguments' content.
	if err := checkArity(entry, raw); err != nil {
		return Result{}, err
	}
	if d.validator != nil {
		if err := d.validator.Validate(entry, raw); err != nil {
			return Result{}, err
		}
	}
	args, err := d.coercer.Coerce(entry, raw)
	if err != nil {
		return Result{}, err
	}

	d.logger.DebugContext(ctx, "dispatch: invoking entry", "entry", entry.String(), "args", len(args))
	out, err := entry.Invoke(ctx, target, args)
	if err != nil {
		return Result{}, &errors.InvocationError{Identifier: call.Identifier, Err: errors.Flatten(err)}
	}
	if entry.IsVoid() {
		return Result{Void: true}, nil
	}
	return Result{Value: out}, nil
}

// resolve finds the entry and, for instance calls, the tracked target.
func (d *Dispatcher) resolve(call Call) (*entities.EntryDescriptor, any, error) {
	if call.Component != "" {
		entry, err := d.resolver.ResolveStatic(call.Component, call.Identifier)
		return entry, nil, err
	}

	target, err := d.store.Lookup(call.Handle)
	if err != nil {
		return nil, nil, err
	}
	entry, err := d.resolver.ResolveInstance(reflect.TypeOf(target), call.Identifier)
	if err != nil {
		return nil, nil, err
	}
	return entry, target, nil
}

func validateSelector(call Call) error {
	switch {
	case call.Identifier == "":
		return &errors.SelectorError{Component: call.Component, Handle: call.Handle, Reason: "identifier is required"}
	case call.Component != "" && !call.Handle.IsZero():
		return &errors.SelectorError{Component: call.Component, Handle: call.Handle, Reason: "a call cannot name both a component and an object handle"}
	case call.Component == "" && call.Handle.IsZero():
		return &errors.SelectorError{Reason: "a call must name either a component or an object handle"}
	}
	return nil
}
