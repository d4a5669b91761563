package dispatch

import (
	"context"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// CallContext wraps a standard context.Context with call-specific helpers.
// It exposes the call target to middleware and lets middleware store
// request-scoped values without polluting the standard context.
type CallContext interface {
	context.Context

	// Identifier returns the identifier of the entry being invoked.
	Identifier() string

	// Component returns the component name for static calls, or "".
	Component() string

	// Handle returns the target handle for instance calls, or zero.
	Handle() entities.Handle

	// SetValue stores a request-scoped value. Unlike context.WithValue,
	// this mutates the existing CallContext.
	SetValue(key, value any)

	// GetValue retrieves a request-scoped value set by SetValue.
	GetValue(key any) (value any, ok bool)
}

type callContext struct {
	context.Context
	values map[any]any
	call   Call
}

// NewCallContext creates a CallContext for call wrapping ctx.
func NewCallContext(ctx context.Context, call Call) CallContext {
	return &callContext{
		Context: ctx,
		call:    call,
		values:  make(map[any]any),
	}
}

func (c *callContext) Identifier() string      { return c.call.Identifier }
func (c *callContext) Component() string       { return c.call.Component }
func (c *callContext) Handle() entities.Handle { return c.call.Handle }

func (c *callContext) SetValue(key, value any) {
	c.values[key] = value
}

func (c *callContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// CallContextFrom extracts a CallContext from ctx.
func CallContextFrom(ctx context.Context) (CallContext, bool) {
	cc, ok := ctx.(CallContext)
	return cc, ok
}
