package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var callerNameKey = &contextKey{name: "caller_name"}

// WithCallerName adds a display name for the calling guest to the context.
// It takes precedence over the module name in logs.
func WithCallerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, callerNameKey, name)
}

// CallerNameFromContext retrieves the caller name from the context.
func CallerNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(callerNameKey).(string)
	return name, ok
}

// callerName extracts the caller name from context, falling back to the module name.
func callerName(ctx context.Context, mod api.Module) string {
	if name, ok := CallerNameFromContext(ctx); ok {
		return name
	}
	return mod.Name()
}
