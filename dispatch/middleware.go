package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/reglet-dev/reglet-interop/domain/errors"
)

// Handler performs one dispatch.
type Handler func(ctx context.Context, call Call) (Result, error)

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	timing := func(next dispatch.Handler) dispatch.Handler {
//	    return func(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
//	        start := time.Now()
//	        defer func() { observe(call.Identifier, time.Since(start)) }()
//	        return next(ctx, call)
//	    }
//	}
type Middleware func(next Handler) Handler

func chain(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RecoveryMiddleware converts a panic anywhere in the dispatch path into an
// InvocationError carrying a PanicError. Entry points themselves are already
// guarded; this covers codecs and other middleware.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (res Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					res = Result{}
					err = &errors.InvocationError{
						Identifier: call.Identifier,
						Err:        &errors.PanicError{Value: r, Stack: debug.Stack()},
					}
				}
			}()
			return next(ctx, call)
		}
	}
}

// LoggingMiddleware logs every dispatch at debug level and failures at warn.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (Result, error) {
			start := time.Now()
			res, err := next(ctx, call)
			attrs := []any{
				"identifier", call.Identifier,
				"component", call.Component,
				"handle", uint64(call.Handle),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.WarnContext(ctx, "dispatch failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "dispatch completed", attrs...)
			}
			return res, err
		}
	}
}
