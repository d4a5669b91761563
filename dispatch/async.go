package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
	"github.com/reglet-dev/reglet-interop/domain/ports"
	"github.com/reglet-dev/reglet-interop/future"
)

var nullPayload = json.RawMessage("null")

// UnobservedErrorHandler receives failures of asynchronous calls that were
// begun without a correlation token.
type UnobservedErrorHandler func(call Call, err error)

// AsyncBridge begins calls whose outcome is delivered later through a
// CompletionNotifier.
type AsyncBridge struct {
	dispatcher   *Dispatcher
	codec        ports.Codec
	notifier     ports.CompletionNotifier
	logger       *slog.Logger
	onUnobserved UnobservedErrorHandler
	inflight     sync.WaitGroup
}

// AsyncOption is a functional option for configuring an AsyncBridge.
type AsyncOption func(*AsyncBridge)

// WithUnobservedErrorHandler sets a hook for failures nobody awaits.
func WithUnobservedErrorHandler(fn UnobservedErrorHandler) AsyncOption {
	return func(b *AsyncBridge) {
		b.onUnobserved = fn
	}
}

// WithAsyncLogger sets the bridge logger.
func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(b *AsyncBridge) {
		b.logger = logger
	}
}

// NewAsyncBridge creates an AsyncBridge. codec encodes success payloads.
func NewAsyncBridge(d *Dispatcher, codec ports.Codec, notifier ports.CompletionNotifier, opts ...AsyncOption) *AsyncBridge {
	b := &AsyncBridge{
		dispatcher: d,
		codec:      codec,
		notifier:   notifier,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// BeginInvoke runs the synchronous phase of call on the caller's goroutine and
// returns without waiting for the outcome. When token is non-empty the
// notifier receives exactly one completion for it.
func (b *AsyncBridge) BeginInvoke(ctx context.Context, token string, call Call) {
	res, err := b.dispatcher.Invoke(ctx, call)
	f := toFuture(ctx, call, res, err)

	// The completion must be delivered even if the caller's context ends.
	bg := context.WithoutCancel(ctx)
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		value, err := f.Await(bg)
		b.complete(bg, token, call, value, err)
	}()
}

// Wait blocks until every begun call has been completed.
func (b *AsyncBridge) Wait() {
	b.inflight.Wait()
}

// toFuture unifies plain values, void results, failures and pending work.
func toFuture(ctx context.Context, call Call, res Result, err error) *future.Future[any] {
	switch {
	case err != nil:
		return future.Failed[any](err)
	case res.Void:
		return future.Resolved[any](nil)
	}

	pending, ok := res.Value.(future.Pending)
	if !ok {
		return future.Resolved(res.Value)
	}
	out := future.New[any]()
	future.FromPending(context.WithoutCancel(ctx), pending).Then(func(v any, err error) {
		if err != nil {
			err = &errors.InvocationError{Identifier: call.Identifier, Err: errors.Flatten(err)}
		}
		out.Settle(v, err)
	})
	return out
}

func (b *AsyncBridge) complete(ctx context.Context, token string, call Call, value any, err error) {
	if token == "" {
		if err != nil {
			b.logger.WarnContext(ctx, "unobserved asynchronous call failed",
				"identifier", call.Identifier,
				"component", call.Component,
				"error", err)
			if b.onUnobserved != nil {
				b.onUnobserved(call, err)
			}
		}
		return
	}

	if err == nil {
		payload, encErr := b.encode(value)
		if encErr == nil {
			b.notifier.EndInvoke(ctx, entities.Completion{Token: token, Success: true, Payload: payload})
			return
		}
		err = &errors.InvocationError{Identifier: call.Identifier, Err: encErr}
	}

	detail := errors.ToErrorDetail(errors.Flatten(err))
	b.notifier.EndInvoke(ctx, entities.Completion{Token: token, Success: false, Payload: detail.ToJSON()})
}

func (b *AsyncBridge) encode(value any) (json.RawMessage, error) {
	if value == nil {
		return nullPayload, nil
	}
	return b.codec.Encode(value)
}
