package ports

import (
	"context"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// CompletionNotifier delivers the settlement of an asynchronous call to the
// calling side. It is invoked at most once per correlation token, possibly on
// a different goroutine than the one that began the call.
type CompletionNotifier interface {
	EndInvoke(ctx context.Context, completion entities.Completion)
}

// CompletionNotifierFunc adapts a function to CompletionNotifier.
type CompletionNotifierFunc func(ctx context.Context, completion entities.Completion)

// EndInvoke calls f.
func (f CompletionNotifierFunc) EndInvoke(ctx context.Context, completion entities.Completion) {
	f(ctx, completion)
}
