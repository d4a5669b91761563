package wazero

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// DefaultCompletionExport is the guest export that receives completions.
const DefaultCompletionExport = "end_invoke"

// GuestNotifier is a ports.CompletionNotifier that delivers completions to a
// guest module by calling its end_invoke(i64) export with a packed pointer and
// length of a Completion JSON document.
//
// A wazero module must not run two calls at once. Completions arrive on
// background goroutines, so every delivery holds a lock; share it with
// WithCallLock when other code also calls into the guest.
type GuestNotifier struct {
	mod    api.Module
	lock   sync.Locker
	logger *slog.Logger
	export string
	mu     sync.RWMutex
}

// NotifierOption configures a GuestNotifier.
type NotifierOption func(*GuestNotifier)

// WithCallLock sets the lock held while calling into the guest.
func WithCallLock(l sync.Locker) NotifierOption {
	return func(n *GuestNotifier) {
		n.lock = l
	}
}

// WithCompletionExport overrides the guest export name.
func WithCompletionExport(name string) NotifierOption {
	return func(n *GuestNotifier) {
		n.export = name
	}
}

// WithNotifierLogger sets the notifier logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *GuestNotifier) {
		n.logger = logger
	}
}

// NewGuestNotifier creates an unbound notifier. Completions that arrive before
// Bind are dropped and logged.
func NewGuestNotifier(opts ...NotifierOption) *GuestNotifier {
	n := &GuestNotifier{export: DefaultCompletionExport}
	for _, opt := range opts {
		opt(n)
	}
	if n.lock == nil {
		n.lock = &sync.Mutex{}
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// Bind sets the guest module that receives completions.
func (n *GuestNotifier) Bind(mod api.Module) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mod = mod
}

// EndInvoke implements ports.CompletionNotifier.
func (n *GuestNotifier) EndInvoke(ctx context.Context, completion entities.Completion) {
	n.mu.RLock()
	mod := n.mod
	n.mu.RUnlock()

	if mod == nil || mod.IsClosed() {
		n.logger.ErrorContext(ctx, "wazero: completion dropped, no guest module bound", "token", completion.Token)
		return
	}

	data, err := json.Marshal(completion)
	if err != nil {
		n.logger.ErrorContext(ctx, "wazero: failed to encode completion", "token", completion.Token, "error", err)
		return
	}

	n.lock.Lock()
	defer n.lock.Unlock()

	fn := mod.ExportedFunction(n.export)
	if fn == nil {
		n.logger.ErrorContext(ctx, "wazero: guest module missing completion export", "export", n.export)
		return
	}
	packed := writeResponse(ctx, n.logger, mod, data)
	if packed == 0 {
		return
	}
	if _, err := fn.Call(ctx, packed); err != nil {
		n.logger.ErrorContext(ctx, "wazero: guest completion handler failed",
			"module", callerName(ctx, mod), "token", completion.Token, "error", err)
	}
}
