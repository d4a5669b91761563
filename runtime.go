package interop

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"

	"github.com/reglet-dev/reglet-interop/application/schema"
	"github.com/reglet-dev/reglet-interop/application/validation"
	"github.com/reglet-dev/reglet-interop/dispatch"
	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
	"github.com/reglet-dev/reglet-interop/domain/ports"
	"github.com/reglet-dev/reglet-interop/future"
	"github.com/reglet-dev/reglet-interop/infrastructure/jsoncodec"
	"github.com/reglet-dev/reglet-interop/objectstore"
	"github.com/reglet-dev/reglet-interop/registry"
)

// Runtime is the boundary facade: it owns the registry, the object store and
// the dispatch pipeline. It is safe for concurrent use.
type Runtime struct {
	registry   *registry.Registry
	store      ports.ObjectStore
	codec      ports.Codec
	dispatcher *dispatch.Dispatcher
	bridge     *dispatch.AsyncBridge
	pending    *dispatch.PendingCalls
	logger     *slog.Logger
	cfg        Config
}

type options struct {
	store        ports.ObjectStore
	codec        ports.Codec
	notifier     ports.CompletionNotifier
	logger       *slog.Logger
	onUnobserved dispatch.UnobservedErrorHandler
	capabilities []*registry.Capability
	components   []*registry.Component
	middlewares  []dispatch.Middleware
	cfg          Config
}

// Option is a functional option for configuring a Runtime.
type Option func(*options)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithCapabilities declares instance capabilities.
func WithCapabilities(caps ...*registry.Capability) Option {
	return func(o *options) {
		o.capabilities = append(o.capabilities, caps...)
	}
}

// WithComponents loads components for static calls.
func WithComponents(components ...*registry.Component) Option {
	return func(o *options) {
		o.components = append(o.components, components...)
	}
}

// WithNotifier sets where asynchronous completions are delivered.
// Without one, completions are dropped.
func WithNotifier(n ports.CompletionNotifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithObjectStore replaces the default generation arena.
func WithObjectStore(store ports.ObjectStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCodec replaces the default JSON codec.
func WithCodec(codec ports.Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithMiddleware adds dispatch middleware.
func WithMiddleware(mw ...dispatch.Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

// WithLogger sets the logger for every component of the runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithUnobservedErrorHandler receives failures of calls begun without a token.
func WithUnobservedErrorHandler(fn dispatch.UnobservedErrorHandler) Option {
	return func(o *options) {
		o.onUnobserved = fn
	}
}

// New creates a Runtime.
func New(opts ...Option) (*Runtime, error) {
	o := &options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.store == nil {
		o.store = objectstore.NewArena()
	}
	if o.codec == nil {
		o.codec = jsoncodec.New(jsoncodec.WithObjectStore(o.store))
	}
	if o.notifier == nil {
		o.notifier = ports.CompletionNotifierFunc(func(ctx context.Context, c entities.Completion) {
			o.logger.WarnContext(ctx, "completion dropped, no notifier configured", "token", c.Token, "success", c.Success)
		})
	}

	rt := &Runtime{
		store:   o.store,
		codec:   o.codec,
		pending: dispatch.NewPendingCalls(),
		logger:  o.logger,
		cfg:     o.cfg,
	}

	reg, err := registry.New(
		registry.WithLogger(o.logger),
		registry.WithCapabilities(o.capabilities...),
		registry.WithComponents(append([]*registry.Component{rt.builtinComponent()}, o.components...)...),
	)
	if err != nil {
		return nil, err
	}
	rt.registry = reg

	middlewares := []dispatch.Middleware{dispatch.RecoveryMiddleware()}
	if o.cfg.LogDispatch {
		middlewares = append(middlewares, dispatch.LoggingMiddleware(o.logger))
	}
	middlewares = append(middlewares, o.middlewares...)

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(o.logger),
		dispatch.WithMaxArgsBytes(o.cfg.MaxArgsBytes),
		dispatch.WithMiddleware(middlewares...),
	}
	if o.cfg.ValidateArgs {
		dispatchOpts = append(dispatchOpts, dispatch.WithArgsValidator(validation.NewArgsValidator()))
	}
	rt.dispatcher = dispatch.New(reg, o.store, o.codec, dispatchOpts...)

	asyncOpts := []dispatch.AsyncOption{dispatch.WithAsyncLogger(o.logger)}
	if o.onUnobserved != nil {
		asyncOpts = append(asyncOpts, dispatch.WithUnobservedErrorHandler(o.onUnobserved))
	}
	rt.bridge = dispatch.NewAsyncBridge(rt.dispatcher, o.codec, o.notifier, asyncOpts...)

	return rt, nil
}

// Invoke calls an entry point and waits for its result. Exactly one of
// component and handle selects the target. The result is nil for entries that
// produce no value and JSON null for a nil value. A pending result is awaited
// on the caller's goroutine.
func (rt *Runtime) Invoke(ctx context.Context, component, identifier string, handle entities.Handle, args json.RawMessage) (json.RawMessage, error) {
	call := dispatch.Call{Component: component, Identifier: identifier, Handle: handle, Args: args}
	res, err := rt.dispatcher.Invoke(ctx, call)
	if err != nil {
		return nil, err
	}
	if res.Void {
		return nil, nil
	}

	value := res.Value
	if p, ok := value.(future.Pending); ok {
		value, err = p.Outcome(ctx)
		if err != nil {
			return nil, &errors.InvocationError{Identifier: identifier, Err: errors.Flatten(err)}
		}
	}
	if value == nil {
		return json.RawMessage("null"), nil
	}
	out, err := rt.codec.Encode(value)
	if err != nil {
		return nil, &errors.InvocationError{Identifier: identifier, Err: err}
	}
	return out, nil
}

// BeginInvoke starts a call and returns without waiting for it. When token is
// non-empty the notifier receives exactly one completion for it.
func (rt *Runtime) BeginInvoke(ctx context.Context, token, component, identifier string, handle entities.Handle, args json.RawMessage) {
	rt.bridge.BeginInvoke(ctx, token, dispatch.Call{Component: component, Identifier: identifier, Handle: handle, Args: args})
}

// ReleaseHandle stops tracking the object behind h.
func (rt *Runtime) ReleaseHandle(h entities.Handle) error {
	return rt.store.Release(h)
}

// Track starts tracking v and returns a reference the calling side can use as
// a call target or pass back as an argument.
func (rt *Runtime) Track(v any) entities.ObjectRef {
	return entities.ObjectRef{Handle: rt.store.Track(v)}
}

// BeginRemoteCall reserves an id for a call this side makes to the other side.
// The returned future settles when the other side calls the built-in
// Dispatcher.EndInvoke entry with that id.
func (rt *Runtime) BeginRemoteCall() (int64, *future.Future[entities.DeferredResult]) {
	return rt.pending.Begin()
}

// Wait blocks until every asynchronous call begun so far has been completed.
func (rt *Runtime) Wait() {
	rt.bridge.Wait()
}

// Registry returns the runtime's registry.
func (rt *Runtime) Registry() *registry.Registry {
	return rt.registry
}

// Config returns the validated configuration.
func (rt *Runtime) Config() Config {
	return rt.cfg
}

// ComponentCatalog describes the static entries of a loaded component.
func (rt *Runtime) ComponentCatalog(component string) (*schema.Catalog, error) {
	entries, err := rt.registry.StaticEntries(component)
	if err != nil {
		return nil, err
	}
	return schema.NewCatalog(component, entries), nil
}

// CapabilityCatalog describes the entries of the capability declared for t.
func (rt *Runtime) CapabilityCatalog(t reflect.Type) (*schema.Catalog, error) {
	entries, err := rt.registry.InstanceEntries(t)
	if err != nil {
		return nil, err
	}
	return schema.NewCatalog(t.String(), entries), nil
}

// DecodeDeferred converts a deferred result once its destination type is known.
func DecodeDeferred[T any](rt *Runtime, d entities.DeferredResult) (T, error) {
	var zero T
	if d.IsNull() {
		return zero, nil
	}
	v, err := rt.codec.Decode(d.Raw(), entities.TypeOf[T]())
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return v.(T), nil
}
