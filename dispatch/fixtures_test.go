package dispatch

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/future"
	"github.com/reglet-dev/reglet-interop/infrastructure/jsoncodec"
	"github.com/reglet-dev/reglet-interop/objectstore"
	"github.com/reglet-dev/reglet-interop/registry"
)

var errInner = stdErrors.New("inner failure")

type greeter struct {
	gate  chan struct{}
	calls int
}

func (g *greeter) Greet(name string) string {
	g.calls++
	return "Hello, " + name
}

func (g *greeter) Sum3(a, b, c int) int {
	g.calls++
	return a + b + c
}

func (g *greeter) Reset() { g.calls = 0 }

func (g *greeter) Nothing() *string { return nil }

func (g *greeter) Fail() error { return stdErrors.Join(errInner) }

func (g *greeter) Explode() string { panic("boom") }

func (g *greeter) Later(n int) *future.Future[int] {
	return future.Go(func() (int, error) { return n, nil })
}

func (g *greeter) LaterFail() *future.Future[int] {
	return future.Go(func() (int, error) { return 0, errInner })
}

func (g *greeter) LaterPanic() *future.Future[int] {
	return future.Go(func() (int, error) { panic("late boom") })
}

func (g *greeter) Gated() *future.Future[string] {
	return future.Go(func() (string, error) {
		<-g.gate
		return "opened", nil
	})
}

type fixture struct {
	store      *objectstore.Arena
	codec      *jsoncodec.Codec
	registry   *registry.Registry
	dispatcher *Dispatcher
	greeter    *greeter
	handle     entities.Handle
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	reg, err := registry.New(
		registry.WithCapabilities(registry.Instance[*greeter](
			registry.Invokable("Greet"),
			registry.Invokable("Sum3"),
			registry.Invokable("Reset"),
			registry.Invokable("Nothing"),
			registry.Invokable("Fail"),
			registry.Invokable("Explode"),
			registry.Invokable("Later"),
			registry.Invokable("LaterFail"),
			registry.Invokable("LaterPanic"),
			registry.Invokable("Gated"),
		)),
		registry.WithComponents(registry.NewComponent("app",
			registry.Type("Static",
				registry.Func("Echo", func(s string) string { return s }),
				registry.Handler("Keep", "", registry.Signature{
					Params:  []entities.TypeDescriptor{entities.TypeOf[entities.DeferredResult]()},
					Returns: entities.TypeOf[string](),
				}, func(_ context.Context, _ any, args []any) (any, error) {
					return string(args[0].(entities.DeferredResult).Raw()), nil
				}),
			),
		)),
	)
	require.NoError(t, err)

	store := objectstore.NewArena()
	codec := jsoncodec.New(jsoncodec.WithObjectStore(store))
	g := &greeter{gate: make(chan struct{})}

	return &fixture{
		store:      store,
		codec:      codec,
		registry:   reg,
		dispatcher: New(reg, store, codec, opts...),
		greeter:    g,
		handle:     store.Track(g),
	}
}
