package registry

import (
	"context"
	stdErrors "errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
)

type greeter struct {
	prefix string
}

func (g *greeter) Greet(name string) string { return g.prefix + name }
func (g *greeter) Farewell(name string) string {
	return "bye " + name
}
func (g *greeter) greet(name string) string { return name }

type base struct{ pings int }

func (b *base) Ping() int { b.pings++; return b.pings }

type derived struct {
	*base
}

func (d *derived) Pong() string { return "pong" }

type duplicated struct{}

func (duplicated) A() {}
func (duplicated) B() {}

type generic struct{}

func (generic) Get() int { return 0 }

func add(a, b int) int { return a + b }

var greeterType = reflect.TypeFor[*greeter]()

func newGreeterRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(WithCapabilities(Instance[*greeter](
		Invokable("Greet"),
		InvokableAs("Farewell", "Bye"),
		Invokable("greet"),
	)))
	require.NoError(t, err)
	return reg
}

func TestNew_Empty(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Empty(t, reg.Components())
}

func TestNew_DuplicateCapability(t *testing.T) {
	_, err := New(WithCapabilities(
		Instance[*greeter](Invokable("Greet")),
		Instance[*greeter](Invokable("Farewell")),
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already declared")
}

func TestNew_DuplicateComponent(t *testing.T) {
	_, err := New(WithComponents(NewComponent("math"), NewComponent("math")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already loaded")
}

func TestNew_EmptyComponentName(t *testing.T) {
	_, err := New(WithComponents(NewComponent("")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestResolveInstance(t *testing.T) {
	reg := newGreeterRegistry(t)

	t.Run("by method name", func(t *testing.T) {
		desc, err := reg.ResolveInstance(greeterType, "Greet")
		require.NoError(t, err)
		assert.Equal(t, "Greet", desc.Identifier())
		assert.Equal(t, 1, desc.Arity())
		assert.True(t, desc.ParameterType(0).Is(reflect.TypeFor[string]()))
		assert.True(t, desc.ReturnType().Is(reflect.TypeFor[string]()))

		out, err := desc.Invoke(context.Background(), &greeter{prefix: "Hello, "}, []any{"Alice"})
		require.NoError(t, err)
		assert.Equal(t, "Hello, Alice", out)
	})

	t.Run("by custom identifier", func(t *testing.T) {
		desc, err := reg.ResolveInstance(greeterType, "Bye")
		require.NoError(t, err)
		assert.Equal(t, "Farewell", desc.Method())

		_, err = reg.ResolveInstance(greeterType, "Farewell")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := reg.ResolveInstance(greeterType, "Missing")
		var nf *errors.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "*registry.greeter", nf.Owner)
		assert.False(t, nf.Static)
	})

	t.Run("non-public method is unsuitable", func(t *testing.T) {
		_, err := reg.ResolveInstance(greeterType, "greet")
		var unsuitable *errors.UnsuitableError
		require.ErrorAs(t, err, &unsuitable)
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("undeclared type has no entries", func(t *testing.T) {
		_, err := reg.ResolveInstance(reflect.TypeFor[*base](), "Ping")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("nil type", func(t *testing.T) {
		_, err := reg.ResolveInstance(nil, "Greet")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestResolveInstance_Idempotent(t *testing.T) {
	reg := newGreeterRegistry(t)

	first, err := reg.ResolveInstance(greeterType, "Greet")
	require.NoError(t, err)
	second, err := reg.ResolveInstance(greeterType, "Greet")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestResolveInstance_SameIdentifierOnUnrelatedTypes(t *testing.T) {
	reg, err := New(WithCapabilities(
		Instance[*greeter](InvokableAs("Greet", "Run")),
		Instance[*derived](InvokableAs("Pong", "Run")),
	))
	require.NoError(t, err)

	g, err := reg.ResolveInstance(greeterType, "Run")
	require.NoError(t, err)
	d, err := reg.ResolveInstance(reflect.TypeFor[*derived](), "Run")
	require.NoError(t, err)
	assert.Equal(t, "Greet", g.Method())
	assert.Equal(t, "Pong", d.Method())
}

func TestResolveInstance_Extends(t *testing.T) {
	baseCap := Instance[*base](Invokable("Ping"))
	reg, err := New(WithCapabilities(
		baseCap,
		Instance[*derived](Extends(baseCap), Invokable("Pong")),
	))
	require.NoError(t, err)

	desc, err := reg.ResolveInstance(reflect.TypeFor[*derived](), "Ping")
	require.NoError(t, err)
	assert.Equal(t, "*registry.base.Ping", desc.Owner()+"."+desc.Method())

	target := &derived{base: &base{}}
	out, err := desc.Invoke(context.Background(), target, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	entries, err := reg.InstanceEntries(reflect.TypeFor[*derived]())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ping", entries[0].Identifier())
	assert.Equal(t, "Pong", entries[1].Identifier())
}

func TestResolveInstance_DuplicateIdentifier(t *testing.T) {
	reg, err := New(WithCapabilities(Instance[duplicated](
		InvokableAs("A", "Same"),
		InvokableAs("B", "Same"),
	)))
	require.NoError(t, err)

	_, err = reg.ResolveInstance(reflect.TypeFor[duplicated](), "A")
	var cfg *errors.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "Same", cfg.Identifier)
	assert.Equal(t, []string{"registry.duplicated.A", "registry.duplicated.B"}, cfg.Entries)
	assert.Contains(t, cfg.Error(), `share the identifier "Same"`)

	// The failure is permanent.
	_, again := reg.ResolveInstance(reflect.TypeFor[duplicated](), "Other")
	assert.Same(t, err, again)
}

func TestResolveInstance_DuplicateAcrossInheritance(t *testing.T) {
	baseCap := Instance[*base](Invokable("Ping"))
	reg, err := New(WithCapabilities(
		Instance[*derived](Extends(baseCap), InvokableAs("Pong", "Ping")),
	))
	require.NoError(t, err)

	_, err = reg.ResolveInstance(reflect.TypeFor[*derived](), "Pong")
	var cfg *errors.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Len(t, cfg.Entries, 2)
}

func TestResolveInstance_GenericRejected(t *testing.T) {
	reg, err := New(WithCapabilities(Instance[generic](Generic("T"), Invokable("Get"))))
	require.NoError(t, err)

	_, err = reg.ResolveInstance(reflect.TypeFor[generic](), "Get")
	var cfg *errors.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Contains(t, cfg.Error(), "generic")
}

func TestResolveInstance_MissingMethod(t *testing.T) {
	reg, err := New(WithCapabilities(Instance[*greeter](Invokable("Nope"))))
	require.NoError(t, err)

	_, err = reg.ResolveInstance(greeterType, "Greet")
	var cfg *errors.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "Nope", cfg.Identifier)
}

func TestResolveInstance_ConcurrentFirstUse(t *testing.T) {
	reg := newGreeterRegistry(t)

	const workers = 32
	results := make([]*entities.EntryDescriptor, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			desc, err := reg.ResolveInstance(greeterType, "Greet")
			if err == nil {
				results[i] = desc
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.NotNil(t, results[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestDeclare_AfterDiscovery(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)

	_, err = reg.ResolveInstance(greeterType, "Greet")
	require.Error(t, err)

	err = reg.Declare(Instance[*greeter](Invokable("Greet")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already discovered")
}

func TestResolveStatic(t *testing.T) {
	reg, err := New(WithComponents(NewComponent("math",
		Type("Calc", Func("Add", add), FuncAs("Add", "Plus", add), Func("sub", add)),
		Type("hidden", Func("Mul", add)),
	)))
	require.NoError(t, err)

	t.Run("by name", func(t *testing.T) {
		desc, err := reg.ResolveStatic("math", "Add")
		require.NoError(t, err)
		out, err := desc.Invoke(context.Background(), nil, []any{2, 3})
		require.NoError(t, err)
		assert.Equal(t, 5, out)
	})

	t.Run("custom identifier", func(t *testing.T) {
		desc, err := reg.ResolveStatic("math", "Plus")
		require.NoError(t, err)
		assert.Equal(t, "Calc", desc.Owner())
	})

	t.Run("unexported type is skipped", func(t *testing.T) {
		_, err := reg.ResolveStatic("math", "Mul")
		var nf *errors.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.True(t, nf.Static)
	})

	t.Run("non-public function is unsuitable", func(t *testing.T) {
		_, err := reg.ResolveStatic("math", "sub")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("listing", func(t *testing.T) {
		entries, err := reg.StaticEntries("math")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "Add", entries[0].Identifier())
		assert.Equal(t, "Plus", entries[1].Identifier())
	})
}

func TestResolveStatic_ComponentNotLoaded(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)

	_, err = reg.ResolveStatic("later", "Add")
	var notLoaded *errors.ComponentNotLoadedError
	require.ErrorAs(t, err, &notLoaded)
	assert.Contains(t, err.Error(), "component not loaded")

	// Not cached: loading the component afterwards makes it resolvable.
	require.NoError(t, reg.Load(NewComponent("later", Type("Calc", Func("Add", add)))))
	_, err = reg.ResolveStatic("later", "Add")
	require.NoError(t, err)
	assert.Equal(t, []string{"later"}, reg.Components())
}

func TestResolveStatic_DuplicateAcrossTypes(t *testing.T) {
	reg, err := New(WithComponents(NewComponent("math",
		Type("First", Func("Add", add)),
		Type("Second", Func("Add", add)),
	)))
	require.NoError(t, err)

	_, err = reg.ResolveStatic("math", "Add")
	var cfg *errors.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, []string{"First.Add", "Second.Add"}, cfg.Entries)
}

func TestResolveStatic_GenericType(t *testing.T) {
	reg, err := New(WithComponents(NewComponent("gen",
		Type("Box", Generic("T"), Func("Make", add)),
	)))
	require.NoError(t, err)

	_, err = reg.ResolveStatic("gen", "Make")
	var cfg *errors.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Contains(t, cfg.Reason, "generic")
}

func TestResolveStatic_MethodMarkRejected(t *testing.T) {
	reg, err := New(WithComponents(NewComponent("bad",
		Type("Calc", Invokable("Add")),
	)))
	require.NoError(t, err)

	_, err = reg.ResolveStatic("bad", "Add")
	var cfg *errors.ConfigurationError
	require.ErrorAs(t, err, &cfg)
}

func TestHandler(t *testing.T) {
	echo := func(ctx context.Context, target any, args []any) (any, error) {
		return args[0], nil
	}

	t.Run("closed signature", func(t *testing.T) {
		reg, err := New(WithComponents(NewComponent("h",
			Type("Tools", Handler("Echo", "", Signature{
				Params:  []entities.TypeDescriptor{entities.TypeOf[string]()},
				Returns: entities.TypeOf[string](),
			}, echo)),
		)))
		require.NoError(t, err)

		desc, err := reg.ResolveStatic("h", "Echo")
		require.NoError(t, err)
		out, err := desc.Invoke(context.Background(), nil, []any{"x"})
		require.NoError(t, err)
		assert.Equal(t, "x", out)
	})

	t.Run("open parameter", func(t *testing.T) {
		reg, err := New(WithComponents(NewComponent("h",
			Type("Tools", Handler("Echo", "", Signature{
				Params:  []entities.TypeDescriptor{entities.TypeParam("T")},
				Returns: entities.TypeParam("T"),
			}, echo)),
		)))
		require.NoError(t, err)

		_, err = reg.ResolveStatic("h", "Echo")
		var cfg *errors.ConfigurationError
		require.ErrorAs(t, err, &cfg)
	})

	t.Run("failure is wrapped", func(t *testing.T) {
		boom := stdErrors.New("boom")
		reg, err := New(WithComponents(NewComponent("h",
			Type("Tools", Handler("Fail", "", Signature{}, func(context.Context, any, []any) (any, error) {
				return nil, boom
			})),
		)))
		require.NoError(t, err)

		desc, err := reg.ResolveStatic("h", "Fail")
		require.NoError(t, err)
		assert.True(t, desc.IsVoid())
		_, err = desc.Invoke(context.Background(), nil, nil)
		var tie *errors.TargetInvocationError
		require.ErrorAs(t, err, &tie)
		assert.Same(t, boom, errors.Flatten(err))
	})
}

func TestFuncShapes(t *testing.T) {
	type ctxKey struct{}
	boom := stdErrors.New("boom")

	reg, err := New(WithComponents(NewComponent("shapes",
		Type("Fns",
			Func("WithContext", func(ctx context.Context, n int) string {
				return fmt.Sprintf("%v:%d", ctx.Value(ctxKey{}), n)
			}),
			Func("Fails", func(n int) (int, error) { return 0, boom }),
			Func("OnlyError", func() error { return nil }),
			Func("Panics", func() int { panic("kaboom") }),
			Func("Nothing", func(s string) {}),
		),
	)))
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "v")

	t.Run("leading context is injected", func(t *testing.T) {
		desc, err := reg.ResolveStatic("shapes", "WithContext")
		require.NoError(t, err)
		assert.Equal(t, 1, desc.Arity())
		out, err := desc.Invoke(ctx, nil, []any{7})
		require.NoError(t, err)
		assert.Equal(t, "v:7", out)
	})

	t.Run("trailing error", func(t *testing.T) {
		desc, err := reg.ResolveStatic("shapes", "Fails")
		require.NoError(t, err)
		_, err = desc.Invoke(ctx, nil, []any{1})
		assert.Same(t, boom, errors.Flatten(err))
	})

	t.Run("error only is void", func(t *testing.T) {
		desc, err := reg.ResolveStatic("shapes", "OnlyError")
		require.NoError(t, err)
		assert.True(t, desc.IsVoid())
		out, err := desc.Invoke(ctx, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		desc, err := reg.ResolveStatic("shapes", "Panics")
		require.NoError(t, err)
		_, err = desc.Invoke(ctx, nil, nil)
		var pe *errors.PanicError
		require.ErrorAs(t, errors.Flatten(err), &pe)
		assert.Equal(t, "kaboom", pe.Value)
		assert.NotEmpty(t, pe.Stack)
	})

	t.Run("void", func(t *testing.T) {
		desc, err := reg.ResolveStatic("shapes", "Nothing")
		require.NoError(t, err)
		assert.True(t, desc.IsVoid())
	})
}

func TestFuncShapes_Variadic(t *testing.T) {
	reg, err := New(WithComponents(NewComponent("v",
		Type("Fns", Func("Sum", func(xs ...int) int { return len(xs) })),
	)))
	require.NoError(t, err)

	_, err = reg.ResolveStatic("v", "Sum")
	var cfg *errors.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Contains(t, cfg.Reason, "variadic")
}
