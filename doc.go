// Package interop lets code on the other side of a process or module boundary
// call into Go by name.
//
// Go code declares which methods of its types and which static functions are
// invokable. The calling side addresses an entry point either through a tracked
// object handle (instance entries) or through a component name (static entries),
// passes its arguments as a JSON array, and receives the result synchronously
// or through a completion notification keyed by a correlation token.
//
// # Basic Usage
//
//	type Greeter struct{ Prefix string }
//
//	func (g *Greeter) Greet(name string) string { return g.Prefix + name }
//
//	rt, err := interop.New(
//	    interop.WithCapabilities(registry.Instance[*Greeter](registry.Invokable("Greet"))),
//	    interop.WithNotifier(notifier),
//	)
//	if err != nil {
//	    return err
//	}
//	ref := rt.Track(&Greeter{Prefix: "Hello, "})
//	out, err := rt.Invoke(ctx, "", "Greet", ref.Handle, json.RawMessage(`["Ada"]`))
//	// out == `"Hello, Ada"`
package interop
