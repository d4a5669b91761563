// Package dispatch routes calls from the other side of the boundary to
// registered entry points.
//
// A call names either a loaded component (static entry) or a tracked object
// handle (instance entry), plus an identifier. The Dispatcher resolves the
// entry through the registry, converts the JSON arguments to the declared
// parameter types, invokes it, and reports the outcome. AsyncBridge runs the
// same synchronous phase and delivers the eventual outcome through a
// CompletionNotifier keyed by a correlation token.
package dispatch
