// Package wazero exposes an interop runtime to WebAssembly guests running on wazero.
//
// RegisterWithRuntime instantiates a host module (default name "interop_host")
// with these exports:
//
//   - invoke(i64) i64: packed pointer+length of a CallRequest JSON document in;
//     packed pointer+length of a CallResponse JSON document out
//   - begin_invoke(i64): packed CallRequest; the outcome arrives later through
//     the guest's end_invoke export
//   - release_handle(i64) i32: 0 when released, 1 when the handle was stale
//   - log_message(i64): packed LogMessageWire JSON, replayed into slog
//
// Responses are written into memory obtained from the guest's "allocate" export.
//
// # Basic Usage
//
//	notifier := wazeroadapter.NewGuestNotifier()
//	rt, err := interop.New(
//	    interop.WithCapabilities(...),
//	    interop.WithNotifier(notifier),
//	)
//	if err != nil {
//	    return err
//	}
//
//	r := wazero.NewRuntime(ctx)
//	err = wazeroadapter.RegisterWithRuntime(ctx, r, rt)
//	mod, err := r.Instantiate(ctx, guestWasm)
//	notifier.Bind(mod)
package wazero
