package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-interop/internal/testutil"
)

const waitTimeout = 2 * time.Second

func TestAsyncBridge_PendingSuccess(t *testing.T) {
	f := newFixture(t)
	notifier := testutil.NewRecordingNotifier()
	bridge := NewAsyncBridge(f.dispatcher, f.codec, notifier)

	bridge.BeginInvoke(context.Background(), "123", Call{Identifier: "Later", Handle: f.handle, Args: json.RawMessage(`[42]`)})
	bridge.Wait()

	got := notifier.WaitFor(t, 1, waitTimeout)
	require.Len(t, got, 1)
	testutil.AssertSuccessCompletion(t, got[0], "123", `42`)
}

func TestAsyncBridge_PendingFailure(t *testing.T) {
	f := newFixture(t)
	notifier := testutil.NewRecordingNotifier()
	bridge := NewAsyncBridge(f.dispatcher, f.codec, notifier)

	bridge.BeginInvoke(context.Background(), "123", Call{Identifier: "LaterFail", Handle: f.handle})
	bridge.Wait()

	got := notifier.WaitFor(t, 1, waitTimeout)
	require.Len(t, got, 1)
	assert.Equal(t, "123", got[0].Token)
	assert.False(t, got[0].Success)
	detail := testutil.RequireErrorDetail(t, got[0].Payload, "invocation")
	assert.Equal(t, errInner.Error(), detail.Message)
	assert.Equal(t, "LaterFail", detail.Code)
}

func TestAsyncBridge_PendingPanic(t *testing.T) {
	f := newFixture(t)
	notifier := testutil.NewRecordingNotifier()
	bridge := NewAsyncBridge(f.dispatcher, f.codec, notifier)

	bridge.BeginInvoke(context.Background(), "p", Call{Identifier: "LaterPanic", Handle: f.handle})
	bridge.Wait()

	got := notifier.WaitFor(t, 1, waitTimeout)
	require.Len(t, got, 1)
	assert.False(t, got[0].Success)
	detail := testutil.RequireErrorDetail(t, got[0].Payload, "panic")
	assert.Equal(t, "panic: late boom", detail.Message)
	assert.Equal(t, "LaterPanic", detail.Code)
	assert.NotEmpty(t, detail.Stack)
}

func TestAsyncBridge_SynchronousFailures(t *testing.T) {
	f := newFixture(t)
	notifier := testutil.NewRecordingNotifier()
	bridge := NewAsyncBridge(f.dispatcher, f.codec, notifier)

	bridge.BeginInvoke(context.Background(), "a", Call{Identifier: "Missing", Handle: f.handle})
	bridge.BeginInvoke(context.Background(), "b", Call{Identifier: "Sum3", Handle: f.handle, Args: json.RawMessage(`[1]`)})
	bridge.BeginInvoke(context.Background(), "c", Call{Identifier: "Fail", Handle: f.handle})
	bridge.Wait()

	byToken := make(map[string][]byte)
	for _, c := range notifier.WaitFor(t, 3, waitTimeout) {
		assert.False(t, c.Success)
		byToken[c.Token] = c.Payload
	}
	testutil.RequireErrorDetail(t, byToken["a"], "not_found")
	testutil.RequireErrorDetail(t, byToken["b"], "arity_mismatch")
	detail := testutil.RequireErrorDetail(t, byToken["c"], "invocation")
	assert.Equal(t, errInner.Error(), detail.Message)
}

func TestAsyncBridge_PlainValues(t *testing.T) {
	f := newFixture(t)
	notifier := testutil.NewRecordingNotifier()
	bridge := NewAsyncBridge(f.dispatcher, f.codec, notifier)

	bridge.BeginInvoke(context.Background(), "greet", Call{Identifier: "Greet", Handle: f.handle, Args: json.RawMessage(`["Ada"]`)})
	bridge.BeginInvoke(context.Background(), "void", Call{Identifier: "Reset", Handle: f.handle})
	bridge.Wait()

	byToken := make(map[string]string)
	for _, c := range notifier.WaitFor(t, 2, waitTimeout) {
		require.True(t, c.Success)
		byToken[c.Token] = string(c.Payload)
	}
	assert.JSONEq(t, `"Hello, Ada"`, byToken["greet"])
	assert.Equal(t, "null", byToken["void"])
}

func TestAsyncBridge_NoToken(t *testing.T) {
	f := newFixture(t)
	notifier := testutil.NewRecordingNotifier()

	var mu sync.Mutex
	var unobserved []error
	bridge := NewAsyncBridge(f.dispatcher, f.codec, notifier,
		WithUnobservedErrorHandler(func(call Call, err error) {
			mu.Lock()
			defer mu.Unlock()
			unobserved = append(unobserved, err)
		}),
	)

	bridge.BeginInvoke(context.Background(), "", Call{Identifier: "LaterFail", Handle: f.handle})
	bridge.BeginInvoke(context.Background(), "", Call{Identifier: "Later", Handle: f.handle, Args: json.RawMessage(`[1]`)})
	bridge.Wait()

	assert.Empty(t, notifier.Completions())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, unobserved, 1)
	assert.ErrorIs(t, unobserved[0], errInner)
}

func TestAsyncBridge_DoesNotBlock(t *testing.T) {
	f := newFixture(t)
	notifier := testutil.NewRecordingNotifier()
	bridge := NewAsyncBridge(f.dispatcher, f.codec, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	bridge.BeginInvoke(ctx, "gate", Call{Identifier: "Gated", Handle: f.handle})
	cancel()

	assert.Empty(t, notifier.Completions(), "completion must wait for settlement")
	close(f.greeter.gate)

	got := notifier.WaitFor(t, 1, waitTimeout)
	testutil.AssertSuccessCompletion(t, got[0], "gate", `"opened"`)
	bridge.Wait()
	assert.Len(t, notifier.Completions(), 1)
}
