package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
)

func TestPendingCalls(t *testing.T) {
	p := NewPendingCalls()

	id1, f1 := p.Begin()
	id2, f2 := p.Begin()
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, p.Len())

	require.NoError(t, p.Complete(id1, true, entities.NewDeferredResult(json.RawMessage(`{"v":1}`))))
	v, err := f1.Await(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(v.Raw()))

	require.NoError(t, p.Complete(id2, false, entities.NewDeferredResult(json.RawMessage(`"denied"`))))
	_, err = f2.Await(context.Background())
	var remote *errors.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "denied", remote.Message)
	assert.Equal(t, id2, remote.CallID)

	assert.Zero(t, p.Len())
	assert.Error(t, p.Complete(id1, true, entities.DeferredResult{}), "a call completes once")
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"null", `null`, "unknown error"},
		{"string", `"bad"`, "bad"},
		{"error detail", `{"message":"nope","type":"internal"}`, "nope"},
		{"other", `42`, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureMessage(entities.NewDeferredResult(json.RawMessage(tt.raw))))
		})
	}
}
