// Package testutil provides common test utilities and assertions for interop tests
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// RequireErrorDetail decodes payload as an ErrorDetail and checks its type.
func RequireErrorDetail(t *testing.T, payload []byte, wantType string) *entities.ErrorDetail {
	t.Helper()

	var detail entities.ErrorDetail
	require.NoError(t, json.Unmarshal(payload, &detail), "payload is not an ErrorDetail: %s", payload)
	require.Equal(t, wantType, detail.Type, "unexpected error type: %s", detail.Message)
	return &detail
}

// AssertSuccessCompletion checks a completion succeeded with the given JSON payload.
func AssertSuccessCompletion(t *testing.T, c entities.Completion, token, payload string) {
	t.Helper()

	assert.Equal(t, token, c.Token)
	if assert.True(t, c.Success, "completion failed: %s", c.Payload) {
		AssertJSONEqual(t, payload, string(c.Payload))
	}
}
