// Package entities defines core domain types and wire protocol structures.
// These types serve dual purpose: domain entities AND JSON wire format DTOs.
package entities

import (
	"bytes"
	"encoding/json"
)

// ObjectRefKey is the JSON key that marks a value as a reference to a tracked object.
const ObjectRefKey = "__objref"

// ObjectRef is the JSON wire format for a tracked object passed by reference.
// It encodes as {"__objref": <handle>}.
type ObjectRef struct {
	Handle Handle `json:"__objref"`
}

// DeferredResult carries a raw result whose destination type is only known to
// the code that eventually consumes it. The coercer never interprets it.
type DeferredResult struct {
	raw json.RawMessage
}

// NewDeferredResult wraps raw without decoding it.
func NewDeferredResult(raw json.RawMessage) DeferredResult {
	return DeferredResult{raw: raw}
}

// Raw returns the uninterpreted payload.
func (d DeferredResult) Raw() json.RawMessage {
	return d.raw
}

// IsNull reports whether the payload is absent or JSON null.
func (d DeferredResult) IsNull() bool {
	trimmed := bytes.TrimSpace(d.raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// MarshalJSON emits the raw payload unchanged.
func (d DeferredResult) MarshalJSON() ([]byte, error) {
	if len(d.raw) == 0 {
		return []byte("null"), nil
	}
	return d.raw, nil
}

// UnmarshalJSON keeps the payload as-is.
func (d *DeferredResult) UnmarshalJSON(data []byte) error {
	d.raw = append(d.raw[:0], data...)
	return nil
}

// CallRequest is the JSON wire format of an invocation arriving from the calling side.
type CallRequest struct {
	Args       json.RawMessage `json:"args,omitempty"`
	Token      string          `json:"token,omitempty"`
	Component  string          `json:"component,omitempty"`
	Identifier string          `json:"identifier"`
	Handle     Handle          `json:"handle,omitempty"`
}

// CallResponse is the JSON wire format of a synchronous invocation result.
// Void is set for entries that produce no value; Result then stays empty.
type CallResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
	Void   bool            `json:"void,omitempty"`
}

// Completion is the JSON wire format of an asynchronous settlement notification.
// Payload holds the encoded value on success and an encoded ErrorDetail on failure.
type Completion struct {
	Payload json.RawMessage `json:"payload"`
	Token   string          `json:"token"`
	Success bool            `json:"success"`
}
