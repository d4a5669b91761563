package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
	"github.com/reglet-dev/reglet-interop/future"
)

// PendingCalls tracks calls this side has made to the other side and settles
// them when the other side reports completion.
type PendingCalls struct {
	calls map[int64]*future.Future[entities.DeferredResult]
	next  int64
	mu    sync.Mutex
}

// NewPendingCalls creates an empty tracker.
func NewPendingCalls() *PendingCalls {
	return &PendingCalls{calls: make(map[int64]*future.Future[entities.DeferredResult])}
}

// Begin allocates a call id and the future its completion will settle.
func (p *PendingCalls) Begin() (int64, *future.Future[entities.DeferredResult]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	f := future.New[entities.DeferredResult]()
	p.calls[p.next] = f
	return p.next, f
}

// Complete settles call id. A failed call settles with a *errors.RemoteError
// whose message is taken from result.
func (p *PendingCalls) Complete(id int64, succeeded bool, result entities.DeferredResult) error {
	p.mu.Lock()
	f, ok := p.calls[id]
	delete(p.calls, id)
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("there is no pending call with id %d", id)
	}
	if succeeded {
		f.Settle(result, nil)
		return nil
	}
	f.Settle(entities.DeferredResult{}, &errors.RemoteError{CallID: id, Message: failureMessage(result)})
	return nil
}

// Len returns the number of calls awaiting completion.
func (p *PendingCalls) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// failureMessage accepts a JSON string, an ErrorDetail object, or anything else
// verbatim.
func failureMessage(result entities.DeferredResult) string {
	if result.IsNull() {
		return "unknown error"
	}
	var s string
	if err := json.Unmarshal(result.Raw(), &s); err == nil {
		return s
	}
	var detail entities.ErrorDetail
	if err := json.Unmarshal(result.Raw(), &detail); err == nil && detail.Message != "" {
		return detail.Message
	}
	return string(result.Raw())
}
