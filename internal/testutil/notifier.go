package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reglet-dev/reglet-interop/domain/entities"
)

// RecordingNotifier is a ports.CompletionNotifier that records every completion.
type RecordingNotifier struct {
	arrived     chan struct{}
	completions []entities.Completion
	mu          sync.Mutex
}

// NewRecordingNotifier creates an empty recorder.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{arrived: make(chan struct{}, 1024)}
}

// EndInvoke implements ports.CompletionNotifier.
func (n *RecordingNotifier) EndInvoke(_ context.Context, c entities.Completion) {
	n.mu.Lock()
	n.completions = append(n.completions, c)
	n.mu.Unlock()
	n.arrived <- struct{}{}
}

// Completions returns a copy of what has been recorded so far.
func (n *RecordingNotifier) Completions() []entities.Completion {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]entities.Completion, len(n.completions))
	copy(out, n.completions)
	return out
}

// WaitFor blocks until count completions have arrived or fails the test after timeout.
func (n *RecordingNotifier) WaitFor(t *testing.T, count int, timeout time.Duration) []entities.Completion {
	t.Helper()

	deadline := time.After(timeout)
	for {
		if got := n.Completions(); len(got) >= count {
			return got
		}
		select {
		case <-n.arrived:
		case <-deadline:
			t.Fatalf("timed out waiting for %d completions, got %d", count, len(n.Completions()))
			return nil
		}
	}
}
