// Package objectstore tracks live object instances behind opaque handles.
//
// Handles are arena slots tagged with a generation. Releasing a handle bumps the
// slot's generation, so a stale handle never resolves to whatever instance
// reuses the slot later. A slot whose generation would wrap is retired instead
// of reused.
package objectstore

import (
	"sync"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
)

// generationMask keeps handles below 2^53 so they survive a round trip
// through JSON numbers on the calling side.
const generationMask = 1<<21 - 1

type slot struct {
	value      any
	generation uint32
	live       bool
}

// Arena is an ObjectStore backed by a slice of generation-tagged slots.
// It is safe for concurrent use.
type Arena struct {
	slots   []slot
	free    []uint32
	retired int
	mu      sync.RWMutex
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Track mints a new handle for v.
func (a *Arena) Track(v any) entities.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot{})
		index = uint32(len(a.slots) - 1) //nolint:gosec // G115: slot count bounded by memory
	}

	s := &a.slots[index]
	s.value = v
	s.live = true
	return makeHandle(index, s.generation)
}

// Lookup returns the instance behind h.
func (a *Arena) Lookup(h entities.Handle) (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.slotFor(h)
	if !ok {
		return nil, &errors.HandleExpiredError{Handle: h}
	}
	return s.value, nil
}

// Release invalidates h and frees its slot for reuse.
func (a *Arena) Release(h entities.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.slotFor(h)
	if !ok {
		return &errors.HandleExpiredError{Handle: h}
	}
	s.value = nil
	s.live = false
	if s.generation == generationMask {
		a.retired++
		return nil
	}
	s.generation++

	index, _ := splitHandle(h)
	a.free = append(a.free, index)
	return nil
}

// Len returns the number of live handles.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.slots) - len(a.free) - a.retired
}

// slotFor must be called with a.mu held.
func (a *Arena) slotFor(h entities.Handle) (*slot, bool) {
	if h.IsZero() {
		return nil, false
	}
	index, generation := splitHandle(h)
	if index >= uint32(len(a.slots)) { //nolint:gosec // G115: slot count bounded by memory
		return nil, false
	}
	s := &a.slots[index]
	if !s.live || s.generation != generation {
		return nil, false
	}
	return s, true
}

// makeHandle stores index+1 in the low 32 bits so the zero handle is never minted.
func makeHandle(index, generation uint32) entities.Handle {
	return entities.Handle(uint64(generation)<<32 | uint64(index+1))
}

func splitHandle(h entities.Handle) (index, generation uint32) {
	low := uint32(h & 0xFFFFFFFF)   //nolint:gosec // G115: packed format stores 32-bit values
	return low - 1, uint32(h >> 32) //nolint:gosec // G115: packed format stores 32-bit values
}
