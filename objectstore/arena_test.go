package objectstore

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	domainerrors "github.com/reglet-dev/reglet-interop/domain/errors"
)

type widget struct{ name string }

func TestArena_TrackAndLookup(t *testing.T) {
	a := NewArena()
	w := &widget{name: "a"}

	h := a.Track(w)
	require.False(t, h.IsZero())

	got, err := a.Lookup(h)
	require.NoError(t, err)
	assert.Same(t, w, got)
	assert.Equal(t, 1, a.Len())
}

func TestArena_ReleaseMakesHandleStale(t *testing.T) {
	a := NewArena()
	h := a.Track(&widget{})

	require.NoError(t, a.Release(h))

	_, err := a.Lookup(h)
	var expired *domainerrors.HandleExpiredError
	require.True(t, errors.As(err, &expired))
	assert.Equal(t, h, expired.Handle)

	err = a.Release(h)
	require.True(t, errors.As(err, &expired), "double release must fail")
	assert.Equal(t, 0, a.Len())
}

func TestArena_SlotReuseKeepsOldHandleStale(t *testing.T) {
	a := NewArena()
	first := a.Track(&widget{name: "first"})
	require.NoError(t, a.Release(first))

	second := &widget{name: "second"}
	reused := a.Track(second)
	assert.NotEqual(t, first, reused)

	idxFirst, _ := splitHandle(first)
	idxReused, _ := splitHandle(reused)
	assert.Equal(t, idxFirst, idxReused, "slot should be reused")

	_, err := a.Lookup(first)
	require.Error(t, err)

	got, err := a.Lookup(reused)
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestArena_RetiresSlotAtLastGeneration(t *testing.T) {
	a := NewArena()
	h := a.Track(&widget{name: "old"})
	index, _ := splitHandle(h)

	a.slots[index].generation = generationMask
	last := makeHandle(index, generationMask)
	require.NoError(t, a.Release(last))
	assert.Empty(t, a.free, "retired slot must not be reused")
	assert.Equal(t, 0, a.Len())

	fresh := a.Track(&widget{name: "new"})
	idxFresh, _ := splitHandle(fresh)
	assert.NotEqual(t, index, idxFresh)
	assert.Equal(t, 1, a.Len())

	for _, stale := range []entities.Handle{h, last} {
		_, err := a.Lookup(stale)
		var expired *domainerrors.HandleExpiredError
		assert.ErrorAs(t, err, &expired)
	}
}

func TestArena_RemintSameInstanceIsIndependent(t *testing.T) {
	a := NewArena()
	w := &widget{}

	h1 := a.Track(w)
	h2 := a.Track(w)
	require.NotEqual(t, h1, h2)

	require.NoError(t, a.Release(h1))

	got, err := a.Lookup(h2)
	require.NoError(t, err)
	assert.Same(t, w, got)
}

func TestArena_UnknownHandles(t *testing.T) {
	a := NewArena()

	for _, h := range []entities.Handle{0, 1, 42, makeHandle(0, 5)} {
		_, err := a.Lookup(h)
		assert.Error(t, err, "handle %d", h)
	}
}

func TestArena_HandlesStayJSONSafe(t *testing.T) {
	h := makeHandle(0xFFFFFFFE, generationMask)
	assert.Less(t, uint64(h), uint64(1)<<53)
}

func TestArena_Concurrent(t *testing.T) {
	a := NewArena()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h := a.Track(j)
				v, err := a.Lookup(h)
				if assert.NoError(t, err) {
					assert.Equal(t, j, v)
				}
				assert.NoError(t, a.Release(h))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, a.Len())
}
