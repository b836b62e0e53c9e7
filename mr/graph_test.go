package mr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/rmmkit/stream"
)

// wrapper is a minimal forwarding resource for graph tests.
type wrapper struct {
	up Resource
}

func (w *wrapper) Allocate(size int, s stream.Stream) (Block, error) { return w.up.Allocate(size, s) }
func (w *wrapper) Deallocate(b Block, s stream.Stream) error         { return w.up.Deallocate(b, s) }
func (w *wrapper) IsEqual(other Resource) bool                       { return other == Resource(w) }
func (w *wrapper) Upstream() Resource                                { return w.up }

func TestWalk_Chain(t *testing.T) {
	leaf := NewHostBackingWithCapacity(1 << 20)
	mid := &wrapper{up: leaf}
	top := &wrapper{up: mid}

	var seen []Resource
	require.NoError(t, Walk(top, func(r Resource) bool {
		seen = append(seen, r)
		return true
	}))
	require.Equal(t, []Resource{top, mid, leaf}, seen)

	ok, err := Reaches(top, leaf)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Reaches(leaf, top)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWalk_Cycle(t *testing.T) {
	a := &wrapper{}
	b := &wrapper{up: a}
	a.up = b

	err := Walk(a, func(Resource) bool { return true })
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestWalk_Stop(t *testing.T) {
	leaf := NewHostBackingWithCapacity(1 << 20)
	top := &wrapper{up: leaf}

	visits := 0
	require.NoError(t, Walk(top, func(Resource) bool {
		visits++
		return false
	}))
	require.Equal(t, 1, visits)
}

// valueWrapper is a forwarding resource held by value. Its slice field makes
// it non-comparable.
type valueWrapper struct {
	up   Resource
	tags []string
}

func (w valueWrapper) Allocate(size int, s stream.Stream) (Block, error) { return w.up.Allocate(size, s) }
func (w valueWrapper) Deallocate(b Block, s stream.Stream) error         { return w.up.Deallocate(b, s) }
func (w valueWrapper) IsEqual(other Resource) bool                       { return false }
func (w valueWrapper) Upstream() Resource                                { return w.up }

func TestWalk_NonComparableResource(t *testing.T) {
	leaf := NewHostBackingWithCapacity(1 << 20)
	mid := valueWrapper{up: leaf, tags: []string{"mid"}}
	top := &wrapper{up: mid}

	visits := 0
	require.NotPanics(t, func() {
		require.NoError(t, Walk(top, func(Resource) bool {
			visits++
			return true
		}))
	})
	require.Equal(t, 3, visits)

	var ok bool
	var err error
	require.NotPanics(t, func() { ok, err = Reaches(mid, valueWrapper{up: leaf}) })
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSame(t *testing.T) {
	leaf := NewHostBackingWithCapacity(1 << 20)
	w := &wrapper{up: leaf}
	v := valueWrapper{up: leaf, tags: []string{"a"}}

	require.True(t, Same(w, w))
	require.False(t, Same(w, &wrapper{up: leaf}))
	require.True(t, Same(nil, nil))
	require.False(t, Same(w, nil))
	require.NotPanics(t, func() {
		require.False(t, Same(v, v))
		require.False(t, Equal(v, v))
	})
}
