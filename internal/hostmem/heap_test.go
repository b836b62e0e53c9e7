package hostmem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestHeap_ReserveRelease(t *testing.T) {
	h := NewHeap(1 << 20)

	ptr, err := h.Reserve(4096)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	require.Equal(t, int64(4096), h.Reserved())

	buf := unsafe.Slice((*byte)(ptr), 4096)
	for i := range buf {
		require.Zero(t, buf[i], "reserved memory must be zeroed")
	}
	buf[4095] = 0xAA

	require.NoError(t, h.Release(ptr, 4096))
	require.Zero(t, h.Reserved())
}

func TestHeap_Capacity(t *testing.T) {
	h := NewHeap(8192)

	p1, err := h.Reserve(8192)
	require.NoError(t, err)

	_, err = h.Reserve(1)
	require.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, h.Release(p1, 8192))
	_, err = h.Reserve(1)
	require.NoError(t, err)
}

func TestHeap_DefaultCapacity(t *testing.T) {
	h := NewHeap(0)
	require.Positive(t, h.Capacity())
}

func TestHeap_ReleaseUnknown(t *testing.T) {
	h := NewHeap(1 << 20)
	var x [16]byte
	require.ErrorIs(t, h.Release(unsafe.Pointer(&x[0]), 16), ErrUnknown)

	ptr, err := h.Reserve(64)
	require.NoError(t, err)
	require.ErrorIs(t, h.Release(ptr, 32), ErrUnknown, "size mismatch")
}

func TestHeap_InvalidSize(t *testing.T) {
	h := NewHeap(1 << 20)
	_, err := h.Reserve(0)
	require.Error(t, err)
	_, err = h.Reserve(-5)
	require.Error(t, err)
}
