package hostmem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestMmap_ReserveRelease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	m := NewMmap()

	ptr, err := m.Reserve(1 << 16)
	require.NoError(t, err)
	require.Equal(t, 1, m.Mapped())

	buf := unsafe.Slice((*byte)(ptr), 1<<16)
	buf[0] = 0xde
	buf[len(buf)-1] = 0xad
	require.Equal(t, byte(0xde), buf[0])

	require.NoError(t, m.Release(ptr, 1<<16))
	require.Zero(t, m.Mapped())
	require.ErrorIs(t, m.Release(ptr, 1<<16), ErrUnknown)
}
