package fixedsize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

func Test_FixedSize_Reuse(t *testing.T) {
	r, err := New(mr.NewHostBackingWithCapacity(1<<20), 1000, &Options{BlocksToPreallocate: 4})
	require.NoError(t, err)
	require.Equal(t, 1024, r.BlockSize())

	s := stream.New()
	blk, err := r.Allocate(1000, s)
	require.NoError(t, err)
	require.Equal(t, 1, r.Chunks())
	require.Equal(t, 3, r.FreeBlocks(s))

	require.NoError(t, r.Deallocate(blk, s))
	again, err := r.Allocate(512, s)
	require.NoError(t, err)
	require.Equal(t, blk.Addr(), again.Addr())
	require.NoError(t, r.Deallocate(again, s))
}

func Test_FixedSize_AddressOrder(t *testing.T) {
	r, err := New(mr.NewHostBackingWithCapacity(1<<20), 256, &Options{BlocksToPreallocate: 8})
	require.NoError(t, err)

	var prev mr.Block
	for i := 0; i < 8; i++ {
		blk, err := r.Allocate(256, stream.Default)
		require.NoError(t, err)
		if i > 0 {
			assert.Equal(t, prev.Addr()+256, blk.Addr())
		}
		prev = blk
	}
	require.Equal(t, 1, r.Chunks())

	_, err = r.Allocate(256, stream.Default)
	require.NoError(t, err)
	require.Equal(t, 2, r.Chunks())
}

func Test_FixedSize_Oversize(t *testing.T) {
	r, err := New(mr.NewHostBackingWithCapacity(1<<20), 512, nil)
	require.NoError(t, err)

	_, err = r.Allocate(513, stream.Default)
	require.ErrorIs(t, err, mr.ErrInvalidArgument)
	require.Zero(t, r.Chunks())

	blk, err := r.Allocate(0, stream.Default)
	require.NoError(t, err)
	require.True(t, blk.IsEmpty())
}

func Test_FixedSize_CrossStream(t *testing.T) {
	sim := stream.NewSimulator()
	r, err := New(mr.NewHostBackingWithCapacity(1<<20), 256, &Options{BlocksToPreallocate: 1, Tracker: sim})
	require.NoError(t, err)
	a, b := stream.New(), stream.New()

	blk, err := r.Allocate(256, a)
	require.NoError(t, err)
	require.NoError(t, r.Deallocate(blk, a))

	other, err := r.Allocate(256, b)
	require.NoError(t, err)
	require.NotEqual(t, blk.Addr(), other.Addr())
	require.Equal(t, 2, r.Chunks())

	sim.Synchronize(a)
	c := stream.New()
	reused, err := r.Allocate(256, c)
	require.NoError(t, err)
	require.Equal(t, blk.Addr(), reused.Addr())
	require.Equal(t, 2, r.Chunks())
}

func Test_FixedSize_Validation(t *testing.T) {
	backing := mr.NewHostBackingWithCapacity(1 << 20)

	_, err := New(nil, 256, nil)
	require.ErrorIs(t, err, mr.ErrConfiguration)
	_, err = New(backing, 0, nil)
	require.ErrorIs(t, err, mr.ErrConfiguration)
	_, err = New(backing, 256, &Options{BlocksToPreallocate: -1})
	require.ErrorIs(t, err, mr.ErrConfiguration)

	r, err := New(backing, 256, nil)
	require.NoError(t, err)
	blk, err := r.Allocate(100, stream.Default)
	require.NoError(t, err)
	require.ErrorIs(t, r.Deallocate(mr.Block{Ptr: blk.Ptr, Size: 200}, stream.Default), mr.ErrInvalidArgument)
	require.NoError(t, r.Deallocate(blk, stream.Default))
	require.ErrorIs(t, r.Deallocate(blk, stream.Default), mr.ErrInvalidArgument, "double free is rejected")
}

func Test_FixedSize_UpstreamExhausted(t *testing.T) {
	r, err := New(mr.NewHostBackingWithCapacity(4096), 1024, &Options{BlocksToPreallocate: 8})
	require.NoError(t, err)

	_, err = r.Allocate(1024, stream.Default)
	require.ErrorIs(t, err, mr.ErrOutOfMemory)
}

func Test_FixedSize_Release(t *testing.T) {
	backing := mr.NewHostBackingWithCapacity(64 << 10)
	r, err := New(backing, 256, &Options{BlocksToPreallocate: 128})
	require.NoError(t, err)

	blk, err := r.Allocate(256, stream.Default)
	require.NoError(t, err)
	require.ErrorIs(t, r.Release(), mr.ErrInvalidArgument)
	require.NoError(t, r.Deallocate(blk, stream.Default))
	require.NoError(t, r.Release())
	require.Zero(t, r.Chunks())

	// Upstream capacity is fully available again.
	whole, err := backing.Allocate(64<<10, stream.Default)
	require.NoError(t, err)
	require.NoError(t, backing.Deallocate(whole, stream.Default))
}

func Test_FixedSize_Equality(t *testing.T) {
	backing := mr.NewHostBackingWithCapacity(1 << 20)
	r1, err := New(backing, 256, nil)
	require.NoError(t, err)
	r2, err := New(backing, 256, nil)
	require.NoError(t, err)

	require.True(t, r1.IsEqual(r1))
	require.False(t, r1.IsEqual(r2))
	require.True(t, mr.Equal(r1.Upstream(), r2.Upstream()))
}
