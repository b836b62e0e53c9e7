package adaptor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

func Test_Tracking_Outstanding(t *testing.T) {
	tr := NewTracking(mr.NewHostBackingWithCapacity(1<<20), nil)
	s := stream.New()

	a, err := tr.Allocate(100, s)
	require.NoError(t, err)
	b, err := tr.Allocate(300, stream.Default)
	require.NoError(t, err)

	live := tr.Outstanding()
	require.Len(t, live, 2)
	require.Equal(t, int64(400), tr.OutstandingBytes())
	for _, alloc := range live {
		require.Empty(t, alloc.Stack)
	}

	require.NoError(t, tr.Deallocate(a, s))
	live = tr.Outstanding()
	require.Len(t, live, 1)
	require.Equal(t, Allocation{Addr: b.Addr(), Size: 300, Stream: stream.Default}, live[0])

	report := tr.Report()
	assert.Contains(t, report, "1 outstanding allocations")
	assert.Contains(t, report, "size=300 stream=default")

	require.NoError(t, tr.Deallocate(b, stream.Default))
	require.Empty(t, tr.Outstanding())
}

func Test_Tracking_RejectsUnknown(t *testing.T) {
	backing := mr.NewHostBackingWithCapacity(1 << 20)
	tr := NewTracking(backing, nil)

	direct, err := backing.Allocate(256, stream.Default)
	require.NoError(t, err)
	require.ErrorIs(t, tr.Deallocate(direct, stream.Default), mr.ErrInvalidArgument)

	blk, err := tr.Allocate(256, stream.Default)
	require.NoError(t, err)
	require.ErrorIs(t, tr.Deallocate(mr.Block{Ptr: blk.Ptr, Size: 128}, stream.Default), mr.ErrInvalidArgument)
	require.Len(t, tr.Outstanding(), 1)
	require.NoError(t, tr.Deallocate(blk, stream.Default))
	require.NoError(t, backing.Deallocate(direct, stream.Default))
}

func Test_Tracking_KeepsBlockOnUpstreamFailure(t *testing.T) {
	backing := mr.NewHostBackingWithCapacity(1 << 20)
	failFree := true
	up := mr.NewCallback(backing.Allocate, func(b mr.Block, s stream.Stream) error {
		if failFree {
			return errors.New("busy")
		}
		return backing.Deallocate(b, s)
	})
	tr := NewTracking(up, nil)

	blk, err := tr.Allocate(256, stream.Default)
	require.NoError(t, err)
	require.Error(t, tr.Deallocate(blk, stream.Default))
	require.Len(t, tr.Outstanding(), 1)

	failFree = false
	require.NoError(t, tr.Deallocate(blk, stream.Default))
	require.Empty(t, tr.Outstanding())
}

func Test_Tracking_Stacks(t *testing.T) {
	tr := NewTracking(mr.NewHostBackingWithCapacity(1<<20), &TrackingOptions{CaptureStacks: true})

	blk, err := tr.Allocate(256, stream.Default)
	require.NoError(t, err)

	live := tr.Outstanding()
	require.Len(t, live, 1)
	assert.Contains(t, live[0].Stack, "allocated here")
	assert.Contains(t, live[0].Stack, "Test_Tracking_Stacks")
	assert.Contains(t, tr.Report(), "Test_Tracking_Stacks")
	require.NoError(t, tr.Deallocate(blk, stream.Default))
}
