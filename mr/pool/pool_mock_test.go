package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/joshuapare/rmmkit/internal/mocks"
	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// Test_Pool_TrackerQueries verifies the pool records an event per free and
// only absorbs another stream's list once the tracker confirms it.
func Test_Pool_TrackerQueries(t *testing.T) {
	ctrl := gomock.NewController(t)
	tracker := mocks.NewMockTracker(ctrl)
	a, b, c := stream.New(), stream.New(), stream.New()
	evA := stream.Event{Stream: a}

	gomock.InOrder(
		tracker.EXPECT().Record(a).Return(evA),
		tracker.EXPECT().Query(evA).Return(false),
		tracker.EXPECT().Record(b).Return(stream.Event{Stream: b}),
		tracker.EXPECT().Query(evA).Return(true),
	)

	p, err := New(mr.NewHostBackingWithCapacity(8<<20), &Options{Tracker: tracker, MaximumSize: 8 << 20})
	require.NoError(t, err)

	blk, err := p.Allocate(4096, a)
	require.NoError(t, err)
	require.NoError(t, p.Deallocate(blk, a))

	other, err := p.Allocate(4096, b)
	require.NoError(t, err)
	require.NotEqual(t, blk.Addr(), other.Addr())
	require.NoError(t, p.Deallocate(other, b))

	// c has no list of its own; a's list is confirmed and comes first.
	reused, err := p.Allocate(4096, c)
	require.NoError(t, err)
	require.Equal(t, blk.Addr(), reused.Addr())
}
