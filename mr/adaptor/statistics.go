package adaptor

import (
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// Counter tracks one quantity.
type Counter struct {
	Current int64 // Outstanding now
	Peak    int64 // Highest Current seen
	Total   int64 // Sum of every increment
}

func (c *Counter) add(n int64) {
	c.Current += n
	c.Total += n
	if c.Current > c.Peak {
		c.Peak = c.Current
	}
}

func (c *Counter) sub(n int64) {
	c.Current -= n
}

// merge folds an inner window into c.
func (c *Counter) merge(inner Counter) {
	c.Peak = max(c.Peak, c.Current+inner.Peak)
	c.Current += inner.Current
	c.Total += inner.Total
}

// Snapshot is a point-in-time copy of the statistics counters.
type Snapshot struct {
	Bytes       Counter
	Allocations Counter
}

// String formats the snapshot with digit grouping.
func (s Snapshot) String() string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("bytes: current %d, peak %d, total %d; allocations: current %d, peak %d, total %d",
		s.Bytes.Current, s.Bytes.Peak, s.Bytes.Total,
		s.Allocations.Current, s.Allocations.Peak, s.Allocations.Total)
}

// Statistics counts the bytes and allocations passing through it. Sizes are
// the requested sizes. Failed calls are not counted.
//
// The counters are guarded by their own mutex; the upstream is called
// outside it.
type Statistics struct {
	up mr.Resource

	mu     sync.Mutex
	frames []Snapshot // frames[len-1] is the active window
}

// NewStatistics wraps up.
func NewStatistics(up mr.Resource) *Statistics {
	return &Statistics{up: up, frames: make([]Snapshot, 1, 4)}
}

// Allocate implements mr.Resource.
func (st *Statistics) Allocate(size int, s stream.Stream) (mr.Block, error) {
	b, err := st.up.Allocate(size, s)
	if err != nil || b.IsEmpty() {
		return b, err
	}
	st.mu.Lock()
	top := &st.frames[len(st.frames)-1]
	top.Bytes.add(int64(b.Size))
	top.Allocations.add(1)
	st.mu.Unlock()
	return b, nil
}

// Deallocate implements mr.Resource.
func (st *Statistics) Deallocate(b mr.Block, s stream.Stream) error {
	if err := st.up.Deallocate(b, s); err != nil || b.IsEmpty() {
		return err
	}
	st.mu.Lock()
	top := &st.frames[len(st.frames)-1]
	top.Bytes.sub(int64(b.Size))
	top.Allocations.sub(1)
	st.mu.Unlock()
	return nil
}

// IsEqual implements mr.Resource.
func (st *Statistics) IsEqual(other mr.Resource) bool {
	o, ok := other.(*Statistics)
	return ok && (o == st || mr.Equal(st.up, o.up))
}

// Upstream implements mr.Upstreamer.
func (st *Statistics) Upstream() mr.Resource {
	return st.up
}

// Snapshot returns the counters of the active window.
func (st *Statistics) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.frames[len(st.frames)-1]
}

// PushCounters opens a new measurement window with zeroed counters and
// returns the counters of the window it suspends.
func (st *Statistics) PushCounters() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	prev := st.frames[len(st.frames)-1]
	st.frames = append(st.frames, Snapshot{})
	return prev
}

// PopCounters closes the active window, folds it into the enclosing one and
// returns the closed window's counters. It returns false when no window was
// pushed.
func (st *Statistics) PopCounters() (Snapshot, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.frames) == 1 {
		return Snapshot{}, false
	}
	top := st.frames[len(st.frames)-1]
	st.frames = st.frames[:len(st.frames)-1]
	outer := &st.frames[len(st.frames)-1]
	outer.Bytes.merge(top.Bytes)
	outer.Allocations.merge(top.Allocations)
	return top, true
}
