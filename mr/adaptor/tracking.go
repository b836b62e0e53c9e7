package adaptor

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// TrackingOptions configures a Tracking adaptor.
type TrackingOptions struct {
	// CaptureStacks records the call stack of every allocation.
	CaptureStacks bool
}

// Allocation describes one outstanding block.
type Allocation struct {
	Addr   uintptr
	Size   int
	Stream stream.Stream
	Stack  string // Empty unless stacks are captured
}

// Tracking remembers every outstanding allocation and rejects frees of
// blocks it never handed out. It is safe for concurrent use.
type Tracking struct {
	up            mr.Resource
	captureStacks bool

	mu   sync.Mutex
	live map[uintptr]Allocation
}

// NewTracking wraps up. A nil opts captures no stacks.
func NewTracking(up mr.Resource, opts *TrackingOptions) *Tracking {
	t := &Tracking{up: up, live: make(map[uintptr]Allocation)}
	if opts != nil {
		t.captureStacks = opts.CaptureStacks
	}
	return t
}

// Allocate implements mr.Resource.
func (t *Tracking) Allocate(size int, s stream.Stream) (mr.Block, error) {
	b, err := t.up.Allocate(size, s)
	if err != nil || b.IsEmpty() {
		return b, err
	}
	a := Allocation{Addr: b.Addr(), Size: b.Size, Stream: s}
	if t.captureStacks {
		a.Stack = fmt.Sprintf("%+v", errors.New("allocated here"))
	}
	t.mu.Lock()
	t.live[a.Addr] = a
	t.mu.Unlock()
	return b, nil
}

// Deallocate implements mr.Resource. Unknown blocks and mismatched sizes
// fail with mr.ErrInvalidArgument before reaching upstream.
func (t *Tracking) Deallocate(b mr.Block, s stream.Stream) error {
	if b.IsEmpty() {
		return t.up.Deallocate(b, s)
	}
	t.mu.Lock()
	a, ok := t.live[b.Addr()]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: untracked block %#x", mr.ErrInvalidArgument, b.Addr())
	}
	if a.Size != b.Size {
		t.mu.Unlock()
		return fmt.Errorf("%w: block %#x allocated with %d bytes, freed with %d",
			mr.ErrInvalidArgument, b.Addr(), a.Size, b.Size)
	}
	delete(t.live, b.Addr())
	t.mu.Unlock()

	if err := t.up.Deallocate(b, s); err != nil {
		t.mu.Lock()
		t.live[a.Addr] = a
		t.mu.Unlock()
		return err
	}
	return nil
}

// IsEqual implements mr.Resource.
func (t *Tracking) IsEqual(other mr.Resource) bool {
	o, ok := other.(*Tracking)
	return ok && (o == t || mr.Equal(t.up, o.up))
}

// Upstream implements mr.Upstreamer.
func (t *Tracking) Upstream() mr.Resource {
	return t.up
}

// Outstanding returns the live allocations ordered by address.
func (t *Tracking) Outstanding() []Allocation {
	t.mu.Lock()
	out := make([]Allocation, 0, len(t.live))
	for _, a := range t.live {
		out = append(out, a)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// OutstandingBytes returns the total size of the live allocations.
func (t *Tracking) OutstandingBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	for _, a := range t.live {
		n += int64(a.Size)
	}
	return n
}

// Report describes every outstanding allocation, one per line, followed by
// its stack when captured.
func (t *Tracking) Report() string {
	live := t.Outstanding()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d outstanding allocations\n", len(live))
	for _, a := range live {
		fmt.Fprintf(&sb, "  %#x size=%d stream=%s\n", a.Addr, a.Size, a.Stream)
		if a.Stack != "" {
			sb.WriteString(a.Stack)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
