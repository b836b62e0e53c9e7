package adaptor

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/joshuapare/rmmkit/internal/align"
	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// LimitingOptions configures a Limiting adaptor.
type LimitingOptions struct {
	// Alignment rounds every size before it is counted. Zero uses
	// mr.Alignment. Must be a power of two.
	Alignment int
}

// Limiting rejects any allocation that would push the outstanding bytes
// past a ceiling. The counter is atomic, so the adaptor itself is safe for
// concurrent use.
type Limiting struct {
	up        mr.Resource
	limit     int64
	alignment int
	allocated atomic.Int64
}

// NewLimiting wraps up with a ceiling of limit bytes.
func NewLimiting(up mr.Resource, limit int64, opts *LimitingOptions) *Limiting {
	l := &Limiting{up: up, limit: limit, alignment: mr.Alignment}
	if opts != nil && align.IsPow2(opts.Alignment) {
		l.alignment = opts.Alignment
	}
	return l
}

// Allocate implements mr.Resource. Requests over the ceiling fail with
// mr.ErrOutOfMemory without reaching upstream.
func (l *Limiting) Allocate(size int, s stream.Stream) (mr.Block, error) {
	if size == 0 {
		return mr.Block{}, nil
	}
	if size < 0 {
		return mr.Block{}, fmt.Errorf("%w: negative size %d", mr.ErrInvalidArgument, size)
	}
	if size > math.MaxInt&^(l.alignment-1) {
		return mr.Block{}, fmt.Errorf("%w: size %d cannot be counted against the limit", mr.ErrOutOfMemory, size)
	}
	n := int64(align.Up(size, l.alignment))
	for {
		cur := l.allocated.Load()
		if n > l.limit-cur {
			return mr.Block{}, fmt.Errorf("%w: limit of %d bytes reached (%d allocated, %d requested)",
				mr.ErrOutOfMemory, l.limit, cur, n)
		}
		if l.allocated.CompareAndSwap(cur, cur+n) {
			break
		}
	}
	b, err := l.up.Allocate(size, s)
	if err != nil {
		l.allocated.Add(-n)
		return mr.Block{}, err
	}
	return b, nil
}

// Deallocate implements mr.Resource.
func (l *Limiting) Deallocate(b mr.Block, s stream.Stream) error {
	if err := l.up.Deallocate(b, s); err != nil || b.IsEmpty() {
		return err
	}
	l.allocated.Add(-int64(align.Up(b.Size, l.alignment)))
	return nil
}

// IsEqual implements mr.Resource.
func (l *Limiting) IsEqual(other mr.Resource) bool {
	o, ok := other.(*Limiting)
	return ok && (o == l || mr.Equal(l.up, o.up))
}

// Upstream implements mr.Upstreamer.
func (l *Limiting) Upstream() mr.Resource {
	return l.up
}

// AllocatedBytes returns the aligned bytes currently outstanding.
func (l *Limiting) AllocatedBytes() int64 {
	return l.allocated.Load()
}

// Limit returns the ceiling in bytes.
func (l *Limiting) Limit() int64 {
	return l.limit
}
