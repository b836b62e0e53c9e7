package adaptor

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// Op identifies the call a Record describes.
type Op uint8

const (
	OpAllocate Op = iota
	OpAllocateFailure
	OpDeallocate
)

func (o Op) String() string {
	switch o {
	case OpAllocate:
		return "allocate"
	case OpAllocateFailure:
		return "allocate failure"
	case OpDeallocate:
		return "free"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Record is one logged call. Addr is zero for failed allocations.
type Record struct {
	Op     Op
	Addr   uintptr
	Size   int
	Stream stream.Stream
	Time   time.Time
}

// Sink receives records. Write must not call back into the logged resource.
type Sink interface {
	Write(rec Record)
}

// LoggingOptions configures a Logging adaptor.
type LoggingOptions struct {
	// Clock stamps records. Nil uses the wall clock.
	Clock clock.Clock
}

// Logging emits one Record per call to its sink. It never changes the
// outcome of a call.
type Logging struct {
	up    mr.Resource
	sink  Sink
	clock clock.Clock
}

// NewLogging wraps up, writing records to sink.
func NewLogging(up mr.Resource, sink Sink, opts *LoggingOptions) *Logging {
	l := &Logging{up: up, sink: sink, clock: clock.New()}
	if opts != nil && opts.Clock != nil {
		l.clock = opts.Clock
	}
	return l
}

// Allocate implements mr.Resource.
func (l *Logging) Allocate(size int, s stream.Stream) (mr.Block, error) {
	b, err := l.up.Allocate(size, s)
	rec := Record{Op: OpAllocate, Addr: b.Addr(), Size: size, Stream: s, Time: l.clock.Now()}
	if err != nil {
		rec.Op = OpAllocateFailure
		rec.Addr = 0
	}
	l.sink.Write(rec)
	return b, err
}

// Deallocate implements mr.Resource. The record is written before the
// block is handed back, while its address is still valid.
func (l *Logging) Deallocate(b mr.Block, s stream.Stream) error {
	l.sink.Write(Record{Op: OpDeallocate, Addr: b.Addr(), Size: b.Size, Stream: s, Time: l.clock.Now()})
	return l.up.Deallocate(b, s)
}

// IsEqual implements mr.Resource.
func (l *Logging) IsEqual(other mr.Resource) bool {
	o, ok := other.(*Logging)
	return ok && (o == l || mr.Equal(l.up, o.up))
}

// Upstream implements mr.Upstreamer.
func (l *Logging) Upstream() mr.Resource {
	return l.up
}
