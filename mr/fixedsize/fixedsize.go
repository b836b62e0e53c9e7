// Package fixedsize implements a resource that serves blocks of one size.
//
// Blocks are carved from upstream chunks holding BlocksToPreallocate blocks
// each. Freed blocks go onto a per-stream stack: the freeing stream reuses
// them at once, other streams only after the event recorded at the last free
// on that stream has completed.
package fixedsize

import (
	"fmt"
	"log/slog"
	"unsafe"

	"go.uber.org/multierr"

	"github.com/joshuapare/rmmkit/internal/logging"
	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// DefaultBlocksToPreallocate is the number of blocks per upstream chunk.
const DefaultBlocksToPreallocate = 128

// Options configures a fixed-size resource. Nil uses the defaults.
type Options struct {
	// BlocksToPreallocate is the number of blocks reserved per upstream
	// request. Zero uses DefaultBlocksToPreallocate.
	BlocksToPreallocate int

	// Tracker gates cross-stream reuse. Nil uses stream.Immediate.
	Tracker stream.Tracker

	// Logger receives growth records. Nil uses the package-wide debug logger.
	Logger *slog.Logger
}

// Resource serves blocks of exactly BlockSize bytes.
//
// Resource is not safe for concurrent use.
type Resource struct {
	upstream  mr.Resource
	tracker   stream.Tracker
	log       *slog.Logger
	blockSize int
	perChunk  int

	chunks []chunk
	stacks map[stream.Stream]*freeStack
	order  []stream.Stream
	live   map[uintptr]int // Start address -> requested size
}

type chunk struct {
	blk    mr.Block
	stream stream.Stream
}

// freeStack holds the blocks last freed on one stream.
type freeStack struct {
	ptrs  []unsafe.Pointer
	event stream.Event
}

// New returns a resource serving blockSize-byte blocks from upstream.
// blockSize is rounded up to mr.Alignment.
func New(upstream mr.Resource, blockSize int, opts *Options) (*Resource, error) {
	if upstream == nil {
		return nil, fmt.Errorf("%w: fixed-size resource requires an upstream", mr.ErrConfiguration)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: block size %d must be positive", mr.ErrConfiguration, blockSize)
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.BlocksToPreallocate < 0 {
		return nil, fmt.Errorf("%w: blocks to preallocate %d must not be negative", mr.ErrConfiguration, opts.BlocksToPreallocate)
	}

	r := &Resource{
		upstream:  upstream,
		tracker:   opts.Tracker,
		log:       logging.Or(opts.Logger),
		blockSize: mr.AlignSize(blockSize),
		perChunk:  opts.BlocksToPreallocate,
		stacks:    make(map[stream.Stream]*freeStack),
		live:      make(map[uintptr]int),
	}
	if r.tracker == nil {
		r.tracker = stream.Immediate{}
	}
	if r.perChunk == 0 {
		r.perChunk = DefaultBlocksToPreallocate
	}
	return r, nil
}

// BlockSize returns the size of every block served.
func (r *Resource) BlockSize() int {
	return r.blockSize
}

// Allocate implements mr.Resource. Requests larger than BlockSize fail with
// mr.ErrInvalidArgument.
func (r *Resource) Allocate(size int, s stream.Stream) (mr.Block, error) {
	if size == 0 {
		return mr.Block{}, nil
	}
	if size < 0 || size > r.blockSize {
		return mr.Block{}, fmt.Errorf("%w: size %d outside fixed block size %d",
			mr.ErrInvalidArgument, size, r.blockSize)
	}

	st := r.stack(s)
	if len(st.ptrs) == 0 && !r.absorbCompleted(st, s) {
		if err := r.grow(st, s); err != nil {
			return mr.Block{}, err
		}
	}

	ptr := st.ptrs[len(st.ptrs)-1]
	st.ptrs = st.ptrs[:len(st.ptrs)-1]
	r.live[uintptr(ptr)] = size
	return mr.Block{Ptr: ptr, Size: size}, nil
}

// Deallocate implements mr.Resource.
func (r *Resource) Deallocate(b mr.Block, s stream.Stream) error {
	if b.IsEmpty() {
		return nil
	}
	requested, ok := r.live[b.Addr()]
	if !ok {
		return fmt.Errorf("%w: fixed-size resource does not own block %#x", mr.ErrInvalidArgument, b.Addr())
	}
	if requested != b.Size {
		return fmt.Errorf("%w: block %#x allocated with %d bytes, freed with %d",
			mr.ErrInvalidArgument, b.Addr(), requested, b.Size)
	}
	delete(r.live, b.Addr())

	st := r.stack(s)
	st.ptrs = append(st.ptrs, b.Ptr)
	st.event = r.tracker.Record(s)
	return nil
}

// IsEqual implements mr.Resource.
func (r *Resource) IsEqual(other mr.Resource) bool {
	o, ok := other.(*Resource)
	return ok && o == r
}

// Upstream implements mr.Upstreamer.
func (r *Resource) Upstream() mr.Resource {
	return r.upstream
}

// Release returns every chunk to upstream. It fails with
// mr.ErrInvalidArgument while blocks are still allocated.
func (r *Resource) Release() error {
	if n := len(r.live); n > 0 {
		return fmt.Errorf("%w: fixed-size release with %d blocks still allocated", mr.ErrInvalidArgument, n)
	}
	var err error
	for _, c := range r.chunks {
		err = multierr.Append(err, r.upstream.Deallocate(c.blk, c.stream))
	}
	r.chunks = nil
	r.stacks = make(map[stream.Stream]*freeStack)
	r.order = nil
	return err
}

// FreeBlocks returns the number of free blocks on the stack of s.
func (r *Resource) FreeBlocks(s stream.Stream) int {
	if st, ok := r.stacks[s]; ok {
		return len(st.ptrs)
	}
	return 0
}

// Chunks returns the number of upstream chunks held.
func (r *Resource) Chunks() int {
	return len(r.chunks)
}

func (r *Resource) stack(s stream.Stream) *freeStack {
	st, ok := r.stacks[s]
	if !ok {
		st = &freeStack{}
		r.stacks[s] = st
		r.order = append(r.order, s)
	}
	return st
}

// absorbCompleted moves the blocks of the first other stream whose last free
// has completed onto st.
func (r *Resource) absorbCompleted(st *freeStack, s stream.Stream) bool {
	for _, other := range r.order {
		if other == s {
			continue
		}
		o := r.stacks[other]
		if len(o.ptrs) == 0 || !r.tracker.Query(o.event) {
			continue
		}
		st.ptrs = append(st.ptrs, o.ptrs...)
		o.ptrs = o.ptrs[:0]
		return true
	}
	return false
}

// grow makes one upstream request for a chunk and pushes its blocks onto st.
func (r *Resource) grow(st *freeStack, s stream.Stream) error {
	size := r.blockSize * r.perChunk
	blk, err := r.upstream.Allocate(size, s)
	if err != nil {
		return fmt.Errorf("%w: fixed-size chunk of %d bytes: %w", mr.ErrOutOfMemory, size, err)
	}
	r.chunks = append(r.chunks, chunk{blk: blk, stream: s})

	// Push in reverse so blocks are handed out in address order.
	for i := r.perChunk - 1; i >= 0; i-- {
		st.ptrs = append(st.ptrs, unsafe.Add(blk.Ptr, i*r.blockSize))
	}
	r.log.Debug("fixed-size grow", "block_size", r.blockSize, "blocks", r.perChunk, "chunks", len(r.chunks), "stream", s.String())
	return nil
}
