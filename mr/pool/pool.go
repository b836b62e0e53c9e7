package pool

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"go.uber.org/multierr"

	"github.com/joshuapare/rmmkit/internal/logging"
	"github.com/joshuapare/rmmkit/internal/sizeclass"
	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// Resource is a coalescing, stream-ordered pool. It grows by reserving large
// chunks from its upstream and serves best-fit sub-allocations from per-stream
// free lists.
//
// Resource is not safe for concurrent use.
type Resource struct {
	upstream mr.Resource
	tracker  stream.Tracker
	log      *slog.Logger

	sizeTable    *sizeclass.Table
	growthFactor float64
	maximumSize  int

	chunks   []chunk
	poolSize int

	// Per-stream free lists. order keeps stream creation order so that
	// cross-stream lookups are deterministic.
	lists map[stream.Stream]*streamList
	order []stream.Stream

	// allocated indexes live blocks by start address.
	allocated map[uintptr]liveBlock

	// Pool for reusing freeBlock structs
	blockPool sync.Pool

	stats Stats

	// Test hook: called after a successful growth (nil in production)
	onGrow func(size int)
}

// chunk is one upstream reservation.
type chunk struct {
	blk    mr.Block
	stream stream.Stream // Stream the chunk was reserved on, used to release it
	live   bool
}

// liveBlock describes an allocated block.
type liveBlock struct {
	size      int // Bytes taken from the free list (aligned, maybe absorbed remainder)
	requested int // Bytes the caller asked for
	chunk     int
}

// Stats holds pool counters for tests and instrumentation.
type Stats struct {
	GrowCalls        int   // Successful upstream growths
	GrowBytes        int64 // Total bytes reserved from upstream
	GrowFailures     int   // Upstream growths that failed or would exceed the maximum
	AllocCalls       int   // Total Allocate() calls with a non-zero size
	AllocFastPath    int   // Served from the calling stream's own list
	AllocStreamPath  int   // Served after absorbing another stream's list
	AllocSlowPath    int   // Served after growing
	FreeCalls        int   // Total Deallocate() calls with a non-empty block
	BytesAllocated   int64 // Total bytes handed out (aligned)
	BytesFreed       int64 // Total bytes returned (aligned)
	SplitCount       int   // Number of block splits
	CoalesceForward  int   // Merges with the following free block
	CoalesceBackward int   // Merges with the preceding free block
	StreamAbsorbs    int   // Free lists absorbed from other streams
}

// New returns a pool over upstream. A nil opts uses the defaults described on
// Options.
func New(upstream mr.Resource, opts *Options) (*Resource, error) {
	if upstream == nil {
		return nil, fmt.Errorf("%w: pool requires an upstream resource", mr.ErrConfiguration)
	}
	cfg, err := opts.resolve()
	if err != nil {
		return nil, err
	}

	p := &Resource{
		upstream:     upstream,
		tracker:      cfg.tracker,
		log:          logging.Or(cfg.logger),
		sizeTable:    sizeclass.NewTable(cfg.sizeClasses),
		growthFactor: cfg.growthFactor,
		maximumSize:  cfg.maximumSize,
		lists:        make(map[stream.Stream]*streamList),
		allocated:    make(map[uintptr]liveBlock, 256),
		blockPool: sync.Pool{
			New: func() any {
				return &freeBlock{}
			},
		},
	}

	if cfg.initialSize > 0 {
		if err := p.reserve(cfg.initialSize, stream.Default); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Allocate implements mr.Resource.
func (p *Resource) Allocate(size int, s stream.Stream) (mr.Block, error) {
	if size == 0 {
		return mr.Block{}, nil
	}
	if size < 0 {
		return mr.Block{}, fmt.Errorf("%w: negative size %d", mr.ErrInvalidArgument, size)
	}
	if size > mr.MaxSize {
		return mr.Block{}, fmt.Errorf("%w: size %d exceeds the largest allocatable size", mr.ErrOutOfMemory, size)
	}
	p.stats.AllocCalls++
	need := mr.AlignSize(size)
	list := p.list(s)

	b := list.take(need)
	if b != nil {
		p.stats.AllocFastPath++
	} else if b = p.takeFromOtherStream(list, s, need); b != nil {
		p.stats.AllocStreamPath++
	} else {
		if err := p.grow(need, s); err != nil {
			return mr.Block{}, err
		}
		b = list.take(need)
		if b == nil {
			return mr.Block{}, fmt.Errorf("%w: pool could not place %d bytes after growth", mr.ErrOutOfMemory, need)
		}
		p.stats.AllocSlowPath++
	}

	if rem := b.size - need; rem >= mr.Alignment {
		// Split: allocate head, return tail to the stream's list
		p.stats.SplitCount++
		tail := p.newFreeBlock(b.addr+uintptr(need), unsafe.Add(b.ptr, need), rem, b.chunk)
		b.size = need
		list.insert(tail)
	}

	blk := mr.Block{Ptr: b.ptr, Size: size}
	p.allocated[b.addr] = liveBlock{size: b.size, requested: size, chunk: b.chunk}
	p.stats.BytesAllocated += int64(b.size)
	p.blockPool.Put(b)
	return blk, nil
}

// Deallocate implements mr.Resource. The block joins the free list of s and
// only becomes reusable on other streams once the event recorded here
// completes.
func (p *Resource) Deallocate(b mr.Block, s stream.Stream) error {
	if b.IsEmpty() {
		return nil
	}
	live, ok := p.allocated[b.Addr()]
	if !ok {
		return fmt.Errorf("%w: pool does not own block %#x", mr.ErrInvalidArgument, b.Addr())
	}
	if live.requested != b.Size {
		return fmt.Errorf("%w: block %#x allocated with %d bytes, freed with %d",
			mr.ErrInvalidArgument, b.Addr(), live.requested, b.Size)
	}
	delete(p.allocated, b.Addr())
	p.stats.FreeCalls++
	p.stats.BytesFreed += int64(live.size)

	list := p.list(s)
	list.insert(p.newFreeBlock(b.Addr(), b.Ptr, live.size, live.chunk))
	list.event = p.tracker.Record(s)
	return nil
}

// IsEqual implements mr.Resource. A pool is only equal to itself.
func (p *Resource) IsEqual(other mr.Resource) bool {
	o, ok := other.(*Resource)
	return ok && o == p
}

// Upstream implements mr.Upstreamer.
func (p *Resource) Upstream() mr.Resource {
	return p.upstream
}

// Release returns every chunk to upstream. It fails with
// mr.ErrInvalidArgument while blocks are still allocated.
func (p *Resource) Release() error {
	if n := len(p.allocated); n > 0 {
		return fmt.Errorf("%w: pool release with %d blocks still allocated", mr.ErrInvalidArgument, n)
	}
	var err error
	for i := range p.chunks {
		c := &p.chunks[i]
		if !c.live {
			continue
		}
		err = multierr.Append(err, p.upstream.Deallocate(c.blk, c.stream))
		c.live = false
	}
	p.log.Debug("pool release", "chunks", len(p.chunks), "bytes", p.poolSize)
	p.chunks = nil
	p.poolSize = 0
	p.lists = make(map[stream.Stream]*streamList)
	p.order = nil
	return err
}

// PoolSize returns the bytes currently reserved from upstream.
func (p *Resource) PoolSize() int {
	return p.poolSize
}

// MaximumSize returns the growth ceiling in bytes.
func (p *Resource) MaximumSize() int {
	return p.maximumSize
}

// FreeBytes returns the bytes in the free list of s.
func (p *Resource) FreeBytes(s stream.Stream) int {
	if l, ok := p.lists[s]; ok {
		return l.bytes
	}
	return 0
}

// FreeBlocks returns the number of free blocks in the list of s.
func (p *Resource) FreeBlocks(s stream.Stream) int {
	if l, ok := p.lists[s]; ok {
		return l.count()
	}
	return 0
}

// AllocatedBlocks returns the number of live blocks.
func (p *Resource) AllocatedBlocks() int {
	return len(p.allocated)
}

// Stats returns a copy of the pool counters.
func (p *Resource) Stats() Stats {
	return p.stats
}

// ============================================================================
// Internal helpers
// ============================================================================

func (p *Resource) list(s stream.Stream) *streamList {
	l, ok := p.lists[s]
	if !ok {
		l = newStreamList(p.sizeTable, &p.stats, &p.blockPool)
		p.lists[s] = l
		p.order = append(p.order, s)
	}
	return l
}

// takeFromOtherStream absorbs the free list of another stream whose last free
// has completed and which holds a fitting block, then takes from the merged
// list. Lists whose event is still pending are never touched.
func (p *Resource) takeFromOtherStream(list *streamList, s stream.Stream, need int) *freeBlock {
	for _, other := range p.order {
		if other == s {
			continue
		}
		ol := p.lists[other]
		if ol.count() == 0 || ol.find(need) == nil {
			continue
		}
		if !p.tracker.Query(ol.event) {
			continue
		}
		p.stats.StreamAbsorbs++
		list.absorb(ol)
		return list.take(need)
	}
	return nil
}

// grow makes one attempt to reserve a chunk big enough for need.
func (p *Resource) grow(need int, s stream.Stream) error {
	remaining := p.maximumSize - p.poolSize
	if need > remaining {
		p.stats.GrowFailures++
		return fmt.Errorf("%w: pool needs %d bytes but only %d of maximum %d remain",
			mr.ErrOutOfMemory, need, remaining, p.maximumSize)
	}
	size := remaining
	if grown := p.growthFactor * float64(p.poolSize); grown < float64(remaining) {
		size = min(max(need, mr.AlignSize(int(grown))), remaining)
	}

	if err := p.reserve(size, s); err != nil {
		p.stats.GrowFailures++
		return err
	}
	return nil
}

// reserve takes size bytes from upstream and frees them into the list of s.
func (p *Resource) reserve(size int, s stream.Stream) error {
	blk, err := p.upstream.Allocate(size, s)
	if err != nil {
		p.log.Debug("pool grow failed", "bytes", size, "pool_size", p.poolSize, "stream", s.String(), "err", err)
		return fmt.Errorf("%w: pool growth of %d bytes: %w", mr.ErrOutOfMemory, size, err)
	}

	id := len(p.chunks)
	p.chunks = append(p.chunks, chunk{blk: blk, stream: s, live: true})
	p.poolSize += size
	p.stats.GrowCalls++
	p.stats.GrowBytes += int64(size)

	p.list(s).insert(p.newFreeBlock(blk.Addr(), blk.Ptr, size, id))
	p.log.Debug("pool grow", "bytes", size, "pool_size", p.poolSize, "chunks", len(p.chunks), "stream", s.String())

	if p.onGrow != nil {
		p.onGrow(size)
	}
	return nil
}

func (p *Resource) newFreeBlock(addr uintptr, ptr unsafe.Pointer, size, chunk int) *freeBlock {
	b := p.blockPool.Get().(*freeBlock) //nolint:errcheck // pool only holds *freeBlock
	*b = freeBlock{addr: addr, ptr: ptr, size: size, chunk: chunk, heapIndex: -1}
	return b
}
