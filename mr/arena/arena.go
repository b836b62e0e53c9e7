// Package arena implements a stream-ordered arena resource.
//
// Memory is reserved from upstream in chunks of whole superblocks held by a
// global arena. Every stream gets its own allocation context that takes
// superblocks from the global arena and sub-allocates inside them with first
// fit over freed spans, falling back to a bump region. Requests larger than
// half a superblock bypass the contexts and take runs of whole superblocks
// from the global arena.
//
// Coalescing is deferred. A block freed on its superblock's owning stream is
// reusable by that stream at once but is not merged. A block freed on any
// other stream is parked with an event until the event completes. Sweep, run
// every SweepInterval deallocations and on any allocation miss, confirms
// parked frees, merges free spans and hands wholly free superblocks back to
// the global arena once their last free has completed.
package arena

import (
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/joshuapare/rmmkit/internal/logging"
	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// Resource is an arena resource.
//
// Resource is not safe for concurrent use.
type Resource struct {
	upstream mr.Resource
	tracker  stream.Tracker
	log      *slog.Logger

	superblockSize    int
	maximumSize       int
	growthSuperblocks int
	sweepInterval     int

	chunks    []chunk
	arenaSize int
	global    globalArena

	arenas map[stream.Stream]*streamArena
	order  []stream.Stream

	live  map[uintptr]liveBlock
	frees int // Deallocations since the last sweep

	stats Stats

	// Test hook: called after a successful growth (nil in production)
	onGrow func(size int)
}

type chunk struct {
	blk    mr.Block
	stream stream.Stream
}

type liveBlock struct {
	size      int         // Aligned bytes carved
	requested int         // Bytes asked for
	sb        *superblock // Nil for large runs
	chunk     int
}

// Stats holds arena counters.
type Stats struct {
	GrowCalls           int
	GrowBytes           int64
	GrowFailures        int
	SuperblocksAcquired int // Taken from the global arena by stream contexts
	SuperblocksReturned int // Given back to the global arena by sweeps
	LargeAllocs         int
	DeferredFrees       int // Frees parked for event confirmation
	DeferredPromoted    int // Parked frees confirmed by sweeps
	Sweeps              int
	Coalesced           int // Span and run merges
}

// New returns an arena over upstream.
func New(upstream mr.Resource, opts *Options) (*Resource, error) {
	if upstream == nil {
		return nil, fmt.Errorf("%w: arena requires an upstream resource", mr.ErrConfiguration)
	}
	cfg, err := opts.resolve()
	if err != nil {
		return nil, err
	}

	r := &Resource{
		upstream:          upstream,
		tracker:           cfg.tracker,
		log:               logging.Or(cfg.logger),
		superblockSize:    cfg.superblockSize,
		maximumSize:       cfg.maximumSize,
		growthSuperblocks: cfg.growthSuperblocks,
		sweepInterval:     cfg.sweepInterval,
		arenas:            make(map[stream.Stream]*streamArena),
		live:              make(map[uintptr]liveBlock),
	}
	if cfg.initialSize > 0 {
		if err := r.reserve(cfg.initialSize, stream.Default); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Allocate implements mr.Resource.
func (r *Resource) Allocate(size int, s stream.Stream) (mr.Block, error) {
	if size == 0 {
		return mr.Block{}, nil
	}
	if size < 0 {
		return mr.Block{}, fmt.Errorf("%w: negative size %d", mr.ErrInvalidArgument, size)
	}
	if size > r.maximumSize {
		return mr.Block{}, fmt.Errorf("%w: size %d exceeds arena maximum %d", mr.ErrOutOfMemory, size, r.maximumSize)
	}
	need := mr.AlignSize(size)
	if need > r.superblockSize/2 {
		return r.allocateLarge(need, size, s)
	}

	sa := r.arena(s)
	p, sb, ok := sa.alloc(need)
	if !ok {
		r.Sweep()
		p, sb, ok = sa.alloc(need)
	}
	if !ok {
		var err error
		if sb, err = r.acquireSuperblock(sa, s); err != nil {
			return mr.Block{}, err
		}
		if p, ok = sb.alloc(need); !ok {
			return mr.Block{}, fmt.Errorf("%w: arena could not place %d bytes in a fresh superblock", mr.ErrOutOfMemory, need)
		}
	}

	r.live[uintptr(p)] = liveBlock{size: need, requested: size, sb: sb, chunk: sb.chunk}
	return mr.Block{Ptr: p, Size: size}, nil
}

func (r *Resource) allocateLarge(need, size int, s stream.Stream) (mr.Block, error) {
	runSize := r.roundUp(need)
	got, ok := r.global.take(runSize)
	if !ok {
		r.Sweep()
		got, ok = r.global.take(runSize)
	}
	if !ok {
		if err := r.grow(runSize, s); err != nil {
			return mr.Block{}, err
		}
		if got, ok = r.global.take(runSize); !ok {
			return mr.Block{}, fmt.Errorf("%w: arena could not place %d bytes after growth", mr.ErrOutOfMemory, runSize)
		}
	}

	r.stats.LargeAllocs++
	r.live[got.addr] = liveBlock{size: runSize, requested: size, chunk: got.chunk}
	return mr.Block{Ptr: got.ptr, Size: size}, nil
}

// Deallocate implements mr.Resource.
func (r *Resource) Deallocate(b mr.Block, s stream.Stream) error {
	if b.IsEmpty() {
		return nil
	}
	lb, ok := r.live[b.Addr()]
	if !ok {
		return fmt.Errorf("%w: arena does not own block %#x", mr.ErrInvalidArgument, b.Addr())
	}
	if lb.requested != b.Size {
		return fmt.Errorf("%w: block %#x allocated with %d bytes, freed with %d",
			mr.ErrInvalidArgument, b.Addr(), lb.requested, b.Size)
	}
	delete(r.live, b.Addr())

	switch {
	case lb.sb == nil:
		r.global.deferred = append(r.global.deferred, deferredRun{
			run:   run{addr: b.Addr(), ptr: b.Ptr, size: lb.size, chunk: lb.chunk},
			event: r.tracker.Record(s),
		})
		r.stats.DeferredFrees++
	case lb.sb.owner.stream == s:
		lb.sb.release(b.Addr(), lb.size)
		lb.sb.event = r.tracker.Record(s)
	default:
		owner := lb.sb.owner
		owner.deferred = append(owner.deferred, deferredBlock{
			addr:  b.Addr(),
			size:  lb.size,
			sb:    lb.sb,
			event: r.tracker.Record(s),
		})
		r.stats.DeferredFrees++
	}

	r.frees++
	if r.frees >= r.sweepInterval {
		r.Sweep()
	}
	return nil
}

// Sweep confirms deferred frees, coalesces free space and returns wholly
// free superblocks to the global arena.
func (r *Resource) Sweep() {
	promoted, returned, merges := 0, 0, 0

	for _, s := range r.order {
		sa := r.arenas[s]

		kept := sa.deferred[:0]
		for _, d := range sa.deferred {
			if r.tracker.Query(d.event) {
				d.sb.release(d.addr, d.size)
				promoted++
				continue
			}
			kept = append(kept, d)
		}
		clear(sa.deferred[len(kept):])
		sa.deferred = kept

		for i := 0; i < len(sa.superblocks); {
			sb := sa.superblocks[i]
			merges += sb.coalesce()
			if sb.used == 0 && r.tracker.Query(sb.event) {
				sa.remove(sb)
				merges += r.global.insert(sb.run)
				returned++
				continue
			}
			i++
		}
	}
	promoted += r.global.promote(r.tracker)

	r.frees = 0
	r.stats.Sweeps++
	r.stats.DeferredPromoted += promoted
	r.stats.SuperblocksReturned += returned
	r.stats.Coalesced += merges
	r.log.Debug("arena sweep", "promoted", promoted, "returned", returned, "merges", merges,
		"global_free", r.global.freeBytes())
}

// IsEqual implements mr.Resource. An arena is only equal to itself.
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
		return fmt.Errorf("%w: arena release with %d blocks still allocated", mr.ErrInvalidArgument, n)
	}
	var err error
	for _, c := range r.chunks {
		err = multierr.Append(err, r.upstream.Deallocate(c.blk, c.stream))
	}
	r.log.Debug("arena release", "chunks", len(r.chunks), "bytes", r.arenaSize)
	r.chunks = nil
	r.arenaSize = 0
	r.global = globalArena{}
	r.arenas = make(map[stream.Stream]*streamArena)
	r.order = nil
	return err
}

// SuperblockSize returns the superblock size in bytes.
func (r *Resource) SuperblockSize() int {
	return r.superblockSize
}

// ArenaSize returns the bytes reserved from upstream.
func (r *Resource) ArenaSize() int {
	return r.arenaSize
}

// GlobalFreeBytes returns the bytes held free by the global arena.
func (r *Resource) GlobalFreeBytes() int {
	return r.global.freeBytes()
}

// GlobalDeferredBytes returns the bytes of large runs awaiting confirmation.
func (r *Resource) GlobalDeferredBytes() int {
	return r.global.deferredBytes()
}

// Superblocks returns the number of superblocks owned by the context of s.
func (r *Resource) Superblocks(s stream.Stream) int {
	if sa, ok := r.arenas[s]; ok {
		return len(sa.superblocks)
	}
	return 0
}

// DeferredBlocks returns the number of blocks of the context of s awaiting
// confirmation of a free on another stream.
func (r *Resource) DeferredBlocks(s stream.Stream) int {
	if sa, ok := r.arenas[s]; ok {
		return len(sa.deferred)
	}
	return 0
}

// AllocatedBlocks returns the number of live blocks.
func (r *Resource) AllocatedBlocks() int {
	return len(r.live)
}

// Stats returns a copy of the arena counters.
func (r *Resource) Stats() Stats {
	return r.stats
}

func (r *Resource) arena(s stream.Stream) *streamArena {
	sa, ok := r.arenas[s]
	if !ok {
		sa = &streamArena{stream: s}
		r.arenas[s] = sa
		r.order = append(r.order, s)
	}
	return sa
}

// acquireSuperblock hands a superblock from the global arena to sa, growing
// once if the global arena is empty.
func (r *Resource) acquireSuperblock(sa *streamArena, s stream.Stream) (*superblock, error) {
	got, ok := r.global.take(r.superblockSize)
	if !ok {
		if err := r.grow(r.superblockSize, s); err != nil {
			return nil, err
		}
		if got, ok = r.global.take(r.superblockSize); !ok {
			return nil, fmt.Errorf("%w: arena could not place a superblock after growth", mr.ErrOutOfMemory)
		}
	}
	sb := &superblock{run: got, owner: sa}
	sa.superblocks = append(sa.superblocks, sb)
	r.stats.SuperblocksAcquired++
	return sb, nil
}

// grow makes one upstream request of at least need bytes.
func (r *Resource) grow(need int, s stream.Stream) error {
	remaining := r.maximumSize - r.arenaSize
	if need > remaining {
		r.stats.GrowFailures++
		return fmt.Errorf("%w: arena needs %d bytes but only %d of maximum %d remain",
			mr.ErrOutOfMemory, need, remaining, r.maximumSize)
	}
	size := max(need, r.superblockSize*r.growthSuperblocks)
	size = min(size, remaining)
	if err := r.reserve(size, s); err != nil {
		r.stats.GrowFailures++
		return err
	}
	return nil
}

func (r *Resource) reserve(size int, s stream.Stream) error {
	blk, err := r.upstream.Allocate(size, s)
	if err != nil {
		r.log.Debug("arena grow failed", "bytes", size, "arena_size", r.arenaSize, "err", err)
		return fmt.Errorf("%w: arena growth of %d bytes: %w", mr.ErrOutOfMemory, size, err)
	}
	id := len(r.chunks)
	r.chunks = append(r.chunks, chunk{blk: blk, stream: s})
	r.arenaSize += size
	r.stats.GrowCalls++
	r.stats.GrowBytes += int64(size)
	r.global.insert(run{addr: blk.Addr(), ptr: blk.Ptr, size: size, chunk: id})
	r.log.Debug("arena grow", "bytes", size, "arena_size", r.arenaSize, "stream", s.String())

	if r.onGrow != nil {
		r.onGrow(size)
	}
	return nil
}

// roundUp rounds n up to whole superblocks. n must not exceed the maximum
// size, which is itself whole superblocks.
func (r *Resource) roundUp(n int) int {
	if rem := n % r.superblockSize; rem != 0 {
		n += r.superblockSize - rem
	}
	return n
}
