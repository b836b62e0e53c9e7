package arena

import (
	"sort"
	"unsafe"

	"github.com/joshuapare/rmmkit/stream"
)

// run is a contiguous range of whole superblocks inside one upstream chunk.
type run struct {
	addr  uintptr
	ptr   unsafe.Pointer
	size  int
	chunk int
}

func (r run) end() uintptr {
	return r.addr + uintptr(r.size)
}

// deferredRun is a run freed on a stream whose free has not been confirmed.
type deferredRun struct {
	run
	event stream.Event
}

// globalArena holds the superblock runs not owned by any stream context.
// Free runs are kept in address order and merged with neighbours from the
// same chunk on insert.
type globalArena struct {
	free     []run
	deferred []deferredRun
}

// insert adds r to the free runs, coalescing with its neighbours.
func (g *globalArena) insert(r run) (merged int) {
	i := sort.Search(len(g.free), func(i int) bool { return g.free[i].addr > r.addr })

	if i > 0 {
		prev := &g.free[i-1]
		if prev.end() == r.addr && prev.chunk == r.chunk {
			prev.size += r.size
			merged++
			if i < len(g.free) {
				next := g.free[i]
				if prev.end() == next.addr && next.chunk == prev.chunk {
					prev.size += next.size
					g.free = append(g.free[:i], g.free[i+1:]...)
					merged++
				}
			}
			return merged
		}
	}
	if i < len(g.free) {
		next := &g.free[i]
		if r.end() == next.addr && r.chunk == next.chunk {
			next.addr, next.ptr = r.addr, r.ptr
			next.size += r.size
			return 1
		}
	}

	g.free = append(g.free, run{})
	copy(g.free[i+1:], g.free[i:])
	g.free[i] = r
	return 0
}

// take removes the first run of at least size bytes, splitting off the rest.
func (g *globalArena) take(size int) (run, bool) {
	for i := range g.free {
		f := &g.free[i]
		if f.size < size {
			continue
		}
		out := run{addr: f.addr, ptr: f.ptr, size: size, chunk: f.chunk}
		if f.size == size {
			g.free = append(g.free[:i], g.free[i+1:]...)
		} else {
			f.addr += uintptr(size)
			f.ptr = unsafe.Add(f.ptr, size)
			f.size -= size
		}
		return out, true
	}
	return run{}, false
}

// promote moves deferred runs whose events completed into the free runs.
func (g *globalArena) promote(tracker stream.Tracker) (promoted int) {
	kept := g.deferred[:0]
	for _, d := range g.deferred {
		if tracker.Query(d.event) {
			g.insert(d.run)
			promoted++
			continue
		}
		kept = append(kept, d)
	}
	clear(g.deferred[len(kept):])
	g.deferred = kept
	return promoted
}

func (g *globalArena) freeBytes() int {
	n := 0
	for _, f := range g.free {
		n += f.size
	}
	return n
}

func (g *globalArena) deferredBytes() int {
	n := 0
	for _, d := range g.deferred {
		n += d.size
	}
	return n
}
