package arena

import (
	"sort"
	"unsafe"

	"github.com/joshuapare/rmmkit/stream"
)

// span is a free range inside a superblock.
type span struct {
	addr uintptr
	size int
}

func (s span) end() uintptr {
	return s.addr + uintptr(s.size)
}

// superblock is a run of one superblock owned by a stream context.
//
// Space past bump has never been handed out. Below bump, freed spans sit in
// address order and are only merged by coalesce.
type superblock struct {
	run
	owner *streamArena
	free  []span
	bump  int
	used  int

	// event was recorded at the most recent free on the owning stream.
	event stream.Event
}

// alloc carves need bytes by first fit over the free spans, then from the
// bump region.
func (sb *superblock) alloc(need int) (unsafe.Pointer, bool) {
	for i := range sb.free {
		sp := &sb.free[i]
		if sp.size < need {
			continue
		}
		addr := sp.addr
		if sp.size == need {
			sb.free = append(sb.free[:i], sb.free[i+1:]...)
		} else {
			sp.addr += uintptr(need)
			sp.size -= need
		}
		sb.used += need
		return sb.pointer(addr), true
	}
	if sb.size-sb.bump >= need {
		p := unsafe.Add(sb.ptr, sb.bump)
		sb.bump += need
		sb.used += need
		return p, true
	}
	return nil, false
}

// release returns a block to the free spans without merging.
func (sb *superblock) release(addr uintptr, size int) {
	i := sort.Search(len(sb.free), func(i int) bool { return sb.free[i].addr > addr })
	sb.free = append(sb.free, span{})
	copy(sb.free[i+1:], sb.free[i:])
	sb.free[i] = span{addr: addr, size: size}
	sb.used -= size
}

// coalesce merges adjacent free spans and folds a trailing span back into
// the bump region. It returns the number of merges.
func (sb *superblock) coalesce() int {
	merges := 0
	if len(sb.free) > 1 {
		out := sb.free[:1]
		for _, sp := range sb.free[1:] {
			last := &out[len(out)-1]
			if last.end() == sp.addr {
				last.size += sp.size
				merges++
				continue
			}
			out = append(out, sp)
		}
		sb.free = out
	}
	if n := len(sb.free); n > 0 && sb.free[n-1].end() == sb.addr+uintptr(sb.bump) {
		sb.bump = int(sb.free[n-1].addr - sb.addr)
		sb.free = sb.free[:n-1]
		merges++
	}
	return merges
}

func (sb *superblock) pointer(addr uintptr) unsafe.Pointer {
	return unsafe.Add(sb.ptr, int(addr-sb.addr))
}

// streamArena is the allocation context of one stream.
type streamArena struct {
	stream      stream.Stream
	superblocks []*superblock

	// deferred holds blocks of this context's superblocks freed on other
	// streams, waiting for their events.
	deferred []deferredBlock
}

type deferredBlock struct {
	addr  uintptr
	size  int
	sb    *superblock
	event stream.Event
}

// alloc tries every owned superblock, newest first.
func (sa *streamArena) alloc(need int) (unsafe.Pointer, *superblock, bool) {
	for i := len(sa.superblocks) - 1; i >= 0; i-- {
		sb := sa.superblocks[i]
		if p, ok := sb.alloc(need); ok {
			return p, sb, true
		}
	}
	return nil, nil, false
}

func (sa *streamArena) remove(sb *superblock) {
	for i, x := range sa.superblocks {
		if x == sb {
			sa.superblocks = append(sa.superblocks[:i], sa.superblocks[i+1:]...)
			return
		}
	}
}
