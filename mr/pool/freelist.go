package pool

import (
	"container/heap"
	"sync"
	"unsafe"

	"github.com/joshuapare/rmmkit/internal/sizeclass"
	"github.com/joshuapare/rmmkit/stream"
)

// freeBlock is a free run of pool memory inside one upstream chunk.
type freeBlock struct {
	addr      uintptr        // Start address
	ptr       unsafe.Pointer // Same address, kept as a pointer for Block
	size      int            // Bytes, multiple of mr.Alignment
	chunk     int            // Upstream chunk the run belongs to
	sc        int            // Size class (which heap this belongs to)
	heapIndex int            // Position in heap (for heap.Remove)
}

func (b *freeBlock) end() uintptr {
	return b.addr + uintptr(b.size)
}

// freeBlockHeap implements heap.Interface as a min-heap keyed on size.
// Smallest blocks are at the top, giving best-fit allocation.
type freeBlockHeap []*freeBlock

func (h *freeBlockHeap) Len() int { return len(*h) }

func (h *freeBlockHeap) Less(i, j int) bool {
	if (*h)[i].size == (*h)[j].size {
		return (*h)[i].addr < (*h)[j].addr
	}
	return (*h)[i].size < (*h)[j].size
}

func (h *freeBlockHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *freeBlockHeap) Push(x any) {
	b := x.(*freeBlock) //nolint:errcheck // heap.Interface contract guarantees type
	b.heapIndex = len(*h)
	*h = append(*h, b)
}

func (h *freeBlockHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	b.heapIndex = -1
	*h = old[0 : n-1]
	return b
}

// streamList holds the blocks last freed on one stream.
//
// Blocks are segregated by size class, the last class being the large list.
// byAddr and byEnd index every block for O(1) neighbour lookup during
// coalescing. Every block in the list is safe to reuse on the owning stream;
// other streams may only take them once event has completed.
type streamList struct {
	classes []freeBlockHeap
	byAddr  map[uintptr]*freeBlock
	byEnd   map[uintptr]*freeBlock
	table   *sizeclass.Table
	stats   *Stats
	recycle *sync.Pool // Spare freeBlock structs left over from merges

	// event was recorded on the owning stream at the most recent free.
	// Stream order makes it cover every earlier free as well.
	event stream.Event
	bytes int
}

func newStreamList(table *sizeclass.Table, stats *Stats, recycle *sync.Pool) *streamList {
	return &streamList{
		classes: make([]freeBlockHeap, table.NumClasses()+1),
		byAddr:  make(map[uintptr]*freeBlock),
		byEnd:   make(map[uintptr]*freeBlock),
		table:   table,
		stats:   stats,
		recycle: recycle,
	}
}

// insert adds b, merging it with free neighbours from the same chunk.
func (l *streamList) insert(b *freeBlock) *freeBlock {
	if prev := l.byEnd[b.addr]; prev != nil && prev.chunk == b.chunk {
		l.remove(prev)
		l.stats.CoalesceBackward++
		prev.size += b.size
		l.recycle.Put(b)
		b = prev
	}
	if next := l.byAddr[b.end()]; next != nil && next.chunk == b.chunk {
		l.remove(next)
		l.stats.CoalesceForward++
		b.size += next.size
		l.recycle.Put(next)
	}

	b.sc = l.table.Class(b.size)
	heap.Push(&l.classes[b.sc], b)
	l.byAddr[b.addr] = b
	l.byEnd[b.end()] = b
	l.bytes += b.size
	return b
}

// remove unlinks b from its heap and the indexes.
func (l *streamList) remove(b *freeBlock) {
	heap.Remove(&l.classes[b.sc], b.heapIndex)
	delete(l.byAddr, b.addr)
	delete(l.byEnd, b.end())
	l.bytes -= b.size
}

// find returns the best-fitting block of at least need bytes, or nil.
func (l *streamList) find(need int) *freeBlock {
	sc := l.table.Class(need)
	for c := sc; c < len(l.classes); c++ {
		h := l.classes[c]
		if len(h) == 0 {
			continue
		}
		// heap[0] is the smallest block in this class. Every block of a
		// higher class than need's already fits.
		if h[0].size >= need {
			return h[0]
		}
		var best *freeBlock
		for _, b := range h[1:] {
			if b.size >= need && (best == nil || b.size < best.size) {
				best = b
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// take removes and returns the best-fitting block, or nil.
func (l *streamList) take(need int) *freeBlock {
	b := l.find(need)
	if b != nil {
		l.remove(b)
	}
	return b
}

// absorb moves every block of other into l, coalescing as it goes.
func (l *streamList) absorb(other *streamList) {
	for _, b := range other.blocks() {
		other.remove(b)
		l.insert(b)
	}
}

// blocks returns the free blocks in no particular order.
func (l *streamList) blocks() []*freeBlock {
	out := make([]*freeBlock, 0, len(l.byAddr))
	for _, h := range l.classes {
		out = append(out, h...)
	}
	return out
}

func (l *streamList) count() int {
	return len(l.byAddr)
}
