package mr

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/rmmkit/internal/hostmem"
	"github.com/joshuapare/rmmkit/stream"
)

// Reserver is the raw memory-reservation facility a Backing resource draws
// from. Implementations decide where memory lives; Backing only asks for
// whole reservations and hands them back.
type Reserver interface {
	Reserve(size int) (unsafe.Pointer, error)
	Release(ptr unsafe.Pointer, size int) error
}

// Backing is the leaf resource: every allocation is one reservation.
// It is as safe for concurrent use as its Reserver.
type Backing struct {
	r Reserver
}

// NewBacking returns a leaf resource over r.
func NewBacking(r Reserver) *Backing {
	return &Backing{r: r}
}

// NewHostBacking returns a leaf resource over Go-heap reservations limited
// to the host's physical memory.
func NewHostBacking() *Backing {
	return NewBacking(hostmem.NewHeap(0))
}

// NewHostBackingWithCapacity returns a leaf resource over Go-heap
// reservations limited to capacity bytes.
func NewHostBackingWithCapacity(capacity int64) *Backing {
	return NewBacking(hostmem.NewHeap(capacity))
}

// NewMmapBacking returns a leaf resource over anonymous memory mappings.
func NewMmapBacking() *Backing {
	return NewBacking(hostmem.NewMmap())
}

// Reserver returns the facility behind b.
func (b *Backing) Reserver() Reserver {
	return b.r
}

// Allocate implements Resource. The stream is ignored: reservations are
// synchronous.
func (b *Backing) Allocate(size int, _ stream.Stream) (Block, error) {
	if size == 0 {
		return Block{}, nil
	}
	if size < 0 {
		return Block{}, fmt.Errorf("%w: negative size %d", ErrInvalidArgument, size)
	}
	ptr, err := b.r.Reserve(AlignSize(size))
	if err != nil {
		return Block{}, fmt.Errorf("%w: backing reserve of %d bytes: %v", ErrOutOfMemory, size, err)
	}
	return Block{Ptr: ptr, Size: size}, nil
}

// Deallocate implements Resource.
func (b *Backing) Deallocate(blk Block, _ stream.Stream) error {
	if blk.IsEmpty() {
		return nil
	}
	if err := b.r.Release(blk.Ptr, AlignSize(blk.Size)); err != nil {
		return fmt.Errorf("%w: backing release: %v", ErrInvalidArgument, err)
	}
	return nil
}

// IsEqual implements Resource. Backings over the same reserver are
// interchangeable.
func (b *Backing) IsEqual(other Resource) bool {
	o, ok := other.(*Backing)
	return ok && o.r == b.r
}
