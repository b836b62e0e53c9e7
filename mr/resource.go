package mr

import (
	"math"
	"reflect"
	"unsafe"

	"github.com/joshuapare/rmmkit/internal/align"
	"github.com/joshuapare/rmmkit/stream"
)

// Alignment is the default allocation alignment in bytes.
const Alignment = 256

// MaxSize is the largest request that can be rounded up to Alignment
// without overflowing int.
const MaxSize = math.MaxInt &^ (Alignment - 1)

// Block is a contiguous run of memory handed out by a Resource.
// The zero Block is the empty sentinel returned for zero-byte requests.
type Block struct {
	Ptr  unsafe.Pointer
	Size int
}

// Addr returns the block start address.
func (b Block) Addr() uintptr {
	return uintptr(b.Ptr)
}

// IsEmpty reports whether b is the empty sentinel.
func (b Block) IsEmpty() bool {
	return b.Ptr == nil
}

// Bytes returns a byte view of the block. The view is only valid while the
// block is allocated, and only for host-accessible memory.
func (b Block) Bytes() []byte {
	if b.Ptr == nil || b.Size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(b.Ptr), b.Size)
}

// Resource is the memory-resource capability.
type Resource interface {
	// Allocate returns a block of at least size bytes for use on s.
	Allocate(size int, s stream.Stream) (Block, error)

	// Deallocate returns b, freed on s, to the resource that produced it.
	Deallocate(b Block, s stream.Stream) error

	// IsEqual reports whether other can deallocate this resource's blocks
	// and vice versa.
	IsEqual(other Resource) bool
}

// Upstreamer is implemented by resources that forward to another resource.
type Upstreamer interface {
	Upstream() Resource
}

// Releaser is implemented by resources holding upstream memory that can be
// handed back once no block is live.
type Releaser interface {
	Release() error
}

// Equal reports whether a and b are interchangeable for allocation purposes.
func Equal(a, b Resource) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Same(a, b) || a.IsEqual(b)
}

// Same reports whether a and b are the same resource. Resources whose
// dynamic type is not comparable are only the same as themselves by
// IsEqual, so Same reports false for them instead of panicking.
func Same(a, b Resource) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// AlignSize rounds size up to Alignment. size must not exceed MaxSize.
func AlignSize(size int) int {
	return align.Up(size, Alignment)
}
