package mr

import "github.com/joshuapare/rmmkit/stream"

// AllocateFunc and DeallocateFunc back a Callback resource.
type (
	AllocateFunc   func(size int, s stream.Stream) (Block, error)
	DeallocateFunc func(b Block, s stream.Stream) error
)

// Callback is a resource built from two functions. Zero-byte requests and
// empty blocks never reach the functions.
type Callback struct {
	alloc   AllocateFunc
	dealloc DeallocateFunc
}

// NewCallback returns a resource that delegates to alloc and dealloc.
func NewCallback(alloc AllocateFunc, dealloc DeallocateFunc) *Callback {
	return &Callback{alloc: alloc, dealloc: dealloc}
}

// Allocate implements Resource.
func (c *Callback) Allocate(size int, s stream.Stream) (Block, error) {
	if size == 0 {
		return Block{}, nil
	}
	return c.alloc(size, s)
}

// Deallocate implements Resource.
func (c *Callback) Deallocate(b Block, s stream.Stream) error {
	if b.IsEmpty() {
		return nil
	}
	return c.dealloc(b, s)
}

// IsEqual implements Resource. Callback resources are only equal to themselves.
func (c *Callback) IsEqual(other Resource) bool {
	o, ok := other.(*Callback)
	return ok && o == c
}
