// Package hostmem provides the raw reservation facilities behind the backing
// resource: Go-heap slices and anonymous memory mappings.
package hostmem

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/pbnjay/memory"
)

var (
	// ErrExhausted indicates the reservation would exceed the reserver capacity.
	ErrExhausted = errors.New("hostmem: capacity exhausted")

	// ErrUnknown indicates a release of memory this reserver did not hand out.
	ErrUnknown = errors.New("hostmem: unknown reservation")
)

// Heap reserves memory as Go-heap byte slices. Reserved slices are kept
// reachable until released so the garbage collector never reclaims them.
//
// Heap is safe for concurrent use.
type Heap struct {
	mu       sync.Mutex
	capacity int64
	reserved int64
	live     map[uintptr][]byte
}

// NewHeap returns a Heap reserver limited to capacity bytes. A capacity of
// zero or less uses the total physical memory of the host.
func NewHeap(capacity int64) *Heap {
	if capacity <= 0 {
		capacity = int64(memory.TotalMemory())
	}
	return &Heap{
		capacity: capacity,
		live:     make(map[uintptr][]byte),
	}
}

// Reserve returns a pointer to size zeroed bytes.
func (h *Heap) Reserve(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("hostmem: invalid reservation size %d", size)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.reserved+int64(size) > h.capacity {
		return nil, fmt.Errorf("%w: reserve %d with %d of %d in use", ErrExhausted, size, h.reserved, h.capacity)
	}

	buf := make([]byte, size)
	ptr := unsafe.Pointer(unsafe.SliceData(buf))
	h.live[uintptr(ptr)] = buf
	h.reserved += int64(size)
	return ptr, nil
}

// Release drops the reservation starting at ptr.
func (h *Heap) Release(ptr unsafe.Pointer, size int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.live[uintptr(ptr)]
	if !ok {
		return fmt.Errorf("%w: %#x", ErrUnknown, uintptr(ptr))
	}
	if len(buf) != size {
		return fmt.Errorf("%w: %#x reserved with %d bytes, released with %d", ErrUnknown, uintptr(ptr), len(buf), size)
	}
	delete(h.live, uintptr(ptr))
	h.reserved -= int64(size)
	return nil
}

// Reserved returns the number of bytes currently reserved.
func (h *Heap) Reserved() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reserved
}

// Capacity returns the reservation ceiling in bytes.
func (h *Heap) Capacity() int64 {
	return h.capacity
}
