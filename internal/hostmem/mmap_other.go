//go:build !unix

package hostmem

import "unsafe"

// Mmap falls back to Go-heap reservations where anonymous mappings are not
// available.
type Mmap struct {
	heap *Heap
}

// NewMmap returns a heap-backed stand-in for the mapping reserver.
func NewMmap() *Mmap {
	return &Mmap{heap: NewHeap(0)}
}

// Reserve returns a pointer to size zeroed bytes.
func (m *Mmap) Reserve(size int) (unsafe.Pointer, error) {
	return m.heap.Reserve(size)
}

// Release drops the reservation starting at ptr.
func (m *Mmap) Release(ptr unsafe.Pointer, size int) error {
	return m.heap.Release(ptr, size)
}

// Mapped returns the number of live reservations.
func (m *Mmap) Mapped() int {
	m.heap.mu.Lock()
	defer m.heap.mu.Unlock()
	return len(m.heap.live)
}
