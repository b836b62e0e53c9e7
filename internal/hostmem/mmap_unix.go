//go:build unix

package hostmem

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap reserves memory with private anonymous mappings. The memory lives
// outside the Go heap, so it is never scanned or moved by the runtime.
//
// Mmap is safe for concurrent use.
type Mmap struct {
	mu   sync.Mutex
	live map[uintptr][]byte
}

// NewMmap returns an anonymous-mapping reserver.
func NewMmap() *Mmap {
	return &Mmap{live: make(map[uintptr][]byte)}
}

// Reserve maps size bytes of zeroed, read-write memory.
func (m *Mmap) Reserve(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("hostmem: invalid reservation size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %v", ErrExhausted, size, err)
	}
	ptr := unsafe.Pointer(unsafe.SliceData(data))

	m.mu.Lock()
	m.live[uintptr(ptr)] = data
	m.mu.Unlock()
	return ptr, nil
}

// Release unmaps the reservation starting at ptr.
func (m *Mmap) Release(ptr unsafe.Pointer, size int) error {
	m.mu.Lock()
	data, ok := m.live[uintptr(ptr)]
	if ok {
		delete(m.live, uintptr(ptr))
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %#x", ErrUnknown, uintptr(ptr))
	}
	if len(data) != size {
		return fmt.Errorf("%w: %#x mapped with %d bytes, released with %d", ErrUnknown, uintptr(ptr), len(data), size)
	}
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// Mapped returns the number of live mappings.
func (m *Mmap) Mapped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
