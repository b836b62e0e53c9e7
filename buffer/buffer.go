// Package buffer provides Buffer, the checked owning handle for one
// allocation.
//
// A Buffer remembers the resource and stream it was allocated with and
// always hands its block back through them. The resource must outlive every
// buffer allocated from it; that is the caller's obligation and is not
// checked. Buffers carry no finalizer: call Release.
//
// Copies between blocks are host copies, complete when the call returns,
// and therefore ordered before any later work on the buffer's stream.
package buffer

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// Buffer owns one block. The zero Buffer is empty and ready to use with
// the default resource.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	blk    mr.Block // Capacity is blk.Size
	size   int
	stream stream.Stream
	res    mr.Resource
}

// New allocates a buffer of size bytes on s from r. A nil r uses the
// installed default resource, failing with mr.ErrConfiguration when none is.
func New(size int, s stream.Stream, r mr.Resource) (*Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative buffer size %d", mr.ErrInvalidArgument, size)
	}
	r, err := resolve(r)
	if err != nil {
		return nil, err
	}
	blk, err := r.Allocate(size, s)
	if err != nil {
		return nil, err
	}
	return &Buffer{blk: blk, size: size, stream: s, res: r}, nil
}

// NewFrom allocates a buffer holding a copy of src.
func NewFrom(src []byte, s stream.Stream, r mr.Resource) (*Buffer, error) {
	b, err := New(len(src), s, r)
	if err != nil {
		return nil, err
	}
	copy(b.Bytes(), src)
	return b, nil
}

// Copy allocates a deep copy of src on s from r. A nil r uses the default
// resource, not the resource of src.
func Copy(src *Buffer, s stream.Stream, r mr.Resource) (*Buffer, error) {
	return NewFrom(src.Bytes(), s, r)
}

func resolve(r mr.Resource) (mr.Resource, error) {
	if r != nil {
		return r, nil
	}
	return mr.CurrentDefault()
}

// Size returns the number of bytes in use.
func (b *Buffer) Size() int {
	return b.size
}

// Capacity returns the size of the owned block.
func (b *Buffer) Capacity() int {
	return b.blk.Size
}

// IsEmpty reports whether Size is zero.
func (b *Buffer) IsEmpty() bool {
	return b.size == 0
}

// Data returns the owned block. Its Size is the capacity.
func (b *Buffer) Data() mr.Block {
	return b.blk
}

// Bytes returns a view of the first Size bytes. The view is invalidated by
// any call that reallocates or releases the buffer.
func (b *Buffer) Bytes() []byte {
	if b.size == 0 {
		return nil
	}
	return b.blk.Bytes()[:b.size]
}

// Stream returns the stream the buffer's work is ordered on.
func (b *Buffer) Stream() stream.Stream {
	return b.stream
}

// SetStream moves future reallocation and release onto s. The caller must
// have ordered s after the buffer's previous stream.
func (b *Buffer) SetStream(s stream.Stream) {
	b.stream = s
}

// Resource returns the resource the buffer allocates from. It is nil for a
// zero Buffer that never allocated.
func (b *Buffer) Resource() mr.Resource {
	return b.res
}

// Resize changes Size to n. When n fits the capacity no memory moves.
// Otherwise a block of n bytes is allocated, the old contents are copied
// and the old block is freed on the buffer's stream. On failure the buffer
// is unchanged.
func (b *Buffer) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative buffer size %d", mr.ErrInvalidArgument, n)
	}
	if n <= b.Capacity() {
		b.size = n
		return nil
	}
	if err := b.realloc(n); err != nil {
		return err
	}
	b.size = n
	return nil
}

// Reserve grows the capacity to at least n without changing Size.
func (b *Buffer) Reserve(n int) error {
	if n <= b.Capacity() {
		return nil
	}
	return b.realloc(n)
}

// ShrinkToFit reallocates so that the capacity equals Size.
func (b *Buffer) ShrinkToFit() error {
	if b.Capacity() == b.size {
		return nil
	}
	return b.realloc(b.size)
}

// realloc moves the contents into a new block of capacity n >= Size.
func (b *Buffer) realloc(n int) error {
	if b.res == nil {
		r, err := resolve(nil)
		if err != nil {
			return err
		}
		b.res = r
	}
	blk, err := b.res.Allocate(n, b.stream)
	if err != nil {
		return err
	}
	if keep := min(b.size, n); keep > 0 {
		copy(blk.Bytes()[:keep], b.blk.Bytes()[:keep])
	}
	if err := b.res.Deallocate(b.blk, b.stream); err != nil {
		// The new block is not adopted; hand it back and keep the old one.
		return multierr.Append(err, b.res.Deallocate(blk, b.stream))
	}
	b.blk = blk
	return nil
}

// Release frees the block on the buffer's stream and empties the buffer.
// Releasing an empty buffer is a no-op.
func (b *Buffer) Release() error {
	if b.blk.IsEmpty() {
		b.size = 0
		return nil
	}
	if err := b.res.Deallocate(b.blk, b.stream); err != nil {
		return err
	}
	b.blk = mr.Block{}
	b.size = 0
	return nil
}

// Move transfers the block, resource and stream to a new Buffer, leaving b
// empty. b keeps its resource so it can be reused.
func (b *Buffer) Move() *Buffer {
	out := &Buffer{blk: b.blk, size: b.size, stream: b.stream, res: b.res}
	b.blk = mr.Block{}
	b.size = 0
	return out
}
