package adaptor

import (
	"errors"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// FailureFunc is called when an allocation of size bytes fails with
// mr.ErrOutOfMemory. Returning true retries the allocation.
type FailureFunc func(size int, err error) bool

// FailureCallback hands allocation exhaustion to the caller, who may free
// memory and ask for a retry. Other errors pass straight through.
type FailureCallback struct {
	up mr.Resource
	fn FailureFunc
}

// NewFailureCallback wraps up.
func NewFailureCallback(up mr.Resource, fn FailureFunc) *FailureCallback {
	return &FailureCallback{up: up, fn: fn}
}

// Allocate implements mr.Resource.
func (f *FailureCallback) Allocate(size int, s stream.Stream) (mr.Block, error) {
	for {
		b, err := f.up.Allocate(size, s)
		if err == nil || !errors.Is(err, mr.ErrOutOfMemory) || !f.fn(size, err) {
			return b, err
		}
	}
}

// Deallocate implements mr.Resource.
func (f *FailureCallback) Deallocate(b mr.Block, s stream.Stream) error {
	return f.up.Deallocate(b, s)
}

// IsEqual implements mr.Resource.
func (f *FailureCallback) IsEqual(other mr.Resource) bool {
	o, ok := other.(*FailureCallback)
	return ok && (o == f || mr.Equal(f.up, o.up))
}

// Upstream implements mr.Upstreamer.
func (f *FailureCallback) Upstream() mr.Resource {
	return f.up
}
