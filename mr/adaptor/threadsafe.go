package adaptor

import (
	"sync"

	"github.com/joshuapare/rmmkit/mr"
	"github.com/joshuapare/rmmkit/stream"
)

// ThreadSafe serializes every call into its upstream.
type ThreadSafe struct {
	mu sync.Mutex
	up mr.Resource
}

// NewThreadSafe wraps up.
func NewThreadSafe(up mr.Resource) *ThreadSafe {
	return &ThreadSafe{up: up}
}

// Allocate implements mr.Resource.
func (t *ThreadSafe) Allocate(size int, s stream.Stream) (mr.Block, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.up.Allocate(size, s)
}

// Deallocate implements mr.Resource.
func (t *ThreadSafe) Deallocate(b mr.Block, s stream.Stream) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.up.Deallocate(b, s)
}

// IsEqual implements mr.Resource.
func (t *ThreadSafe) IsEqual(other mr.Resource) bool {
	o, ok := other.(*ThreadSafe)
	return ok && (o == t || mr.Equal(t.up, o.up))
}

// Upstream implements mr.Upstreamer.
func (t *ThreadSafe) Upstream() mr.Resource {
	return t.up
}

// Do runs fn while holding the lock, for introspection of a resource that
// is not itself safe for concurrent use.
func (t *ThreadSafe) Do(fn func(up mr.Resource)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.up)
}
