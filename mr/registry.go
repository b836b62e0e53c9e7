package mr

import (
	"fmt"
	"sync/atomic"
)

// slot boxes the installed resource so atomic.Pointer can hold an interface.
type slot struct {
	r Resource
}

var current atomic.Pointer[slot]

// CurrentDefault returns the installed default resource.
func CurrentDefault() (Resource, error) {
	s := current.Load()
	if s == nil {
		return nil, fmt.Errorf("%w: no default resource installed", ErrConfiguration)
	}
	return s.r, nil
}

// SetDefault installs r as the default resource and returns the resource it
// replaced, or nil if none was installed. The caller must keep r alive while
// it is installed and restore or replace it before r is torn down.
//
// Writes are configuration-time operations, not per-request ones.
func SetDefault(r Resource) (Resource, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: cannot install a nil default resource", ErrConfiguration)
	}
	next := &slot{r: r}
	for {
		prev := current.Load()
		if prev != nil && Same(prev.r, r) {
			return nil, fmt.Errorf("%w: resource is already the default", ErrConfiguration)
		}
		if current.CompareAndSwap(prev, next) {
			if prev == nil {
				return nil, nil
			}
			return prev.r, nil
		}
	}
}

// ResetDefault empties the registry and returns what was installed.
func ResetDefault() Resource {
	prev := current.Swap(nil)
	if prev == nil {
		return nil
	}
	return prev.r
}

// RestoreDefault reinstalls prev, as returned by SetDefault. A nil prev
// empties the registry.
func RestoreDefault(prev Resource) {
	if prev == nil {
		current.Store(nil)
		return
	}
	current.Store(&slot{r: prev})
}
