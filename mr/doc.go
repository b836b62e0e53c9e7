// Package mr defines the memory-resource capability and its leaf
// implementations.
//
// # Overview
//
// A Resource hands out Blocks of memory tagged with the stream they will be
// used on, and takes them back on a (possibly different) stream. Concrete
// strategies live in subpackages and compose into a graph that bottoms out
// in a Backing resource:
//
//	backing := mr.NewHostBacking()
//	p, err := pool.New(backing, nil)
//	limited := adaptor.NewLimiting(p, 1<<30, nil)
//	safe := adaptor.NewThreadSafe(limited)
//
// Every non-leaf resource implements Upstreamer, so a graph can be inspected
// with Walk. Graphs must be acyclic.
//
// # Contract
//
//   - Allocate(0, s) returns the empty Block without touching upstream.
//   - Deallocate must receive a Block produced by the same resource (or one
//     that IsEqual to it) with its original Size. Violations are undefined
//     unless the resource chooses to validate and return ErrInvalidArgument.
//   - Failures wrap ErrOutOfMemory, ErrInvalidArgument or ErrConfiguration
//     and are tested with errors.Is.
//
// # Default Resource
//
// SetDefault installs a process-wide resource that call sites use when they
// are not given one explicitly. Reading the default before anything is
// installed is a configuration error. Install and restore in pairs:
//
//	prev, err := mr.SetDefault(r)
//	defer mr.RestoreDefault(prev)
//
// # Thread Safety
//
// Backing and Callback are as safe as the functions behind them. Pool, arena
// and binning resources are not; compose them beneath adaptor.ThreadSafe when
// calls may be concurrent.
package mr
