/*
Package pool implements a coalescing, stream-ordered pool resource.

The pool grows by reserving chunks from an upstream resource and carves
allocations out of them with best-fit search. Freed blocks go back to a free
list owned by the stream they were freed on:

  - the same stream can reuse them immediately, since its own work is ordered;
  - another stream may only take them once the event recorded at the free has
    completed, at which point it absorbs the whole list;
  - adjacent free blocks of the same chunk and stream coalesce.

Each stream's list is segregated by size class (see internal/sizeclass) and
kept as a set of min-heaps, so the smallest fitting block is found quickly.

Growth makes exactly one upstream attempt per allocation, sized
max(request, GrowthFactor*PoolSize()) and capped at MaximumSize.

	upstream := mr.NewHostBacking()
	p, err := pool.New(upstream, &pool.Options{InitialSize: 64 << 20})
	if err != nil {
		return err
	}
	defer p.Release()

	blk, err := p.Allocate(4096, s)
	...
	p.Deallocate(blk, s)
*/
package pool
