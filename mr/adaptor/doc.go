/*
Package adaptor provides resources that wrap exactly one upstream and add
one concern without changing allocation policy.

  - ThreadSafe serializes calls behind a mutex.
  - Statistics counts current, peak and total bytes and allocations.
  - Limiting rejects requests that would exceed a byte ceiling.
  - Logging emits one Record per call to a Sink.
  - Tracking remembers every outstanding allocation.
  - FailureCallback lets the caller free memory and retry on exhaustion.

Adaptors compose in any order. Pool and arena resources are not safe for
concurrent use, so a ThreadSafe adaptor belongs directly above them when
several goroutines share one:

	p, _ := pool.New(mr.NewHostBacking(), nil)
	stats := adaptor.NewStatistics(adaptor.NewThreadSafe(p))
	limited := adaptor.NewLimiting(stats, 1<<30, nil)

Statistics placed above Limiting counts rejected requests as well; placed
below it counts only what was accepted.

Every adaptor implements mr.Upstreamer. Two adaptors are equal when they are
the same kind and their upstreams are equal.
*/
package adaptor
