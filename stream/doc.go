// Package stream models execution streams: ordered sequences of asynchronous
// operations that memory is allocated and freed against.
//
// # Streams
//
// A Stream is an opaque, comparable token. Two operations issued on the same
// stream complete in issue order; operations on different streams are
// unordered unless the caller synchronizes them. Default is the legacy
// stream and is distinct from every stream returned by New.
//
// # Events
//
// Resources never assume cross-stream ordering. When a block is freed on one
// stream they Record an Event on that stream and only hand the block to a
// different stream once the Tracker reports the event complete:
//
//	ev := tracker.Record(s)   // at deallocation time
//	...
//	if tracker.Query(ev) {    // before reuse on another stream
//	    // safe to reuse
//	}
//
// # Trackers
//
// Immediate treats every event as complete on record, which matches memory
// whose operations finish synchronously on the calling goroutine. Simulator
// is a deterministic model of asynchronous streams used by tests and demos.
package stream
