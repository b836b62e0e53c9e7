package stream

// Event marks a point on a stream: everything issued on Stream before the
// event was recorded. The zero Event is always complete.
type Event struct {
	Stream Stream
	seq    uint64
}

// IsZero reports whether e is the zero Event.
func (e Event) IsZero() bool {
	return e.seq == 0
}

//go:generate mockgen -destination=../internal/mocks/tracker.go -package=mocks github.com/joshuapare/rmmkit/stream Tracker

// Tracker records events on streams and answers completion queries.
//
// Implementations must never report an event complete before every operation
// issued on its stream ahead of the Record call has completed.
type Tracker interface {
	// Record records an event at the current tail of s.
	Record(s Stream) Event

	// Query reports whether e has completed.
	Query(e Event) bool
}

// Immediate is a Tracker for synchronous memory: every recorded event is
// already complete.
type Immediate struct{}

// Record implements Tracker.
func (Immediate) Record(s Stream) Event {
	return Event{Stream: s}
}

// Query implements Tracker.
func (Immediate) Query(Event) bool {
	return true
}
