package stream

import "github.com/google/uuid"

// Stream identifies an ordered sequence of asynchronous operations.
// The zero value is the Default stream.
type Stream struct {
	id uuid.UUID
}

// Default is the legacy default stream.
var Default = Stream{}

// New returns a stream distinct from every other stream, including Default.
func New() Stream {
	return Stream{id: uuid.New()}
}

// IsDefault reports whether s is the legacy default stream.
func (s Stream) IsDefault() bool {
	return s.id == uuid.Nil
}

// ID returns the opaque handle behind s.
func (s Stream) ID() uuid.UUID {
	return s.id
}

func (s Stream) String() string {
	if s.IsDefault() {
		return "default"
	}
	return s.id.String()
}
