package stream

import "sync"

// Simulator is a deterministic Tracker modelling asynchronous streams.
//
// Each stream has a count of issued and completed operations. Record issues a
// marker operation and returns an event for it; the event completes once the
// stream's completed count reaches it. Nothing completes on its own: callers
// drive progress with Synchronize, SynchronizeAll and Wait.
//
// Simulator is safe for concurrent use.
type Simulator struct {
	mu      sync.Mutex
	streams map[Stream]*simState
}

type simState struct {
	issued    uint64
	completed uint64
	// waits holds cross-stream dependencies: once this stream completes
	// position pos, the event ev is guaranteed complete too.
	waits []simWait
}

type simWait struct {
	pos uint64
	ev  Event
}

// NewSimulator returns an empty Simulator.
func NewSimulator() *Simulator {
	return &Simulator{streams: make(map[Stream]*simState)}
}

func (sim *Simulator) state(s Stream) *simState {
	st, ok := sim.streams[s]
	if !ok {
		st = &simState{}
		sim.streams[s] = st
	}
	return st
}

// Enqueue issues one operation on s and returns its position.
func (sim *Simulator) Enqueue(s Stream) uint64 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	st := sim.state(s)
	st.issued++
	return st.issued
}

// Record implements Tracker.
func (sim *Simulator) Record(s Stream) Event {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	st := sim.state(s)
	st.issued++
	return Event{Stream: s, seq: st.issued}
}

// Query implements Tracker.
func (sim *Simulator) Query(e Event) bool {
	if e.IsZero() {
		return true
	}
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.state(e.Stream).completed >= e.seq
}

// Synchronize completes every operation issued on s so far.
func (sim *Simulator) Synchronize(s Stream) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	sim.completeLocked(s, sim.state(s).issued)
}

// SynchronizeAll completes every operation on every stream.
func (sim *Simulator) SynchronizeAll() {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	for s, st := range sim.streams {
		sim.completeLocked(s, st.issued)
	}
}

// Wait makes waiter depend on e: work issued on waiter after the call does
// not complete before e does.
func (sim *Simulator) Wait(waiter Stream, e Event) {
	if e.IsZero() {
		return
	}
	sim.mu.Lock()
	defer sim.mu.Unlock()
	st := sim.state(waiter)
	st.issued++
	st.waits = append(st.waits, simWait{pos: st.issued, ev: e})
}

// Pending returns the number of issued but incomplete operations on s.
func (sim *Simulator) Pending(s Stream) uint64 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	st := sim.state(s)
	return st.issued - st.completed
}

func (sim *Simulator) completeLocked(s Stream, upTo uint64) {
	st := sim.state(s)
	if upTo <= st.completed {
		return
	}
	// Completing past a wait point implies the awaited event completed.
	kept := st.waits[:0]
	var deps []Event
	for _, w := range st.waits {
		if w.pos <= upTo {
			deps = append(deps, w.ev)
			continue
		}
		kept = append(kept, w)
	}
	st.waits = kept
	st.completed = upTo
	for _, ev := range deps {
		sim.completeLocked(ev.Stream, ev.seq)
	}
}
