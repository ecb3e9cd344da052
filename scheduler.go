// scheduler.go - deterministic discrete-event scheduler ([E] in SPEC_FULL.md)

package main

import "sort"

// NoEventScheduled is the sentinel returned by NextEventTime when the queue
// is empty, matching the "no events" value spec.md §3 calls for.
const NoEventScheduled uint32 = 0xFFFFFFFF

// NullEventType is the reserved type id events are rewritten to by
// RemoveType; its callback is never invoked (spec.md §4.1).
const NullEventType EventTypeID = 0

// EventTypeID identifies a registered event callback.
type EventTypeID int

// EventFn is invoked with the tstates the event was scheduled for (not the
// current counter), the type that fired, and the opaque user data attached
// at Add time.
type EventFn func(firedAt uint32, typ EventTypeID, userData any)

type eventType struct {
	name string
	fn   EventFn
}

// scheduledEvent is one entry in the ordered queue.
type scheduledEvent struct {
	tstates  uint32
	typ      EventTypeID
	userData any
}

// Scheduler maintains the in-frame T-state counter and an ordered queue of
// pending events. It is single-threaded: only the emulation thread ever
// calls its methods (spec.md §5).
type Scheduler struct {
	tstates        uint32
	nextEvent      uint32
	queue          []scheduledEvent
	types          []eventType
	tstatesPerLine uint32
}

// NewScheduler creates a scheduler with the null event pre-registered at
// type id 0, as the failure model in spec.md §4.1 requires.
func NewScheduler() *Scheduler {
	s := &Scheduler{nextEvent: NoEventScheduled}
	s.types = append(s.types, eventType{name: "null", fn: nil})
	return s
}

// Register assigns a fresh type id to fn and returns it. Adding an event for
// an id that was never registered is a programming error (spec.md §4.1) and
// panics rather than silently misbehaving.
func (s *Scheduler) Register(name string, fn EventFn) EventTypeID {
	s.types = append(s.types, eventType{name: name, fn: fn})
	return EventTypeID(len(s.types) - 1)
}

// Name returns the human-readable name a type was registered with.
func (s *Scheduler) Name(typ EventTypeID) string {
	if int(typ) < 0 || int(typ) >= len(s.types) {
		return "unknown"
	}
	return s.types[typ].name
}

// Tstates returns the current in-frame T-state counter.
func (s *Scheduler) Tstates() uint32 { return s.tstates }

// SetTstates lets the CPU core advance the shared counter directly (memory
// and port timing both do this every access).
func (s *Scheduler) SetTstates(t uint32) { s.tstates = t }

// AddTstates advances the counter by delta, the common case for contention
// and instruction costs.
func (s *Scheduler) AddTstates(delta uint32) { s.tstates += delta }

// NextEventTime is the earliest scheduled tstates value, or NoEventScheduled.
func (s *Scheduler) NextEventTime() uint32 { return s.nextEvent }

// Add inserts an event ordered ascending by (tstates, type), per spec.md
// §4.1. It panics if typ was never registered — the spec calls this an
// assertion, not a recoverable error.
func (s *Scheduler) Add(tstates uint32, typ EventTypeID, userData any) {
	if int(typ) < 0 || int(typ) >= len(s.types) {
		panic("scheduler: event type not registered")
	}
	ev := scheduledEvent{tstates: tstates, typ: typ, userData: userData}
	i := sort.Search(len(s.queue), func(i int) bool {
		if s.queue[i].tstates != tstates {
			return s.queue[i].tstates > tstates
		}
		return s.queue[i].typ > typ
	})
	s.queue = append(s.queue, scheduledEvent{})
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = ev
	s.recomputeNext()
}

func (s *Scheduler) recomputeNext() {
	if len(s.queue) == 0 {
		s.nextEvent = NoEventScheduled
		return
	}
	s.nextEvent = s.queue[0].tstates
}

// RemoveType rewrites every queued event of typ to the null event type
// rather than physically removing it, preserving queue order and slice
// indices for any in-progress iteration (spec.md §4.1, §5). Removing a type
// with nothing queued is a silent no-op.
func (s *Scheduler) RemoveType(typ EventTypeID) {
	for i := range s.queue {
		if s.queue[i].typ == typ {
			s.queue[i].typ = NullEventType
			s.queue[i].userData = nil
		}
	}
}

// RemoveTypeUserData narrows RemoveType to events owned by a specific
// userData value (e.g. one drive's pending motor-off event), per spec.md §5.
func (s *Scheduler) RemoveTypeUserData(typ EventTypeID, userData any) {
	for i := range s.queue {
		if s.queue[i].typ == typ && s.queue[i].userData == userData {
			s.queue[i].typ = NullEventType
			s.queue[i].userData = nil
		}
	}
}

// DoEvents fires every event with tstates <= the current counter, in order,
// removing each before invoking its callback so the callback may re-arm
// itself (spec.md §4.1). Never called from inside an opcode (spec.md §4.4).
func (s *Scheduler) DoEvents() {
	for len(s.queue) > 0 && s.queue[0].tstates <= s.tstates {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.recomputeNext()
		if ev.typ == NullEventType {
			continue
		}
		fn := s.types[ev.typ].fn
		if fn != nil {
			fn(ev.tstates, ev.typ, ev.userData)
		}
	}
}

// Frame subtracts delta from every queued event's tstates and from the
// running counter; Machine calls it once per frame from its frame-interrupt
// event handler (spec.md §4.1).
func (s *Scheduler) Frame(delta uint32) {
	for i := range s.queue {
		if s.queue[i].tstates >= delta {
			s.queue[i].tstates -= delta
		} else {
			s.queue[i].tstates = 0
		}
	}
	if s.tstates >= delta {
		s.tstates -= delta
	} else {
		s.tstates = 0
	}
	s.recomputeNext()
}

// Foreach walks the queue in order without mutating it.
func (s *Scheduler) Foreach(f func(tstates uint32, typ EventTypeID, userData any)) {
	for _, ev := range s.queue {
		f(ev.tstates, ev.typ, ev.userData)
	}
}

// Reset clears all pending events and the counter. Only legal at frame
// boundaries (spec.md §5).
func (s *Scheduler) Reset() {
	s.queue = s.queue[:0]
	s.tstates = 0
	s.nextEvent = NoEventScheduled
}

// Len reports the number of queued events, including null-rewritten ones
// (used by tests asserting queue shape after RemoveType).
func (s *Scheduler) Len() int { return len(s.queue) }
