package synth

import "sync/atomic"

// EventKind identifies a queued performance event.
type EventKind uint8

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventPitchBend
	EventControlChange
	EventProgramChange
	EventAllNotesOff
)

// Event is one performance event. Offset is the sample index inside the next
// rendered block at which it takes effect.
type Event struct {
	Kind    EventKind
	Channel uint8
	Data1   uint8 // note, controller or program
	Data2   uint8 // velocity or controller value
	Bend    int16 // signed 14-bit pitch bend, -8192..8191
	Offset  int
}

// NoteOn builds a note-on event.
func NoteOn(channel, note, velocity uint8) Event {
	return Event{Kind: EventNoteOn, Channel: channel, Data1: note, Data2: velocity}
}

// NoteOff builds a note-off event.
func NoteOff(channel, note uint8) Event {
	return Event{Kind: EventNoteOff, Channel: channel, Data1: note}
}

// ControlChange builds a controller event.
func ControlChange(channel, controller, value uint8) Event {
	return Event{Kind: EventControlChange, Channel: channel, Data1: controller, Data2: value}
}

// PitchBend builds a pitch bend event from a signed 14-bit value.
func PitchBend(channel uint8, bend int16) Event {
	return Event{Kind: EventPitchBend, Channel: channel, Bend: bend}
}

// ProgramChange builds a program change event.
func ProgramChange(channel, program uint8) Event {
	return Event{Kind: EventProgramChange, Channel: channel, Data1: program}
}

// EventQueue is a fixed-capacity single-producer single-consumer ring. The
// producer (MIDI input) calls Push and the consumer (audio callback) calls
// Pop; neither blocks or allocates.
type EventQueue struct {
	buf  []Event
	mask uint64
	head atomic.Uint64 // next slot to read
	tail atomic.Uint64 // next slot to write
}

// NewEventQueue allocates a queue holding at least capacity events, rounded
// up to a power of two.
func NewEventQueue(capacity int) *EventQueue {
	size := 2
	for size < capacity {
		size <<= 1
	}
	return &EventQueue{
		buf:  make([]Event, size),
		mask: uint64(size - 1),
	}
}

// Push appends e. It returns false when the queue is full.
func (q *EventQueue) Push(e Event) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() >= uint64(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = e
	q.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest event.
func (q *EventQueue) Pop() (Event, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return Event{}, false
	}
	e := q.buf[head&q.mask]
	q.head.Store(head + 1)
	return e, true
}

// Peek returns the oldest event without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return Event{}, false
	}
	return q.buf[head&q.mask], true
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap returns the queue capacity.
func (q *EventQueue) Cap() int { return len(q.buf) }
