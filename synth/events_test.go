package synth

import (
	"sync"
	"testing"
)

func TestEventQueueOrderAndCapacity(t *testing.T) {
	q := NewEventQueue(5)
	if q.Cap() != 8 {
		t.Fatalf("Cap() = %d, want 8", q.Cap())
	}
	for i := 0; i < 8; i++ {
		if !q.Push(NoteOn(0, uint8(60+i), 100)) {
			t.Fatalf("push %d failed", i)
		}
	}
	if q.Push(NoteOff(0, 60)) {
		t.Fatalf("push into full queue succeeded")
	}
	if e, ok := q.Peek(); !ok || e.Data1 != 60 {
		t.Fatalf("Peek() = %+v, %v", e, ok)
	}
	for i := 0; i < 8; i++ {
		e, ok := q.Pop()
		if !ok || e.Kind != EventNoteOn || int(e.Data1) != 60+i {
			t.Fatalf("pop %d = %+v, %v", i, e, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop from empty queue succeeded")
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d", q.Len())
	}
}

func TestEventQueueConcurrentProducer(t *testing.T) {
	const total = 10000
	q := NewEventQueue(64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if q.Push(Event{Kind: EventControlChange, Offset: i}) {
				i++
			}
		}
	}()

	next := 0
	for next < total {
		e, ok := q.Pop()
		if !ok {
			continue
		}
		if e.Offset != next {
			t.Fatalf("got offset %d want %d", e.Offset, next)
		}
		next++
	}
	wg.Wait()
}
