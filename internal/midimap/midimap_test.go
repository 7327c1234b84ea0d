package midimap

import (
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cwbudde/algo-sfsynth/synth"
)

func TestToEvent(t *testing.T) {
	tests := []struct {
		name string
		msg  midi.Message
		want synth.Event
	}{
		{"note on", midi.NoteOn(2, 60, 100), synth.NoteOn(2, 60, 100)},
		{"note on zero velocity", midi.NoteOn(2, 60, 0), synth.NoteOff(2, 60)},
		{"note off", midi.NoteOff(3, 61), synth.NoteOff(3, 61)},
		{"control change", midi.ControlChange(0, 7, 90), synth.ControlChange(0, 7, 90)},
		{"pitch bend", midi.Pitchbend(1, -4096), synth.PitchBend(1, -4096)},
		{"program change", midi.ProgramChange(9, 5), synth.ProgramChange(9, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToEvent(tt.msg)
			if !ok {
				t.Fatalf("message %v not mapped", tt.msg)
			}
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestToEventIgnoresSystemMessages(t *testing.T) {
	if _, ok := ToEvent(midi.Start()); ok {
		t.Fatal("start message mapped")
	}
}

func TestReadSMF(t *testing.T) {
	var tr smf.Track
	tr.Add(0, midi.ProgramChange(0, 3))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(960)
	if err := s.Add(tr); err != nil {
		t.Fatalf("add track: %v", err)
	}
	path := filepath.Join(t.TempDir(), "one.mid")
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("write smf: %v", err)
	}

	events, last, err := ReadSMF(path, 44100)
	if err != nil {
		t.Fatalf("ReadSMF: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events=%d want 3: %+v", len(events), events)
	}
	if events[0].Kind != synth.EventProgramChange || events[1].Kind != synth.EventNoteOn || events[2].Kind != synth.EventNoteOff {
		t.Fatalf("unexpected kinds: %+v", events)
	}
	// 960 ticks at the default 120 BPM is half a second.
	if events[2].Offset != 22050 || last != 22050 {
		t.Fatalf("note-off at %d (last %d), want 22050", events[2].Offset, last)
	}
}

func TestReadSMFMissingFile(t *testing.T) {
	if _, _, err := ReadSMF(filepath.Join(t.TempDir(), "nope.mid"), 44100); err == nil {
		t.Fatal("expected error")
	}
}
