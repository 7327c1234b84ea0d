// Package midimap converts MIDI messages and Standard MIDI Files into synth
// events.
package midimap

import (
	"fmt"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cwbudde/algo-sfsynth/synth"
)

// ToEvent maps a channel message to a synth event. System and meta messages
// return false.
func ToEvent(msg midi.Message) (synth.Event, bool) {
	var ch, key, vel, cc, val, prog uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return synth.NoteOn(ch, key, vel), true
	case msg.GetNoteEnd(&ch, &key):
		return synth.NoteOff(ch, key), true
	case msg.GetControlChange(&ch, &cc, &val):
		return synth.ControlChange(ch, cc, val), true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return synth.PitchBend(ch, rel), true
	case msg.GetProgramChange(&ch, &prog):
		return synth.ProgramChange(ch, prog), true
	}
	return synth.Event{}, false
}

// ReadSMF loads every track of a Standard MIDI File. Event offsets are
// absolute frames at sampleRate. It also returns the frame of the last event.
func ReadSMF(path string, sampleRate int) ([]synth.Event, int, error) {
	if sampleRate <= 0 {
		return nil, 0, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	var events []synth.Event
	last := 0
	rd := smf.ReadTracks(path).Do(func(te smf.TrackEvent) {
		ev, ok := ToEvent(midi.Message(te.Message))
		if !ok {
			return
		}
		ev.Offset = int(math.Round(float64(te.AbsMicroSeconds) * float64(sampleRate) / 1e6))
		last = max(last, ev.Offset)
		events = append(events, ev)
	})
	if err := rd.Error(); err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return events, last, nil
}
