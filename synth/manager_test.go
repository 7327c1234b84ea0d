package synth

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-sfsynth/analysis"
)

func newTestManager(params *Params) *VoiceManager {
	m := NewVoiceManager(testRate, params)
	m.SetBank(testBank())
	return m
}

func TestNoteOnFailsWhenPoolIsFull(t *testing.T) {
	m := newTestManager(nil)
	ok, failed := 0, 0
	for i := 0; i < 40; i++ {
		slot, started := m.NoteOn(40+i, 100, 0)
		if started {
			ok++
			if slot < 0 || slot >= MaxVoices {
				t.Fatalf("slot %d out of range", slot)
			}
		} else {
			failed++
			if slot != -1 {
				t.Fatalf("failed note_on returned slot %d", slot)
			}
		}
	}
	if ok != MaxVoices || failed != 8 {
		t.Fatalf("started=%d failed=%d, want %d/8", ok, failed, MaxVoices)
	}
	if m.ActiveVoices() != MaxVoices {
		t.Fatalf("ActiveVoices() = %d", m.ActiveVoices())
	}
}

func TestRepeatedNoteOnUsesDistinctVoicesAndNoteOffReleasesAll(t *testing.T) {
	m := newTestManager(nil)
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		slot, ok := m.NoteOn(60, 100, 0)
		if !ok {
			t.Fatalf("note_on %d failed", i)
		}
		if seen[slot] {
			t.Fatalf("slot %d reused", slot)
		}
		seen[slot] = true
	}
	m.NoteOff(60)
	for slot := range seen {
		if st := m.Voice(slot).State(); st != VoiceReleasing {
			t.Fatalf("slot %d state %s after note_off", slot, st)
		}
	}
}

func TestStealPolicyStartsPendingNote(t *testing.T) {
	params := NewDefaultParams()
	params.StealPolicy = StealLowestPriority
	m := newTestManager(params)
	for i := 0; i < MaxVoices; i++ {
		if _, ok := m.NoteOn(40+i, 100, 0); !ok {
			t.Fatalf("note %d failed", i)
		}
	}
	slot, ok := m.NoteOn(100, 127, 0)
	if !ok {
		t.Fatalf("steal note_on failed")
	}
	v := m.Voice(slot)
	if v.State() != VoiceStealing {
		t.Fatalf("victim state %s", v.State())
	}
	renderMono(m, 2*v.fastReleaseSamples())
	if v.Note() != 100 || v.State() != VoiceActive {
		t.Fatalf("slot %d plays note %d state %s, want 100 active", slot, v.Note(), v.State())
	}
	if m.ActiveVoices() != MaxVoices {
		t.Fatalf("ActiveVoices() = %d", m.ActiveVoices())
	}
}

func TestPendingNoteCancelledByNoteOff(t *testing.T) {
	params := NewDefaultParams()
	params.StealPolicy = StealLowestPriority
	m := newTestManager(params)
	for i := 0; i < MaxVoices; i++ {
		m.NoteOn(40+i, 100, 0)
	}
	slot, _ := m.NoteOn(100, 127, 0)
	m.NoteOffChannel(100, 0)
	renderMono(m, 2*m.Voice(slot).fastReleaseSamples())
	if m.Voice(slot).State() != VoiceIdle {
		t.Fatalf("cancelled pending note still started: %s", m.Voice(slot).State())
	}
}

func TestExclusiveClassChokesPreviousVoice(t *testing.T) {
	m := newTestManager(nil)
	first, ok := m.NoteOn(36, 100, DrumChannel)
	if !ok {
		t.Fatalf("drum note failed")
	}
	if m.Voice(first).ExclusiveClass() != 1 {
		t.Fatalf("exclusive class %d", m.Voice(first).ExclusiveClass())
	}
	second, ok := m.NoteOn(38, 100, DrumChannel)
	if !ok || second == first {
		t.Fatalf("second drum note slot %d ok=%v", second, ok)
	}
	if st := m.Voice(first).State(); st != VoiceStealing {
		t.Fatalf("choked voice state %s", st)
	}
	if st := m.Voice(second).State(); st != VoiceActive {
		t.Fatalf("new voice state %s", st)
	}
}

func TestSustainPedalHoldsNotes(t *testing.T) {
	m := newTestManager(nil)
	m.ControlChange(0, CCSustain, 127)
	slot, _ := m.NoteOn(60, 100, 0)
	m.NoteOffChannel(60, 0)
	if st := m.Voice(slot).State(); st != VoiceActive {
		t.Fatalf("sustained voice state %s", st)
	}
	m.ControlChange(0, CCSustain, 0)
	if st := m.Voice(slot).State(); st != VoiceReleasing {
		t.Fatalf("voice state %s after pedal up", st)
	}
}

func TestSustainPedalKeepsHeldKeys(t *testing.T) {
	m := newTestManager(nil)
	m.SetSustainPedal(0, true)
	held, _ := m.NoteOn(60, 100, 0)
	m.SetSustainPedal(0, false)
	if st := m.Voice(held).State(); st != VoiceActive {
		t.Fatalf("held key released by pedal up: %s", st)
	}
}

func TestFallbackTone(t *testing.T) {
	m := NewVoiceManager(testRate, nil)
	if _, ok := m.NoteOn(60, 100, 0); !ok {
		t.Fatalf("fallback note failed")
	}
	x := renderMono(m, 8192)
	if got := analysis.DominantFrequency(x, testRate, 50, 2000); math.Abs(got-261.63) > 2 {
		t.Fatalf("fallback pitch %f, want 261.63", got)
	}

	params := NewDefaultParams()
	params.FallbackTone = false
	m = NewVoiceManager(testRate, params)
	if slot, ok := m.NoteOn(60, 100, 0); ok || slot != -1 {
		t.Fatalf("note_on without zones = (%d, %v)", slot, ok)
	}
}

func TestSemitonePairBeats(t *testing.T) {
	m := NewVoiceManager(testRate, nil)
	m.NoteOn(60, 100, 0)
	m.NoteOn(61, 100, 0)
	renderMono(m, testRate/10)
	x := renderMono(m, 2*testRate)

	want := 440 * (math.Pow(2, -8.0/12) - math.Pow(2, -9.0/12))
	got := analysis.BeatFrequency(x, testRate, 5, 40)
	if math.Abs(got-want) > 0.5 {
		t.Fatalf("beat %f Hz, want %f", got, want)
	}
}

func TestVelocityZeroIsNoteOff(t *testing.T) {
	m := newTestManager(nil)
	slot, _ := m.NoteOn(60, 100, 0)
	if s, ok := m.NoteOn(60, 0, 0); ok || s != -1 {
		t.Fatalf("velocity 0 note_on = (%d, %v)", s, ok)
	}
	if st := m.Voice(slot).State(); st != VoiceReleasing {
		t.Fatalf("state %s", st)
	}
}

func TestNoteOnRejectsOutOfRange(t *testing.T) {
	m := newTestManager(nil)
	cases := [][3]int{{-1, 100, 0}, {128, 100, 0}, {60, 128, 0}, {60, 100, 16}}
	for _, c := range cases {
		if _, ok := m.NoteOn(c[0], c[1], c[2]); ok {
			t.Fatalf("NoteOn%v accepted", c)
		}
	}
}

func TestVelocityLayersSelectZones(t *testing.T) {
	m := newTestManager(nil)
	m.ProgramChange(0, 2)
	if m.Preset(0) != 2 {
		t.Fatalf("preset %d", m.Preset(0))
	}
	cases := []struct {
		vel, zones int
	}{
		{40, 1},
		{70, 2},
		{110, 1},
	}
	for _, tc := range cases {
		slot, ok := m.NoteOn(60, tc.vel, 0)
		if !ok {
			t.Fatalf("vel %d failed", tc.vel)
		}
		if n := m.Voice(slot).NumZones(); n != tc.zones {
			t.Fatalf("vel %d: %d zones, want %d", tc.vel, n, tc.zones)
		}
	}
}

func TestProgramChangeFallsBackToFirstPreset(t *testing.T) {
	m := newTestManager(nil)
	m.ProgramChange(3, 1)
	if m.Preset(3) != 1 {
		t.Fatalf("preset %d", m.Preset(3))
	}
	m.ProgramChange(3, 99)
	if m.Preset(3) != 0 {
		t.Fatalf("missing program selected %d", m.Preset(3))
	}
	if m.Preset(DrumChannel) != 3 {
		t.Fatalf("drum channel preset %d", m.Preset(DrumChannel))
	}
}

func TestOneShotVoiceReturnsToPool(t *testing.T) {
	m := newTestManager(nil)
	m.ProgramChange(0, 1)
	m.NoteOn(69, 100, 0)
	renderMono(m, 1000+testRate/100)
	if n := m.ActiveVoices(); n != 0 {
		t.Fatalf("%d voices still active", n)
	}
}

func TestProcessEnvelopesCountsSoundingVoices(t *testing.T) {
	m := newTestManager(nil)
	for i := 0; i < 5; i++ {
		m.NoteOn(60+i, 100, 0)
	}
	if n := m.ProcessEnvelopes(); n != 5 {
		t.Fatalf("ProcessEnvelopes() = %d, want 5", n)
	}
	m.NoteOff(60)
	for i := 0; i < 100; i++ {
		m.ProcessEnvelopes()
	}
	if n := m.ProcessEnvelopes(); n != 4 {
		t.Fatalf("ProcessEnvelopes() = %d after release, want 4", n)
	}
}

func TestHandleEventFromQueue(t *testing.T) {
	m := newTestManager(nil)
	q := NewEventQueue(16)
	q.Push(NoteOn(0, 60, 100))
	q.Push(ControlChange(0, CCVolume, 0))
	q.Push(PitchBend(0, 8191))
	q.Push(ControlChange(0, CCPan, 0))
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		m.HandleEvent(e)
	}
	if m.ActiveVoices() != 1 {
		t.Fatalf("ActiveVoices() = %d", m.ActiveVoices())
	}
	st := m.ChannelState(0)
	if st.Volume != 0 {
		t.Fatalf("volume %f", st.Volume)
	}
	if math.Abs(float64(st.PitchBend)-2*8191.0/8192) > 1e-4 {
		t.Fatalf("pitch bend %f", st.PitchBend)
	}
	if st.Pan != -1 {
		t.Fatalf("pan %f", st.Pan)
	}
	x := renderMono(m, 256)
	for i, s := range x {
		if s != 0 {
			t.Fatalf("sample %d = %f at zero channel volume", i, s)
		}
	}

	m.HandleEvent(Event{Kind: EventAllNotesOff})
	for i := 0; i < MaxVoices; i++ {
		if st := m.Voice(i).State(); st == VoiceActive {
			t.Fatalf("voice %d still active after all notes off", i)
		}
	}
}

func TestAllSoundOffStealsEveryVoice(t *testing.T) {
	m := newTestManager(nil)
	m.NoteOn(60, 100, 0)
	m.NoteOn(64, 100, 0)
	m.NoteOn(67, 100, 1)
	m.ControlChange(0, CCAllSoundOff, 0)
	renderMono(m, testRate/100)
	if n := m.ActiveVoices(); n != 1 {
		t.Fatalf("ActiveVoices() = %d, want only channel 1 left", n)
	}
}

func TestFrameSendsFollowChannelControllers(t *testing.T) {
	m := newTestManager(nil)
	m.ControlChange(0, CCReverbSend, 127)
	m.NoteOn(69, 127, 0)
	var dry, wet float64
	for i := 0; i < 2048; i++ {
		f := m.ProcessFrame()
		dry += math.Abs(float64(f.Left))
		wet += math.Abs(float64(f.ReverbL))
		if f.ChorusL != 0 || f.ChorusR != 0 {
			t.Fatalf("chorus bus carries signal with zero send")
		}
	}
	if math.Abs(dry-wet) > 1e-3*dry {
		t.Fatalf("full reverb send: dry %f wet %f", dry, wet)
	}
}

func TestResetSilencesEverything(t *testing.T) {
	m := newTestManager(nil)
	for i := 0; i < 10; i++ {
		m.NoteOn(50+i, 100, 0)
	}
	m.Reset()
	if m.ActiveVoices() != 0 {
		t.Fatalf("ActiveVoices() = %d after reset", m.ActiveVoices())
	}
	if l, r := m.Process(); l != 0 || r != 0 {
		t.Fatalf("reset manager produced (%f, %f)", l, r)
	}
}

func BenchmarkVoiceManagerProcess(b *testing.B) {
	m := newTestManager(nil)
	for i := 0; i < MaxVoices; i++ {
		m.NoteOn(36+i, 100, i%NumChannels)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Process()
	}
}
