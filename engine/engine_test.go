package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/synth"
)

const testRate = 44100

func sineBank() *bank.Bank {
	const period, n = 100, 4400
	data := make([]int16, n)
	for i := range data {
		data[i] = int16(math.Round(16000 * math.Sin(2*math.Pi*float64(i)/period)))
	}
	return &bank.Bank{
		Name:    "engine-test",
		Samples: []bank.Sample{{Name: "sine", Data: data, SampleRate: testRate, RootKey: 69, LoopEnd: n}},
		Instruments: []bank.Instrument{
			{Name: "sine", Zones: []bank.InstrumentZone{{KeyRange: bank.FullRange, VelRange: bank.FullRange, Sample: 0}}},
		},
		Presets: []bank.Preset{
			{Name: "sine", Zones: []bank.PresetZone{{KeyRange: bank.FullRange, VelRange: bank.FullRange, Instrument: 0}}},
		},
	}
}

func dryParams() *Params {
	p := NewDefaultParams()
	p.ReverbEnabled = false
	p.ChorusEnabled = false
	return p
}

func newTestEngine(t *testing.T, params *Params) *Engine {
	t.Helper()
	e, err := New(testRate, sineBank(), params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func firstNonZero(x []float32) int {
	for i, v := range x {
		if v != 0 {
			return i
		}
	}
	return -1
}

func peak(x []float32) float64 {
	m := 0.0
	for _, v := range x {
		m = max(m, math.Abs(float64(v)))
	}
	return m
}

func TestProcessLength(t *testing.T) {
	e := newTestEngine(t, nil)
	out := e.Process(300)
	if len(out) != 600 {
		t.Fatalf("len=%d want 600", len(out))
	}
	if p := peak(out); p != 0 {
		t.Fatalf("idle engine produced %g", p)
	}
}

func TestEventAppliedAtOffset(t *testing.T) {
	e := newTestEngine(t, dryParams())
	ev := synth.NoteOn(0, 69, 100)
	ev.Offset = 200
	if !e.Send(ev) {
		t.Fatal("Send failed")
	}
	out := e.Process(512)
	first := firstNonZero(out)
	if first < 0 {
		t.Fatal("note never sounded")
	}
	if first < 200*2 {
		t.Fatalf("sound started at frame %d, before offset 200", first/2)
	}
}

func TestEventOffsetCarriesOver(t *testing.T) {
	e := newTestEngine(t, dryParams())
	ev := synth.NoteOn(0, 69, 100)
	ev.Offset = 300
	e.Send(ev)

	if p := peak(e.Process(128)); p != 0 {
		t.Fatalf("first call not silent: %g", p)
	}
	out := e.Process(512)
	first := firstNonZero(out)
	if first < 0 {
		t.Fatal("note never sounded")
	}
	if first/2 < 300-128 {
		t.Fatalf("sound started at frame %d, want >= %d", first/2, 300-128)
	}
}

func TestEventOrderPreserved(t *testing.T) {
	e := newTestEngine(t, dryParams())
	on := synth.NoteOn(0, 69, 100)
	off := synth.NoteOff(0, 69)
	e.Send(on)
	e.Send(off)
	e.Process(64)
	if n := e.Voices().ActiveVoices(); n > 1 {
		t.Fatalf("active=%d", n)
	}
	e.Process(4096)
	if n := e.Voices().ActiveVoices(); n != 0 {
		t.Fatalf("note-off lost, active=%d", n)
	}
}

func TestRenderScheduling(t *testing.T) {
	e := newTestEngine(t, dryParams())
	on := synth.NoteOn(0, 69, 100)
	on.Offset = 1000
	off := synth.NoteOff(0, 69)
	off.Offset = 5000
	out := e.Render([]synth.Event{off, on}, 20000)
	if len(out) != 40000 {
		t.Fatalf("len=%d", len(out))
	}
	if p := peak(out[:1000*2]); p != 0 {
		t.Fatalf("sound before note-on: %g", p)
	}
	if p := peak(out[2000*2 : 5000*2]); p < 0.01 {
		t.Fatalf("held note too quiet: %g", p)
	}
	if p := peak(out[15000*2:]); p != 0 {
		t.Fatalf("released note still sounding: %g", p)
	}
}

func TestRenderManyEventsInOneBlock(t *testing.T) {
	e := newTestEngine(t, dryParams())
	events := make([]synth.Event, 0, 2*EventQueueSize+1)
	for i := range 2 * EventQueueSize {
		events = append(events, synth.ControlChange(0, 7, uint8(i%128)))
	}
	events = append(events, synth.ControlChange(0, 7, 100))
	e.Render(events, BlockSize)
	if got, want := e.Voices().ChannelState(0).Volume, float32(100)/127; math.Abs(float64(got-want)) > 1e-6 {
		t.Fatalf("volume=%g want %g: last event did not win", got, want)
	}
}

func TestRenderAppliesQueuedEventsFirst(t *testing.T) {
	e := newTestEngine(t, dryParams())
	for range EventQueueSize {
		if !e.Send(synth.ControlChange(0, 7, 5)) {
			t.Fatal("queue full before capacity")
		}
	}
	e.Render([]synth.Event{synth.ControlChange(0, 7, 90)}, BlockSize)
	if got, want := e.Voices().ChannelState(0).Volume, float32(90)/127; math.Abs(float64(got-want)) > 1e-6 {
		t.Fatalf("volume=%g want %g", got, want)
	}
}

func TestReverbAddsTail(t *testing.T) {
	p := NewDefaultParams()
	p.ChorusEnabled = false
	p.Reverb.Room.DurationS = 0.3
	e := newTestEngine(t, p)
	e.Voices().SetReverbSend(0, 1)

	on := synth.NoteOn(0, 69, 127)
	off := synth.NoteOff(0, 69)
	off.Offset = 2000
	out := e.Render([]synth.Event{on, off}, 8000)
	// The dry voice has released by frame 4000; what remains is the room.
	if p := peak(out[5000*2:]); p == 0 {
		t.Fatal("no reverb tail")
	}

	e.Reset()
	if p := peak(e.Process(4096)); p != 0 {
		t.Fatalf("tail survived Reset: %g", p)
	}
}

func TestOutputGain(t *testing.T) {
	a := newTestEngine(t, dryParams())
	p := dryParams()
	p.OutputGain = 0.5
	b := newTestEngine(t, p)

	on := synth.NoteOn(0, 69, 100)
	outA := a.Render([]synth.Event{on}, 2048)
	outB := b.Render([]synth.Event{on}, 2048)
	for i := range outA {
		if d := math.Abs(float64(outA[i]*0.5 - outB[i])); d > 1e-6 {
			t.Fatalf("sample %d: %g vs %g", i, outA[i]*0.5, outB[i])
		}
	}
}

func TestNewMissingIR(t *testing.T) {
	p := NewDefaultParams()
	p.IRWavPath = "does-not-exist.wav"
	if _, err := New(testRate, nil, p); err == nil {
		t.Fatal("expected error for missing IR file")
	}
}

func TestNilBankUsesFallback(t *testing.T) {
	e, err := New(testRate, nil, dryParams())
	if err != nil {
		t.Fatal(err)
	}
	out := e.Render([]synth.Event{synth.NoteOn(0, 60, 100)}, 4096)
	if peak(out) == 0 {
		t.Fatal("fallback tone silent")
	}
}

func BenchmarkProcessInto(b *testing.B) {
	e, err := New(testRate, sineBank(), NewDefaultParams())
	if err != nil {
		b.Fatal(err)
	}
	for n := range 16 {
		e.Voices().NoteOn(48+n, 100, 0)
	}
	buf := make([]float32, 2*256)
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		e.ProcessInto(buf)
	}
}

func TestChannelSetupSurvivesReset(t *testing.T) {
	p := dryParams()
	p.Channels = map[int]ChannelSetup{
		1: {Controllers: map[int]int{synth.CCVolume: 0}},
		2: {Controllers: map[int]int{synth.CCPan: 0, synth.CCReverbSend: 127}},
	}
	e := newTestEngine(t, p)
	check := func(stage string) {
		t.Helper()
		if v := e.Voices().ChannelState(1).Volume; v != 0 {
			t.Fatalf("%s: channel 1 volume=%g", stage, v)
		}
		st := e.Voices().ChannelState(2)
		if st.Pan != -1 || st.Reverb != 1 {
			t.Fatalf("%s: channel 2 state %+v", stage, st)
		}
	}
	check("start")
	if peak(e.Render([]synth.Event{synth.NoteOn(1, 69, 127)}, 2048)) != 0 {
		t.Fatal("muted channel produced sound")
	}
	e.Reset()
	check("reset")
}

func TestSetReverbIR(t *testing.T) {
	e := newTestEngine(t, dryParams())
	if err := e.SetReverbIR([]float32{1}, nil, testRate); !errors.Is(err, ErrReverbDisabled) {
		t.Fatalf("expected ErrReverbDisabled, got %v", err)
	}

	p := NewDefaultParams()
	p.ChorusEnabled = false
	e = newTestEngine(t, p)
	ir := make([]float32, 512)
	ir[0] = 0.5
	ir[300] = 0.25
	if err := e.SetReverbIR(ir, ir, testRate); err != nil {
		t.Fatalf("SetReverbIR: %v", err)
	}
	if err := e.SetReverbIR(nil, nil, testRate); err == nil {
		t.Fatalf("expected error for empty IR")
	}
}
