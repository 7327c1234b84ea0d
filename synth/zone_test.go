package synth

import (
	"testing"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/dsp"
)

func rampSample(n int) *bank.Sample {
	data := make([]int16, n)
	for i := range data {
		data[i] = int16(i * 100)
	}
	return &bank.Sample{Name: "ramp", Data: data, SampleRate: testRate, RootKey: 60}
}

func TestZoneLoopWrapsInsideLoop(t *testing.T) {
	s := rampSample(100)
	var z ActiveZone
	z.init(zoneSetup{
		sample: s, baseRate: 1.5, start: 0, end: 100,
		loopStart: 20, loopEnd: 80, loopMode: bank.LoopContinuous, weight: 1, gain: 1,
	})
	passed := false
	for i := 0; i < 1000; i++ {
		z.advance()
		if !z.Active() {
			t.Fatalf("looping zone deactivated at step %d", i)
		}
		p := z.Position()
		if p >= 80 {
			t.Fatalf("position %f reached loop end", p)
		}
		if p >= 20 {
			passed = true
		} else if passed {
			t.Fatalf("position %f fell below loop start", p)
		}
	}
	if start, end, ok := z.Loop(); !ok || start != 20 || end != 80 {
		t.Fatalf("Loop() = %d, %d, %v", start, end, ok)
	}
}

func TestZoneWithoutLoopStopsAtEnd(t *testing.T) {
	s := rampSample(100)
	var z ActiveZone
	z.init(zoneSetup{sample: s, baseRate: 1, end: 100, weight: 1, gain: 1})
	for i := 0; i < 99; i++ {
		z.advance()
	}
	if !z.Active() {
		t.Fatalf("zone stopped early at %f", z.Position())
	}
	z.advance()
	if z.Active() {
		t.Fatalf("zone still active past end")
	}
}

func TestZoneLoopUntilReleasePlaysOutAfterRelease(t *testing.T) {
	s := rampSample(100)
	var z ActiveZone
	z.init(zoneSetup{
		sample: s, baseRate: 1, end: 100,
		loopStart: 10, loopEnd: 50, loopMode: bank.LoopUntilRelease, weight: 1, gain: 1,
	})
	for i := 0; i < 500; i++ {
		z.advance()
	}
	if !z.Active() || z.Position() >= 50 {
		t.Fatalf("held zone left loop: active=%v pos=%f", z.Active(), z.Position())
	}
	z.released = true
	for i := 0; i < 100 && z.Active(); i++ {
		z.advance()
	}
	if z.Active() {
		t.Fatalf("released zone never reached the end")
	}
}

func TestZoneInvalidLoopFallsBackToOneShot(t *testing.T) {
	s := rampSample(100)
	var z ActiveZone
	z.init(zoneSetup{
		sample: s, baseRate: 1, end: 100,
		loopStart: 60, loopEnd: 40, loopMode: bank.LoopContinuous, weight: 1, gain: 1,
	})
	if _, _, ok := z.Loop(); ok {
		t.Fatalf("inverted loop accepted")
	}
}

func TestZoneReadInterpolates(t *testing.T) {
	s := rampSample(100)
	var z ActiveZone
	z.init(zoneSetup{sample: s, baseRate: 10.5, end: 100, weight: 1, gain: 1})
	z.advance()
	want := float32(10.5*100) * pcmScale
	for _, mode := range []dsp.Interpolation{dsp.InterpLinear, dsp.InterpCatmullRom, dsp.InterpLagrange} {
		got := z.read(mode)
		if d := got - want; d > 1e-5 || d < -1e-5 {
			t.Fatalf("%s read %f want %f", mode, got, want)
		}
	}
}
