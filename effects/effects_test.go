package effects

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-sfsynth/internal/audioio"
)

const testRate = 44100

func testReverbConfig() ReverbConfig {
	cfg := DefaultReverbConfig()
	cfg.Room.DurationS = 0.25
	return cfg
}

func rms(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestReverbImpulseProducesTail(t *testing.T) {
	r, err := NewReverb(testRate, testReverbConfig())
	if err != nil {
		t.Fatalf("NewReverb: %v", err)
	}
	if r.IRLen() != int(0.25*testRate) {
		t.Fatalf("IRLen() = %d", r.IRLen())
	}
	n := 8 * BlockSize * 10
	in := make([]float32, n)
	in[0] = 1
	l := make([]float32, n)
	rr := make([]float32, n)
	r.Process(l, rr, in)

	if rms(l[testRate/20:testRate/10]) < 1e-5 || rms(rr[testRate/20:testRate/10]) < 1e-5 {
		t.Fatalf("expected a reverb tail 50-100 ms after the impulse")
	}
	for i := range l {
		if math.IsNaN(float64(l[i])) || math.IsNaN(float64(rr[i])) {
			t.Fatalf("NaN at %d", i)
		}
	}
}

func TestReverbProcessAddsToDestination(t *testing.T) {
	r, err := NewReverb(testRate, testReverbConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetIR([]float32{1}, nil); err != nil {
		t.Fatal(err)
	}
	r.SetDamping(0)
	r.SetGain(1)
	in := make([]float32, BlockSize)
	in[3] = 0.5
	l := make([]float32, BlockSize)
	rr := make([]float32, BlockSize)
	for i := range l {
		l[i], rr[i] = 1, 1
	}
	r.Process(l, rr, in)
	if math.Abs(float64(l[3]-1.5)) > 1e-4 || math.Abs(float64(rr[3]-1.5)) > 1e-4 {
		t.Fatalf("identity IR: got L=%f R=%f, want 1.5", l[3], rr[3])
	}
	if math.Abs(float64(l[4]-1)) > 1e-4 {
		t.Fatalf("dry destination changed: %f", l[4])
	}
}

func TestReverbResetClearsTail(t *testing.T) {
	r, err := NewReverb(testRate, testReverbConfig())
	if err != nil {
		t.Fatal(err)
	}
	in := make([]float32, BlockSize)
	in[0] = 1
	l := make([]float32, BlockSize)
	rr := make([]float32, BlockSize)
	r.Process(l, rr, in)
	r.Reset()

	silence := make([]float32, BlockSize)
	clear(l)
	clear(rr)
	r.Process(l, rr, silence)
	if rms(l) > 1e-7 || rms(rr) > 1e-7 {
		t.Fatalf("tail survived reset: %g %g", rms(l), rms(rr))
	}
}

func TestReverbSetIRErrors(t *testing.T) {
	r, err := NewReverb(testRate, testReverbConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetIR(nil, nil); !errors.Is(err, ErrEmptyIR) {
		t.Fatalf("SetIR(nil, nil) = %v", err)
	}
	if err := r.SetIRFromWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("expected error for missing IR file")
	}
}

func TestReverbSetIRFromWAVResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir.wav")
	ir := make([]float32, 2400)
	ir[0] = 0.9
	for i := 1; i < len(ir); i++ {
		ir[i] = 0.3 * float32(math.Exp(-float64(i)/400)) * float32(math.Sin(float64(i)))
	}
	if err := audioio.WriteStereoWAVLR(path, ir, ir, 48000); err != nil {
		t.Fatalf("write IR: %v", err)
	}
	r, err := NewReverb(testRate, testReverbConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetIRFromWAV(path); err != nil {
		t.Fatalf("SetIRFromWAV: %v", err)
	}
	want := 2400 * testRate / 48000
	if d := r.IRLen() - want; d < -8 || d > 8 {
		t.Fatalf("IRLen() = %d, want about %d", r.IRLen(), want)
	}
}

func TestChorusDelaysAndModulates(t *testing.T) {
	cfg := DefaultChorusConfig()
	cfg.Feedback = 0
	cfg.Gain = 1
	c := NewChorus(testRate, cfg)

	n := testRate / 2
	inL := make([]float32, n)
	inR := make([]float32, n)
	for i := range inL {
		v := float32(math.Sin(2 * math.Pi * 220 * float64(i) / testRate))
		inL[i], inR[i] = v, v
	}
	l := make([]float32, n)
	r := make([]float32, n)
	c.Process(l, r, inL, inR)

	minDelay := int(float32(cfg.DelayMs-cfg.DepthMs) * testRate / 1000)
	for i := 0; i < minDelay-1; i++ {
		if l[i] != 0 || r[i] != 0 {
			t.Fatalf("chorus output before its minimum delay at %d", i)
		}
	}
	if rms(l[n/2:]) < 0.5 || rms(r[n/2:]) < 0.5 {
		t.Fatalf("chorus return too quiet: %f %f", rms(l[n/2:]), rms(r[n/2:]))
	}
	diff := 0.0
	for i := n / 2; i < n; i++ {
		diff += math.Abs(float64(l[i] - r[i]))
	}
	if diff < 1 {
		t.Fatalf("quadrature LFOs should decorrelate the sides")
	}
}

func TestChorusClampsConfig(t *testing.T) {
	c := NewChorus(testRate, ChorusConfig{RateHz: 100, DelayMs: 0, DepthMs: 50, Feedback: 3, Gain: 1})
	if c.cfg.Feedback > 0.95 || c.cfg.DelayMs < 1 || c.cfg.DepthMs > c.cfg.DelayMs {
		t.Fatalf("config not clamped: %+v", c.cfg)
	}
	in := make([]float32, 4096)
	in[0] = 1
	l := make([]float32, len(in))
	r := make([]float32, len(in))
	c.Process(l, r, in, in)
	for i := range l {
		if math.IsNaN(float64(l[i])) || math.Abs(float64(l[i])) > 2 {
			t.Fatalf("unstable output %f at %d", l[i], i)
		}
	}
}
