package synth

import (
	"math"
	"testing"
)

func TestLowPassFilterClampsParameters(t *testing.T) {
	f := NewLowPassFilter(testRate)
	cases := []struct {
		cutoff, q      float32
		wantCut, wantQ float32
	}{
		{20, 0.1, MinCutoffHz, MinResonanceQ},
		{20000, 100, MaxCutoffHz, MaxResonanceQ},
		{1000, 2, 1000, 2},
		{float32(math.Inf(1)), float32(math.NaN()), MaxCutoffHz, MinResonanceQ},
	}
	for _, tc := range cases {
		f.SetParams(tc.cutoff, tc.q)
		if f.Cutoff() != tc.wantCut || f.Q() != tc.wantQ {
			t.Fatalf("SetParams(%f,%f) -> (%f,%f), want (%f,%f)", tc.cutoff, tc.q, f.Cutoff(), f.Q(), tc.wantCut, tc.wantQ)
		}
	}
}

func TestLowPassFilterSkipsSmallChanges(t *testing.T) {
	f := NewLowPassFilter(testRate)
	f.SetParams(1000, 1)
	base := f.Updates()
	f.SetParams(1000.5, 1.005)
	if f.Updates() != base {
		t.Fatalf("sub-tolerance change recomputed coefficients")
	}
	f.SetParams(1002, 1)
	if f.Updates() != base+1 {
		t.Fatalf("cutoff change did not recompute")
	}
	f.SetParams(1002, 1.5)
	if f.Updates() != base+2 {
		t.Fatalf("Q change did not recompute")
	}
}

func TestLowPassFilterAttenuatesAboveCutoff(t *testing.T) {
	rms := func(freq float64) float64 {
		f := NewLowPassFilter(testRate)
		f.SetParams(500, MinResonanceQ)
		var sum float64
		n := testRate / 2
		for i := 0; i < n; i++ {
			y := f.Process(float32(math.Sin(2 * math.Pi * freq * float64(i) / testRate)))
			if i > n/2 {
				sum += float64(y) * float64(y)
			}
		}
		return math.Sqrt(sum / float64(n/2))
	}
	low, high := rms(100), rms(5000)
	if high > low*0.1 {
		t.Fatalf("5 kHz rms %f not well below 100 Hz rms %f", high, low)
	}
}

func TestLowPassFilterOutputBounded(t *testing.T) {
	f := NewLowPassFilter(testRate)
	f.SetParams(1000, MaxResonanceQ)
	for i := 0; i < testRate; i++ {
		y := f.Process(float32(math.Sin(2 * math.Pi * 1000 * float64(i) / testRate)))
		if y > filterOutLimit || y < -filterOutLimit {
			t.Fatalf("sample %d = %f exceeds limit", i, y)
		}
	}
}
