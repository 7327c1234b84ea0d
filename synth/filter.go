package synth

import (
	"math"

	"github.com/cwbudde/algo-sfsynth/dsp"
)

const (
	MinCutoffHz    = 100
	MaxCutoffHz    = 8000
	MinResonanceQ  = 0.7
	MaxResonanceQ  = 40
	filterOutLimit = 2.0

	cutoffEpsilonHz = 1.0
	qEpsilon        = 0.01
)

// LowPassFilter is the voice's resonant 2-pole filter. Coefficients are only
// recomputed when cutoff or Q move by more than a small tolerance.
type LowPassFilter struct {
	biquad     dsp.Biquad
	sampleRate float32
	cutoff     float32
	q          float32
	updates    int
}

// NewLowPassFilter returns a filter at the maximum cutoff and Butterworth Q.
func NewLowPassFilter(sampleRate float32) LowPassFilter {
	f := LowPassFilter{sampleRate: sampleRate}
	f.biquad.SetLimit(filterOutLimit)
	f.cutoff = -1
	f.SetParams(MaxCutoffHz, math.Sqrt2/2)
	return f
}

// SetParams clamps and applies cutoff (Hz) and Q.
func (f *LowPassFilter) SetParams(cutoff, q float32) {
	if !isFinite(cutoff) {
		cutoff = MaxCutoffHz
	}
	if !isFinite(q) {
		q = MinResonanceQ
	}
	cutoff = clampf(cutoff, MinCutoffHz, MaxCutoffHz)
	q = clampf(q, MinResonanceQ, MaxResonanceQ)
	if f.cutoff >= 0 && absf(cutoff-f.cutoff) <= cutoffEpsilonHz && absf(q-f.q) <= qEpsilon {
		return
	}
	f.cutoff = cutoff
	f.q = q
	f.biquad.SetLowpass(cutoff, f.sampleRate, q)
	f.updates++
}

// Cutoff returns the cutoff currently in use.
func (f *LowPassFilter) Cutoff() float32 { return f.cutoff }

// Q returns the resonance currently in use.
func (f *LowPassFilter) Q() float32 { return f.q }

// Updates counts coefficient recomputations since construction.
func (f *LowPassFilter) Updates() int { return f.updates }

// Process filters one sample. Output is bounded to [-2, 2].
func (f *LowPassFilter) Process(x float32) float32 {
	return f.biquad.Process(x)
}

// Reset clears the filter history.
func (f *LowPassFilter) Reset() {
	f.biquad.Reset()
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
