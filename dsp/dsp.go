package dsp

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Biquad implements a second-order IIR filter (no heap allocations in Process).
// Output and feedback state are clamped to [-limit, limit] when limit > 0.
type Biquad struct {
	// Coefficients
	b0, b1, b2 float32
	a1, a2     float32

	// State (previous samples)
	x1, x2 float32 // input history
	y1, y2 float32 // output history

	limit float32
}

// NewBiquad creates a new biquad filter with the given normalized coefficients.
func NewBiquad(b0, b1, b2, a1, a2 float32) *Biquad {
	return &Biquad{
		b0: b0,
		b1: b1,
		b2: b2,
		a1: a1,
		a2: a2,
	}
}

// NewLowpass creates an RBJ lowpass biquad.
func NewLowpass(cutoff, sampleRate, q float32) *Biquad {
	b := &Biquad{}
	b.SetLowpass(cutoff, sampleRate, q)
	return b
}

// SetLimit sets the symmetric clamp applied to output and state. Zero disables it.
func (b *Biquad) SetLimit(limit float32) {
	if limit < 0 {
		limit = 0
	}
	b.limit = limit
}

// SetLowpass recomputes RBJ lowpass coefficients in place. Filter history is kept
// so that cutoff sweeps do not click.
func (b *Biquad) SetLowpass(cutoff, sampleRate, q float32) {
	if sampleRate <= 0 {
		return
	}
	nyq := sampleRate * 0.49
	if cutoff > nyq {
		cutoff = nyq
	}
	if cutoff < 1 {
		cutoff = 1
	}
	if q < 0.1 {
		q = 0.1
	}
	w0 := 2.0 * math.Pi * float64(cutoff) / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * float64(q))
	cosw0 := math.Cos(w0)

	b0 := (1.0 - cosw0) / 2.0
	b1 := 1.0 - cosw0
	b2 := (1.0 - cosw0) / 2.0
	a0 := 1.0 + alpha
	a1 := -2.0 * cosw0
	a2 := 1.0 - alpha

	b.b0 = float32(b0 / a0)
	b.b1 = float32(b1 / a0)
	b.b2 = float32(b2 / a0)
	b.a1 = float32(a1 / a0)
	b.a2 = float32(a2 / a0)
}

// Process processes one sample through the biquad filter.
func (b *Biquad) Process(input float32) float32 {
	// Direct Form I
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	output = float32(dspcore.FlushDenormals(float64(output)))
	if b.limit > 0 {
		output = clamp(output, -b.limit, b.limit)
	}
	if output != output {
		// NaN poisoning the history would never recover.
		b.Reset()
		return 0
	}

	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output

	return output
}

// Reset clears the filter state.
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// DelayLine implements a circular buffer for delay.
type DelayLine struct {
	buffer   []float32
	writePos int
	size     int
}

// NewDelayLine creates a new delay line with the given size.
func NewDelayLine(size int) *DelayLine {
	if size < 2 {
		size = 2
	}
	return &DelayLine{
		buffer: make([]float32, size),
		size:   size,
	}
}

// Len returns the capacity in samples.
func (d *DelayLine) Len() int { return d.size }

// Write writes a sample to the delay line.
func (d *DelayLine) Write(sample float32) {
	d.buffer[d.writePos] = sample
	d.writePos = (d.writePos + 1) % d.size
}

// Read reads a sample from the delay line at the given delay (in samples).
// A delay of 1 returns the most recently written sample.
func (d *DelayLine) Read(delay int) float32 {
	if delay < 1 {
		delay = 1
	}
	if delay > d.size {
		delay = d.size
	}
	readPos := (d.writePos - delay + d.size) % d.size
	return d.buffer[readPos]
}

// ReadFractional reads with fractional delay using linear interpolation.
func (d *DelayLine) ReadFractional(delay float32) float32 {
	intDelay := int(delay)
	frac := delay - float32(intDelay)
	return Linear(d.Read(intDelay), d.Read(intDelay+1), frac)
}

// Reset clears the delay line.
func (d *DelayLine) Reset() {
	clear(d.buffer)
	d.writePos = 0
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
