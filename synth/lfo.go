package synth

import "math"

// Waveform selects the LFO shape.
type Waveform uint8

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSquare
)

const (
	MinLFOFrequency = 0.1
	MaxLFOFrequency = 20.0
)

// LFO is a low-frequency oscillator producing values in [-depth, depth].
type LFO struct {
	phase      float64
	freq       float32
	depth      float32
	waveform   Waveform
	sampleRate float32
	delay      int // samples of silence after Reset
	delayLeft  int
	value      float32
}

// NewLFO returns a sine LFO with full depth.
func NewLFO(sampleRate float32, freq float32) LFO {
	l := LFO{sampleRate: sampleRate, depth: 1}
	l.SetFrequency(freq)
	return l
}

// SetFrequency sets the rate in Hz, clamped to [0.1, 20].
func (l *LFO) SetFrequency(hz float32) {
	if !isFinite(hz) {
		hz = MinLFOFrequency
	}
	l.freq = clampf(hz, MinLFOFrequency, MaxLFOFrequency)
}

// Frequency returns the current rate in Hz.
func (l *LFO) Frequency() float32 { return l.freq }

// SetDepth sets the output scale, clamped to [0, 1].
func (l *LFO) SetDepth(d float32) {
	if !isFinite(d) {
		d = 0
	}
	l.depth = clampf(d, 0, 1)
}

// Depth returns the output scale.
func (l *LFO) Depth() float32 { return l.depth }

// SetWaveform selects the shape.
func (l *LFO) SetWaveform(w Waveform) {
	if w > WaveSquare {
		w = WaveSine
	}
	l.waveform = w
}

// SetDelay sets how many samples the LFO holds at zero after Reset.
func (l *LFO) SetDelay(samples int) {
	if samples < 0 {
		samples = 0
	}
	l.delay = samples
}

// Reset restarts the LFO at phase 0 and re-arms its delay.
func (l *LFO) Reset() {
	l.phase = 0
	l.value = 0
	l.delayLeft = l.delay
}

// Value returns the most recent output without advancing.
func (l *LFO) Value() float32 { return l.value }

// Process advances the phase by one sample and returns the new output.
func (l *LFO) Process() float32 {
	return l.ProcessRate(l.freq)
}

// ProcessRate advances using hz instead of the stored frequency. Used when the
// rate itself is modulated.
func (l *LFO) ProcessRate(hz float32) float32 {
	if l.delayLeft > 0 {
		l.delayLeft--
		l.value = 0
		return 0
	}
	if l.sampleRate <= 0 {
		l.value = 0
		return 0
	}

	var v float32
	switch l.waveform {
	case WaveTriangle:
		// 0 at phase 0, rising to 1 at 0.25.
		p := float32(l.phase)
		switch {
		case p < 0.25:
			v = 4 * p
		case p < 0.75:
			v = 2 - 4*p
		default:
			v = 4*p - 4
		}
	case WaveSquare:
		if l.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	default:
		v = float32(math.Sin(2 * math.Pi * l.phase))
	}

	hz = clampf(hz, MinLFOFrequency, MaxLFOFrequency)
	l.phase += float64(hz) / float64(l.sampleRate)
	if l.phase >= 1 {
		l.phase -= math.Floor(l.phase)
	}

	l.value = v * l.depth
	return l.value
}
