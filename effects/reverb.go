package effects

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"

	"github.com/cwbudde/algo-sfsynth/internal/audioio"
	"github.com/cwbudde/algo-sfsynth/irsynth"
)

// BlockSize is the partition size of the reverb convolution. Callers that
// stream audio should hand the bus whole blocks of this length.
const BlockSize = 128

var ErrEmptyIR = errors.New("empty impulse response")

// ReverbConfig describes the reverb return bus.
type ReverbConfig struct {
	// Room shapes the synthetic impulse response. Its SampleRate is replaced
	// with the bus rate.
	Room irsynth.RoomConfig
	// DampingHz is the cutoff of the low-pass applied to the send before the
	// convolution.
	DampingHz float64
	// Gain scales the wet return.
	Gain float32
}

// DefaultReverbConfig returns a medium room.
func DefaultReverbConfig() ReverbConfig {
	room := irsynth.DefaultRoomConfig()
	room.DurationS = 1.2
	return ReverbConfig{
		Room:      room,
		DampingHz: 6000,
		Gain:      0.5,
	}
}

// Reverb is a send/return convolution reverb. The mono send is damped, then
// convolved with a stereo impulse response in BlockSize partitions.
type Reverb struct {
	sampleRate int
	gain       float32
	irLen      int

	conv *convolver
	damp *biquad.Section

	block    []float32
	leftOut  []float32
	rightOut []float32
}

// NewReverb builds a reverb with an impulse response generated from
// cfg.Room at sampleRate.
func NewReverb(sampleRate int, cfg ReverbConfig) (*Reverb, error) {
	r := &Reverb{
		sampleRate: sampleRate,
		gain:       cfg.Gain,
		block:      make([]float32, BlockSize),
		leftOut:    make([]float32, BlockSize),
		rightOut:   make([]float32, BlockSize),
	}
	r.SetDamping(cfg.DampingHz)

	room := cfg.Room
	room.SampleRate = sampleRate
	left, right, err := irsynth.GenerateRoom(room)
	if err != nil {
		return nil, fmt.Errorf("reverb room: %w", err)
	}
	if err := r.SetIR(left, right); err != nil {
		return nil, err
	}
	return r, nil
}

// SetIR installs left/right impulse responses and clears the history.
func (r *Reverb) SetIR(left, right []float32) error {
	if len(left) == 0 && len(right) == 0 {
		return ErrEmptyIR
	}
	if len(left) == 0 {
		left = right
	}
	if len(right) == 0 {
		right = left
	}
	conv, err := newConvolver(left, right)
	if err != nil {
		return fmt.Errorf("reverb IR: %w", err)
	}
	r.conv = conv
	r.irLen = max(len(left), len(right))
	r.Reset()
	return nil
}

// SetIRFromWAV loads a mono or stereo impulse response, resampled to the bus
// rate.
func (r *Reverb) SetIRFromWAV(path string) error {
	left, right, rate, err := audioio.ReadWAVStereo(path)
	if err != nil {
		return err
	}
	return r.SetIRAtRate(left, right, rate)
}

// SetIRAtRate installs an impulse response recorded at rate, resampling it to
// the bus rate first.
func (r *Reverb) SetIRAtRate(left, right []float32, rate int) error {
	var err error
	if left, err = audioio.ResampleIfNeeded32(left, rate, r.sampleRate); err != nil {
		return err
	}
	if right, err = audioio.ResampleIfNeeded32(right, rate, r.sampleRate); err != nil {
		return err
	}
	return r.SetIR(left, right)
}

// SetDamping sets the send low-pass cutoff. Zero or a cutoff at or above
// Nyquist disables damping.
func (r *Reverb) SetDamping(hz float64) {
	sr := float64(r.sampleRate)
	if hz <= 0 || hz >= 0.49*sr {
		r.damp = biquad.NewSection(biquad.Coefficients{B0: 1})
		return
	}
	w0 := 2 * math.Pi * hz / sr
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / math.Sqrt2 // Butterworth Q
	inv := 1 / (1 + alpha)
	r.damp = biquad.NewSection(biquad.Coefficients{
		B0: (1 - cw) * 0.5 * inv,
		B1: (1 - cw) * inv,
		B2: (1 - cw) * 0.5 * inv,
		A1: -2 * cw * inv,
		A2: (1 - alpha) * inv,
	})
}

// SetGain sets the wet return level.
func (r *Reverb) SetGain(g float32) { r.gain = g }

// IRLen returns the impulse response length in samples.
func (r *Reverb) IRLen() int { return r.irLen }

// Process adds the reverb return of the mono send in to dstL and dstR. A short
// final block is zero padded.
func (r *Reverb) Process(dstL, dstR, in []float32) {
	for done := 0; done < len(in); done += BlockSize {
		n := min(BlockSize, len(in)-done)
		for i := 0; i < n; i++ {
			r.block[i] = float32(r.damp.ProcessSample(float64(in[done+i])))
		}
		clear(r.block[n:])

		if err := r.conv.processBlock(r.leftOut, r.rightOut, r.block); err != nil {
			continue
		}
		for i := 0; i < n; i++ {
			dstL[done+i] += r.leftOut[i] * r.gain
			dstR[done+i] += r.rightOut[i] * r.gain
		}
	}
}

// Reset clears the convolution and damping history.
func (r *Reverb) Reset() {
	if r.conv != nil {
		r.conv.reset()
	}
	r.damp.Reset()
}
