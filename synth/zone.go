package synth

import (
	"math"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/dsp"
)

// MaxZones bounds how many sample layers one voice can mix.
const MaxZones = 8

const pcmScale = 1.0 / 32768.0

// ActiveZone is one sample layer inside a voice. The PCM buffer belongs to the
// bank and is only read.
type ActiveZone struct {
	sample *bank.Sample
	data   []int16

	position  float64
	baseRate  float64
	rate      float64
	start     int
	end       int
	loopStart int
	loopEnd   int
	loopMode  int
	released  bool

	amplitude float32 // crossfade weight
	gain      float32 // per-zone attenuation
	active    bool

	keyRange bank.Range
	velRange bank.Range
	rootKey  int
}

// zoneSetup is everything needed to arm a zone.
type zoneSetup struct {
	sample    *bank.Sample
	baseRate  float64
	start     int
	end       int
	loopStart int
	loopEnd   int
	loopMode  int
	weight    float32
	gain      float32
	keyRange  bank.Range
	velRange  bank.Range
	rootKey   int
}

func (z *ActiveZone) init(s zoneSetup) {
	*z = ActiveZone{
		sample:    s.sample,
		data:      s.sample.Data,
		position:  float64(s.start),
		baseRate:  s.baseRate,
		rate:      s.baseRate,
		start:     s.start,
		end:       s.end,
		loopStart: s.loopStart,
		loopEnd:   s.loopEnd,
		loopMode:  s.loopMode,
		amplitude: s.weight,
		gain:      s.gain,
		active:    s.end > s.start && s.weight > 0,
		keyRange:  s.keyRange,
		velRange:  s.velRange,
		rootKey:   s.rootKey,
	}
	if !z.hasLoop() {
		z.loopMode = bank.LoopNone
	}
}

func (z *ActiveZone) clear() {
	*z = ActiveZone{}
}

// Active reports whether the zone still produces samples.
func (z *ActiveZone) Active() bool { return z.active }

// Position returns the fractional read position in sample frames.
func (z *ActiveZone) Position() float64 { return z.position }

// PlaybackRate returns the current increment per output sample.
func (z *ActiveZone) PlaybackRate() float64 { return z.rate }

// Amplitude returns the crossfade weight.
func (z *ActiveZone) Amplitude() float32 { return z.amplitude }

// Loop returns the effective loop points and whether looping is enabled.
func (z *ActiveZone) Loop() (start, end int, ok bool) {
	return z.loopStart, z.loopEnd, z.looping()
}

// RootKey returns the MIDI note the sample plays at unity rate.
func (z *ActiveZone) RootKey() int { return z.rootKey }

func (z *ActiveZone) hasLoop() bool {
	return bank.ValidLoop(z.loopStart, z.loopEnd, z.end) && z.loopStart >= z.start
}

func (z *ActiveZone) looping() bool {
	switch z.loopMode {
	case bank.LoopContinuous:
		return true
	case bank.LoopUntilRelease:
		return !z.released
	}
	return false
}

func (z *ActiveZone) at(i int) float32 {
	if z.looping() && i >= z.loopEnd {
		i = z.loopStart + (i-z.loopEnd)%(z.loopEnd-z.loopStart)
	}
	if i < z.start {
		i = z.start
	}
	if i >= z.end {
		i = z.end - 1
	}
	return float32(z.data[i]) * pcmScale
}

// read interpolates the sample at the current position.
func (z *ActiveZone) read(mode dsp.Interpolation) float32 {
	i := int(z.position)
	frac := float32(z.position - float64(i))
	if mode == dsp.InterpLinear {
		return dsp.Linear(z.at(i), z.at(i+1), frac)
	}
	return dsp.Interpolate(mode, z.at(i-1), z.at(i), z.at(i+1), z.at(i+2), frac)
}

// advance moves the read position by the playback rate, wrapping into the loop
// or deactivating at the end of the data.
func (z *ActiveZone) advance() {
	z.position += z.rate
	if z.looping() {
		if z.position >= float64(z.loopEnd) {
			loopLen := float64(z.loopEnd - z.loopStart)
			z.position = float64(z.loopStart) + math.Mod(z.position-float64(z.loopEnd), loopLen)
		}
		return
	}
	if z.position >= float64(z.end) {
		z.active = false
	}
}
