package synth

import (
	"math"

	"github.com/cwbudde/algo-sfsynth/bank"
)

const testRate = 44100

// sineSample builds n samples of a sine with an exact number of cycles so the
// whole buffer loops without a click.
func sineSample(name string, period, n int, loop bool) bank.Sample {
	data := make([]int16, n)
	for i := range data {
		data[i] = int16(math.Round(16000 * math.Sin(2*math.Pi*float64(i)/float64(period))))
	}
	s := bank.Sample{Name: name, Data: data, SampleRate: testRate, RootKey: 69}
	if loop {
		s.LoopEnd = n
	}
	return s
}

// testBank has four presets:
//
//	program 0: looped 441 Hz sine across the keyboard
//	program 1: 1000-sample one-shot
//	program 2: two crossfaded velocity layers
//	bank 128 program 0: drum kit whose zones share exclusive class 1
func testBank() *bank.Bank {
	var exclusive bank.GenSet
	exclusive.Set(bank.GenExclusiveClass, 1)
	return &bank.Bank{
		Name: "test",
		Samples: []bank.Sample{
			sineSample("loop", 100, 4400, true),
			sineSample("oneshot", 100, 1000, false),
		},
		Instruments: []bank.Instrument{
			{Name: "loop", Zones: []bank.InstrumentZone{{KeyRange: bank.FullRange, VelRange: bank.FullRange, Sample: 0}}},
			{Name: "oneshot", Zones: []bank.InstrumentZone{{KeyRange: bank.FullRange, VelRange: bank.FullRange, Sample: 1}}},
			{Name: "layers", Zones: []bank.InstrumentZone{
				{KeyRange: bank.FullRange, VelRange: bank.Range{Lo: 0, Hi: 79}, Sample: 0},
				{KeyRange: bank.FullRange, VelRange: bank.Range{Lo: 64, Hi: 127}, Sample: 1},
			}},
			{Name: "kit", Global: exclusive, Zones: []bank.InstrumentZone{
				{KeyRange: bank.Range{Lo: 35, Hi: 50}, VelRange: bank.FullRange, Sample: 0},
			}},
		},
		Presets: []bank.Preset{
			{Name: "loop", Program: 0, Zones: []bank.PresetZone{{KeyRange: bank.FullRange, VelRange: bank.FullRange, Instrument: 0}}},
			{Name: "oneshot", Program: 1, Zones: []bank.PresetZone{{KeyRange: bank.FullRange, VelRange: bank.FullRange, Instrument: 1}}},
			{Name: "layers", Program: 2, Zones: []bank.PresetZone{{KeyRange: bank.FullRange, VelRange: bank.FullRange, Instrument: 2}}},
			{Name: "kit", Bank: bank.DrumBank, Program: 0, Zones: []bank.PresetZone{{KeyRange: bank.FullRange, VelRange: bank.FullRange, Instrument: 3}}},
		},
	}
}

// loopMatch returns a single full-weight zone playing the looped test sample.
func loopMatch(b *bank.Bank) bank.ZoneMatch {
	return bank.ZoneMatch{
		Sample:   &b.Samples[0],
		Weight:   1,
		KeyRange: bank.FullRange,
		VelRange: bank.FullRange,
	}
}

func renderMono(m *VoiceManager, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		l, r := m.Process()
		out[i] = float64(l + r)
	}
	return out
}

func renderVoice(v *Voice, n int) (left, right []float32) {
	left = make([]float32, n)
	right = make([]float32, n)
	for i := 0; i < n; i++ {
		left[i], right[i] = v.Process()
	}
	return left, right
}

func windowRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func maxAbs(samples []float32) float64 {
	m := 0.0
	for _, s := range samples {
		m = math.Max(m, math.Abs(float64(s)))
	}
	return m
}
