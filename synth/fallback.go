package synth

import (
	"math"

	"github.com/cwbudde/algo-sfsynth/bank"
)

const (
	fallbackCycleLen = 2048
	fallbackRootKey  = 69
	fallbackAmp      = 0.5
)

// newFallbackSample builds one looped sine cycle that plays A440 at its root
// key.
func newFallbackSample() bank.Sample {
	data := make([]int16, fallbackCycleLen)
	for i := range data {
		data[i] = int16(math.Round(fallbackAmp * 32767 * math.Sin(2*math.Pi*float64(i)/fallbackCycleLen)))
	}
	return bank.Sample{
		Name:       "fallback-sine",
		Data:       data,
		SampleRate: 440 * fallbackCycleLen,
		RootKey:    fallbackRootKey,
		LoopStart:  0,
		LoopEnd:    fallbackCycleLen,
	}
}

func fallbackZone(s *bank.Sample) bank.ZoneMatch {
	m := bank.ZoneMatch{
		Sample:   s,
		Weight:   1,
		KeyRange: bank.FullRange,
		VelRange: bank.FullRange,
	}
	m.Generators.Set(bank.GenSampleModes, bank.LoopContinuous)
	m.Generators.Set(bank.GenAttackVolEnv, -7200)
	m.Generators.Set(bank.GenReleaseVolEnv, -2400)
	return m
}
