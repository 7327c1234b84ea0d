// Package irsynth generates synthetic stereo room impulse responses for the
// reverb return bus.
package irsynth

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var ErrInvalidConfig = errors.New("invalid room config")

// RoomConfig controls stereo room IR generation.
type RoomConfig struct {
	SampleRate int
	DurationS  float64 // typically 0.3-2.0 s
	PreDelayS  float64 // gap before the first reflection
	Seed       int64

	EarlyCount  int
	EarlySpanS  float64 // early reflections land in [PreDelayS, PreDelayS+EarlySpanS)
	LateLevel   float64
	StereoWidth float64
	Brightness  float64
	LowDecayS   float64
	HighDecayS  float64
	FadeOutS    float64 // cosine fade-out at the end; 0 = no fade

	NormalizePeak float64
}

// DefaultRoomConfig returns a medium room at 44.1 kHz.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		SampleRate:    44100,
		DurationS:     1.0,
		PreDelayS:     0.001,
		Seed:          1,
		EarlyCount:    24,
		EarlySpanS:    0.049,
		LateLevel:     0.06,
		StereoWidth:   0.6,
		Brightness:    0.8,
		LowDecayS:     1.2,
		HighDecayS:    0.2,
		FadeOutS:      0.01,
		NormalizePeak: 0.9,
	}
}

func (c *RoomConfig) Validate() error {
	switch {
	case c.SampleRate < 8000:
		return fmt.Errorf("sample rate too low: %d: %w", c.SampleRate, ErrInvalidConfig)
	case c.DurationS <= 0:
		return fmt.Errorf("duration must be > 0: %w", ErrInvalidConfig)
	case c.PreDelayS < 0 || c.PreDelayS >= c.DurationS:
		return fmt.Errorf("pre-delay must be in [0, duration): %w", ErrInvalidConfig)
	case c.EarlyCount < 0:
		return fmt.Errorf("early count must be >= 0: %w", ErrInvalidConfig)
	case c.EarlySpanS < 0:
		return fmt.Errorf("early span must be >= 0: %w", ErrInvalidConfig)
	case c.LateLevel < 0:
		return fmt.Errorf("late level must be >= 0: %w", ErrInvalidConfig)
	case c.StereoWidth < 0:
		return fmt.Errorf("stereo width must be >= 0: %w", ErrInvalidConfig)
	case c.Brightness <= 0:
		return fmt.Errorf("brightness must be > 0: %w", ErrInvalidConfig)
	case c.LowDecayS <= 0 || c.HighDecayS <= 0:
		return fmt.Errorf("decay seconds must be > 0: %w", ErrInvalidConfig)
	case c.NormalizePeak <= 0:
		return fmt.Errorf("normalize peak must be > 0: %w", ErrInvalidConfig)
	}
	return nil
}

// GenerateRoom synthesizes a stereo room IR: sparse early reflections followed
// by a two-band diffuse noise tail. The result is normalized so its larger
// channel peaks at NormalizePeak. The same Seed always yields the same IR.
func GenerateRoom(cfg RoomConfig) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	n := max(int(math.Round(cfg.DurationS*float64(cfg.SampleRate))), 1)
	left := make([]float64, n)
	right := make([]float64, n)
	rng := rand.New(rand.NewSource(cfg.Seed))

	earlyReflections(left, right, &cfg, rng)
	if cfg.LateLevel > 0 {
		lateTail(left, right, &cfg, rng)
	}

	highpassDC(left, 0.995)
	highpassDC(right, 0.995)
	applyFadeOut(left, cfg.FadeOutS, cfg.SampleRate)
	applyFadeOut(right, cfg.FadeOutS, cfg.SampleRate)

	peak := max(maxAbs(left), maxAbs(right), 1e-12)
	s := cfg.NormalizePeak / peak
	outL := make([]float32, n)
	outR := make([]float32, n)
	for i := range outL {
		outL[i] = float32(left[i] * s)
		outR[i] = float32(right[i] * s)
	}
	return outL, outR, nil
}

func earlyReflections(left, right []float64, cfg *RoomConfig, rng *rand.Rand) {
	sr := float64(cfg.SampleRate)
	for i := 0; i < cfg.EarlyCount; i++ {
		t := cfg.PreDelayS + cfg.EarlySpanS*rng.Float64()
		idx := int(t * sr)
		if idx <= 0 || idx >= len(left) {
			continue
		}
		amp := (0.10 + 0.35*rng.Float64()) * math.Exp(-t*20.0)
		amp *= math.Pow(0.5+0.5*rng.Float64(), 1.0/cfg.Brightness)
		pan := (rng.Float64()*2.0 - 1.0) * cfg.StereoWidth
		left[idx] += amp * (1.0 - 0.5*pan)
		right[idx] += amp * (1.0 + 0.5*pan)
	}
}

// lateTail adds low-passed noise decaying with LowDecayS and high-passed
// noise decaying with HighDecayS, starting after the pre-delay.
func lateTail(left, right []float64, cfg *RoomConfig, rng *rand.Rand) {
	sr := float64(cfg.SampleRate)
	start := int(cfg.PreDelayS * sr)
	air := max(0.3*(cfg.Brightness-0.3), 0)

	var lpL, lpR, hpL, hpR float64
	for i := start; i < len(left); i++ {
		t := float64(i-start) / sr
		lowEnv := math.Exp(-t / (0.75 * cfg.LowDecayS))
		highEnv := math.Exp(-t / (0.75 * cfg.HighDecayS))

		nL := rng.NormFloat64()
		nR := rng.NormFloat64()
		lpL = 0.985*lpL + 0.015*nL
		lpR = 0.985*lpR + 0.015*nR
		hpL = 0.15*nL - 0.15*hpL
		hpR = 0.15*nR - 0.15*hpR

		left[i] += cfg.LateLevel * (lowEnv*lpL + air*highEnv*hpL)
		right[i] += cfg.LateLevel * (lowEnv*lpR + air*highEnv*hpR)
	}
}

func highpassDC(x []float64, r float64) {
	prevIn, prevOut := 0.0, 0.0
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = max(m, math.Abs(v))
	}
	return m
}

// applyFadeOut applies a cosine fade-out to the last fadeS seconds of buf.
func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	fadeSamples := min(int(math.Round(fadeS*float64(sampleRate))), len(buf))
	start := len(buf) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples)
		buf[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}
