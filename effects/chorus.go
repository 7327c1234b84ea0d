package effects

import (
	"github.com/cwbudde/algo-sfsynth/dsp"
	"github.com/cwbudde/algo-sfsynth/synth"
)

// ChorusConfig describes the chorus return bus.
type ChorusConfig struct {
	RateHz   float32
	DelayMs  float32 // centre delay
	DepthMs  float32 // peak excursion around the centre
	Feedback float32
	Gain     float32
}

// DefaultChorusConfig returns a gentle two-voice chorus.
func DefaultChorusConfig() ChorusConfig {
	return ChorusConfig{
		RateHz:   0.8,
		DelayMs:  12,
		DepthMs:  3,
		Feedback: 0.15,
		Gain:     0.5,
	}
}

// Chorus is a stereo modulated delay. The two sides are swept by LFOs a
// quarter cycle apart.
type Chorus struct {
	sampleRate float32
	cfg        ChorusConfig

	lineL, lineR *dsp.DelayLine
	lfoL, lfoR   synth.LFO
	base, depth  float32
}

// NewChorus builds a chorus at sampleRate.
func NewChorus(sampleRate int, cfg ChorusConfig) *Chorus {
	sr := float32(sampleRate)
	cfg.Feedback = min(max(cfg.Feedback, -0.95), 0.95)
	cfg.DelayMs = max(cfg.DelayMs, 1)
	cfg.DepthMs = min(max(cfg.DepthMs, 0), cfg.DelayMs-0.5)

	c := &Chorus{
		sampleRate: sr,
		cfg:        cfg,
		base:       cfg.DelayMs * sr / 1000,
		depth:      cfg.DepthMs * sr / 1000,
		lfoL:       synth.NewLFO(sr, cfg.RateHz),
		lfoR:       synth.NewLFO(sr, cfg.RateHz),
	}
	size := int(c.base+c.depth) + 4
	c.lineL = dsp.NewDelayLine(size)
	c.lineR = dsp.NewDelayLine(size)
	c.Reset()
	return c
}

// Process adds the chorus return of inL/inR to dstL/dstR.
func (c *Chorus) Process(dstL, dstR, inL, inR []float32) {
	fb := c.cfg.Feedback
	g := c.cfg.Gain
	for i := range inL {
		dl := c.base + c.depth*c.lfoL.Process()
		dr := c.base + c.depth*c.lfoR.Process()
		wl := c.lineL.ReadFractional(dl)
		wr := c.lineR.ReadFractional(dr)
		c.lineL.Write(inL[i] + wl*fb)
		c.lineR.Write(inR[i] + wr*fb)
		dstL[i] += wl * g
		dstR[i] += wr * g
	}
}

// Reset clears the delay lines and puts the LFOs back in quadrature.
func (c *Chorus) Reset() {
	c.lineL.Reset()
	c.lineR.Reset()
	c.lfoL.Reset()
	c.lfoR.Reset()
	quarter := int(c.sampleRate / (4 * c.lfoR.Frequency()))
	for range quarter {
		c.lfoR.Process()
	}
}
