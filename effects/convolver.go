package effects

import (
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
)

// convolver is a uniformly partitioned overlap-save convolution of one input
// with a left and a right kernel. Both kernels share the input spectra, so a
// block costs one forward and two inverse FFTs of 2*BlockSize plus the
// spectral multiply-accumulate over every partition.
type convolver struct {
	plan  *algofft.PlanReal
	parts int
	bins  int

	kernL [][]complex64
	kernR [][]complex64
	// fdl is a ring of past input spectra; fdl[head] is the newest.
	fdl  [][]complex64
	head int

	window []float32
	accL   []complex64
	accR   []complex64
	timeL  []float32
	timeR  []float32
}

func newConvolver(left, right []float32) (*convolver, error) {
	plan, err := algofft.NewPlanReal(2 * BlockSize)
	if err != nil {
		return nil, fmt.Errorf("convolver plan: %w", err)
	}
	n := max(len(left), len(right))
	c := &convolver{
		plan:   plan,
		parts:  (n + BlockSize - 1) / BlockSize,
		bins:   plan.SpectrumLen(),
		window: make([]float32, 2*BlockSize),
		timeL:  make([]float32, 2*BlockSize),
		timeR:  make([]float32, 2*BlockSize),
	}
	c.accL = make([]complex64, c.bins)
	c.accR = make([]complex64, c.bins)
	if c.kernL, err = c.partition(left); err != nil {
		return nil, err
	}
	if c.kernR, err = c.partition(right); err != nil {
		return nil, err
	}
	c.fdl = make([][]complex64, c.parts)
	for i := range c.fdl {
		c.fdl[i] = make([]complex64, c.bins)
	}
	return c, nil
}

// partition splits h into BlockSize pieces, each zero padded to 2*BlockSize
// and transformed.
func (c *convolver) partition(h []float32) ([][]complex64, error) {
	out := make([][]complex64, c.parts)
	seg := make([]float32, 2*BlockSize)
	for p := range out {
		clear(seg)
		if lo := p * BlockSize; lo < len(h) {
			copy(seg, h[lo:min(lo+BlockSize, len(h))])
		}
		out[p] = make([]complex64, c.bins)
		if err := c.plan.Forward(out[p], seg); err != nil {
			return nil, fmt.Errorf("kernel partition %d: %w", p, err)
		}
	}
	return out, nil
}

// processBlock convolves one BlockSize input block into outL and outR.
func (c *convolver) processBlock(outL, outR, in []float32) error {
	copy(c.window, c.window[BlockSize:])
	copy(c.window[BlockSize:], in[:BlockSize])

	c.head--
	if c.head < 0 {
		c.head = c.parts - 1
	}
	if err := c.plan.Forward(c.fdl[c.head], c.window); err != nil {
		return err
	}

	clear(c.accL)
	clear(c.accR)
	for p := 0; p < c.parts; p++ {
		x := c.fdl[(c.head+p)%c.parts]
		hl, hr := c.kernL[p], c.kernR[p]
		for k, v := range x {
			c.accL[k] += v * hl[k]
			c.accR[k] += v * hr[k]
		}
	}
	// DC and Nyquist are real for a real signal; drop rounding residue so
	// the inverse accepts the spectrum.
	last := c.bins - 1
	c.accL[0], c.accL[last] = complex(real(c.accL[0]), 0), complex(real(c.accL[last]), 0)
	c.accR[0], c.accR[last] = complex(real(c.accR[0]), 0), complex(real(c.accR[last]), 0)

	if err := c.plan.Inverse(c.timeL, c.accL); err != nil {
		return err
	}
	if err := c.plan.Inverse(c.timeR, c.accR); err != nil {
		return err
	}
	copy(outL, c.timeL[BlockSize:])
	copy(outR, c.timeR[BlockSize:])
	return nil
}

func (c *convolver) reset() {
	clear(c.window)
	for _, s := range c.fdl {
		clear(s)
	}
	c.head = 0
}
