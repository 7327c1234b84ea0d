package effects

import (
	"math"
	"testing"
)

func directConvolve(x, h []float32) []float64 {
	out := make([]float64, len(x))
	for n := range out {
		var sum float64
		for k := 0; k < len(h) && k <= n; k++ {
			sum += float64(h[k]) * float64(x[n-k])
		}
		out[n] = sum
	}
	return out
}

func TestConvolverMatchesDirectConvolution(t *testing.T) {
	// Kernels span several partitions with a ragged last one.
	left := make([]float32, 3*BlockSize+37)
	right := make([]float32, BlockSize+5)
	for i := range left {
		left[i] = float32(math.Sin(0.37*float64(i))) * float32(math.Exp(-float64(i)/200))
	}
	for i := range right {
		right[i] = float32(math.Cos(0.11 * float64(i)))
	}
	x := make([]float32, 6*BlockSize)
	for i := range x {
		x[i] = float32(math.Sin(0.05*float64(i)) + 0.3*math.Sin(1.3*float64(i)))
	}

	c, err := newConvolver(left, right)
	if err != nil {
		t.Fatalf("newConvolver: %v", err)
	}
	gotL := make([]float32, len(x))
	gotR := make([]float32, len(x))
	for b := 0; b < len(x); b += BlockSize {
		if err := c.processBlock(gotL[b:b+BlockSize], gotR[b:b+BlockSize], x[b:b+BlockSize]); err != nil {
			t.Fatalf("processBlock at %d: %v", b, err)
		}
	}

	wantL := directConvolve(x, left)
	wantR := directConvolve(x, right)
	for i := range x {
		if d := math.Abs(float64(gotL[i]) - wantL[i]); d > 1e-3*(1+math.Abs(wantL[i])) {
			t.Fatalf("left[%d] = %f, want %f", i, gotL[i], wantL[i])
		}
		if d := math.Abs(float64(gotR[i]) - wantR[i]); d > 1e-3*(1+math.Abs(wantR[i])) {
			t.Fatalf("right[%d] = %f, want %f", i, gotR[i], wantR[i])
		}
	}
}

func TestConvolverResetClearsHistory(t *testing.T) {
	h := make([]float32, 2*BlockSize)
	h[BlockSize+3] = 1
	c, err := newConvolver(h, h)
	if err != nil {
		t.Fatalf("newConvolver: %v", err)
	}
	in := make([]float32, BlockSize)
	in[0] = 1
	outL := make([]float32, BlockSize)
	outR := make([]float32, BlockSize)
	if err := c.processBlock(outL, outR, in); err != nil {
		t.Fatalf("processBlock: %v", err)
	}
	c.reset()
	clear(in)
	if err := c.processBlock(outL, outR, in); err != nil {
		t.Fatalf("processBlock: %v", err)
	}
	for i, v := range outL {
		if math.Abs(float64(v)) > 1e-6 {
			t.Fatalf("outL[%d] = %f after reset, want silence", i, v)
		}
	}
}
