package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

const minSpectrumSize = 4096

// magnitudeSpectrum returns |X[k]| for k in [0, n/2] where n is len(x)
// rounded up to a power of two. It returns nil if no plan can be built.
func magnitudeSpectrum(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	n := nextPow2(len(x))
	plan, err := algofft.NewPlanReal64(n)
	if err != nil {
		return nil
	}
	src := make([]float64, n)
	copy(src, x)
	spec := make([]complex128, n/2+1)
	plan.Forward(spec, src)
	mag := make([]float64, len(spec))
	for k, c := range spec {
		mag[k] = cmplx.Abs(c)
	}
	return mag
}

// DominantFrequency returns the strongest spectral peak of x between minHz
// and maxHz, refined by parabolic interpolation. It returns 0 when x is
// silent or too short.
func DominantFrequency(x []float64, sampleRate int, minHz, maxHz float64) float64 {
	if sampleRate <= 0 || len(x) < 64 {
		return 0
	}
	w := make([]float64, max(len(x), minSpectrumSize))
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	for i, v := range x {
		w[i] = (v - mean) * hann(i, len(x))
	}
	return peakFrequency(magnitudeSpectrum(w), float64(sampleRate), minHz, maxHz)
}

// BeatFrequency estimates the amplitude beating rate of x, for example two
// detuned partials summed together. The signal is full-wave rectified and
// averaged over 5 ms blocks; the envelope's strongest component between
// minHz and maxHz is returned.
func BeatFrequency(x []float64, sampleRate int, minHz, maxHz float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	block := max(sampleRate/200, 1)
	nb := len(x) / block
	if nb < 16 {
		return 0
	}
	env := make([]float64, nb)
	mean := 0.0
	for b := range env {
		var sum float64
		for _, v := range x[b*block : (b+1)*block] {
			sum += math.Abs(v)
		}
		env[b] = sum / float64(block)
		mean += env[b]
	}
	mean /= float64(nb)
	w := make([]float64, max(nb, minSpectrumSize))
	for i, v := range env {
		w[i] = (v - mean) * hann(i, nb)
	}
	envRate := float64(sampleRate) / float64(block)
	return peakFrequency(magnitudeSpectrum(w), envRate, minHz, maxHz)
}

func peakFrequency(mag []float64, rate, minHz, maxHz float64) float64 {
	if len(mag) < 3 {
		return 0
	}
	n := 2 * (len(mag) - 1)
	binHz := rate / float64(n)
	lo := max(int(math.Floor(minHz/binHz)), 1)
	hi := min(int(math.Ceil(maxHz/binHz)), len(mag)-2)
	best := -1
	for k := lo; k <= hi; k++ {
		if best < 0 || mag[k] > mag[best] {
			best = k
		}
	}
	if best < 0 || mag[best] <= 1e-12 {
		return 0
	}
	a, b, c := mag[best-1], mag[best], mag[best+1]
	offset := 0.0
	if den := a - 2*b + c; math.Abs(den) > 1e-18 {
		offset = 0.5 * (a - c) / den
	}
	return (float64(best) + offset) * binHz
}

func hann(i, n int) float64 {
	if n < 2 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
