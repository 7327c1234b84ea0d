package analysis

import (
	"math"

	algofft "github.com/cwbudde/algo-fft"
)

// Weights of the normalized components in Metrics.Score.
const (
	WeightTime     = 0.25
	WeightEnvelope = 0.25
	WeightSpectral = 0.25
	WeightDecay    = 0.10
	WeightPitch    = 0.15
)

// Analysis parameters shared by every comparison.
const (
	silenceThreshold = 1e-6
	targetRMS        = 0.1
	envFrame         = 256
	envHop           = 128
	minAligned       = 256
	maxCompareSec    = 12
	spectrumFrames   = 4096
	decayFloorDB     = 60.0
)

// Full-scale values mapping each raw distance onto [0, 1].
const (
	timeScale     = 0.25  // linear RMSE
	envelopeScale = 30.0  // dB
	spectralScale = 30.0  // dB
	decayScale    = 40.0  // dB/s
	pitchScale    = 100.0 // cents
)

// Metrics contains distance and similarity measurements between two audio signals.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE        float64 `json:"time_rmse"`
	EnvelopeRMSEDB  float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB  float64 `json:"spectral_rmse_db"`
	RefDecayDBPerS  float64 `json:"ref_decay_db_per_s"`
	CandDecayDBPerS float64 `json:"cand_decay_db_per_s"`
	DecayDiffDBPerS float64 `json:"decay_diff_db_per_s"`

	RefPitchHz     float64 `json:"ref_pitch_hz"`
	CandPitchHz    float64 `json:"cand_pitch_hz"`
	PitchDiffCents float64 `json:"pitch_diff_cents"`

	TimeNorm     float64 `json:"time_norm"`
	EnvelopeNorm float64 `json:"envelope_norm"`
	SpectralNorm float64 `json:"spectral_norm"`
	DecayNorm    float64 `json:"decay_norm"`
	PitchNorm    float64 `json:"pitch_norm"`
	// Dominant names the component contributing most to Score.
	Dominant string `json:"dominant"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Compare returns objective distance metrics and a combined score in [0,1].
// Both signals are mono at sampleRate. The score weighs waveform, loudness
// envelope, spectrum, decay rate and pitch distance.
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
		Score:           1,
	}
	if sampleRate <= 0 {
		return m
	}
	ref, cand := prepare(reference), prepare(candidate)
	if ref == nil || cand == nil {
		return m
	}

	m.LagSamples = estimateLag(ref, cand, lagLimit(sampleRate, len(ref), len(cand)))
	ref, cand = alignByLag(ref, cand, m.LagSamples)
	n := min(len(ref), len(cand), sampleRate*maxCompareSec)
	if n < minAligned {
		return m
	}
	ref, cand = ref[:n], cand[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(ref, cand)

	refEnv := rmsEnvelope(ref, envFrame, envHop)
	candEnv := rmsEnvelope(cand, envFrame, envHop)
	m.EnvelopeRMSEDB = envelopeRMSEDB(refEnv, candEnv)
	m.SpectralRMSEDB = spectralRMSEDB(ref, cand)

	hopSec := float64(envHop) / float64(sampleRate)
	m.RefDecayDBPerS = decaySlopeDBPerS(refEnv, hopSec)
	m.CandDecayDBPerS = decaySlopeDBPerS(candEnv, hopSec)
	if isFinite(m.RefDecayDBPerS) && isFinite(m.CandDecayDBPerS) {
		m.DecayDiffDBPerS = math.Abs(m.RefDecayDBPerS - m.CandDecayDBPerS)
	}

	nyquist := float64(sampleRate) / 2
	m.RefPitchHz = DominantFrequency(ref, sampleRate, 20, nyquist)
	m.CandPitchHz = DominantFrequency(cand, sampleRate, 20, nyquist)
	if m.RefPitchHz > 0 && m.CandPitchHz > 0 {
		m.PitchDiffCents = math.Abs(1200 * math.Log2(m.CandPitchHz/m.RefPitchHz))
	}

	m.combine()
	return m
}

func (m *Metrics) combine() {
	m.TimeNorm = clamp01(m.TimeRMSE / timeScale)
	m.EnvelopeNorm = clamp01(m.EnvelopeRMSEDB / envelopeScale)
	m.SpectralNorm = clamp01(m.SpectralRMSEDB / spectralScale)
	m.DecayNorm = clamp01(m.DecayDiffDBPerS / decayScale)
	m.PitchNorm = clamp01(m.PitchDiffCents / pitchScale)

	components := [...]struct {
		name string
		v    float64
	}{
		{"time", WeightTime * m.TimeNorm},
		{"envelope", WeightEnvelope * m.EnvelopeNorm},
		{"spectral", WeightSpectral * m.SpectralNorm},
		{"decay", WeightDecay * m.DecayNorm},
		{"pitch", WeightPitch * m.PitchNorm},
	}
	var sum, top float64
	for _, c := range components {
		sum += c.v
		if c.v > top {
			top, m.Dominant = c.v, c.name
		}
	}
	m.Score = clamp01(sum)
	m.Similarity = clamp01(math.Exp(-4 * m.Score))
}

// prepare drops leading silence and scales x to targetRMS. It returns nil
// for silent input.
func prepare(x []float64) []float64 {
	start := -1
	for i, v := range x {
		if math.Abs(v) > silenceThreshold {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	x = x[start:]
	g := 1.0
	if r := rms1(x); r > 1e-12 {
		g = targetRMS / r
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * g
	}
	return out
}

// lagLimit bounds the alignment search to half a second and to what both
// signals can cover.
func lagLimit(sampleRate, refLen, candLen int) int {
	return max(min(sampleRate/2, refLen-1, candLen-1), 1)
}

// estimateLag returns the lag in [-maxLag, maxLag] maximizing
// sum(ref[lag+i] * cand[i]). The full correlation comes from one FFT
// convolution of ref with reversed cand; corr[len(cand)-1+lag] is the value
// at lag.
func estimateLag(ref []float64, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	a := make([]float32, len(ref))
	for i, v := range ref {
		a[i] = float32(v)
	}
	b := make([]float32, len(cand))
	for i, v := range cand {
		b[len(cand)-1-i] = float32(v)
	}
	corr := make([]float32, len(a)+len(b)-1)
	score := func(lag int) float64 {
		k := len(cand) - 1 + lag
		if k < 0 || k >= len(corr) {
			return math.Inf(-1)
		}
		return float64(corr[k])
	}
	if err := algofft.ConvolveReal(corr, a, b); err != nil {
		score = func(lag int) float64 { return dotAtLag(ref, cand, lag) }
	}
	best, bestLag := math.Inf(-1), 0
	for lag := -maxLag; lag <= maxLag; lag++ {
		if s := score(lag); s > best {
			best, bestLag = s, lag
		}
	}
	return bestLag
}

func dotAtLag(a []float64, b []float64, lag int) float64 {
	if lag >= 0 {
		a = a[min(lag, len(a)):]
	} else {
		b = b[min(-lag, len(b)):]
	}
	var sum float64
	for i := range min(len(a), len(b)) {
		sum += a[i] * b[i]
	}
	return sum
}

func alignByLag(ref []float64, cand []float64, lag int) ([]float64, []float64) {
	switch {
	case lag >= len(ref) || -lag >= len(cand):
		return nil, nil
	case lag >= 0:
		return ref[lag:], cand
	default:
		return ref, cand[-lag:]
	}
}

func rmse(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	out := make([]float64, 1+(len(x)-frame)/hop)
	for i := range out {
		out[i] = rms1(x[i*hop : i*hop+frame])
	}
	return out
}

// envelopeRMSEDB compares two loudness envelopes frame by frame in dB.
func envelopeRMSEDB(ref, cand []float64) float64 {
	n := min(len(ref), len(cand))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		d := linToDB(ref[i]) - linToDB(cand[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// spectralRMSEDB compares Hann-windowed magnitude spectra of the first
// spectrumFrames samples, skipping DC and Nyquist.
func spectralRMSEDB(a []float64, b []float64) float64 {
	n := min(len(a), len(b), spectrumFrames)
	if n < 512 {
		return 0
	}
	aw := make([]float64, n)
	bw := make([]float64, n)
	for i := range n {
		w := hann(i, n)
		aw[i] = a[i] * w
		bw[i] = b[i] * w
	}
	ma, mb := magnitudeSpectrum(aw), magnitudeSpectrum(bw)
	bins := min(len(ma), len(mb)) - 1
	if bins < 2 {
		return 0
	}
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(ma[k]) - linToDB(mb[k])
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func linToDB(x float64) float64 {
	return 20 * math.Log10(max(x, 1e-12))
}

// decaySlopeDBPerS fits a line to the envelope in dB from just after its peak
// until it falls decayFloorDB below the peak. It returns NaN when too few
// frames remain for a fit.
func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	db := make([]float64, len(env))
	peakIdx := 0
	for i, v := range env {
		db[i] = linToDB(v)
		if db[i] > db[peakIdx] {
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(db)-4 {
		return math.NaN()
	}
	end := len(db)
	for i := start; i < len(db); i++ {
		if db[i] < db[peakIdx]-decayFloorDB {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}
	return slope(db[start:end], hopSec)
}

// slope is the least-squares gradient of y sampled every dx.
func slope(y []float64, dx float64) float64 {
	var sx, sy, sxx, sxy float64
	n := float64(len(y))
	for i, v := range y {
		x := float64(i) * dx
		sx += x
		sy += v
		sxx += x * x
		sxy += x * v
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
