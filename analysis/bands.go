package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// Band is a frequency range in Hz.
type Band struct {
	Name string
	LoHz float64
	HiHz float64
}

// TimeWindow is a time range in milliseconds from the aligned start.
type TimeWindow struct {
	Name    string
	StartMs float64
	EndMs   float64
}

var DefaultBands = []Band{
	{"sub-bass (20-100Hz)", 20, 100},
	{"bass (100-300Hz)", 100, 300},
	{"low-mid (300-1kHz)", 300, 1000},
	{"mid (1-3kHz)", 1000, 3000},
	{"hi-mid (3-6kHz)", 3000, 6000},
	{"high (6-12kHz)", 6000, 12000},
	{"air (12-20kHz)", 12000, 20000},
}

var DefaultWindows = []TimeWindow{
	{"attack (0-20ms)", 0, 20},
	{"early (20-100ms)", 20, 100},
	{"sustain (100-500ms)", 100, 500},
	{"decay (0.5-2s)", 500, 2000},
	{"late (2-4s)", 2000, 4000},
}

// BandDiff compares one band inside one time window.
type BandDiff struct {
	Band   Band
	RMSEDB float64 // per-bin magnitude difference
	RefDB  float64 // mean band power
	CandDB float64
}

type WindowReport struct {
	Window TimeWindow
	Frames int
	Bands  []BandDiff
}

// BandReport averages STFT magnitudes of ref and cand over each window and
// compares them band by band. Windows shorter than one FFT frame use a single
// zero-padded frame; windows past the end of either signal are skipped.
func BandReport(ref, cand []float64, sampleRate, fftSize int, windows []TimeWindow, bands []Band) ([]WindowReport, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if fftSize < 16 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size %d must be a power of two >= 16", fftSize)
	}
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	n := min(len(ref), len(cand))
	hop := fftSize / 2
	nBins := fftSize / 2
	binHz := float64(sampleRate) / float64(fftSize)

	win := make([]float64, fftSize)
	for i := range win {
		win[i] = hann(i, fftSize)
	}
	specRef := make([]complex128, fftSize/2+1)
	specCand := make([]complex128, fftSize/2+1)
	bufRef := make([]float64, fftSize)
	bufCand := make([]float64, fftSize)

	var out []WindowReport
	for _, tw := range windows {
		start := int(tw.StartMs / 1000 * float64(sampleRate))
		end := min(int(tw.EndMs/1000*float64(sampleRate)), n)
		if start >= end {
			continue
		}

		avgRef := make([]float64, nBins)
		avgCand := make([]float64, nBins)
		accumulate := func() {
			plan.Forward(specRef, bufRef)
			plan.Forward(specCand, bufCand)
			for k := 1; k < nBins; k++ {
				avgRef[k] += cmplx.Abs(specRef[k])
				avgCand[k] += cmplx.Abs(specCand[k])
			}
		}

		frames := 0
		for pos := start; pos+fftSize <= end; pos += hop {
			for i := range fftSize {
				bufRef[i] = ref[pos+i] * win[i]
				bufCand[i] = cand[pos+i] * win[i]
			}
			accumulate()
			frames++
		}
		if frames == 0 {
			clear(bufRef)
			clear(bufCand)
			for i := 0; i < end-start && i < fftSize; i++ {
				bufRef[i] = ref[start+i] * win[i]
				bufCand[i] = cand[start+i] * win[i]
			}
			accumulate()
			frames = 1
		}
		scale := 1 / float64(frames)
		for k := range avgRef {
			avgRef[k] *= scale
			avgCand[k] *= scale
		}

		wr := WindowReport{Window: tw, Frames: frames}
		for _, b := range bands {
			loK := max(int(b.LoHz/binHz), 1)
			hiK := min(int(b.HiHz/binHz), nBins-1)
			if loK > hiK {
				continue
			}
			var sumSq, refPow, candPow float64
			cnt := 0
			for k := loK; k <= hiK; k++ {
				d := linToDB(avgRef[k]) - linToDB(avgCand[k])
				sumSq += d * d
				refPow += avgRef[k] * avgRef[k]
				candPow += avgCand[k] * avgCand[k]
				cnt++
			}
			wr.Bands = append(wr.Bands, BandDiff{
				Band:   b,
				RMSEDB: math.Sqrt(sumSq / float64(cnt)),
				RefDB:  10 * math.Log10(math.Max(refPow/float64(cnt), 1e-24)),
				CandDB: 10 * math.Log10(math.Max(candPow/float64(cnt), 1e-24)),
			})
		}
		out = append(out, wr)
	}
	return out, nil
}
