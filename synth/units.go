package synth

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// TimecentsToSeconds converts a logarithmic timecent value: 2^(tc/1200).
func TimecentsToSeconds(tc float64) float64 {
	return math.Pow(2, tc/1200)
}

// SecondsToTimecents is the inverse of TimecentsToSeconds.
func SecondsToTimecents(sec float64) float64 {
	if sec <= 0 {
		return -12000
	}
	return 1200 * math.Log2(sec)
}

// TimecentsToSamples converts timecents to a whole number of samples.
func TimecentsToSamples(tc float64, sampleRate float64) int {
	n := math.Round(TimecentsToSeconds(tc) * sampleRate)
	if n < 0 {
		return 0
	}
	return int(n)
}

// CentibelsToLinear converts an attenuation in centibels to linear gain:
// 10^(-cb/200).
func CentibelsToLinear(cb float64) float64 {
	return math.Pow(10, -cb/200)
}

// LinearToCentibels is the inverse of CentibelsToLinear.
func LinearToCentibels(lin float64) float64 {
	if lin <= 0 {
		return 1440
	}
	return -200 * math.Log10(lin)
}

// AbsoluteCentsToHz converts absolute cents (8.176 Hz at 0) to frequency.
func AbsoluteCentsToHz(cents float64) float64 {
	return 8.176 * math.Pow(2, cents/1200)
}

// midiNoteToFreq converts MIDI note number to frequency in Hz.
func midiNoteToFreq(note int) float32 {
	const a4Freq = 440.0
	const a4Note = 69
	return a4Freq * pow2Approx(float32(note-a4Note)/12.0)
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

func semitonesToRatio(semis float32) float32 {
	return pow2Approx(semis / 12.0)
}

func isFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

func clampf(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampi(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
