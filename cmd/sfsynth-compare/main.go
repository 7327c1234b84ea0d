package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-sfsynth/analysis"
	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/config"
	"github.com/cwbudde/algo-sfsynth/engine"
	"github.com/cwbudde/algo-sfsynth/internal/audioio"
	"github.com/cwbudde/algo-sfsynth/synth"
)

func main() {
	referencePath := flag.String("reference", "reference/c4.wav", "Reference WAV or MP3 path")
	candidatePath := flag.String("candidate", "", "Candidate WAV path; if empty, render the candidate from -bank")
	bankPath := flag.String("bank", "", "Bank JSON path for the rendered candidate")
	configPath := flag.String("config", "", "Engine setup JSON file (optional)")
	program := flag.Int("program", 0, "Program for the rendered candidate")
	note := flag.Int("note", 60, "MIDI note for rendered candidate")
	velocity := flag.Int("velocity", 100, "MIDI velocity for rendered candidate")
	releaseAfter := flag.Float64("release-after", 2.0, "Note hold time before NoteOff for rendered candidate")
	duration := flag.Float64("duration", 4.0, "Rendered duration in seconds")
	sampleRate := flag.Int("sample-rate", 44100, "Analysis sample rate in Hz")
	bands := flag.Bool("bands", false, "Print a per-band STFT comparison")
	fftSize := flag.Int("fft-size", 4096, "STFT size for -bands")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	ref, refSR, err := audioio.ReadMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	ref, err = audioio.ResampleIfNeeded(ref, refSR, *sampleRate)
	if err != nil {
		die("failed to resample reference: %v", err)
	}

	var cand []float64
	if *candidatePath != "" {
		candRaw, candSR, err := audioio.ReadMono(*candidatePath)
		if err != nil {
			die("failed to read candidate: %v", err)
		}
		cand, err = audioio.ResampleIfNeeded(candRaw, candSR, *sampleRate)
		if err != nil {
			die("failed to resample candidate: %v", err)
		}
	} else {
		stereo, err := renderCandidate(*configPath, *bankPath, *program, *note, *velocity, *sampleRate, *releaseAfter, *duration)
		if err != nil {
			die("failed to render candidate: %v", err)
		}
		cand = audioio.StereoToMono64(stereo)
		if *writeCandidate != "" {
			if err := audioio.WriteStereoInterleavedWAV(*writeCandidate, stereo, *sampleRate); err != nil {
				die("failed to write candidate wav: %v", err)
			}
		}
	}

	metrics := analysis.Compare(ref, cand, *sampleRate)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	printMetrics(metrics)
	if *bands {
		rep, err := analysis.BandReport(ref, cand, *sampleRate, *fftSize, analysis.DefaultWindows, analysis.DefaultBands)
		if err != nil {
			die("band report failed: %v", err)
		}
		fmt.Println()
		printBands(rep)
	}
}

func renderCandidate(configPath, bankPath string, program, note, velocity, sampleRate int, releaseAfter, duration float64) ([]float32, error) {
	params := engine.NewDefaultParams()
	if configPath != "" {
		c, err := config.LoadJSON(configPath)
		if err != nil {
			return nil, err
		}
		params = c.Engine
		if bankPath == "" {
			bankPath = c.BankPath
		}
	}
	var b *bank.Bank
	if bankPath != "" {
		var err error
		if b, err = bank.LoadJSON(bankPath); err != nil {
			return nil, err
		}
	}
	e, err := engine.New(sampleRate, b, params)
	if err != nil {
		return nil, err
	}
	off := synth.NoteOff(0, uint8(note))
	off.Offset = int(releaseAfter * float64(sampleRate))
	events := []synth.Event{
		synth.ProgramChange(0, uint8(program)),
		synth.NoteOn(0, uint8(note), uint8(velocity)),
		off,
	}
	return e.Render(events, max(int(duration*float64(sampleRate)), 1)), nil
}

func printMetrics(m analysis.Metrics) {
	fmt.Printf("Reference frames: %d\n", m.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", m.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", m.AlignedFrames)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", m.LagSamples, 1000.0*float64(m.LagSamples)/float64(m.SampleRate))
	fmt.Println()
	fmt.Printf("Component        Raw          Norm   Weight  Contribution\n")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	printComp := func(name string, raw string, norm, weight float64, dominant bool) {
		marker := ""
		if dominant {
			marker = " ◄"
		}
		fmt.Printf("%-16s %-12s %5.1f%%  ×%.2f   → %.4f%s\n", name, raw, norm*100, weight, norm*weight, marker)
	}
	printComp("Time RMSE", fmt.Sprintf("%.6f", m.TimeRMSE), m.TimeNorm, analysis.WeightTime, m.Dominant == "time")
	printComp("Envelope RMSE", fmt.Sprintf("%.1f dB", m.EnvelopeRMSEDB), m.EnvelopeNorm, analysis.WeightEnvelope, m.Dominant == "envelope")
	printComp("Spectral RMSE", fmt.Sprintf("%.1f dB", m.SpectralRMSEDB), m.SpectralNorm, analysis.WeightSpectral, m.Dominant == "spectral")
	printComp("Decay diff", fmt.Sprintf("%.1f dB/s", m.DecayDiffDBPerS), m.DecayNorm, analysis.WeightDecay, m.Dominant == "decay")
	printComp("Pitch diff", fmt.Sprintf("%.1f cents", m.PitchDiffCents), m.PitchNorm, analysis.WeightPitch, m.Dominant == "pitch")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", m.Score)
	fmt.Printf("Similarity:       %.2f%%\n", m.Similarity*100.0)
	fmt.Printf("Dominant factor:  %s\n", m.Dominant)
	fmt.Printf("\nDecay slopes: ref=%.1f dB/s  cand=%.1f dB/s\n", m.RefDecayDBPerS, m.CandDecayDBPerS)
	fmt.Printf("Pitch:        ref=%.2f Hz  cand=%.2f Hz\n", m.RefPitchHz, m.CandPitchHz)
}

func printBands(rep []analysis.WindowReport) {
	for _, w := range rep {
		fmt.Printf("--- %s (%d STFT frames) ---\n", w.Window.Name, w.Frames)
		for _, b := range w.Bands {
			marker := ""
			if b.RMSEDB > 15 {
				marker = " <<<"
			}
			if b.RMSEDB > 25 {
				marker = " <<< !!!"
			}
			diff := b.CandDB - b.RefDB
			if math.IsInf(diff, 0) || math.IsNaN(diff) {
				diff = 0
			}
			fmt.Printf("  %-22s RMSE=%5.1fdB  ref=%6.1fdB  cand=%6.1fdB  diff=%+5.1fdB%s\n",
				b.Band.Name, b.RMSEDB, b.RefDB, b.CandDB, diff, marker)
		}
		fmt.Println()
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
