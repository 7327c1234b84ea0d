package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/config"
	"github.com/cwbudde/algo-sfsynth/engine"
	"github.com/cwbudde/algo-sfsynth/internal/audioio"
)

func main() {
	referencePath := flag.String("reference", "reference/c4.wav", "Reference WAV or MP3 path")
	bankPath := flag.String("bank", "", "Bank JSON path (required unless set in -config)")
	configPath := flag.String("config", "", "Engine setup JSON file (optional)")
	outputPath := flag.String("output", "fitted-generators.json", "Path to write the fitted generators report")
	outputWAV := flag.String("output-wav", "", "Optional path for the best candidate render")
	optimize := flag.String("optimize", "vol-env,level", "Comma-separated knob groups to optimize: vol-env, filter, mod-env, level")
	bankNum := flag.Int("bank-number", 0, "MIDI bank of the fitted preset")
	program := flag.Int("program", 0, "Program of the fitted preset")
	note := flag.Int("note", 60, "MIDI note to fit")
	velocity := flag.Int("velocity", 100, "MIDI velocity for rendering during fit")
	releaseAfter := flag.Float64("release-after", 1.0, "Seconds before NoteOff for each evaluation render")
	duration := flag.Float64("duration", 3.0, "Render duration in seconds")
	sampleRate := flag.Int("sample-rate", 44100, "Render/analysis sample rate")
	wet := flag.Bool("wet", false, "Keep reverb and chorus in candidate renders")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 2000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")
	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	groups, err := parseOptimizeGroups(*optimize)
	if err != nil {
		die("invalid --optimize: %v", err)
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *note < 0 || *note > 127 || *velocity < 1 || *velocity > 127 {
		die("note must be in [0,127] and velocity in [1,127]")
	}
	if *releaseAfter < 0.05 {
		*releaseAfter = 0.05
	}
	if *duration < *releaseAfter {
		*duration = *releaseAfter
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}

	params := engine.NewDefaultParams()
	if *configPath != "" {
		c, err := config.LoadJSON(*configPath)
		if err != nil {
			die("failed to load config: %v", err)
		}
		params = c.Engine
		if *bankPath == "" {
			*bankPath = c.BankPath
		}
	}
	if !*wet {
		params.ReverbEnabled = false
		params.ChorusEnabled = false
	}
	if *bankPath == "" {
		die("a bank is required")
	}
	b, err := bank.LoadJSON(*bankPath)
	if err != nil {
		die("failed to load bank: %v", err)
	}
	preset, ok := b.FindPreset(*bankNum, *program)
	if !ok {
		die("bank has no preset %d:%d", *bankNum, *program)
	}
	var zones [4]bank.ZoneMatch
	n, err := b.SelectZones(preset, *note, *velocity, zones[:])
	if err != nil || n == 0 {
		die("preset %q has no zone for note %d velocity %d (%v)", b.Presets[preset].Name, *note, *velocity, err)
	}

	refRaw, refSR, err := audioio.ReadMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	ref, err := audioio.ResampleIfNeeded(refRaw, refSR, *sampleRate)
	if err != nil {
		die("failed to resample reference: %v", err)
	}

	defs, initCand := initCandidate(&zones[0].Generators, groups)
	cfg := &optimizationConfig{
		reference:      ref,
		bank:           b,
		preset:         preset,
		params:         params,
		defs:           defs,
		initCandidate:  initCand,
		note:           *note,
		velocity:       *velocity,
		releaseFrames:  int(*releaseAfter * float64(*sampleRate)),
		renderFrames:   int(*duration * float64(*sampleRate)),
		sampleRate:     *sampleRate,
		seed:           *seed,
		timeBudget:     *timeBudget,
		maxEvals:       *maxEvals,
		reportEvery:    max(*reportEvery, 1),
		mayflyVariant:  *mayflyVariant,
		mayflyPop:      *mayflyPop,
		mayflyRoundEvs: *mayflyRoundEvals,
	}
	fmt.Printf("Fitting %d knobs of preset %q note %d to %s\n", len(defs), b.Presets[preset].Name, *note, *referencePath)

	res, err := runOptimization(cfg)
	if err != nil {
		die("optimization failed: %v", err)
	}

	rep := newReport(cfg, res, *referencePath, *bankPath, *mayflyVariant)
	if err := writeReport(*outputPath, rep); err != nil {
		die("failed to write report: %v", err)
	}
	if *outputWAV != "" {
		if err := audioio.WriteStereoInterleavedWAV(*outputWAV, res.bestRender, *sampleRate); err != nil {
			die("failed to write render: %v", err)
		}
	}
	fmt.Printf("Done evals=%d elapsed=%.1fs score=%.4f similarity=%.2f%%\n", res.evals, res.elapsed, res.bestMetrics.Score, res.bestMetrics.Similarity*100)
	fmt.Printf("Wrote %s\n", *outputPath)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
