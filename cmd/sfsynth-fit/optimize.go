package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/algo-sfsynth/analysis"
	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/engine"
	"github.com/cwbudde/algo-sfsynth/internal/audioio"
	"github.com/cwbudde/algo-sfsynth/synth"
)

type optimizationConfig struct {
	reference      []float64
	bank           *bank.Bank
	preset         int
	params         *engine.Params
	defs           []knobDef
	initCandidate  candidate
	note           int
	velocity       int
	releaseFrames  int
	renderFrames   int
	sampleRate     int
	seed           int64
	timeBudget     float64
	maxEvals       int
	reportEvery    int
	mayflyVariant  string
	mayflyPop      int
	mayflyRoundEvs int
}

type optimizationResult struct {
	best        candidate
	bestMetrics analysis.Metrics
	bestRender  []float32
	evals       int
	elapsed     float64
}

// render plays the fitted note through a bank carrying c on every instrument
// of the preset.
func render(cfg *optimizationConfig, c candidate) ([]float32, error) {
	gens := generators(c, cfg.defs)
	b := cfg.bank
	for _, inst := range b.PresetInstruments(cfg.preset) {
		var err error
		if b, err = b.WithInstrumentOverrides(inst, gens); err != nil {
			return nil, err
		}
	}
	e, err := engine.New(cfg.sampleRate, b, cfg.params)
	if err != nil {
		return nil, err
	}
	e.Voices().SetPreset(0, cfg.preset)
	off := synth.NoteOff(0, uint8(cfg.note))
	off.Offset = cfg.releaseFrames
	return e.Render([]synth.Event{synth.NoteOn(0, uint8(cfg.note), uint8(cfg.velocity)), off}, cfg.renderFrames), nil
}

func evaluateCandidate(cfg *optimizationConfig, c candidate) (analysis.Metrics, []float32, error) {
	out, err := render(cfg, c)
	if err != nil {
		return analysis.Metrics{}, nil, err
	}
	return analysis.Compare(cfg.reference, audioio.StereoToMono64(out), cfg.sampleRate), out, nil
}

func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	start := time.Now()
	deadline := start.Add(time.Duration(cfg.timeBudget * float64(time.Second)))
	variant := strings.ToLower(cfg.mayflyVariant)

	best := cloneCandidate(cfg.initCandidate)
	bestMetrics, bestRender, err := evaluateCandidate(cfg, best)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	fmt.Printf("Start score=%.4f similarity=%.2f%%\n", bestMetrics.Score, bestMetrics.Similarity*100.0)

	evals := 1
	for round := 1; evals < cfg.maxEvals && time.Now().Before(deadline); round++ {
		budget := min(cfg.mayflyRoundEvs, cfg.maxEvals-evals)
		iters := max(1, budget/(2*cfg.mayflyPop))
		mc, err := newMayflyConfig(variant, cfg.mayflyPop, len(cfg.defs), iters)
		if err != nil {
			return nil, err
		}
		mc.Rand = rand.New(rand.NewSource(cfg.seed + int64(round)*7919))
		mc.ObjectiveFunc = func(pos []float64) float64 {
			if evals >= cfg.maxEvals || time.Now().After(deadline) {
				return bestMetrics.Score + 1.0
			}
			evals++
			cand := fromNormalized(pos, cfg.defs)
			m, out, err := evaluateCandidate(cfg, cand)
			if err != nil {
				return bestMetrics.Score + 0.8
			}
			if m.Score < bestMetrics.Score {
				best, bestMetrics, bestRender = cand, m, out
				fmt.Printf("Improved eval=%d score=%.4f sim=%.2f%%\n", evals, m.Score, m.Similarity*100.0)
			}
			if cfg.reportEvery > 0 && evals%cfg.reportEvery == 0 {
				fmt.Printf("Progress eval=%d/%d elapsed=%.1fs best=%.4f\n", evals, cfg.maxEvals, time.Since(start).Seconds(), bestMetrics.Score)
			}
			return m.Score
		}
		if _, err := runMayfly(mc); err != nil {
			fmt.Fprintf(os.Stderr, "mayfly round %d failed: %v\n", round, err)
			break
		}
	}

	return &optimizationResult{
		best:        best,
		bestMetrics: bestMetrics,
		bestRender:  bestRender,
		evals:       evals,
		elapsed:     time.Since(start).Seconds(),
	}, nil
}

func cloneCandidate(c candidate) candidate {
	return candidate{Vals: append([]float64(nil), c.Vals...)}
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}
