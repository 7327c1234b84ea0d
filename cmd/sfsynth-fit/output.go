package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-sfsynth/analysis"
)

// runReport is written as JSON. Its generators map drops straight into a bank
// zone's "generators" object.
type runReport struct {
	ReferencePath   string           `json:"reference_path"`
	BankPath        string           `json:"bank_path"`
	Preset          int              `json:"preset"`
	SampleRate      int              `json:"sample_rate"`
	Note            int              `json:"note"`
	Velocity        int              `json:"velocity"`
	ReleaseAfterSec float64          `json:"release_after_seconds"`
	DurationSec     float64          `json:"elapsed_seconds"`
	Evaluations     int              `json:"evaluations"`
	MayflyVariant   string           `json:"mayfly_variant"`
	BestScore       float64          `json:"best_score"`
	BestSimilarity  float64          `json:"best_similarity"`
	BestMetrics     analysis.Metrics `json:"best_metrics"`
	Generators      map[string]int   `json:"generators"`
}

func newReport(cfg *optimizationConfig, res *optimizationResult, referencePath, bankPath, variant string) runReport {
	gens := make(map[string]int, len(cfg.defs))
	for i, d := range cfg.defs {
		gens[d.Name()] = int(res.best.Vals[i])
	}
	return runReport{
		ReferencePath:   referencePath,
		BankPath:        bankPath,
		Preset:          cfg.preset,
		SampleRate:      cfg.sampleRate,
		Note:            cfg.note,
		Velocity:        cfg.velocity,
		ReleaseAfterSec: float64(cfg.releaseFrames) / float64(cfg.sampleRate),
		DurationSec:     res.elapsed,
		Evaluations:     res.evals,
		MayflyVariant:   variant,
		BestScore:       res.bestMetrics.Score,
		BestSimilarity:  res.bestMetrics.Similarity,
		BestMetrics:     res.bestMetrics,
		Generators:      gens,
	}
}

func writeReport(path string, rep runReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
