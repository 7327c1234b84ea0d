package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-sfsynth/bank"
)

type knobDef struct {
	Gen bank.GenKind
	Min float64
	Max float64
}

func (d knobDef) Name() string { return d.Gen.String() }

type candidate struct {
	Vals []float64
}

// knobGroups lists the generators each -optimize group exposes.
var knobGroups = map[string][]knobDef{
	"vol-env": {
		{Gen: bank.GenAttackVolEnv, Min: -12000, Max: 2000},
		{Gen: bank.GenHoldVolEnv, Min: -12000, Max: 2000},
		{Gen: bank.GenDecayVolEnv, Min: -12000, Max: 4000},
		{Gen: bank.GenSustainVolEnv, Min: 0, Max: 1440},
		{Gen: bank.GenReleaseVolEnv, Min: -12000, Max: 4000},
	},
	"filter": {
		{Gen: bank.GenInitialFilterFc, Min: 1500, Max: 13500},
		{Gen: bank.GenInitialFilterQ, Min: 0, Max: 400},
		{Gen: bank.GenModEnvToFilterFc, Min: -4800, Max: 4800},
	},
	"mod-env": {
		{Gen: bank.GenAttackModEnv, Min: -12000, Max: 2000},
		{Gen: bank.GenDecayModEnv, Min: -12000, Max: 4000},
		{Gen: bank.GenSustainModEnv, Min: 0, Max: 1000},
	},
	"level": {
		{Gen: bank.GenInitialAttenuation, Min: 0, Max: 480},
	},
}

var groupOrder = []string{"vol-env", "filter", "mod-env", "level"}

// parseOptimizeGroups parses a comma-separated string of group names.
func parseOptimizeGroups(raw string) (map[string]bool, error) {
	groups := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := knobGroups[s]; !ok {
			return nil, fmt.Errorf("unknown optimize group %q (valid: %s)", s, strings.Join(groupOrder, ", "))
		}
		groups[s] = true
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no optimize groups specified")
	}
	return groups, nil
}

// initCandidate builds the knob list for groups, starting from the
// generators the bank already resolves for the fitted note.
func initCandidate(start *bank.GenSet, groups map[string]bool) ([]knobDef, candidate) {
	var defs []knobDef
	var vals []float64
	for _, g := range groupOrder {
		if !groups[g] {
			continue
		}
		for _, d := range knobGroups[g] {
			defs = append(defs, d)
			vals = append(vals, clamp(float64(start.Value(d.Gen)), d.Min, d.Max))
		}
	}
	return defs, candidate{Vals: vals}
}

func toNormalized(c candidate, defs []knobDef) []float64 {
	out := make([]float64, len(defs))
	for i, d := range defs {
		out[i] = clamp((c.Vals[i]-d.Min)/(d.Max-d.Min), 0, 1)
	}
	return out
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i, d := range defs {
		u := clamp(pos[i], 0, 1)
		vals[i] = math.Round(d.Min + u*(d.Max-d.Min))
	}
	return candidate{Vals: vals}
}

// generators converts a candidate into a generator set.
func generators(c candidate, defs []knobDef) bank.GenSet {
	var g bank.GenSet
	for i, d := range defs {
		g.Set(d.Gen, int16(math.Round(c.Vals[i])))
	}
	return g
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
