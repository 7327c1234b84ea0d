package synth

import "fmt"

// ModSource names a modulation input.
type ModSource uint8

const (
	SrcVibratoLFO ModSource = iota
	SrcModulationLFO
	SrcModulationEnvelope
	SrcModWheel
	SrcVelocity
	SrcKeyNumber
	// SrcWheelVibrato is the vibrato LFO scaled by the mod wheel.
	SrcWheelVibrato

	numModSources
)

var modSourceNames = [numModSources]string{
	"vibrato_lfo", "modulation_lfo", "modulation_envelope", "mod_wheel", "velocity", "key_number", "wheel_vibrato",
}

func (s ModSource) String() string {
	if s >= numModSources {
		return fmt.Sprintf("source(%d)", uint8(s))
	}
	return modSourceNames[s]
}

// ParseModSource resolves a config name.
func ParseModSource(name string) (ModSource, bool) {
	for i, n := range modSourceNames {
		if n == name {
			return ModSource(i), true
		}
	}
	return 0, false
}

// ModDest names a modulation target.
type ModDest uint8

const (
	DestPitch ModDest = iota
	DestFilterCutoff
	DestFilterResonance
	DestAmplitude
	DestLfoFrequency

	numModDests
)

var modDestNames = [numModDests]string{
	"pitch", "filter_cutoff", "filter_resonance", "amplitude", "lfo_frequency",
}

func (d ModDest) String() string {
	if d >= numModDests {
		return fmt.Sprintf("dest(%d)", uint8(d))
	}
	return modDestNames[d]
}

// ParseModDest resolves a config name.
func ParseModDest(name string) (ModDest, bool) {
	for i, n := range modDestNames {
		if n == name {
			return ModDest(i), true
		}
	}
	return 0, false
}

// Multiplicative reports whether the destination is a positive physical
// quantity scaled by (1+sum) rather than offset by sum.
func (d ModDest) Multiplicative() bool {
	switch d {
	case DestFilterCutoff, DestAmplitude, DestLfoFrequency:
		return true
	}
	return false
}

// Route connects one source to one destination.
type Route struct {
	Source ModSource
	Dest   ModDest
	Depth  float32 // [-1, 1]
	Scale  float32
}

// MaxRoutes is the fixed capacity of a ModulationRouter.
const MaxRoutes = 16

const multiplicativeFloor = 0.001

// ModulationRouter sums source values into destinations through a fixed list
// of routes.
type ModulationRouter struct {
	routes  [MaxRoutes]Route
	n       int
	sources [numModSources]float32
}

// Clear drops every route and zeroes the sources.
func (r *ModulationRouter) Clear() {
	r.n = 0
	r.sources = [numModSources]float32{}
}

// AddRoute appends a route with depth clamped to [-1, 1]. It returns false when
// the router is full or the route names an unknown source or destination.
func (r *ModulationRouter) AddRoute(rt Route) bool {
	if r.n >= MaxRoutes || rt.Source >= numModSources || rt.Dest >= numModDests {
		return false
	}
	if !isFinite(rt.Depth) || !isFinite(rt.Scale) {
		return false
	}
	rt.Depth = clampf(rt.Depth, -1, 1)
	r.routes[r.n] = rt
	r.n++
	return true
}

// Routes returns the installed routes. The slice aliases router storage.
func (r *ModulationRouter) Routes() []Route {
	return r.routes[:r.n]
}

// SetSource stores the current value of src.
func (r *ModulationRouter) SetSource(src ModSource, v float32) {
	if src >= numModSources {
		return
	}
	r.sources[src] = v
}

// Source returns the current value of src.
func (r *ModulationRouter) Source(src ModSource) float32 {
	if src >= numModSources {
		return 0
	}
	return r.sources[src]
}

// Sum returns Σ source·depth·scale over routes targeting dest.
func (r *ModulationRouter) Sum(dest ModDest) float32 {
	var sum float32
	for i := 0; i < r.n; i++ {
		rt := &r.routes[i]
		if rt.Dest == dest {
			sum += r.sources[rt.Source] * rt.Depth * rt.Scale
		}
	}
	return sum
}

// GetModulatedValue combines base with the routed sum: multiplicative
// destinations return base·max(1+sum, floor), additive ones base+sum.
func (r *ModulationRouter) GetModulatedValue(dest ModDest, base float32) float32 {
	sum := r.Sum(dest)
	if !dest.Multiplicative() {
		return base + sum
	}
	floor := float32(multiplicativeFloor)
	if dest == DestAmplitude {
		floor = 0
	}
	factor := 1 + sum
	if factor < floor {
		factor = floor
	}
	return base * factor
}
