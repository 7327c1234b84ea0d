package synth

import "github.com/cwbudde/algo-sfsynth/dsp"

// StealPolicy decides what NoteOn does when all voices are busy.
type StealPolicy uint8

const (
	// StealNone drops the new note.
	StealNone StealPolicy = iota
	// StealLowestPriority fast-releases the lowest priority voice and starts
	// the new note in its slot once it has gone silent.
	StealLowestPriority
)

func (p StealPolicy) String() string {
	if p == StealLowestPriority {
		return "lowest-priority"
	}
	return "none"
}

// ParseStealPolicy resolves a config name.
func ParseStealPolicy(name string) (StealPolicy, bool) {
	switch name {
	case "", "none":
		return StealNone, true
	case "lowest-priority", "steal":
		return StealLowestPriority, true
	}
	return StealNone, false
}

// Params controls voice rendering. Zero values are not meaningful; start from
// NewDefaultParams.
type Params struct {
	// MasterGain scales the sum of all voices. It is fixed headroom, not a
	// per-voice normalization.
	MasterGain float32

	Interpolation dsp.Interpolation
	StealPolicy   StealPolicy

	// FallbackTone plays a sine when no zone matches a note.
	FallbackTone bool

	// DirectPitchSemitones is added to pitch per unit of modulation envelope,
	// on top of any mod_env_to_pitch generator route. It only applies to
	// zones that set at least one modulation envelope generator.
	DirectPitchSemitones float32
	// DirectFilterAmount is added to the cutoff modulation (in units of
	// FilterModRange) per unit of modulation envelope, under the same rule.
	DirectFilterAmount float32
	// FilterModRange is the cutoff swing in semitones for a modulation of 1.
	FilterModRange float32

	// FastReleaseMs is the release time used when a voice is stolen.
	FastReleaseMs float32

	// WheelVibratoCents is the vibrato depth added at full mod wheel.
	WheelVibratoCents float32
	// WheelLFORate scales vibrato rate by (1 + wheel·WheelLFORate).
	WheelLFORate float32

	// PitchBendRange maps a full 14-bit bend to semitones.
	PitchBendRange float32

	// Routes are added to every voice after the generator routes.
	Routes []Route
}

// NewDefaultParams returns the default rendering setup.
func NewDefaultParams() *Params {
	return &Params{
		MasterGain:     0.25,
		Interpolation:  dsp.InterpLinear,
		StealPolicy:    StealNone,
		FallbackTone:   true,
		FilterModRange: 24,

		DirectPitchSemitones: 0.1,
		DirectFilterAmount:   0.25,

		FastReleaseMs:     5,
		WheelVibratoCents: 50,
		PitchBendRange:    2,
	}
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	c := *p
	c.Routes = append([]Route(nil), p.Routes...)
	return &c
}
