package synth

// EnvStage is the DAHDSR state.
type EnvStage uint8

const (
	StageOff EnvStage = iota
	StageDelay
	StageAttack
	StageHold
	StageDecay
	StageSustain
	StageRelease
)

func (s EnvStage) String() string {
	switch s {
	case StageDelay:
		return "delay"
	case StageAttack:
		return "attack"
	case StageHold:
		return "hold"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	default:
		return "off"
	}
}

// releaseEpsilon ends a release (or a decay towards near silence) early.
const releaseEpsilon = 1e-4

// EnvelopeConfig describes one envelope in generator units.
type EnvelopeConfig struct {
	DelayTC   float64
	AttackTC  float64
	HoldTC    float64
	DecayTC   float64
	ReleaseTC float64
	// Sustain is the linear level held after decay, in [0, 1].
	Sustain float32
}

// DefaultEnvelopeConfig is the generator default: every stage at -12000
// timecents and full sustain.
func DefaultEnvelopeConfig() EnvelopeConfig {
	return EnvelopeConfig{
		DelayTC:   -12000,
		AttackTC:  -12000,
		HoldTC:    -12000,
		DecayTC:   -12000,
		ReleaseTC: -12000,
		Sustain:   1,
	}
}

// Envelope is a DAHDSR generator with quadratic transient curves.
// Level is exactly zero whenever the stage is Off.
type Envelope struct {
	stage EnvStage
	level float32

	delay   int
	attack  int
	hold    int
	decay   int
	release int
	sustain float32

	elapsed      int
	releaseLen   int
	releaseStart float32
}

// Configure converts cfg to sample counts at sampleRate. The current stage and
// level are left alone.
func (e *Envelope) Configure(cfg EnvelopeConfig, sampleRate float32) {
	sr := float64(sampleRate)
	e.delay = TimecentsToSamples(cfg.DelayTC, sr)
	e.attack = TimecentsToSamples(cfg.AttackTC, sr)
	e.hold = TimecentsToSamples(cfg.HoldTC, sr)
	e.decay = TimecentsToSamples(cfg.DecayTC, sr)
	e.release = TimecentsToSamples(cfg.ReleaseTC, sr)
	e.SetSustain(cfg.Sustain)
}

// SetSustain sets the sustain level, clamped to [0, 1].
func (e *Envelope) SetSustain(level float32) {
	if !isFinite(level) {
		level = 0
	}
	e.sustain = clampf(level, 0, 1)
}

// Durations returns delay, attack, hold, decay and release in samples.
func (e *Envelope) Durations() (delay, attack, hold, decay, release int) {
	return e.delay, e.attack, e.hold, e.decay, e.release
}

func (e *Envelope) Sustain() float32 { return e.sustain }
func (e *Envelope) Stage() EnvStage  { return e.stage }
func (e *Envelope) Level() float32   { return e.level }

// Active reports whether the envelope is anywhere but Off.
func (e *Envelope) Active() bool { return e.stage != StageOff }

// Trigger starts the envelope from silence.
func (e *Envelope) Trigger() {
	e.stage = StageDelay
	e.level = 0
	e.elapsed = 0
}

// Release jumps to the release stage from any non-Off stage, starting from the
// current level.
func (e *Envelope) Release() {
	e.startRelease(e.release)
}

// FastRelease releases over the given number of samples regardless of the
// configured release time.
func (e *Envelope) FastRelease(samples int) {
	if e.stage == StageRelease && e.releaseLen-e.elapsed <= samples {
		return
	}
	e.startRelease(samples)
}

func (e *Envelope) startRelease(samples int) {
	if e.stage == StageOff {
		return
	}
	e.stage = StageRelease
	e.releaseStart = e.level
	e.releaseLen = max(samples, 0)
	e.elapsed = 0
}

// Reset forces the envelope Off.
func (e *Envelope) Reset() {
	e.stage = StageOff
	e.level = 0
	e.elapsed = 0
}

func (e *Envelope) enter(s EnvStage) {
	e.stage = s
	e.elapsed = 0
}

func (e *Envelope) off() float32 {
	e.stage = StageOff
	e.level = 0
	e.elapsed = 0
	return 0
}

// Process advances one sample and returns the new level. Zero-length stages are
// passed through within the same sample.
func (e *Envelope) Process() float32 {
	for range 8 {
		switch e.stage {
		case StageOff:
			e.level = 0
			return 0

		case StageDelay:
			if e.elapsed < e.delay {
				e.elapsed++
				e.level = 0
				return 0
			}
			e.enter(StageAttack)

		case StageAttack:
			if e.elapsed < e.attack {
				e.elapsed++
				p := float32(e.elapsed) / float32(e.attack)
				e.level = p * p
				return e.level
			}
			e.level = 1
			e.enter(StageHold)

		case StageHold:
			if e.elapsed < e.hold {
				e.elapsed++
				e.level = 1
				return 1
			}
			e.enter(StageDecay)

		case StageDecay:
			if e.elapsed < e.decay {
				e.elapsed++
				p := float32(e.elapsed) / float32(e.decay)
				e.level = 1 + (e.sustain-1)*p*p
				return e.level
			}
			e.level = e.sustain
			if e.sustain < releaseEpsilon {
				return e.off()
			}
			e.enter(StageSustain)

		case StageSustain:
			e.level = e.sustain
			return e.level

		case StageRelease:
			if e.elapsed < e.releaseLen {
				e.elapsed++
				p := float32(e.elapsed) / float32(e.releaseLen)
				e.level = e.releaseStart * (1 - p*p)
				if e.level < releaseEpsilon {
					return e.off()
				}
				return e.level
			}
			return e.off()
		}
	}
	return e.level
}
