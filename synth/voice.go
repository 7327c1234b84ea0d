package synth

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-sfsynth/bank"
)

// VoiceState is the lifecycle of a pooled voice.
type VoiceState uint8

const (
	VoiceIdle VoiceState = iota
	VoiceStarting
	VoiceActive
	VoiceReleasing
	VoiceStealing
)

func (s VoiceState) String() string {
	switch s {
	case VoiceStarting:
		return "starting"
	case VoiceActive:
		return "active"
	case VoiceReleasing:
		return "releasing"
	case VoiceStealing:
		return "stealing"
	default:
		return "idle"
	}
}

var (
	ErrNoZones     = errors.New("no zones to play")
	ErrNilSample   = errors.New("zone has no sample")
	ErrEmptySample = errors.New("zone sample has no data")
	ErrInvalidNote = errors.New("note or velocity out of range")
)

const maxPitchSemitones = 24

// Voice renders one note from up to MaxZones sample layers through the
// envelope, filter, modulation and pan chain.
type Voice struct {
	sampleRate float32
	params     *Params

	state    VoiceState
	note     int
	velocity int
	channel  int
	age      uint64

	zones       [MaxZones]ActiveZone
	numZones    int
	totalWeight float32

	volEnv  Envelope
	modEnv  Envelope
	vibLFO  LFO
	modLFO  LFO
	filter  LowPassFilter
	router  ModulationRouter
	modEnvV float32

	// Direct modulation envelope depths, zero when the zone leaves every
	// modulation envelope generator at its default.
	directPitch  float32
	directFilter float32

	baseCutoff  float32
	baseQ       float32
	velCurve    float32
	channelGain float32
	pitchBend   float32
	modWheel    float32

	pan        float32
	genPan     float32
	panL, panR float32

	genReverb, ccReverb float32
	genChorus, ccChorus float32
	reverbSend          float32
	chorusSend          float32

	exclusiveClass int
	sustained      bool
}

func (v *Voice) init(sampleRate float32, params *Params) {
	*v = Voice{
		sampleRate: sampleRate,
		params:     params,
		vibLFO:     NewLFO(sampleRate, 5),
		modLFO:     NewLFO(sampleRate, 5),
		filter:     NewLowPassFilter(sampleRate),
	}
	v.setPan(0)
}

// NewVoice returns an idle voice. VoiceManager keeps its own pool; this is for
// callers that drive a single voice directly.
func NewVoice(sampleRate float32, params *Params) *Voice {
	if params == nil {
		params = NewDefaultParams()
	}
	v := &Voice{}
	v.init(sampleRate, params)
	return v
}

// StartNote configures the voice for note from the selected zones and moves it
// to Active. On error the voice is left Idle, silencing any note it was
// playing.
func (v *Voice) StartNote(note, velocity, channel int, zones []bank.ZoneMatch, ch ChannelState) error {
	if err := checkStart(note, velocity, zones); err != nil {
		if v.state != VoiceIdle {
			v.finish()
		}
		return err
	}

	v.reset()
	v.state = VoiceStarting
	v.note = note
	v.velocity = velocity
	v.channel = channel

	primary := 0
	for i := range zones {
		if zones[i].Weight > zones[primary].Weight {
			primary = i
		}
	}
	n := min(len(zones), MaxZones)
	if primary >= n {
		primary = 0
	}
	for i := 0; i < n; i++ {
		v.zones[i].init(v.zoneSetupFor(&zones[i], note))
		v.totalWeight += v.zones[i].amplitude
	}
	v.numZones = n

	v.applyGenerators(&zones[primary].Generators, ch)

	v.volEnv.Trigger()
	v.modEnv.Trigger()
	v.vibLFO.Reset()
	v.modLFO.Reset()
	v.filter.Reset()
	v.filter.SetParams(v.baseCutoff, v.baseQ)

	v.state = VoiceActive
	return nil
}

func checkStart(note, velocity int, zones []bank.ZoneMatch) error {
	if note < 0 || note > 127 || velocity < 0 || velocity > 127 {
		return ErrInvalidNote
	}
	if len(zones) == 0 {
		return ErrNoZones
	}
	for i := range zones {
		if zones[i].Sample == nil {
			return ErrNilSample
		}
		if len(zones[i].Sample.Data) == 0 {
			return ErrEmptySample
		}
	}
	return nil
}

func (v *Voice) reset() {
	for i := 0; i < v.numZones; i++ {
		v.zones[i].clear()
	}
	v.numZones = 0
	v.totalWeight = 0
	v.age = 0
	v.modEnvV = 0
	v.sustained = false
	v.router.Clear()
	v.volEnv.Reset()
	v.modEnv.Reset()
}

func (v *Voice) zoneSetupFor(m *bank.ZoneMatch, note int) zoneSetup {
	g := &m.Generators
	s := m.Sample
	length := len(s.Data)

	start := int(g.Value(bank.GenStartAddrsOffset)) + int(g.Value(bank.GenStartAddrsCoarseOffset))*32768
	end := length + int(g.Value(bank.GenEndAddrsOffset)) + int(g.Value(bank.GenEndAddrsCoarseOffset))*32768
	start = clampi(start, 0, length-1)
	end = clampi(end, start+1, length)

	loopStart, loopEnd := 0, 0
	if s.HasLoop() {
		loopStart = s.LoopStart + int(g.Value(bank.GenStartloopAddrsOffset)) + int(g.Value(bank.GenStartloopAddrsCoarseOffset))*32768
		loopEnd = s.LoopEnd + int(g.Value(bank.GenEndloopAddrsOffset)) + int(g.Value(bank.GenEndloopAddrsCoarseOffset))*32768
	}
	loopMode := bank.LoopNone
	if mode, ok := g.Get(bank.GenSampleModes); ok {
		loopMode = int(mode)
	} else if loopEnd > 0 {
		loopMode = bank.LoopContinuous
	}

	root := int(g.Value(bank.GenOverridingRootKey))
	if root < 0 {
		root = s.RootKey
	}
	key := note
	if kn := int(g.Value(bank.GenKeynum)); kn >= 0 {
		key = kn
	}
	semis := float64(key-root)*float64(g.Value(bank.GenScaleTuning))/100 +
		float64(g.Value(bank.GenCoarseTune)) +
		float64(int(g.Value(bank.GenFineTune))+s.PitchCorrection)/100
	baseRate := math.Pow(2, semis/12) * float64(s.SampleRate) / float64(v.sampleRate)

	return zoneSetup{
		sample:    s,
		baseRate:  baseRate,
		start:     start,
		end:       end,
		loopStart: loopStart,
		loopEnd:   loopEnd,
		loopMode:  loopMode,
		weight:    clampf(m.Weight, 0, 1),
		gain:      float32(CentibelsToLinear(float64(g.Value(bank.GenInitialAttenuation)))),
		keyRange:  m.KeyRange,
		velRange:  m.VelRange,
		rootKey:   root,
	}
}

// applyGenerators maps the primary zone's generators onto the voice's
// envelopes, filter, LFOs, sends and modulation routes.
func (v *Voice) applyGenerators(g *bank.GenSet, ch ChannelState) {
	val := func(k bank.GenKind) float64 { return float64(g.Value(k)) }

	key := v.note
	if kn := int(g.Value(bank.GenKeynum)); kn >= 0 {
		key = kn
	}
	vel := v.velocity
	if fv := int(g.Value(bank.GenVelocity)); fv >= 0 {
		vel = fv
	}
	keyOffset := float64(60 - key)

	v.volEnv.Configure(EnvelopeConfig{
		DelayTC:   val(bank.GenDelayVolEnv),
		AttackTC:  val(bank.GenAttackVolEnv),
		HoldTC:    val(bank.GenHoldVolEnv) + val(bank.GenKeynumToVolEnvHold)*keyOffset,
		DecayTC:   val(bank.GenDecayVolEnv) + val(bank.GenKeynumToVolEnvDecay)*keyOffset,
		ReleaseTC: val(bank.GenReleaseVolEnv),
		Sustain:   float32(CentibelsToLinear(val(bank.GenSustainVolEnv))),
	}, v.sampleRate)
	v.modEnv.Configure(EnvelopeConfig{
		DelayTC:   val(bank.GenDelayModEnv),
		AttackTC:  val(bank.GenAttackModEnv),
		HoldTC:    val(bank.GenHoldModEnv) + val(bank.GenKeynumToModEnvHold)*keyOffset,
		DecayTC:   val(bank.GenDecayModEnv) + val(bank.GenKeynumToModEnvDecay)*keyOffset,
		ReleaseTC: val(bank.GenReleaseModEnv),
		// Modulation sustain is a per-mille decrease.
		Sustain: float32(1 - val(bank.GenSustainModEnv)/1000),
	}, v.sampleRate)

	v.directPitch, v.directFilter = 0, 0
	if usesModEnv(g) {
		v.directPitch = v.params.DirectPitchSemitones
		v.directFilter = v.params.DirectFilterAmount
	}

	v.baseCutoff = float32(AbsoluteCentsToHz(val(bank.GenInitialFilterFc)))
	v.baseQ = float32(math.Sqrt2 / 2 * math.Pow(10, val(bank.GenInitialFilterQ)/200))

	v.vibLFO.SetFrequency(float32(AbsoluteCentsToHz(val(bank.GenFreqVibLFO))))
	v.vibLFO.SetDelay(TimecentsToSamples(val(bank.GenDelayVibLFO), float64(v.sampleRate)))
	v.modLFO.SetFrequency(float32(AbsoluteCentsToHz(val(bank.GenFreqModLFO))))
	v.modLFO.SetDelay(TimecentsToSamples(val(bank.GenDelayModLFO), float64(v.sampleRate)))

	v.velCurve = float32(vel) / 127
	v.velCurve *= v.velCurve
	v.channelGain = ch.Gain()
	v.pitchBend = clampf(ch.PitchBend, -maxPitchSemitones, maxPitchSemitones)
	v.modWheel = clampf(ch.ModWheel, 0, 1)

	v.genPan = float32(val(bank.GenPan) / 500)
	v.setPan(ch.Pan)
	v.genReverb = float32(val(bank.GenReverbEffectsSend) / 1000)
	v.genChorus = float32(val(bank.GenChorusEffectsSend) / 1000)
	v.ccReverb = ch.Reverb
	v.ccChorus = ch.Chorus
	v.updateSends()

	v.exclusiveClass = int(g.Value(bank.GenExclusiveClass))

	v.buildRoutes(g)
	v.router.SetSource(SrcModWheel, v.modWheel)
	v.router.SetSource(SrcVelocity, float32(vel)/127)
	v.router.SetSource(SrcKeyNumber, float32(key)/127)
}

var modEnvGens = [...]bank.GenKind{
	bank.GenDelayModEnv,
	bank.GenAttackModEnv,
	bank.GenHoldModEnv,
	bank.GenDecayModEnv,
	bank.GenSustainModEnv,
	bank.GenReleaseModEnv,
	bank.GenKeynumToModEnvHold,
	bank.GenKeynumToModEnvDecay,
}

func usesModEnv(g *bank.GenSet) bool {
	for _, k := range modEnvGens {
		if g.Has(k) {
			return true
		}
	}
	return false
}

// pitchRoute scales a cents generator into a route with depth in [-1, 1].
func pitchRoute(src ModSource, cents float64) Route {
	return Route{Source: src, Dest: DestPitch, Depth: float32(cents / 12000), Scale: 120}
}

func (v *Voice) buildRoutes(g *bank.GenSet) {
	r := &v.router
	p := v.params

	if c := float64(g.Value(bank.GenVibLfoToPitch)); c != 0 {
		r.AddRoute(pitchRoute(SrcVibratoLFO, c))
	}
	if c := float64(g.Value(bank.GenModLfoToPitch)); c != 0 {
		r.AddRoute(pitchRoute(SrcModulationLFO, c))
	}
	if c := float64(g.Value(bank.GenModEnvToPitch)); c != 0 {
		r.AddRoute(pitchRoute(SrcModulationEnvelope, c))
	}
	if p.WheelVibratoCents != 0 {
		r.AddRoute(pitchRoute(SrcWheelVibrato, float64(p.WheelVibratoCents)))
	}

	// Filter routes are in units of FilterModRange.
	filterScale := float32(120)
	if p.FilterModRange > 0 {
		filterScale = 120 / p.FilterModRange
	}
	if c := g.Value(bank.GenModLfoToFilterFc); c != 0 {
		r.AddRoute(Route{Source: SrcModulationLFO, Dest: DestFilterCutoff, Depth: float32(c) / 12000, Scale: filterScale})
	}
	if c := g.Value(bank.GenModEnvToFilterFc); c != 0 {
		r.AddRoute(Route{Source: SrcModulationEnvelope, Dest: DestFilterCutoff, Depth: float32(c) / 12000, Scale: filterScale})
	}

	if cb := float64(g.Value(bank.GenModLfoToVolume)); cb != 0 {
		depth := 1 - math.Pow(10, -math.Abs(cb)/200)
		if cb > 0 {
			depth = -depth
		}
		r.AddRoute(Route{Source: SrcModulationLFO, Dest: DestAmplitude, Depth: float32(depth), Scale: 1})
	}

	if p.WheelLFORate != 0 {
		r.AddRoute(Route{Source: SrcModWheel, Dest: DestLfoFrequency, Depth: 1, Scale: p.WheelLFORate})
	}

	for _, rt := range p.Routes {
		if !r.AddRoute(rt) {
			break
		}
	}
}

// Process renders one stereo sample. The chain order is zone mix, pitch,
// filter, volume envelope, tremolo, pan.
func (v *Voice) Process() (float32, float32) {
	if v.state == VoiceIdle || v.state == VoiceStarting {
		return 0, 0
	}
	v.age++

	// Zone mixing.
	var mix float32
	live := 0
	mode := v.params.Interpolation
	for i := 0; i < v.numZones; i++ {
		z := &v.zones[i]
		if !z.active {
			continue
		}
		mix += z.read(mode) * z.amplitude * z.gain
		z.advance()
		if z.active {
			live++
		}
	}
	if v.totalWeight > 0 {
		mix /= v.totalWeight
	}
	if live == 0 && v.state == VoiceActive {
		v.endOfData()
	}

	// Pitch.
	v.updateModulators()
	semis := v.router.GetModulatedValue(DestPitch, v.pitchBend+v.modEnvV*v.directPitch)
	semis = clampf(semis, -maxPitchSemitones, maxPitchSemitones)
	mult := float64(semitonesToRatio(semis))
	for i := 0; i < v.numZones; i++ {
		v.zones[i].rate = v.zones[i].baseRate * mult
	}

	// Filter.
	mod := v.router.Sum(DestFilterCutoff) + v.modEnvV*v.directFilter
	cutoff := v.baseCutoff * semitonesToRatio(mod*v.params.FilterModRange)
	q := v.router.GetModulatedValue(DestFilterResonance, v.baseQ)
	v.filter.SetParams(cutoff, q)
	s := v.filter.Process(mix)

	// Volume envelope.
	level := v.volEnv.Process()
	if v.volEnv.Stage() == StageOff {
		v.finish()
		return 0, 0
	}
	s *= level * v.velCurve * v.channelGain

	// Tremolo.
	s *= v.router.GetModulatedValue(DestAmplitude, 1)
	if !isFinite(s) {
		s = 0
	}
	s = clampf(s, -filterOutLimit, filterOutLimit)

	return s * v.panL, s * v.panR
}

func (v *Voice) updateModulators() {
	rate := v.router.GetModulatedValue(DestLfoFrequency, 1)
	vib := v.vibLFO.ProcessRate(v.vibLFO.Frequency() * rate)
	mlfo := v.modLFO.ProcessRate(v.modLFO.Frequency() * rate)
	v.modEnvV = v.modEnv.Process()

	v.router.SetSource(SrcVibratoLFO, vib)
	v.router.SetSource(SrcModulationLFO, mlfo)
	v.router.SetSource(SrcModulationEnvelope, v.modEnvV)
	v.router.SetSource(SrcWheelVibrato, vib*v.modWheel)
}

// endOfData releases a voice whose zones have all run off the end of their
// samples so it still leaves through the envelope.
func (v *Voice) endOfData() {
	v.state = VoiceReleasing
	n := v.fastReleaseSamples()
	v.volEnv.FastRelease(n)
	v.modEnv.FastRelease(n)
}

func (v *Voice) finish() {
	v.state = VoiceIdle
	for i := 0; i < v.numZones; i++ {
		v.zones[i].clear()
	}
	v.numZones = 0
	v.sustained = false
	v.volEnv.Reset()
	v.modEnv.Reset()
}

// ProcessEnvelopes advances both envelopes by one sample without rendering
// audio. It reports whether the voice is still sounding.
func (v *Voice) ProcessEnvelopes() bool {
	if v.state == VoiceIdle || v.state == VoiceStarting {
		return false
	}
	v.age++
	v.modEnvV = v.modEnv.Process()
	v.volEnv.Process()
	if v.volEnv.Stage() == StageOff {
		v.finish()
		return false
	}
	return true
}

// StopNote moves an Active voice to Releasing. The voice keeps rendering until
// its volume envelope reaches Off.
func (v *Voice) StopNote() {
	if v.state != VoiceActive && v.state != VoiceStarting {
		return
	}
	v.state = VoiceReleasing
	v.sustained = false
	v.volEnv.Release()
	v.modEnv.Release()
	for i := 0; i < v.numZones; i++ {
		v.zones[i].released = true
	}
}

// PrepareForSteal forces a fast release so the slot frees up within a few
// milliseconds.
func (v *Voice) PrepareForSteal() {
	if v.state == VoiceIdle {
		return
	}
	v.state = VoiceStealing
	v.sustained = false
	n := v.fastReleaseSamples()
	v.volEnv.FastRelease(n)
	v.modEnv.FastRelease(n)
}

func (v *Voice) fastReleaseSamples() int {
	ms := v.params.FastReleaseMs
	if ms <= 0 {
		ms = 5
	}
	return max(1, int(ms*v.sampleRate/1000))
}

// GetStealPriority scores the voice for stealing. Lower is stolen first: idle
// voices score -1, stealing voices lowest, then releasing, then active; louder
// and younger notes score higher.
func (v *Voice) GetStealPriority() float32 {
	var base float32
	switch v.state {
	case VoiceIdle:
		return -1
	case VoiceStealing:
		base = 0
	case VoiceReleasing:
		base = 1000
	default:
		base = 2000
	}
	ageSec := float32(v.age) / v.sampleRate
	return base + float32(v.velocity) - min(ageSec*10, 500)
}

// SetPitchBend sets the bend offset in semitones.
func (v *Voice) SetPitchBend(semitones float32) {
	if !isFinite(semitones) {
		semitones = 0
	}
	v.pitchBend = clampf(semitones, -maxPitchSemitones, maxPitchSemitones)
}

// SetModulationWheel sets the mod wheel amount in [0, 1].
func (v *Voice) SetModulationWheel(amount float32) {
	if !isFinite(amount) {
		amount = 0
	}
	v.modWheel = clampf(amount, 0, 1)
	v.router.SetSource(SrcModWheel, v.modWheel)
}

// SetChannelGain updates the channel volume applied after the envelope.
func (v *Voice) SetChannelGain(g float32) {
	if !isFinite(g) || g < 0 {
		g = 0
	}
	v.channelGain = g
}

// SetChannelPan updates the channel pan offset in [-1, 1].
func (v *Voice) SetChannelPan(pan float32) {
	v.setPan(pan)
}

func (v *Voice) setPan(channelPan float32) {
	if !isFinite(channelPan) {
		channelPan = 0
	}
	v.pan = clampf(v.genPan+channelPan, -1, 1)
	theta := float64(v.pan+1) / 2 * math.Pi / 2
	v.panL = float32(math.Cos(theta))
	v.panR = float32(math.Sin(theta))
}

// SetReverbSend sets the channel part of the reverb send in [0, 1].
func (v *Voice) SetReverbSend(amount float32) {
	v.ccReverb = amount
	v.updateSends()
}

// SetChorusSend sets the channel part of the chorus send in [0, 1].
func (v *Voice) SetChorusSend(amount float32) {
	v.ccChorus = amount
	v.updateSends()
}

func (v *Voice) updateSends() {
	if !isFinite(v.ccReverb) {
		v.ccReverb = 0
	}
	if !isFinite(v.ccChorus) {
		v.ccChorus = 0
	}
	v.reverbSend = clampf(v.genReverb+v.ccReverb, 0, 1)
	v.chorusSend = clampf(v.genChorus+v.ccChorus, 0, 1)
}

func (v *Voice) GetReverbSend() float32 { return v.reverbSend }
func (v *Voice) GetChorusSend() float32 { return v.chorusSend }

func (v *Voice) State() VoiceState   { return v.state }
func (v *Voice) Note() int           { return v.note }
func (v *Voice) Velocity() int       { return v.velocity }
func (v *Voice) Channel() int        { return v.channel }
func (v *Voice) Age() uint64         { return v.age }
func (v *Voice) Pan() float32        { return v.pan }
func (v *Voice) PitchBend() float32  { return v.pitchBend }
func (v *Voice) ExclusiveClass() int { return v.exclusiveClass }

// IsActive reports whether the voice is doing anything but idling.
func (v *Voice) IsActive() bool { return v.state != VoiceIdle }

func (v *Voice) NumZones() int { return v.numZones }

// Zone returns the i-th sample layer, or nil past NumZones.
func (v *Voice) Zone(i int) *ActiveZone {
	if i < 0 || i >= v.numZones {
		return nil
	}
	return &v.zones[i]
}

func (v *Voice) VolumeEnvelope() *Envelope     { return &v.volEnv }
func (v *Voice) ModulationEnvelope() *Envelope { return &v.modEnv }
func (v *Voice) Filter() *LowPassFilter        { return &v.filter }
func (v *Voice) Router() *ModulationRouter     { return &v.router }
func (v *Voice) VibratoLFO() *LFO              { return &v.vibLFO }
func (v *Voice) ModulationLFO() *LFO           { return &v.modLFO }
