package bank

import "fmt"

// GenKind identifies a synthesis parameter ("generator") attached to a zone.
// Values are dense indices in SoundFont 2 order, skipping the SF2 slots that
// are unused or structural (instrument, key/velocity range, sample ID). Use
// SF2Number and GenKindFromSF2 to convert.
type GenKind uint8

const (
	GenStartAddrsOffset GenKind = iota
	GenEndAddrsOffset
	GenStartloopAddrsOffset
	GenEndloopAddrsOffset
	GenStartAddrsCoarseOffset
	GenModLfoToPitch
	GenVibLfoToPitch
	GenModEnvToPitch
	GenInitialFilterFc
	GenInitialFilterQ
	GenModLfoToFilterFc
	GenModEnvToFilterFc
	GenEndAddrsCoarseOffset
	GenModLfoToVolume
	GenChorusEffectsSend
	GenReverbEffectsSend
	GenPan
	GenDelayModLFO
	GenFreqModLFO
	GenDelayVibLFO
	GenFreqVibLFO
	GenDelayModEnv
	GenAttackModEnv
	GenHoldModEnv
	GenDecayModEnv
	GenSustainModEnv
	GenReleaseModEnv
	GenKeynumToModEnvHold
	GenKeynumToModEnvDecay
	GenDelayVolEnv
	GenAttackVolEnv
	GenHoldVolEnv
	GenDecayVolEnv
	GenSustainVolEnv
	GenReleaseVolEnv
	GenKeynumToVolEnvHold
	GenKeynumToVolEnvDecay
	GenInitialAttenuation
	GenStartloopAddrsCoarseOffset
	GenCoarseTune
	GenFineTune
	GenSampleModes
	GenScaleTuning
	GenExclusiveClass
	GenOverridingRootKey
	GenVelocity
	GenKeynum
	GenEndloopAddrsCoarseOffset

	GenCount
)

// Sample loop modes carried by GenSampleModes.
const (
	LoopNone         = 0
	LoopContinuous   = 1
	LoopUntilRelease = 3
)

type genInfo struct {
	name string
	def  int16
	min  int16
	max  int16
}

var genTable = [GenCount]genInfo{
	GenStartAddrsOffset:           {"start_addrs_offset", 0, -32768, 32767},
	GenEndAddrsOffset:             {"end_addrs_offset", 0, -32768, 32767},
	GenStartloopAddrsOffset:       {"startloop_addrs_offset", 0, -32768, 32767},
	GenEndloopAddrsOffset:         {"endloop_addrs_offset", 0, -32768, 32767},
	GenStartAddrsCoarseOffset:     {"start_addrs_coarse_offset", 0, -32768, 32767},
	GenModLfoToPitch:              {"mod_lfo_to_pitch", 0, -12000, 12000},
	GenVibLfoToPitch:              {"vib_lfo_to_pitch", 0, -12000, 12000},
	GenModEnvToPitch:              {"mod_env_to_pitch", 0, -12000, 12000},
	GenInitialFilterFc:            {"initial_filter_fc", 13500, 1500, 13500},
	GenInitialFilterQ:             {"initial_filter_q", 0, 0, 960},
	GenModLfoToFilterFc:           {"mod_lfo_to_filter_fc", 0, -12000, 12000},
	GenModEnvToFilterFc:           {"mod_env_to_filter_fc", 0, -12000, 12000},
	GenEndAddrsCoarseOffset:       {"end_addrs_coarse_offset", 0, -32768, 32767},
	GenModLfoToVolume:             {"mod_lfo_to_volume", 0, -960, 960},
	GenChorusEffectsSend:          {"chorus_effects_send", 0, 0, 1000},
	GenReverbEffectsSend:          {"reverb_effects_send", 0, 0, 1000},
	GenPan:                        {"pan", 0, -500, 500},
	GenDelayModLFO:                {"delay_mod_lfo", -12000, -12000, 5000},
	GenFreqModLFO:                 {"freq_mod_lfo", 0, -16000, 4500},
	GenDelayVibLFO:                {"delay_vib_lfo", -12000, -12000, 5000},
	GenFreqVibLFO:                 {"freq_vib_lfo", 0, -16000, 4500},
	GenDelayModEnv:                {"delay_mod_env", -12000, -12000, 5000},
	GenAttackModEnv:               {"attack_mod_env", -12000, -12000, 8000},
	GenHoldModEnv:                 {"hold_mod_env", -12000, -12000, 5000},
	GenDecayModEnv:                {"decay_mod_env", -12000, -12000, 8000},
	GenSustainModEnv:              {"sustain_mod_env", 0, 0, 1000},
	GenReleaseModEnv:              {"release_mod_env", -12000, -12000, 8000},
	GenKeynumToModEnvHold:         {"keynum_to_mod_env_hold", 0, -1200, 1200},
	GenKeynumToModEnvDecay:        {"keynum_to_mod_env_decay", 0, -1200, 1200},
	GenDelayVolEnv:                {"delay_vol_env", -12000, -12000, 5000},
	GenAttackVolEnv:               {"attack_vol_env", -12000, -12000, 8000},
	GenHoldVolEnv:                 {"hold_vol_env", -12000, -12000, 5000},
	GenDecayVolEnv:                {"decay_vol_env", -12000, -12000, 8000},
	GenSustainVolEnv:              {"sustain_vol_env", 0, 0, 1440},
	GenReleaseVolEnv:              {"release_vol_env", -12000, -12000, 8000},
	GenKeynumToVolEnvHold:         {"keynum_to_vol_env_hold", 0, -1200, 1200},
	GenKeynumToVolEnvDecay:        {"keynum_to_vol_env_decay", 0, -1200, 1200},
	GenInitialAttenuation:         {"initial_attenuation", 0, 0, 1440},
	GenStartloopAddrsCoarseOffset: {"startloop_addrs_coarse_offset", 0, -32768, 32767},
	GenCoarseTune:                 {"coarse_tune", 0, -120, 120},
	GenFineTune:                   {"fine_tune", 0, -99, 99},
	GenSampleModes:                {"sample_modes", 0, 0, 3},
	GenScaleTuning:                {"scale_tuning", 100, 0, 1200},
	GenExclusiveClass:             {"exclusive_class", 0, 0, 127},
	GenOverridingRootKey:          {"overriding_root_key", -1, -1, 127},
	GenVelocity:                   {"velocity", -1, -1, 127},
	GenKeynum:                     {"keynum", -1, -1, 127},
	GenEndloopAddrsCoarseOffset:   {"endloop_addrs_coarse_offset", 0, -32768, 32767},
}

var sf2Numbers = [GenCount]uint8{
	GenStartAddrsOffset:           0,
	GenEndAddrsOffset:             1,
	GenStartloopAddrsOffset:       2,
	GenEndloopAddrsOffset:         3,
	GenStartAddrsCoarseOffset:     4,
	GenModLfoToPitch:              5,
	GenVibLfoToPitch:              6,
	GenModEnvToPitch:              7,
	GenInitialFilterFc:            8,
	GenInitialFilterQ:             9,
	GenModLfoToFilterFc:           10,
	GenModEnvToFilterFc:           11,
	GenEndAddrsCoarseOffset:       12,
	GenModLfoToVolume:             13,
	GenChorusEffectsSend:          15,
	GenReverbEffectsSend:          16,
	GenPan:                        17,
	GenDelayModLFO:                21,
	GenFreqModLFO:                 22,
	GenDelayVibLFO:                23,
	GenFreqVibLFO:                 24,
	GenDelayModEnv:                25,
	GenAttackModEnv:               26,
	GenHoldModEnv:                 27,
	GenDecayModEnv:                28,
	GenSustainModEnv:              29,
	GenReleaseModEnv:              30,
	GenKeynumToModEnvHold:         31,
	GenKeynumToModEnvDecay:        32,
	GenDelayVolEnv:                33,
	GenAttackVolEnv:               34,
	GenHoldVolEnv:                 35,
	GenDecayVolEnv:                36,
	GenSustainVolEnv:              37,
	GenReleaseVolEnv:              38,
	GenKeynumToVolEnvHold:         39,
	GenKeynumToVolEnvDecay:        40,
	GenStartloopAddrsCoarseOffset: 45,
	GenKeynum:                     46,
	GenVelocity:                   47,
	GenInitialAttenuation:         48,
	GenEndloopAddrsCoarseOffset:   50,
	GenCoarseTune:                 51,
	GenFineTune:                   52,
	GenSampleModes:                54,
	GenScaleTuning:                56,
	GenExclusiveClass:             57,
	GenOverridingRootKey:          58,
}

var genBySF2 = func() map[int]GenKind {
	m := make(map[int]GenKind, GenCount)
	for k := GenKind(0); k < GenCount; k++ {
		m[int(sf2Numbers[k])] = k
	}
	return m
}()

// SF2Number returns the SoundFont 2 generator operator for k, or -1 for an
// unknown kind.
func (k GenKind) SF2Number() int {
	if k >= GenCount {
		return -1
	}
	return int(sf2Numbers[k])
}

// GenKindFromSF2 maps a SoundFont 2 generator operator to a GenKind. Unused,
// structural and unknown operators report false.
func GenKindFromSF2(op int) (GenKind, bool) {
	k, ok := genBySF2[op]
	return k, ok
}

var genByName = func() map[string]GenKind {
	m := make(map[string]GenKind, GenCount)
	for k := GenKind(0); k < GenCount; k++ {
		m[genTable[k].name] = k
	}
	return m
}()

// String returns the snake_case name used in bank JSON files.
func (k GenKind) String() string {
	if k >= GenCount {
		return fmt.Sprintf("gen(%d)", uint8(k))
	}
	return genTable[k].name
}

// Default returns the value a zone gets when no scope sets k.
func (k GenKind) Default() int16 {
	if k >= GenCount {
		return 0
	}
	return genTable[k].def
}

// ParseGenKind resolves a JSON generator name.
func ParseGenKind(name string) (GenKind, bool) {
	k, ok := genByName[name]
	return k, ok
}

// GenSet is a resolved set of generator values. It is a plain value type so a
// voice can hold one per zone without allocating.
type GenSet struct {
	set  uint64
	vals [GenCount]int16
}

// Set stores v for k, clamped to the generator's legal range.
func (g *GenSet) Set(k GenKind, v int16) {
	if k >= GenCount {
		return
	}
	info := genTable[k]
	if v < info.min {
		v = info.min
	}
	if v > info.max {
		v = info.max
	}
	g.vals[k] = v
	g.set |= 1 << k
}

// Unset removes k so the default applies again.
func (g *GenSet) Unset(k GenKind) {
	if k >= GenCount {
		return
	}
	g.set &^= 1 << k
	g.vals[k] = 0
}

// Has reports whether k was explicitly set.
func (g *GenSet) Has(k GenKind) bool {
	return k < GenCount && g.set&(1<<k) != 0
}

// Get returns the explicit value of k.
func (g *GenSet) Get(k GenKind) (int16, bool) {
	if !g.Has(k) {
		return 0, false
	}
	return g.vals[k], true
}

// Value returns the explicit value of k or its default.
func (g *GenSet) Value(k GenKind) int16 {
	if g.Has(k) {
		return g.vals[k]
	}
	return k.Default()
}

// Len returns the number of explicitly set generators.
func (g *GenSet) Len() int {
	n := 0
	for m := g.set; m != 0; m &= m - 1 {
		n++
	}
	return n
}

// Overlay copies every generator set in o over g. o is the more specific scope.
func (g *GenSet) Overlay(o *GenSet) {
	if o == nil || o.set == 0 {
		return
	}
	for k := GenKind(0); k < GenCount; k++ {
		if o.set&(1<<k) != 0 {
			g.vals[k] = o.vals[k]
		}
	}
	g.set |= o.set
}

// Resolve merges scopes from most general to most specific. Later scopes win.
func Resolve(scopes ...*GenSet) GenSet {
	var out GenSet
	for _, s := range scopes {
		out.Overlay(s)
	}
	return out
}
