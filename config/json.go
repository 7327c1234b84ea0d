// Package config loads engine setups from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/dsp"
	"github.com/cwbudde/algo-sfsynth/engine"
	"github.com/cwbudde/algo-sfsynth/synth"
)

// File is the JSON schema for engine setups. Absent fields keep their
// defaults.
type File struct {
	BankPath      string   `json:"bank"`
	OutputGain    *float32 `json:"output_gain"`
	MasterGain    *float32 `json:"master_gain"`
	Interpolation string   `json:"interpolation"`
	StealPolicy   string   `json:"steal_policy"`
	FallbackTone  *bool    `json:"fallback_tone"`

	PitchBendRange       *float32 `json:"pitch_bend_range"`
	FilterModRange       *float32 `json:"filter_mod_range"`
	FastReleaseMs        *float32 `json:"fast_release_ms"`
	WheelVibratoCents    *float32 `json:"wheel_vibrato_cents"`
	WheelLFORate         *float32 `json:"wheel_lfo_rate"`
	DirectPitchSemitones *float32 `json:"direct_pitch_semitones"`
	DirectFilterAmount   *float32 `json:"direct_filter_amount"`

	Routes   []RouteSetting            `json:"routes"`
	Reverb   *ReverbSetting            `json:"reverb"`
	Chorus   *ChorusSetting            `json:"chorus"`
	Channels map[string]ChannelSetting `json:"channels"`
}

// RouteSetting is one extra modulation route.
type RouteSetting struct {
	Source string   `json:"source"`
	Dest   string   `json:"dest"`
	Depth  float32  `json:"depth"`
	Scale  *float32 `json:"scale"`
}

type ReverbSetting struct {
	Enabled   *bool    `json:"enabled"`
	IRWavPath string   `json:"ir_wav_path"`
	Gain      *float32 `json:"gain"`
	DampingHz *float64 `json:"damping_hz"`
	DurationS *float64 `json:"duration_s"`
	PreDelayS *float64 `json:"pre_delay_s"`
	Seed      *int64   `json:"seed"`
}

type ChorusSetting struct {
	Enabled  *bool    `json:"enabled"`
	RateHz   *float32 `json:"rate_hz"`
	DelayMs  *float32 `json:"delay_ms"`
	DepthMs  *float32 `json:"depth_ms"`
	Feedback *float32 `json:"feedback"`
	Gain     *float32 `json:"gain"`
}

// ChannelSetting holds MIDI-range (0..127) initial values for one channel.
type ChannelSetting struct {
	Bank       *int `json:"bank"`
	Program    *int `json:"program"`
	Volume     *int `json:"volume"`
	Expression *int `json:"expression"`
	Pan        *int `json:"pan"`
	Reverb     *int `json:"reverb"`
	Chorus     *int `json:"chorus"`
}

// Config is a loaded setup.
type Config struct {
	// BankPath is the instrument bank to load, resolved against the config
	// file directory. Empty means none.
	BankPath string
	Engine   *engine.Params
}

// LoadJSON loads a setup file and applies it on top of the defaults.
func LoadJSON(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	c := &Config{Engine: engine.NewDefaultParams()}
	if err := ApplyFile(c, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	c.BankPath = resolvePath(base, c.BankPath)
	c.Engine.IRWavPath = resolvePath(base, c.Engine.IRWavPath)
	return c, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// ApplyFile applies a parsed file onto an existing config.
func ApplyFile(dst *Config, f *File) error {
	if dst == nil || dst.Engine == nil {
		return fmt.Errorf("nil destination config")
	}
	if f == nil {
		return nil
	}
	p := dst.Engine
	if p.Synth == nil {
		p.Synth = synth.NewDefaultParams()
	}
	sp := p.Synth

	if s := strings.TrimSpace(f.BankPath); s != "" {
		dst.BankPath = s
	}
	if f.OutputGain != nil {
		if *f.OutputGain <= 0 {
			return fmt.Errorf("output_gain must be > 0")
		}
		p.OutputGain = *f.OutputGain
	}
	if f.MasterGain != nil {
		if *f.MasterGain <= 0 {
			return fmt.Errorf("master_gain must be > 0")
		}
		sp.MasterGain = *f.MasterGain
	}
	if f.Interpolation != "" {
		m, ok := dsp.ParseInterpolation(f.Interpolation)
		if !ok {
			return fmt.Errorf("unknown interpolation %q", f.Interpolation)
		}
		sp.Interpolation = m
	}
	if f.StealPolicy != "" {
		policy, ok := synth.ParseStealPolicy(f.StealPolicy)
		if !ok {
			return fmt.Errorf("unknown steal_policy %q", f.StealPolicy)
		}
		sp.StealPolicy = policy
	}
	if f.FallbackTone != nil {
		sp.FallbackTone = *f.FallbackTone
	}
	if f.PitchBendRange != nil {
		if *f.PitchBendRange < 0 || *f.PitchBendRange > 24 {
			return fmt.Errorf("pitch_bend_range must be in [0,24]")
		}
		sp.PitchBendRange = *f.PitchBendRange
	}
	if f.FilterModRange != nil {
		if *f.FilterModRange < 0 {
			return fmt.Errorf("filter_mod_range must be >= 0")
		}
		sp.FilterModRange = *f.FilterModRange
	}
	if f.FastReleaseMs != nil {
		if *f.FastReleaseMs <= 0 {
			return fmt.Errorf("fast_release_ms must be > 0")
		}
		sp.FastReleaseMs = *f.FastReleaseMs
	}
	if f.WheelVibratoCents != nil {
		sp.WheelVibratoCents = *f.WheelVibratoCents
	}
	if f.WheelLFORate != nil {
		sp.WheelLFORate = *f.WheelLFORate
	}
	if f.DirectPitchSemitones != nil {
		sp.DirectPitchSemitones = *f.DirectPitchSemitones
	}
	if f.DirectFilterAmount != nil {
		sp.DirectFilterAmount = *f.DirectFilterAmount
	}

	if err := applyRoutes(sp, f.Routes); err != nil {
		return err
	}
	if err := applyReverb(p, f.Reverb); err != nil {
		return err
	}
	if err := applyChorus(p, f.Chorus); err != nil {
		return err
	}
	return applyChannels(p, f.Channels)
}

func applyRoutes(sp *synth.Params, routes []RouteSetting) error {
	if len(routes) > synth.MaxRoutes {
		return fmt.Errorf("too many routes: %d > %d", len(routes), synth.MaxRoutes)
	}
	for i, r := range routes {
		src, ok := synth.ParseModSource(r.Source)
		if !ok {
			return fmt.Errorf("routes[%d]: unknown source %q", i, r.Source)
		}
		dest, ok := synth.ParseModDest(r.Dest)
		if !ok {
			return fmt.Errorf("routes[%d]: unknown dest %q", i, r.Dest)
		}
		if r.Depth < -1 || r.Depth > 1 {
			return fmt.Errorf("routes[%d]: depth must be in [-1,1]", i)
		}
		scale := float32(1)
		if r.Scale != nil {
			scale = *r.Scale
		}
		sp.Routes = append(sp.Routes, synth.Route{Source: src, Dest: dest, Depth: r.Depth, Scale: scale})
	}
	return nil
}

func applyReverb(p *engine.Params, r *ReverbSetting) error {
	if r == nil {
		return nil
	}
	if r.Enabled != nil {
		p.ReverbEnabled = *r.Enabled
	}
	if s := strings.TrimSpace(r.IRWavPath); s != "" {
		p.IRWavPath = s
	}
	if r.Gain != nil {
		if *r.Gain < 0 {
			return fmt.Errorf("reverb.gain must be >= 0")
		}
		p.Reverb.Gain = *r.Gain
	}
	if r.DampingHz != nil {
		p.Reverb.DampingHz = *r.DampingHz
	}
	if r.DurationS != nil {
		if *r.DurationS <= 0 || *r.DurationS > 10 {
			return fmt.Errorf("reverb.duration_s must be in (0,10]")
		}
		p.Reverb.Room.DurationS = *r.DurationS
	}
	if r.PreDelayS != nil {
		if *r.PreDelayS < 0 {
			return fmt.Errorf("reverb.pre_delay_s must be >= 0")
		}
		p.Reverb.Room.PreDelayS = *r.PreDelayS
	}
	if r.Seed != nil {
		p.Reverb.Room.Seed = *r.Seed
	}
	return nil
}

func applyChorus(p *engine.Params, c *ChorusSetting) error {
	if c == nil {
		return nil
	}
	if c.Enabled != nil {
		p.ChorusEnabled = *c.Enabled
	}
	if c.RateHz != nil {
		if *c.RateHz <= 0 {
			return fmt.Errorf("chorus.rate_hz must be > 0")
		}
		p.Chorus.RateHz = *c.RateHz
	}
	if c.DelayMs != nil {
		if *c.DelayMs <= 0 {
			return fmt.Errorf("chorus.delay_ms must be > 0")
		}
		p.Chorus.DelayMs = *c.DelayMs
	}
	if c.DepthMs != nil {
		if *c.DepthMs < 0 {
			return fmt.Errorf("chorus.depth_ms must be >= 0")
		}
		p.Chorus.DepthMs = *c.DepthMs
	}
	if c.Feedback != nil {
		if *c.Feedback <= -1 || *c.Feedback >= 1 {
			return fmt.Errorf("chorus.feedback must be in (-1,1)")
		}
		p.Chorus.Feedback = *c.Feedback
	}
	if c.Gain != nil {
		if *c.Gain < 0 {
			return fmt.Errorf("chorus.gain must be >= 0")
		}
		p.Chorus.Gain = *c.Gain
	}
	return nil
}

func applyChannels(p *engine.Params, channels map[string]ChannelSetting) error {
	if len(channels) == 0 {
		return nil
	}
	if p.Channels == nil {
		p.Channels = make(map[int]engine.ChannelSetup)
	}
	keys := make([]string, 0, len(channels))
	for k := range channels {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		ch, err := strconv.Atoi(k)
		if err != nil || ch < 0 || ch >= synth.NumChannels {
			return fmt.Errorf("invalid channels key %q (expected 0..%d)", k, synth.NumChannels-1)
		}
		cs := channels[k]
		setup := p.Channels[ch]
		if setup.Controllers == nil {
			setup.Controllers = make(map[int]int)
		}
		if ch == synth.DrumChannel && cs.Bank == nil && setup.Bank == 0 {
			setup.Bank = bank.DrumBank
		}
		if cs.Bank != nil {
			if *cs.Bank < 0 || *cs.Bank > bank.DrumBank {
				return fmt.Errorf("channels[%d].bank must be in [0,%d]", ch, bank.DrumBank)
			}
			setup.Bank = *cs.Bank
		}
		if cs.Program != nil {
			if *cs.Program < 0 || *cs.Program > 127 {
				return fmt.Errorf("channels[%d].program must be in [0,127]", ch)
			}
			setup.Program = *cs.Program
		}
		for _, c := range []struct {
			name string
			cc   int
			v    *int
		}{
			{"volume", synth.CCVolume, cs.Volume},
			{"expression", synth.CCExpression, cs.Expression},
			{"pan", synth.CCPan, cs.Pan},
			{"reverb", synth.CCReverbSend, cs.Reverb},
			{"chorus", synth.CCChorusSend, cs.Chorus},
		} {
			if c.v == nil {
				continue
			}
			if *c.v < 0 || *c.v > 127 {
				return fmt.Errorf("channels[%d].%s must be in [0,127]", ch, c.name)
			}
			setup.Controllers[c.cc] = *c.v
		}
		p.Channels[ch] = setup
	}
	return nil
}
