package bank

import (
	"errors"
	"fmt"
)

var (
	ErrPresetIndex     = errors.New("preset index out of range")
	ErrInstrumentIndex = errors.New("instrument index out of range")
	ErrSampleIndex     = errors.New("sample index out of range")
	ErrSampleRate      = errors.New("invalid sample rate")
	ErrEmptySample     = errors.New("empty sample data")
	ErrRange           = errors.New("invalid key or velocity range")
)

// DrumBank is the bank number conventionally used for percussion presets.
const DrumBank = 128

// Range is an inclusive MIDI key or velocity range.
type Range struct {
	Lo, Hi uint8
}

// FullRange covers every MIDI key or velocity.
var FullRange = Range{Lo: 0, Hi: 127}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v int) bool {
	return v >= int(r.Lo) && v <= int(r.Hi)
}

// Valid reports whether Lo <= Hi <= 127.
func (r Range) Valid() bool {
	return r.Lo <= r.Hi && r.Hi <= 127
}

// Intersect returns the overlap of two ranges and whether it is non-empty.
func (r Range) Intersect(o Range) (Range, bool) {
	out := Range{Lo: max(r.Lo, o.Lo), Hi: min(r.Hi, o.Hi)}
	return out, out.Lo <= out.Hi
}

// CrossfadeWeight returns the velocity layer weight for v. The inner 75% of
// the range plays at full weight; the outer 12.5% on each side ramps linearly
// towards zero at one step past the boundary. Edges at 0 or 127 never fade.
// The boundary value itself weighs 1/(fade+1), not 0, so a velocity on the
// edge of a layer still sounds; 0 is reached one step outside the range.
func (r Range) CrossfadeWeight(v int) float32 {
	if !r.Contains(v) {
		return 0
	}
	width := float32(r.Hi) - float32(r.Lo)
	fade := width * 0.125
	if fade < 1 {
		return 1
	}
	w := float32(1)
	if r.Lo > 0 {
		if d := float32(v) - float32(r.Lo); d < fade {
			w = min(w, (d+1)/(fade+1))
		}
	}
	if r.Hi < 127 {
		if d := float32(r.Hi) - float32(v); d < fade {
			w = min(w, (d+1)/(fade+1))
		}
	}
	return w
}

// Sample is a mono 16-bit PCM buffer. Voices hold a pointer into the bank and
// never copy Data.
type Sample struct {
	Name            string
	Data            []int16
	SampleRate      int
	RootKey         int
	PitchCorrection int // cents
	LoopStart       int
	LoopEnd         int
}

// HasLoop reports whether the stored loop points describe a usable loop.
func (s *Sample) HasLoop() bool {
	return ValidLoop(s.LoopStart, s.LoopEnd, len(s.Data))
}

// ValidLoop is the single rule for loop validity: end > 0, start < end and
// end within the data.
func ValidLoop(start, end, length int) bool {
	return end > 0 && start >= 0 && start < end && end <= length
}

type InstrumentZone struct {
	KeyRange   Range
	VelRange   Range
	Sample     int
	Generators GenSet
}

type Instrument struct {
	Name   string
	Global GenSet
	Zones  []InstrumentZone
}

type PresetZone struct {
	KeyRange   Range
	VelRange   Range
	Instrument int
	Generators GenSet
}

type Preset struct {
	Name    string
	Bank    int
	Program int
	Global  GenSet
	Zones   []PresetZone
}

// Bank is the read-only instrument hierarchy shared by all voices.
type Bank struct {
	Name        string
	Presets     []Preset
	Instruments []Instrument
	Samples     []Sample
}

// ZoneMatch is one sample layer selected for a note.
type ZoneMatch struct {
	Sample     *Sample
	Generators GenSet
	Weight     float32
	KeyRange   Range
	VelRange   Range
}

// FindPreset returns the index of the preset with the given bank and program.
func (b *Bank) FindPreset(bankNum, program int) (int, bool) {
	if b == nil {
		return -1, false
	}
	for i := range b.Presets {
		if b.Presets[i].Bank == bankNum && b.Presets[i].Program == program {
			return i, true
		}
	}
	return -1, false
}

// SelectZones fills dst with every sample layer of preset that matches note and
// velocity and returns how many were written. Matches beyond len(dst) are
// dropped. Generators are resolved preset global, preset zone, instrument
// global, instrument zone; the more specific scope wins.
func (b *Bank) SelectZones(preset, note, velocity int, dst []ZoneMatch) (int, error) {
	if b == nil || preset < 0 || preset >= len(b.Presets) {
		return 0, fmt.Errorf("select preset %d: %w", preset, ErrPresetIndex)
	}
	p := &b.Presets[preset]
	n := 0
	for pz := range p.Zones {
		pzone := &p.Zones[pz]
		if !pzone.KeyRange.Contains(note) || !pzone.VelRange.Contains(velocity) {
			continue
		}
		if pzone.Instrument < 0 || pzone.Instrument >= len(b.Instruments) {
			return n, fmt.Errorf("preset %q zone %d instrument %d: %w", p.Name, pz, pzone.Instrument, ErrInstrumentIndex)
		}
		inst := &b.Instruments[pzone.Instrument]
		pw := pzone.VelRange.CrossfadeWeight(velocity)
		for iz := range inst.Zones {
			izone := &inst.Zones[iz]
			if !izone.KeyRange.Contains(note) || !izone.VelRange.Contains(velocity) {
				continue
			}
			if izone.Sample < 0 || izone.Sample >= len(b.Samples) {
				return n, fmt.Errorf("instrument %q zone %d sample %d: %w", inst.Name, iz, izone.Sample, ErrSampleIndex)
			}
			if n >= len(dst) {
				return n, nil
			}
			w := pw * izone.VelRange.CrossfadeWeight(velocity)
			if w <= 0 {
				continue
			}
			m := &dst[n]
			m.Sample = &b.Samples[izone.Sample]
			m.Generators = GenSet{}
			m.Generators.Overlay(&p.Global)
			m.Generators.Overlay(&pzone.Generators)
			m.Generators.Overlay(&inst.Global)
			m.Generators.Overlay(&izone.Generators)
			m.Weight = w
			m.KeyRange, _ = pzone.KeyRange.Intersect(izone.KeyRange)
			m.VelRange, _ = pzone.VelRange.Intersect(izone.VelRange)
			n++
		}
	}
	return n, nil
}

// Validate checks every cross reference and sample in the bank.
func (b *Bank) Validate() error {
	if b == nil {
		return fmt.Errorf("nil bank")
	}
	for i := range b.Samples {
		s := &b.Samples[i]
		if len(s.Data) == 0 {
			return fmt.Errorf("sample %q: %w", s.Name, ErrEmptySample)
		}
		if s.SampleRate <= 0 {
			return fmt.Errorf("sample %q rate %d: %w", s.Name, s.SampleRate, ErrSampleRate)
		}
		if s.RootKey < 0 || s.RootKey > 127 {
			return fmt.Errorf("sample %q root key %d out of range", s.Name, s.RootKey)
		}
	}
	for i := range b.Instruments {
		inst := &b.Instruments[i]
		for z := range inst.Zones {
			iz := &inst.Zones[z]
			if iz.Sample < 0 || iz.Sample >= len(b.Samples) {
				return fmt.Errorf("instrument %q zone %d: %w", inst.Name, z, ErrSampleIndex)
			}
			if !iz.KeyRange.Valid() || !iz.VelRange.Valid() {
				return fmt.Errorf("instrument %q zone %d: %w", inst.Name, z, ErrRange)
			}
		}
	}
	for i := range b.Presets {
		p := &b.Presets[i]
		for z := range p.Zones {
			pz := &p.Zones[z]
			if pz.Instrument < 0 || pz.Instrument >= len(b.Instruments) {
				return fmt.Errorf("preset %q zone %d: %w", p.Name, z, ErrInstrumentIndex)
			}
			if !pz.KeyRange.Valid() || !pz.VelRange.Valid() {
				return fmt.Errorf("preset %q zone %d: %w", p.Name, z, ErrRange)
			}
		}
	}
	return nil
}
