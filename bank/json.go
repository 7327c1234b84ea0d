package bank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-sfsynth/internal/audioio"
)

// File is the JSON schema for instrument banks.
type File struct {
	Name          string           `json:"name"`
	NormalizeRate int              `json:"normalize_rate"`
	Samples       []SampleFile     `json:"samples"`
	Instruments   []InstrumentFile `json:"instruments"`
	Presets       []PresetFile     `json:"presets"`
}

// SampleFile references a .wav or .mp3 file relative to the bank file.
type SampleFile struct {
	Name            string `json:"name"`
	Path            string `json:"path"`
	RootKey         *int   `json:"root_key"`
	PitchCorrection int    `json:"pitch_correction"`
	LoopStart       int    `json:"loop_start"`
	LoopEnd         int    `json:"loop_end"`
}

type InstrumentFile struct {
	Name   string         `json:"name"`
	Global map[string]int `json:"global"`
	Zones  []ZoneFile     `json:"zones"`
}

type PresetFile struct {
	Name    string         `json:"name"`
	Bank    int            `json:"bank"`
	Program int            `json:"program"`
	Global  map[string]int `json:"global"`
	Zones   []ZoneFile     `json:"zones"`
}

// ZoneFile is shared by preset and instrument zones. Preset zones name an
// instrument, instrument zones name a sample.
type ZoneFile struct {
	KeyRange   *[2]int        `json:"key_range"`
	VelRange   *[2]int        `json:"vel_range"`
	Sample     string         `json:"sample"`
	Instrument string         `json:"instrument"`
	Generators map[string]int `json:"generators"`
}

// LoadJSON reads a bank description and decodes every referenced sample.
func LoadJSON(path string) (*Bank, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return Build(&f, filepath.Dir(path))
}

// SampleLoader decodes the sample referenced by a SampleFile path into mono
// float samples and their rate.
type SampleLoader func(path string) ([]float64, int, error)

// DirLoader reads sample files from disk, resolving relative paths against
// baseDir.
func DirLoader(baseDir string) SampleLoader {
	return func(path string) ([]float64, int, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Clean(filepath.Join(baseDir, path))
		}
		return audioio.ReadMono(path)
	}
}

// MemoryLoader decodes samples from in-memory file contents keyed by path.
func MemoryLoader(files map[string][]byte) SampleLoader {
	return func(path string) ([]float64, int, error) {
		data, ok := files[path]
		if !ok {
			return nil, 0, fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}
		return audioio.DecodeMono(path, bytes.NewReader(data))
	}
}

// Build converts a parsed bank file into a Bank. Relative sample paths are
// resolved against baseDir.
func Build(f *File, baseDir string) (*Bank, error) {
	return BuildWith(f, DirLoader(baseDir))
}

// BuildWith is Build with a caller supplied sample loader.
func BuildWith(f *File, load SampleLoader) (*Bank, error) {
	if load == nil {
		return nil, fmt.Errorf("nil sample loader")
	}
	if f == nil {
		return nil, fmt.Errorf("nil bank file")
	}
	if f.NormalizeRate < 0 {
		return nil, fmt.Errorf("normalize_rate must be >= 0")
	}
	out := &Bank{Name: f.Name}

	sampleIdx := make(map[string]int, len(f.Samples))
	for i, sf := range f.Samples {
		name := strings.TrimSpace(sf.Name)
		if name == "" {
			return nil, fmt.Errorf("samples[%d]: name is required", i)
		}
		if _, dup := sampleIdx[name]; dup {
			return nil, fmt.Errorf("samples[%d]: duplicate name %q", i, name)
		}
		s, err := loadSample(sf, load, f.NormalizeRate)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", name, err)
		}
		s.Name = name
		sampleIdx[name] = len(out.Samples)
		out.Samples = append(out.Samples, s)
	}

	instIdx := make(map[string]int, len(f.Instruments))
	for i, inf := range f.Instruments {
		name := strings.TrimSpace(inf.Name)
		if name == "" {
			return nil, fmt.Errorf("instruments[%d]: name is required", i)
		}
		inst := Instrument{Name: name}
		if err := applyGenerators(&inst.Global, inf.Global); err != nil {
			return nil, fmt.Errorf("instrument %q global: %w", name, err)
		}
		for z, zf := range inf.Zones {
			idx, ok := sampleIdx[zf.Sample]
			if !ok {
				return nil, fmt.Errorf("instrument %q zone %d: unknown sample %q", name, z, zf.Sample)
			}
			iz := InstrumentZone{Sample: idx}
			if err := parseZoneRanges(&iz.KeyRange, &iz.VelRange, zf); err != nil {
				return nil, fmt.Errorf("instrument %q zone %d: %w", name, z, err)
			}
			if err := applyGenerators(&iz.Generators, zf.Generators); err != nil {
				return nil, fmt.Errorf("instrument %q zone %d: %w", name, z, err)
			}
			inst.Zones = append(inst.Zones, iz)
		}
		instIdx[name] = len(out.Instruments)
		out.Instruments = append(out.Instruments, inst)
	}

	for i, pf := range f.Presets {
		name := strings.TrimSpace(pf.Name)
		if name == "" {
			name = fmt.Sprintf("preset %d:%d", pf.Bank, pf.Program)
		}
		if pf.Program < 0 || pf.Program > 127 {
			return nil, fmt.Errorf("presets[%d]: program must be in [0,127]", i)
		}
		if pf.Bank < 0 || pf.Bank > DrumBank {
			return nil, fmt.Errorf("presets[%d]: bank must be in [0,%d]", i, DrumBank)
		}
		p := Preset{Name: name, Bank: pf.Bank, Program: pf.Program}
		if err := applyGenerators(&p.Global, pf.Global); err != nil {
			return nil, fmt.Errorf("preset %q global: %w", name, err)
		}
		for z, zf := range pf.Zones {
			idx, ok := instIdx[zf.Instrument]
			if !ok {
				return nil, fmt.Errorf("preset %q zone %d: unknown instrument %q", name, z, zf.Instrument)
			}
			pz := PresetZone{Instrument: idx}
			if err := parseZoneRanges(&pz.KeyRange, &pz.VelRange, zf); err != nil {
				return nil, fmt.Errorf("preset %q zone %d: %w", name, z, err)
			}
			if err := applyGenerators(&pz.Generators, zf.Generators); err != nil {
				return nil, fmt.Errorf("preset %q zone %d: %w", name, z, err)
			}
			p.Zones = append(p.Zones, pz)
		}
		out.Presets = append(out.Presets, p)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func loadSample(sf SampleFile, load SampleLoader, normalizeRate int) (Sample, error) {
	path := strings.TrimSpace(sf.Path)
	if path == "" {
		return Sample{}, fmt.Errorf("path is required")
	}
	data, rate, err := load(path)
	if err != nil {
		return Sample{}, err
	}
	if len(data) == 0 {
		return Sample{}, ErrEmptySample
	}

	loopStart, loopEnd := sf.LoopStart, sf.LoopEnd
	if normalizeRate > 0 && normalizeRate != rate {
		data, err = audioio.ResampleIfNeeded(data, rate, normalizeRate)
		if err != nil {
			return Sample{}, err
		}
		scale := float64(normalizeRate) / float64(rate)
		loopStart = int(math.Round(float64(loopStart) * scale))
		loopEnd = int(math.Round(float64(loopEnd) * scale))
		if loopEnd > len(data) {
			loopEnd = len(data)
		}
		rate = normalizeRate
	}

	root := 60
	if sf.RootKey != nil {
		root = *sf.RootKey
	}
	if root < 0 || root > 127 {
		return Sample{}, fmt.Errorf("root_key must be in [0,127]")
	}
	if sf.PitchCorrection < -99 || sf.PitchCorrection > 99 {
		return Sample{}, fmt.Errorf("pitch_correction must be in [-99,99]")
	}
	return Sample{
		Data:            audioio.ToPCM16(data),
		SampleRate:      rate,
		RootKey:         root,
		PitchCorrection: sf.PitchCorrection,
		LoopStart:       loopStart,
		LoopEnd:         loopEnd,
	}, nil
}

func parseZoneRanges(key, vel *Range, zf ZoneFile) error {
	*key, *vel = FullRange, FullRange
	if zf.KeyRange != nil {
		r, err := parseRange(*zf.KeyRange)
		if err != nil {
			return fmt.Errorf("key_range: %w", err)
		}
		*key = r
	}
	if zf.VelRange != nil {
		r, err := parseRange(*zf.VelRange)
		if err != nil {
			return fmt.Errorf("vel_range: %w", err)
		}
		*vel = r
	}
	return nil
}

func parseRange(v [2]int) (Range, error) {
	if v[0] < 0 || v[1] > 127 || v[0] > v[1] {
		return Range{}, fmt.Errorf("[%d,%d]: %w", v[0], v[1], ErrRange)
	}
	return Range{Lo: uint8(v[0]), Hi: uint8(v[1])}, nil
}

func applyGenerators(dst *GenSet, in map[string]int) error {
	if len(in) == 0 {
		return nil
	}
	// Sorted so the first reported error is stable.
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		k, ok := ParseGenKind(name)
		if !ok {
			return fmt.Errorf("unknown generator %q", name)
		}
		v := in[name]
		if v < math.MinInt16 || v > math.MaxInt16 {
			return fmt.Errorf("generator %q value %d out of int16 range", name, v)
		}
		dst.Set(k, int16(v))
	}
	return nil
}
