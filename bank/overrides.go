package bank

import "fmt"

// WithInstrumentOverrides returns a copy of b in which every zone of
// instrument inst carries gens on top of its own generators. Samples and
// presets are shared with b; b itself is not modified.
func (b *Bank) WithInstrumentOverrides(inst int, gens GenSet) (*Bank, error) {
	if b == nil || inst < 0 || inst >= len(b.Instruments) {
		return nil, fmt.Errorf("override instrument %d: %w", inst, ErrInstrumentIndex)
	}
	out := *b
	out.Instruments = append([]Instrument(nil), b.Instruments...)
	in := &out.Instruments[inst]
	in.Zones = append([]InstrumentZone(nil), in.Zones...)
	for z := range in.Zones {
		in.Zones[z].Generators.Overlay(&gens)
	}
	return &out, nil
}

// PresetInstruments returns the distinct instruments referenced by preset,
// in zone order.
func (b *Bank) PresetInstruments(preset int) []int {
	if b == nil || preset < 0 || preset >= len(b.Presets) {
		return nil
	}
	var out []int
	seen := make(map[int]bool)
	for _, z := range b.Presets[preset].Zones {
		if !seen[z.Instrument] {
			seen[z.Instrument] = true
			out = append(out, z.Instrument)
		}
	}
	return out
}
