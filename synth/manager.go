package synth

import (
	"github.com/cwbudde/algo-sfsynth/bank"
)

// MaxVoices is the fixed polyphony of the chip.
const MaxVoices = 32

// Frame is one rendered sample with the effect send buses.
type Frame struct {
	Left, Right      float32
	ReverbL, ReverbR float32
	ChorusL, ChorusR float32
}

type pendingNote struct {
	active   bool
	note     int
	velocity int
	channel  int
	n        int
	zones    [MaxZones]bank.ZoneMatch
}

// VoiceManager owns the voice pool and routes note events to it. All methods
// must be called from the audio thread; use an EventQueue to hand events over
// from other goroutines.
type VoiceManager struct {
	sampleRate float32
	params     *Params

	voices   [MaxVoices]Voice
	pending  [MaxVoices]pendingNote
	channels [NumChannels]channel

	bank     *bank.Bank
	fallback bank.Sample
	matches  [MaxZones]bank.ZoneMatch

	lastErr error
}

// NewVoiceManager creates a pool of MaxVoices idle voices. params is copied.
func NewVoiceManager(sampleRate int, params *Params) *VoiceManager {
	if params == nil {
		params = NewDefaultParams()
	}
	m := &VoiceManager{
		sampleRate: float32(sampleRate),
		params:     params.Clone(),
		fallback:   newFallbackSample(),
	}
	for i := range m.voices {
		m.voices[i].init(m.sampleRate, m.params)
	}
	for i := range m.channels {
		m.channels[i] = channel{state: DefaultChannelState(), preset: -1}
	}
	return m
}

// SampleRate returns the output rate in Hz.
func (m *VoiceManager) SampleRate() int { return int(m.sampleRate) }

// Params returns the manager's parameters. Changes apply to subsequent notes
// and samples.
func (m *VoiceManager) Params() *Params { return m.params }

// SetBank installs a bank, silences every voice and selects the first preset
// on every channel (the drum bank on the drum channel when present).
func (m *VoiceManager) SetBank(b *bank.Bank) {
	m.Reset()
	m.bank = b
	for ch := range m.channels {
		c := &m.channels[ch]
		c.bankNum, c.program = 0, 0
		if ch == DrumChannel {
			c.bankNum = bank.DrumBank
		}
		c.preset = m.resolvePreset(c.bankNum, c.program, ch)
	}
}

// Bank returns the installed bank.
func (m *VoiceManager) Bank() *bank.Bank { return m.bank }

func (m *VoiceManager) resolvePreset(bankNum, program, ch int) int {
	if m.bank == nil || len(m.bank.Presets) == 0 {
		return -1
	}
	if i, ok := m.bank.FindPreset(bankNum, program); ok {
		return i
	}
	if ch == DrumChannel {
		if i, ok := m.bank.FindPreset(bank.DrumBank, 0); ok {
			return i
		}
	}
	if i, ok := m.bank.FindPreset(0, program); ok {
		return i
	}
	return 0
}

// SetPreset selects a preset by index for a channel. -1 selects nothing.
func (m *VoiceManager) SetPreset(ch, preset int) bool {
	if ch < 0 || ch >= NumChannels {
		return false
	}
	if preset >= 0 && (m.bank == nil || preset >= len(m.bank.Presets)) {
		return false
	}
	m.channels[ch].preset = preset
	return true
}

// SelectPreset selects a preset by MIDI bank and program number. Missing
// programs fall back to bank 0 and then to the first preset.
func (m *VoiceManager) SelectPreset(ch, bankNum, program int) bool {
	if ch < 0 || ch >= NumChannels || program < 0 || program > 127 {
		return false
	}
	c := &m.channels[ch]
	c.bankNum, c.program = bankNum, program
	c.preset = m.resolvePreset(bankNum, program, ch)
	return c.preset >= 0
}

// Preset returns the preset index selected on ch.
func (m *VoiceManager) Preset(ch int) int {
	if ch < 0 || ch >= NumChannels {
		return -1
	}
	return m.channels[ch].preset
}

// NoteOn starts a note and returns the voice slot it plays in. It returns
// false when nothing can play the note or when every voice is busy and the
// steal policy is StealNone.
func (m *VoiceManager) NoteOn(note, velocity, ch int) (int, bool) {
	if note < 0 || note > 127 || velocity < 0 || velocity > 127 || ch < 0 || ch >= NumChannels {
		return -1, false
	}
	if velocity == 0 {
		m.NoteOffChannel(note, ch)
		return -1, false
	}
	c := &m.channels[ch]

	n := 0
	if m.bank != nil && c.preset >= 0 {
		var err error
		n, err = m.bank.SelectZones(c.preset, note, velocity, m.matches[:])
		if err != nil {
			m.lastErr = err
		}
	}
	if n == 0 {
		if !m.params.FallbackTone {
			return -1, false
		}
		m.matches[0] = fallbackZone(&m.fallback)
		n = 1
	}

	if class := int(m.matches[0].Generators.Value(bank.GenExclusiveClass)); class != 0 {
		for i := range m.voices {
			v := &m.voices[i]
			if v.state != VoiceIdle && v.channel == ch && v.exclusiveClass == class {
				v.PrepareForSteal()
			}
		}
	}

	c.keys.noteOn(note, velocity)

	slot := m.findIdle()
	if slot < 0 {
		if m.params.StealPolicy != StealLowestPriority {
			return -1, false
		}
		slot = m.findVictim()
		if slot < 0 {
			return -1, false
		}
		m.voices[slot].PrepareForSteal()
		p := &m.pending[slot]
		p.active = true
		p.note, p.velocity, p.channel = note, velocity, ch
		p.n = copy(p.zones[:], m.matches[:n])
		return slot, true
	}

	if err := m.voices[slot].StartNote(note, velocity, ch, m.matches[:n], c.state); err != nil {
		m.lastErr = err
		return -1, false
	}
	return slot, true
}

func (m *VoiceManager) findIdle() int {
	for i := range m.voices {
		if m.voices[i].state == VoiceIdle && !m.pending[i].active {
			return i
		}
	}
	return -1
}

func (m *VoiceManager) findVictim() int {
	best := -1
	var bestPri float32
	for i := range m.voices {
		if m.pending[i].active {
			continue
		}
		p := m.voices[i].GetStealPriority()
		if best < 0 || p < bestPri {
			best, bestPri = i, p
		}
	}
	return best
}

func (m *VoiceManager) startPending(slot int) {
	p := &m.pending[slot]
	p.active = false
	c := &m.channels[p.channel]
	if err := m.voices[slot].StartNote(p.note, p.velocity, p.channel, p.zones[:p.n], c.state); err != nil {
		m.lastErr = err
	}
	for i := range p.zones[:p.n] {
		p.zones[i].Sample = nil
	}
}

// NoteOff releases every voice playing note on any channel.
func (m *VoiceManager) NoteOff(note int) {
	for ch := range m.channels {
		m.noteOff(note, ch)
	}
}

// NoteOffChannel releases every voice playing note on ch.
func (m *VoiceManager) NoteOffChannel(note, ch int) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	m.noteOff(note, ch)
}

func (m *VoiceManager) noteOff(note, ch int) {
	c := &m.channels[ch]
	c.keys.noteOff(note)
	for i := range m.pending {
		p := &m.pending[i]
		if p.active && p.note == note && p.channel == ch {
			p.active = false
		}
	}
	for i := range m.voices {
		v := &m.voices[i]
		if v.state != VoiceActive || v.note != note || v.channel != ch {
			continue
		}
		if c.sustain {
			v.sustained = true
			continue
		}
		v.StopNote()
	}
}

// SetSustainPedal holds note-offs on ch while down. Releasing the pedal stops
// every voice whose key is no longer held.
func (m *VoiceManager) SetSustainPedal(ch int, down bool) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	c := &m.channels[ch]
	c.sustain = down
	if down {
		return
	}
	for i := range m.voices {
		v := &m.voices[i]
		if v.channel == ch && v.sustained && !c.keys.isDown(v.note) {
			v.StopNote()
		}
	}
}

// AllNotesOff releases every voice on ch, ignoring the sustain pedal.
func (m *VoiceManager) AllNotesOff(ch int) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	c := &m.channels[ch]
	c.sustain = false
	c.keys.reset()
	for i := range m.pending {
		if m.pending[i].channel == ch {
			m.pending[i].active = false
		}
	}
	for i := range m.voices {
		if m.voices[i].channel == ch {
			m.voices[i].StopNote()
		}
	}
}

// AllSoundOff fast-releases every voice on ch.
func (m *VoiceManager) AllSoundOff(ch int) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	m.AllNotesOff(ch)
	for i := range m.voices {
		if m.voices[i].channel == ch {
			m.voices[i].PrepareForSteal()
		}
	}
}

// Reset silences every voice immediately and clears channel controllers.
func (m *VoiceManager) Reset() {
	for i := range m.voices {
		m.voices[i].finish()
		m.pending[i] = pendingNote{}
	}
	for i := range m.channels {
		c := &m.channels[i]
		c.state = DefaultChannelState()
		c.sustain = false
		c.keys.reset()
	}
	m.lastErr = nil
}

// SetPitchBend sets the channel bend in semitones.
func (m *VoiceManager) SetPitchBend(ch int, semitones float32) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	if !isFinite(semitones) {
		semitones = 0
	}
	semitones = clampf(semitones, -maxPitchSemitones, maxPitchSemitones)
	m.channels[ch].state.PitchBend = semitones
	m.forChannel(ch, func(v *Voice) { v.SetPitchBend(semitones) })
}

// SetPitchBend14 applies a signed 14-bit bend scaled by Params.PitchBendRange.
func (m *VoiceManager) SetPitchBend14(ch int, bend int16) {
	m.SetPitchBend(ch, float32(bend)/8192*m.params.PitchBendRange)
}

// SetModulationWheel sets the channel mod wheel in [0, 1].
func (m *VoiceManager) SetModulationWheel(ch int, amount float32) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	if !isFinite(amount) {
		amount = 0
	}
	amount = clampf(amount, 0, 1)
	m.channels[ch].state.ModWheel = amount
	m.forChannel(ch, func(v *Voice) { v.SetModulationWheel(amount) })
}

// SetReverbSend sets the channel reverb send in [0, 1].
func (m *VoiceManager) SetReverbSend(ch int, amount float32) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	amount = clampf(amount, 0, 1)
	m.channels[ch].state.Reverb = amount
	m.forChannel(ch, func(v *Voice) { v.SetReverbSend(amount) })
}

// SetChorusSend sets the channel chorus send in [0, 1].
func (m *VoiceManager) SetChorusSend(ch int, amount float32) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	amount = clampf(amount, 0, 1)
	m.channels[ch].state.Chorus = amount
	m.forChannel(ch, func(v *Voice) { v.SetChorusSend(amount) })
}

// ControlChange applies a MIDI controller message.
func (m *VoiceManager) ControlChange(ch, cc, value int) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	c := &m.channels[ch]
	switch cc {
	case CCBankSelectMSB:
		c.bankNum = clampi(value, 0, 127)
	case CCModWheel:
		m.SetModulationWheel(ch, ccToUnit(value))
	case CCVolume:
		c.state.Volume = ccToUnit(value)
		gain := c.state.Gain()
		m.forChannel(ch, func(v *Voice) { v.SetChannelGain(gain) })
	case CCExpression:
		c.state.Expression = ccToUnit(value)
		gain := c.state.Gain()
		m.forChannel(ch, func(v *Voice) { v.SetChannelGain(gain) })
	case CCPan:
		c.state.Pan = float32(clampi(value, 0, 127)-64) / 63
		c.state.Pan = clampf(c.state.Pan, -1, 1)
		pan := c.state.Pan
		m.forChannel(ch, func(v *Voice) { v.SetChannelPan(pan) })
	case CCSustain:
		m.SetSustainPedal(ch, value >= 64)
	case CCReverbSend:
		m.SetReverbSend(ch, ccToUnit(value))
	case CCChorusSend:
		m.SetChorusSend(ch, ccToUnit(value))
	case CCAllSoundOff:
		m.AllSoundOff(ch)
	case CCResetAll:
		bend := c.state.PitchBend
		c.state = DefaultChannelState()
		if bend != 0 {
			m.SetPitchBend(ch, 0)
		}
		m.SetModulationWheel(ch, 0)
		m.SetSustainPedal(ch, false)
	case CCAllNotesOff:
		m.AllNotesOff(ch)
	}
}

// ProgramChange selects program on ch within the channel's current bank.
func (m *VoiceManager) ProgramChange(ch, program int) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	m.SelectPreset(ch, m.channels[ch].bankNum, program)
}

// ChannelState returns the controller snapshot of ch.
func (m *VoiceManager) ChannelState(ch int) ChannelState {
	if ch < 0 || ch >= NumChannels {
		return ChannelState{}
	}
	return m.channels[ch].state
}

func (m *VoiceManager) forChannel(ch int, fn func(v *Voice)) {
	for i := range m.voices {
		v := &m.voices[i]
		if v.state != VoiceIdle && v.channel == ch {
			fn(v)
		}
	}
}

// HandleEvent applies a queued event immediately.
func (m *VoiceManager) HandleEvent(e Event) {
	ch := int(e.Channel)
	switch e.Kind {
	case EventNoteOn:
		m.NoteOn(int(e.Data1), int(e.Data2), ch)
	case EventNoteOff:
		m.NoteOffChannel(int(e.Data1), ch)
	case EventPitchBend:
		m.SetPitchBend14(ch, e.Bend)
	case EventControlChange:
		m.ControlChange(ch, int(e.Data1), int(e.Data2))
	case EventProgramChange:
		m.ProgramChange(ch, int(e.Data1))
	case EventAllNotesOff:
		for c := 0; c < NumChannels; c++ {
			m.AllNotesOff(c)
		}
	}
}

// Process renders one stereo sample: the sum of every voice scaled by
// Params.MasterGain.
func (m *VoiceManager) Process() (float32, float32) {
	var l, r float32
	for i := range m.voices {
		v := &m.voices[i]
		if v.state == VoiceIdle {
			if m.pending[i].active {
				m.startPending(i)
			} else {
				continue
			}
		}
		vl, vr := v.Process()
		l += vl
		r += vr
		if v.state == VoiceIdle && m.pending[i].active {
			m.startPending(i)
		}
	}
	g := m.params.MasterGain
	return l * g, r * g
}

// ProcessFrame renders one sample like Process and also accumulates the
// reverb and chorus send buses.
func (m *VoiceManager) ProcessFrame() Frame {
	var f Frame
	for i := range m.voices {
		v := &m.voices[i]
		if v.state == VoiceIdle {
			if m.pending[i].active {
				m.startPending(i)
			} else {
				continue
			}
		}
		vl, vr := v.Process()
		f.Left += vl
		f.Right += vr
		if rs := v.reverbSend; rs > 0 {
			f.ReverbL += vl * rs
			f.ReverbR += vr * rs
		}
		if cs := v.chorusSend; cs > 0 {
			f.ChorusL += vl * cs
			f.ChorusR += vr * cs
		}
		if v.state == VoiceIdle && m.pending[i].active {
			m.startPending(i)
		}
	}
	g := m.params.MasterGain
	f.Left *= g
	f.Right *= g
	f.ReverbL *= g
	f.ReverbR *= g
	f.ChorusL *= g
	f.ChorusR *= g
	return f
}

// ProcessEnvelopes advances every voice's envelopes by one sample without
// rendering audio and returns how many voices are still sounding.
func (m *VoiceManager) ProcessEnvelopes() uint32 {
	var n uint32
	for i := range m.voices {
		v := &m.voices[i]
		if v.state == VoiceIdle && m.pending[i].active {
			m.startPending(i)
		}
		if v.ProcessEnvelopes() {
			n++
		} else if m.pending[i].active {
			m.startPending(i)
			n++
		}
	}
	return n
}

// ActiveVoices counts non-idle voices.
func (m *VoiceManager) ActiveVoices() int {
	n := 0
	for i := range m.voices {
		if m.voices[i].state != VoiceIdle {
			n++
		}
	}
	return n
}

// Voice returns the voice in slot i for inspection.
func (m *VoiceManager) Voice(i int) *Voice {
	if i < 0 || i >= MaxVoices {
		return nil
	}
	return &m.voices[i]
}

// LastError returns the most recent note start failure, if any.
func (m *VoiceManager) LastError() error { return m.lastErr }
