package synth

// NumChannels is the number of MIDI channels tracked.
const NumChannels = 16

// DrumChannel is the conventional percussion channel (MIDI channel 10).
const DrumChannel = 9

// MIDI controller numbers handled by ControlChange.
const (
	CCModWheel      = 1
	CCVolume        = 7
	CCPan           = 10
	CCExpression    = 11
	CCSustain       = 64
	CCReverbSend    = 91
	CCChorusSend    = 93
	CCAllSoundOff   = 120
	CCResetAll      = 121
	CCAllNotesOff   = 123
	CCBankSelectMSB = 0
)

// ChannelState is the per-channel controller snapshot a voice starts from.
type ChannelState struct {
	PitchBend  float32 // semitones
	ModWheel   float32 // 0..1
	Volume     float32 // 0..1
	Expression float32 // 0..1
	Pan        float32 // -1..1
	Reverb     float32 // 0..1
	Chorus     float32 // 0..1
}

// DefaultChannelState matches MIDI reset values.
func DefaultChannelState() ChannelState {
	return ChannelState{
		Volume:     100.0 / 127.0,
		Expression: 1,
	}
}

// Gain is the linear channel gain from volume and expression.
func (c ChannelState) Gain() float32 {
	// Squared like the velocity curve.
	v := c.Volume * c.Expression
	return v * v
}

type channel struct {
	state   ChannelState
	preset  int
	bankNum int
	program int
	sustain bool
	keys    keyStateTracker
}

// keyStateTracker records held keys so the sustain pedal can tell which
// voices are only kept alive by the pedal.
type keyStateTracker struct {
	keyDown      [128]bool
	lastVelocity [128]int
}

func (k *keyStateTracker) noteOn(note, velocity int) {
	if note < 0 || note > 127 {
		return
	}
	k.keyDown[note] = true
	k.lastVelocity[note] = velocity
}

func (k *keyStateTracker) noteOff(note int) {
	if note < 0 || note > 127 {
		return
	}
	k.keyDown[note] = false
}

func (k *keyStateTracker) isDown(note int) bool {
	return note >= 0 && note <= 127 && k.keyDown[note]
}

func (k *keyStateTracker) reset() {
	*k = keyStateTracker{}
}

func ccToUnit(v int) float32 {
	return float32(clampi(v, 0, 127)) / 127.0
}
