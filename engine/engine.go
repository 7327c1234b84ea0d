// Package engine wires a VoiceManager to the reverb and chorus return buses
// and a lock-free event queue, and renders interleaved stereo blocks.
package engine

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/effects"
	"github.com/cwbudde/algo-sfsynth/synth"
)

// BlockSize is the number of frames rendered between effect bus updates.
const BlockSize = effects.BlockSize

// EventQueueSize is the capacity of the engine's event queue.
const EventQueueSize = 1024

// ErrReverbDisabled is returned when the reverb bus is asked for work while
// disabled.
var ErrReverbDisabled = errors.New("reverb bus disabled")

// Params configures an Engine.
type Params struct {
	Synth *synth.Params

	ReverbEnabled bool
	Reverb        effects.ReverbConfig
	// IRWavPath replaces the synthetic room with an impulse response file.
	IRWavPath string

	ChorusEnabled bool
	Chorus        effects.ChorusConfig

	OutputGain float32

	// Channels presets programs and controllers on start and after Reset.
	Channels map[int]ChannelSetup
}

// ChannelSetup is the initial state of one MIDI channel.
type ChannelSetup struct {
	Bank    int
	Program int
	// Controllers maps MIDI controller numbers to values, applied in
	// ascending controller order.
	Controllers map[int]int
}

// NewDefaultParams returns default engine parameters.
func NewDefaultParams() *Params {
	return &Params{
		Synth:         synth.NewDefaultParams(),
		ReverbEnabled: true,
		Reverb:        effects.DefaultReverbConfig(),
		ChorusEnabled: true,
		Chorus:        effects.DefaultChorusConfig(),
		OutputGain:    1,
	}
}

// Engine renders a VoiceManager through the effect buses. ProcessInto must be
// called from a single goroutine; other goroutines hand events over through
// Send.
type Engine struct {
	sampleRate int
	params     *Params

	voices *synth.VoiceManager
	reverb *effects.Reverb
	chorus *effects.Chorus
	events *synth.EventQueue

	pending    synth.Event
	hasPending bool

	// Render's sorted events; scriptBase is the absolute frame of the
	// current ProcessInto call.
	script     []synth.Event
	scriptPos  int
	scriptBase int

	dryL, dryR   []float32
	revIn        []float32
	chorL, chorR []float32
}

// New creates an engine for b (which may be nil, leaving only the fallback
// tone).
func New(sampleRate int, b *bank.Bank, params *Params) (*Engine, error) {
	if params == nil {
		params = NewDefaultParams()
	}
	if params.Synth == nil {
		params.Synth = synth.NewDefaultParams()
	}
	e := &Engine{
		sampleRate: sampleRate,
		params:     params,
		voices:     synth.NewVoiceManager(sampleRate, params.Synth),
		events:     synth.NewEventQueue(EventQueueSize),
		dryL:       make([]float32, BlockSize),
		dryR:       make([]float32, BlockSize),
		revIn:      make([]float32, BlockSize),
		chorL:      make([]float32, BlockSize),
		chorR:      make([]float32, BlockSize),
	}
	if b != nil {
		e.voices.SetBank(b)
	}
	e.applyChannels()
	if params.ReverbEnabled {
		r, err := effects.NewReverb(sampleRate, params.Reverb)
		if err != nil {
			return nil, err
		}
		if params.IRWavPath != "" {
			if err := r.SetIRFromWAV(params.IRWavPath); err != nil {
				return nil, fmt.Errorf("load reverb IR %q: %w", params.IRWavPath, err)
			}
		}
		e.reverb = r
	}
	if params.ChorusEnabled {
		e.chorus = effects.NewChorus(sampleRate, params.Chorus)
	}
	return e, nil
}

// SampleRate returns the output rate in Hz.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Voices exposes the voice manager. It must only be touched from the render
// goroutine.
func (e *Engine) Voices() *synth.VoiceManager { return e.voices }

// SetBank installs a new bank, silencing every voice.
func (e *Engine) SetBank(b *bank.Bank) {
	e.voices.SetBank(b)
	e.applyChannels()
}

// SetReverbIR replaces the reverb impulse response. It fails when the reverb
// bus is disabled.
func (e *Engine) SetReverbIR(left, right []float32, rate int) error {
	if e.reverb == nil {
		return ErrReverbDisabled
	}
	return e.reverb.SetIRAtRate(left, right, rate)
}

func (e *Engine) applyChannels() {
	for _, ch := range slices.Sorted(maps.Keys(e.params.Channels)) {
		setup := e.params.Channels[ch]
		e.voices.SelectPreset(ch, setup.Bank, setup.Program)
		for _, cc := range slices.Sorted(maps.Keys(setup.Controllers)) {
			e.voices.ControlChange(ch, cc, setup.Controllers[cc])
		}
	}
}

// Send queues an event for the render goroutine. Offset counts frames from
// the start of the render call that dequeues it. It returns false when the
// queue is full.
func (e *Engine) Send(ev synth.Event) bool { return e.events.Push(ev) }

// Process renders numFrames of interleaved stereo into a new buffer.
func (e *Engine) Process(numFrames int) []float32 {
	out := make([]float32, numFrames*2)
	e.ProcessInto(out)
	return out
}

// ProcessInto renders len(dst)/2 interleaved stereo frames without
// allocating. Queued events take effect before the frame at their offset.
func (e *Engine) ProcessInto(dst []float32) {
	frames := len(dst) / 2
	for done := 0; done < frames; done += BlockSize {
		n := min(BlockSize, frames-done)
		e.renderBlock(dst[done*2:(done+n)*2], done)
	}
	if e.hasPending {
		e.pending.Offset = max(e.pending.Offset-frames, 0)
	}
}

func (e *Engine) renderBlock(dst []float32, base int) {
	n := len(dst) / 2
	for i := 0; i < n; i++ {
		e.applyDue(base + i)
		f := e.voices.ProcessFrame()
		e.dryL[i], e.dryR[i] = f.Left, f.Right
		e.revIn[i] = 0.5 * (f.ReverbL + f.ReverbR)
		e.chorL[i], e.chorR[i] = f.ChorusL, f.ChorusR
	}
	if e.reverb != nil {
		e.reverb.Process(e.dryL[:n], e.dryR[:n], e.revIn[:n])
	}
	if e.chorus != nil {
		e.chorus.Process(e.dryL[:n], e.dryR[:n], e.chorL[:n], e.chorR[:n])
	}
	g := e.params.OutputGain
	for i := 0; i < n; i++ {
		dst[i*2] = e.dryL[i] * g
		dst[i*2+1] = e.dryR[i] * g
	}
}

// applyDue dispatches every queued event whose offset is at or before frame,
// then the due events of the current Render script. Queued events keep queue
// order; one with a later offset holds back those behind it.
func (e *Engine) applyDue(frame int) {
	e.applyQueued(frame)
	abs := e.scriptBase + frame
	for e.scriptPos < len(e.script) && e.script[e.scriptPos].Offset <= abs {
		e.voices.HandleEvent(e.script[e.scriptPos])
		e.scriptPos++
	}
}

func (e *Engine) applyQueued(frame int) {
	for {
		if !e.hasPending {
			ev, ok := e.events.Pop()
			if !ok {
				return
			}
			e.pending, e.hasPending = ev, true
		}
		if e.pending.Offset > frame {
			return
		}
		e.voices.HandleEvent(e.pending)
		e.hasPending = false
	}
}

// Render plays events (Offset = absolute frame) for frames frames and returns
// interleaved stereo. Events are applied in offset order, ties in slice order,
// after any previously queued events due at the same frame. Events at or past
// frames are dropped.
func (e *Engine) Render(events []synth.Event, frames int) []float32 {
	sorted := append([]synth.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	e.script, e.scriptPos = sorted, 0
	defer func() { e.script, e.scriptPos, e.scriptBase = nil, 0, 0 }()

	out := make([]float32, frames*2)
	for done := 0; done < frames; done += BlockSize {
		n := min(BlockSize, frames-done)
		e.scriptBase = done
		e.ProcessInto(out[done*2 : (done+n)*2])
	}
	return out
}

// Reset silences every voice, drops queued events and clears the effect
// tails.
func (e *Engine) Reset() {
	for {
		if _, ok := e.events.Pop(); !ok {
			break
		}
	}
	e.hasPending = false
	e.voices.Reset()
	e.applyChannels()
	if e.reverb != nil {
		e.reverb.Reset()
	}
	if e.chorus != nil {
		e.chorus.Reset()
	}
}
