package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/config"
	"github.com/cwbudde/algo-sfsynth/engine"
	"github.com/cwbudde/algo-sfsynth/internal/audioio"
	"github.com/cwbudde/algo-sfsynth/internal/midimap"
	"github.com/cwbudde/algo-sfsynth/synth"
)

func main() {
	notes := flag.String("notes", "69", "Comma-separated MIDI notes played together")
	velocity := flag.Int("velocity", 100, "MIDI velocity (1-127)")
	program := flag.Int("program", 0, "Program number on channel 0")
	duration := flag.Float64("duration", 2.0, "Duration in seconds")
	releaseAfter := flag.Float64("release-after", 1.0, "Send NoteOff after this many seconds")
	decayDBFS := flag.Float64("decay-dbfs", math.Inf(1), "Auto-stop when stereo block RMS falls below this dBFS (e.g. -90). Disabled by default")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required to stop in auto-decay mode")
	maxDuration := flag.Float64("max-duration", 20.0, "Maximum render duration in seconds when using -decay-dbfs")
	sampleRate := flag.Int("sample-rate", 44100, "Render sample rate in Hz")
	configPath := flag.String("config", "", "Engine setup JSON file (optional)")
	bankPath := flag.String("bank", "", "Bank JSON path override (optional)")
	midiPath := flag.String("midi", "", "Standard MIDI File to render instead of -notes")
	irPath := flag.String("ir", "", "IR WAV path override (optional)")
	dry := flag.Bool("dry", false, "Disable reverb and chorus")
	output := flag.String("output", "output.wav", "Output WAV file path")
	flag.Parse()

	params := engine.NewDefaultParams()
	if *configPath != "" {
		c, err := config.LoadJSON(*configPath)
		if err != nil {
			die("loading config %q: %v", *configPath, err)
		}
		params = c.Engine
		if *bankPath == "" {
			*bankPath = c.BankPath
		}
	}
	if *irPath != "" {
		params.IRWavPath = *irPath
	}
	if *dry {
		params.ReverbEnabled = false
		params.ChorusEnabled = false
	}

	var b *bank.Bank
	if *bankPath != "" {
		var err error
		if b, err = bank.LoadJSON(*bankPath); err != nil {
			die("loading bank %q: %v", *bankPath, err)
		}
	}

	e, err := engine.New(*sampleRate, b, params)
	if err != nil {
		die("creating engine: %v", err)
	}

	var events []synth.Event
	var frames int
	autoStop := !math.IsInf(*decayDBFS, 1)
	if *midiPath != "" {
		var last int
		events, last, err = midimap.ReadSMF(*midiPath, *sampleRate)
		if err != nil {
			die("%v", err)
		}
		frames = last + int(float64(*sampleRate)*(*duration))
		fmt.Printf("Rendering %s (%d events) at %d Hz...\n", *midiPath, len(events), *sampleRate)
	} else {
		keys, err := parseNotes(*notes)
		if err != nil {
			die("%v", err)
		}
		events = noteEvents(keys, *velocity, *program, int(float64(*sampleRate)*(*releaseAfter)))
		frames = int(float64(*sampleRate) * (*duration))
		fmt.Printf("Rendering notes %v, velocity %d, program %d for %.2f seconds at %d Hz...\n", keys, *velocity, *program, *duration, *sampleRate)
	}
	if autoStop {
		frames = max(frames, int(float64(*sampleRate)*(*maxDuration)))
	}
	frames = max(frames, 1)

	samples := e.Render(events, frames)
	if autoStop {
		samples = trimDecay(samples, events, math.Pow(10, *decayDBFS/20), max(*decayHoldBlocks, 1))
		fmt.Printf("Auto-stop at %d frames (%.3fs), threshold %.1f dBFS\n", len(samples)/2, float64(len(samples)/2)/float64(*sampleRate), *decayDBFS)
	}
	if err := e.Voices().LastError(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if err := audioio.WriteStereoInterleavedWAV(*output, samples, *sampleRate); err != nil {
		die("writing WAV file: %v", err)
	}
	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, len(samples)/2)
}

func parseNotes(s string) ([]int, error) {
	var keys []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > 127 {
			return nil, fmt.Errorf("invalid note %q", f)
		}
		keys = append(keys, n)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no notes given")
	}
	return keys, nil
}

func noteEvents(keys []int, velocity, program, releaseAt int) []synth.Event {
	vel := uint8(min(max(velocity, 1), 127))
	events := []synth.Event{synth.ProgramChange(0, uint8(min(max(program, 0), 127)))}
	for _, k := range keys {
		events = append(events, synth.NoteOn(0, uint8(k), vel))
	}
	for _, k := range keys {
		off := synth.NoteOff(0, uint8(k))
		off.Offset = max(releaseAt, 0)
		events = append(events, off)
	}
	return events
}

// trimDecay cuts the render once holdBlocks consecutive blocks after the last
// event stay below threshold.
func trimDecay(samples []float32, events []synth.Event, threshold float64, holdBlocks int) []float32 {
	start := 0
	for _, ev := range events {
		start = max(start, ev.Offset)
	}
	const block = engine.BlockSize
	below := 0
	for f := start; f+block <= len(samples)/2; f += block {
		if audioio.StereoRMS(samples[f*2:(f+block)*2]) < threshold {
			below++
			if below >= holdBlocks {
				return samples[:(f+block)*2]
			}
		} else {
			below = 0
		}
	}
	return samples
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
