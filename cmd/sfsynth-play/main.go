package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ebitengine/oto/v3"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/config"
	"github.com/cwbudde/algo-sfsynth/engine"
	"github.com/cwbudde/algo-sfsynth/internal/midimap"
	"github.com/cwbudde/algo-sfsynth/synth"
)

var logger *slog.Logger

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
	slog.SetDefault(logger)
}

func main() {
	configPath := flag.String("config", "", "Engine setup JSON file (optional)")
	bankPath := flag.String("bank", "", "Bank JSON path override (optional)")
	sampleRate := flag.Int("sample-rate", 48000, "Output sample rate in Hz")
	bufferMs := flag.Int("buffer-ms", 20, "Audio device buffer in milliseconds")
	portName := flag.String("port", "", "MIDI input port name (substring match; default first port)")
	list := flag.Bool("list", false, "List MIDI input ports and exit")
	demo := flag.Bool("demo", false, "Play a C major scale instead of listening to MIDI")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	initLogger(*debug)

	if *list {
		if err := listPorts(); err != nil {
			logger.Error("listing MIDI ports failed", "err", err)
			os.Exit(1)
		}
		return
	}

	e, err := newEngine(*configPath, *bankPath, *sampleRate)
	if err != nil {
		logger.Error("engine setup failed", "err", err)
		os.Exit(1)
	}

	out, err := newOutput(e, *sampleRate, time.Duration(*bufferMs)*time.Millisecond)
	if err != nil {
		logger.Error("audio output failed", "err", err)
		os.Exit(1)
	}
	defer out.Close()
	logger.Info("audio started", "sample_rate", *sampleRate, "buffer_ms", *bufferMs)

	if *demo {
		playScale(e)
		return
	}

	stop, err := listen(e, *portName)
	if err != nil {
		logger.Error("MIDI input failed", "err", err)
		os.Exit(1)
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	logger.Info("shutting down")
}

func newEngine(configPath, bankPath string, sampleRate int) (*engine.Engine, error) {
	params := engine.NewDefaultParams()
	if configPath != "" {
		c, err := config.LoadJSON(configPath)
		if err != nil {
			return nil, err
		}
		params = c.Engine
		if bankPath == "" {
			bankPath = c.BankPath
		}
	}
	var b *bank.Bank
	if bankPath != "" {
		var err error
		if b, err = bank.LoadJSON(bankPath); err != nil {
			return nil, err
		}
		logger.Info("bank loaded", "path", bankPath, "presets", len(b.Presets), "samples", len(b.Samples))
	} else {
		logger.Warn("no bank given, playing the fallback tone")
	}
	return engine.New(sampleRate, b, params)
}

func listPorts() error {
	drv, err := rtmididrv.New()
	if err != nil {
		return err
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return err
	}
	for i, in := range ins {
		fmt.Printf("%d: %s\n", i, in.String())
	}
	return nil
}

// listen feeds MIDI input into the engine's event queue. The returned func
// stops listening and closes the driver.
func listen(e *engine.Engine, name string) (func(), error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, err
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, err
	}
	var found drivers.In
	for _, in := range ins {
		if name == "" || strings.Contains(in.String(), name) {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("MIDI input %q not found", name)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, err
	}

	stopFn, err := midi.ListenTo(found, func(msg midi.Message, timestampms int32) {
		ev, ok := midimap.ToEvent(msg)
		if !ok {
			logger.Debug("unhandled MIDI message", "msg", msg.String())
			return
		}
		if !e.Send(ev) {
			logger.Warn("event queue full, dropping message", "msg", msg.String())
			return
		}
		logger.Debug("MIDI event", "msg", msg.String())
	}, midi.HandleError(func(err error) {
		logger.Warn("MIDI listener error", "device", found.String(), "err", err)
	}))
	if err != nil {
		_ = found.Close()
		drv.Close()
		return nil, err
	}
	logger.Info("MIDI input connected", "device", found.String())
	return func() {
		stopFn()
		_ = found.Close()
		drv.Close()
	}, nil
}

func playScale(e *engine.Engine) {
	for _, note := range []uint8{60, 62, 64, 65, 67, 69, 71, 72} {
		e.Send(synth.NoteOn(0, note, 100))
		time.Sleep(300 * time.Millisecond)
		e.Send(synth.NoteOff(0, note))
	}
	time.Sleep(time.Second)
}

// output pulls audio from the engine on oto's playback goroutine.
type output struct {
	ctx    *oto.Context
	player *oto.Player
	stream *stream
}

func newOutput(e *engine.Engine, sampleRate int, buffer time.Duration) (*output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	s := &stream{eng: e}
	p := ctx.NewPlayer(s)
	p.Play()
	return &output{ctx: ctx, player: p, stream: s}, nil
}

func (o *output) Close() {
	if err := o.player.Close(); err != nil {
		logger.Warn("closing player", "err", err)
	}
}
