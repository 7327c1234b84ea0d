//go:build js && wasm

package main

import (
	"bytes"
	"encoding/json"
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-sfsynth/bank"
	"github.com/cwbudde/algo-sfsynth/engine"
	"github.com/cwbudde/algo-sfsynth/internal/audioio"
	"github.com/cwbudde/algo-sfsynth/synth"
)

var (
	globalEngine *engine.Engine
	outputBuffer []float32
)

func main() {
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmLoadBank", js.FuncOf(wasmLoadBank))
	js.Global().Set("wasmLoadIR", js.FuncOf(wasmLoadIR))
	js.Global().Set("wasmNoteOn", js.FuncOf(wasmNoteOn))
	js.Global().Set("wasmNoteOff", js.FuncOf(wasmNoteOff))
	js.Global().Set("wasmControlChange", js.FuncOf(wasmControlChange))
	js.Global().Set("wasmPitchBend", js.FuncOf(wasmPitchBend))
	js.Global().Set("wasmProgramChange", js.FuncOf(wasmProgramChange))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM sfsynth module loaded")
	<-c
}

func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	sampleRate := args[0].Int()

	e, err := engine.New(sampleRate, nil, engine.NewDefaultParams())
	if err != nil {
		println("engine init failed:", err.Error())
		return nil
	}
	globalEngine = e
	outputBuffer = make([]float32, engine.BlockSize*2)

	println("Synth initialized at", sampleRate, "Hz")
	return nil
}

// wasmLoadBank(json string, samples object) builds a bank whose sample paths
// are keys of samples, each holding a Uint8Array or ArrayBuffer.
func wasmLoadBank(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return false
	}
	var f bank.File
	if err := json.Unmarshal([]byte(args[0].String()), &f); err != nil {
		println("bank json:", err.Error())
		return false
	}
	files := map[string][]byte{}
	keys := js.Global().Get("Object").Call("keys", args[1])
	for i := 0; i < keys.Length(); i++ {
		name := keys.Index(i).String()
		files[name] = copyBytes(args[1].Get(name))
	}
	b, err := bank.BuildWith(&f, bank.MemoryLoader(files))
	if err != nil {
		println("bank build:", err.Error())
		return false
	}
	globalEngine.SetBank(b)
	println("Bank loaded:", b.Name, len(b.Presets), "presets")
	return true
}

func wasmLoadIR(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return false
	}
	data := copyBytes(args[0])
	if len(data) == 0 {
		println("IR data is empty")
		return false
	}
	left, right, rate, err := audioio.DecodeWAVStereo("ir.wav", bytes.NewReader(data))
	if err != nil {
		println("IR decode:", err.Error())
		return false
	}
	if err := globalEngine.SetReverbIR(left, right, rate); err != nil {
		println("IR install:", err.Error())
		return false
	}
	println("IR loaded successfully:", len(data), "bytes")
	return true
}

// copyBytes accepts a Uint8Array or an ArrayBuffer.
func copyBytes(v js.Value) []byte {
	if !v.InstanceOf(js.Global().Get("Uint8Array")) {
		v = js.Global().Get("Uint8Array").New(v)
	}
	out := make([]byte, v.Get("byteLength").Int())
	js.CopyBytesToGo(out, v)
	return out
}

func send(ev synth.Event) interface{} {
	if !globalEngine.Send(ev) {
		println("event queue full")
	}
	return nil
}

func u7(v js.Value) uint8 { return uint8(min(max(v.Int(), 0), 127)) }

func channel(v js.Value) uint8 { return uint8(min(max(v.Int(), 0), 15)) }

func wasmNoteOn(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 || globalEngine == nil {
		return nil
	}
	return send(synth.NoteOn(channel(args[0]), u7(args[1]), u7(args[2])))
}

func wasmNoteOff(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return nil
	}
	return send(synth.NoteOff(channel(args[0]), u7(args[1])))
}

func wasmControlChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 || globalEngine == nil {
		return nil
	}
	return send(synth.ControlChange(channel(args[0]), u7(args[1]), u7(args[2])))
}

// wasmPitchBend takes the signed 14-bit value, -8192..8191.
func wasmPitchBend(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return nil
	}
	bend := int16(min(max(args[1].Int(), -8192), 8191))
	return send(synth.PitchBend(channel(args[0]), bend))
}

func wasmProgramChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || globalEngine == nil {
		return nil
	}
	return send(synth.ProgramChange(channel(args[0]), u7(args[1])))
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || globalEngine == nil {
		return 0
	}

	numFrames := args[0].Int()
	if numFrames > engine.BlockSize {
		numFrames = engine.BlockSize
	}
	if numFrames < 1 {
		return 0
	}

	globalEngine.ProcessInto(outputBuffer[:numFrames*2])

	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
