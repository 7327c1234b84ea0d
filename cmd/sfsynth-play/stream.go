package main

import (
	"encoding/binary"
	"math"

	"github.com/cwbudde/algo-sfsynth/engine"
)

// stream adapts the engine to io.Reader in interleaved float32 little-endian
// stereo.
type stream struct {
	eng *engine.Engine
	buf []float32
}

func (s *stream) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if cap(s.buf) < frames*2 {
		s.buf = make([]float32, frames*2)
	}
	buf := s.buf[:frames*2]
	s.eng.ProcessInto(buf)
	for i, v := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return frames * 8, nil
}
