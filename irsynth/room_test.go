package irsynth

import (
	"errors"
	"math"
	"testing"
)

func TestGenerateRoomBasic(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.SampleRate = 48000
	cfg.DurationS = 0.5
	cfg.Seed = 42
	cfg.NormalizePeak = 0.8

	l, r, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("GenerateRoom: %v", err)
	}
	if len(l) != int(0.5*48000) || len(r) != len(l) {
		t.Fatalf("unexpected output lengths: L=%d R=%d", len(l), len(r))
	}

	peak := 0.0
	energy := 0.0
	for i := range l {
		if math.IsNaN(float64(l[i])) || math.IsInf(float64(l[i]), 0) || math.IsNaN(float64(r[i])) || math.IsInf(float64(r[i]), 0) {
			t.Fatalf("non-finite sample at %d", i)
		}
		peak = math.Max(peak, math.Max(math.Abs(float64(l[i])), math.Abs(float64(r[i]))))
		energy += float64(l[i]*l[i] + r[i]*r[i])
	}
	if energy <= 1e-8 {
		t.Fatalf("expected non-zero energy")
	}
	if math.Abs(peak-0.8) > 1e-3 {
		t.Fatalf("unexpected normalization peak: %.6f", peak)
	}
}

func TestGenerateRoomDeterministicForSeed(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.DurationS = 0.2
	cfg.Seed = 99

	l1, r1, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("first GenerateRoom: %v", err)
	}
	l2, r2, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("second GenerateRoom: %v", err)
	}
	for i := range l1 {
		if l1[i] != l2[i] || r1[i] != r2[i] {
			t.Fatalf("non-deterministic output at index %d", i)
		}
	}

	cfg.Seed = 100
	l3, _, _ := GenerateRoom(cfg)
	same := true
	for i := range l1 {
		if l1[i] != l3[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds produced identical rooms")
	}
}

func TestGenerateRoomHonoursPreDelay(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.DurationS = 0.3
	cfg.PreDelayS = 0.02
	l, r, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	gap := int(0.02 * float64(cfg.SampleRate))
	for i := 0; i < gap; i++ {
		if l[i] != 0 || r[i] != 0 {
			t.Fatalf("energy at %d before the %d-sample pre-delay", i, gap)
		}
	}
}

func TestGenerateRoomTailDecays(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.DurationS = 1.0
	cfg.EarlyCount = 0
	l, _, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	seg := func(from, to float64) float64 {
		a, b := int(from*float64(cfg.SampleRate)), int(to*float64(cfg.SampleRate))
		var sum float64
		for _, v := range l[a:b] {
			sum += float64(v) * float64(v)
		}
		return sum / float64(b-a)
	}
	if early, late := seg(0.05, 0.15), seg(0.7, 0.8); late >= early {
		t.Fatalf("tail does not decay: early=%g late=%g", early, late)
	}
}

func TestRoomConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RoomConfig)
	}{
		{"sample rate", func(c *RoomConfig) { c.SampleRate = 4000 }},
		{"duration", func(c *RoomConfig) { c.DurationS = 0 }},
		{"pre-delay", func(c *RoomConfig) { c.PreDelayS = 2 }},
		{"early count", func(c *RoomConfig) { c.EarlyCount = -1 }},
		{"brightness", func(c *RoomConfig) { c.Brightness = 0 }},
		{"decay", func(c *RoomConfig) { c.HighDecayS = 0 }},
		{"peak", func(c *RoomConfig) { c.NormalizePeak = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultRoomConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v", err)
			}
		})
	}
	cfg := DefaultRoomConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
