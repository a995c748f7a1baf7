package speech

import (
	"math"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	// Smaller pads keep the fixtures readable.
	cfg.PadSamples = 320
	cfg.MinSamples = 640
	return cfg
}

func constant(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// tone fills [from, to) of an n-sample buffer with a sine well above the
// energy threshold.
func tone(n, from, to int, amp float64) []float32 {
	out := make([]float32, n)
	for i := from; i < to; i++ {
		out[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func TestTrimAllSilenceIsEmpty(t *testing.T) {
	cfg := testConfig()
	raw := constant(16000, 0.001) // below threshold everywhere
	if got := Trim(raw, cfg); len(got) != 0 {
		t.Fatalf("trim of silence returned %d samples", len(got))
	}
}

func TestExtractFallsBackToRawWindow(t *testing.T) {
	cfg := testConfig()
	raw := constant(16000, 0.001)
	got := Extract(raw, cfg)
	if len(got) != len(raw) {
		t.Fatalf("fallback window has %d samples, want %d", len(got), len(raw))
	}
}

func TestTrimKeepsMiddleThirdPlusPad(t *testing.T) {
	cfg := testConfig()
	const n = 9600
	raw := tone(n, 3200, 6400, 0.5)

	got := Trim(raw, cfg)

	// Expected span: speech region padded on both sides. Frame alignment
	// may widen the speech edges by up to one frame.
	minLen := (6400 - 3200) + 2*cfg.PadSamples
	maxLen := minLen + 2*cfg.FrameSamples
	if len(got) < minLen || len(got) > maxLen {
		t.Fatalf("trimmed length = %d, want within [%d, %d]", len(got), minLen, maxLen)
	}
}

func TestTrimPadClampsToBounds(t *testing.T) {
	cfg := testConfig()
	const n = 1600
	raw := tone(n, 0, n, 0.5) // speech everywhere: pad cannot extend
	got := Trim(raw, cfg)
	if len(got) != n {
		t.Fatalf("trimmed length = %d, want %d", len(got), n)
	}
}

func TestTrimShortResultTriggersFallback(t *testing.T) {
	cfg := testConfig()
	const n = 16000
	// One tiny burst, shorter than MinSamples even with pad.
	raw := tone(n, 8000, 8010, 0.5)
	trimmed := Trim(raw, cfg)
	if len(trimmed) >= cfg.MinSamples {
		t.Fatalf("fixture invalid: trim produced %d samples", len(trimmed))
	}
	got := Extract(raw, cfg)
	if len(got) != n {
		t.Fatalf("Extract = %d samples, want full window %d", len(got), n)
	}
}

func TestNormalizeBoostsQuietSignal(t *testing.T) {
	cfg := testConfig()
	raw := constant(100, 0.01)
	got := Normalize(raw, cfg)

	// Required gain 95x is capped at MaxGain.
	want := 0.01 * cfg.MaxGain
	if math.Abs(float64(got[0]-want)) > 1e-6 {
		t.Fatalf("normalized sample = %v, want %v", got[0], want)
	}
}

func TestNormalizeLeavesAdequateSignal(t *testing.T) {
	cfg := testConfig()
	raw := constant(100, 0.93) // gain would be ~1.02, below MinGain
	got := Normalize(raw, cfg)
	if got[0] != 0.93 {
		t.Fatalf("adequate signal was rescaled: %v", got[0])
	}
}

func TestNormalizeNeverAmplifiesAboveTarget(t *testing.T) {
	cfg := testConfig()
	raw := constant(100, 0.99)
	got := Normalize(raw, cfg)
	if got[0] > 0.99 {
		t.Fatalf("signal above target was amplified: %v", got[0])
	}
}

func TestNormalizeClampsToUnitRange(t *testing.T) {
	cfg := testConfig()
	raw := []float32{1.5, -1.5, 0.2}
	got := Normalize(raw, cfg)
	for i, s := range got {
		if s > 1 || s < -1 {
			t.Fatalf("sample %d = %v outside [-1, 1]", i, s)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	cfg := testConfig()
	raw := constant(10, 0.01)
	Normalize(raw, cfg)
	if raw[0] != 0.01 {
		t.Fatalf("input mutated: %v", raw[0])
	}
}

func TestExtractDeterministic(t *testing.T) {
	cfg := testConfig()
	raw := tone(9600, 3200, 6400, 0.3)
	a := Extract(raw, cfg)
	b := Extract(raw, cfg)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between runs", i)
		}
	}
}
