package engine

import (
	"context"
	"errors"
	"os"
	"testing"
)

// testModelPath returns a whisper model path for integration tests, or
// skips when HUSH_MODEL_PATH is unset.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("HUSH_MODEL_PATH")
	if p == "" {
		t.Skip("HUSH_MODEL_PATH not set; skipping model-backed test")
	}
	return p
}

func TestTranscribeEmptySamples(t *testing.T) {
	e := New()
	defer e.Close()

	// Empty input must not attempt a model load at all.
	res, err := e.Transcribe(context.Background(), Request{ModelPath: "/nonexistent.bin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "" || res.Confidence != 0 {
		t.Fatalf("non-empty result for empty input: %+v", res)
	}
	if e.ModelPath() != "" {
		t.Fatal("empty input triggered a model load")
	}
}

func TestTranscribeMissingModel(t *testing.T) {
	e := New()
	defer e.Close()

	samples := make([]float32, 16000)
	_, err := e.Transcribe(context.Background(), Request{
		Samples:   samples,
		ModelPath: "/nonexistent/path/model.bin",
	})
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
	var mle *ModelLoadError
	if !errors.As(err, &mle) {
		t.Fatalf("error %T is not a *ModelLoadError", err)
	}
	if mle.Path != "/nonexistent/path/model.bin" {
		t.Errorf("ModelLoadError.Path = %q", mle.Path)
	}
}

func TestTranscribeCancelledContext(t *testing.T) {
	e := New()
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Cancellation applies before any decode work; with empty samples
	// the short-circuit wins.
	if _, err := e.Transcribe(ctx, Request{}); err != nil {
		t.Fatalf("empty input after cancel: %v", err)
	}
}

func TestConstrainLanguage(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"en", "en"},
		{"de", "de"},
		{"zh", "zh"},
		{"haw", LanguageUnknown},
		{"xx", LanguageUnknown},
		{"", ""},
	}
	for _, tc := range cases {
		if got := constrainLanguage(tc.in); got != tc.want {
			t.Errorf("constrainLanguage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQualityBeamSize(t *testing.T) {
	cases := []struct {
		q    Quality
		want int
	}{
		{QualityFast, 1},
		{QualityBalanced, 5},
		{QualityHigh, 8},
		{Quality(""), 1}, // unset behaves like fast
	}
	for _, tc := range cases {
		if got := tc.q.beamSize(); got != tc.want {
			t.Errorf("beamSize(%q) = %d, want %d", tc.q, got, tc.want)
		}
	}
}

func TestPassString(t *testing.T) {
	if PassPartial.String() != "partial" || PassFinal.String() != "final" {
		t.Fatal("Pass.String mismatch")
	}
}

func TestLoadAndDecode(t *testing.T) {
	path := testModelPath(t)
	e := New()
	defer e.Close()

	samples := make([]float32, 16000) // one second of silence
	res, err := e.Transcribe(context.Background(), Request{
		Samples:   samples,
		ModelPath: path,
		Language:  "en",
		Pass:      PassFinal,
		Quality:   QualityFast,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if e.ModelPath() != path {
		t.Fatalf("ModelPath = %q, want %q", e.ModelPath(), path)
	}
	// Fixed-language request must not report a detection.
	if res.Language != "" {
		t.Errorf("fixed-language decode reported language %q", res.Language)
	}

	// Loading the same path again is a no-op; a second decode succeeds
	// on the same states.
	if _, err := e.Transcribe(context.Background(), Request{
		Samples:   samples,
		ModelPath: path,
		Language:  "en",
		Pass:      PassPartial,
	}); err != nil {
		t.Fatalf("second Transcribe: %v", err)
	}
}
