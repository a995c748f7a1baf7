// Package engine owns the loaded whisper.cpp model and runs decode passes
// against it. Two persistent decode states are kept per loaded model: a
// fast one for partial drafts while recording, and an accurate one for the
// authoritative final decode. The two never share whisper context state,
// so a final decode is never polluted by partial-pass scratch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Pass selects which decode state a transcription runs on.
type Pass int

const (
	PassPartial Pass = iota
	PassFinal
)

func (p Pass) String() string {
	if p == PassPartial {
		return "partial"
	}
	return "final"
}

// Quality selects the final-pass decode strategy.
type Quality string

const (
	QualityFast     Quality = "fast"
	QualityBalanced Quality = "balanced"
	QualityHigh     Quality = "high"
)

// beamSize maps a quality mode to the decode beam width.
func (q Quality) beamSize() int {
	switch q {
	case QualityHigh:
		return 8
	case QualityBalanced:
		return 5
	default:
		return 1
	}
}

const (
	// LanguageAuto asks the model to detect the spoken language.
	LanguageAuto = "auto"
	// LanguageUnknown is reported when the model detects a language
	// outside the supported set.
	LanguageUnknown = "unknown"
)

// supportedLanguages is the set the adaptive hint may lock onto. Whisper
// detects far more, but downstream consumers only handle these; anything
// else is reported as unknown.
var supportedLanguages = map[string]bool{
	"en": true, "de": true, "es": true, "fr": true, "it": true,
	"pt": true, "nl": true, "pl": true, "tr": true, "ru": true,
	"uk": true, "ja": true, "ko": true, "zh": true,
}

// IsSupported reports whether code is a language the pipeline handles.
func IsSupported(code string) bool { return supportedLanguages[code] }

// constrainLanguage maps a raw detection to the supported set.
func constrainLanguage(code string) string {
	if code == "" {
		return ""
	}
	if supportedLanguages[code] {
		return code
	}
	return LanguageUnknown
}

// ErrNotReady is returned when a decode is attempted without a
// successfully loaded model.
var ErrNotReady = errors.New("engine: no model loaded")

// ModelLoadError reports that a model file could not be opened or its
// decode states could not be initialized. Engine state is unchanged: the
// previous model, if any, was already torn down cleanly.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("engine: loading model %q: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// DecodeError reports that the underlying whisper decode call failed.
type DecodeError struct {
	Pass Pass
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("engine: %s decode: %v", e.Pass, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Request describes one decode call.
type Request struct {
	Samples   []float32
	ModelPath string
	// Language is LanguageAuto or a fixed supported code. A fixed code
	// disables detection entirely.
	Language string
	// Hint is the adaptive language hint; consulted only in auto mode.
	Hint string
	Pass Pass
	// Quality applies to the final pass; the partial pass always runs
	// the fastest strategy.
	Quality Quality
	// Threads caps decode threads; 0 lets whisper pick.
	Threads int
}

// Result is the immutable output of one decode call.
type Result struct {
	Text string
	// Language is the detected code constrained to the supported set,
	// or empty when a fixed language was requested.
	Language string
	// Confidence is the mean per-token probability across all segments,
	// in [0, 1]; 0 when no tokens were produced.
	Confidence float64
}

// Engine holds at most one loaded model and its two decode states. All
// methods are safe for concurrent use; a model load or switch is mutually
// exclusive with any in-flight decode, and each decode state is held by at
// most one decode at a time.
type Engine struct {
	// loadMu guards model/path/state identity. Decodes hold it shared so
	// a load waits for in-flight decodes before tearing state down.
	loadMu sync.RWMutex
	model  whisper.Model
	path   string

	partial decodeState
	final   decodeState
}

// decodeState is one named resource slot: a whisper context bound to the
// currently loaded model, serialized by its own mutex.
type decodeState struct {
	mu  sync.Mutex
	ctx whisper.Context
}

// New returns an engine with no model loaded.
func New() *Engine { return &Engine{} }

// Close releases the loaded model and both decode states. The engine is
// reusable afterwards (a new Transcribe will reload).
func (e *Engine) Close() {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	e.unloadLocked()
}

func (e *Engine) unloadLocked() {
	e.partial.ctx = nil
	e.final.ctx = nil
	if e.model != nil {
		e.model.Close()
		e.model = nil
	}
	e.path = ""
}

// ModelPath returns the path of the currently loaded model, or "".
func (e *Engine) ModelPath() string {
	e.loadMu.RLock()
	defer e.loadMu.RUnlock()
	return e.path
}

// ensureLoaded makes path the loaded model. Loading the already-loaded
// path is a no-op; a different path tears the previous model down first.
// On any failure every partially created resource is released before the
// error propagates.
func (e *Engine) ensureLoaded(path string) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if e.model != nil && e.path == path {
		return nil
	}
	e.unloadLocked()

	model, err := whisper.New(path)
	if err != nil {
		return &ModelLoadError{Path: path, Err: err}
	}

	partialCtx, err := model.NewContext()
	if err != nil {
		model.Close()
		return &ModelLoadError{Path: path, Err: fmt.Errorf("partial decode state: %w", err)}
	}
	finalCtx, err := model.NewContext()
	if err != nil {
		model.Close()
		return &ModelLoadError{Path: path, Err: fmt.Errorf("final decode state: %w", err)}
	}

	e.model = model
	e.path = path
	e.partial.ctx = partialCtx
	e.final.ctx = finalCtx
	return nil
}

// Transcribe runs one decode pass. Empty input returns an empty result
// without touching the model. The requested model is loaded on demand;
// ctx is checked before the decode starts (a running whisper decode is
// not interruptible).
func (e *Engine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if len(req.Samples) == 0 {
		return Result{}, nil
	}
	if err := e.ensureLoaded(req.ModelPath); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	e.loadMu.RLock()
	defer e.loadMu.RUnlock()
	if e.model == nil {
		return Result{}, ErrNotReady
	}

	state := &e.final
	if req.Pass == PassPartial {
		state = &e.partial
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.ctx == nil {
		return Result{}, ErrNotReady
	}
	wctx := state.ctx

	auto := configureContext(wctx, req)

	if err := wctx.Process(req.Samples, nil, nil, nil); err != nil {
		return Result{}, &DecodeError{Pass: req.Pass, Err: err}
	}

	text, confidence := collectSegments(wctx)

	res := Result{Text: text, Confidence: confidence}
	if auto {
		res.Language = constrainLanguage(wctx.DetectedLanguage())
	}
	return res, nil
}

// configureContext applies pass and language settings to a decode state.
// It reports whether auto-detection is active for this call.
func configureContext(wctx whisper.Context, req Request) bool {
	wctx.SetTranslate(false)
	if req.Threads > 0 {
		wctx.SetThreads(uint(req.Threads))
	}

	if req.Pass == PassPartial {
		// Lowest latency: single hypothesis, no carried context.
		wctx.SetBeamSize(1)
		wctx.SetMaxContext(0)
	} else {
		wctx.SetBeamSize(req.Quality.beamSize())
		if req.Quality == QualityHigh {
			// Carry context across segments for long utterances.
			wctx.SetMaxContext(-1)
		} else {
			wctx.SetMaxContext(0)
		}
	}

	lang := req.Language
	if lang == "" {
		lang = LanguageAuto
	}
	auto := lang == LanguageAuto
	if auto && req.Hint != "" {
		lang = req.Hint
	}
	if err := wctx.SetLanguage(lang); err != nil {
		// Fall back to detection rather than failing the decode.
		_ = wctx.SetLanguage(LanguageAuto)
	}
	return auto
}

// collectSegments drains the decoded segments, joining non-empty texts
// with single spaces and averaging token probabilities.
func collectSegments(wctx whisper.Context) (string, float64) {
	var parts []string
	var probSum float64
	var tokens int

	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			probSum += float64(tok.P)
			tokens++
		}
	}

	confidence := 0.0
	if tokens > 0 {
		confidence = probSum / float64(tokens)
	}
	return strings.Join(parts, " "), confidence
}
