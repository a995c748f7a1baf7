// Package transcriber drives the recording lifecycle: it starts and stops
// audio capture, runs opportunistic partial decodes while the hotkey is
// held, performs the authoritative final decode at release, and filters
// implausible output before anything reaches the paste sink.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"hush/audio"
	"hush/engine"
	"hush/log"
	"hush/speech"
)

// State is the scheduler lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// Status classifies the outcome of a finished session. The three
// non-error outcomes are deliberately distinct: "no speech", "rejected
// artifact", and "accepted" must never be conflated for the user.
type Status int

const (
	StatusAccepted Status = iota
	StatusNoSpeech
	StatusRejected
)

// Outcome is the result of one recording session.
type Outcome struct {
	Status     Status
	Text       string
	Reason     RejectReason // set when Status is StatusRejected
	Language   string
	Confidence float64
	Duration   time.Duration
}

// Engine is the decode dependency; satisfied by *engine.Engine and by the
// in-package fake.
type Engine interface {
	Transcribe(ctx context.Context, req engine.Request) (engine.Result, error)
}

// Settings are the externally configured knobs read at decode time, so a
// model or language change in the UI applies to the next decode without
// restarting anything.
type Settings struct {
	ModelPath string
	Language  string // engine.LanguageAuto or a fixed code
	Quality   engine.Quality
	Threads   int
}

// ErrNotRecording is returned by Stop when no session is active.
var ErrNotRecording = errors.New("transcriber: not recording")

// Config wires a Scheduler.
type Config struct {
	Capture  *audio.Capture
	Engine   Engine
	Settings func() Settings

	// Policy defaults to DefaultPolicy when zero.
	Policy Policy
	// Window extracts the speech window from a raw snapshot; defaults
	// to speech.Extract with speech.DefaultConfig.
	Window func([]float32) []float32
	// OnDraft receives each partial-decode draft for live display.
	OnDraft func(string)

	// PartialInterval is the partial-decode tick; default 300ms.
	PartialInterval time.Duration
	// MinPartialSamples is the least audio worth a partial decode;
	// default 8000 (half a second).
	MinPartialSamples int
	// MinFinalSamples is the least windowed audio worth a final decode;
	// default 1600 (100 ms).
	MinFinalSamples int
	// MinSession short-circuits sessions shorter than this to "no
	// speech" without invoking the engine; default 100 ms.
	MinSession time.Duration
}

// Scheduler owns one recording session at a time.
type Scheduler struct {
	capture  *audio.Capture
	eng      Engine
	settings func() Settings
	policy   Policy
	window   func([]float32) []float32
	onDraft  func(string)

	partialInterval   time.Duration
	minPartialSamples int
	minFinalSamples   int
	minSession        time.Duration

	mu            sync.Mutex
	state         State
	started       time.Time
	cancelPartial context.CancelFunc
	group         *errgroup.Group
	draft         string
	lang          adaptiveLanguage
	lastAccepted  string

	// inFlight enforces at most one outstanding partial decode; a tick
	// that finds it set is skipped, never queued.
	inFlight atomic.Bool
}

// New builds a Scheduler, filling Config defaults.
func New(cfg Config) *Scheduler {
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Window == nil {
		speechCfg := speech.DefaultConfig()
		cfg.Window = func(raw []float32) []float32 {
			return speech.Extract(raw, speechCfg)
		}
	}
	if cfg.PartialInterval <= 0 {
		cfg.PartialInterval = 300 * time.Millisecond
	}
	if cfg.MinPartialSamples <= 0 {
		cfg.MinPartialSamples = audio.SampleRate / 2
	}
	if cfg.MinFinalSamples <= 0 {
		cfg.MinFinalSamples = audio.SampleRate / 10
	}
	if cfg.MinSession <= 0 {
		cfg.MinSession = 100 * time.Millisecond
	}
	return &Scheduler{
		capture:           cfg.Capture,
		eng:               cfg.Engine,
		settings:          cfg.Settings,
		policy:            cfg.Policy,
		window:            cfg.Window,
		onDraft:           cfg.OnDraft,
		partialInterval:   cfg.PartialInterval,
		minPartialSamples: cfg.MinPartialSamples,
		minFinalSamples:   cfg.MinFinalSamples,
		minSession:        cfg.MinSession,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns the latest partial-decode text of the active session.
func (s *Scheduler) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// LanguageHint exposes the adaptive hint for diagnostics.
func (s *Scheduler) LanguageHint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang.Hint()
}

// Start begins a recording session: clears the ring buffer, opens the
// capture stream, and launches the partial-decode loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("transcriber: session already active (%s)", s.state)
	}

	s.capture.Ring().Clear()
	if err := s.capture.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.partialLoop(ctx)
		return nil
	})

	s.state = StateRecording
	s.started = time.Now()
	s.cancelPartial = cancel
	s.group = g
	s.draft = ""

	log.RecordingStart(s.capture.DeviceName())
	return nil
}

// Stop ends the session: halts the partial loop and capture, then runs
// the final decode and the acceptance heuristic. ctx may bound the final
// decode; the scheduler itself imposes no timeout. The returned error is
// a hard decode failure — distinct from the no-speech and rejected
// outcomes, which are not errors.
func (s *Scheduler) Stop(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return Outcome{}, ErrNotRecording
	}
	s.state = StateFinalizing
	cancel := s.cancelPartial
	group := s.group
	started := s.started
	s.mu.Unlock()

	// The loop stops issuing new requests before the final decode runs.
	// An already-in-flight partial may still complete; its result is
	// discarded by the context check in runPartial.
	cancel()
	group.Wait()
	s.capture.Stop()

	duration := time.Since(started)
	log.RecordingStop(duration)

	outcome, err := s.finalize(ctx, duration)

	s.mu.Lock()
	s.state = StateIdle
	s.draft = ""
	s.cancelPartial = nil
	s.group = nil
	s.mu.Unlock()
	s.inFlight.Store(false)

	return outcome, err
}

// partialLoop runs opportunistic partial decodes on a fixed tick until
// the session context is cancelled.
func (s *Scheduler) partialLoop(ctx context.Context) {
	ticker := time.NewTicker(s.partialInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.inFlight.CompareAndSwap(false, true) {
			continue // previous partial still running: skip, don't queue
		}

		snapshot := s.capture.Ring().Snapshot()
		if len(snapshot) < s.minPartialSamples {
			s.inFlight.Store(false)
			continue
		}

		// Decode off the ticker goroutine so cancellation is prompt;
		// the in-flight guard still caps concurrency at one.
		go s.runPartial(ctx, s.window(snapshot))
	}
}

func (s *Scheduler) runPartial(ctx context.Context, win []float32) {
	defer s.inFlight.Store(false)

	set := s.settings()
	startedAt := time.Now()
	res, err := s.eng.Transcribe(ctx, engine.Request{
		Samples:   win,
		ModelPath: set.ModelPath,
		Language:  set.Language,
		Hint:      s.LanguageHint(),
		Pass:      engine.PassPartial,
		Threads:   set.Threads,
	})
	if err != nil {
		// A missed draft is cosmetic; log and move on.
		log.PartialFailed(err)
		return
	}
	log.DecodeTiming(engine.PassPartial.String(), time.Since(startedAt), len(win))

	if ctx.Err() != nil {
		return // recording ended while decoding: discard
	}

	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.draft = res.Text
	cb := s.onDraft
	s.mu.Unlock()

	if cb != nil {
		cb(res.Text)
	}
}

// finalize runs the authoritative decode and classifies the outcome.
func (s *Scheduler) finalize(ctx context.Context, duration time.Duration) (Outcome, error) {
	set := s.settings()
	auto := set.Language == "" || set.Language == engine.LanguageAuto

	if !auto {
		// Leaving auto mode forgets the learned hint immediately.
		s.mu.Lock()
		s.lang.reset()
		s.mu.Unlock()
	}

	if duration < s.minSession {
		log.NoSpeech("session_too_short")
		return Outcome{Status: StatusNoSpeech, Duration: duration}, nil
	}

	win := s.window(s.capture.Ring().Snapshot())
	if len(win) < s.minFinalSamples {
		log.NoSpeech("window_too_short")
		return Outcome{Status: StatusNoSpeech, Duration: duration}, nil
	}

	startedAt := time.Now()
	res, err := s.eng.Transcribe(ctx, engine.Request{
		Samples:   win,
		ModelPath: set.ModelPath,
		Language:  set.Language,
		Hint:      s.LanguageHint(),
		Pass:      engine.PassFinal,
		Quality:   set.Quality,
		Threads:   set.Threads,
	})
	if err != nil {
		return Outcome{}, err
	}
	log.DecodeTiming(engine.PassFinal.String(), time.Since(startedAt), len(win))

	if auto {
		s.mu.Lock()
		s.lang.observe(res.Language, res.Confidence, true)
		hint := s.lang.Hint()
		s.mu.Unlock()
		log.AdaptiveLanguage(res.Language, res.Confidence, hint)
	}

	outcome := Outcome{
		Text:       res.Text,
		Language:   res.Language,
		Confidence: res.Confidence,
		Duration:   duration,
	}

	s.mu.Lock()
	last := s.lastAccepted
	s.mu.Unlock()

	if reason, ok := s.policy.Evaluate(res.Text, duration, last); !ok {
		log.Rejected(string(reason), duration, len(res.Text))
		outcome.Status = StatusRejected
		outcome.Reason = reason
		return outcome, nil
	}

	s.mu.Lock()
	s.lastAccepted = res.Text
	s.mu.Unlock()

	log.Accepted(duration, len(res.Text), res.Language, res.Confidence)
	outcome.Status = StatusAccepted
	return outcome, nil
}
