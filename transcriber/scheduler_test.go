package transcriber

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"hush/audio"
	"hush/engine"
)

// loudPCM builds n samples of S16LE square wave well above any trim
// threshold.
func loudPCM(n int) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(12000)
		if i%2 == 0 {
			v = -12000
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func testScheduler(t *testing.T, eng Engine, onDraft func(string)) (*Scheduler, *audio.FakeCapture) {
	t.Helper()
	fake := audio.NewFakeCapture(loudPCM(audio.SampleRate)) // 1s of signal
	ring := audio.NewRingBuffer(audio.SampleRate * 5)
	capture := audio.NewCapture(fake, ring, audio.SampleRate, 1)

	s := New(Config{
		Capture: capture,
		Engine:  eng,
		Settings: func() Settings {
			return Settings{ModelPath: "test.bin", Language: engine.LanguageAuto}
		},
		Window:            func(raw []float32) []float32 { return raw },
		OnDraft:           onDraft,
		PartialInterval:   30 * time.Millisecond,
		MinPartialSamples: 800,
		MinFinalSamples:   800,
		MinSession:        50 * time.Millisecond,
	})
	return s, fake
}

func TestSchedulerLifecycle(t *testing.T) {
	s, _ := testScheduler(t, NewFakeEngine("hello there"), nil)

	if s.State() != StateIdle {
		t.Fatalf("initial state = %v", s.State())
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != StateRecording {
		t.Fatalf("state after Start = %v", s.State())
	}
	if err := s.Start(); err == nil {
		t.Fatal("second Start while recording succeeded")
	}

	time.Sleep(400 * time.Millisecond)
	out, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("state after Stop = %v", s.State())
	}
	if out.Status != StatusAccepted || out.Text != "hello there" {
		t.Fatalf("outcome = %+v", out)
	}

	// The scheduler is reusable for the next session.
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s, _ := testScheduler(t, NewFakeEngine("x"), nil)
	if _, err := s.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("err = %v, want ErrNotRecording", err)
	}
}

func TestShortSessionShortCircuits(t *testing.T) {
	fake := NewFakeEngine("ghost text")
	s, _ := testScheduler(t, fake, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, err := s.Stop(context.Background()) // released almost immediately
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if out.Status != StatusNoSpeech {
		t.Fatalf("status = %v, want no-speech", out.Status)
	}
	if fake.CallsForPass(engine.PassFinal) != 0 {
		t.Fatal("engine invoked for a sub-minimum session")
	}
}

func TestPartialLoopProducesDraft(t *testing.T) {
	drafts := make(chan string, 16)
	s, _ := testScheduler(t, NewFakeEngine("live draft"), func(text string) {
		select {
		case drafts <- text:
		default:
		}
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case text := <-drafts:
		if text != "live draft" {
			t.Fatalf("draft = %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no draft produced")
	}
	if s.Draft() != "live draft" {
		t.Fatalf("Draft() = %q", s.Draft())
	}
}

func TestPartialInFlightGuard(t *testing.T) {
	eng := NewFakeEngine("slow")
	eng.Delay = 250 * time.Millisecond
	s, _ := testScheduler(t, eng, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// ~10 ticks elapse, but with a 250ms decode at most two partials can
	// have started (ticks while one is in flight are skipped).
	time.Sleep(320 * time.Millisecond)
	out, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	_ = out

	if got := eng.CallsForPass(engine.PassPartial); got > 2 {
		t.Fatalf("%d partial decodes started, want <= 2", got)
	}
}

func TestDraftClearedAfterStop(t *testing.T) {
	s, _ := testScheduler(t, NewFakeEngine("draft"), nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if _, err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Draft() != "" {
		t.Fatalf("draft survived session end: %q", s.Draft())
	}
}

func TestFinalDecodeErrorSurfaces(t *testing.T) {
	eng := NewFakeEngine("")
	eng.Err = errors.New("model exploded")
	s, _ := testScheduler(t, eng, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	_, err := s.Stop(context.Background())
	if err == nil {
		t.Fatal("final decode error was swallowed")
	}
	if s.State() != StateIdle {
		t.Fatalf("state after failed final = %v", s.State())
	}
}

func TestRepeatedTextRejectedAcrossSessions(t *testing.T) {
	s, _ := testScheduler(t, NewFakeEngine("send it now"), nil)

	run := func() Outcome {
		t.Helper()
		if err := s.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		time.Sleep(400 * time.Millisecond)
		out, err := s.Stop(context.Background())
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
		return out
	}

	first := run()
	if first.Status != StatusAccepted {
		t.Fatalf("first outcome = %+v", first)
	}
	second := run()
	if second.Status != StatusRejected || second.Reason != ReasonRepeatedText {
		t.Fatalf("second outcome = %+v, want repeated_text rejection", second)
	}
}

func TestAdaptiveHintFlowsIntoRequests(t *testing.T) {
	eng := &FakeEngine{Results: []engine.Result{
		{Text: "guten tag", Language: "de", Confidence: 0.9},
	}}
	s, _ := testScheduler(t, eng, nil)

	for i := 0; i < 3; i++ {
		if err := s.Start(); err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		time.Sleep(200 * time.Millisecond)
		if _, err := s.Stop(context.Background()); err != nil {
			t.Fatalf("Stop %d: %v", i, err)
		}
	}
	if s.LanguageHint() != "de" {
		t.Fatalf("hint = %q, want de", s.LanguageHint())
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if _, err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	calls := eng.Calls()
	last := calls[len(calls)-1]
	if last.Pass != engine.PassFinal || last.Hint != "de" {
		t.Fatalf("last request pass=%v hint=%q, want final/de", last.Pass, last.Hint)
	}
}
