package transcriber

import (
	"context"
	"sync"
	"time"

	"hush/engine"
)

// FakeEngine is a scriptable Engine for tests and headless runs. Results
// are returned in order; the last one repeats once exhausted.
type FakeEngine struct {
	Results []engine.Result
	Err     error
	// Delay simulates decode latency.
	Delay time.Duration

	mu    sync.Mutex
	calls []engine.Request
}

func NewFakeEngine(text string) *FakeEngine {
	return &FakeEngine{Results: []engine.Result{{Text: text, Confidence: 0.9}}}
}

func (f *FakeEngine) Transcribe(ctx context.Context, req engine.Request) (engine.Result, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return engine.Result{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)

	if f.Err != nil {
		return engine.Result{}, f.Err
	}
	if len(f.Results) == 0 {
		return engine.Result{}, nil
	}
	idx := len(f.calls) - 1
	if idx >= len(f.Results) {
		idx = len(f.Results) - 1
	}
	return f.Results[idx], nil
}

// Calls returns a copy of every request seen so far.
func (f *FakeEngine) Calls() []engine.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsForPass counts requests for one pass.
func (f *FakeEngine) CallsForPass(p engine.Pass) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Pass == p {
			n++
		}
	}
	return n
}
