package audio

import (
	"sync"
	"testing"
)

func seq(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func assertSamples(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestRingAppendBelowCapacity(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Append(seq(0, 3))
	rb.Append(seq(3, 4))
	assertSamples(t, rb.Snapshot(), seq(0, 7))
	if rb.Len() != 7 {
		t.Fatalf("Len = %d, want 7", rb.Len())
	}
}

func TestRingOverwriteKeepsNewest(t *testing.T) {
	rb := NewRingBuffer(8)
	// 13 samples through an 8-slot buffer: only the last 8 survive.
	rb.Append(seq(0, 5))
	rb.Append(seq(5, 5))
	rb.Append(seq(10, 3))
	assertSamples(t, rb.Snapshot(), seq(5, 8))
}

func TestRingSnapshotAcrossWrap(t *testing.T) {
	rb := NewRingBuffer(6)
	rb.Append(seq(0, 4))
	rb.Append(seq(4, 4)) // wraps: holds 2..7
	assertSamples(t, rb.Snapshot(), seq(2, 6))
}

func TestRingOversizedAppend(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Append(seq(0, 11))
	assertSamples(t, rb.Snapshot(), seq(7, 4))
}

func TestRingEmptySnapshot(t *testing.T) {
	rb := NewRingBuffer(4)
	if got := rb.Snapshot(); len(got) != 0 {
		t.Fatalf("empty buffer snapshot has %d samples", len(got))
	}
}

func TestRingClear(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Append(seq(0, 9))
	rb.Clear()
	if got := rb.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot after clear has %d samples", len(got))
	}
	// Buffer stays usable after clear.
	rb.Append(seq(20, 2))
	assertSamples(t, rb.Snapshot(), seq(20, 2))
}

func TestRingSnapshotDoesNotMutate(t *testing.T) {
	rb := NewRingBuffer(5)
	rb.Append(seq(0, 3))
	first := rb.Snapshot()
	second := rb.Snapshot()
	assertSamples(t, first, second)
	// Mutating the returned copy must not touch the buffer.
	first[0] = 99
	assertSamples(t, rb.Snapshot(), seq(0, 3))
}

func TestRingConcurrentWriterAndReaders(t *testing.T) {
	rb := NewRingBuffer(1024)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			rb.Append(seq(i*16, 16))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				snap := rb.Snapshot()
				// Chronological order must hold in every snapshot.
				for j := 1; j < len(snap); j++ {
					if snap[j] != snap[j-1]+1 {
						t.Errorf("snapshot out of order at %d: %v then %v", j, snap[j-1], snap[j])
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
