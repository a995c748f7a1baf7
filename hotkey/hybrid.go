package hotkey

import (
	"sync"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// StartEvent signals that a recording should begin.
type StartEvent struct {
	Mode Mode
}

// Hybrid layers tap-to-toggle and hold-to-talk onto one key combination.
// A press always starts recording immediately; releasing before the
// long-press threshold leaves the recording running (toggle), while a
// longer hold stops it on release (push-to-talk). In toggle mode the
// next press-and-release stops.
type Hybrid struct {
	startCh chan StartEvent
	stopCh  chan struct{}

	mu     sync.Mutex
	toggle bool
}

// NewHybrid builds a Hybrid controller on top of an existing Hotkey.
// longPress is the hold duration that distinguishes PTT from a tap.
func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan StartEvent, 1),
		stopCh:  make(chan struct{}, 1),
	}
	go h.run(hk, longPress)
	return h
}

// Start returns the channel signaling when to begin recording.
func (h *Hybrid) Start() <-chan StartEvent { return h.startCh }

// StopChan returns the channel signaling when to stop recording.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the active recording is in toggle mode.
func (h *Hybrid) IsToggle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toggle
}

func (h *Hybrid) setToggle(v bool) {
	h.mu.Lock()
	h.toggle = v
	h.mu.Unlock()
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		// Idle: any press starts a recording. Whether it becomes a
		// toggle is known only at release time.
		<-hk.Keydown()
		h.setToggle(false)
		h.startCh <- StartEvent{Mode: ModePTT}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			// Held past the threshold: stop when released.
			<-hk.Keyup()
			h.signalStop()
			continue
		case <-hk.Keyup():
			if !timer.Stop() {
				<-timer.C
			}
			h.setToggle(true)
		}

		// Toggle recording: the next press-and-release stops it.
		<-hk.Keydown()
		<-hk.Keyup()
		h.signalStop()
	}
}

func (h *Hybrid) signalStop() {
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}
