package transcriber

import "hush/engine"

const (
	// langMinConfidence gates adaptive-language updates; detections
	// below it clear the streak entirely.
	langMinConfidence = 0.55
	// langAdoptStreak is how many consistent detections it takes to
	// adopt a language as the hint.
	langAdoptStreak = 3
)

// adaptiveLanguage learns which supported language the user is currently
// speaking from consecutive confident final-decode detections. It forgets
// immediately on a low-confidence decode or a mode change, and relearns
// after langAdoptStreak consistent utterances, so a language switch costs
// three utterances of auto-detection rather than a settings trip.
type adaptiveLanguage struct {
	hint       string
	streakCode string
	streak     int
}

// Hint returns the current language hint, or "" when none is locked in.
func (a *adaptiveLanguage) Hint() string { return a.hint }

// observe records the outcome of one final decode. auto is false when the
// language mode is fixed, which clears all state.
func (a *adaptiveLanguage) observe(code string, confidence float64, auto bool) {
	if !auto || confidence < langMinConfidence || !engine.IsSupported(code) {
		a.reset()
		return
	}
	if code == a.streakCode {
		a.streak++
	} else {
		a.streakCode = code
		a.streak = 1
	}
	if a.streak >= langAdoptStreak {
		a.hint = code
	}
}

func (a *adaptiveLanguage) reset() {
	a.hint = ""
	a.streakCode = ""
	a.streak = 0
}
