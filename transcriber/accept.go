package transcriber

import (
	"strings"
	"time"
	"unicode"
)

// RejectReason is the machine-readable code attached to a discarded final
// transcript.
type RejectReason string

const (
	ReasonEmptyText          RejectReason = "empty_text"
	ReasonTooShortAudio      RejectReason = "too_short_audio"
	ReasonShortAudioLongText RejectReason = "short_audio_long_text"
	ReasonCharsPerSecond     RejectReason = "chars_per_second"
	ReasonRepeatedText       RejectReason = "repeated_text"
)

// Policy encodes the acceptance heuristic for final transcripts: very
// short recordings producing disproportionately long or dense text are
// almost certainly decoder artifacts, not genuine speech. The thresholds
// are tuned constants, exposed so a config file can override them.
type Policy struct {
	// MinDuration rejects anything shorter outright.
	MinDuration time.Duration

	// Below ShortDuration, ShortWords words or ShortChars characters is
	// implausible output.
	ShortDuration time.Duration
	ShortWords    int
	ShortChars    int

	// Same idea one tier up.
	MediumDuration time.Duration
	MediumWords    int
	MediumChars    int

	// MaxCharsPerSecond bounds text density; RateFloor is the minimum
	// duration used in the ratio so sub-200ms blips don't divide by
	// almost zero.
	MaxCharsPerSecond float64
	RateFloor         time.Duration

	// RepeatWindow rejects a transcript identical (after normalization)
	// to the previously accepted one when the recording was shorter than
	// this — residual buffered audio tends to re-decode to the same text.
	RepeatWindow time.Duration
}

// DefaultPolicy returns the tuned thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinDuration:       160 * time.Millisecond,
		ShortDuration:     600 * time.Millisecond,
		ShortWords:        5,
		ShortChars:        28,
		MediumDuration:    1200 * time.Millisecond,
		MediumWords:       12,
		MediumChars:       90,
		MaxCharsPerSecond: 35,
		RateFloor:         200 * time.Millisecond,
		RepeatWindow:      900 * time.Millisecond,
	}
}

// Evaluate applies the heuristic to a final transcript. It returns the
// reject reason and false when the text should be discarded, or ok=true
// when it should be delivered. lastAccepted is the previously accepted
// transcript ("" when none).
func (p Policy) Evaluate(text string, duration time.Duration, lastAccepted string) (RejectReason, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ReasonEmptyText, false
	}
	if duration < p.MinDuration {
		return ReasonTooShortAudio, false
	}

	words := len(strings.Fields(trimmed))
	chars := len([]rune(trimmed))

	if duration < p.ShortDuration && (words >= p.ShortWords || chars >= p.ShortChars) {
		return ReasonShortAudioLongText, false
	}
	if duration < p.MediumDuration && (words >= p.MediumWords || chars >= p.MediumChars) {
		return ReasonShortAudioLongText, false
	}

	rateDur := duration
	if rateDur < p.RateFloor {
		rateDur = p.RateFloor
	}
	if float64(chars)/rateDur.Seconds() > p.MaxCharsPerSecond {
		return ReasonCharsPerSecond, false
	}

	if duration < p.RepeatWindow && lastAccepted != "" &&
		normalizeText(trimmed) == normalizeText(lastAccepted) {
		return ReasonRepeatedText, false
	}

	return "", true
}

// normalizeText lowercases, strips punctuation, and collapses whitespace
// so trivially re-punctuated duplicates still compare equal.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
