package transcriber

import (
	"strings"
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestEvaluateTable(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		name     string
		text     string
		duration time.Duration
		last     string
		ok       bool
		reason   RejectReason
	}{
		{
			name: "empty text", text: "   ", duration: ms(2000),
			ok: false, reason: ReasonEmptyText,
		},
		{
			name: "too short audio", text: "hello", duration: ms(100),
			ok: false, reason: ReasonTooShortAudio,
		},
		{
			name: "short audio long text by words",
			text: "this is way too many words", duration: ms(500),
			ok: false, reason: ReasonShortAudioLongText,
		},
		{
			name: "short audio long text by chars",
			text: "abcdefghijklmnopqrstuvwxyzab", duration: ms(500),
			ok: false, reason: ReasonShortAudioLongText,
		},
		{
			name: "short audio plausible text",
			text: "hello", duration: ms(500),
			ok: true,
		},
		{
			name: "medium audio long text",
			text: "one two three four five six seven eight nine ten eleven twelve",
			duration: ms(1000),
			ok:   false, reason: ReasonShortAudioLongText,
		},
		{
			name: "medium audio plausible text",
			text: "one two three four five", duration: ms(1000),
			ok: true,
		},
		{
			name: "chars per second too dense",
			text: strings.Repeat("dense text and more ", 5), // 100 chars
			duration: ms(2000),
			ok:   false, reason: ReasonCharsPerSecond,
		},
		{
			name: "long session long text",
			text: "this is a perfectly reasonable sentence spoken over a few seconds",
			duration: ms(4000),
			ok:   true,
		},
		{
			name: "repeat within window",
			text: "Send it now.", duration: ms(700), last: "send it now",
			ok: false, reason: ReasonRepeatedText,
		},
		{
			name: "repeat outside window",
			text: "Send it now.", duration: ms(1500), last: "send it now",
			ok: true,
		},
		{
			name: "different text within window",
			text: "Send it later.", duration: ms(700), last: "send it now",
			ok: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, ok := p.Evaluate(tc.text, tc.duration, tc.last)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v (reason %q)", ok, tc.ok, reason)
			}
			if !ok && reason != tc.reason {
				t.Fatalf("reason = %q, want %q", reason, tc.reason)
			}
		})
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	p := DefaultPolicy()

	// Exactly at MinDuration is not "too short".
	if reason, ok := p.Evaluate("hi", p.MinDuration, ""); !ok {
		t.Fatalf("at MinDuration rejected: %q", reason)
	}
	// Exactly at ShortDuration escapes the short tier.
	text5 := "one two three four five"
	if reason, ok := p.Evaluate(text5, p.ShortDuration, ""); !ok {
		t.Fatalf("at ShortDuration rejected: %q", reason)
	}
	// Just below, five words trip it.
	if _, ok := p.Evaluate(text5, p.ShortDuration-time.Millisecond, ""); ok {
		t.Fatal("five words just below ShortDuration accepted")
	}
}

func TestRateFloorAppliesToShortBlips(t *testing.T) {
	p := DefaultPolicy()
	// 6 chars over 170ms is 35/s raw, but the 200ms floor brings the
	// ratio to 30/s.
	if reason, ok := p.Evaluate("zigzag", ms(170), ""); !ok {
		t.Fatalf("rate floor not applied: %q", reason)
	}
}

func TestNormalizeText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello, World!", "hello world"},
		{"  spaced\tout\n", "spaced out"},
		{"don't", "dont"},
		{"ONE... two; THREE", "one two three"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeText(tc.in); got != tc.want {
			t.Errorf("normalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
