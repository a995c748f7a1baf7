// Package speech turns the raw trailing window held by the ring buffer
// into the best available sample array for decoding: an energy-based
// silence trim with a fallback to the untrimmed window, followed by peak
// normalization. Everything here is pure and deterministic.
package speech

import "math"

// Config holds the trim/normalize tuning. All sample counts are at the
// pipeline rate of 16 kHz.
type Config struct {
	// FrameSamples is the analysis frame for the silence trim; 160
	// samples is 10 ms.
	FrameSamples int
	// EnergyThreshold is the per-frame RMS above which a frame counts
	// as speech.
	EnergyThreshold float64
	// PadSamples is kept on each side of the detected speech range so
	// soft onsets and trailing consonants survive the trim.
	PadSamples int
	// MinSamples guards against over-trimming: a trimmed result shorter
	// than this is discarded in favor of the raw window.
	MinSamples int

	// TargetPeak is the normalization target amplitude.
	TargetPeak float32
	// MaxGain caps amplification so a near-silent window is not blown
	// up into pure noise.
	MaxGain float32
	// MinGain is the smallest gain worth applying; below it the signal
	// is already adequate and is left untouched.
	MinGain float32
}

// DefaultConfig returns the tuning used by the recording pipeline.
func DefaultConfig() Config {
	return Config{
		FrameSamples:    160, // 10 ms
		EnergyThreshold: 0.01,
		PadSamples:      1600, // 100 ms
		MinSamples:      3200, // 200 ms
		TargetPeak:      0.95,
		MaxGain:         8.0,
		MinGain:         1.05,
	}
}

// Extract produces the speech window for raw: trim, fall back to raw if
// the trim came out too short, then normalize. raw is never mutated.
func Extract(raw []float32, cfg Config) []float32 {
	trimmed := Trim(raw, cfg)
	if len(trimmed) < cfg.MinSamples {
		trimmed = raw
	}
	return Normalize(trimmed, cfg)
}

// Trim cuts leading and trailing silence. The input is partitioned into
// FrameSamples-sized frames; the result spans from the first to the last
// frame whose RMS reaches EnergyThreshold, padded by PadSamples on both
// sides and clamped to the input bounds. An all-silence input yields nil.
func Trim(raw []float32, cfg Config) []float32 {
	if len(raw) == 0 || cfg.FrameSamples <= 0 {
		return nil
	}

	firstSpeech, lastSpeech := -1, -1
	for off := 0; off < len(raw); off += cfg.FrameSamples {
		end := off + cfg.FrameSamples
		if end > len(raw) {
			end = len(raw)
		}
		if frameRMS(raw[off:end]) >= cfg.EnergyThreshold {
			if firstSpeech < 0 {
				firstSpeech = off
			}
			lastSpeech = end
		}
	}
	if firstSpeech < 0 {
		return nil
	}

	start := firstSpeech - cfg.PadSamples
	if start < 0 {
		start = 0
	}
	end := lastSpeech + cfg.PadSamples
	if end > len(raw) {
		end = len(raw)
	}
	return raw[start:end]
}

// Normalize scales samples toward TargetPeak without exceeding MaxGain,
// and only when the required gain is at least MinGain. The returned slice
// is a copy with every sample clamped to [-1, 1].
func Normalize(samples []float32, cfg Config) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)
	if len(out) == 0 {
		return out
	}

	var peak float32
	for _, s := range out {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}

	gain := float32(1)
	if peak > 0 {
		gain = cfg.TargetPeak / peak
		if gain > cfg.MaxGain {
			gain = cfg.MaxGain
		}
	}
	if gain < cfg.MinGain {
		gain = 1
	}

	for i, s := range out {
		v := s * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = v
	}
	return out
}

func frameRMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
