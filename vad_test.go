package main

import (
	"encoding/binary"
	"math"
	"testing"

	"hush/audio"
)

func genTone(freq float64, durationMs int) []byte {
	n := audio.SampleRate * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/audio.SampleRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func genSilence(durationMs int) []byte {
	return make([]byte, audio.SampleRate*durationMs/1000*2)
}

func TestVADSilence(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genSilence(200))
	if vp.VoiceDetected() {
		t.Error("expected no voice on silence")
	}
}

func TestVADOddChunkSizes(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	// 100-byte chunks never align with the 640-byte frame size; the
	// processor has to carry the remainder between calls.
	silence := genSilence(200)
	for i := 0; i < len(silence); i += 100 {
		end := i + 100
		if end > len(silence) {
			end = len(silence)
		}
		vp.Process(silence[i:end])
	}
	if vp.VoiceDetected() {
		t.Error("expected no voice on silence with odd chunks")
	}
	if total, _ := vp.Stats(); total != 10 {
		t.Errorf("expected 10 classified frames, got %d", total)
	}
}

func TestVADReset(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genTone(440, 200))
	vp.Reset()
	if vp.VoiceDetected() {
		t.Error("expected no voice after reset")
	}
	if !vp.LastVoiceTime().IsZero() {
		t.Error("expected zero LastVoiceTime after reset")
	}
}

func TestVADLastVoiceTimeZeroOnSilence(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genSilence(100))
	if !vp.LastVoiceTime().IsZero() {
		t.Error("expected zero LastVoiceTime on silence")
	}
}

func TestHasSpeechTickOnSilence(t *testing.T) {
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	vp.Process(genSilence(200))
	if vp.HasSpeechTick() {
		t.Error("expected no speech tick on silence")
	}
	// No new frames since the last call.
	if vp.HasSpeechTick() {
		t.Error("expected no speech tick with zero new frames")
	}
}
