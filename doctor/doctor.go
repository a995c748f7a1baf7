// Package doctor runs interactive end-to-end diagnostics: model file,
// log directory, hotkey, microphone capture, a real local decode, and the
// clipboard/paste path. Each check prints PASS or FAIL with a fix hint.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"hush/audio"
	"hush/engine"
	"hush/hotkey"
	"hush/log"
)

// Run executes the checks in order and returns the process exit code.
// Later checks are skipped once one fails; they tend to fail for the same
// root cause and the noise buries the real problem.
func Run(modelPath string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("hush doctor - interactive system diagnostics")
	fmt.Println("============================================")

	allPass := true

	if !checkModel(modelPath) {
		allPass = false
	}
	if allPass && !checkLogDir() {
		allPass = false
	}
	if allPass && !checkHotkey() {
		allPass = false
	}
	if allPass && !checkMicAndDecode(modelPath) {
		allPass = false
	}
	if allPass && !checkClipboardCopy() {
		allPass = false
	}
	if allPass && !checkClipboardPaste() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkModel(modelPath string) bool {
	fmt.Println()
	fmt.Println("[1/6] Whisper model file")

	if modelPath == "" {
		fmt.Println("  FAIL: no model configured (use -model, the config file, or HUSH_MODEL_PATH)")
		return false
	}
	info, err := os.Stat(modelPath)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if info.Size() < 1<<20 {
		fmt.Printf("  FAIL: %s is only %d bytes; not a ggml model\n", modelPath, info.Size())
		return false
	}
	fmt.Printf("  PASS: %s (%.0f MB)\n", modelPath, float64(info.Size())/(1<<20))
	return true
}

func checkLogDir() bool {
	fmt.Println()
	fmt.Println("[2/6] Log directory")

	dir, err := log.ResolveDir("")
	if err != nil {
		fmt.Printf("  FAIL: cannot resolve log directory: %v\n", err)
		return false
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("  FAIL: cannot create %s: %v\n", dir, err)
		return false
	}
	probe := dir + string(os.PathSeparator) + ".doctor_probe"
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		fmt.Printf("  FAIL: %s not writable: %v\n", dir, err)
		return false
	}
	os.Remove(probe)
	fmt.Printf("  PASS: %s writable\n", dir)
	return true
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[3/6] Hotkey detection")
	fmt.Println("Press Ctrl+Shift+Space...")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		// Drain the release so it can't leak into the next check.
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicAndDecode(modelPath string) bool {
	fmt.Println()
	fmt.Println("[4/6] Microphone and local transcription")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	device := &devices[0]
	fmt.Printf("Using device: %s\n", device.Name)

	fmt.Println("Speak for 3 seconds...")
	samples, err := recordFor(ctx, device, 3*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(samples) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}
	fmt.Printf("  Recorded %.1fs, loading model and decoding...\n",
		float64(len(samples))/float64(audio.SampleRate))

	eng := engine.New()
	defer eng.Close()

	decodeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	res, err := eng.Transcribe(decodeCtx, engine.Request{
		Samples:   samples,
		ModelPath: modelPath,
		Language:  engine.LanguageAuto,
		Pass:      engine.PassFinal,
		Quality:   engine.QualityBalanced,
	})
	if err != nil {
		fmt.Printf("  FAIL: decode error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		fmt.Println("  FAIL: decode produced no text (was the mic muted?)")
		return false
	}
	fmt.Printf("  PASS: transcribed %q (language %s)\n", text, res.Language)
	return true
}

// recordFor captures d worth of audio through the same conversion path the
// real pipeline uses.
func recordFor(ctx audio.Context, device *audio.DeviceInfo, d time.Duration) ([]float32, error) {
	captureDevice, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		return nil, err
	}
	defer captureDevice.Close()

	ring := audio.NewRingBuffer(int(d.Seconds()+1) * audio.SampleRate)
	capture := audio.NewCapture(captureDevice, ring, audio.SampleRate, audio.Channels)
	if err := capture.Start(); err != nil {
		return nil, err
	}

	fmt.Print("  Recording")
	deadline := time.After(d)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Print(".")
		case <-deadline:
			capture.Stop()
			fmt.Println(" done")
			return ring.Snapshot(), nil
		}
	}
}
