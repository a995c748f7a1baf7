package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"hush/audio"
	"hush/beep"
	"hush/clipboard"
	"hush/config"
	"hush/doctor"
	"hush/encoder"
	"hush/engine"
	"hush/hotkey"
	"hush/log"
	"hush/shutdown"
	"hush/speech"
	"hush/transcriber"
)

var version = "dev"

const (
	// ringSeconds bounds how much audio one session can hold. Toggle mode
	// auto-closes after 30s of silence, so five minutes is generous.
	ringSeconds = 300

	// clipboardRestoreDelay gives the focused application time to consume
	// the paste before the previous clipboard contents come back.
	clipboardRestoreDelay = 600 * time.Millisecond

	// finalDecodeTimeout bounds the release-to-text path; a decode that
	// takes this long on a push-to-talk utterance is wedged.
	finalDecodeTimeout = 60 * time.Second
)

var (
	autoPaste bool
	dumpDir   string

	sessionMu    sync.Mutex
	sessionCount int

	windowMu   sync.Mutex
	lastWindow []float32

	shutdownOnce sync.Once
)

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		sessionMu.Lock()
		n := sessionCount
		sessionMu.Unlock()
		if n > 0 {
			log.SessionEnd(n)
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(set transcriber.Settings) string {
	return fmt.Sprintf("[%s | %s | %s]", filepath.Base(set.ModelPath), set.Language, set.Quality)
}

func run() {
	configFlag := flag.String("config", "", "Config file path (default: OS-specific location)")
	modelFlag := flag.String("model", "", "Path to ggml whisper model file")
	langFlag := flag.String("lang", "", "Language code, or auto to detect (default: auto)")
	qualityFlag := flag.String("quality", "", "Final decode profile: fast, balanced, high")
	threadsFlag := flag.Int("threads", 0, "Decode threads (0 = engine decides)")
	deviceFlag := flag.String("device", "", "Use microphone whose name contains this string")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	autoPasteFlag := flag.Bool("autopaste", true, "Paste into focused window after transcription")
	dumpFlag := flag.String("dump", "", "Write each speech window as FLAC into this directory")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location)")
	profileFlag := flag.String("profile", "", "Enable pprof server (e.g., localhost:6060)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, WAV input)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	hybridFlag := flag.Bool("hybrid", false, "Enable hybrid tap+hold recording mode")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for PTT vs tap")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic to verify crash logging")
	flag.Parse()

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	cfgPath := *configFlag
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot resolve config path: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolve log directory early: flag beats config beats env beats default.
	logOverride := *logPathFlag
	if logOverride == "" {
		logOverride = cfg.LogPath
	}
	logPath, err := log.ResolveDir(logOverride)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("hush %s\n", version)
		os.Exit(0)
	}

	modelPath := *modelFlag
	if modelPath == "" {
		modelPath = cfg.Model
	}
	if modelPath == "" {
		modelPath = os.Getenv("HUSH_MODEL_PATH")
	}

	if *doctorFlag {
		os.Exit(doctor.Run(modelPath))
	}

	if modelPath == "" {
		fmt.Fprintln(os.Stderr, "Error: no model configured (use -model, the config file, or HUSH_MODEL_PATH)")
		os.Exit(1)
	}
	if _, err := os.Stat(modelPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: model file: %v\n", err)
		os.Exit(1)
	}

	language := cfg.EffectiveLanguage()
	if setFlags["lang"] {
		language = *langFlag
		if language == "" {
			language = engine.LanguageAuto
		}
	}
	if language != engine.LanguageAuto && !engine.IsSupported(language) {
		fmt.Fprintf(os.Stderr, "Error: unsupported language %q\n", language)
		os.Exit(1)
	}

	quality := cfg.EffectiveQuality()
	if setFlags["quality"] {
		quality = engine.Quality(*qualityFlag)
		switch quality {
		case engine.QualityFast, engine.QualityBalanced, engine.QualityHigh:
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown quality %q\n", *qualityFlag)
			os.Exit(1)
		}
	}

	threads := cfg.Threads
	if setFlags["threads"] {
		threads = *threadsFlag
	}

	autoPaste = cfg.AutopasteEnabled()
	if setFlags["autopaste"] {
		autoPaste = *autoPasteFlag
	}

	dumpDir = cfg.DumpDir
	if setFlags["dump"] {
		dumpDir = *dumpFlag
	}
	if dumpDir != "" {
		if err := os.MkdirAll(dumpDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: dump directory: %v\n", err)
			os.Exit(1)
		}
	}

	if !cfg.BeepsEnabled() {
		beep.Disable()
	}

	settings := transcriber.Settings{
		ModelPath: modelPath,
		Language:  language,
		Quality:   quality,
		Threads:   threads,
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if autoPaste {
		if err := clipboard.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	eng := engine.New()
	defer eng.Close()

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: hush -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], eng, settings, cfg.Policy())
		return
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	deviceQuery := cfg.Device
	if setFlags["device"] {
		deviceQuery = *deviceFlag
	}

	var selectedDevice *audio.DeviceInfo
	if deviceQuery != "" {
		selectedDevice, err = findDevice(ctx, deviceQuery)
		if err != nil {
			log.Warnf("device match failed: %v", err)
			fmt.Printf("Warning: %v, falling back to default device\n", err)
		}
	} else if *setupFlag {
		selectedDevice, err = selectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	captureConfig := audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	}
	captureDevice, err := ctx.NewCapture(selectedDevice, captureConfig)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	ring := audio.NewRingBuffer(audio.SampleRate * ringSeconds)
	capture := audio.NewCapture(captureDevice, ring, audio.SampleRate, audio.Channels)

	vp, err := newVADProcessor()
	if err != nil {
		log.Errorf("VAD init error: %v", err)
		fmt.Printf("Error initializing VAD: %v\n", err)
		os.Exit(1)
	}
	capture.RawTap = vp.Process

	speechCfg := speech.DefaultConfig()
	sched := transcriber.New(transcriber.Config{
		Capture:  capture,
		Engine:   eng,
		Settings: func() transcriber.Settings { return settings },
		Policy:   cfg.Policy(),
		Window: func(raw []float32) []float32 {
			win := speech.Extract(raw, speechCfg)
			windowMu.Lock()
			lastWindow = win
			windowMu.Unlock()
			return win
		},
		OnDraft: func(text string) { tuiSend(DraftMsg{Text: text}) },
	})

	// Load the model before the first hotkey press so the first utterance
	// doesn't pay the load cost.
	go func() {
		warmup := make([]float32, audio.SampleRate/5)
		if _, err := eng.Transcribe(context.Background(), engine.Request{
			Samples:   warmup,
			ModelPath: settings.ModelPath,
			Language:  settings.Language,
			Pass:      engine.PassFinal,
			Quality:   engine.QualityFast,
			Threads:   settings.Threads,
		}); err != nil {
			log.Errorf("model warmup failed: %v", err)
			tuiSend(ErrorMsg{Text: fmt.Sprintf("model load failed: %v", err)})
		}
	}()

	// Start TUI
	if !*tuiFlag {
		tuiReadyOnce.Do(func() { close(tuiReady) })
	} else {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()

		<-tuiReady
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	log.SessionStart(capture.DeviceName(), modelPath, language)
	tuiSend(ModeLineMsg{Text: modeLineText(settings)})
	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})
	tuiSend(BluetoothWarningMsg{IsBT: selectedDevice != nil && audio.IsBluetooth(selectedDevice.Name)})
	tuiSend(HybridHelpMsg{Enabled: *hybridFlag})

	if *hybridFlag {
		hy := hotkey.NewHybrid(hk, *longPressFlag)
		for {
			<-hy.Start()
			log.Info("hotkey_start")
			// An auto-closed toggle session can leave a stale stop from
			// the press-release that the controller thought ended it.
			select {
			case <-hy.StopChan():
			default:
			}
			handleRecording(sched, capture, vp, hy.StopChan(), hy.IsToggle)
		}
	} else {
		for {
			// A release queued by a failed session start is stale.
			select {
			case <-hk.Keyup():
			default:
			}
			<-hk.Keydown()
			log.Info("hotkey_down")
			handleRecording(sched, capture, vp, hk.Keyup(), nil)
		}
	}
}

// handleRecording runs one press-to-release cycle: start the scheduler,
// watch for silence while recording, stop on release (or auto-close),
// then deliver the outcome.
func handleRecording(sched *transcriber.Scheduler, capture *audio.Capture, vp *vadProcessor, stop <-chan struct{}, isToggleFn func() bool) {
	vp.Reset()
	tuiSend(RecordingStartMsg{})
	go beep.PlayStart()

	if err := sched.Start(); err != nil {
		log.Errorf("recording start error: %v", err)
		tuiSend(RecordingStopMsg{})
		tuiSend(ErrorMsg{Text: fmt.Sprintf("recording failed: %v", err)})
		go beep.PlayError()
		return
	}

	isToggle := func() bool {
		return isToggleFn != nil && isToggleFn()
	}

	// stop delivers a single value; latch it into a closed channel so the
	// silence monitor and the wait below can both observe it.
	done := make(chan struct{})
	released := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			close(released)
		case <-done:
		}
	}()

	autoClose := make(chan struct{})
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		mon := newSilenceMonitor(isToggle)
		start := time.Now()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-released:
				return
			case <-autoClose:
				return
			case <-ticker.C:
			}
			tuiSend(RecordingTickMsg{Duration: time.Since(start).Seconds()})
			tuiSend(AudioLevelMsg{Level: capture.Level()})
			switch mon.Tick(vp.HasSpeechTick()) {
			case SilenceWarn:
				log.Info("no_voice_warning")
				tuiSend(NoVoiceWarningMsg{})
				beep.PlayError()
			case SilenceWarnClear:
				tuiSend(VoiceClearedMsg{})
			case SilenceRepeat:
				log.Info("silence_during_warning")
				tuiSend(NoVoiceWarningMsg{})
				beep.PlayError()
			case SilenceAutoClose:
				log.Info("silence_auto_close")
				tuiSend(SilenceAutoCloseMsg{})
				close(autoClose)
				return
			}
		}
	}()

	select {
	case <-released:
	case <-autoClose:
	}
	<-monitorDone

	tuiSend(RecordingStopMsg{})
	go beep.PlayEnd()

	ctx, cancel := context.WithTimeout(context.Background(), finalDecodeTimeout)
	defer cancel()
	outcome, err := sched.Stop(ctx)
	deliverOutcome(outcome, err)
}

func deliverOutcome(out transcriber.Outcome, err error) {
	tuiSend(DraftMsg{Text: ""})

	if err != nil {
		log.Errorf("transcription error: %v", err)
		tuiSend(ErrorMsg{Text: fmt.Sprintf("transcription failed: %v", err)})
		go beep.PlayError()
		return
	}

	writeDump()

	switch out.Status {
	case transcriber.StatusNoSpeech:
		tuiSend(TranscriptionMsg{Text: "(no speech detected)", NoSpeech: true})

	case transcriber.StatusRejected:
		tuiSend(TranscriptionMsg{
			Text:     fmt.Sprintf("(discarded: %s)", strings.ReplaceAll(string(out.Reason), "_", " ")),
			NoSpeech: true,
		})

	case transcriber.StatusAccepted:
		deliverText(out.Text)
		sessionMu.Lock()
		sessionCount++
		sessionMu.Unlock()
		log.TranscriptionText(out.Text)
		tuiSend(TranscriptionMsg{Text: out.Text, Copied: true})
	}
}

// deliverText puts text on the clipboard, pastes it when enabled, and
// restores the previous clipboard contents afterwards.
func deliverText(text string) {
	prev, _ := clipboard.Read()

	if err := clipboard.Copy(text); err != nil {
		log.Errorf("clipboard copy error: %v", err)
		return
	}
	if autoPaste {
		if err := clipboard.Paste(); err != nil {
			log.Errorf("paste error: %v", err)
		}
	}

	if prev != "" && prev != text {
		go func() {
			time.Sleep(clipboardRestoreDelay)
			clipboard.Copy(prev)
		}()
	}
}

func writeDump() {
	if dumpDir == "" {
		return
	}
	windowMu.Lock()
	win := lastWindow
	lastWindow = nil
	windowMu.Unlock()
	if len(win) == 0 {
		return
	}
	name := fmt.Sprintf("window_%s.flac", time.Now().Format("20060102_150405.000"))
	if err := encoder.WriteFile(filepath.Join(dumpDir, name), win); err != nil {
		log.Errorf("window dump error: %v", err)
	}
}

func findDevice(ctx audio.Context, query string) (*audio.DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	q := strings.ToLower(query)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), q) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matches %q", query)
}
