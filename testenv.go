package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hush/audio"
	"hush/beep"
	"hush/hotkey"
	"hush/log"
	"hush/transcriber"
)

// runTestMode drives a full record-transcribe cycle from stdin commands
// against a WAV file instead of a microphone. Commands, one per line:
//
//	KEYDOWN          press the hotkey
//	KEYUP            release the hotkey
//	WAIT             block until the current session finishes
//	WAIT_AUDIO_DONE  block until the WAV payload has been fully fed
//	SLEEP <ms>       pause the driver
//	QUIT             exit
//
// Results are printed to stdout, one line per session.
func runTestMode(wavPath string, eng transcriber.Engine, settings transcriber.Settings, policy transcriber.Policy) {
	beep.Disable()

	fakeCtx, err := audio.NewFakeContext(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	device, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: audio.SampleRate, Channels: audio.Channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		os.Exit(1)
	}
	defer device.Close()
	fakeCapture := device.(*audio.FakeCapture)

	ring := audio.NewRingBuffer(audio.SampleRate * ringSeconds)
	capture := audio.NewCapture(device, ring, audio.SampleRate, audio.Channels)

	sched := transcriber.New(transcriber.Config{
		Capture:  capture,
		Engine:   eng,
		Settings: func() transcriber.Settings { return settings },
		Policy:   policy,
		OnDraft:  func(text string) { fmt.Printf("DRAFT: %s\n", text) },
	})

	log.SessionStart("fake", settings.ModelPath, settings.Language)

	hk := hotkey.NewFake()
	recordingDone := make(chan struct{}, 1)
	count := 0

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch cmd {
			case "KEYDOWN":
				hk.SimKeydown()
			case "KEYUP":
				hk.SimKeyup()
			case "WAIT":
				<-recordingDone
			case "WAIT_AUDIO_DONE":
				<-fakeCapture.AudioDone()
			case "QUIT":
				log.SessionEnd(count)
				os.Exit(0)
			default:
				if strings.HasPrefix(cmd, "SLEEP ") {
					if ms, err := strconv.Atoi(cmd[6:]); err == nil {
						time.Sleep(time.Duration(ms) * time.Millisecond)
					}
				}
			}
		}
		log.SessionEnd(count)
		os.Exit(0)
	}()

	for {
		<-hk.Keydown()
		if err := sched.Start(); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			continue
		}
		<-hk.Keyup()

		ctx, cancel := context.WithTimeout(context.Background(), finalDecodeTimeout)
		outcome, err := sched.Stop(ctx)
		cancel()

		switch {
		case err != nil:
			fmt.Printf("ERROR: %v\n", err)
		case outcome.Status == transcriber.StatusNoSpeech:
			fmt.Println("NO_SPEECH")
		case outcome.Status == transcriber.StatusRejected:
			fmt.Printf("REJECTED: %s\n", outcome.Reason)
		default:
			count++
			deliverText(outcome.Text)
			log.TranscriptionText(outcome.Text)
			fmt.Printf("TRANSCRIPTION: %s\n", outcome.Text)
		}

		select {
		case recordingDone <- struct{}{}:
		default:
		}
	}
}
