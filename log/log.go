// Package log writes two files under the log directory: a structured
// diagnostics log and a plain transcript log. Every entry point no-ops
// until Init has been called, so library packages can log without caring
// whether logging is configured.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: HUSH_LOG_PATH environment variable
	envPath := os.Getenv("HUSH_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(device, model, language string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Str("model", model).
		Str("language", language).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}

func RecordingStart(device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Msg("recording_start")
}

func RecordingStop(duration time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("duration_s", duration.Seconds()).
		Msg("recording_stop")
}

func DecodeTiming(pass string, elapsed time.Duration, samples int) {
	if !logReady {
		return
	}
	audioS := float64(samples) / 16000.0
	ev := diagLog.Info().
		Str("pass", pass).
		Float64("decode_ms", float64(elapsed.Microseconds())/1000.0).
		Float64("audio_s", audioS)
	if audioS > 0 {
		ev = ev.Float64("rtf", elapsed.Seconds()/audioS)
	}
	ev.Msg("decode")
}

func PartialFailed(err error) {
	if !logReady {
		return
	}
	diagLog.Warn().Err(err).Msg("partial_decode_failed")
}

func NoSpeech(reason string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("reason", reason).Msg("no_speech")
}

func Rejected(reason string, duration time.Duration, textLen int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("reason", reason).
		Float64("duration_s", duration.Seconds()).
		Int("text_len", textLen).
		Msg("rejected")
}

func Accepted(duration time.Duration, textLen int, language string, confidence float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("duration_s", duration.Seconds()).
		Int("text_len", textLen).
		Str("language", language).
		Float64("confidence", confidence).
		Msg("accepted")
}

func AdaptiveLanguage(detected string, confidence float64, hint string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("detected", detected).
		Float64("confidence", confidence).
		Str("hint", hint).
		Msg("adaptive_language")
}

func ModelLoad(path string, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("path", path).
		Float64("load_ms", float64(elapsed.Microseconds())/1000.0).
		Msg("model_load")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}
