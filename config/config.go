// Package config loads the YAML configuration file and translates it
// into the runtime settings the rest of the program consumes.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hush/engine"
	"hush/transcriber"
)

// Config is the root configuration, typically loaded from
// ~/.config/hush/config.yaml via [Load].
type Config struct {
	// Model is the path to a ggml whisper model file.
	Model string `yaml:"model"`

	// Language is "auto" or a fixed two-letter code.
	Language string `yaml:"language"`

	// Quality selects the final-pass decode profile: fast, balanced, high.
	Quality string `yaml:"quality"`

	// Threads caps decode threads; 0 lets the engine decide.
	Threads int `yaml:"threads"`

	// Device is a substring matched against capture device names.
	// Empty selects the system default input.
	Device string `yaml:"device"`

	// Autopaste pastes accepted text into the focused window. When
	// false the text is only placed on the clipboard.
	Autopaste *bool `yaml:"autopaste"`

	// Beeps enables the start/stop audio cues.
	Beeps *bool `yaml:"beeps"`

	// LogPath overrides the log directory.
	LogPath string `yaml:"log_path"`

	// DumpDir, when set, writes each speech window as a FLAC file there.
	DumpDir string `yaml:"dump_dir"`

	// Accept tunes the output acceptance heuristic.
	Accept AcceptConfig `yaml:"accept"`
}

// AcceptConfig overrides individual acceptance thresholds. Zero fields
// keep the built-in defaults.
type AcceptConfig struct {
	MinDurationMs     int     `yaml:"min_duration_ms"`
	ShortDurationMs   int     `yaml:"short_duration_ms"`
	ShortMaxWords     int     `yaml:"short_max_words"`
	ShortMaxChars     int     `yaml:"short_max_chars"`
	MediumDurationMs  int     `yaml:"medium_duration_ms"`
	MediumMaxWords    int     `yaml:"medium_max_words"`
	MediumMaxChars    int     `yaml:"medium_max_chars"`
	MaxCharsPerSecond float64 `yaml:"max_chars_per_second"`
	RepeatWindowMs    int     `yaml:"repeat_window_ms"`
}

// Load reads the YAML configuration file at path. A missing file is not
// an error; it yields the zero Config so every field falls back to its
// built-in default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Language != "" && cfg.Language != engine.LanguageAuto && !engine.IsSupported(cfg.Language) {
		errs = append(errs, fmt.Errorf("language %q is not supported; use auto or a supported code", cfg.Language))
	}

	switch engine.Quality(cfg.Quality) {
	case "", engine.QualityFast, engine.QualityBalanced, engine.QualityHigh:
	default:
		errs = append(errs, fmt.Errorf("quality %q is invalid; valid values: fast, balanced, high", cfg.Quality))
	}

	if cfg.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads %d is negative", cfg.Threads))
	}

	a := cfg.Accept
	for _, f := range []struct {
		name string
		v    int
	}{
		{"accept.min_duration_ms", a.MinDurationMs},
		{"accept.short_duration_ms", a.ShortDurationMs},
		{"accept.short_max_words", a.ShortMaxWords},
		{"accept.short_max_chars", a.ShortMaxChars},
		{"accept.medium_duration_ms", a.MediumDurationMs},
		{"accept.medium_max_words", a.MediumMaxWords},
		{"accept.medium_max_chars", a.MediumMaxChars},
		{"accept.repeat_window_ms", a.RepeatWindowMs},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("%s %d is negative", f.name, f.v))
		}
	}
	if a.MaxCharsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("accept.max_chars_per_second %.1f is negative", a.MaxCharsPerSecond))
	}

	return errors.Join(errs...)
}

// EffectiveLanguage returns the configured language, defaulting to auto.
func (c *Config) EffectiveLanguage() string {
	if c.Language == "" {
		return engine.LanguageAuto
	}
	return c.Language
}

// EffectiveQuality returns the configured decode profile.
func (c *Config) EffectiveQuality() engine.Quality {
	if c.Quality == "" {
		return engine.QualityBalanced
	}
	return engine.Quality(c.Quality)
}

// AutopasteEnabled defaults to true when the field is absent.
func (c *Config) AutopasteEnabled() bool {
	return c.Autopaste == nil || *c.Autopaste
}

// BeepsEnabled defaults to true when the field is absent.
func (c *Config) BeepsEnabled() bool {
	return c.Beeps == nil || *c.Beeps
}

// Policy merges the acceptance overrides onto the built-in defaults.
func (c *Config) Policy() transcriber.Policy {
	p := transcriber.DefaultPolicy()
	a := c.Accept
	if a.MinDurationMs > 0 {
		p.MinDuration = time.Duration(a.MinDurationMs) * time.Millisecond
	}
	if a.ShortDurationMs > 0 {
		p.ShortDuration = time.Duration(a.ShortDurationMs) * time.Millisecond
	}
	if a.ShortMaxWords > 0 {
		p.ShortWords = a.ShortMaxWords
	}
	if a.ShortMaxChars > 0 {
		p.ShortChars = a.ShortMaxChars
	}
	if a.MediumDurationMs > 0 {
		p.MediumDuration = time.Duration(a.MediumDurationMs) * time.Millisecond
	}
	if a.MediumMaxWords > 0 {
		p.MediumWords = a.MediumMaxWords
	}
	if a.MediumMaxChars > 0 {
		p.MediumChars = a.MediumMaxChars
	}
	if a.MaxCharsPerSecond > 0 {
		p.MaxCharsPerSecond = a.MaxCharsPerSecond
	}
	if a.RepeatWindowMs > 0 {
		p.RepeatWindow = time.Duration(a.RepeatWindowMs) * time.Millisecond
	}
	return p
}
