package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.Recognizer.URL == "" {
		errs = append(errs, errors.New("recognizer.url is required"))
	}
	if cfg.Recognizer.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("recognizer.sample_rate %d must be positive", cfg.Recognizer.SampleRate))
	}

	if cfg.Detection.ShortPause <= 0 {
		errs = append(errs, fmt.Errorf("detection.short_pause %v must be positive", cfg.Detection.ShortPause))
	}
	if cfg.Detection.LongGreeting <= 0 {
		errs = append(errs, fmt.Errorf("detection.long_greeting %v must be positive", cfg.Detection.LongGreeting))
	}
	if cfg.Detection.Deadline <= 0 {
		errs = append(errs, fmt.Errorf("detection.deadline %v must be positive", cfg.Detection.Deadline))
	}
	if cfg.Detection.ShortPause >= cfg.Detection.Deadline && cfg.Detection.Deadline > 0 {
		errs = append(errs, fmt.Errorf("detection.short_pause %v must be shorter than detection.deadline %v", cfg.Detection.ShortPause, cfg.Detection.Deadline))
	}
	if t := cfg.Detection.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("detection.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}
	if !cfg.Detection.Encoding.IsValid() {
		errs = append(errs, fmt.Errorf("detection.encoding %q is invalid; valid values: pcm16, ulaw, alaw", cfg.Detection.Encoding))
	}

	if cfg.Sessions.Max < 0 {
		errs = append(errs, fmt.Errorf("sessions.max %d must not be negative", cfg.Sessions.Max))
	}
	if cfg.Sessions.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sessions.sweep_interval %v must be positive", cfg.Sessions.SweepInterval))
	}

	return errors.Join(errs...)
}
