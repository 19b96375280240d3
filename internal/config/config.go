// Package config provides the configuration schema, loader, and recognizer
// registry for the Centinela answering machine detection service.
package config

import (
	"time"

	"github.com/centinelalabs/centinela/internal/phrase"
	"github.com/centinelalabs/centinela/pkg/audio"
)

// LogLevel controls log verbosity for the Centinela server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Default detection tuning. These values assume telephony greetings: a
// listening pause under a second, voicemail announcements that run several
// seconds, and a decision budget short enough to act before the beep.
const (
	DefaultShortPause   = 700 * time.Millisecond
	DefaultLongGreeting = 4 * time.Second
	DefaultDeadline     = 3500 * time.Millisecond
	DefaultSampleRate   = 16000
	DefaultRetainFor    = 30 * time.Second
	DefaultSweepEvery   = time.Second
)

// Config is the root configuration structure for Centinela.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Detection  DetectionConfig  `yaml:"detection"`
	Sessions   SessionsConfig   `yaml:"sessions"`
}

// ServerConfig holds network and logging settings for the Centinela server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// RecognizerConfig selects and configures the speech recognition backend.
// The Name field is used to look up the constructor in the [Registry].
type RecognizerConfig struct {
	// Name selects the registered recognizer implementation (e.g., "vosk").
	Name string `yaml:"name"`

	// URL is the recognizer's streaming endpoint
	// (e.g., "ws://localhost:2700").
	URL string `yaml:"url"`

	// SampleRate is the default PCM sample rate in Hz for recognition.
	// Individual sessions may override it.
	SampleRate int `yaml:"sample_rate"`

	// Language hints the recognizer's model selection (e.g., "es", "en").
	Language string `yaml:"language"`
}

// DetectionConfig holds the decision thresholds and phrase list applied to
// every session unless overridden at creation time.
type DetectionConfig struct {
	// ShortPause is the silence gap treated as a human listening pause.
	ShortPause time.Duration `yaml:"short_pause"`

	// LongGreeting is the first-utterance duration past which a greeting is
	// classified as machine-generated.
	LongGreeting time.Duration `yaml:"long_greeting"`

	// Deadline is the total decision budget per call.
	Deadline time.Duration `yaml:"deadline"`

	// Phrases is the voicemail marker list. When empty the built-in
	// Spanish/English list is used; set disable_phrases to turn matching off.
	Phrases []string `yaml:"phrases"`

	// DisablePhrases turns phrase matching off entirely.
	DisablePhrases bool `yaml:"disable_phrases"`

	// FuzzyThreshold enables fuzzy phrase matching when > 0. Values near 1
	// require near-exact matches; 0 disables fuzzy matching.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// MatchPartials additionally matches phrases against non-final
	// hypotheses for earlier machine detection.
	MatchPartials bool `yaml:"match_partials"`

	// Encoding is the default wire encoding of inbound audio
	// ("pcm16", "ulaw", or "alaw").
	Encoding audio.Encoding `yaml:"encoding"`
}

// SessionsConfig bounds the session table.
type SessionsConfig struct {
	// Max caps concurrent sessions. Zero means unlimited.
	Max int `yaml:"max"`

	// RetainFor keeps decided sessions queryable for this long past their
	// deadline before the sweeper removes them.
	RetainFor time.Duration `yaml:"retain_for"`

	// SweepInterval is how often the manager scans for expired sessions.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ApplyDefaults fills in zero-valued fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Recognizer.Name == "" {
		c.Recognizer.Name = "vosk"
	}
	if c.Recognizer.SampleRate == 0 {
		c.Recognizer.SampleRate = DefaultSampleRate
	}
	if c.Detection.ShortPause == 0 {
		c.Detection.ShortPause = DefaultShortPause
	}
	if c.Detection.LongGreeting == 0 {
		c.Detection.LongGreeting = DefaultLongGreeting
	}
	if c.Detection.Deadline == 0 {
		c.Detection.Deadline = DefaultDeadline
	}
	if len(c.Detection.Phrases) == 0 && !c.Detection.DisablePhrases {
		c.Detection.Phrases = phrase.DefaultPhrases
	}
	if c.Detection.Encoding == "" {
		c.Detection.Encoding = audio.EncodingPCM16
	}
	if c.Sessions.RetainFor == 0 {
		c.Sessions.RetainFor = DefaultRetainFor
	}
	if c.Sessions.SweepInterval == 0 {
		c.Sessions.SweepInterval = DefaultSweepEvery
	}
}
