// Package config provides the configuration schema, loader, and file watcher
// for the AulaVoz voice gateway.
package config

import (
	"time"

	"github.com/aulavoz/aulavoz/internal/command"
)

// LogLevel controls log verbosity for the AulaVoz server.
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

// Config is the root configuration structure for AulaVoz.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
//
// Zero values mean "use the component default": an unset duration or
// threshold leaves the corresponding package's built-in default in effect.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Timers   TimersConfig   `yaml:"timers"`
	Speech   SpeechConfig   `yaml:"speech"`
	Commands CommandsConfig `yaml:"commands"`
	I18n     I18nConfig     `yaml:"i18n"`
	Feedback FeedbackConfig `yaml:"feedback"`
}

// FeedbackConfig holds optional feedback-related settings. Feedback itself
// always goes to the backend; this only controls the local extras.
type FeedbackConfig struct {
	// JournalPath, when set, appends every submitted report to a local
	// JSON-lines file for operator inspection.
	JournalPath string `yaml:"journal_path"`
}

// ServerConfig holds network and logging settings for the AulaVoz server.
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

// BackendConfig describes the assistant backend the gateway forwards chat
// and feedback traffic to.
type BackendConfig struct {
	// BaseURL is the backend's root endpoint (e.g., "https://api.campus.example").
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each backend HTTP call. Zero uses the client default.
	Timeout time.Duration `yaml:"timeout"`

	// Breaker tunes the circuit breaker guarding the backend.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker around backend calls.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the breaker opens.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open before probing again.
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenProbes is the number of trial calls allowed while half-open.
	HalfOpenProbes int `yaml:"half_open_probes"`
}

// MatcherConfig tunes the voice-command matcher.
type MatcherConfig struct {
	// Threshold is the minimum word-overlap score in [0, 1] for a fuzzy match.
	Threshold float64 `yaml:"threshold"`

	// SignificantTokenLength is the minimum rune length of a phrase token
	// considered during substring matching.
	SignificantTokenLength int `yaml:"significant_token_length"`

	// DisableSubstringFallback turns off the substring matching tier.
	DisableSubstringFallback bool `yaml:"disable_substring_fallback"`

	// PhoneticTolerance, when in (0, 1], relaxes token comparison to accept
	// near-spellings at or above the given similarity. Zero disables it.
	PhoneticTolerance float64 `yaml:"phonetic_tolerance"`
}

// TimersConfig holds the session timer durations.
type TimersConfig struct {
	// SilenceWindow is how long recognition waits without a final result
	// before stopping the microphone.
	SilenceWindow time.Duration `yaml:"silence_window"`

	// RestartBackoff is the delay before restarting recognition after the
	// engine ends while the user still wants to listen.
	RestartBackoff time.Duration `yaml:"restart_backoff"`

	// AutoAccept is how long a feedback prompt waits for an answer before
	// submitting a positive response on the user's behalf.
	AutoAccept time.Duration `yaml:"auto_accept"`

	// DisplayDelay is how long the submitted-thanks state stays visible.
	DisplayDelay time.Duration `yaml:"display_delay"`

	// InactivityRedirect configures the idle-page redirect.
	InactivityRedirect InactivityConfig `yaml:"inactivity_redirect"`
}

// InactivityConfig configures the redirect issued to idle widget sessions.
type InactivityConfig struct {
	// After is the idle window before the redirect fires. Zero disables it.
	After time.Duration `yaml:"after"`

	// Route is the path the widget is sent to (e.g., "/"). Defaults to "/".
	Route string `yaml:"route"`
}

// SpeechConfig holds speech synthesis settings.
type SpeechConfig struct {
	// SpeakReplies enables reading assistant replies aloud by default.
	SpeakReplies bool `yaml:"speak_replies"`

	// FemaleVoiceHints are substrings identifying preferred voice names.
	FemaleVoiceHints []string `yaml:"female_voice_hints"`

	// MaleVoiceHints are substrings identifying voices to avoid when a
	// female-sounding voice is preferred.
	MaleVoiceHints []string `yaml:"male_voice_hints"`
}

// CommandsConfig holds the voice-command tables. When a table is empty the
// built-in defaults are used.
type CommandsConfig struct {
	// Navigation maps spoken phrases to widget routes.
	Navigation []command.Entry `yaml:"navigation"`

	// Questions maps spoken phrases to localisation keys of full questions.
	Questions []command.Entry `yaml:"questions"`
}

// I18nConfig holds localisation settings.
type I18nConfig struct {
	// BundlePath is the path to a YAML string bundle. Empty uses the
	// built-in bundle.
	BundlePath string `yaml:"bundle_path"`

	// DefaultLanguage is the language tag assumed for widget sessions that
	// do not state one. Empty uses the bundle's default language.
	DefaultLanguage string `yaml:"default_language"`
}
