package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aulavoz/aulavoz/internal/command"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
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

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Backend
	if cfg.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	} else if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url %q is not an absolute URL", cfg.Backend.BaseURL))
	}
	errs = appendDurationErr(errs, "backend.timeout", cfg.Backend.Timeout)
	if cfg.Backend.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("backend.breaker.max_failures %d is negative", cfg.Backend.Breaker.MaxFailures))
	}
	errs = appendDurationErr(errs, "backend.breaker.reset_timeout", cfg.Backend.Breaker.ResetTimeout)
	if cfg.Backend.Breaker.HalfOpenProbes < 0 {
		errs = append(errs, fmt.Errorf("backend.breaker.half_open_probes %d is negative", cfg.Backend.Breaker.HalfOpenProbes))
	}

	// Matcher
	if cfg.Matcher.Threshold < 0 || cfg.Matcher.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matcher.threshold %.2f is out of range [0, 1]", cfg.Matcher.Threshold))
	}
	if cfg.Matcher.SignificantTokenLength < 0 {
		errs = append(errs, fmt.Errorf("matcher.significant_token_length %d is negative", cfg.Matcher.SignificantTokenLength))
	}
	if cfg.Matcher.PhoneticTolerance < 0 || cfg.Matcher.PhoneticTolerance > 1 {
		errs = append(errs, fmt.Errorf("matcher.phonetic_tolerance %.2f is out of range [0, 1]", cfg.Matcher.PhoneticTolerance))
	}

	// Timers
	errs = appendDurationErr(errs, "timers.silence_window", cfg.Timers.SilenceWindow)
	errs = appendDurationErr(errs, "timers.restart_backoff", cfg.Timers.RestartBackoff)
	errs = appendDurationErr(errs, "timers.auto_accept", cfg.Timers.AutoAccept)
	errs = appendDurationErr(errs, "timers.display_delay", cfg.Timers.DisplayDelay)
	errs = appendDurationErr(errs, "timers.inactivity_redirect.after", cfg.Timers.InactivityRedirect.After)
	if route := cfg.Timers.InactivityRedirect.Route; route != "" && !strings.HasPrefix(route, "/") {
		errs = append(errs, fmt.Errorf("timers.inactivity_redirect.route %q must start with /", route))
	}

	// Command tables
	errs = append(errs, validateTable("commands.navigation", cfg.Commands.Navigation)...)
	errs = append(errs, validateTable("commands.questions", cfg.Commands.Questions)...)
	for _, e := range cfg.Commands.Navigation {
		if e.Action != "" && !strings.HasPrefix(e.Action, "/") {
			errs = append(errs, fmt.Errorf("commands.navigation phrase %q: action %q must be a route starting with /", e.Phrase, e.Action))
		}
	}

	return errors.Join(errs...)
}

// appendDurationErr appends an error to errs when d is negative.
func appendDurationErr(errs []error, field string, d time.Duration) []error {
	if d < 0 {
		errs = append(errs, fmt.Errorf("%s %s is negative", field, d))
	}
	return errs
}

// validateTable checks that every entry has a phrase and an action, and warns
// about duplicate phrases (only the first occurrence is ever matched).
func validateTable(field string, entries []command.Entry) []error {
	var errs []error
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		phrase := strings.ToLower(strings.TrimSpace(e.Phrase))
		if phrase == "" {
			errs = append(errs, fmt.Errorf("%s[%d].phrase is required", field, i))
			continue
		}
		if e.Action == "" {
			errs = append(errs, fmt.Errorf("%s[%d].action is required", field, i))
		}
		if prev, ok := seen[phrase]; ok {
			slog.Warn("duplicate command phrase — only the first occurrence matches",
				"table", field,
				"phrase", e.Phrase,
				"first", prev,
				"duplicate", i,
			)
			continue
		}
		seen[phrase] = i
	}
	return errs
}
