// Package app wires all AulaVoz subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems from a validated config, Run serves the gateway until the
// context is cancelled, and each connected widget gets its own
// [WidgetSession] holding the conversation state.
//
// For testing, inject doubles via functional options (WithBackendClient,
// WithMetrics). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aulavoz/aulavoz/internal/backend"
	"github.com/aulavoz/aulavoz/internal/command"
	"github.com/aulavoz/aulavoz/internal/config"
	"github.com/aulavoz/aulavoz/internal/feedback"
	"github.com/aulavoz/aulavoz/internal/gateway"
	"github.com/aulavoz/aulavoz/internal/health"
	"github.com/aulavoz/aulavoz/internal/i18n"
	"github.com/aulavoz/aulavoz/internal/observe"
	"github.com/aulavoz/aulavoz/internal/resilience"
	"github.com/aulavoz/aulavoz/internal/speech"
	"github.com/aulavoz/aulavoz/internal/voice"
)

// App owns the subsystem lifetimes: the backend client, the shared session
// dependencies, and the gateway server.
type App struct {
	cfg     *config.Config
	client  *backend.Client
	metrics *observe.Metrics
	server  *gateway.Server

	// mu guards deps, which is swapped wholesale on config reload. New
	// widget sessions pick up the current value; existing sessions keep
	// the dependencies they were built with.
	mu   sync.RWMutex
	deps SessionDeps
}

// Option configures optional App dependencies.
type Option func(*App)

// WithBackendClient injects a backend client instead of building one from
// the config.
func WithBackendClient(c *backend.Client) Option {
	return func(a *App) { a.client = c }
}

// WithMetrics injects a metrics instance instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. cfg must have
// passed [config.Config.Validate].
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.client == nil {
		breaker := resilience.New(resilience.Config{
			Name:           "backend",
			MaxFailures:    cfg.Backend.Breaker.MaxFailures,
			ResetTimeout:   cfg.Backend.Breaker.ResetTimeout,
			HalfOpenProbes: cfg.Backend.Breaker.HalfOpenProbes,
		})
		client, err := backend.New(cfg.Backend.BaseURL,
			backend.WithTimeout(cfg.Backend.Timeout),
			backend.WithBreaker(breaker),
		)
		if err != nil {
			return nil, fmt.Errorf("app: backend client: %w", err)
		}
		a.client = client
	}

	deps, err := buildSessionDeps(cfg, a.client, a.metrics)
	if err != nil {
		return nil, err
	}
	a.deps = deps

	var certFile, keyFile string
	if cfg.Server.TLS != nil {
		certFile = cfg.Server.TLS.CertFile
		keyFile = cfg.Server.TLS.KeyFile
	}
	server, err := gateway.New(gateway.Config{
		ListenAddr: cfg.Server.ListenAddr,
		CertFile:   certFile,
		KeyFile:    keyFile,
		NewSession: a.newSession,
		Health:     health.New(health.BackendChecker(a.client)),
		Metrics:    a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: gateway: %w", err)
	}
	a.server = server

	return a, nil
}

// Run serves the gateway until ctx is cancelled, then shuts it down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("gateway listening", "addr", a.cfg.Server.ListenAddr)
		return a.server.Run(gctx)
	})
	return g.Wait()
}

// Reload rebuilds the session dependencies from a new config. Only the
// hot-reloadable parts take effect: command tables, matcher tuning, speech
// settings, and timers. Sessions created after Reload use the new values;
// listen address and backend URL changes require a restart.
func (a *App) Reload(cfg *config.Config) error {
	deps, err := buildSessionDeps(cfg, a.client, a.metrics)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.deps = deps
	a.mu.Unlock()
	slog.Info("session dependencies rebuilt from new config")
	return nil
}

// newSession is the gateway's session factory.
func (a *App) newSession(emit gateway.Emitter, lang string) gateway.Session {
	a.mu.RLock()
	deps := a.deps
	a.mu.RUnlock()
	return NewWidgetSession(emit, lang, deps)
}

// buildSessionDeps assembles the shared session dependencies from the
// config: matcher, command tables, localization bundle, and voice policy.
func buildSessionDeps(cfg *config.Config, client *backend.Client, metrics *observe.Metrics) (SessionDeps, error) {
	var matcherOpts []command.Option
	if cfg.Matcher.Threshold > 0 {
		matcherOpts = append(matcherOpts, command.WithThreshold(cfg.Matcher.Threshold))
	}
	if cfg.Matcher.SignificantTokenLength > 0 {
		matcherOpts = append(matcherOpts, command.WithSignificantTokenLength(cfg.Matcher.SignificantTokenLength))
	}
	if cfg.Matcher.DisableSubstringFallback {
		matcherOpts = append(matcherOpts, command.WithoutSubstringFallback())
	}
	if cfg.Matcher.PhoneticTolerance > 0 {
		matcherOpts = append(matcherOpts, command.WithPhoneticTolerance(cfg.Matcher.PhoneticTolerance))
	}
	matcher := command.NewMatcher(matcherOpts...)

	navigation := command.DefaultNavigation()
	if len(cfg.Commands.Navigation) > 0 {
		navigation = command.NewTable("navigation", cfg.Commands.Navigation)
	}
	questions := command.DefaultQuestions()
	if len(cfg.Commands.Questions) > 0 {
		questions = command.NewTable("questions", cfg.Commands.Questions)
	}

	bundle := i18n.Default()
	if cfg.I18n.BundlePath != "" {
		b, err := i18n.Load(cfg.I18n.BundlePath)
		if err != nil {
			return SessionDeps{}, fmt.Errorf("app: i18n bundle: %w", err)
		}
		bundle = b
	}

	policy := speech.NewNamePreferencePolicy()
	if len(cfg.Speech.FemaleVoiceHints) > 0 {
		policy.FemaleHints = cfg.Speech.FemaleVoiceHints
	}
	if len(cfg.Speech.MaleVoiceHints) > 0 {
		policy.MaleHints = cfg.Speech.MaleVoiceHints
	}

	lang := cfg.I18n.DefaultLanguage
	if lang == "" {
		lang = bundle.DefaultLanguage()
	}

	var journal *feedback.FileStore
	if cfg.Feedback.JournalPath != "" {
		journal = feedback.NewFileStore(cfg.Feedback.JournalPath)
	}

	return SessionDeps{
		Backend:      client,
		Processor:    voice.New(matcher, questions, navigation, bundle),
		Bundle:       bundle,
		Policy:       policy,
		Metrics:      metrics,
		Journal:      journal,
		Lang:         lang,
		SpeakReplies: cfg.Speech.SpeakReplies,
		Timers:       cfg.Timers,
	}, nil
}
