package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aulavoz/aulavoz/internal/sched"
)

// Recognition engine error codes as reported by the widget. These mirror
// the browser SpeechRecognition error names.
const (
	ErrCodeNotAllowed        = "not-allowed"
	ErrCodeServiceNotAllowed = "service-not-allowed"
	ErrCodeAudioCapture      = "audio-capture"
	ErrCodeNoSpeech          = "no-speech"
	ErrCodeNetwork           = "network"
	ErrCodeAborted           = "aborted"
)

// ErrRecognitionDisabled is returned by [Session.Start] after a permission
// or device error has permanently disabled recognition for this session.
var ErrRecognitionDisabled = errors.New("speech: recognition disabled for this session")

// StopReason explains why a recognition session stopped listening.
type StopReason string

const (
	StopUser     StopReason = "user"     // explicit stop
	StopSilence  StopReason = "silence"  // silence window elapsed
	StopDisabled StopReason = "disabled" // permission/device error
)

// timerRestart is the scheduler key for the restart backoff delay.
const timerRestart = "recognition_restart"

// Default lifecycle durations.
const (
	defaultSilenceWindow  = 30 * time.Second
	defaultRestartBackoff = 300 * time.Millisecond
)

// RecognizerControl is the session's handle on the remote recognition
// engine. For the gateway this sends start/stop frames to the widget; the
// mock subpackage implements it in-process for tests.
type RecognizerControl interface {
	// StartRecognition asks the engine to begin a continuous,
	// interim-enabled recognition stream.
	StartRecognition(ctx context.Context) error

	// StopRecognition asks the engine to stop streaming.
	StopRecognition(ctx context.Context) error
}

// SessionConfig configures a recognition [Session].
type SessionConfig struct {
	// Control drives the remote engine. Required.
	Control RecognizerControl

	// Scheduler owns the silence and restart timers. Required; share one
	// scheduler per widget session so teardown cancels everything at once.
	Scheduler *sched.Scheduler

	// SilenceWindow stops listening when no result arrives for this long.
	// Defaults to 30s if zero.
	SilenceWindow time.Duration

	// RestartBackoff delays the automatic restart after an unexpected
	// engine end, avoiding tight restart loops. Defaults to 300ms if zero.
	RestartBackoff time.Duration

	// OnInterim receives interim (provisional) text for live display.
	// Never dispatched further. May be nil.
	OnInterim func(text string)

	// OnFinal receives each newly finalized segment together with the
	// accumulated final transcript so far. May be nil.
	OnFinal func(segment, accumulated string)

	// OnStopped is called once each time the session stops listening,
	// with the reason. May be nil.
	OnStopped func(reason StopReason)
}

// Session implements the recognition-side lifecycle around the engine's
// event stream: it accumulates finalized segments across automatic engine
// restarts, cuts off after a silence window, restarts with a short backoff
// when the engine ends while the user still wants to listen, and disables
// itself permanently on permission or device errors.
//
// All methods are safe for concurrent use.
type Session struct {
	control        RecognizerControl
	scheduler      *sched.Scheduler
	silenceWindow  time.Duration
	restartBackoff time.Duration
	onInterim      func(string)
	onFinal        func(string, string)
	onStopped      func(StopReason)

	mu        sync.Mutex
	ctx       context.Context
	listening bool
	disabled  bool
	finalBuf  strings.Builder
}

// NewSession creates a Session from cfg, applying defaults for zero
// durations.
func NewSession(cfg SessionConfig) *Session {
	silence := cfg.SilenceWindow
	if silence <= 0 {
		silence = defaultSilenceWindow
	}
	backoff := cfg.RestartBackoff
	if backoff <= 0 {
		backoff = defaultRestartBackoff
	}
	return &Session{
		control:        cfg.Control,
		scheduler:      cfg.Scheduler,
		silenceWindow:  silence,
		restartBackoff: backoff,
		onInterim:      cfg.OnInterim,
		onFinal:        cfg.OnFinal,
		onStopped:      cfg.OnStopped,
	}
}

// Start begins listening. The accumulated final transcript is reset, the
// engine is started, and the silence timer armed. ctx scopes all engine
// calls made by the session, including automatic restarts. Returns
// [ErrRecognitionDisabled] once a permission or device error has occurred.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return ErrRecognitionDisabled
	}
	if s.listening {
		s.mu.Unlock()
		return nil
	}
	s.listening = true
	s.ctx = ctx
	s.finalBuf.Reset()
	s.mu.Unlock()

	if err := s.control.StartRecognition(ctx); err != nil {
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	if s.listening {
		s.armSilenceTimer()
	}
	s.mu.Unlock()
	return nil
}

// Stop ends listening on user request. Safe to call when not listening.
func (s *Session) Stop() {
	s.stop(StopUser)
}

// Listening reports whether the session currently wants the engine running.
func (s *Session) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Disabled reports whether a permission or device error has permanently
// disabled recognition for this session.
func (s *Session) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

// FinalTranscript returns the accumulated finalized text.
func (s *Session) FinalTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.finalBuf.String())
}

// HandleResult processes one transcript event from the engine. Interim text
// only feeds the live display; finalized segments are appended to the
// accumulated transcript and dispatched. Any result re-arms the silence
// timer.
func (s *Session) HandleResult(text string, isFinal bool) {
	s.mu.Lock()
	if !s.listening {
		s.mu.Unlock()
		return
	}
	var accumulated string
	if isFinal {
		segment := strings.TrimSpace(text)
		if segment != "" {
			if s.finalBuf.Len() > 0 {
				s.finalBuf.WriteByte(' ')
			}
			s.finalBuf.WriteString(segment)
		}
		accumulated = strings.TrimSpace(s.finalBuf.String())
	}
	// Arm before releasing the lock: a stop racing in after the listening
	// check would otherwise miss this timer when it cancels the session's
	// timers, leaving it pending on a stopped session.
	s.armSilenceTimer()
	s.mu.Unlock()

	if isFinal {
		if seg := strings.TrimSpace(text); seg != "" && s.onFinal != nil {
			s.onFinal(seg, accumulated)
		}
		return
	}
	if s.onInterim != nil {
		s.onInterim(text)
	}
}

// HandleError processes an engine error event. Permission and device errors
// disable the session permanently; everything else is logged and the
// session keeps going (the engine's end event drives the restart).
func (s *Session) HandleError(code string) {
	switch code {
	case ErrCodeNotAllowed, ErrCodeServiceNotAllowed, ErrCodeAudioCapture:
		slog.Warn("speech: recognition disabled", "code", code)
		s.mu.Lock()
		s.disabled = true
		s.mu.Unlock()
		s.stop(StopDisabled)
	default:
		slog.Debug("speech: recognition error, continuing", "code", code)
	}
}

// HandleEnd processes the engine's end event. While the session still wants
// to listen, the engine is restarted after the backoff delay; otherwise the
// end is final.
func (s *Session) HandleEnd() {
	s.mu.Lock()
	restart := s.listening && !s.disabled
	ctx := s.ctx
	s.mu.Unlock()
	if !restart {
		return
	}

	s.scheduler.Start(timerRestart, s.restartBackoff, func() {
		s.mu.Lock()
		stillListening := s.listening && !s.disabled
		s.mu.Unlock()
		if !stillListening {
			return
		}
		if err := s.control.StartRecognition(ctx); err != nil {
			slog.Warn("speech: recognition restart failed", "err", err)
			s.stop(StopUser)
		}
	})
}

// armSilenceTimer (re)starts the silence cutoff. Callers hold s.mu so the
// arm cannot race a concurrent stop past its listening check.
func (s *Session) armSilenceTimer() {
	s.scheduler.Start(sched.TimerSilence, s.silenceWindow, func() {
		s.stop(StopSilence)
	})
}

// stop clears the listening flag, cancels session timers, asks the engine
// to stop, and notifies the owner. Duplicate stops are ignored.
func (s *Session) stop(reason StopReason) {
	s.mu.Lock()
	if !s.listening {
		s.mu.Unlock()
		return
	}
	s.listening = false
	ctx := s.ctx
	s.mu.Unlock()

	s.scheduler.Stop(sched.TimerSilence)
	s.scheduler.Stop(timerRestart)

	if err := s.control.StopRecognition(ctx); err != nil {
		slog.Debug("speech: stop recognition", "err", err)
	}
	if s.onStopped != nil {
		s.onStopped(reason)
	}
}
