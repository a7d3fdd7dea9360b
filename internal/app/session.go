package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aulavoz/aulavoz/internal/backend"
	"github.com/aulavoz/aulavoz/internal/chat"
	"github.com/aulavoz/aulavoz/internal/config"
	"github.com/aulavoz/aulavoz/internal/feedback"
	"github.com/aulavoz/aulavoz/internal/gateway"
	"github.com/aulavoz/aulavoz/internal/i18n"
	"github.com/aulavoz/aulavoz/internal/observe"
	"github.com/aulavoz/aulavoz/internal/sched"
	"github.com/aulavoz/aulavoz/internal/speech"
	"github.com/aulavoz/aulavoz/internal/voice"
)

// defaultRedirectRoute is where idle sessions are sent when the config does
// not name a route.
const defaultRedirectRoute = "/"

// SessionDeps bundles the shared dependencies a widget session is built
// from. The processor, bundle and policy are read-only and shared across
// sessions; everything stateful is created per session.
type SessionDeps struct {
	Backend   *backend.Client
	Processor *voice.Processor
	Bundle    *i18n.Bundle
	Policy    speech.Policy
	Metrics   *observe.Metrics

	// Journal optionally records submitted feedback locally. May be nil.
	Journal *feedback.FileStore

	// Lang is the fallback UI language for widgets that do not send one.
	Lang string

	// SpeakReplies is the initial text-to-speech toggle state.
	SpeakReplies bool

	// Timers carries the configured durations; zero values fall back to
	// each component's default.
	Timers config.TimersConfig
}

// WidgetSession wires one widget connection's conversation state: the chat
// controller, recognition session, speaker, feedback machine and timer
// scheduler. It implements [gateway.Session]; all server-to-widget traffic
// goes through the emitter it was built with.
type WidgetSession struct {
	emit    gateway.Emitter
	deps    SessionDeps
	lang    string
	ctx     context.Context
	cancel  context.CancelFunc
	sched   *sched.Scheduler
	speech  *speech.Session
	speaker *speech.Speaker
	chat    *chat.Controller
	machine *feedback.Machine
}

var _ gateway.Session = (*WidgetSession)(nil)

// NewWidgetSession builds a session emitting to emit. lang overrides the
// deps fallback language when non-empty.
func NewWidgetSession(emit gateway.Emitter, lang string, deps SessionDeps) *WidgetSession {
	if lang == "" {
		lang = deps.Lang
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &WidgetSession{
		emit:   emit,
		deps:   deps,
		lang:   lang,
		ctx:    ctx,
		cancel: cancel,
		sched:  sched.New(),
	}

	s.speaker = speech.NewSpeaker(&speakerOutput{s: s}, deps.Policy)

	s.speech = speech.NewSession(speech.SessionConfig{
		Control:        &recognizerControl{s: s},
		Scheduler:      s.sched,
		SilenceWindow:  deps.Timers.SilenceWindow,
		RestartBackoff: deps.Timers.RestartBackoff,
		OnInterim:      s.onInterim,
		OnFinal:        s.onFinal,
		OnStopped:      s.onStopped,
	})

	s.machine = feedback.NewMachine(feedback.Config{
		Submitter:    deps.Backend,
		Scheduler:    s.sched,
		AutoAccept:   deps.Timers.AutoAccept,
		DisplayDelay: deps.Timers.DisplayDelay,
		Journal:      deps.Journal,
		OnChange:     s.onFeedbackChange,
	})

	s.chat = chat.NewController(chat.Config{
		Chatter:           deps.Backend,
		Bundle:            deps.Bundle,
		Lang:              lang,
		Speaker:           s.speaker,
		SpeakReplies:      deps.SpeakReplies,
		OnMessage:         s.onMessage,
		OnFeedbackSession: s.machine.Begin,
	})

	s.touchInactivity()
	return s
}

// HandleFrame dispatches one widget frame. Any frame counts as activity for
// the inactivity redirect.
func (s *WidgetSession) HandleFrame(ctx context.Context, f gateway.ClientFrame) error {
	s.touchInactivity()

	switch f.Type {
	case gateway.ClientStartListening:
		return s.startListening(ctx)

	case gateway.ClientStopListening:
		s.speech.Stop()
		return nil

	case gateway.ClientTranscript:
		s.speech.HandleResult(f.Text, f.Final)
		return nil

	case gateway.ClientSpeechError:
		s.speech.HandleError(f.Code)
		return nil

	case gateway.ClientSpeechEnd:
		s.speech.HandleEnd()
		return nil

	case gateway.ClientSpeakEnd:
		s.speaker.HandleEnd()
		return nil

	case gateway.ClientSpeakError:
		s.speaker.HandleError(f.Code)
		return nil

	case gateway.ClientVoices:
		s.speaker.SetCatalog(f.Voices)
		return nil

	case gateway.ClientChat:
		go s.send(f.Text)
		return nil

	case gateway.ClientStop:
		s.chat.StopGeneration()
		return nil

	case gateway.ClientClear:
		s.chat.Clear()
		return nil

	case gateway.ClientSetSpeak:
		if f.Enabled != nil {
			s.chat.SetSpeakReplies(*f.Enabled)
		}
		return nil

	case gateway.ClientFeedback:
		return s.handleFeedback(f)

	default:
		return s.emit.Emit(ctx, gateway.ServerFrame{
			Type:  gateway.ServerError,
			Code:  "unknown_frame",
			Error: "unknown frame type " + f.Type,
		})
	}
}

// Close tears the session down: every pending timer is cancelled, in-flight
// requests are aborted, and no further frames are emitted.
func (s *WidgetSession) Close() {
	s.speech.Stop()
	s.cancel()
	s.sched.StopAll()
	s.chat.StopGeneration()
}

// startListening starts the recognition session and reports the new state
// to the widget. A permanently disabled session produces an error frame
// instead.
func (s *WidgetSession) startListening(ctx context.Context) error {
	wasListening := s.speech.Listening()
	err := s.speech.Start(ctx)
	if errors.Is(err, speech.ErrRecognitionDisabled) {
		return s.emit.Emit(ctx, gateway.ServerFrame{
			Type:  gateway.ServerError,
			Code:  "speech_disabled",
			Error: "speech recognition is disabled for this session",
		})
	}
	if err != nil {
		return err
	}
	if !wasListening {
		s.deps.Metrics.ListeningSessions.Add(ctx, 1)
	}
	active := true
	return s.emit.Emit(ctx, gateway.ServerFrame{Type: gateway.ServerListening, Active: &active})
}

// send runs one chat round trip and records its duration. Runs on its own
// goroutine so the frame reader keeps draining stop/transcript frames while
// the backend call is in flight.
func (s *WidgetSession) send(text string) {
	start := time.Now()
	err := s.chat.Send(s.ctx, text)
	s.deps.Metrics.ChatDuration.Record(s.ctx, time.Since(start).Seconds())
	if err != nil {
		s.deps.Metrics.RecordBackendError(s.ctx, "chat")
	}
}

// handleFeedback routes a feedback answer into the state machine. Submission
// runs on its own goroutine for the same reason as send.
func (s *WidgetSession) handleFeedback(f gateway.ClientFrame) error {
	switch f.Answer {
	case gateway.AnswerSatisfied:
		go func() {
			if err := s.machine.Satisfied(s.ctx); err != nil {
				s.deps.Metrics.RecordFeedbackSubmission(s.ctx, "quick", "error")
				return
			}
			s.deps.Metrics.RecordFeedbackSubmission(s.ctx, "quick", "ok")
		}()
		return nil

	case gateway.AnswerUnsatisfied:
		return s.machine.Unsatisfied()

	case gateway.AnswerDetails:
		go func() {
			if err := s.machine.SubmitDetails(s.ctx, f.Rating, f.Comments); err != nil {
				s.deps.Metrics.RecordFeedbackSubmission(s.ctx, "detailed", "error")
				return
			}
			s.deps.Metrics.RecordFeedbackSubmission(s.ctx, "detailed", "ok")
		}()
		return nil

	case gateway.AnswerDismiss:
		s.machine.Dismiss()
		return nil

	default:
		return s.emit.Emit(s.ctx, gateway.ServerFrame{
			Type:  gateway.ServerError,
			Code:  "bad_feedback_answer",
			Error: "unknown feedback answer " + f.Answer,
		})
	}
}

// onInterim forwards provisional recognition text for live display.
func (s *WidgetSession) onInterim(text string) {
	_ = s.emit.Emit(s.ctx, gateway.ServerFrame{
		Type:        gateway.ServerTranscript,
		Text:        text,
		Accumulated: s.speech.FinalTranscript(),
	})
}

// onFinal resolves each finalized segment as a voice command.
func (s *WidgetSession) onFinal(segment, accumulated string) {
	_ = s.emit.Emit(s.ctx, gateway.ServerFrame{
		Type:        gateway.ServerTranscript,
		Accumulated: accumulated,
	})

	out := s.deps.Processor.Process(segment, s.lang)
	table := out.Table
	if table == "" {
		table = "none"
	}
	s.deps.Metrics.RecordMatchOutcome(s.ctx, table, string(out.Tier))

	payload := &gateway.OutcomePayload{
		Kind:       out.Kind.String(),
		Question:   out.Question,
		AutoSend:   out.AutoSend,
		Route:      out.Route,
		Transcript: segment,
	}
	_ = s.emit.Emit(s.ctx, gateway.ServerFrame{Type: gateway.ServerOutcome, Outcome: payload})

	switch out.Kind {
	case voice.KindAskQuestion:
		slog.Debug("voice command resolved to question", "phrase", out.MatchedPhrase, "tier", out.Tier)
		if out.AutoSend {
			go s.send(out.Question)
		}

	case voice.KindNavigate:
		slog.Debug("voice command resolved to route", "phrase", out.MatchedPhrase, "route", out.Route, "tier", out.Tier)
		s.speech.Stop()
		_ = s.emit.Emit(s.ctx, gateway.ServerFrame{Type: gateway.ServerNavigate, Route: out.Route})
	}
}

// onStopped reports the listening state change to the widget.
func (s *WidgetSession) onStopped(reason speech.StopReason) {
	s.deps.Metrics.ListeningSessions.Add(s.ctx, -1)
	active := false
	_ = s.emit.Emit(s.ctx, gateway.ServerFrame{Type: gateway.ServerListening, Active: &active})
	slog.Debug("recognition stopped", "reason", reason)
}

// onMessage forwards an appended chat message to the widget.
func (s *WidgetSession) onMessage(m chat.Message) {
	_ = s.emit.Emit(s.ctx, gateway.ServerFrame{Type: gateway.ServerMessage, Message: &m})
}

// onFeedbackChange mirrors the feedback machine state to the widget.
func (s *WidgetSession) onFeedbackChange(snap feedback.Snapshot) {
	_ = s.emit.Emit(s.ctx, gateway.ServerFrame{
		Type: gateway.ServerFeedback,
		Feedback: &gateway.FeedbackPayload{
			SessionID: snap.SessionID,
			State:     snap.State.String(),
		},
	})
}

// touchInactivity re-arms the idle redirect timer. Disabled when the
// configured window is zero.
func (s *WidgetSession) touchInactivity() {
	after := s.deps.Timers.InactivityRedirect.After
	if after <= 0 {
		return
	}
	route := s.deps.Timers.InactivityRedirect.Route
	if route == "" {
		route = defaultRedirectRoute
	}
	s.sched.Start(sched.TimerInactivity, after, func() {
		slog.Info("idle session redirected", "route", route)
		_ = s.emit.Emit(s.ctx, gateway.ServerFrame{Type: gateway.ServerNavigate, Route: route})
	})
}

// recognizerControl drives the browser's recognition engine over the socket.
type recognizerControl struct {
	s *WidgetSession
}

var _ speech.RecognizerControl = (*recognizerControl)(nil)

func (r *recognizerControl) StartRecognition(ctx context.Context) error {
	return r.s.emit.Emit(ctx, gateway.ServerFrame{Type: gateway.ServerStartRecognition})
}

func (r *recognizerControl) StopRecognition(ctx context.Context) error {
	return r.s.emit.Emit(ctx, gateway.ServerFrame{Type: gateway.ServerStopRecognition})
}

// speakerOutput drives the browser's synthesis engine over the socket.
type speakerOutput struct {
	s *WidgetSession
}

var _ speech.SynthesisOutput = (*speakerOutput)(nil)

func (o *speakerOutput) Speak(ctx context.Context, u speech.Utterance) error {
	o.s.deps.Metrics.Utterances.Add(ctx, 1)
	return o.s.emit.Emit(ctx, gateway.ServerFrame{Type: gateway.ServerSpeak, Utterance: &u})
}

func (o *speakerOutput) Cancel(ctx context.Context) error {
	return o.s.emit.Emit(ctx, gateway.ServerFrame{Type: gateway.ServerCancelSpeak})
}
