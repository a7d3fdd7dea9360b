// Package gateway exposes the AulaVoz service surface: a WebSocket endpoint
// speaking a small JSON frame protocol with browser widgets, plus plain HTTP
// routes for health probes and Prometheus metrics.
//
// The gateway is transport only. Per-connection conversation semantics live
// behind the [Session] interface; `internal/app` provides the implementation.
package gateway

import (
	"context"

	"github.com/aulavoz/aulavoz/internal/chat"
	"github.com/aulavoz/aulavoz/internal/speech"
)

// Client → server frame types.
const (
	ClientStartListening = "start_listening"
	ClientStopListening  = "stop_listening"
	ClientTranscript     = "transcript"
	ClientSpeechError    = "speech_error"
	ClientSpeechEnd      = "speech_end"
	ClientSpeakEnd       = "speak_end"
	ClientSpeakError     = "speak_error"
	ClientChat           = "chat"
	ClientStop           = "stop"
	ClientFeedback       = "feedback"
	ClientVoices         = "voices"
	ClientSetSpeak       = "set_speak_replies"
	ClientClear          = "clear"
)

// Server → client frame types.
const (
	ServerListening        = "listening"
	ServerTranscript       = "transcript"
	ServerOutcome          = "outcome"
	ServerMessage          = "message"
	ServerSpeak            = "speak"
	ServerCancelSpeak      = "cancel_speak"
	ServerStartRecognition = "start_recognition"
	ServerStopRecognition  = "stop_recognition"
	ServerFeedback         = "feedback"
	ServerNavigate         = "navigate"
	ServerError            = "error"
)

// Feedback answers carried by a [ClientFeedback] frame.
const (
	AnswerSatisfied   = "satisfied"
	AnswerUnsatisfied = "unsatisfied"
	AnswerDetails     = "details"
	AnswerDismiss     = "dismiss"
)

// ClientFrame is a message from the widget. Type selects which fields are
// meaningful; unrelated fields are left at their zero value.
type ClientFrame struct {
	Type string `json:"type"`

	// transcript (recognition result) and chat share Text.
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	// speech_error and speak_error carry the engine's error code.
	Code string `json:"code,omitempty"`

	// feedback
	Answer   string `json:"answer,omitempty"`
	Rating   *int   `json:"rating,omitempty"`
	Comments string `json:"comments,omitempty"`

	// voices carries the browser's synthesis voice catalog.
	Voices []speech.Voice `json:"voices,omitempty"`

	// set_speak_replies
	Enabled *bool `json:"enabled,omitempty"`
}

// OutcomePayload describes a voice-command match result.
type OutcomePayload struct {
	// Kind is "no_match", "ask_question", or "navigate".
	Kind string `json:"kind"`

	// Question is the localized question text for ask_question outcomes.
	Question string `json:"question,omitempty"`

	// AutoSend reports whether the gateway already submitted the question.
	AutoSend bool `json:"auto_send,omitempty"`

	// Route is the navigation target for navigate outcomes.
	Route string `json:"route,omitempty"`

	// Transcript is the final transcript the outcome was derived from.
	Transcript string `json:"transcript,omitempty"`
}

// FeedbackPayload mirrors the feedback machine state for the widget.
type FeedbackPayload struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// ServerFrame is a message to the widget. Type selects which fields are set.
type ServerFrame struct {
	Type string `json:"type"`

	// listening
	Active *bool `json:"active,omitempty"`

	// transcript: interim text plus the accumulated final transcript.
	Text        string `json:"text,omitempty"`
	Accumulated string `json:"accumulated,omitempty"`

	// outcome
	Outcome *OutcomePayload `json:"outcome,omitempty"`

	// message
	Message *chat.Message `json:"message,omitempty"`

	// speak
	Utterance *speech.Utterance `json:"utterance,omitempty"`

	// feedback
	Feedback *FeedbackPayload `json:"feedback,omitempty"`

	// navigate
	Route string `json:"route,omitempty"`

	// error
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Emitter delivers server frames to the widget. Implementations must be safe
// for concurrent use; session callbacks fire from timer and request
// goroutines.
type Emitter interface {
	Emit(ctx context.Context, f ServerFrame) error
}

// Session handles one widget's frames. The gateway calls HandleFrame from a
// single reader goroutine and Close exactly once when the connection ends.
type Session interface {
	HandleFrame(ctx context.Context, f ClientFrame) error
	Close()
}

// SessionFactory builds a session for a new connection. lang is the widget's
// requested UI language (may be empty).
type SessionFactory func(emit Emitter, lang string) Session
