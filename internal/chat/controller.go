// Package chat implements the conversation controller: it owns the
// append-only message list, submits user text to the backend, normalizes
// replies into messages, and hands each reply's feedback session id and
// spoken text to its collaborators.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aulavoz/aulavoz/internal/backend"
	"github.com/aulavoz/aulavoz/internal/i18n"
	"github.com/aulavoz/aulavoz/internal/speech"
)

// Message is one entry in the conversation. Messages are immutable once
// appended; the list only ever grows, except for a whole-list clear.
type Message struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	FromUser  bool              `json:"from_user"`
	Timestamp time.Time         `json:"timestamp"`
	QRCodes   map[string]string `json:"qr_codes,omitempty"`
	HasQR     bool              `json:"has_qr,omitempty"`
	IsError   bool              `json:"is_error,omitempty"`

	// FeedbackSessionID links an assistant message to its feedback
	// session, when the backend opened one.
	FeedbackSessionID string `json:"feedback_session_id,omitempty"`
}

// Chatter is the backend surface the controller needs. *backend.Client
// implements it.
type Chatter interface {
	Chat(ctx context.Context, text string) (*backend.ChatReply, error)
}

// Config configures a [Controller].
type Config struct {
	// Chatter sends messages to the backend. Required.
	Chatter Chatter

	// Bundle localizes the inline error message. Defaults to the built-in
	// bundle.
	Bundle *i18n.Bundle

	// Lang is the UI language for localized strings and spoken replies.
	// Defaults to the bundle's default language.
	Lang string

	// Speaker reads assistant replies aloud when SpeakReplies is on. May
	// be nil.
	Speaker *speech.Speaker

	// SpeakReplies enables text-to-speech for assistant replies.
	SpeakReplies bool

	// OnMessage is called for every appended message, user and assistant
	// alike. May be nil.
	OnMessage func(Message)

	// OnFeedbackSession is called with the feedback session id of each
	// assistant reply that carries one. May be nil.
	OnFeedbackSession func(id string)
}

// Controller drives one conversation. All methods are safe for concurrent
// use. At most one backend request is in flight; sending while a request
// is pending cancels the pending one first.
type Controller struct {
	chatter           Chatter
	bundle            *i18n.Bundle
	lang              string
	speaker           *speech.Speaker
	speakReplies      bool
	onMessage         func(Message)
	onFeedbackSession func(string)

	mu       sync.Mutex
	messages []Message
	cancel   context.CancelFunc
	reqGen   uint64
}

// NewController creates a Controller from cfg.
func NewController(cfg Config) *Controller {
	bundle := cfg.Bundle
	if bundle == nil {
		bundle = i18n.Default()
	}
	lang := cfg.Lang
	if lang == "" {
		lang = bundle.DefaultLanguage()
	}
	return &Controller{
		chatter:           cfg.Chatter,
		bundle:            bundle,
		lang:              lang,
		speaker:           cfg.Speaker,
		speakReplies:      cfg.SpeakReplies,
		onMessage:         cfg.OnMessage,
		onFeedbackSession: cfg.OnFeedbackSession,
	}
}

// Send submits text to the backend and appends both the user message and
// the assistant reply (or a localized inline error) to the conversation.
// It blocks until the reply arrives, the request fails, or the request is
// aborted via [Controller.StopGeneration] or ctx. An abort appends nothing
// beyond the user message and returns nil.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	reqCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.reqGen++
	gen := c.reqGen
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		// A later Send may have superseded this one, in which case
		// c.cancel belongs to that request and must stay armed.
		if c.reqGen == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
	}()

	c.append(Message{
		ID:        uuid.NewString(),
		Text:      text,
		FromUser:  true,
		Timestamp: time.Now().UTC(),
	})

	reply, err := c.chatter.Chat(reqCtx, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Debug("chat: request aborted", "text_len", len(text))
			return nil
		}
		slog.Error("chat: backend request failed", "err", err)
		c.append(Message{
			ID:        uuid.NewString(),
			Text:      c.bundle.MustResolve(c.lang, i18n.KeyChatError),
			Timestamp: time.Now().UTC(),
			IsError:   true,
		})
		return err
	}

	display := speech.CleanDisplayText(reply.Text)
	msg := Message{
		ID:                uuid.NewString(),
		Text:              display,
		Timestamp:         time.Now().UTC(),
		QRCodes:           reply.QRCodes,
		HasQR:             reply.HasQR,
		FeedbackSessionID: reply.FeedbackSessionID,
	}
	c.append(msg)

	if reply.FeedbackSessionID != "" && c.onFeedbackSession != nil {
		c.onFeedbackSession(reply.FeedbackSessionID)
	}

	c.mu.Lock()
	speak := c.speakReplies
	c.mu.Unlock()
	if speak && c.speaker != nil {
		if err := c.speaker.Speak(ctx, display, c.lang); err != nil {
			slog.Warn("chat: speaking reply failed", "err", err)
		}
	}
	return nil
}

// StopGeneration aborts the in-flight backend request, if any.
func (c *Controller) StopGeneration() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SetSpeakReplies toggles text-to-speech for subsequent replies.
func (c *Controller) SetSpeakReplies(on bool) {
	c.mu.Lock()
	c.speakReplies = on
	c.mu.Unlock()
}

// Messages returns a copy of the conversation in order.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Clear replaces the whole conversation with an empty one. The in-flight
// request, if any, is aborted.
func (c *Controller) Clear() {
	c.StopGeneration()
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
}

// append adds msg to the list and notifies the owner.
func (c *Controller) append(msg Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	if c.onMessage != nil {
		c.onMessage(msg)
	}
}
