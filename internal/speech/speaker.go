package speech

import (
	"context"
	"log/slog"
	"sync"
)

// SynthesisOutput is the speaker's handle on the remote synthesis engine.
// For the gateway this sends speak/cancel frames to the widget.
type SynthesisOutput interface {
	// Speak asks the engine to read utterance aloud.
	Speak(ctx context.Context, u Utterance) error

	// Cancel asks the engine to stop any in-flight utterance.
	Cancel(ctx context.Context) error
}

// Utterance is one sanitized piece of text to synthesize, with the voice
// chosen by the selection policy. VoiceName is empty when the policy defers
// to the engine default.
type Utterance struct {
	Text      string `json:"text"`
	Lang      string `json:"lang"`
	VoiceName string `json:"voice_name,omitempty"`
}

// Speaker enforces the single-utterance rule over the synthesis engine:
// starting a new utterance unconditionally cancels any in-flight one. Text
// passes through [SanitizeForSpeech] before it is sent; utterances that
// sanitize to nothing are dropped. All methods are safe for concurrent use.
type Speaker struct {
	out    SynthesisOutput
	policy Policy

	mu       sync.Mutex
	catalog  []Voice
	speaking bool
}

// NewSpeaker creates a Speaker writing to out. A nil policy defaults to
// [NewNamePreferencePolicy].
func NewSpeaker(out SynthesisOutput, policy Policy) *Speaker {
	if policy == nil {
		policy = NewNamePreferencePolicy()
	}
	return &Speaker{out: out, policy: policy}
}

// SetCatalog replaces the known voice catalog. The widget reports its
// catalog on connect and again whenever the engine's voice list changes.
func (s *Speaker) SetCatalog(voices []Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = make([]Voice, len(voices))
	copy(s.catalog, voices)
}

// Speaking reports whether an utterance is believed to be in flight.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Speak sanitizes text and sends it to the engine in lang, cancelling any
// in-flight utterance first. Text that sanitizes to nothing is silently
// dropped and cancels nothing.
func (s *Speaker) Speak(ctx context.Context, text, lang string) error {
	clean := SanitizeForSpeech(text)
	if clean == "" {
		return nil
	}

	s.mu.Lock()
	wasSpeaking := s.speaking
	catalog := s.catalog
	s.mu.Unlock()

	if wasSpeaking {
		if err := s.out.Cancel(ctx); err != nil {
			slog.Debug("speech: cancel in-flight utterance", "err", err)
		}
	}

	u := Utterance{Text: clean, Lang: lang}
	if v, ok := s.policy.Select(catalog, lang); ok {
		u.VoiceName = v.Name
	}

	if err := s.out.Speak(ctx, u); err != nil {
		return err
	}
	s.mu.Lock()
	s.speaking = true
	s.mu.Unlock()
	return nil
}

// Cancel stops any in-flight utterance and clears the speaking state.
func (s *Speaker) Cancel(ctx context.Context) error {
	s.mu.Lock()
	wasSpeaking := s.speaking
	s.speaking = false
	s.mu.Unlock()
	if !wasSpeaking {
		return nil
	}
	return s.out.Cancel(ctx)
}

// HandleEnd records that the engine finished the current utterance.
func (s *Speaker) HandleEnd() {
	s.mu.Lock()
	s.speaking = false
	s.mu.Unlock()
}

// HandleError records a synthesis error: the reading state is reset and the
// error logged. Synthesis errors never surface to the user.
func (s *Speaker) HandleError(code string) {
	slog.Warn("speech: synthesis error", "code", code)
	s.mu.Lock()
	s.speaking = false
	s.mu.Unlock()
}
