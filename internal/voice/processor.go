// Package voice implements the voice-command processor: it takes one
// finalized speech transcript and resolves it to exactly one outcome — a
// canned question to ask, a route to navigate to, or no match.
//
// The processor is a pure function of the transcript and the two command
// tables; navigation, chat submission, and any other side effects belong to
// the caller.
package voice

import (
	"log/slog"
	"strings"

	"github.com/aulavoz/aulavoz/internal/command"
	"github.com/aulavoz/aulavoz/internal/i18n"
)

// OutcomeKind discriminates the result of processing a transcript.
type OutcomeKind int

const (
	// KindNoMatch means no table entry matched; the caller shows the
	// localized no-results message.
	KindNoMatch OutcomeKind = iota

	// KindAskQuestion means the transcript resolved to a canned question
	// that should be placed in the chat input and sent.
	KindAskQuestion

	// KindNavigate means the transcript resolved to a page route.
	KindNavigate
)

// String returns the outcome kind's wire/log name.
func (k OutcomeKind) String() string {
	switch k {
	case KindAskQuestion:
		return "ask_question"
	case KindNavigate:
		return "navigate"
	default:
		return "no_match"
	}
}

// Outcome is the single result of processing one transcript.
type Outcome struct {
	Kind OutcomeKind

	// Question is the localized question text when Kind is KindAskQuestion.
	Question string

	// AutoSend reports whether the question should be submitted immediately
	// rather than just pre-filled. Always true for matched questions.
	AutoSend bool

	// Route is the navigation target when Kind is KindNavigate.
	Route string

	// MatchedPhrase is the table phrase that won, for logging.
	MatchedPhrase string

	// Table is the name of the table that won, for metrics. Empty when
	// nothing matched.
	Table string

	// Tier is the matcher tier that produced the result.
	Tier command.Tier
}

// Processor resolves transcripts against the question and navigation tables.
// The question table is consulted first: asking is the primary use case, so
// a phrase that plausibly matches both tables resolves as a question.
//
// Processor is read-only after construction and safe for concurrent use.
type Processor struct {
	matcher    *command.Matcher
	questions  *command.Table
	navigation *command.Table
	bundle     *i18n.Bundle
}

// New creates a Processor over the given tables and localization bundle.
// A nil matcher gets the default tier configuration.
func New(matcher *command.Matcher, questions, navigation *command.Table, bundle *i18n.Bundle) *Processor {
	if matcher == nil {
		matcher = command.NewMatcher()
	}
	if bundle == nil {
		bundle = i18n.Default()
	}
	return &Processor{
		matcher:    matcher,
		questions:  questions,
		navigation: navigation,
		bundle:     bundle,
	}
}

// Process resolves transcript to one outcome. lang selects the language used
// to render a matched question key. Blank transcripts yield KindNoMatch.
func (p *Processor) Process(transcript, lang string) Outcome {
	normalized := strings.ToLower(strings.TrimSpace(transcript))
	if normalized == "" {
		return Outcome{Kind: KindNoMatch, Tier: command.TierNone}
	}

	if e, tier, ok := p.matcher.MatchTier(normalized, p.questions); ok {
		text, found := p.bundle.Resolve(lang, e.Action)
		if !found {
			// A question phrase whose key has no translation is a config
			// defect; log it and fall through to navigation rather than
			// sending a raw key into the chat.
			slog.Warn("voice: matched question key has no translation",
				"phrase", e.Phrase,
				"key", e.Action,
				"lang", lang,
			)
		} else {
			return Outcome{
				Kind:          KindAskQuestion,
				Question:      text,
				AutoSend:      true,
				MatchedPhrase: e.Phrase,
				Table:         p.questions.Name(),
				Tier:          tier,
			}
		}
	}

	if e, tier, ok := p.matcher.MatchTier(normalized, p.navigation); ok {
		return Outcome{
			Kind:          KindNavigate,
			Route:         e.Action,
			MatchedPhrase: e.Phrase,
			Table:         p.navigation.Name(),
			Tier:          tier,
		}
	}

	return Outcome{Kind: KindNoMatch, Tier: command.TierNone}
}
