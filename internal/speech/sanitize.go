// Package speech holds the spoken-interaction logic of the gateway: the
// recognition session lifecycle (final-transcript accumulation, silence
// cutoff, restart with backoff), text sanitization for synthesis and
// display, synthesis voice selection, and the single-utterance speaker.
//
// The browser's recognition and synthesis engines themselves are black
// boxes; this package only implements the decision logic around their
// event streams.
package speech

import (
	"regexp"
	"strings"
	"unicode"
)

// Sanitization regexes. RE2 has no backreferences, so repeated-character
// runs are handled by collapseRuns below instead of patterns.
var (
	urlRe      = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emailRe    = regexp.MustCompile(`\b[^\s@]+@[^\s@]+\.[^\s@]+\b`)
	emphasisRe = regexp.MustCompile("[*_~`#]+")
	// emojiRe covers the emoji and pictograph blocks plus the variation
	// selector and zero-width joiner used to compose them.
	emojiRe = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}]|[\x{2600}-\x{27BF}]|[\x{2B00}-\x{2BFF}]|[\x{2190}-\x{21FF}]|\x{FE0F}|\x{200D}`)
)

// SanitizeForSpeech prepares assistant text for the synthesis engine:
// markdown emphasis markers, emoji, URLs, and email-like tokens are removed
// entirely, and runs of three or more repeated punctuation, space, or
// newline characters are collapsed to a single occurrence. The result is
// readable prose; an empty result means there is nothing worth speaking.
func SanitizeForSpeech(text string) string {
	s := urlRe.ReplaceAllString(text, "")
	s = emailRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "")
	s = emojiRe.ReplaceAllString(s, "")
	s = collapseRuns(s, 3, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || r == ' ' || r == '\n' || r == '\t'
	})
	return strings.TrimSpace(s)
}

// Display-cleanup thresholds. The display sanitizer is deliberately more
// conservative than the speech one: it only rewrites text when the backend
// produced something visibly malformed.
const (
	displayAnyRun   = 6 // 6+ repeats of any character
	displayPunctRun = 5 // 5+ repeats of a punctuation character
	ellipsisRun     = 4 // 4+ dots counts as a runaway ellipsis
	commaRun        = 3 // 3+ commas in a row
)

// NeedsDisplayCleanup reports whether text trips any of the malformed-output
// detectors: a long run of one character, a shorter run of one punctuation
// character, or runaway ellipses/commas.
func NeedsDisplayCleanup(text string) bool {
	var (
		prev     rune
		runLen   int
		dotRun   int
		commaLen int
	)
	for _, r := range text {
		if r == prev {
			runLen++
		} else {
			prev = r
			runLen = 1
		}
		if runLen >= displayAnyRun {
			return true
		}
		if runLen >= displayPunctRun && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
			return true
		}

		if r == '.' {
			dotRun++
			if dotRun >= ellipsisRun {
				return true
			}
		} else if !unicode.IsSpace(r) {
			dotRun = 0
		}
		if r == ',' {
			commaLen++
			if commaLen >= commaRun {
				return true
			}
		} else if !unicode.IsSpace(r) {
			commaLen = 0
		}
	}
	return false
}

// CleanDisplayText returns text unchanged unless [NeedsDisplayCleanup]
// detects malformed repetition, in which case repeated-character runs are
// collapsed: punctuation runs to a single character (a runaway ellipsis
// becomes "..."), other runs to the display threshold's worth of context.
func CleanDisplayText(text string) string {
	if !NeedsDisplayCleanup(text) {
		return text
	}
	s := collapseEllipses(text)
	s = collapseRuns(s, displayPunctRun, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	s = collapseRuns(s, displayAnyRun, func(r rune) bool { return true })
	return strings.TrimSpace(s)
}

// collapseRuns reduces any run of minRun or more identical runes matching
// class to a single occurrence. Runs below minRun pass through untouched.
func collapseRuns(s string, minRun int, class func(rune) bool) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(runes) {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		runLen := j - i
		if runLen >= minRun && class(runes[i]) {
			b.WriteRune(runes[i])
		} else {
			for k := i; k < j; k++ {
				b.WriteRune(runes[k])
			}
		}
		i = j
	}
	return b.String()
}

// collapseEllipses rewrites runs of four or more dots (optionally spaced) to
// a plain "..." and runs of three or more commas to a single comma.
var (
	longEllipsisRe = regexp.MustCompile(`(?:\.[ \t]*){4,}`)
	longCommaRe    = regexp.MustCompile(`(?:,[ \t]*){3,}`)
)

func collapseEllipses(s string) string {
	s = longEllipsisRe.ReplaceAllString(s, "...")
	return longCommaRe.ReplaceAllString(s, ", ")
}
