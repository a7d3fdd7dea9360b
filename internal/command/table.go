// Package command defines the voice-command tables and the tiered fuzzy
// matcher that resolves free-form speech transcripts against them.
//
// Two tables exist per deployment: a navigation table mapping spoken phrases
// to route paths ("inicio" → "/") and a question table mapping phrases to
// localized question keys ("renovar tne" → "question.renew_tne"). Tables are
// ordered: the matcher's tie-breaking rules depend on iteration order, so
// entries are kept in a slice rather than a map and matched in insertion
// order.
package command

import "strings"

// Entry pairs a spoken phrase with the action it resolves to. For navigation
// tables Action is a route path; for question tables it is a localization key.
type Entry struct {
	Phrase string `yaml:"phrase"`
	Action string `yaml:"action"`
}

// Table is an ordered, immutable collection of command entries. Phrases are
// normalized (lowercased and trimmed) at construction so matching never has
// to re-normalize table data.
//
// Table is read-only after construction and safe for concurrent use.
type Table struct {
	name    string
	entries []Entry
}

// NewTable builds a Table from the given entries, preserving their order.
// Phrases are lowercased and trimmed; entries with an empty phrase or action
// are dropped. When the same normalized phrase appears twice, the first
// occurrence wins and later ones are dropped, keeping match results stable.
func NewTable(name string, entries []Entry) *Table {
	seen := make(map[string]struct{}, len(entries))
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		phrase := strings.ToLower(strings.TrimSpace(e.Phrase))
		if phrase == "" || strings.TrimSpace(e.Action) == "" {
			continue
		}
		if _, dup := seen[phrase]; dup {
			continue
		}
		seen[phrase] = struct{}{}
		kept = append(kept, Entry{Phrase: phrase, Action: e.Action})
	}
	return &Table{name: name, entries: kept}
}

// Name returns the table's label, used in logs and metrics.
func (t *Table) Name() string { return t.name }

// Len returns the number of entries in the table.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of the table's entries in iteration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup returns the entry whose normalized phrase equals the normalized
// input, if any. This is the matcher's exact tier, exposed separately for
// callers that must not fall through to fuzzy matching.
func (t *Table) Lookup(phrase string) (Entry, bool) {
	want := strings.ToLower(strings.TrimSpace(phrase))
	for _, e := range t.entries {
		if e.Phrase == want {
			return e, true
		}
	}
	return Entry{}, false
}
