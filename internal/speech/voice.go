package speech

import "strings"

// Voice describes one synthesis voice reported by the widget's browser.
// The catalog is platform-dependent and uncontrolled; selection must cope
// with anything from two generic voices to dozens of named ones.
type Voice struct {
	// Name is the engine's display name (e.g. "Google español", "Paulina").
	Name string `json:"name"`

	// Lang is the BCP-47 language tag (e.g. "es-CL", "en-US").
	Lang string `json:"lang"`

	// Default marks the engine's own default voice.
	Default bool `json:"default"`
}

// Policy decides which voice to use for a given UI language. Implementations
// receive the full catalog and the normalized two-letter language code.
// Returning false means no voice suits the language and the caller should
// let the engine use its default.
type Policy interface {
	Select(voices []Voice, lang string) (Voice, bool)
}

// PolicyFunc adapts a function to the [Policy] interface.
type PolicyFunc func(voices []Voice, lang string) (Voice, bool)

// Select calls f.
func (f PolicyFunc) Select(voices []Voice, lang string) (Voice, bool) {
	return f(voices, lang)
}

// Default name-substring hint lists for [NamePreferencePolicy]. The lists
// are a heuristic over an uncontrolled catalog and are expected to be
// overridden per deployment when they misfire.
var (
	DefaultFemaleHints = []string{
		"female", "mujer", "femenina",
		"paulina", "monica", "mónica", "lucia", "lucía", "esperanza",
		"sofia", "sofía", "helena", "sabina", "zira", "samantha", "victoria",
	}
	DefaultMaleHints = []string{
		"male", "hombre", "masculino",
		"diego", "jorge", "juan", "carlos", "pablo", "raul", "raúl",
		"daniel", "david", "fred", "alex",
	}
)

// NamePreferencePolicy selects voices by name heuristics: among voices of
// the requested language it prefers one whose name matches a female hint
// and no male hint, then any voice not matching a male hint, then the first
// voice of the language. Hint matching is a case-insensitive substring test.
type NamePreferencePolicy struct {
	FemaleHints []string
	MaleHints   []string
}

// NewNamePreferencePolicy returns a NamePreferencePolicy with the default
// hint lists.
func NewNamePreferencePolicy() *NamePreferencePolicy {
	return &NamePreferencePolicy{
		FemaleHints: DefaultFemaleHints,
		MaleHints:   DefaultMaleHints,
	}
}

// Select implements [Policy].
func (p *NamePreferencePolicy) Select(voices []Voice, lang string) (Voice, bool) {
	lang = normalizeLang(lang)
	candidates := make([]Voice, 0, len(voices))
	for _, v := range voices {
		if normalizeLang(v.Lang) == lang {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return Voice{}, false
	}

	for _, v := range candidates {
		if matchesAny(v.Name, p.FemaleHints) && !matchesAny(v.Name, p.MaleHints) {
			return v, true
		}
	}
	for _, v := range candidates {
		if !matchesAny(v.Name, p.MaleHints) {
			return v, true
		}
	}
	return candidates[0], true
}

// EngineDefaultPolicy ignores the catalog and always defers to the engine's
// own default voice. Useful on platforms where the name heuristics misfire.
func EngineDefaultPolicy() Policy {
	return PolicyFunc(func([]Voice, string) (Voice, bool) {
		return Voice{}, false
	})
}

// matchesAny reports whether name contains any hint, case-insensitively.
func matchesAny(name string, hints []string) bool {
	lower := strings.ToLower(name)
	for _, h := range hints {
		if h != "" && strings.Contains(lower, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

// normalizeLang lowercases a tag and strips the region subtag so "es-CL"
// and "es-ES" voices satisfy a UI language of "es".
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
