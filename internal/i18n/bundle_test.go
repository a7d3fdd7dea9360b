package i18n

import (
	"strings"
	"testing"
)

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	const src = `
default_language: es
languages:
  es:
    question.renew_tne: "¿Cómo renuevo mi TNE?"
  en:
    question.renew_tne: "How do I renew my TNE?"
`
	b, err := LoadFromReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.DefaultLanguage(); got != "es" {
		t.Errorf("default language: got %q", got)
	}
	if s, ok := b.Resolve("en", "question.renew_tne"); !ok || !strings.Contains(s, "renew") {
		t.Errorf("english lookup failed: %q %v", s, ok)
	}
}

func TestLoadFromReader_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no languages":    `default_language: es`,
		"missing default": "languages:\n  en:\n    k: v\n",
		"default has no table": `
default_language: es
languages:
  en:
    k: v
`,
	}
	for name, src := range cases {
		if _, err := LoadFromReader(strings.NewReader(src)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestResolve_FallsBackToDefaultLanguage(t *testing.T) {
	t.Parallel()

	b := Default()
	es, ok := b.Resolve("es", "question.renew_tne")
	if !ok {
		t.Fatal("spanish lookup failed")
	}
	// "fr" is not in the bundle; the default language text is served.
	fr, ok := b.Resolve("fr", "question.renew_tne")
	if !ok || fr != es {
		t.Errorf("fallback mismatch: %q vs %q", fr, es)
	}
}

func TestResolve_RegionSubtagIgnored(t *testing.T) {
	t.Parallel()

	b := Default()
	a, okA := b.Resolve("es-CL", KeyNoResults)
	c, okC := b.Resolve("es", KeyNoResults)
	if !okA || !okC || a != c {
		t.Errorf("region subtag handling mismatch: %q vs %q", a, c)
	}
}

func TestMustResolve_UnknownKeyReturnsKey(t *testing.T) {
	t.Parallel()

	b := Default()
	if got := b.MustResolve("es", "question.unknown"); got != "question.unknown" {
		t.Errorf("got %q", got)
	}
}
