// Package i18n provides the localized string bundle for the assistant
// gateway: canned question texts resolved from question keys, plus the small
// set of system strings the widget shows (no-results message, inline chat
// error).
//
// Bundles are loaded from YAML files keyed by language, with a configurable
// default language used as fallback when a key is missing for the requested
// one.
package i18n

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Well-known system string keys used by the gateway.
const (
	KeyNoResults = "system.no_results"
	KeyChatError = "system.chat_error"
)

// Bundle holds localized strings for all supported languages. Bundle is
// read-only after construction and safe for concurrent use.
type Bundle struct {
	defaultLang string
	languages   map[string]map[string]string
}

// bundleFile is the YAML schema of a bundle file.
type bundleFile struct {
	DefaultLanguage string                       `yaml:"default_language"`
	Languages       map[string]map[string]string `yaml:"languages"`
}

// Load reads a bundle from the YAML file at path.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("i18n: open %q: %w", path, err)
	}
	defer f.Close()

	b, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("i18n: parse %q: %w", path, err)
	}
	return b, nil
}

// LoadFromReader decodes a YAML bundle from r. Useful in tests where bundles
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Bundle, error) {
	var bf bundleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("i18n: decode yaml: %w", err)
	}
	if len(bf.Languages) == 0 {
		return nil, fmt.Errorf("i18n: bundle defines no languages")
	}
	defaultLang := normalizeLang(bf.DefaultLanguage)
	if defaultLang == "" {
		return nil, fmt.Errorf("i18n: default_language is required")
	}
	if _, ok := bf.Languages[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q has no string table", defaultLang)
	}

	langs := make(map[string]map[string]string, len(bf.Languages))
	for lang, strs := range bf.Languages {
		langs[normalizeLang(lang)] = strs
	}
	return &Bundle{defaultLang: defaultLang, languages: langs}, nil
}

// Default returns the built-in bundle with Spanish and English strings for
// the stock question tables and system messages. Spanish is the default
// language, matching the widget's primary audience.
func Default() *Bundle {
	return &Bundle{
		defaultLang: "es",
		languages: map[string]map[string]string{
			"es": {
				"question.renew_tne":              "¿Cómo puedo renovar mi TNE?",
				"question.library_hours":          "¿Cuál es el horario de la biblioteca?",
				"question.enrollment_certificate": "¿Cómo obtengo un certificado de alumno regular?",
				"question.registration_dates":     "¿Cuáles son las fechas de matrícula?",
				"question.meal_grant":             "¿Cómo postulo a la beca de alimentación?",
				"question.program_transfer":       "¿Cómo solicito un cambio de carrera?",
				KeyNoResults:                      "No encontré resultados para tu consulta.",
				KeyChatError:                      "Ocurrió un error al procesar tu mensaje. Intenta de nuevo.",
			},
			"en": {
				"question.renew_tne":              "How do I renew my TNE card?",
				"question.library_hours":          "What are the library's opening hours?",
				"question.enrollment_certificate": "How do I get an enrollment certificate?",
				"question.registration_dates":     "What are the registration dates?",
				"question.meal_grant":             "How do I apply for the meal grant?",
				"question.program_transfer":       "How do I request a program transfer?",
				KeyNoResults:                      "I could not find results for your query.",
				KeyChatError:                      "Something went wrong processing your message. Please try again.",
			},
		},
	}
}

// DefaultLanguage returns the bundle's fallback language code.
func (b *Bundle) DefaultLanguage() string { return b.defaultLang }

// Languages returns the language codes the bundle covers, default first.
func (b *Bundle) Languages() []string {
	out := make([]string, 0, len(b.languages))
	out = append(out, b.defaultLang)
	for lang := range b.languages {
		if lang != b.defaultLang {
			out = append(out, lang)
		}
	}
	return out
}

// Resolve returns the string for key in lang, falling back to the default
// language when the key is missing for lang. The second return value is
// false when the key exists in neither.
func (b *Bundle) Resolve(lang, key string) (string, bool) {
	lang = normalizeLang(lang)
	if strs, ok := b.languages[lang]; ok {
		if s, ok := strs[key]; ok {
			return s, true
		}
	}
	if s, ok := b.languages[b.defaultLang][key]; ok {
		return s, true
	}
	return "", false
}

// MustResolve is Resolve that returns the key itself when no translation
// exists. Used for system strings where showing the raw key beats showing
// nothing.
func (b *Bundle) MustResolve(lang, key string) string {
	if s, ok := b.Resolve(lang, key); ok {
		return s
	}
	return key
}

// normalizeLang lowercases a language tag and strips any region subtag, so
// "es-CL" and "es" resolve against the same table.
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	return lang
}
