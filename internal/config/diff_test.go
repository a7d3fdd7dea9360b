package config_test

import (
	"testing"

	"github.com/aulavoz/aulavoz/internal/command"
	"github.com/aulavoz/aulavoz/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogInfo},
		Matcher: config.MatcherConfig{Threshold: 0.6},
		Commands: config.CommandsConfig{
			Navigation: []command.Entry{{Phrase: "inicio", Action: "/"}},
		},
	}
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.Empty() {
		t.Error("diff should not be empty")
	}
}

func TestDiff_CommandsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Commands: config.CommandsConfig{
			Navigation: []command.Entry{{Phrase: "inicio", Action: "/"}},
		},
	}
	new := &config.Config{
		Commands: config.CommandsConfig{
			Navigation: []command.Entry{
				{Phrase: "inicio", Action: "/"},
				{Phrase: "contacto", Action: "/contacto"},
			},
		},
	}

	d := config.Diff(old, new)
	if !d.CommandsChanged {
		t.Error("expected CommandsChanged=true")
	}
	if d.MatcherChanged {
		t.Error("expected MatcherChanged=false")
	}
}

func TestDiff_QuestionTableChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Commands: config.CommandsConfig{
			Questions: []command.Entry{{Phrase: "renovar tne", Action: "question.renew_tne"}},
		},
	}
	new := &config.Config{
		Commands: config.CommandsConfig{
			Questions: []command.Entry{{Phrase: "renovar tne", Action: "question.renew_card"}},
		},
	}

	if d := config.Diff(old, new); !d.CommandsChanged {
		t.Error("expected CommandsChanged=true for changed question action")
	}
}

func TestDiff_MatcherChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Matcher: config.MatcherConfig{Threshold: 0.6}}
	new := &config.Config{Matcher: config.MatcherConfig{Threshold: 0.7}}

	d := config.Diff(old, new)
	if !d.MatcherChanged {
		t.Error("expected MatcherChanged=true")
	}
	if d.CommandsChanged {
		t.Error("expected CommandsChanged=false")
	}
}

func TestDiff_SpeechChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Speech: config.SpeechConfig{SpeakReplies: false}}
	new := &config.Config{Speech: config.SpeechConfig{SpeakReplies: true}}

	if d := config.Diff(old, new); !d.SpeechChanged {
		t.Error("expected SpeechChanged=true")
	}

	old = &config.Config{Speech: config.SpeechConfig{FemaleVoiceHints: []string{"monica"}}}
	new = &config.Config{Speech: config.SpeechConfig{FemaleVoiceHints: []string{"monica", "paulina"}}}

	if d := config.Diff(old, new); !d.SpeechChanged {
		t.Error("expected SpeechChanged=true for changed voice hints")
	}
}

func TestDiff_ListenAddrIsIgnored(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{ListenAddr: ":8080"}}
	new := &config.Config{Server: config.ServerConfig{ListenAddr: ":9090"}}

	if d := config.Diff(old, new); !d.Empty() {
		t.Errorf("listen address changes require a restart and must not appear in the diff, got %+v", d)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogInfo},
		Matcher: config.MatcherConfig{Threshold: 0.6},
	}
	new := &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogWarn},
		Matcher: config.MatcherConfig{Threshold: 0.5},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged || !d.MatcherChanged {
		t.Errorf("expected both log level and matcher changes, got %+v", d)
	}
}
