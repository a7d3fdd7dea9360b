package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything that
// requires a listener restart (addresses, TLS, backend URL) is ignored.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CommandsChanged is true when either command table differs. New widget
	// sessions pick up the rebuilt tables; existing sessions keep theirs.
	CommandsChanged bool

	// MatcherChanged is true when any matcher tuning value differs.
	MatcherChanged bool

	// SpeechChanged is true when the speech defaults or voice hints differ.
	SpeechChanged bool
}

// Empty reports whether the diff contains no hot-reloadable changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.CommandsChanged && !d.MatcherChanged && !d.SpeechChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Commands.Navigation, new.Commands.Navigation) ||
		!slices.Equal(old.Commands.Questions, new.Commands.Questions) {
		d.CommandsChanged = true
	}

	if old.Matcher != new.Matcher {
		d.MatcherChanged = true
	}

	if old.Speech.SpeakReplies != new.Speech.SpeakReplies ||
		!slices.Equal(old.Speech.FemaleVoiceHints, new.Speech.FemaleVoiceHints) ||
		!slices.Equal(old.Speech.MaleVoiceHints, new.Speech.MaleVoiceHints) {
		d.SpeechChanged = true
	}

	return d
}
