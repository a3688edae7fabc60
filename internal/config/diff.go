package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider,
// history, and timing changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AgentChanged is true when any hot-reloadable agent field changed.
	AgentChanged        bool
	SystemPromptChanged bool
	VoiceChanged        bool
	LimitsChanged       bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Agent.SystemPrompt != new.Agent.SystemPrompt {
		d.SystemPromptChanged = true
	}
	if old.Agent.VoiceID != new.Agent.VoiceID || old.Agent.VoiceSpeed != new.Agent.VoiceSpeed {
		d.VoiceChanged = true
	}
	if old.Agent.Temperature != new.Agent.Temperature ||
		old.Agent.MaxTokens != new.Agent.MaxTokens ||
		old.Agent.HistoryLimit != new.Agent.HistoryLimit {
		d.LimitsChanged = true
	}
	d.AgentChanged = d.SystemPromptChanged || d.VoiceChanged || d.LimitsChanged

	return d
}
