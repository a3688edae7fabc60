package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"transcriber": {"openai", "whisper"},
	"reply":       {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"synth":       {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation, warn for unknown provider names.
	validateProviderEntry("transcriber", cfg.Providers.Transcriber)
	validateProviderEntry("reply", cfg.Providers.Reply)
	validateProviderEntry("synth", cfg.Providers.Synth)

	// Provider availability warnings
	if cfg.Providers.Transcriber.Name == "" {
		slog.Warn("no transcriber configured; captured speech cannot be understood")
	}
	if cfg.Providers.Reply.Name == "" {
		slog.Warn("no reply provider configured; the assistant will not respond")
	}
	if cfg.Providers.Synth.Name == "" {
		slog.Warn("no synth provider configured; replies will be text only")
	}

	// Agent
	if s := cfg.Agent.VoiceSpeed; s != 0 && (s < 0.25 || s > 4.0) {
		errs = append(errs, fmt.Errorf("agent.voice_speed %.2f is out of range [0.25, 4.0]", s))
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 2 {
		errs = append(errs, fmt.Errorf("agent.temperature %.2f is out of range [0, 2]", cfg.Agent.Temperature))
	}
	if cfg.Agent.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("agent.max_tokens %d must not be negative", cfg.Agent.MaxTokens))
	}
	if cfg.Agent.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("agent.history_limit %d must not be negative", cfg.Agent.HistoryLimit))
	}

	// Conversation timings and gains
	errs = append(errs, validateConversation(cfg.Conversation)...)

	// History
	if cfg.History.Store != "" && !cfg.History.Store.IsValid() {
		errs = append(errs, fmt.Errorf("history.store %q is invalid; valid values: memory, postgres", cfg.History.Store))
	}
	if cfg.History.Store == HistoryPostgres && cfg.History.PostgresDSN == "" {
		errs = append(errs, errors.New("history.postgres_dsn is required when history.store is postgres"))
	}
	if cfg.History.Cap < 0 {
		errs = append(errs, fmt.Errorf("history.cap %d must not be negative", cfg.History.Cap))
	}

	return errors.Join(errs...)
}

// validateConversation checks the turn-taking block. Zero values are fine
// (they mean "use the default"); negative values are configuration mistakes.
func validateConversation(c ConversationConfig) []error {
	var errs []error

	timings := []struct {
		name string
		v    int
	}{
		{"frame_interval_ms", c.FrameIntervalMs},
		{"calibration_ms", c.CalibrationMs},
		{"speech_debounce_ms", c.SpeechDebounceMs},
		{"silence_debounce_ms", c.SilenceDebounceMs},
		{"cooldown_ms", c.CooldownMs},
		{"resume_delay_ms", c.ResumeDelayMs},
		{"settle_delay_ms", c.SettleDelayMs},
		{"interruption_poll_ms", c.InterruptionPollMs},
		{"pre_record_delay_ms", c.PreRecordDelayMs},
	}
	for _, t := range timings {
		if t.v < 0 {
			errs = append(errs, fmt.Errorf("conversation.%s %d must not be negative", t.name, t.v))
		}
	}

	gains := []struct {
		name string
		v    float64
	}{
		{"playback_multiplier", c.PlaybackMultiplier},
		{"interruption_gain", c.InterruptionGain},
		{"silence_gain", c.SilenceGain},
		{"speech_gain", c.SpeechGain},
		{"min_snr", c.MinSNR},
		{"min_time_energy", c.MinTimeEnergy},
	}
	for _, g := range gains {
		if g.v < 0 {
			errs = append(errs, fmt.Errorf("conversation.%s %.2f must not be negative", g.name, g.v))
		}
	}
	if c.PlaybackMultiplier != 0 && c.PlaybackMultiplier < 1 {
		errs = append(errs, fmt.Errorf("conversation.playback_multiplier %.2f must be at least 1", c.PlaybackMultiplier))
	}
	if c.SilenceWindow < 0 {
		errs = append(errs, fmt.Errorf("conversation.silence_window %d must not be negative", c.SilenceWindow))
	}

	return errs
}

// validateProviderEntry logs a warning if the entry (or any fallback) names a
// provider not found in the [ValidProviderNames] list for the given kind.
func validateProviderEntry(kind string, entry ProviderEntry) {
	validateProviderName(kind, entry.Name)
	for _, fb := range entry.Fallbacks {
		validateProviderName(kind, fb.Name)
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
