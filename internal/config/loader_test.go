package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/quastler/openfloor/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/openfloor/tls.crt
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for partial TLS config, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()
	yaml := `
history:
  store: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for postgres store without DSN, got nil")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestValidate_InvalidHistoryStore(t *testing.T) {
	t.Parallel()
	yaml := `
history:
  store: redis
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown history store, got nil")
	}
	if !strings.Contains(err.Error(), "history.store") {
		t.Errorf("error should mention history.store, got: %v", err)
	}
}

func TestValidate_NegativeTiming(t *testing.T) {
	t.Parallel()
	yaml := `
conversation:
  cooldown_ms: -100
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative timing, got nil")
	}
	if !strings.Contains(err.Error(), "cooldown_ms") {
		t.Errorf("error should mention cooldown_ms, got: %v", err)
	}
}

func TestValidate_PlaybackMultiplierBelowOne(t *testing.T) {
	t.Parallel()
	yaml := `
conversation:
  playback_multiplier: 0.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for playback_multiplier below 1, got nil")
	}
	if !strings.Contains(err.Error(), "playback_multiplier") {
		t.Errorf("error should mention playback_multiplier, got: %v", err)
	}
}

func TestValidate_VoiceSpeedOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
agent:
  voice_speed: 5.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for voice_speed out of range, got nil")
	}
	if !strings.Contains(err.Error(), "voice_speed") {
		t.Errorf("error should mention voice_speed, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
history:
  store: postgres
agent:
  max_tokens: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"log_level", "postgres_dsn", "max_tokens"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_address: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
providers:
  transcriber:
    name: whisper
    options:
      model_path: /models/ggml-base.en.bin
  reply:
    name: anthropic
    api_key: sk-test
    model: claude-sonnet-4-5
    fallbacks:
      - name: ollama
        model: llama3
  synth:
    name: openai
    api_key: sk-test
agent:
  system_prompt: "You are a helpful assistant."
  voice_id: alloy
  voice_speed: 1.2
  temperature: 0.7
  max_tokens: 400
  history_limit: 20
conversation:
  cooldown_ms: 1200
  playback_multiplier: 2.5
history:
  store: postgres
  postgres_dsn: "postgres://localhost/openfloor"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.Transcriber.Options["model_path"] != "/models/ggml-base.en.bin" {
		t.Errorf("transcriber model_path = %v", cfg.Providers.Transcriber.Options["model_path"])
	}
	if len(cfg.Providers.Reply.Fallbacks) != 1 || cfg.Providers.Reply.Fallbacks[0].Name != "ollama" {
		t.Errorf("reply fallbacks = %+v", cfg.Providers.Reply.Fallbacks)
	}
	if cfg.Agent.Voice().ID != "alloy" || cfg.Agent.Voice().Speed != 1.2 {
		t.Errorf("voice = %+v", cfg.Agent.Voice())
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	if !slices.Contains(config.ValidProviderNames["reply"], "openai") {
		t.Error(`ValidProviderNames["reply"] should contain "openai"`)
	}
	if !slices.Contains(config.ValidProviderNames["transcriber"], "whisper") {
		t.Error(`ValidProviderNames["transcriber"] should contain "whisper"`)
	}
}
