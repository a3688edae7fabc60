package config_test

import (
	"testing"
	"time"

	"github.com/quastler/openfloor/internal/config"
	"github.com/quastler/openfloor/internal/turn"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	valid := []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "INFO"} {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestHistoryStore_IsValid(t *testing.T) {
	t.Parallel()
	if !config.HistoryMemory.IsValid() || !config.HistoryPostgres.IsValid() {
		t.Error("built-in history stores should be valid")
	}
	if config.HistoryStore("redis").IsValid() {
		t.Error("unknown store should be invalid")
	}
}

func TestConversation_TurnConfigDefaults(t *testing.T) {
	t.Parallel()

	// A completely empty block yields the built-in defaults.
	got := config.ConversationConfig{}.TurnConfig()
	want := turn.DefaultConfig()
	if got != want {
		t.Errorf("TurnConfig() = %+v, want defaults %+v", got, want)
	}
}

func TestConversation_TurnConfigOverrides(t *testing.T) {
	t.Parallel()

	cc := config.ConversationConfig{
		CooldownMs:         1200,
		SilenceDebounceMs:  2000,
		PlaybackMultiplier: 2.5,
		SilenceWindow:      50,
		MinTimeEnergy:      0.1,
	}
	got := cc.TurnConfig()

	if got.Cooldown != 1200*time.Millisecond {
		t.Errorf("Cooldown = %v, want 1.2s", got.Cooldown)
	}
	if got.SilenceDebounce != 2*time.Second {
		t.Errorf("SilenceDebounce = %v, want 2s", got.SilenceDebounce)
	}
	if got.PlaybackMultiplier != 2.5 {
		t.Errorf("PlaybackMultiplier = %v, want 2.5", got.PlaybackMultiplier)
	}
	if got.SilenceWindow != 50 {
		t.Errorf("SilenceWindow = %d, want 50", got.SilenceWindow)
	}
	if got.Thresholds.MinTimeEnergy != 0.1 {
		t.Errorf("MinTimeEnergy = %v, want 0.1", got.Thresholds.MinTimeEnergy)
	}

	// Untouched fields keep their defaults.
	def := turn.DefaultConfig()
	if got.SpeechDebounce != def.SpeechDebounce {
		t.Errorf("SpeechDebounce = %v, want default %v", got.SpeechDebounce, def.SpeechDebounce)
	}
	if got.InterruptionGain != def.InterruptionGain {
		t.Errorf("InterruptionGain = %v, want default %v", got.InterruptionGain, def.InterruptionGain)
	}
}

func TestAgent_Voice(t *testing.T) {
	t.Parallel()

	a := config.AgentConfig{VoiceID: "alloy", VoiceSpeed: 1.5}
	v := a.Voice()
	if v.ID != "alloy" || v.Speed != 1.5 {
		t.Errorf("Voice() = %+v", v)
	}
}
