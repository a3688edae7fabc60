// Command openfloor is the main entry point for the openfloor conversation
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/quastler/openfloor/internal/app"
	"github.com/quastler/openfloor/internal/config"
	"github.com/quastler/openfloor/internal/resilience"
	"github.com/quastler/openfloor/pkg/provider/reply"
	"github.com/quastler/openfloor/pkg/provider/reply/anyllm"
	"github.com/quastler/openfloor/pkg/provider/synth"
	synthoai "github.com/quastler/openfloor/pkg/provider/synth/openai"
	"github.com/quastler/openfloor/pkg/provider/transcribe"
	transcribeoai "github.com/quastler/openfloor/pkg/provider/transcribe/openai"
	"github.com/quastler/openfloor/pkg/provider/transcribe/whisper"
)

// shutdownTimeout bounds the graceful teardown after Run returns.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "openfloor: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "openfloor: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	slog.SetDefault(newLogger(cfg.Server.LogLevel, logLevel))

	slog.Info("openfloor starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Log level and agent settings apply without a restart; providers,
	// timings and storage need one.
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		d := config.Diff(old, updated)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.AgentChanged {
			application.UpdateAgent(updated.Agent)
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Transcribers ──────────────────────────────────────────────────────────

	reg.RegisterTranscriber("openai", func(entry config.ProviderEntry) (transcribe.Transcriber, error) {
		var opts []transcribeoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, transcribeoai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, transcribeoai.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, transcribeoai.WithLanguage(entry.Language))
		}
		return transcribeoai.New(entry.APIKey, opts...)
	})

	// whisper runs inference in-process; Model (or options.model_path) points
	// at a ggml model file on disk.
	reg.RegisterTranscriber("whisper", func(entry config.ProviderEntry) (transcribe.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── Reply generators ──────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterReply(providerName, func(entry config.ProviderEntry) (reply.Generator, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterReply("ollama", func(entry config.ProviderEntry) (reply.Generator, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Synthesizers ──────────────────────────────────────────────────────────

	reg.RegisterSynth("openai", func(entry config.ProviderEntry) (synth.Synthesizer, error) {
		var opts []synthoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, synthoai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, synthoai.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "format"); format != "" {
			opts = append(opts, synthoai.WithFormat(format))
		}
		return synthoai.New(entry.APIKey, opts...)
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates the providers named in cfg, wrapping each in a
// fallback chain when the entry lists fallbacks. Unlike optional subsystems,
// all three provider kinds are required: the utterance pipeline cannot run
// without them.
func buildProviders(cfg *config.Config, reg *config.Registry) (app.Providers, error) {
	var ps app.Providers

	transcriber, err := buildTranscriber(cfg.Providers.Transcriber, reg)
	if err != nil {
		return ps, err
	}
	ps.Transcriber = transcriber

	generator, err := buildGenerator(cfg.Providers.Reply, reg)
	if err != nil {
		return ps, err
	}
	ps.Generator = generator

	synthesizer, err := buildSynthesizer(cfg.Providers.Synth, reg)
	if err != nil {
		return ps, err
	}
	ps.Synthesizer = synthesizer

	return ps, nil
}

func buildTranscriber(entry config.ProviderEntry, reg *config.Registry) (transcribe.Transcriber, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("no transcriber configured (providers.transcriber.name)")
	}
	primary, err := reg.CreateTranscriber(entry)
	if err != nil {
		return nil, fmt.Errorf("create transcriber %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "transcriber", "name", entry.Name)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewTranscribeChain(primary, entry.Name, resilience.ChainConfig{})
	for _, fb := range entry.Fallbacks {
		v, err := reg.CreateTranscriber(fb)
		if err != nil {
			return nil, fmt.Errorf("create transcriber fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, v)
		slog.Info("provider created", "kind", "transcriber", "name", fb.Name, "role", "fallback")
	}
	return chain, nil
}

func buildGenerator(entry config.ProviderEntry, reg *config.Registry) (reply.Generator, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("no reply generator configured (providers.reply.name)")
	}
	primary, err := reg.CreateReply(entry)
	if err != nil {
		return nil, fmt.Errorf("create reply generator %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "reply", "name", entry.Name)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewReplyChain(primary, entry.Name, resilience.ChainConfig{})
	for _, fb := range entry.Fallbacks {
		v, err := reg.CreateReply(fb)
		if err != nil {
			return nil, fmt.Errorf("create reply fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, v)
		slog.Info("provider created", "kind", "reply", "name", fb.Name, "role", "fallback")
	}
	return chain, nil
}

func buildSynthesizer(entry config.ProviderEntry, reg *config.Registry) (synth.Synthesizer, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("no synthesizer configured (providers.synth.name)")
	}
	primary, err := reg.CreateSynth(entry)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "synth", "name", entry.Name)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewSynthChain(primary, entry.Name, resilience.ChainConfig{})
	for _, fb := range entry.Fallbacks {
		v, err := reg.CreateSynth(fb)
		if err != nil {
			return nil, fmt.Errorf("create synth fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, v)
		slog.Info("provider created", "kind", "synth", "name", fb.Name, "role", "fallback")
	}
	return chain, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       openfloor — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Transcriber", cfg.Providers.Transcriber)
	printProvider("Reply", cfg.Providers.Reply)
	printProvider("Synth", cfg.Providers.Synth)
	history := string(cfg.History.Store)
	if history == "" {
		history = "memory"
	}
	fmt.Printf("║  History        : %-20s ║\n", history)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr    : %-20s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Printf("║  TLS            : %-20s ║\n", onOff(cfg.Server.TLS != nil))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind string, entry config.ProviderEntry) {
	value := entry.Name
	if value == "" {
		value = "(not configured)"
	} else if entry.Model != "" {
		value = entry.Name + " / " + entry.Model
	}
	if len(entry.Fallbacks) > 0 {
		value += fmt.Sprintf(" +%d", len(entry.Fallbacks))
	}
	if len(value) > 20 {
		value = value[:17] + "…"
	}
	fmt.Printf("║  %-13s  : %-20s ║\n", kind, value)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, lvl *slog.LevelVar) *slog.Logger {
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ─────────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
