// Package app assembles the openfloor server: telemetry, conversation
// history storage, the HTTP surface, and one turn-taking session per
// WebSocket connection.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/quastler/openfloor/internal/config"
	"github.com/quastler/openfloor/internal/health"
	"github.com/quastler/openfloor/internal/observe"
	"github.com/quastler/openfloor/internal/pipeline"
	"github.com/quastler/openfloor/internal/sched"
	"github.com/quastler/openfloor/pkg/audio/wscapture"
	"github.com/quastler/openfloor/pkg/history"
	"github.com/quastler/openfloor/pkg/history/postgres"
	"github.com/quastler/openfloor/pkg/provider/reply"
	"github.com/quastler/openfloor/pkg/provider/synth"
	"github.com/quastler/openfloor/pkg/provider/transcribe"
)

const (
	// httpShutdownTimeout bounds the graceful drain of in-flight requests
	// when Run's context is cancelled.
	httpShutdownTimeout = 10 * time.Second

	// telemetryShutdownTimeout bounds the final exporter flush.
	telemetryShutdownTimeout = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Providers bundles the downstream services a conversation needs. The main
// package builds these from configuration; tests inject mocks.
type Providers struct {
	Transcriber transcribe.Transcriber
	Generator   reply.Generator
	Synthesizer synth.Synthesizer
}

// App owns every long-lived resource of the server. Create it with [New],
// drive it with [Run], and release it with [Shutdown].
type App struct {
	cfg       *config.Config
	providers Providers

	// agent is read per connection and replaceable at runtime via
	// UpdateAgent, so a config reload reaches new sessions.
	agentMu sync.RWMutex
	agent   config.AgentConfig

	metrics *observe.Metrics
	store   history.Store
	pool    *pgxpool.Pool
	clock   sched.Scheduler
	hub     *sessionHub
	srv     *http.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
	stopErr  error
}

// Option overrides a default dependency, mainly for tests.
type Option func(*App)

// WithHistoryStore injects a history store, skipping the store configured in
// [config.HistoryConfig].
func WithHistoryStore(store history.Store) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithMetrics injects a metrics set and skips global telemetry
// initialization. Tests use this to avoid registering duplicate Prometheus
// collectors.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithScheduler injects the clock used by turn supervisors.
func WithScheduler(clock sched.Scheduler) Option {
	return func(a *App) {
		a.clock = clock
	}
}

// New builds the application from configuration. Resources acquired along
// the way are released again by [App.Shutdown]; on error New releases
// whatever it had already acquired before returning.
func New(ctx context.Context, cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		agent:     cfg.Agent,
		hub:       newSessionHub(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.clock == nil {
		a.clock = sched.New()
	}

	// ── 1. Telemetry ──
	if a.metrics == nil {
		if err := a.initTelemetry(ctx); err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
	}

	// ── 2. Conversation history ──
	if a.store == nil {
		if err := a.initHistory(ctx); err != nil {
			a.closeAcquired()
			return nil, fmt.Errorf("app: init history: %w", err)
		}
	}

	// ── 3. HTTP surface ──
	a.initServer()

	return a, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	shutdown, err := observe.Init(ctx, observe.TelemetryConfig{})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		return shutdown(ctx)
	})

	a.metrics, err = observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	return nil
}

func (a *App) initHistory(ctx context.Context) error {
	switch a.cfg.History.Store {
	case config.HistoryPostgres:
		pool, err := pgxpool.New(ctx, a.cfg.History.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})

		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate history schema: %w", err)
		}
		a.pool = pool
		a.store = store
	default: // memory
		a.store = history.NewMemoryStore(a.cfg.History.Cap)
	}
	return nil
}

func (a *App) initServer() {
	mux := http.NewServeMux()
	health.New(health.Config{
		Probes:              a.readinessProbes(),
		ActiveConversations: a.hub.count,
	}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	instrumented := observe.Middleware(a.metrics)(mux)

	// The WebSocket endpoint sits outside the HTTP middleware; a hijacked
	// connection has no meaningful status code or duration.
	root := http.NewServeMux()
	root.HandleFunc("GET /ws", a.handleConversation)
	root.Handle("/", instrumented)

	a.srv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func (a *App) readinessProbes() []health.Probe {
	var probes []health.Probe
	if a.pool != nil {
		probes = append(probes, health.Probe{
			Name: "history",
			Run:  a.pool.Ping,
		})
	}
	return probes
}

// closeAcquired unwinds partially-acquired resources when New fails.
func (a *App) closeAcquired() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("app: cleanup error during failed init", "err", err)
		}
	}
	a.closers = nil
}

// Run serves HTTP until ctx is cancelled or the listener fails, then drains
// in-flight requests. Live WebSocket sessions are closed by [App.Shutdown],
// not here, so callers can bound the two phases separately.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tls := a.cfg.Server.TLS
		slog.Info("server listening", "addr", a.srv.Addr, "tls", tls != nil)

		var err error
		if tls != nil {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("app: drain http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// ActiveSessions reports how many conversations are currently live.
func (a *App) ActiveSessions() int {
	return a.hub.count()
}

// UpdateAgent replaces the agent settings used for new conversations.
// Sessions already in flight keep the settings they started with.
func (a *App) UpdateAgent(agent config.AgentConfig) {
	a.agentMu.Lock()
	a.agent = agent
	a.agentMu.Unlock()
	slog.Info("agent settings updated", "voice", agent.VoiceID)
}

func (a *App) agentConfig() config.AgentConfig {
	a.agentMu.RLock()
	defer a.agentMu.RUnlock()
	return a.agent
}

// Shutdown closes all live sessions, then releases resources in reverse
// acquisition order. Closer errors are logged, not returned; the only error
// is a deadline overrun. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.stopErr = a.shutdown(ctx)
	})
	return a.stopErr
}

func (a *App) shutdown(ctx context.Context) error {
	a.hub.closeAll()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("app: shutdown interrupted with %d closers remaining: %w", i+1, err)
		}
		if err := a.closers[i](); err != nil {
			slog.Warn("app: closer error during shutdown", "index", i, "err", err)
		}
	}
	a.closers = nil
	return nil
}

// handleConversation upgrades the request to a WebSocket, attaches a turn
// supervisor and pipeline to it, and blocks until the client disconnects.
func (a *App) handleConversation(w http.ResponseWriter, r *http.Request) {
	var sess *Session
	source, err := wscapture.Accept(w, r,
		wscapture.WithControl(func(msg []byte) {
			if sess != nil {
				sess.HandleControl(msg)
			}
		}),
	)
	if err != nil {
		slog.Warn("rejecting conversation", "remote", r.RemoteAddr, "err", err)
		return
	}

	agent := a.agentConfig()
	sess = NewSession(SessionConfig{
		ID:        a.hub.nextID(),
		Source:    source,
		Providers: a.providers,
		Store:     a.store,
		Clock:     a.clock,
		Metrics:   a.metrics,
		Turn:      a.cfg.Conversation.TurnConfig(),
		Pipeline: pipeline.Config{
			SystemPrompt: agent.SystemPrompt,
			Voice:        agent.Voice(),
			HistoryLimit: agent.HistoryLimit,
			Temperature:  agent.Temperature,
			MaxTokens:    agent.MaxTokens,
		},
	})

	if !a.hub.add(sess) {
		_ = source.Stop()
		return
	}
	defer a.hub.remove(sess.ID())

	a.metrics.ActiveSessions.Add(r.Context(), 1)
	defer a.metrics.ActiveSessions.Add(context.Background(), -1)

	if err := sess.Start(r.Context()); err != nil {
		slog.Warn("session start failed", "session_id", sess.ID(), "err", err)
		_ = sess.Close()
		return
	}

	select {
	case <-source.Done():
	case <-r.Context().Done():
	}
	if err := sess.Close(); err != nil {
		slog.Warn("session close error", "session_id", sess.ID(), "err", err)
	}
	if err := source.Err(); err != nil {
		slog.Warn("capture stream ended with error", "session_id", sess.ID(), "err", err)
	}
}
