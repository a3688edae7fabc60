package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quastler/openfloor/internal/config"
	"github.com/quastler/openfloor/internal/sched"
	"github.com/quastler/openfloor/pkg/history"
	replymock "github.com/quastler/openfloor/pkg/provider/reply/mock"
	synthmock "github.com/quastler/openfloor/pkg/provider/synth/mock"
	transcribemock "github.com/quastler/openfloor/pkg/provider/transcribe/mock"
)

func testProviders() Providers {
	return Providers{
		Transcriber: &transcribemock.Transcriber{},
		Generator:   &replymock.Generator{Result: "ok"},
		Synthesizer: &synthmock.Synthesizer{},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		Agent:  config.AgentConfig{SystemPrompt: "be brief", VoiceID: "alloy"},
	}
}

// newTestApp builds an App with injected metrics and store so no global
// telemetry or database is touched.
func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), testConfig(), testProviders(),
		WithMetrics(testMetrics(t)),
		WithHistoryStore(history.NewMemoryStore(0)),
		WithScheduler(sched.NewManual(time.Unix(0, 0))),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.Shutdown(ctx)
	})
	return a
}

func TestNewDefaultsToMemoryHistory(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), testProviders(),
		WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if _, ok := a.store.(*history.MemoryStore); !ok {
		t.Fatalf("store = %T, want *history.MemoryStore", a.store)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	a := newTestApp(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		a.srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	a := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// give the listener a moment, then ask for shutdown
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestUpdateAgentAffectsNewSessions(t *testing.T) {
	t.Parallel()

	a := newTestApp(t)

	updated := config.AgentConfig{SystemPrompt: "be verbose", VoiceID: "nova"}
	a.UpdateAgent(updated)

	if got := a.agentConfig(); got != updated {
		t.Fatalf("agentConfig() = %+v, want %+v", got, updated)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), testProviders(),
		WithMetrics(testMetrics(t)),
		WithHistoryStore(history.NewMemoryStore(0)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
	if got := a.ActiveSessions(); got != 0 {
		t.Fatalf("ActiveSessions() = %d, want 0", got)
	}
}
