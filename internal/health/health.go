// Package health serves the liveness and readiness endpoints of the
// conversation server.
//
//   - /healthz — liveness; a process that can answer HTTP is alive. The
//     response carries the number of active conversations so an operator
//     deciding whether to drain the server can see who it would cut off.
//   - /readyz  — readiness; 200 only while every registered [Probe] (the
//     conversation history store, for instance) answers.
//
// Responses are JSON with a top-level "status" of "ok" or "fail" and,
// on /readyz, a "probes" map holding each probe's verdict.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe. A store that cannot answer
// within it is not ready, whatever it might say later.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check for one dependency of the server.
type Probe struct {
	// Name keys the probe's verdict in the /readyz response, e.g.
	// "history".
	Name string

	// Run checks the dependency; nil means ready. It must respect
	// context cancellation.
	Run func(ctx context.Context) error
}

// Config assembles a [Handler].
type Config struct {
	// Probes guard /readyz. They run sequentially, in order, on every
	// request. A deployment on the in-memory history store has none.
	Probes []Probe

	// ActiveConversations, when set, is reported in the /healthz body.
	ActiveConversations func() int
}

// verdict is the JSON body of both endpoints.
type verdict struct {
	Status              string            `json:"status"`
	ActiveConversations *int              `json:"active_conversations,omitempty"`
	Probes              map[string]string `json:"probes,omitempty"`
}

// Handler serves /healthz and /readyz. The probe list is fixed at
// construction; Handler is safe for concurrent use.
type Handler struct {
	probes []Probe
	active func() int
}

// New creates a [Handler] from cfg.
func New(cfg Config) *Handler {
	probes := make([]Probe, len(cfg.Probes))
	copy(probes, cfg.Probes)
	return &Handler{probes: probes, active: cfg.ActiveConversations}
}

// Healthz is the liveness endpoint; it always answers 200. When configured
// it includes the live conversation count.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	v := verdict{Status: "ok"}
	if h.active != nil {
		n := h.active()
		v.ActiveConversations = &n
	}
	writeJSON(w, http.StatusOK, v)
}

// Readyz runs every probe with a [probeTimeout] deadline derived from the
// request context and answers 200 only when all of them pass.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	verdicts := make(map[string]string, len(h.probes))
	ready := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Run(ctx)
		cancel()

		if err != nil {
			verdicts[p.Name] = "fail: " + err.Error()
			ready = false
		} else {
			verdicts[p.Name] = "ok"
		}
	}

	v := verdict{Status: "ok", Probes: verdicts}
	status := http.StatusOK
	if !ready {
		v.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, v)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// degrades to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
