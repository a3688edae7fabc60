package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls the config file and reports edits while the server runs.
// Conversation servers are long-lived and restarting one to change a log
// level or retune the agent would drop every live session, so the server
// reloads what it safely can in place. Polling with an mtime check in front
// of a content hash keeps the watcher cheap and free of platform
// notification quirks.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, updated *Config)

	mu      sync.Mutex
	current *Config
	seen    fileState

	done     chan struct{}
	stopOnce sync.Once
}

// fileState is one observed state of the config file on disk.
type fileState struct {
	sum   [sha256.Size]byte
	mtime time.Time
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it in a background
// goroutine. onChange runs on the polling goroutine with the previous and
// the freshly loaded config whenever a valid edit lands; it may be nil.
func NewWatcher(path string, onChange func(old, updated *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, state, err := w.snapshot()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.seen = state

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the file when it looks edited and hands a valid new config
// to onChange. A config that fails to parse or validate is rejected and the
// running config stays in force.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: stat failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seen.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, state, err := w.snapshot()
	if err != nil {
		// a bad edit keeps the old config; the operator sees the warning
		slog.Warn("config watcher: reload rejected", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	if state.sum == w.seen.sum {
		// touched but not edited
		w.seen.mtime = state.mtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = cfg
	w.seen = state
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// outside the lock so the callback may call Current()
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// snapshot reads, parses and validates the config file, returning it with
// the file state the read observed.
func (w *Watcher) snapshot() (*Config, fileState, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}
	return cfg, fileState{sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
