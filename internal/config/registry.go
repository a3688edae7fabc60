package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quastler/openfloor/pkg/provider/reply"
	"github.com/quastler/openfloor/pkg/provider/synth"
	"github.com/quastler/openfloor/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	transcriber map[string]func(ProviderEntry) (transcribe.Transcriber, error)
	reply       map[string]func(ProviderEntry) (reply.Generator, error)
	synth       map[string]func(ProviderEntry) (synth.Synthesizer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcriber: make(map[string]func(ProviderEntry) (transcribe.Transcriber, error)),
		reply:       make(map[string]func(ProviderEntry) (reply.Generator, error)),
		synth:       make(map[string]func(ProviderEntry) (synth.Synthesizer, error)),
	}
}

// RegisterTranscriber registers a transcriber factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranscriber(name string, factory func(ProviderEntry) (transcribe.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// RegisterReply registers a reply generator factory under name.
func (r *Registry) RegisterReply(name string, factory func(ProviderEntry) (reply.Generator, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reply[name] = factory
}

// RegisterSynth registers a synthesizer factory under name.
func (r *Registry) RegisterSynth(name string, factory func(ProviderEntry) (synth.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synth[name] = factory
}

// CreateTranscriber instantiates a transcriber using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (transcribe.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcriber/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateReply instantiates a reply generator using the factory registered
// under entry.Name.
func (r *Registry) CreateReply(entry ProviderEntry) (reply.Generator, error) {
	r.mu.RLock()
	factory, ok := r.reply[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: reply/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSynth instantiates a synthesizer using the factory registered under
// entry.Name.
func (r *Registry) CreateSynth(entry ProviderEntry) (synth.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.synth[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: synth/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
