// Package mock provides a test double for the reply.Generator interface.
package mock

import (
	"context"
	"sync"

	"github.com/quastler/openfloor/pkg/provider/reply"
)

// Generator is a mock implementation of reply.Generator.
type Generator struct {
	mu sync.Mutex

	// Result is returned by every Reply call.
	Result string

	// Err, if non-nil, is returned by every Reply call.
	Err error

	// ReplyCalls records every request.
	ReplyCalls []reply.Request
}

// Compile-time assertion that Generator implements reply.Generator.
var _ reply.Generator = (*Generator)(nil)

// Reply records the call and returns Result, Err.
func (g *Generator) Reply(_ context.Context, req reply.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ReplyCalls = append(g.ReplyCalls, req)
	if g.Err != nil {
		return "", g.Err
	}
	return g.Result, nil
}
