// Package bootstrap guarantees that exactly one worker is ever started per
// process, even under re-entrant calls (hot reload, a duplicate wiring
// call). The guarantee is its own package rather than a module-level init
// so it stays visible and independently testable.
package bootstrap

import (
	"context"
	"sync"
)

// Starter is satisfied by anything with a worker-shaped Start(ctx) method.
type Starter interface {
	Start(ctx context.Context)
}

// Guard enforces that Start runs at most once across its lifetime.
type Guard struct {
	mu      sync.Mutex
	started bool
}

// NewGuard returns a fresh, unstarted Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// StartWorker starts w exactly once. Subsequent calls are no-ops and
// report false.
func (g *Guard) StartWorker(ctx context.Context, w Starter) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return false
	}
	g.started = true
	w.Start(ctx)
	return true
}

// Started reports whether StartWorker has already run.
func (g *Guard) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}
