package bulk

import (
	"context"
	"sync"
)

// gate is the scheduler's admission control for pause/resume. An open gate is
// represented by a closed channel so waiters pass through without spinning; a
// paused gate blocks waiters on a fresh channel until resume closes it. Both
// transitions are idempotent.
type gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newGate() *gate {
	g := &gate{ch: make(chan struct{})}
	close(g.ch)
	return g
}

// pause closes admission. Returns false when already paused.
func (g *gate) pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
		return true
	default:
		return false
	}
}

// resume reopens admission. Returns false when not paused.
func (g *gate) resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		return false
	default:
		close(g.ch)
		return true
	}
}

// paused reports the current admission state.
func (g *gate) paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		return false
	default:
		return true
	}
}

// wait blocks until the gate is open or ctx is done. It consumes no CPU while
// paused.
func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
