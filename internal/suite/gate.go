package suite

import "sync"

// RunGate serializes suite runs across every trigger: on-demand launches,
// CLI runs and scheduled ticks all claim the same gate, so the shared
// browser allocator never hosts two concurrent runs.
type RunGate struct {
	mu   sync.Mutex
	busy bool
}

// TryAcquire claims the gate, reporting false when a run already holds it.
func (g *RunGate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

// Release frees the gate for the next run.
func (g *RunGate) Release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}
