package camera

import "sync"

// Group is a shared run-signal and condition pair injected into every
// Runtime that belongs to it. There is no leader and no per-camera pause:
// membership is declared once, statically, at node start.
type Group struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running bool
}

// NewGroup returns a fresh, paused group.
func NewGroup() *Group {
	g := &Group{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Start sets the run signal once and wakes every member. A no-op if the
// group is already running.
func (g *Group) Start() {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.mu.Unlock()
	g.cond.Broadcast()
}

// Pause clears the run signal and wakes every member so each blocks again
// at its next scheduling point. A no-op if already paused.
func (g *Group) Pause() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

// IsRunning reports whether the group's run signal is currently set.
func (g *Group) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Broadcast wakes every waiter without changing the run signal. Used by a
// single camera's Cleanup to re-evaluate its own (per-camera) kill flag
// without disturbing the rest of the group.
func (g *Group) Broadcast() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cond.Broadcast()
}

// waitForRunOrKill blocks until the run signal is set or killed reports
// true, returning false (caller should exit) in the latter case. killed is
// a per-camera flag: the kill signal is never shared across a group, only
// the run signal and condition are (mirrors the source, where each camera
// owns its own threading.Event for termination).
func (g *Group) waitForRunOrKill(killed func() bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.running && !killed() {
		g.cond.Wait()
	}
	return !killed()
}
