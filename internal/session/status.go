package session

import "github.com/1ureka/duocall/internal/config"

// Status is a point-in-time view of a session for display.
type Status struct {
	Role             config.Role
	State            State
	Text             string // user-facing status line
	Paired           bool   // the relay reports a partner
	Observer         bool   // the room was full on arrival
	RemoteTracks     int
	QueuedCandidates int
}

// Snapshot returns the latest published status.
func (c *Controller) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// OnStatus registers fn to be called, on the session goroutine, whenever the
// status changes. Like a HandlerFunc, fn must not block or call the session
// commands directly; Snapshot is safe.
func (c *Controller) OnStatus(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) status() Status {
	return Status{
		Role:             c.role,
		State:            c.state,
		Text:             c.statusText,
		Paired:           c.paired,
		Observer:         c.observer,
		RemoteTracks:     len(c.remoteTracks),
		QueuedCandidates: c.queue.Len(),
	}
}

// publish stores the current status and notifies listeners if it changed.
func (c *Controller) publish() {
	st := c.status()

	c.mu.Lock()
	changed := st != c.snap
	c.snap = st
	listeners := c.listeners
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(st)
	}
}
