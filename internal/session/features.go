package session

import (
	"fmt"

	"github.com/1ureka/duocall/internal/protocol"
	"github.com/1ureka/duocall/internal/util"
)

// HandlerFunc handles an application envelope relayed from the other peer.
// It runs on the session goroutine and must not block. It must not call
// EndCall, SwitchCamera, ToggleMicrophone or ToggleCamera directly: those
// wait for the session goroutine and would deadlock. Start a goroutine for
// them instead. Send is safe.
type HandlerFunc func(env *protocol.Envelope)

func reserved(t protocol.Type) bool {
	switch t {
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		return true
	}
	return t.IsLifecycle()
}

// Handle registers fn for envelopes of type t, replacing any previous
// handler. It panics for negotiation and lifecycle types, which the
// controller handles itself.
func (c *Controller) Handle(t protocol.Type, fn HandlerFunc) {
	if t == "" || reserved(t) {
		panic(fmt.Sprintf("session: cannot register handler for %q", t))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = fn
}

// Send relays an application envelope of type t to the other peer. The
// payload must encode to a JSON object; its fields sit next to "type".
func (c *Controller) Send(t protocol.Type, payload any) error {
	if reserved(t) {
		return fmt.Errorf("envelope type %q is reserved", t)
	}

	data, err := protocol.Compose(t, payload)
	if err != nil {
		return err
	}
	return c.sig.Send(data)
}

func (c *Controller) dispatch(env *protocol.Envelope) {
	c.mu.RLock()
	fn, ok := c.handlers[env.Type]
	c.mu.RUnlock()

	if !ok {
		util.LogDebug("no handler for %q envelope", env.Type)
		return
	}
	fn(env)
}
