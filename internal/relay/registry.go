package relay

// Registry tracks the sockets attached to the relay: up to capacity peers,
// in arrival order, plus any observers admitted beyond capacity.
//
// A Registry is not safe for concurrent use; the hub goroutine owns it.
type Registry struct {
	capacity  int
	peers     []*Client
	observers []*Client
}

// NewRegistry returns an empty registry holding at most capacity peers.
func NewRegistry(capacity int) *Registry {
	return &Registry{capacity: capacity}
}

// Len returns the number of peers. Observers are not counted.
func (r *Registry) Len() int { return len(r.peers) }

// Full reports whether another peer would exceed capacity.
func (r *Registry) Full() bool { return len(r.peers) >= r.capacity }

// Add registers c as a peer. It returns false when the registry is full.
func (r *Registry) Add(c *Client) bool {
	if r.Full() {
		return false
	}
	r.peers = append(r.peers, c)
	return true
}

// AddObserver registers c as an observer.
func (r *Registry) AddObserver(c *Client) {
	r.observers = append(r.observers, c)
}

// Remove drops c from the registry. found is false when c was never
// registered; peer reports whether it held a peer slot.
func (r *Registry) Remove(c *Client) (peer, found bool) {
	var ok bool
	if r.peers, ok = without(r.peers, c); ok {
		return true, true
	}
	if r.observers, ok = without(r.observers, c); ok {
		return false, true
	}
	return false, false
}

// IsPeer reports whether c holds a peer slot.
func (r *Registry) IsPeer(c *Client) bool {
	for _, p := range r.peers {
		if p == c {
			return true
		}
	}
	return false
}

// Others returns every peer except c.
func (r *Registry) Others(c *Client) []*Client {
	out := make([]*Client, 0, len(r.peers))
	for _, p := range r.peers {
		if p != c {
			out = append(out, p)
		}
	}
	return out
}

// Observers returns the observer sockets.
func (r *Registry) Observers() []*Client { return r.observers }

// All returns peers followed by observers.
func (r *Registry) All() []*Client {
	out := make([]*Client, 0, len(r.peers)+len(r.observers))
	out = append(out, r.peers...)
	return append(out, r.observers...)
}

func without(list []*Client, c *Client) ([]*Client, bool) {
	for i, p := range list {
		if p == c {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}
