package app

import "github.com/google/uuid"

// Handle is the session's reference to a participant's communication
// channel. Send must not block: transport implementations enqueue into a
// per-connection buffer and report failure instead of stalling the caller.
type Handle interface {
	Send(data []byte) error
	Close() error
}

// participant is a registry entry. The entry owns the handle for its
// lifetime; rank is only meaningful while the current question's window is
// open and is cleared when the window closes.
type participant struct {
	id          uuid.UUID
	displayName string
	handle      Handle
	rank        int
}

// registry tracks connected participants in registration order. It lives
// inside the session's lock and is never touched outside it.
type registry struct {
	order    []*participant
	byHandle map[Handle]*participant
}

func newRegistry() *registry {
	return &registry{byHandle: make(map[Handle]*participant)}
}

// register adds a participant with rank 0. Duplicate display names are
// accepted; identity is the handle, not the name.
func (r *registry) register(name string, handle Handle) *participant {
	p := &participant{
		id:          uuid.New(),
		displayName: name,
		handle:      handle,
	}
	r.order = append(r.order, p)
	r.byHandle[handle] = p
	return p
}

// unregister removes the participant owning the handle. A late or duplicate
// disconnect signal is a no-op. The boolean reports whether this removal
// emptied the registry, which is the session's cue to reset.
func (r *registry) unregister(handle Handle) bool {
	if _, ok := r.byHandle[handle]; !ok {
		return false
	}
	delete(r.byHandle, handle)
	for i, p := range r.order {
		if p.handle == handle {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return len(r.order) == 0
}

// resolve maps an inbound handle back to its participant.
func (r *registry) resolve(handle Handle) (*participant, bool) {
	p, ok := r.byHandle[handle]
	return p, ok
}

// all returns participants in registration order.
func (r *registry) all() []*participant {
	return r.order
}

func (r *registry) size() int {
	return len(r.order)
}

// resetRanks clears every participant's rank at the close of a question
// window.
func (r *registry) resetRanks() {
	for _, p := range r.order {
		p.rank = 0
	}
}
