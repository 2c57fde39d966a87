package engine

import (
	"math/rand/v2"
	"sync"

	"dominicbreuker/goudt/pkg/native"
)

// registry maps handles to sockets. Ids grow monotonically from a random
// start and are never handed out twice, so a stale handle can not reach a
// newer socket.
type registry struct {
	mu      sync.RWMutex
	next    native.Handle
	sockets map[native.Handle]*socket
}

func newRegistry() *registry {
	return &registry{
		next:    native.Handle(rand.Int32N(1<<30) + 1),
		sockets: make(map[native.Handle]*socket),
	}
}

func (r *registry) add(s *socket) native.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.next
	r.next++
	s.id = h
	r.sockets[h] = s
	return h
}

func (r *registry) get(h native.Handle) (*socket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sockets[h]
	return s, ok
}

func (r *registry) remove(h native.Handle) {
	r.mu.Lock()
	delete(r.sockets, h)
	r.mu.Unlock()
}

func (r *registry) all() []*socket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*socket, 0, len(r.sockets))
	for _, s := range r.sockets {
		out = append(out, s)
	}
	return out
}
