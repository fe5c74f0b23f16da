package server

import (
	"net"
	"net/http"
	"sync"
)

// socketRegistry tracks every open connection by an incrementing id so a
// hard restart can destroy them.
type socketRegistry struct {
	mu     sync.Mutex
	nextID uint64
	ids    map[net.Conn]uint64
	conns  map[uint64]net.Conn
}

func newSocketRegistry() *socketRegistry {
	return &socketRegistry{
		ids:   make(map[net.Conn]uint64),
		conns: make(map[uint64]net.Conn),
	}
}

// track is an http.Server ConnState hook.
func (r *socketRegistry) track(c net.Conn, state http.ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch state {
	case http.StateNew:
		if _, ok := r.ids[c]; ok {
			return
		}
		id := r.nextID
		r.nextID++
		r.ids[c] = id
		r.conns[id] = c
	case http.StateClosed, http.StateHijacked:
		if id, ok := r.ids[c]; ok {
			delete(r.ids, c)
			delete(r.conns, id)
		}
	}
}

func (r *socketRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// destroyAll closes every tracked connection and empties the registry.
func (r *socketRegistry) destroyAll() int {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[uint64]net.Conn)
	r.ids = make(map[net.Conn]uint64)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}
