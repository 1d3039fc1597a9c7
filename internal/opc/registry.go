package opc

import "sync"

// Registry is the shared map of station name to live connection. Only the
// supervisor mutates it, under its reconciliation pass; the poller and the
// write gateway read from it to obtain handles.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{connections: make(map[string]*Connection)}
}

// Get returns the connection for a station name, or nil.
func (r *Registry) Get(stationName string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connections[stationName]
}

// Put registers a connection under its station name.
func (r *Registry) Put(stationName string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[stationName] = conn
}

// Remove drops a station's connection from the registry.
func (r *Registry) Remove(stationName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, stationName)
}

// Names returns the registered station names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.connections))
	for name := range r.connections {
		names = append(names, name)
	}
	return names
}

// Snapshot returns all registered connections.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		conns = append(conns, c)
	}
	return conns
}
