package scene

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/msalah0e/ripple/internal/energy"
)

var (
	// ErrNotFound is returned when a node or connection does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an ID is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrCrossViewer is returned when a connection would join two viewers.
	ErrCrossViewer = errors.New("connection crosses viewers")
)

// Registry is an in-memory store of nodes and connections. It is safe for
// concurrent use; renderers read it while the loop mutates it.
type Registry struct {
	mu    sync.RWMutex
	nodes map[energy.NodeID]energy.Node
	conns map[energy.ConnectionID]energy.Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[energy.NodeID]energy.Node),
		conns: make(map[energy.ConnectionID]energy.Connection),
	}
}

func clone(n energy.Node) energy.Node {
	n.Types = append([]energy.EnergyType(nil), n.Types...)
	return n
}

// AddNode inserts n. IDs are unique across viewers.
func (r *Registry) AddNode(n energy.Node) error {
	if n.ID == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[n.ID]; exists {
		return fmt.Errorf("node %s: %w", n.ID, ErrDuplicate)
	}
	r.nodes[n.ID] = clone(n)
	return nil
}

// Connect adds c. Both endpoints must exist and share a viewer.
func (r *Registry) Connect(c energy.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.ID]; exists {
		return fmt.Errorf("connection %s: %w", c.ID, ErrDuplicate)
	}
	a, ok := r.nodes[c.A]
	if !ok {
		return fmt.Errorf("connection %s endpoint %s: %w", c.ID, c.A, ErrNotFound)
	}
	b, ok := r.nodes[c.B]
	if !ok {
		return fmt.Errorf("connection %s endpoint %s: %w", c.ID, c.B, ErrNotFound)
	}
	if a.Viewer != b.Viewer {
		return fmt.Errorf("connection %s (%s/%s): %w", c.ID, a.Viewer, b.Viewer, ErrCrossViewer)
	}
	if c.A == c.B {
		return fmt.Errorf("connection %s links %s to itself", c.ID, c.A)
	}
	r.conns[c.ID] = c
	return nil
}

// RemoveNode deletes a node and every connection touching it.
func (r *Registry) RemoveNode(id energy.NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[id]; !ok {
		return fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	delete(r.nodes, id)

	for cid, c := range r.conns {
		if c.A == id || c.B == id {
			delete(r.conns, cid)
		}
	}
	return nil
}

// Disconnect deletes a connection.
func (r *Registry) Disconnect(id energy.ConnectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return fmt.Errorf("connection %s: %w", id, ErrNotFound)
	}
	delete(r.conns, id)
	return nil
}

// MoveNode sets a node's position.
func (r *Registry) MoveNode(id energy.NodeID, x, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	n.X, n.Y = x, y
	r.nodes[id] = n
	return nil
}

// SetTypes replaces a node's energy tags.
func (r *Registry) SetTypes(id energy.NodeID, types []energy.EnergyType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	n.Types = append([]energy.EnergyType(nil), types...)
	r.nodes[id] = n
	return nil
}

// SetActivation changes a node's activation and reports whether it exists.
func (r *Registry) SetActivation(id energy.NodeID, a energy.Activation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return false
	}
	n.Activation = a
	r.nodes[id] = n
	return true
}

// Node returns a copy of the node with the given ID.
func (r *Registry) Node(id energy.NodeID) (energy.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return energy.Node{}, false
	}
	return clone(n), true
}

// Connection returns the connection with the given ID.
func (r *Registry) Connection(id energy.ConnectionID) (energy.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// NodesForViewer returns the viewer's nodes sorted by ID.
func (r *Registry) NodesForViewer(v energy.ViewerID) []energy.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []energy.Node
	for _, n := range r.nodes {
		if n.Viewer == v {
			out = append(out, clone(n))
		}
	}
	energy.SortNodes(out)
	return out
}

// ConnectionsForViewer returns connections whose endpoints belong to v,
// sorted by ID.
func (r *Registry) ConnectionsForViewer(v energy.ViewerID) []energy.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []energy.Connection
	for _, c := range r.conns {
		if r.nodes[c.A].Viewer == v {
			out = append(out, c)
		}
	}
	energy.SortConnections(out)
	return out
}

// Viewers returns every viewer with at least one node, sorted.
func (r *Registry) Viewers() []energy.ViewerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[energy.ViewerID]bool)
	for _, n := range r.nodes {
		seen[n.Viewer] = true
	}
	out := make([]energy.ViewerID, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the node and connection counts.
func (r *Registry) Len() (nodes, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes), len(r.conns)
}
