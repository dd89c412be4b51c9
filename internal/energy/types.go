package energy

import (
	"fmt"
	"sort"
	"strings"
)

// NodeID identifies a node across all viewers.
type NodeID string

// ConnectionID identifies an explicit connection.
type ConnectionID string

// ViewerID groups nodes; effects never cross viewer boundaries.
type ViewerID string

// Activation is the lifecycle state of a node.
type Activation int

const (
	Inactive Activation = iota
	Activated
	Inert
)

func (a Activation) String() string {
	switch a {
	case Activated:
		return "activated"
	case Inactive:
		return "inactive"
	case Inert:
		return "inert"
	default:
		return "unknown"
	}
}

// ParseActivation accepts the lower-case names used in scene files.
// An empty string means inactive.
func ParseActivation(s string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "activated", "active":
		return Activated, nil
	case "inactive", "":
		return Inactive, nil
	case "inert":
		return Inert, nil
	}
	return Inactive, fmt.Errorf("unknown activation %q", s)
}

// EnergyType is one of the influencer tags a node can carry.
type EnergyType string

const (
	Exciter  EnergyType = "exciter"
	Dampener EnergyType = "dampener"
	Igniter  EnergyType = "igniter"
)

// AllTypes lists energy types in resolution order.
var AllTypes = []EnergyType{Exciter, Dampener, Igniter}

// ParseEnergyType validates a tag from a scene file.
func ParseEnergyType(s string) (EnergyType, error) {
	switch t := EnergyType(strings.ToLower(strings.TrimSpace(s))); t {
	case Exciter, Dampener, Igniter:
		return t, nil
	}
	return "", fmt.Errorf("unknown energy type %q", s)
}

// Node is the registry view of a circle on the canvas.
type Node struct {
	ID         NodeID
	Viewer     ViewerID
	X, Y       float64
	Activation Activation
	Types      []EnergyType
}

// Has reports whether the node carries tag t.
func (n Node) Has(t EnergyType) bool {
	for _, have := range n.Types {
		if have == t {
			return true
		}
	}
	return false
}

// Excites reports whether the node pushes toward the excited state.
// Igniters are exciters.
func (n Node) Excites() bool { return n.Has(Exciter) || n.Has(Igniter) }

// Dampens reports whether the node carries the dampener tag.
func (n Node) Dampens() bool { return n.Has(Dampener) }

// Influencer reports whether the node is an activated exciter or dampener.
func (n Node) Influencer() bool {
	return n.Activation == Activated && (n.Excites() || n.Dampens())
}

// Emits reports whether the node is an activated source of energy type t.
func (n Node) Emits(t EnergyType) bool {
	if n.Activation != Activated {
		return false
	}
	if t == Exciter {
		return n.Excites()
	}
	return n.Has(t)
}

// Connection is an explicit link between two nodes. Directional links only
// carry energy from A to B.
type Connection struct {
	ID          ConnectionID
	A, B        NodeID
	Directional bool
}

// Other returns the endpoint opposite id, and whether energy may flow that way.
func (c Connection) Other(id NodeID) (NodeID, bool) {
	switch id {
	case c.A:
		return c.B, true
	case c.B:
		return c.A, !c.Directional
	}
	return "", false
}

// SortNodes orders nodes by ID in place.
func SortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// SortConnections orders connections by ID in place.
func SortConnections(conns []Connection) {
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
}
