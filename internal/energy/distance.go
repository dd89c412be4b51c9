package energy

import "sort"

// Distances holds the hop counts found by ResolveDistances, per energy type.
type Distances struct {
	Nodes       map[EnergyType]map[NodeID]int
	Connections map[EnergyType]map[ConnectionID]int
	// Origins names the source whose wave first touched each node.
	Origins map[EnergyType]map[NodeID]NodeID
	// Expected is the mean of both endpoint depths of every reached
	// connection. Diagnostic only.
	Expected map[EnergyType]map[ConnectionID]float64
}

func newDistances() Distances {
	d := Distances{
		Nodes:       make(map[EnergyType]map[NodeID]int, len(AllTypes)),
		Connections: make(map[EnergyType]map[ConnectionID]int, len(AllTypes)),
		Origins:     make(map[EnergyType]map[NodeID]NodeID, len(AllTypes)),
		Expected:    make(map[EnergyType]map[ConnectionID]float64, len(AllTypes)),
	}
	for _, t := range AllTypes {
		d.Nodes[t] = make(map[NodeID]int)
		d.Connections[t] = make(map[ConnectionID]int)
		d.Origins[t] = make(map[NodeID]NodeID)
		d.Expected[t] = make(map[ConnectionID]float64)
	}
	return d
}

// Node returns the depth of id for type t.
func (d Distances) Node(t EnergyType, id NodeID) (int, bool) {
	depth, ok := d.Nodes[t][id]
	return depth, ok
}

// Connection returns the depth of a connection for type t.
func (d Distances) Connection(t EnergyType, id ConnectionID) (int, bool) {
	depth, ok := d.Connections[t][id]
	return depth, ok
}

// Reached reports whether id sits at depth >= 1 for type t, meaning an
// influencer other than itself reaches it over explicit connections.
func (d Distances) Reached(t EnergyType, id NodeID) bool {
	depth, ok := d.Nodes[t][id]
	return ok && depth >= 1
}

// NodeStep is the earliest hop at which any energy type reaches id.
// Nodes only reached at depth 0 (sources) or not at all report 0.
func (d Distances) NodeStep(id NodeID) int {
	step := 0
	for _, t := range AllTypes {
		if depth, ok := d.Nodes[t][id]; ok && depth >= 1 && (step == 0 || depth < step) {
			step = depth
		}
	}
	return step
}

// ConnectionStep is the earliest hop at which any energy type crosses id.
func (d Distances) ConnectionStep(id ConnectionID) int {
	step := 0
	for _, t := range AllTypes {
		if depth, ok := d.Connections[t][id]; ok && (step == 0 || depth < step) {
			step = depth
		}
	}
	return step
}

// MaxDepth is the deepest hop recorded for any node.
func (d Distances) MaxDepth() int {
	deepest := 0
	for _, byNode := range d.Nodes {
		for _, depth := range byNode {
			if depth > deepest {
				deepest = depth
			}
		}
	}
	return deepest
}

type hop struct {
	conn ConnectionID
	to   NodeID
}

// ResolveDistances runs one breadth-first pass per energy type from every
// activated source of that type along explicit connections. Connections with
// an endpoint outside nodes are ignored, so callers pass a single viewer.
// Inert nodes are never entered. maxDepth <= 0 means unbounded.
func ResolveDistances(nodes []Node, conns []Connection, maxDepth int) Distances {
	dist := newDistances()

	byID := make(map[NodeID]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	adj := make(map[NodeID][]hop, len(nodes))
	sorted := append([]Connection(nil), conns...)
	SortConnections(sorted)
	for _, c := range sorted {
		a, okA := byID[c.A]
		b, okB := byID[c.B]
		if !okA || !okB || a.Viewer != b.Viewer {
			continue
		}
		adj[c.A] = append(adj[c.A], hop{conn: c.ID, to: c.B})
		if !c.Directional {
			adj[c.B] = append(adj[c.B], hop{conn: c.ID, to: c.A})
		}
	}

	ids := make([]NodeID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, t := range AllTypes {
		depths := dist.Nodes[t]
		connDepths := dist.Connections[t]
		origins := dist.Origins[t]

		var queue []NodeID
		for _, id := range ids {
			if byID[id].Emits(t) {
				depths[id] = 0
				origins[id] = id
				queue = append(queue, id)
			}
		}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			d := depths[current]
			if maxDepth > 0 && d >= maxDepth {
				continue
			}
			for _, h := range adj[current] {
				if byID[h.to].Activation == Inert {
					continue
				}
				seen, visited := depths[h.to]
				switch {
				case !visited:
					depths[h.to] = d + 1
					origins[h.to] = origins[current]
					queue = append(queue, h.to)
				case seen != d+1:
					continue
				}
				if _, ok := connDepths[h.conn]; !ok {
					connDepths[h.conn] = d + 1
				}
			}
		}

		for _, c := range sorted {
			if _, ok := connDepths[c.ID]; !ok {
				continue
			}
			dist.Expected[t][c.ID] = float64(depths[c.A]+depths[c.B]) / 2
		}
	}
	return dist
}
