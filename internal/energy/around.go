package energy

import "math"

// Point is a canvas position.
type Point struct {
	X, Y float64
}

// Around returns the nodes whose effect can change when center moves: center
// itself, every node within hops explicit hops of it in either direction, and
// every node within the model's reach of center's current position or of any
// position in from.
func Around(center NodeID, nodes []Node, conns []Connection, hops int, model ProximityModel, from ...Point) map[NodeID]bool {
	byID := make(map[NodeID]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	c, ok := byID[center]
	if !ok {
		return map[NodeID]bool{}
	}
	area := map[NodeID]bool{center: true}

	adj := make(map[NodeID][]NodeID)
	for _, cn := range conns {
		if _, ok := byID[cn.A]; !ok {
			continue
		}
		if _, ok := byID[cn.B]; !ok {
			continue
		}
		adj[cn.A] = append(adj[cn.A], cn.B)
		adj[cn.B] = append(adj[cn.B], cn.A)
	}
	frontier := []NodeID{center}
	for depth := 0; depth < hops && len(frontier) > 0; depth++ {
		var next []NodeID
		for _, id := range frontier {
			for _, to := range adj[id] {
				if !area[to] {
					area[to] = true
					next = append(next, to)
				}
			}
		}
		frontier = next
	}

	reach := model.Reach()
	origins := append([]Point{{X: c.X, Y: c.Y}}, from...)
	for _, n := range nodes {
		if area[n.ID] || n.Viewer != c.Viewer {
			continue
		}
		for _, p := range origins {
			if math.Hypot(n.X-p.X, n.Y-p.Y) <= reach {
				area[n.ID] = true
				break
			}
		}
	}
	return area
}
