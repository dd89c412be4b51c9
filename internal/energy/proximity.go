package energy

import "math"

// ProximityModel maps canvas distance to influence.
type ProximityModel struct {
	MinDistance float64 // at or below: MaxScale
	MaxDistance float64 // at or beyond: MinScale
	MinScale    float64
	MaxScale    float64
}

// DefaultProximity matches the shipped config defaults.
func DefaultProximity() ProximityModel {
	return ProximityModel{MinDistance: 60, MaxDistance: 240, MinScale: 0, MaxScale: 1}
}

// Influence returns the influence an influencer exerts at distance d.
// When MaxDistance <= MinDistance the ramp collapses into a step at MinDistance.
func (m ProximityModel) Influence(d float64) float64 {
	if d <= m.MinDistance {
		return m.MaxScale
	}
	if d >= m.MaxDistance {
		return m.MinScale
	}
	t := (d - m.MinDistance) / (m.MaxDistance - m.MinDistance)
	return m.MaxScale + t*(m.MinScale-m.MaxScale)
}

// Reach is the distance beyond which an influencer exerts nothing. It is
// infinite when MinScale is positive.
func (m ProximityModel) Reach() float64 {
	if m.MinScale > 0 {
		return math.Inf(1)
	}
	return math.Max(m.MinDistance, m.MaxDistance)
}

// Distance is the euclidean distance between two node centers.
func Distance(a, b Node) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Contributions collects the proximity pulls on target from candidates.
// Only activated influencers in the target's viewer count, a node never
// influences itself, and zero-influence candidates are left out.
func (m ProximityModel) Contributions(target Node, candidates []Node) (exciters, dampeners []Contribution) {
	for _, c := range candidates {
		if c.ID == target.ID || c.Viewer != target.Viewer || !c.Influencer() {
			continue
		}
		inf := m.Influence(Distance(target, c))
		if inf <= 0 {
			continue
		}
		if c.Excites() {
			exciters = append(exciters, ProximityContribution(c.ID, inf, c.Has(Igniter)))
		}
		if c.Dampens() {
			dampeners = append(dampeners, ProximityContribution(c.ID, inf, false))
		}
	}
	return exciters, dampeners
}

// Influencers filters nodes down to activated influencers.
func Influencers(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		if n.Influencer() {
			out = append(out, n)
		}
	}
	return out
}
