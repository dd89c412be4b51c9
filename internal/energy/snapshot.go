package energy

// Snapshot is the full effect picture of one viewer at one instant.
type Snapshot struct {
	Effects     map[NodeID]NetEffect
	Distances   Distances
	Influencers int
}

// Effect returns the effect computed for id, Neutral when absent.
func (s Snapshot) Effect(id NodeID) NetEffect {
	if ne, ok := s.Effects[id]; ok {
		return ne
	}
	return Neutral
}

// Compute gathers proximity and explicit contributions for every node and
// aggregates them. maxDepth bounds the explicit traversal (<= 0: unbounded).
// Inert nodes and viewers without a single activated influencer get Neutral.
func Compute(nodes []Node, conns []Connection, model ProximityModel, maxDepth int) Snapshot {
	influencers := Influencers(nodes)
	snap := Snapshot{
		Effects:     make(map[NodeID]NetEffect, len(nodes)),
		Influencers: len(influencers),
	}
	if len(influencers) == 0 {
		snap.Distances = newDistances()
		for _, n := range nodes {
			snap.Effects[n.ID] = Neutral
		}
		return snap
	}

	snap.Distances = ResolveDistances(nodes, conns, maxDepth)
	for _, n := range nodes {
		snap.Effects[n.ID] = EffectOf(n, influencers, model, snap.Distances)
	}
	return snap
}

// EffectOf aggregates the pulls on a single node given the activated
// influencers and already resolved explicit distances.
func EffectOf(n Node, influencers []Node, model ProximityModel, d Distances) NetEffect {
	if n.Activation == Inert || len(influencers) == 0 {
		return Neutral
	}
	exciters, dampeners := model.Contributions(n, influencers)
	exciters, dampeners = explicitContributions(n.ID, d, exciters, dampeners)
	return Aggregate(exciters, dampeners)
}

func explicitContributions(id NodeID, d Distances, exciters, dampeners []Contribution) ([]Contribution, []Contribution) {
	if d.Reached(Exciter, id) {
		ignited := d.Reached(Igniter, id)
		from := d.Origins[Exciter][id]
		if ignited {
			from = d.Origins[Igniter][id]
		}
		exciters = append(exciters, ExplicitContribution(from, ignited))
	}
	if d.Reached(Dampener, id) {
		dampeners = append(dampeners, ExplicitContribution(d.Origins[Dampener][id], false))
	}
	return exciters, dampeners
}
