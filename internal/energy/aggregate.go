package energy

// Source tells where a contribution came from.
type Source int

const (
	Proximity Source = iota
	Explicit
)

func (s Source) String() string {
	if s == Explicit {
		return "explicit"
	}
	return "proximity"
}

// ExplicitInfluence is the influence synthesized for a node reached over an
// explicit connection chain.
const ExplicitInfluence = 1.0

// Contribution is one influencer's pull on a target.
type Contribution struct {
	Source    Source
	Influence float64
	Igniter   bool
	From      NodeID
}

// ProximityContribution builds a distance-derived contribution.
func ProximityContribution(from NodeID, influence float64, igniter bool) Contribution {
	return Contribution{Source: Proximity, Influence: influence, Igniter: igniter, From: from}
}

// ExplicitContribution builds a connection-derived contribution at full influence.
func ExplicitContribution(from NodeID, igniter bool) Contribution {
	return Contribution{Source: Explicit, Influence: ExplicitInfluence, Igniter: igniter, From: from}
}

// NetEffect is the balance of all influencers reaching one node.
type NetEffect struct {
	Exciter        float64
	Dampener       float64
	Net            float64
	NearbyExciter  bool
	NearbyDampener bool
	IgniterAtMax   bool
}

// Neutral is the effect of a node nothing reaches.
var Neutral = NetEffect{}

// Aggregate folds contribution lists into a NetEffect. The strongest
// influencer of each kind wins; weak sources never add up.
func Aggregate(exciters, dampeners []Contribution) NetEffect {
	var ne NetEffect
	for _, c := range exciters {
		if c.Influence > ne.Exciter {
			ne.Exciter = c.Influence
		}
		if c.Igniter && c.Influence >= 1.0 {
			ne.IgniterAtMax = true
		}
	}
	for _, c := range dampeners {
		if c.Influence > ne.Dampener {
			ne.Dampener = c.Influence
		}
		if c.Igniter && c.Influence >= 1.0 {
			ne.IgniterAtMax = true
		}
	}
	ne.NearbyExciter = len(exciters) > 0
	ne.NearbyDampener = len(dampeners) > 0
	ne.Net = ne.Exciter - ne.Dampener
	return ne
}
