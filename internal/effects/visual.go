// Package effects turns net effects into visual updates and owns the one
// state change of the subsystem: ignition.
package effects

import (
	"math"

	"github.com/msalah0e/ripple/internal/energy"
)

// Visual is the intensity tuple a renderer applies to a node.
type Visual struct {
	Scale      float64 `json:"scale"`
	Opacity    float64 `json:"opacity"`
	Saturation float64 `json:"saturation"`
}

// NeutralVisual is the resting tuple.
var NeutralVisual = Visual{Scale: 1, Opacity: 1, Saturation: 1}

// Style holds the extremes reached at net = +1 and net = -1.
type Style struct {
	Excited  Visual
	Dampened Visual
}

// DefaultStyle matches the shipped config defaults.
func DefaultStyle() Style {
	return Style{
		Excited:  Visual{Scale: 1.35, Opacity: 1.0, Saturation: 1.6},
		Dampened: Visual{Scale: 0.8, Opacity: 0.45, Saturation: 0.25},
	}
}

// Visual maps a net effect onto the tuple. Positive nets move toward
// Excited, negative toward Dampened, proportionally to |net|.
func (s Style) Visual(ne energy.NetEffect) Visual {
	net := math.Max(-1, math.Min(1, ne.Net))
	switch {
	case net > 0:
		return lerp(NeutralVisual, s.Excited, net)
	case net < 0:
		return lerp(NeutralVisual, s.Dampened, -net)
	}
	return NeutralVisual
}

func lerp(a, b Visual, t float64) Visual {
	return Visual{
		Scale:      a.Scale + (b.Scale-a.Scale)*t,
		Opacity:    a.Opacity + (b.Opacity-a.Opacity)*t,
		Saturation: a.Saturation + (b.Saturation-a.Saturation)*t,
	}
}

// ConnectionClass is the class name a renderer toggles on an energized
// connection.
func ConnectionClass(et energy.EnergyType) string {
	return "energized-" + string(et)
}
