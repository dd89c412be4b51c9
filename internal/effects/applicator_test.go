package effects

import (
	"math"
	"testing"
	"time"

	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/energy"
)

type fakeSink struct {
	visuals   map[energy.NodeID][]Visual
	classes   []string
	ignitions map[energy.NodeID]int
	ended     map[energy.NodeID]int
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		visuals:   make(map[energy.NodeID][]Visual),
		ignitions: make(map[energy.NodeID]int),
		ended:     make(map[energy.NodeID]int),
	}
}

func (f *fakeSink) ApplyVisual(id energy.NodeID, v Visual) {
	f.visuals[id] = append(f.visuals[id], v)
}

func (f *fakeSink) ApplyConnectionClass(id energy.ConnectionID, class string, et energy.EnergyType, active bool) {
	state := "off"
	if active {
		state = "on"
	}
	f.classes = append(f.classes, string(id)+" "+class+" "+state)
}

func (f *fakeSink) TriggerIgnitionAnimation(id energy.NodeID) { f.ignitions[id]++ }
func (f *fakeSink) EndIgnitionAnimation(id energy.NodeID)     { f.ended[id]++ }

type fakeRegistry map[energy.NodeID]energy.Activation

func (r fakeRegistry) SetActivation(id energy.NodeID, a energy.Activation) bool {
	if _, ok := r[id]; !ok {
		return false
	}
	r[id] = a
	return true
}

func closeTo(a, b Visual) bool {
	const eps = 1e-9
	return math.Abs(a.Scale-b.Scale) < eps &&
		math.Abs(a.Opacity-b.Opacity) < eps &&
		math.Abs(a.Saturation-b.Saturation) < eps
}

func TestStyle_Visual(t *testing.T) {
	s := Style{
		Excited:  Visual{Scale: 2, Opacity: 1, Saturation: 3},
		Dampened: Visual{Scale: 0.5, Opacity: 0.5, Saturation: 0},
	}
	tests := []struct {
		name string
		net  float64
		want Visual
	}{
		{"neutral", 0, NeutralVisual},
		{"full excite", 1, Visual{2, 1, 3}},
		{"half excite", 0.5, Visual{1.5, 1, 2}},
		{"full dampen", -1, Visual{0.5, 0.5, 0}},
		{"clamped", -3, Visual{0.5, 0.5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Visual(energy.NetEffect{Net: tt.net})
			if !closeTo(got, tt.want) {
				t.Errorf("Visual(%v) = %+v, want %+v", tt.net, got, tt.want)
			}
		})
	}
}

func TestApplyNode_InertAlwaysNeutral(t *testing.T) {
	sink := newFakeSink()
	reg := fakeRegistry{"x": energy.Inert}
	a := New(sink, reg, clock.NewManual(time.Unix(0, 0)), Options{})

	effects := []energy.NetEffect{
		{Exciter: 1, Net: 1, NearbyExciter: true, IgniterAtMax: true},
		{Dampener: 1, Net: -1, NearbyDampener: true},
		{Exciter: 0.3, Dampener: 0.1, Net: 0.2},
	}
	for _, ne := range effects {
		if a.ApplyNode(energy.Node{ID: "x", Activation: energy.Inert}, ne) {
			t.Error("inert node ignited")
		}
	}
	for _, v := range sink.visuals["x"] {
		if v != NeutralVisual {
			t.Errorf("inert node rendered %+v", v)
		}
	}
	if reg["x"] != energy.Inert {
		t.Error("inert node changed activation")
	}
}

func TestApplyNode_IgnitesOnce(t *testing.T) {
	m := clock.NewManual(time.Unix(0, 0))
	sink := newFakeSink()
	reg := fakeRegistry{"e": energy.Inactive}
	a := New(sink, reg, m, Options{IgnitionLifetime: 600 * time.Millisecond})

	ne := energy.Aggregate([]energy.Contribution{energy.ExplicitContribution("d", true)}, nil)
	n := energy.Node{ID: "e", Activation: reg["e"]}
	if !a.ApplyNode(n, ne) {
		t.Fatal("expected ignition")
	}
	if reg["e"] != energy.Activated {
		t.Errorf("expected e activated, got %v", reg["e"])
	}
	if !a.Igniting("e") {
		t.Error("expected live ignition token")
	}

	// Later ticks see the activated node.
	n.Activation = reg["e"]
	for i := 0; i < 3; i++ {
		if a.ApplyNode(n, ne) {
			t.Error("activated node ignited again")
		}
	}
	if sink.ignitions["e"] != 1 {
		t.Errorf("expected exactly one ignition animation, got %d", sink.ignitions["e"])
	}

	m.Advance(599 * time.Millisecond)
	if !a.Igniting("e") || sink.ended["e"] != 0 {
		t.Fatal("token expired early")
	}
	m.Advance(time.Millisecond)
	if a.Igniting("e") || sink.ended["e"] != 1 {
		t.Errorf("token should expire at 600ms (igniting=%v ended=%d)", a.Igniting("e"), sink.ended["e"])
	}
}

func TestApplyNode_BelowMaxDoesNotIgnite(t *testing.T) {
	sink := newFakeSink()
	reg := fakeRegistry{"e": energy.Inactive}
	a := New(sink, reg, clock.NewManual(time.Unix(0, 0)), Options{})

	ne := energy.Aggregate([]energy.Contribution{energy.ProximityContribution("d", 0.95, true)}, nil)
	if a.ApplyNode(energy.Node{ID: "e", Activation: energy.Inactive}, ne) {
		t.Error("ignited below full influence")
	}
	if reg["e"] != energy.Inactive {
		t.Error("activation changed")
	}
}

func TestApplyConnection_Class(t *testing.T) {
	sink := newFakeSink()
	a := New(sink, fakeRegistry{}, clock.NewManual(time.Unix(0, 0)), Options{})
	a.ApplyConnection("ab", energy.Dampener, true)
	a.ApplyConnection("ab", energy.Dampener, false)
	want := []string{"ab energized-dampener on", "ab energized-dampener off"}
	if len(sink.classes) != 2 || sink.classes[0] != want[0] || sink.classes[1] != want[1] {
		t.Errorf("classes = %v, want %v", sink.classes, want)
	}
}

func TestClose_EndsTokens(t *testing.T) {
	m := clock.NewManual(time.Unix(0, 0))
	sink := newFakeSink()
	reg := fakeRegistry{"e": energy.Inactive}
	a := New(sink, reg, m, Options{})
	a.ApplyNode(energy.Node{ID: "e"}, energy.NetEffect{Exciter: 1, Net: 1, IgniterAtMax: true})
	a.Close()
	if a.Igniting("e") || sink.ended["e"] != 1 {
		t.Error("Close should end live tokens")
	}
	if m.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", m.Pending())
	}
}
