package energy

import (
	"reflect"
	"testing"
)

func node(id string, act Activation, types ...EnergyType) Node {
	return Node{ID: NodeID(id), Viewer: "main", Activation: act, Types: types}
}

func link(id, a, b string) Connection {
	return Connection{ID: ConnectionID(id), A: NodeID(a), B: NodeID(b)}
}

func TestResolveDistances_Chain(t *testing.T) {
	nodes := []Node{
		node("A", Activated, Exciter),
		node("B", Inactive),
		node("C", Activated, Dampener),
	}
	conns := []Connection{link("ab", "A", "B"), link("bc", "B", "C")}

	d := ResolveDistances(nodes, conns, 0)

	wantExc := map[NodeID]int{"A": 0, "B": 1, "C": 2}
	if !reflect.DeepEqual(d.Nodes[Exciter], wantExc) {
		t.Errorf("exciter depths = %v, want %v", d.Nodes[Exciter], wantExc)
	}
	wantDamp := map[NodeID]int{"C": 0, "B": 1, "A": 2}
	if !reflect.DeepEqual(d.Nodes[Dampener], wantDamp) {
		t.Errorf("dampener depths = %v, want %v", d.Nodes[Dampener], wantDamp)
	}
	if len(d.Nodes[Igniter]) != 0 {
		t.Errorf("expected no igniter depths, got %v", d.Nodes[Igniter])
	}
	if got, _ := d.Connection(Exciter, "bc"); got != 2 {
		t.Errorf("expected bc exciter depth 2, got %d", got)
	}
	if got, _ := d.Connection(Dampener, "bc"); got != 1 {
		t.Errorf("expected bc dampener depth 1, got %d", got)
	}
	if got := d.Expected[Exciter]["bc"]; got != 1.5 {
		t.Errorf("expected mean endpoint depth 1.5, got %v", got)
	}
	if d.NodeStep("B") != 1 {
		t.Errorf("expected B step 1, got %d", d.NodeStep("B"))
	}
	if d.Origins[Exciter]["C"] != "A" {
		t.Errorf("expected C reached from A, got %q", d.Origins[Exciter]["C"])
	}
}

func TestResolveDistances_FirstTouchWins(t *testing.T) {
	// A-B-D and A-C-E-D: D is first touched at 2, the longer path is ignored.
	nodes := []Node{
		node("A", Activated, Exciter), node("B", Inactive), node("C", Inactive),
		node("D", Inactive), node("E", Inactive),
	}
	conns := []Connection{
		link("ab", "A", "B"), link("bd", "B", "D"),
		link("ac", "A", "C"), link("ce", "C", "E"), link("ed", "E", "D"),
	}
	d := ResolveDistances(nodes, conns, 0)

	if got := d.Nodes[Exciter]["D"]; got != 2 {
		t.Errorf("expected D depth 2, got %d", got)
	}
	if got := d.Nodes[Exciter]["E"]; got != 2 {
		t.Errorf("expected E depth 2, got %d", got)
	}
	// ed joins two depth-2 nodes; it is not on a shortest path.
	if _, ok := d.Connection(Exciter, "ed"); ok {
		t.Error("equal-depth connection should not be recorded")
	}
}

func TestResolveDistances_Directional(t *testing.T) {
	nodes := []Node{node("A", Activated, Exciter), node("B", Inactive), node("C", Inactive)}
	conns := []Connection{
		{ID: "ab", A: "A", B: "B", Directional: true},
		{ID: "cb", A: "C", B: "B", Directional: true},
	}
	d := ResolveDistances(nodes, conns, 0)
	if !d.Reached(Exciter, "B") {
		t.Error("B should be reached along A->B")
	}
	if d.Reached(Exciter, "C") {
		t.Error("C must not be reached against the C->B direction")
	}
}

func TestResolveDistances_InertBlocks(t *testing.T) {
	nodes := []Node{node("A", Activated, Exciter), node("X", Inert), node("B", Inactive)}
	conns := []Connection{link("ax", "A", "X"), link("xb", "X", "B")}
	d := ResolveDistances(nodes, conns, 0)
	if d.Reached(Exciter, "X") || d.Reached(Exciter, "B") {
		t.Errorf("inert node must not relay energy: %v", d.Nodes[Exciter])
	}
}

func TestResolveDistances_ViewerBoundary(t *testing.T) {
	a := node("A", Activated, Exciter)
	b := node("B", Inactive)
	b.Viewer = "other"
	d := ResolveDistances([]Node{a, b}, []Connection{link("ab", "A", "B")}, 0)
	if d.Reached(Exciter, "B") {
		t.Error("energy crossed a viewer boundary")
	}
}

func TestResolveDistances_MaxDepth(t *testing.T) {
	nodes := []Node{
		node("A", Activated, Exciter), node("B", Inactive), node("C", Inactive), node("D", Inactive),
	}
	conns := []Connection{link("ab", "A", "B"), link("bc", "B", "C"), link("cd", "C", "D")}
	d := ResolveDistances(nodes, conns, 2)
	if !d.Reached(Exciter, "C") {
		t.Error("C at depth 2 should be inside the sample")
	}
	if d.Reached(Exciter, "D") {
		t.Error("D at depth 3 should be outside the sample")
	}
	if d.MaxDepth() != 2 {
		t.Errorf("expected max depth 2, got %d", d.MaxDepth())
	}
}

func TestResolveDistances_IgniterAlsoExcites(t *testing.T) {
	nodes := []Node{node("D", Activated, Igniter), node("E", Inactive)}
	d := ResolveDistances(nodes, []Connection{link("de", "D", "E")}, 0)
	if !d.Reached(Exciter, "E") || !d.Reached(Igniter, "E") {
		t.Errorf("igniter should reach E as exciter and igniter: %+v", d.Nodes)
	}
}

func TestResolveDistances_Deterministic(t *testing.T) {
	nodes := []Node{
		node("A", Activated, Exciter), node("B", Inactive), node("C", Inactive), node("Z", Activated, Exciter),
	}
	conns := []Connection{link("zc", "Z", "C"), link("ab", "A", "B"), link("bc", "B", "C")}
	first := ResolveDistances(nodes, conns, 0)
	for i := 0; i < 20; i++ {
		again := ResolveDistances(nodes, conns, 0)
		if !reflect.DeepEqual(first, again) {
			t.Fatal("distance resolution is not deterministic")
		}
	}
}
