package engine

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
	"github.com/msalah0e/ripple/internal/metrics"
	"github.com/msalah0e/ripple/internal/scene"
	"github.com/msalah0e/ripple/internal/sink"
)

const interval = 100 * time.Millisecond

// Nodes sit 1000 apart so only explicit links carry energy.
const chainDoc = `
name: chain
nodes:
  - {id: a, x: 0, y: 0, energy: [exciter]}
  - {id: b, x: 1000, y: 0}
  - {id: c, x: 2000, y: 0}
  - {id: d, x: 3000, y: 0}
connections:
  - {from: a, to: b}
  - {from: b, to: c}
  - {from: c, to: d}
`

func load(t *testing.T, doc string) *scene.Registry {
	t.Helper()
	d, err := scene.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse scene: %v", err)
	}
	reg, err := d.Build()
	if err != nil {
		t.Fatalf("build scene: %v", err)
	}
	return reg
}

func newEngine(t *testing.T, reg Registry, c clock.Clock) (*Engine, *sink.Recorder) {
	t.Helper()
	rec := &sink.Recorder{}
	e := New(scene.DefaultViewer, reg, rec, c, Options{
		StepInterval: interval,
		Debounce:     500 * time.Millisecond,
	})
	t.Cleanup(e.Close)
	return e, rec
}

func newManual() *clock.Manual { return clock.NewManual(time.Unix(0, 0)) }

func closeTo(a, b effects.Visual) bool {
	const eps = 1e-9
	return math.Abs(a.Scale-b.Scale) < eps &&
		math.Abs(a.Opacity-b.Opacity) < eps &&
		math.Abs(a.Saturation-b.Saturation) < eps
}

func excited() effects.Visual { return effects.DefaultStyle().Excited }

func lastVisual(t *testing.T, rec *sink.Recorder, id energy.NodeID) effects.Visual {
	t.Helper()
	v, ok := rec.Last(id)
	if !ok {
		t.Fatalf("no visual applied to %s", id)
	}
	return v
}

func TestTrigger_StagesByDepth(t *testing.T) {
	m := newManual()
	e, rec := newEngine(t, load(t, chainDoc), m)

	plan := e.Trigger(ReasonManual)
	if plan.Generation != 1 {
		t.Errorf("expected generation 1, got %d", plan.Generation)
	}
	if plan.Deepest() != 3 || plan.Duration() != 300*time.Millisecond {
		t.Errorf("unexpected plan depth %d duration %v", plan.Deepest(), plan.Duration())
	}

	if v := lastVisual(t, rec, "b"); !closeTo(v, excited()) {
		t.Errorf("b should be excited immediately, got %+v", v)
	}
	if v := lastVisual(t, rec, "a"); v != effects.NeutralVisual {
		t.Errorf("source should rest at neutral, got %+v", v)
	}
	if _, ok := rec.Last("c"); ok {
		t.Fatal("depth 2 applied before its delay")
	}

	m.Advance(199 * time.Millisecond)
	if _, ok := rec.Last("c"); ok {
		t.Fatal("depth 2 applied early")
	}
	m.Advance(time.Millisecond)
	if v := lastVisual(t, rec, "c"); !closeTo(v, excited()) {
		t.Errorf("c should be excited at 200ms, got %+v", v)
	}
	if _, ok := rec.Last("d"); ok {
		t.Fatal("depth 3 applied early")
	}
	m.Advance(100 * time.Millisecond)
	if v := lastVisual(t, rec, "d"); !closeTo(v, excited()) {
		t.Errorf("d should be excited at 300ms, got %+v", v)
	}
	if e.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", e.Pending())
	}
}

func TestTrigger_ConnectionClasses(t *testing.T) {
	m := newManual()
	e, rec := newEngine(t, load(t, chainDoc), m)

	e.Trigger(ReasonManual)
	classes := func() []sink.Call {
		var out []sink.Call
		for _, c := range rec.Calls() {
			if c.Kind == sink.KindConnection {
				out = append(out, c)
			}
		}
		return out
	}
	got := classes()
	if len(got) != 1 || got[0].Connection != "a-b" || got[0].Class != "energized-exciter" || !got[0].Active {
		t.Fatalf("expected only a-b energized immediately, got %+v", got)
	}

	m.Advance(300 * time.Millisecond)
	if n := len(classes()); n != 3 {
		t.Fatalf("expected 3 energized links after reveal, got %d", n)
	}
	if types := e.Tracker().Types("c-d"); len(types) != 1 || types[0] != energy.Exciter {
		t.Errorf("tracker types for c-d = %v", types)
	}
	if n := e.Tracker().Counts("b")[energy.Exciter]; n != 2 {
		t.Errorf("expected b to touch 2 exciter links, got %d", n)
	}

	rec.Reset()
	e.Trigger(ReasonManual)
	off := 0
	for _, c := range classes() {
		if !c.Active {
			off++
		}
	}
	if off != 3 {
		t.Errorf("a new run should clear all 3 previous classes, cleared %d", off)
	}
}

func TestTrigger_ExciterAndDampenerCancel(t *testing.T) {
	const doc = `
name: abc
nodes:
  - {id: a, x: 0, y: 0, energy: [exciter]}
  - {id: b, x: 1000, y: 0}
  - {id: c, x: 2000, y: 0, energy: [dampener]}
connections:
  - {from: a, to: b}
  - {from: b, to: c}
`
	e, rec := newEngine(t, load(t, doc), newManual())
	e.Trigger(ReasonManual)

	ne := e.Snapshot().Effect("b")
	if ne.Exciter != 1 || ne.Dampener != 1 || math.Abs(ne.Net) > 1e-9 {
		t.Errorf("unexpected net effect on b: %+v", ne)
	}
	if v := lastVisual(t, rec, "b"); v != effects.NeutralVisual {
		t.Errorf("b should look neutral, got %+v", v)
	}
	if got := e.Snapshot().Distances.NodeStep("b"); got != 1 {
		t.Errorf("b should sit at depth 1, got %d", got)
	}
}

func TestTrigger_NodeRemovedBeforeStep(t *testing.T) {
	const doc = `
name: fork
nodes:
  - {id: a, x: 0, y: 0, energy: [exciter]}
  - {id: b, x: 1000, y: 0}
  - {id: c1, x: 2000, y: 0}
  - {id: c2, x: 2000, y: 1000}
connections:
  - {from: a, to: b}
  - {from: b, to: c1}
  - {from: b, to: c2}
`
	m := newManual()
	reg := load(t, doc)
	e, rec := newEngine(t, reg, m)

	missingNodes := testutil.ToFloat64(metrics.MissingEntities.WithLabelValues("node"))
	missingLinks := testutil.ToFloat64(metrics.MissingEntities.WithLabelValues("connection"))

	e.Trigger(ReasonManual)
	if err := reg.RemoveNode("c1"); err != nil {
		t.Fatal(err)
	}
	m.Advance(200 * time.Millisecond)

	if _, ok := rec.Last("c1"); ok {
		t.Error("removed node received a visual")
	}
	if v := lastVisual(t, rec, "c2"); !closeTo(v, excited()) {
		t.Errorf("sibling in the same group should still apply, got %+v", v)
	}
	if d := testutil.ToFloat64(metrics.MissingEntities.WithLabelValues("node")) - missingNodes; d != 1 {
		t.Errorf("expected 1 missing node counted, got %v", d)
	}
	if d := testutil.ToFloat64(metrics.MissingEntities.WithLabelValues("connection")) - missingLinks; d != 1 {
		t.Errorf("expected 1 missing connection counted, got %v", d)
	}
}

// leakyClock never stops a timer, like one whose callback is already queued
// on the loop when the run is cancelled.
type leakyClock struct{ *clock.Manual }

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

func (c leakyClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	c.Manual.AfterFunc(d, fn)
	return leakyTimer{}
}

func TestTrigger_StaleGenerationWritesNothing(t *testing.T) {
	m := newManual()
	reg := load(t, chainDoc)
	e, rec := newEngine(t, reg, leakyClock{m})

	first := e.Trigger(ReasonManual)
	reg.SetActivation("a", energy.Inert)
	second := e.Trigger(ReasonTopology)
	if second.Generation <= first.Generation {
		t.Fatalf("generation did not increase: %d then %d", first.Generation, second.Generation)
	}

	rec.Reset()
	stale := testutil.ToFloat64(metrics.StaleCallbacks)
	m.Advance(time.Second)

	if calls := rec.Calls(); len(calls) != 0 {
		t.Errorf("superseded timers wrote %d calls: %+v", len(calls), calls)
	}
	if d := testutil.ToFloat64(metrics.StaleCallbacks) - stale; d != 2 {
		t.Errorf("expected 2 stale callbacks (depths 2 and 3), got %v", d)
	}
}

func TestTrigger_IgnitionOnceThenRetrigger(t *testing.T) {
	const doc = `
name: ignite
nodes:
  - {id: spark, x: 0, y: 0, energy: [igniter]}
  - {id: fuse, x: 1000, y: 0, activation: inactive, energy: [exciter]}
  - {id: wick, x: 2000, y: 0}
connections:
  - {from: spark, to: fuse}
  - {from: fuse, to: wick}
`
	m := newManual()
	reg := load(t, doc)
	e, rec := newEngine(t, reg, m)

	e.Trigger(ReasonManual)
	if n, _ := reg.Node("fuse"); n.Activation != energy.Activated {
		t.Fatalf("fuse should be activated, got %v", n.Activation)
	}
	if n := rec.Count(sink.KindIgnition); n != 1 {
		t.Fatalf("expected one ignition animation, got %d", n)
	}

	// The newly active exciter causes a debounced re-run.
	m.Advance(500 * time.Millisecond)
	if g := e.Generation(); g != 2 {
		t.Errorf("expected ignition re-trigger to start generation 2, got %d", g)
	}
	if d, _ := e.Snapshot().Distances.Node(energy.Exciter, "wick"); d != 1 {
		t.Errorf("wick should now be one hop from an exciter, got %d", d)
	}

	for i := 0; i < 3; i++ {
		e.Trigger(ReasonManual)
	}
	m.Advance(2 * time.Second)
	if n := rec.Count(sink.KindIgnition); n != 1 {
		t.Errorf("repeated runs re-ignited: %d animations", n)
	}
	if n := rec.Count(sink.KindIgnitionEnded); n != 1 {
		t.Errorf("expected the ignition token to expire once, got %d", n)
	}
}

func TestTrigger_NoInfluencersFallsBackToNeutral(t *testing.T) {
	const doc = `
name: quiet
nodes:
  - {id: a, x: 0, y: 0}
  - {id: b, x: 10, y: 0, activation: inactive, energy: [exciter]}
connections:
  - {from: a, to: b}
`
	e, rec := newEngine(t, load(t, doc), newManual())
	plan := e.Trigger(ReasonManual)

	if plan.Deepest() != 0 {
		t.Errorf("expected a flat plan, got depth %d", plan.Deepest())
	}
	for _, id := range []energy.NodeID{"a", "b"} {
		if v := lastVisual(t, rec, id); v != effects.NeutralVisual {
			t.Errorf("%s: expected neutral, got %+v", id, v)
		}
	}
	if n := rec.Count(sink.KindConnection); n != 0 {
		t.Errorf("expected no connection classes, got %d", n)
	}
}

func TestTrigger_ProximityAndInert(t *testing.T) {
	const doc = `
name: near
nodes:
  - {id: hot, x: 0, y: 0, energy: [exciter]}
  - {id: close, x: 30, y: 0}
  - {id: mid, x: 150, y: 0}
  - {id: rock, x: 0, y: 20, activation: inert}
  - {id: far, x: 900, y: 0}
`
	e, rec := newEngine(t, load(t, doc), newManual())
	e.Trigger(ReasonManual)

	if v := lastVisual(t, rec, "close"); !closeTo(v, excited()) {
		t.Errorf("close: expected full excitement, got %+v", v)
	}
	want := effects.DefaultStyle().Visual(energy.NetEffect{Net: 0.5})
	if v := lastVisual(t, rec, "mid"); !closeTo(v, want) {
		t.Errorf("mid: expected %+v, got %+v", want, v)
	}
	if v := lastVisual(t, rec, "rock"); v != effects.NeutralVisual {
		t.Errorf("inert node must stay neutral, got %+v", v)
	}
	if v := lastVisual(t, rec, "far"); v != effects.NeutralVisual {
		t.Errorf("far: expected neutral, got %+v", v)
	}
}

func TestNodeMoved_DebouncesLiveRecompute(t *testing.T) {
	m := newManual()
	reg := load(t, chainDoc)
	e, rec := newEngine(t, reg, m)

	e.NodeMoved("a")
	m.Advance(200 * time.Millisecond)
	e.NodeMoved("a")
	m.Advance(200 * time.Millisecond)
	e.NodeMoved("a")
	m.Advance(499 * time.Millisecond)
	if e.Generation() != 0 {
		t.Fatalf("live recompute ran before the debounce settled")
	}
	if e.Settled() {
		t.Error("a pending live run is not settled")
	}
	m.Advance(time.Millisecond)
	if e.Generation() != 1 {
		t.Fatalf("expected exactly one live run, generation %d", e.Generation())
	}
	if e.Pending() != 0 || !e.Settled() {
		t.Errorf("live runs apply immediately, found %d pending timers", e.Pending())
	}
	// Nothing had been revealed yet, so the first live run covers the graph.
	for _, id := range []energy.NodeID{"b", "c", "d"} {
		if v := lastVisual(t, rec, id); !closeTo(v, excited()) {
			t.Errorf("%s: expected excitement at full depth, got %+v", id, v)
		}
	}

	// A drop supersedes any pending live run with a full reveal.
	e.NodeMoved("a")
	plan := e.NodeDropped("a")
	m.Advance(time.Second)
	if e.Generation() != plan.Generation {
		t.Errorf("pending live run fired after the drop")
	}
}

// chainDoc plus a node far from everything.
const chainWithLoner = `
name: chain-loner
nodes:
  - {id: a, x: 0, y: 0, energy: [exciter]}
  - {id: b, x: 1000, y: 0}
  - {id: c, x: 2000, y: 0}
  - {id: d, x: 3000, y: 0}
  - {id: z, x: 5000, y: 5000}
connections:
  - {from: a, to: b}
  - {from: b, to: c}
  - {from: c, to: d}
`

func settledChain(t *testing.T, m *clock.Manual) (*Engine, *scene.Registry, *sink.Recorder) {
	t.Helper()
	reg := load(t, chainWithLoner)
	e, rec := newEngine(t, reg, m)
	e.Trigger(ReasonManual)
	m.Advance(time.Second)
	if !e.Settled() {
		t.Fatal("full reveal did not settle")
	}
	rec.Reset()
	return e, reg, rec
}

func TestNodeMoved_LeavesUnrelatedNodesAlone(t *testing.T) {
	m := newManual()
	e, reg, rec := settledChain(t, m)
	gen := e.Generation()

	if err := reg.MoveNode("z", 5200, 5000); err != nil {
		t.Fatal(err)
	}
	e.NodeMoved("z")
	m.Advance(time.Second)

	if e.Generation() != gen+1 {
		t.Errorf("expected one live run, generation %d", e.Generation())
	}
	for _, c := range rec.Calls() {
		if c.Node != "z" {
			t.Errorf("live move of z touched %+v", c)
		}
	}
	if v := lastVisual(t, rec, "z"); v != effects.NeutralVisual {
		t.Errorf("z is out of reach, got %+v", v)
	}
	if !e.Tracker().Has("c-d", energy.Exciter) {
		t.Error("c-d lost its energization")
	}
	if ne := e.Snapshot().Effect("d"); ne.Net <= 0 {
		t.Errorf("d should still be excited at depth 3, got %+v", ne)
	}
}

func TestNodeMoved_RecomputesAroundMovedNode(t *testing.T) {
	m := newManual()
	e, reg, rec := settledChain(t, m)

	// Dragging the exciter away from b changes nothing explicit: b stays
	// reached through a-b.
	if err := reg.MoveNode("a", 40, 0); err != nil {
		t.Fatal(err)
	}
	// z arrives right next to the exciter.
	if err := reg.MoveNode("z", 40, 30); err != nil {
		t.Fatal(err)
	}
	e.NodeMoved("a")
	e.NodeMoved("z")
	m.Advance(time.Second)

	if v := lastVisual(t, rec, "z"); !closeTo(v, excited()) {
		t.Errorf("z moved next to the exciter, got %+v", v)
	}
	if v := lastVisual(t, rec, "b"); !closeTo(v, excited()) {
		t.Errorf("b is one hop from a, got %+v", v)
	}
	for _, c := range rec.Calls() {
		if c.Node == "d" || (c.Kind == sink.KindConnection && !c.Active) {
			t.Errorf("live run reached beyond its area: %+v", c)
		}
	}
	if ne := e.Snapshot().Effect("d"); ne.Net <= 0 {
		t.Errorf("d should keep its excitement, got %+v", ne)
	}
}

func TestCancel_ResetsNodesAndLinks(t *testing.T) {
	m := newManual()
	e, _, rec := settledChain(t, m)

	e.Cancel()
	for _, id := range []energy.NodeID{"a", "b", "c", "d", "z"} {
		if v := lastVisual(t, rec, id); v != effects.NeutralVisual {
			t.Errorf("%s: expected neutral after Cancel, got %+v", id, v)
		}
	}
	if n := len(e.Tracker().Energized()); n != 0 {
		t.Errorf("expected no energized links, got %d", n)
	}
	if off := rec.Count(sink.KindConnection); off != 3 {
		t.Errorf("expected 3 links switched off, got %d", off)
	}
}

func TestSettle_DoesNotApply(t *testing.T) {
	e, rec := newEngine(t, load(t, chainDoc), newManual())

	snap, groups := e.Settle()
	if len(rec.Calls()) != 0 || e.Generation() != 0 {
		t.Fatal("Settle must not schedule or apply")
	}
	if snap.Influencers != 1 {
		t.Errorf("expected 1 influencer, got %d", snap.Influencers)
	}
	if len(groups) != 4 {
		t.Fatalf("expected groups for depths 0..3, got %+v", groups)
	}
	if groups[2].Delay != 200*time.Millisecond {
		t.Errorf("depth 2 delay = %v", groups[2].Delay)
	}

	// Determinism: the same inputs give the same staged schedule.
	_, again := e.Settle()
	for i := range groups {
		if len(groups[i].Keys) != len(again[i].Keys) {
			t.Fatalf("group %d differs", i)
		}
		for j := range groups[i].Keys {
			if groups[i].Keys[j] != again[i].Keys[j] {
				t.Errorf("group %d key %d: %s vs %s", i, j, groups[i].Keys[j], again[i].Keys[j])
			}
		}
	}
}

func TestClose(t *testing.T) {
	m := newManual()
	e, rec := newEngine(t, load(t, chainDoc), m)

	e.Trigger(ReasonManual)
	e.Close()
	if e.Pending() != 0 {
		t.Errorf("expected no pending timers after Close, got %d", e.Pending())
	}

	rec.Reset()
	e.Trigger(ReasonManual)
	e.NodeMoved("a")
	m.Advance(time.Second)
	if n := len(rec.Calls()); n != 0 {
		t.Errorf("closed engine applied %d calls", n)
	}
}
