// Package engine wires the energy computation, the cascade scheduler and the
// effects applicator into one processing context per viewer.
package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/msalah0e/ripple/internal/cascade"
	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
	"github.com/msalah0e/ripple/internal/metrics"
)

// DefaultLiveDepth is how many explicit hops around a moving node a live
// recompute revisits.
const DefaultLiveDepth = 2

// Trigger reasons, used as the metric label and in logs.
const (
	ReasonManual   = "manual"
	ReasonTopology = "topology"
	ReasonLive     = "live"
	ReasonDrop     = "drop"
	ReasonIgnition = "ignition"
)

// Registry is the host's view of nodes and connections.
type Registry interface {
	Node(id energy.NodeID) (energy.Node, bool)
	Connection(id energy.ConnectionID) (energy.Connection, bool)
	NodesForViewer(v energy.ViewerID) []energy.Node
	ConnectionsForViewer(v energy.ViewerID) []energy.Connection
	SetActivation(id energy.NodeID, a energy.Activation) bool
}

// Options tune an Engine. Zero values take the package defaults.
type Options struct {
	Proximity        energy.ProximityModel
	Style            effects.Style
	StepInterval     time.Duration
	Debounce         time.Duration
	IgnitionLifetime time.Duration
	LiveDepth        int
	Logger           *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Proximity == (energy.ProximityModel{}) {
		o.Proximity = energy.DefaultProximity()
	}
	if o.Debounce <= 0 {
		o.Debounce = cascade.DefaultDebounce
	}
	if o.LiveDepth <= 0 {
		o.LiveDepth = DefaultLiveDepth
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Engine runs cascades for a single viewer. Like the scheduler it owns, it
// must be driven from the clock's goroutine.
type Engine struct {
	viewer energy.ViewerID
	reg    Registry
	opts   Options
	log    *slog.Logger

	sched     *cascade.Scheduler
	live      *cascade.Debouncer
	retrigger *cascade.Debouncer
	tracker   *energy.Tracker
	apply     *effects.Applicator

	last      energy.Snapshot
	positions map[energy.NodeID]energy.Point
	moved     map[energy.NodeID]bool
	closed    bool
}

// New builds an engine for viewer v.
func New(v energy.ViewerID, reg Registry, sink effects.Sink, c clock.Clock, opts Options) *Engine {
	opts = opts.withDefaults()
	log := opts.Logger.With("viewer", string(v))

	e := &Engine{
		viewer:    v,
		reg:       reg,
		opts:      opts,
		log:       log,
		sched:     cascade.New(c, opts.StepInterval, log),
		live:      cascade.NewDebouncer(c, opts.Debounce),
		retrigger: cascade.NewDebouncer(c, opts.Debounce),
		tracker:   energy.NewTracker(),
		positions: make(map[energy.NodeID]energy.Point),
		moved:     make(map[energy.NodeID]bool),
		apply: effects.New(sink, reg, c, effects.Options{
			Style:            opts.Style,
			IgnitionLifetime: opts.IgnitionLifetime,
			Logger:           log,
		}),
	}
	e.sched.OnCancel(e.clearConnections)
	return e
}

// Viewer returns the viewer this engine serves.
func (e *Engine) Viewer() energy.ViewerID { return e.viewer }

// Generation returns the current cascade generation.
func (e *Engine) Generation() uint64 { return e.sched.Generation() }

// Pending reports outstanding cascade timers.
func (e *Engine) Pending() int { return e.sched.Pending() }

// Settled reports whether no staged step or debounced run is outstanding.
func (e *Engine) Settled() bool {
	return e.sched.Pending() == 0 && !e.live.Pending() && !e.retrigger.Pending()
}

// Snapshot returns the effects computed by the latest run, amended by any
// live recompute since.
func (e *Engine) Snapshot() energy.Snapshot { return e.last }

// Tracker exposes the energization bookkeeping of the latest run.
func (e *Engine) Tracker() *energy.Tracker { return e.tracker }

// Trigger starts a full staged reveal. It supersedes any pending live
// recompute.
func (e *Engine) Trigger(reason string) cascade.Plan {
	e.live.Stop()
	return e.run(reason, true)
}

// TopologyChanged starts a full reveal after connections or tags changed.
func (e *Engine) TopologyChanged() cascade.Plan {
	return e.Trigger(ReasonTopology)
}

// NodeMoved requests a debounced recompute of the area around id. Repeated
// calls within the debounce window coalesce into one that covers every node
// moved meanwhile. Nodes outside that area keep what they show.
func (e *Engine) NodeMoved(id energy.NodeID) {
	if e.closed {
		return
	}
	e.moved[id] = true
	e.live.Trigger(e.recomputeMoved)
}

// NodeDropped ends a drag with a full reveal.
func (e *Engine) NodeDropped(id energy.NodeID) cascade.Plan {
	return e.Trigger(ReasonDrop)
}

// Settle computes the current effects without scheduling or applying
// anything, and returns the groups a full reveal would stage.
func (e *Engine) Settle() (energy.Snapshot, []cascade.Group) {
	nodes := e.reg.NodesForViewer(e.viewer)
	conns := e.reg.ConnectionsForViewer(e.viewer)
	snap := energy.Compute(nodes, conns, e.opts.Proximity, 0)
	return snap, e.sched.Preview(e.steps(nodes, conns, snap, true))
}

// Cancel abandons the current run and any pending recompute, and returns
// every node and connection of the viewer to neutral.
func (e *Engine) Cancel() {
	e.halt()
	for _, n := range e.reg.NodesForViewer(e.viewer) {
		e.apply.ApplyNeutral(n.ID)
	}
	e.last = energy.Snapshot{}
}

func (e *Engine) halt() {
	e.live.Stop()
	e.retrigger.Stop()
	clear(e.moved)
	e.sched.Cancel()
}

// Close stops everything and expires ignition tokens without touching the
// applied visuals. The engine ignores further triggers.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.halt()
	e.apply.Close()
	e.closed = true
}

func (e *Engine) run(reason string, staged bool) cascade.Plan {
	if e.closed {
		return cascade.Plan{Generation: e.sched.Generation()}
	}
	clear(e.moved)
	nodes := e.reg.NodesForViewer(e.viewer)
	conns := e.reg.ConnectionsForViewer(e.viewer)
	snap := energy.Compute(nodes, conns, e.opts.Proximity, 0)

	metrics.CascadesStarted.WithLabelValues(reason).Inc()
	plan := e.sched.Start(e.steps(nodes, conns, snap, staged))
	// Start cleared the previous run's energization; record this one.
	e.tracker.Rebuild(conns, snap.Distances)
	e.last = snap
	e.remember(nodes)

	level := slog.LevelDebug
	if reason == ReasonTopology || reason == ReasonIgnition {
		level = slog.LevelInfo
	}
	e.log.Log(context.Background(), level, "cascade",
		"reason", reason,
		"generation", plan.Generation,
		"nodes", len(nodes),
		"influencers", snap.Influencers,
		"depth", plan.Deepest(),
	)
	return plan
}

// recomputeMoved re-applies only the nodes around the moved ones. Explicit
// distances do not depend on position, so the last full run's are reused.
// Without a settled full run to amend it falls back to an immediate full
// recompute.
func (e *Engine) recomputeMoved() {
	if e.closed {
		return
	}
	if e.last.Effects == nil || e.sched.Pending() > 0 {
		e.run(ReasonLive, false)
		return
	}
	nodes := e.reg.NodesForViewer(e.viewer)
	conns := e.reg.ConnectionsForViewer(e.viewer)

	area := make(map[energy.NodeID]bool)
	for id := range e.moved {
		var from []energy.Point
		if p, ok := e.positions[id]; ok {
			from = append(from, p)
		}
		for n := range energy.Around(id, nodes, conns, e.opts.LiveDepth, e.opts.Proximity, from...) {
			area[n] = true
		}
	}
	clear(e.moved)

	influencers := energy.Influencers(nodes)
	neutral := len(influencers) == 0
	var steps []cascade.Step
	for _, n := range nodes {
		if !area[n.ID] {
			continue
		}
		id := n.ID
		ne := energy.EffectOf(n, influencers, e.opts.Proximity, e.last.Distances)
		e.last.Effects[id] = ne
		steps = append(steps, cascade.Step{
			Key:   "node/" + string(id),
			Apply: func() { e.applyNode(id, ne, neutral) },
		})
	}
	for _, c := range conns {
		if !area[c.A] && !area[c.B] {
			continue
		}
		for _, et := range e.tracker.Types(c.ID) {
			id, et := c.ID, et
			steps = append(steps, cascade.Step{
				Key:   "link/" + string(id) + "/" + string(et),
				Apply: func() { e.applyConnection(id, et) },
			})
		}
	}

	metrics.CascadesStarted.WithLabelValues(ReasonLive).Inc()
	plan := e.sched.Patch(steps)
	e.remember(nodes)
	e.log.Debug("cascade",
		"reason", ReasonLive,
		"generation", plan.Generation,
		"nodes", len(area),
		"influencers", len(influencers),
	)
}

func (e *Engine) remember(nodes []energy.Node) {
	for _, n := range nodes {
		e.positions[n.ID] = energy.Point{X: n.X, Y: n.Y}
	}
}

func (e *Engine) steps(nodes []energy.Node, conns []energy.Connection, snap energy.Snapshot, staged bool) []cascade.Step {
	steps := make([]cascade.Step, 0, len(nodes)+len(conns))
	for _, n := range nodes {
		id := n.ID
		depth := 0
		if staged {
			depth = snap.Distances.NodeStep(id)
		}
		ne := snap.Effect(id)
		neutral := snap.Influencers == 0
		steps = append(steps, cascade.Step{
			Depth: depth,
			Key:   "node/" + string(id),
			Apply: func() { e.applyNode(id, ne, neutral) },
		})
	}
	for _, c := range conns {
		for _, et := range energy.AllTypes {
			d, ok := snap.Distances.Connection(et, c.ID)
			if !ok {
				continue
			}
			if !staged {
				d = 0
			}
			id, et := c.ID, et
			steps = append(steps, cascade.Step{
				Depth: d,
				Key:   "link/" + string(id) + "/" + string(et),
				Apply: func() { e.applyConnection(id, et) },
			})
		}
	}
	return steps
}

func (e *Engine) applyNode(id energy.NodeID, ne energy.NetEffect, neutral bool) {
	n, ok := e.reg.Node(id)
	if !ok || n.Viewer != e.viewer {
		metrics.MissingEntities.WithLabelValues("node").Inc()
		e.log.Debug("skipping missing node", "node", id)
		return
	}
	if neutral {
		e.apply.ApplyNeutral(id)
		return
	}
	if e.apply.ApplyNode(n, ne) && (n.Excites() || n.Dampens()) {
		// The node just became an influencer; the picture around it changed.
		e.retrigger.Trigger(func() { e.Trigger(ReasonIgnition) })
	}
}

func (e *Engine) applyConnection(id energy.ConnectionID, et energy.EnergyType) {
	if _, ok := e.reg.Connection(id); !ok {
		metrics.MissingEntities.WithLabelValues("connection").Inc()
		e.log.Debug("skipping missing connection", "connection", id)
		return
	}
	e.apply.ApplyConnection(id, et, true)
}

func (e *Engine) clearConnections() {
	e.tracker.Reset(func(id energy.ConnectionID, et energy.EnergyType) {
		e.apply.ApplyConnection(id, et, false)
	})
}
