package engine

import (
	"sort"

	"github.com/msalah0e/ripple/internal/cascade"
	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
)

// ViewerRegistry is a Registry that can list its viewers.
type ViewerRegistry interface {
	Registry
	Viewers() []energy.ViewerID
}

// Pool keeps one Engine per viewer, created on first use.
type Pool struct {
	reg     ViewerRegistry
	sink    effects.Sink
	clock   clock.Clock
	opts    Options
	engines map[energy.ViewerID]*Engine
}

// NewPool creates an empty pool sharing reg, sink and clock across engines.
func NewPool(reg ViewerRegistry, sink effects.Sink, c clock.Clock, opts Options) *Pool {
	return &Pool{
		reg:     reg,
		sink:    sink,
		clock:   c,
		opts:    opts,
		engines: make(map[energy.ViewerID]*Engine),
	}
}

// Engine returns the engine for v, creating it if needed.
func (p *Pool) Engine(v energy.ViewerID) *Engine {
	e, ok := p.engines[v]
	if !ok {
		e = New(v, p.reg, p.sink, p.clock, p.opts)
		p.engines[v] = e
	}
	return e
}

// TriggerAll starts a full reveal on every viewer in the registry.
func (p *Pool) TriggerAll(reason string) map[energy.ViewerID]cascade.Plan {
	plans := make(map[energy.ViewerID]cascade.Plan)
	for _, v := range p.reg.Viewers() {
		plans[v] = p.Engine(v).Trigger(reason)
	}
	return plans
}

// NodeMoved routes a move to the node's viewer.
func (p *Pool) NodeMoved(id energy.NodeID) {
	if n, ok := p.reg.Node(id); ok {
		p.Engine(n.Viewer).NodeMoved(id)
	}
}

// NodeDropped routes a drop to the node's viewer.
func (p *Pool) NodeDropped(id energy.NodeID) {
	if n, ok := p.reg.Node(id); ok {
		p.Engine(n.Viewer).NodeDropped(id)
	}
}

// TopologyChanged restarts the viewer's cascade.
func (p *Pool) TopologyChanged(v energy.ViewerID) {
	p.Engine(v).TopologyChanged()
}

// Viewers lists viewers with a live engine, sorted.
func (p *Pool) Viewers() []energy.ViewerID {
	out := make([]energy.ViewerID, 0, len(p.engines))
	for v := range p.engines {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Pending sums outstanding timers across engines.
func (p *Pool) Pending() int {
	n := 0
	for _, e := range p.engines {
		n += e.Pending()
	}
	return n
}

// Settled reports whether every engine is idle.
func (p *Pool) Settled() bool {
	for _, e := range p.engines {
		if !e.Settled() {
			return false
		}
	}
	return true
}

// Close tears down every engine.
func (p *Pool) Close() {
	for _, e := range p.engines {
		e.Close()
	}
}
