package effects

import (
	"io"
	"log/slog"
	"time"

	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/energy"
	"github.com/msalah0e/ripple/internal/metrics"
)

// DefaultIgnitionLifetime is how long an ignition animation token lives.
const DefaultIgnitionLifetime = 600 * time.Millisecond

// Sink is the rendering collaborator.
type Sink interface {
	ApplyVisual(id energy.NodeID, v Visual)
	ApplyConnectionClass(id energy.ConnectionID, class string, et energy.EnergyType, active bool)
	TriggerIgnitionAnimation(id energy.NodeID)
}

// IgnitionEnder is implemented by sinks that want to know when an ignition
// token expires.
type IgnitionEnder interface {
	EndIgnitionAnimation(id energy.NodeID)
}

// Activator performs the inactive -> activated transition on the registry.
type Activator interface {
	SetActivation(id energy.NodeID, a energy.Activation) bool
}

// Options tune an Applicator.
type Options struct {
	Style            Style
	IgnitionLifetime time.Duration
	Logger           *slog.Logger
}

type token struct {
	seq   uint64
	timer clock.Timer
}

// Applicator pushes final values to the sink.
type Applicator struct {
	sink     Sink
	act      Activator
	clock    clock.Clock
	style    Style
	lifetime time.Duration
	log      *slog.Logger

	seq    uint64
	tokens map[energy.NodeID]token
}

// New creates an Applicator. A zero Style uses DefaultStyle.
func New(sink Sink, act Activator, c clock.Clock, opts Options) *Applicator {
	if opts.Style == (Style{}) {
		opts.Style = DefaultStyle()
	}
	if opts.IgnitionLifetime <= 0 {
		opts.IgnitionLifetime = DefaultIgnitionLifetime
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Applicator{
		sink:     sink,
		act:      act,
		clock:    c,
		style:    opts.Style,
		lifetime: opts.IgnitionLifetime,
		log:      opts.Logger,
		tokens:   make(map[energy.NodeID]token),
	}
}

// Style returns the style in use.
func (a *Applicator) Style() Style { return a.style }

// ApplyNode renders ne on n and ignites n when an igniter reaches it at full
// strength while it is inactive. It reports whether n was ignited.
func (a *Applicator) ApplyNode(n energy.Node, ne energy.NetEffect) bool {
	if n.Activation == energy.Inert {
		a.sink.ApplyVisual(n.ID, NeutralVisual)
		return false
	}

	ignited := false
	if ne.IgniterAtMax && n.Activation == energy.Inactive {
		ignited = a.ignite(n.ID)
	}
	a.sink.ApplyVisual(n.ID, a.style.Visual(ne))
	return ignited
}

// ApplyNeutral resets a node to the resting tuple.
func (a *Applicator) ApplyNeutral(id energy.NodeID) {
	a.sink.ApplyVisual(id, NeutralVisual)
}

// ApplyConnection toggles the energized class of a connection for et.
func (a *Applicator) ApplyConnection(id energy.ConnectionID, et energy.EnergyType, active bool) {
	a.sink.ApplyConnectionClass(id, ConnectionClass(et), et, active)
}

func (a *Applicator) ignite(id energy.NodeID) bool {
	if !a.act.SetActivation(id, energy.Activated) {
		return false
	}
	metrics.Ignitions.Inc()
	a.log.Info("node ignited", "node", id)

	if old, ok := a.tokens[id]; ok {
		old.timer.Stop()
	}
	a.seq++
	seq := a.seq
	a.sink.TriggerIgnitionAnimation(id)
	a.tokens[id] = token{
		seq: seq,
		timer: a.clock.AfterFunc(a.lifetime, func() {
			if cur, ok := a.tokens[id]; !ok || cur.seq != seq {
				return
			}
			delete(a.tokens, id)
			if ender, ok := a.sink.(IgnitionEnder); ok {
				ender.EndIgnitionAnimation(id)
			}
		}),
	}
	return true
}

// Igniting reports whether id holds a live ignition token.
func (a *Applicator) Igniting(id energy.NodeID) bool {
	_, ok := a.tokens[id]
	return ok
}

// Close expires every ignition token immediately.
func (a *Applicator) Close() {
	for id, tok := range a.tokens {
		tok.timer.Stop()
		delete(a.tokens, id)
		if ender, ok := a.sink.(IgnitionEnder); ok {
			ender.EndIgnitionAnimation(id)
		}
	}
}
