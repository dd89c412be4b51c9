// Package sink holds generic rendering collaborators: fan-out, an in-memory
// recorder and a colored console printer.
package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
)

// Multi forwards every call to each sink in order.
type Multi []effects.Sink

func (m Multi) ApplyVisual(id energy.NodeID, v effects.Visual) {
	for _, s := range m {
		s.ApplyVisual(id, v)
	}
}

func (m Multi) ApplyConnectionClass(id energy.ConnectionID, class string, et energy.EnergyType, active bool) {
	for _, s := range m {
		s.ApplyConnectionClass(id, class, et, active)
	}
}

func (m Multi) TriggerIgnitionAnimation(id energy.NodeID) {
	for _, s := range m {
		s.TriggerIgnitionAnimation(id)
	}
}

func (m Multi) EndIgnitionAnimation(id energy.NodeID) {
	for _, s := range m {
		if e, ok := s.(effects.IgnitionEnder); ok {
			e.EndIgnitionAnimation(id)
		}
	}
}

// Kind names a sink call.
type Kind string

const (
	KindVisual        Kind = "visual"
	KindConnection    Kind = "connection"
	KindIgnition      Kind = "ignition"
	KindIgnitionEnded Kind = "ignition-ended"
)

// Call is one recorded sink invocation.
type Call struct {
	Kind       Kind
	Node       energy.NodeID
	Connection energy.ConnectionID
	Visual     effects.Visual
	Class      string
	Type       energy.EnergyType
	Active     bool
}

// Recorder keeps every call in memory.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) add(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *Recorder) ApplyVisual(id energy.NodeID, v effects.Visual) {
	r.add(Call{Kind: KindVisual, Node: id, Visual: v})
}

func (r *Recorder) ApplyConnectionClass(id energy.ConnectionID, class string, et energy.EnergyType, active bool) {
	r.add(Call{Kind: KindConnection, Connection: id, Class: class, Type: et, Active: active})
}

func (r *Recorder) TriggerIgnitionAnimation(id energy.NodeID) {
	r.add(Call{Kind: KindIgnition, Node: id})
}

func (r *Recorder) EndIgnitionAnimation(id energy.NodeID) {
	r.add(Call{Kind: KindIgnitionEnded, Node: id})
}

// Calls returns a copy of everything recorded.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// Visuals returns the visual calls recorded for id, oldest first.
func (r *Recorder) Visuals(id energy.NodeID) []effects.Visual {
	var out []effects.Visual
	for _, c := range r.Calls() {
		if c.Kind == KindVisual && c.Node == id {
			out = append(out, c.Visual)
		}
	}
	return out
}

// Last returns the latest visual recorded for id.
func (r *Recorder) Last(id energy.NodeID) (effects.Visual, bool) {
	vs := r.Visuals(id)
	if len(vs) == 0 {
		return effects.Visual{}, false
	}
	return vs[len(vs)-1], true
}

// Count returns how many calls of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Kind == k {
			n++
		}
	}
	return n
}

var (
	excitedColor  = color.New(color.FgHiYellow)
	dampenedColor = color.New(color.FgHiBlue)
	neutralColor  = color.New(color.FgHiBlack)
	igniteColor   = color.New(color.FgHiRed, color.Bold)
	linkColor     = color.New(color.FgCyan)
)

// Console prints one colored line per call.
type Console struct {
	w   io.Writer
	now func() string
}

// NewConsole writes to w; stamp, if non-nil, prefixes each line.
func NewConsole(w io.Writer, stamp func() string) *Console {
	if stamp == nil {
		stamp = func() string { return "" }
	}
	return &Console{w: w, now: stamp}
}

func (c *Console) ApplyVisual(id energy.NodeID, v effects.Visual) {
	col := neutralColor
	switch {
	case v.Scale > 1:
		col = excitedColor
	case v.Scale < 1:
		col = dampenedColor
	}
	fmt.Fprintf(c.w, "%s%s %-12s scale=%.2f opacity=%.2f saturation=%.2f\n",
		c.now(), col.Sprint("●"), id, v.Scale, v.Opacity, v.Saturation)
}

func (c *Console) ApplyConnectionClass(id energy.ConnectionID, class string, et energy.EnergyType, active bool) {
	state := "off"
	if active {
		state = "on"
	}
	fmt.Fprintf(c.w, "%s%s %-12s %s %s\n", c.now(), linkColor.Sprint("─"), id, class, state)
}

func (c *Console) TriggerIgnitionAnimation(id energy.NodeID) {
	fmt.Fprintf(c.w, "%s%s %-12s ignited\n", c.now(), igniteColor.Sprint("✸"), id)
}
