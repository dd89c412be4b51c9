// Package canvas renders a viewer's nodes and connections on a terminal
// screen and doubles as the engine's sink for the watch command.
package canvas

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
)

// Source is the read side of the registry the canvas draws from.
type Source interface {
	NodesForViewer(v energy.ViewerID) []energy.Node
	ConnectionsForViewer(v energy.ViewerID) []energy.Connection
}

// Canvas keeps the latest sink state per node and connection and paints it.
// It is not safe for concurrent use; call it from the loop goroutine.
type Canvas struct {
	screen tcell.Screen
	src    Source
	viewer energy.ViewerID

	visuals  map[energy.NodeID]effects.Visual
	links    map[energy.ConnectionID]map[energy.EnergyType]bool
	igniting map[energy.NodeID]bool
	selected int
	status   string
}

// New creates a canvas for viewer v drawing on screen.
func New(screen tcell.Screen, src Source, v energy.ViewerID) *Canvas {
	return &Canvas{
		screen:   screen,
		src:      src,
		viewer:   v,
		visuals:  make(map[energy.NodeID]effects.Visual),
		links:    make(map[energy.ConnectionID]map[energy.EnergyType]bool),
		igniting: make(map[energy.NodeID]bool),
	}
}

func (c *Canvas) ApplyVisual(id energy.NodeID, v effects.Visual) {
	c.visuals[id] = v
}

func (c *Canvas) ApplyConnectionClass(id energy.ConnectionID, class string, et energy.EnergyType, active bool) {
	if c.links[id] == nil {
		c.links[id] = make(map[energy.EnergyType]bool)
	}
	c.links[id][et] = active
}

func (c *Canvas) TriggerIgnitionAnimation(id energy.NodeID) { c.igniting[id] = true }

func (c *Canvas) EndIgnitionAnimation(id energy.NodeID) { delete(c.igniting, id) }

// SetStatus replaces the bottom status line.
func (c *Canvas) SetStatus(s string) { c.status = s }

// Select moves the selection by delta, wrapping around.
func (c *Canvas) Select(delta int) {
	n := len(c.src.NodesForViewer(c.viewer))
	if n == 0 {
		c.selected = 0
		return
	}
	c.selected = ((c.selected+delta)%n + n) % n
}

// Selected returns the selected node, if any.
func (c *Canvas) Selected() (energy.Node, bool) {
	nodes := c.src.NodesForViewer(c.viewer)
	if len(nodes) == 0 {
		return energy.Node{}, false
	}
	if c.selected >= len(nodes) {
		c.selected = len(nodes) - 1
	}
	return nodes[c.selected], true
}

// Visual returns the last visual applied to id.
func (c *Canvas) Visual(id energy.NodeID) (effects.Visual, bool) {
	v, ok := c.visuals[id]
	return v, ok
}

type layout struct {
	minX, minY    float64
	sx, sy        float64
	width, height int
}

func newLayout(nodes []energy.Node, w, h int) layout {
	l := layout{width: w, height: h}
	if len(nodes) == 0 {
		return l
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minX, maxX = math.Min(minX, n.X), math.Max(maxX, n.X)
		minY, maxY = math.Min(minY, n.Y), math.Max(maxY, n.Y)
	}
	// Leave room for labels on the right and the status line below.
	usableW := float64(max(w-12, 1))
	usableH := float64(max(h-3, 1))
	l.minX, l.minY = minX, minY
	if maxX > minX {
		l.sx = usableW / (maxX - minX)
	}
	if maxY > minY {
		l.sy = usableH / (maxY - minY)
	}
	return l
}

func (l layout) cell(n energy.Node) (int, int) {
	x, y := 1, 1
	if l.sx > 0 {
		x += int(math.Round((n.X - l.minX) * l.sx))
	}
	if l.sy > 0 {
		y += int(math.Round((n.Y - l.minY) * l.sy))
	}
	return x, y
}

// Draw repaints the whole screen.
func (c *Canvas) Draw() {
	c.screen.Clear()
	w, h := c.screen.Size()

	nodes := c.src.NodesForViewer(c.viewer)
	conns := c.src.ConnectionsForViewer(c.viewer)
	l := newLayout(nodes, w, h)

	at := make(map[energy.NodeID]energy.Node, len(nodes))
	for _, n := range nodes {
		at[n.ID] = n
	}

	for _, conn := range conns {
		a, okA := at[conn.A]
		b, okB := at[conn.B]
		if !okA || !okB {
			continue
		}
		x0, y0 := l.cell(a)
		x1, y1 := l.cell(b)
		style := LinkStyle(c.links[conn.ID])
		line(x0, y0, x1, y1, func(x, y int) {
			c.screen.SetContent(x, y, '·', nil, style)
		})
	}

	sel, hasSel := c.Selected()
	for _, n := range nodes {
		x, y := l.cell(n)
		v, ok := c.visuals[n.ID]
		if !ok {
			v = effects.NeutralVisual
		}
		style := NodeStyle(n, v)
		if c.igniting[n.ID] {
			style = style.Foreground(tcell.ColorRed).Reverse(true)
		}
		if hasSel && sel.ID == n.ID {
			style = style.Underline(true).Bold(true)
		}
		c.screen.SetContent(x, y, Glyph(n, v), nil, style)
		c.puts(x+2, y, string(n.ID), tcell.StyleDefault.Foreground(tcell.ColorGray))
	}

	c.puts(0, h-1, c.status, tcell.StyleDefault.Foreground(tcell.ColorSilver))
	c.screen.Show()
}

func (c *Canvas) puts(x, y int, s string, style tcell.Style) {
	for i, r := range []rune(s) {
		c.screen.SetContent(x+i, y, r, nil, style)
	}
}

// Glyph picks a rune by size: bigger nodes look heavier.
func Glyph(n energy.Node, v effects.Visual) rune {
	switch {
	case n.Activation == energy.Inert:
		return 'x'
	case v.Scale >= 1.2:
		return '@'
	case v.Scale > 1.02:
		return 'O'
	case v.Scale < 0.9:
		return '.'
	}
	return 'o'
}

// NodeStyle colors a node by its visual: warm when excited, cool when
// dampened, dimmed by opacity.
func NodeStyle(n energy.Node, v effects.Visual) tcell.Style {
	base := [3]float64{200, 200, 200}
	switch {
	case v.Saturation > 1:
		t := math.Min(v.Saturation-1, 1)
		base = [3]float64{200 + 55*t, 200, 200 - 200*t}
	case v.Saturation < 1:
		t := math.Min(1-v.Saturation, 1)
		base = [3]float64{200 - 100*t, 200 - 60*t, 200 + 55*t}
	}
	op := math.Max(0.2, math.Min(v.Opacity, 1))
	col := tcell.NewRGBColor(int32(base[0]*op), int32(base[1]*op), int32(base[2]*op))
	style := tcell.StyleDefault.Foreground(col)
	if n.Influencer() {
		style = style.Bold(true)
	}
	return style
}

// LinkStyle colors a connection by the energy flowing through it.
func LinkStyle(active map[energy.EnergyType]bool) tcell.Style {
	switch {
	case active[energy.Igniter]:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	case active[energy.Exciter] && active[energy.Dampener]:
		return tcell.StyleDefault.Foreground(tcell.ColorPurple)
	case active[energy.Exciter]:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case active[energy.Dampener]:
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	}
	return tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
}

// line walks the cells between two points, endpoints excluded.
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	x, y := x0, y0
	for {
		if (x != x0 || y != y0) && (x != x1 || y != y1) {
			plot(x, y)
		}
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// StatusLine formats the default status text.
func StatusLine(gen uint64, sel energy.Node, hasSel bool) string {
	name := "-"
	if hasSel {
		name = fmt.Sprintf("%s (%s)", sel.ID, sel.Activation)
	}
	return fmt.Sprintf(" gen %d | %s | tab select  arrows move  enter ripple  a activate  q quit", gen, name)
}
