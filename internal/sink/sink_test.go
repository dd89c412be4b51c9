package sink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
)

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, b}

	m.ApplyVisual("n", effects.NeutralVisual)
	m.ApplyConnectionClass("l", "energized-exciter", energy.Exciter, true)
	m.TriggerIgnitionAnimation("n")
	m.EndIgnitionAnimation("n")

	for i, r := range []*Recorder{a, b} {
		if got := len(r.Calls()); got != 4 {
			t.Errorf("sink %d: expected 4 calls, got %d", i, got)
		}
		if r.Count(KindIgnitionEnded) != 1 {
			t.Errorf("sink %d: ignition end not forwarded", i)
		}
	}
}

func TestRecorderQueries(t *testing.T) {
	r := &Recorder{}
	r.ApplyVisual("n", effects.NeutralVisual)
	r.ApplyVisual("n", effects.Visual{Scale: 2})
	r.ApplyVisual("m", effects.NeutralVisual)

	if vs := r.Visuals("n"); len(vs) != 2 {
		t.Errorf("expected 2 visuals for n, got %d", len(vs))
	}
	if v, ok := r.Last("n"); !ok || v.Scale != 2 {
		t.Errorf("unexpected last visual %+v", v)
	}
	if _, ok := r.Last("zz"); ok {
		t.Error("Last on unknown node should be false")
	}
	r.Reset()
	if r.Count(KindVisual) != 0 {
		t.Error("Reset did not clear calls")
	}
}

func TestConsole(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	c := NewConsole(&buf, func() string { return "[t] " })

	c.ApplyVisual("b", effects.Visual{Scale: 1.35, Opacity: 1, Saturation: 1.6})
	c.ApplyConnectionClass("a-b", "energized-exciter", energy.Exciter, false)
	c.TriggerIgnitionAnimation("fuse")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "[t] ") || !strings.Contains(lines[0], "scale=1.35") {
		t.Errorf("unexpected visual line %q", lines[0])
	}
	if !strings.Contains(lines[1], "energized-exciter off") {
		t.Errorf("unexpected link line %q", lines[1])
	}
	if !strings.Contains(lines[2], "fuse") || !strings.Contains(lines[2], "ignited") {
		t.Errorf("unexpected ignition line %q", lines[2])
	}
}
