package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/energy"
	"github.com/msalah0e/ripple/internal/engine"
	"github.com/msalah0e/ripple/internal/scene"
	"github.com/msalah0e/ripple/internal/sink"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func planCmd() *cobra.Command {
	var viewer string

	cmd := &cobra.Command{
		Use:   "plan <scene>",
		Short: "Show the staged reveal a trigger would produce",
		Long: `Compute hop distances and net effects for a scene without applying them.

  ripple plan chain              # Built-in scene
  ripple plan ./my-scene.yaml    # Scene file
  ripple plan crowd --viewer side`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: sceneCompletion,
		Run: func(cmd *cobra.Command, args []string) {
			doc, reg := loadScene(args[0])
			writePlan(os.Stdout, doc, reg, viewerID(viewer), engineOptions(newLogger(os.Stderr)))
		},
	}
	viewerFlag(cmd, &viewer)
	return cmd
}

// writePlan settles a throwaway engine and reports its groups, node effects,
// and energized connections.
func writePlan(w io.Writer, doc *scene.Doc, reg *scene.Registry, v energy.ViewerID, opts engine.Options) {
	e := engine.New(v, reg, &sink.Recorder{}, clock.NewManual(time.Unix(0, 0)), opts)
	defer e.Close()

	nodes := reg.NodesForViewer(v)
	conns := reg.ConnectionsForViewer(v)
	snap, groups := e.Settle()

	ui.Banner(w, "plan")
	ui.Field(w, "Scene", 11, doc.Name)
	ui.Field(w, "Viewer", 11, string(v))
	ui.Field(w, "Nodes", 11, fmt.Sprintf("%d (%d influencers)", len(nodes), snap.Influencers))
	ui.Field(w, "Connections", 11, fmt.Sprintf("%d", len(conns)))
	if len(nodes) == 0 {
		fmt.Fprintln(w)
		ui.Warn.Fprintf(w, "  %s viewer %q has no nodes\n", ui.WarnIcon(), v)
		return
	}
	last := groups[len(groups)-1]
	ui.Field(w, "Reveal", 11, fmt.Sprintf("%d hops over %s", last.Depth, last.Delay))
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{fmt.Sprintf("%d", g.Depth), g.Delay.String(), fmt.Sprintf("%d", len(g.Keys)), summarizeKeys(g.Keys, 6)})
	}
	ui.Table(w, []string{"DEPTH", "DELAY", "STEPS", "KEYS"}, rows)
	fmt.Fprintln(w)

	rows = rows[:0]
	for _, n := range nodes {
		ne := snap.Effect(n.ID)
		rows = append(rows, []string{
			string(n.ID),
			n.Activation.String(),
			fmt.Sprintf("%.3f", ne.Exciter),
			fmt.Sprintf("%.3f", ne.Dampener),
			ui.Signed(ne.Net),
			hop(snap.Distances.NodeStep(n.ID)),
		})
	}
	ui.Table(w, []string{"NODE", "STATE", "EXCITE", "DAMPEN", "NET", "HOP"}, rows)

	tracker := energy.NewTracker()
	tracker.Rebuild(conns, snap.Distances)
	rows = rows[:0]
	for _, c := range conns {
		types := tracker.Types(c.ID)
		if len(types) == 0 {
			continue
		}
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		rows = append(rows, []string{string(c.ID), string(c.A), string(c.B), strings.Join(names, ","), hop(snap.Distances.ConnectionStep(c.ID))})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w)
		ui.Table(w, []string{"LINK", "FROM", "TO", "ENERGIZED", "HOP"}, rows)
	}
}

func hop(step int) string {
	if step == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", step)
}

func summarizeKeys(keys []string, n int) string {
	if len(keys) <= n {
		return strings.Join(keys, " ")
	}
	return strings.Join(keys[:n], " ") + fmt.Sprintf(" +%d", len(keys)-n)
}
