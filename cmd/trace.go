package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/msalah0e/ripple/internal/trace"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func traceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded cascade traces",
		Long: `Traces are zstd-compressed JSON lines written by run --trace and watch --trace.

  ripple trace list
  ripple trace show chain-2026-01-02-150405.jsonl.zst
  ripple trace search <file> fuse`,
	}
	cmd.AddCommand(traceListCmd(), traceShowCmd(), traceSearchCmd())
	return cmd
}

func traceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List traces in the trace directory",
		Run: func(cmd *cobra.Command, args []string) {
			dir := currentConfig().TraceDir()
			names := traceNames(dir, "")
			if len(names) == 0 {
				fmt.Println(ui.Subtle.Sprintf("  No traces in %s", dir))
				return
			}
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				size := "-"
				if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
					size = fmt.Sprintf("%.1f KB", float64(info.Size())/1024)
				}
				rows = append(rows, []string{name, size})
			}
			ui.Table(os.Stdout, []string{"TRACE", "SIZE"}, rows)
		},
	}
}

func traceShowCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:               "show <file>",
		Short:             "Summarize a trace and print its last events",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: traceCompletion,
		Run: func(cmd *cobra.Command, args []string) {
			events := readTrace(args[0])
			writeTraceSummary(os.Stdout, args[0], events)
			if count > 0 && len(events) > count {
				events = events[len(events)-count:]
			}
			writeEvents(os.Stdout, events)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 40, "Events to show (0 for all)")
	return cmd
}

func traceSearchCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:               "search <file> <query>",
		Short:             "Find events by node, connection, class, or note",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: traceCompletion,
		Run: func(cmd *cobra.Command, args []string) {
			found := trace.Search(readTrace(args[0]), args[1], count)
			if len(found) == 0 {
				fmt.Println(ui.Subtle.Sprintf("  No events match %q", args[1]))
				return
			}
			writeEvents(os.Stdout, found)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Maximum matches (0 for all)")
	return cmd
}

// readTrace resolves bare names against the trace directory.
func readTrace(name string) []trace.Event {
	p := name
	if _, err := os.Stat(p); err != nil && !strings.ContainsRune(name, os.PathSeparator) {
		p = filepath.Join(currentConfig().TraceDir(), name)
	}
	events, err := trace.ReadFile(p)
	if err != nil {
		fail("trace: %v", err)
	}
	return events
}

func writeTraceSummary(w io.Writer, name string, events []trace.Event) {
	st := trace.Summarize(events)
	ui.Banner(w, "trace")
	ui.Field(w, "File", 9, filepath.Base(name))
	ui.Field(w, "Events", 9, fmt.Sprintf("%d", st.Events))
	ui.Field(w, "Nodes", 9, fmt.Sprintf("%d", st.Nodes))
	ui.Field(w, "Ignitions", 9, fmt.Sprintf("%d", st.Ignitions))
	ui.Field(w, "Span", 9, st.Span.Round(time.Millisecond).String())
	fmt.Fprintln(w)
}

func writeEvents(w io.Writer, events []trace.Event) {
	if len(events) == 0 {
		return
	}
	start := events[0].Timestamp
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			"+" + e.Timestamp.Sub(start).Round(time.Millisecond).String(),
			e.Kind,
			eventSubject(e),
			eventDetail(e),
		})
	}
	ui.Table(w, []string{"AT", "KIND", "SUBJECT", "DETAIL"}, rows)
}

func eventSubject(e trace.Event) string {
	if e.Connection != "" {
		return e.Connection
	}
	return e.Node
}

func eventDetail(e trace.Event) string {
	switch e.Kind {
	case trace.KindVisual:
		if e.Visual != nil {
			return fmt.Sprintf("scale=%.2f opacity=%.2f saturation=%.2f", e.Visual.Scale, e.Visual.Opacity, e.Visual.Saturation)
		}
	case trace.KindConnection:
		state := "off"
		if e.Active {
			state = "on"
		}
		return e.Class + " " + state
	case trace.KindNote:
		return e.Details
	}
	return ""
}
