package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/msalah0e/ripple/internal/scene"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func scenesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scenes",
		Aliases: []string{"ls"},
		Short:   "List built-in scenes",
		Run: func(cmd *cobra.Command, args []string) {
			docs, err := builtinScenes()
			if err != nil {
				fail("%v", err)
			}
			writeSceneList(os.Stdout, docs)
		},
	}
	cmd.AddCommand(scenesExportCmd())
	return cmd
}

func scenesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "export <scene>",
		Short:             "Print a scene as YAML, ready to edit",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: sceneCompletion,
		Run: func(cmd *cobra.Command, args []string) {
			doc, reg := loadScene(args[0])
			out := scene.FromRegistry(doc.Name, reg)
			out.Description = doc.Description
			data, err := out.Encode()
			if err != nil {
				fail("%v", err)
			}
			_, _ = os.Stdout.Write(data)
		},
	}
}

func writeSceneList(w io.Writer, docs []*scene.Doc) {
	if len(docs) == 0 {
		fmt.Fprintln(w, ui.Subtle.Sprint("  No built-in scenes"))
		return
	}
	ui.Banner(w, "scenes")
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{d.Name, fmt.Sprintf("%d", len(d.Nodes)), fmt.Sprintf("%d", len(d.Connections)), d.Description})
	}
	ui.Table(w, []string{"NAME", "NODES", "LINKS", "DESCRIPTION"}, rows)
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Subtle.Sprint("  Try: ripple plan "+docs[0].Name))
}
