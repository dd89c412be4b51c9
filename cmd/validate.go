package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/msalah0e/ripple/internal/parallel"
	"github.com/msalah0e/ripple/internal/scene"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check scene files against the schema",
		Long: `Validate scene files in parallel. With no arguments the built-in scenes
are checked. Directories are expanded to the YAML files they contain.

  ripple validate
  ripple validate scenes/ extra.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			tasks, err := validateTasks(args)
			if err != nil {
				fail("%v", err)
			}
			if len(tasks) == 0 {
				ui.Warn.Println("  No scene files found")
				return
			}
			ui.Banner(os.Stdout, "validate")
			if n := runValidation(cmd.Context(), os.Stdout, tasks, concurrency); n > 0 {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().IntVarP(&concurrency, "jobs", "j", 4, "Files checked at once")
	return cmd
}

// runValidation runs tasks and writes a summary. It returns the failure count.
func runValidation(ctx context.Context, w io.Writer, tasks []parallel.Task, concurrency int) int {
	results := parallel.Run(ctx, tasks, concurrency, w)
	failed := parallel.Failed(results)
	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "  %s %d of %d scenes invalid\n", ui.StatusIcon(false), failed, len(results))
	} else {
		fmt.Fprintf(w, "  %s %d scenes valid\n", ui.StatusIcon(true), len(results))
	}
	return failed
}

func validateTasks(args []string) ([]parallel.Task, error) {
	if len(args) == 0 {
		if scenesFS == nil {
			return nil, nil
		}
		return fsTasks(scenesFS, "scenes")
	}
	var tasks []parallel.Task
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			tasks = append(tasks, fileTask(arg))
			continue
		}
		more, err := fsTasks(os.DirFS(arg), ".")
		if err != nil {
			return nil, err
		}
		for i := range more {
			more[i].Name = filepath.Join(arg, more[i].Name)
		}
		tasks = append(tasks, more...)
	}
	return tasks, nil
}

func fsTasks(fsys fs.FS, dir string) ([]parallel.Task, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var tasks []parallel.Task
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		p := path.Join(dir, e.Name())
		tasks = append(tasks, parallel.Task{
			Name: e.Name(),
			Fn: func(context.Context) (string, error) {
				data, err := fs.ReadFile(fsys, p)
				if err != nil {
					return "", err
				}
				return checkScene(data)
			},
		})
	}
	return tasks, nil
}

func fileTask(p string) parallel.Task {
	return parallel.Task{
		Name: p,
		Fn: func(context.Context) (string, error) {
			data, err := os.ReadFile(p)
			if err != nil {
				return "", err
			}
			return checkScene(data)
		},
	}
}

// checkScene validates and builds a scene document.
func checkScene(data []byte) (string, error) {
	doc, err := scene.Parse(data)
	if err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Sprintf("%#v", verr), errors.New("schema violation")
		}
		return "", err
	}
	reg, err := doc.Build()
	if err != nil {
		return "", err
	}
	nodes, conns := reg.Len()
	return fmt.Sprintf("%s: %d nodes, %d connections, %d viewers", doc.Name, nodes, conns, len(reg.Viewers())), nil
}
