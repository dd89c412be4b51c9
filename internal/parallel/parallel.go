package parallel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/msalah0e/ripple/internal/ui"
)

// Result holds the outcome of a parallel task.
type Result struct {
	Name    string
	OK      bool
	Err     error
	Output  string
	Elapsed time.Duration
}

// Task is a function that runs in parallel.
type Task struct {
	Name string
	Fn   func(ctx context.Context) (string, error)
}

// Run executes tasks with at most concurrency in flight and reports each
// completion to progress (nil for silence). Results keep submission order.
// Tasks not yet started when ctx is cancelled fail with ctx.Err().
func Run(ctx context.Context, tasks []Task, concurrency int, progress io.Writer) []Result {
	if concurrency < 1 {
		concurrency = 4
	}
	if progress == nil {
		progress = io.Discard
	}

	results := make([]Result, len(tasks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			var (
				output string
				err    error
			)
			if err = gctx.Err(); err == nil {
				output, err = task.Fn(gctx)
			}
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			results[i] = Result{Name: task.Name, OK: err == nil, Err: err, Output: output, Elapsed: elapsed}
			if err != nil {
				fmt.Fprintf(progress, "  %s %s %s\n", ui.StatusIcon(false), task.Name, ui.Bad.Sprint(err))
				if output = strings.TrimSpace(output); output != "" {
					for _, line := range truncateLines(output, 5) {
						fmt.Fprintf(progress, "      %s\n", ui.Subtle.Sprint(line))
					}
				}
			} else {
				fmt.Fprintf(progress, "  %s %s %s\n", ui.StatusIcon(true), task.Name, ui.Subtle.Sprintf("%.0fms", float64(elapsed.Microseconds())/1000))
			}
			return nil // results carry the error
		})
	}

	_ = g.Wait()
	return results
}

// Failed counts unsuccessful results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}

// truncateLines splits text into lines and returns at most n lines.
func truncateLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return lines
	}
	out := lines[:n]
	out = append(out, fmt.Sprintf("... (%d more lines)", len(lines)-n))
	return out
}
