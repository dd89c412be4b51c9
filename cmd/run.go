package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
	"github.com/msalah0e/ripple/internal/engine"
	"github.com/msalah0e/ripple/internal/scene"
	"github.com/msalah0e/ripple/internal/sink"
	"github.com/msalah0e/ripple/internal/trace"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// virtualTick is how far the virtual clock advances per settle check.
const virtualTick = 10 * time.Millisecond

// maxVirtual bounds a virtual run that never settles.
const maxVirtual = 10 * time.Minute

func runCmd() *cobra.Command {
	var (
		virtual bool
		record  bool
	)

	cmd := &cobra.Command{
		Use:   "run <scene>",
		Short: "Trigger a cascade and print every effect as it lands",
		Long: `Trigger a full staged reveal and log effects until the scene settles.

  ripple run chain             # Real time
  ripple run chain --virtual   # Instant, deterministic timestamps
  ripple run ignite --trace    # Also record a compressed trace`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: sceneCompletion,
		Run: func(cmd *cobra.Command, args []string) {
			doc, reg := loadScene(args[0])
			opts := engineOptions(newLogger(os.Stderr))

			var (
				c      clock.Clock
				manual *clock.Manual
				loop   *clock.Loop
			)
			if virtual {
				manual = clock.NewManual(time.Unix(0, 0))
				c = manual
			} else {
				loop = clock.NewLoop(0)
				c = loop
			}

			var extra effects.Sink
			if record {
				path := trace.Path(currentConfig().TraceDir(), doc.Name, time.Now())
				tw, err := trace.Create(path, c.Now)
				if err != nil {
					fail("trace: %v", err)
				}
				tw.Note("run " + doc.Name)
				defer func() {
					if err := tw.Close(); err != nil {
						ui.Bad.Fprintf(os.Stderr, "ripple: trace: %v\n", err)
						return
					}
					fmt.Printf("\n  Trace: %s\n", path)
				}()
				extra = tw
			}

			ui.Banner(os.Stdout, "run "+doc.Name)
			var (
				res runResult
				err error
			)
			if manual != nil {
				res = runVirtual(os.Stdout, reg, manual, extra, opts)
			} else {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				res, err = runLive(ctx, os.Stdout, reg, loop, extra, opts)
			}
			if err != nil {
				fail("%v", err)
			}
			writeRunSummary(os.Stdout, res)
		},
	}
	cmd.Flags().BoolVar(&virtual, "virtual", false, "Run on a virtual clock and finish immediately")
	cmd.Flags().BoolVar(&record, "trace", false, "Record effects to a trace file")
	return cmd
}

type runResult struct {
	Elapsed     time.Duration
	Generations map[energy.ViewerID]uint64
	Settled     bool
}

func stampSince(c clock.Clock) func() string {
	start := c.Now()
	return func() string {
		return ui.Subtle.Sprintf("%8s ", c.Now().Sub(start).Round(time.Millisecond))
	}
}

func runSink(w io.Writer, c clock.Clock, extra effects.Sink) effects.Sink {
	out := sink.Multi{sink.NewConsole(w, stampSince(c))}
	if extra != nil {
		out = append(out, extra)
	}
	return out
}

func generations(p *engine.Pool) map[energy.ViewerID]uint64 {
	out := make(map[energy.ViewerID]uint64)
	for _, v := range p.Viewers() {
		out[v] = p.Engine(v).Generation()
	}
	return out
}

// runVirtual triggers every viewer and advances c until nothing is pending,
// then lets ignition animations expire.
func runVirtual(w io.Writer, reg *scene.Registry, c *clock.Manual, extra effects.Sink, opts engine.Options) runResult {
	start := c.Now()
	pool := engine.NewPool(reg, runSink(w, c, extra), c, opts)
	defer pool.Close()

	pool.TriggerAll(engine.ReasonManual)
	settle := func() {
		for !pool.Settled() && c.Now().Sub(start) < maxVirtual {
			c.Advance(virtualTick)
		}
	}
	settle()
	c.Advance(opts.IgnitionLifetime)
	settle()

	return runResult{
		Elapsed:     c.Now().Sub(start),
		Generations: generations(pool),
		Settled:     pool.Settled(),
	}
}

// runLive drives the pool on loop in real time until it settles or ctx ends.
func runLive(ctx context.Context, w io.Writer, reg *scene.Registry, loop *clock.Loop, extra effects.Sink, opts engine.Options) (runResult, error) {
	var (
		pool *engine.Pool
		res  runResult
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer loop.Stop()
		if err := loop.Do(gctx, func() {
			pool = engine.NewPool(reg, runSink(w, loop, extra), loop, opts)
			pool.TriggerAll(engine.ReasonManual)
		}); err != nil {
			return err
		}

		ticker := time.NewTicker(25 * time.Millisecond)
		defer ticker.Stop()
		var settledAt time.Time
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
			var settled bool
			if err := loop.Do(gctx, func() { settled = pool.Settled() }); err != nil {
				continue
			}
			switch {
			case !settled:
				settledAt = time.Time{}
			case settledAt.IsZero():
				settledAt = time.Now()
			case time.Since(settledAt) >= opts.IgnitionLifetime:
				return loop.Do(gctx, func() {
					res = runResult{
						Elapsed:     time.Since(start),
						Generations: generations(pool),
						Settled:     true,
					}
					pool.Close()
				})
			}
		}
	})
	err := g.Wait()
	if res.Generations == nil && ctx.Err() != nil {
		res.Elapsed = time.Since(start)
		return res, nil
	}
	return res, err
}

func writeRunSummary(w io.Writer, res runResult) {
	fmt.Fprintln(w)
	if !res.Settled {
		fmt.Fprintf(w, "  %s stopped after %s before settling\n", ui.WarnIcon(), res.Elapsed.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "  %s settled after %s", ui.StatusIcon(true), res.Elapsed.Round(time.Millisecond))
	for _, v := range sortedViewers(res.Generations) {
		fmt.Fprintf(w, "  %s", ui.Subtle.Sprintf("%s: %d runs", v, res.Generations[v]))
	}
	fmt.Fprintln(w)
}

func sortedViewers(m map[energy.ViewerID]uint64) []energy.ViewerID {
	return slices.Sorted(maps.Keys(m))
}
