package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/msalah0e/ripple/internal/canvas"
	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
	"github.com/msalah0e/ripple/internal/engine"
	"github.com/msalah0e/ripple/internal/scene"
	"github.com/msalah0e/ripple/internal/sink"
	"github.com/msalah0e/ripple/internal/trace"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// frameInterval paces canvas redraws.
const frameInterval = 33 * time.Millisecond

func watchCmd() *cobra.Command {
	var (
		viewer string
		record bool
	)

	cmd := &cobra.Command{
		Use:   "watch <scene>",
		Short: "Interactive terminal view of a scene",
		Long: `Draw a scene in the terminal and drive cascades from the keyboard.

  enter/space  trigger a full reveal
  tab          select next node (shift+tab: previous)
  arrows/hjkl  move the selected node (live recompute)
  d            drop the selected node (full reveal)
  a            cycle activation of the selected node
  q/esc        quit`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: sceneCompletion,
		Run: func(cmd *cobra.Command, args []string) {
			doc, reg := loadScene(args[0])

			// The screen owns the terminal, so logs are dropped.
			opts := engineOptions(newLogger(io.Discard))

			screen, err := tcell.NewScreen()
			if err != nil {
				fail("terminal: %v", err)
			}
			if err := screen.Init(); err != nil {
				fail("terminal: %v", err)
			}
			defer screen.Fini()

			loop := clock.NewLoop(0)
			cv := canvas.New(screen, reg, viewerID(viewer))
			var out effects.Sink = cv
			if record {
				tw, err := trace.Create(trace.Path(currentConfig().TraceDir(), doc.Name, time.Now()), time.Now)
				if err != nil {
					screen.Fini()
					fail("trace: %v", err)
				}
				defer tw.Close()
				tw.Note("watch " + doc.Name)
				out = sink.Multi{cv, tw}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			w := &watcher{reg: reg, canvas: cv, engine: engine.New(viewerID(viewer), reg, out, loop, opts)}
			if err := w.run(ctx, screen, loop); err != nil {
				screen.Fini()
				fail("%v", err)
			}
		},
	}
	viewerFlag(cmd, &viewer)
	cmd.Flags().BoolVar(&record, "trace", false, "Record effects to a trace file")
	return cmd
}

// watcher applies keyboard actions to the scene. Every method runs on the
// loop goroutine.
type watcher struct {
	reg    *scene.Registry
	canvas *canvas.Canvas
	engine *engine.Engine
	quit   func()
}

func (w *watcher) run(ctx context.Context, screen tcell.Screen, loop *clock.Loop) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.quit = cancel

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := loop.Run(gctx)
		// Nothing else runs engine code once Run has returned.
		w.engine.Close()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// PollEvent returns nil once the screen is finalized.
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return nil
			}
			if err := loop.Post(func() { w.handle(ev, screen) }); err != nil {
				return nil
			}
		}
	})
	g.Go(func() error {
		defer loop.Stop()
		if err := loop.Do(gctx, func() { w.engine.Trigger(engine.ReasonManual) }); err != nil {
			return nil
		}
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				screen.Fini()
				return nil
			case <-ticker.C:
				_ = loop.Post(w.draw)
			}
		}
	})
	return g.Wait()
}

func (w *watcher) draw() {
	sel, ok := w.canvas.Selected()
	w.canvas.SetStatus(canvas.StatusLine(w.engine.Generation(), sel, ok))
	w.canvas.Draw()
}

func (w *watcher) handle(ev tcell.Event, screen tcell.Screen) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		screen.Sync()
	case *tcell.EventKey:
		w.apply(canvas.KeyAction(ev))
	}
}

func (w *watcher) apply(a canvas.Action) {
	sel, ok := w.canvas.Selected()
	switch a {
	case canvas.ActionQuit:
		if w.quit != nil {
			w.quit()
		}
	case canvas.ActionTrigger:
		w.engine.Trigger(engine.ReasonManual)
	case canvas.ActionNext:
		w.canvas.Select(1)
	case canvas.ActionPrev:
		w.canvas.Select(-1)
	case canvas.ActionDrop:
		if ok {
			w.engine.NodeDropped(sel.ID)
		}
	case canvas.ActionToggle:
		if ok && w.reg.SetActivation(sel.ID, nextActivation(sel.Activation)) {
			w.engine.TopologyChanged()
		}
	default:
		dx, dy, move := a.Delta()
		if !move || !ok {
			return
		}
		if err := w.reg.MoveNode(sel.ID, sel.X+dx, sel.Y+dy); err == nil {
			w.engine.NodeMoved(sel.ID)
		}
	}
}

func nextActivation(a energy.Activation) energy.Activation {
	switch a {
	case energy.Activated:
		return energy.Inactive
	case energy.Inactive:
		return energy.Inert
	}
	return energy.Activated
}
