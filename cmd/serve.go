package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/msalah0e/ripple/internal/cascade"
	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/energy"
	"github.com/msalah0e/ripple/internal/engine"
	"github.com/msalah0e/ripple/internal/metrics"
	"github.com/msalah0e/ripple/internal/scene"
	"github.com/msalah0e/ripple/internal/stream"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <scene>",
		Short: "Stream cascades to browser canvases over websocket",
		Long: `Serve a scene to websocket clients.

  GET  /ws        effect stream; clients may send {"type":"trigger"},
                  {"type":"move","node":"a","x":10,"y":20} or {"type":"drop","node":"a"}
  POST /trigger   start a full reveal on every viewer
  GET  /scene     current scene as YAML
  GET  /metrics   Prometheus metrics

  ripple serve chain
  ripple serve ./my-scene.yaml --addr :9000`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: sceneCompletion,
		Run: func(cmd *cobra.Command, args []string) {
			doc, reg := loadScene(args[0])
			if addr == "" {
				addr = currentConfig().Serve.Addr
			}
			logger := newLogger(os.Stderr)

			ui.Banner(os.Stdout, "serve "+doc.Name)
			ui.Field(os.Stdout, "Stream", 7, "ws://"+displayAddr(addr)+"/ws")
			ui.Field(os.Stdout, "Metrics", 7, "http://"+displayAddr(addr)+"/metrics")
			fmt.Println()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := serveScene(ctx, addr, doc.Name, reg, logger); err != nil {
				fail("%v", err)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

// server exposes a pool over HTTP. Engine work is funneled through do so it
// runs on the loop goroutine.
type server struct {
	name string
	reg  *scene.Registry
	pool *engine.Pool
	hub  *stream.Hub
	log  *slog.Logger
	do   func(ctx context.Context, fn func()) error
	post func(fn func()) error
}

func newServer(name string, reg *scene.Registry, loop *clock.Loop, logger *slog.Logger) *server {
	s := &server{name: name, reg: reg, log: logger, do: loop.Do, post: loop.Post}
	s.hub = stream.NewHub(logger, func(c stream.Command) {
		if err := s.post(func() { s.command(c) }); err != nil {
			logger.Debug("command dropped", "type", c.Type, "err", err)
		}
	})
	s.pool = engine.NewPool(reg, s.hub, loop, engineOptions(logger))
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", s.hub)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /trigger", s.handleTrigger)
	mux.HandleFunc("GET /scene", s.handleScene)
	return mux
}

// command applies a client command. Runs on the loop goroutine.
func (s *server) command(c stream.Command) {
	id := energy.NodeID(c.Node)
	switch c.Type {
	case "trigger":
		s.pool.TriggerAll(engine.ReasonManual)
	case "move":
		x, y, ok := c.Position()
		if !ok {
			s.log.Warn("move without position", "node", c.Node)
			return
		}
		if err := s.reg.MoveNode(id, x, y); err != nil {
			s.log.Warn("move rejected", "node", c.Node, "err", err)
			return
		}
		s.pool.NodeMoved(id)
	case "drop":
		if x, y, ok := c.Position(); ok {
			if err := s.reg.MoveNode(id, x, y); err != nil {
				s.log.Warn("drop rejected", "node", c.Node, "err", err)
				return
			}
		}
		s.pool.NodeDropped(id)
	default:
		s.log.Warn("unknown command", "type", c.Type)
	}
}

type triggerResponse struct {
	Viewer     string          `json:"viewer"`
	Generation uint64          `json:"generation"`
	Groups     []cascade.Group `json:"groups"`
}

func (s *server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var plans map[energy.ViewerID]cascade.Plan
	if err := s.do(r.Context(), func() { plans = s.pool.TriggerAll(engine.ReasonManual) }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	out := make([]triggerResponse, 0, len(plans))
	for _, v := range s.reg.Viewers() {
		if p, ok := plans[v]; ok {
			out = append(out, triggerResponse{Viewer: string(v), Generation: p.Generation, Groups: p.Groups})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *server) handleScene(w http.ResponseWriter, r *http.Request) {
	var (
		data []byte
		err  error
	)
	if derr := s.do(r.Context(), func() { data, err = scene.FromRegistry(s.name, s.reg).Encode() }); derr != nil {
		err = derr
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

func serveScene(ctx context.Context, addr, name string, reg *scene.Registry, logger *slog.Logger) error {
	loop := clock.NewLoop(0)
	s := newServer(name, reg, loop, logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := loop.Run(gctx)
		s.pool.Close()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("serving", "addr", addr, "scene", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		loop.Stop()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
