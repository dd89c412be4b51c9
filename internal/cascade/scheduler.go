// Package cascade stages effect application by hop depth and guards every
// deferred step with a generation token so superseded runs never write.
package cascade

import (
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/msalah0e/ripple/internal/clock"
	"github.com/msalah0e/ripple/internal/metrics"
)

// DefaultInterval is the delay between consecutive hop depths.
const DefaultInterval = 150 * time.Millisecond

// Step is one unit of deferred work.
type Step struct {
	Depth int
	Key   string
	Apply func()
}

// Group is the set of step keys revealed together.
type Group struct {
	Depth int
	Delay time.Duration
	Keys  []string
}

// Plan describes what a Start call scheduled.
type Plan struct {
	Generation uint64
	Groups     []Group
}

// Deepest returns the largest depth in the plan.
func (p Plan) Deepest() int {
	if len(p.Groups) == 0 {
		return 0
	}
	return p.Groups[len(p.Groups)-1].Depth
}

// Duration is the delay of the last group.
func (p Plan) Duration() time.Duration {
	if len(p.Groups) == 0 {
		return 0
	}
	return p.Groups[len(p.Groups)-1].Delay
}

// Scheduler owns one processing context's generation counter and its
// outstanding timers. It is not safe for concurrent use; drive it from the
// clock's goroutine.
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger

	generation uint64
	nextID     uint64
	timers     map[uint64]clock.Timer
	onCancel   []func()
}

// New creates a scheduler. interval <= 0 uses DefaultInterval.
func New(c clock.Clock, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		clock:    c,
		interval: interval,
		log:      logger,
		timers:   make(map[uint64]clock.Timer),
	}
}

// OnCancel registers a hook run by every Cancel, used to clear applied state
// of the run being abandoned.
func (s *Scheduler) OnCancel(fn func()) {
	s.onCancel = append(s.onCancel, fn)
}

// Generation returns the current run's token.
func (s *Scheduler) Generation() uint64 { return s.generation }

// Pending reports outstanding timers.
func (s *Scheduler) Pending() int { return len(s.timers) }

// Interval returns the per-hop delay.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Delay is the reveal delay for a depth. Depths up to 1 are immediate.
func (s *Scheduler) Delay(depth int) time.Duration {
	if depth <= 1 {
		return 0
	}
	return time.Duration(depth) * s.interval
}

// Cancel stops every outstanding timer and runs the cancel hooks.
// Calling it repeatedly is harmless.
func (s *Scheduler) Cancel() {
	s.stop()
	for _, fn := range s.onCancel {
		fn()
	}
}

func (s *Scheduler) stop() {
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Preview groups steps the way Start would, without running anything.
func (s *Scheduler) Preview(steps []Step) []Group {
	groups, _ := s.group(steps)
	return groups
}

func (s *Scheduler) group(steps []Step) ([]Group, [][]Step) {
	byDepth := make(map[int][]Step)
	for _, st := range steps {
		byDepth[st.Depth] = append(byDepth[st.Depth], st)
	}
	depths := make([]int, 0, len(byDepth))
	for d := range byDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	groups := make([]Group, 0, len(depths))
	batches := make([][]Step, 0, len(depths))
	for _, d := range depths {
		batch := byDepth[d]
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].Key < batch[j].Key })

		g := Group{Depth: d, Delay: s.Delay(d), Keys: make([]string, len(batch))}
		for i, st := range batch {
			g.Keys[i] = st.Key
		}
		groups = append(groups, g)
		batches = append(batches, batch)
	}
	return groups, batches
}

// Start abandons the current run and stages steps under a new generation.
// Groups at depth <= 1 run before Start returns.
func (s *Scheduler) Start(steps []Step) Plan {
	s.Cancel()
	return s.stage(steps)
}

// Patch supersedes the current run like Start but skips the cancel hooks.
// It is meant for runs that amend the applied state rather than replace it.
func (s *Scheduler) Patch(steps []Step) Plan {
	s.stop()
	return s.stage(steps)
}

func (s *Scheduler) stage(steps []Step) Plan {
	s.generation++
	gen := s.generation

	groups, batches := s.group(steps)
	for i, g := range groups {
		batch := batches[i]
		if g.Delay == 0 {
			s.runGroup(gen, batch)
			continue
		}
		s.Schedule(g.Delay, gen, func() { s.runGroup(gen, batch) })
	}

	plan := Plan{Generation: gen, Groups: groups}
	metrics.PlanDepth.Observe(float64(plan.Deepest()))
	s.log.Debug("cascade started", "generation", gen, "steps", len(steps), "groups", len(groups))
	return plan
}

// Schedule runs fn after delay if gen is still current at that moment.
func (s *Scheduler) Schedule(delay time.Duration, gen uint64, fn func()) {
	s.nextID++
	id := s.nextID
	s.timers[id] = s.clock.AfterFunc(delay, func() {
		delete(s.timers, id)
		if gen != s.generation {
			metrics.StaleCallbacks.Inc()
			s.log.Debug("stale cascade step dropped", "generation", gen, "current", s.generation)
			return
		}
		fn()
	})
}

func (s *Scheduler) runGroup(gen uint64, group []Step) {
	for _, st := range group {
		if gen != s.generation {
			return
		}
		s.run(st)
	}
}

func (s *Scheduler) run(st Step) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecoveredPanics.Inc()
			s.log.Error("cascade step panicked", "key", st.Key, "depth", st.Depth, "panic", r)
		}
	}()
	st.Apply()
}
