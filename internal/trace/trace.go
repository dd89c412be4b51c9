// Package trace records sink calls as zstd-compressed JSON lines and reads
// them back for inspection.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
)

// Event kinds.
const (
	KindVisual        = "visual"
	KindConnection    = "connection"
	KindIgnition      = "ignition"
	KindIgnitionEnded = "ignition-ended"
	KindNote          = "note"
)

// Event is one line of a trace.
type Event struct {
	Timestamp  time.Time       `json:"timestamp"`
	Kind       string          `json:"kind"`
	Node       string          `json:"node,omitempty"`
	Connection string          `json:"connection,omitempty"`
	Class      string          `json:"class,omitempty"`
	Type       string          `json:"type,omitempty"`
	Active     bool            `json:"active,omitempty"`
	Visual     *effects.Visual `json:"visual,omitempty"`
	Details    string          `json:"details,omitempty"`
}

// Path returns a fresh trace file name for scene under dir.
func Path(dir, scene string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl.zst", scene, now.UTC().Format("2006-01-02-150405")))
}

// Writer is an effects.Sink that appends every call to a compressed log.
// Sink methods cannot fail, so the first write error is kept for Err.
type Writer struct {
	mu  sync.Mutex
	now func() time.Time
	c   io.Closer
	enc *zstd.Encoder
	w   *bufio.Writer
	err error
}

// Create opens path for writing, creating parent directories.
func Create(path string, now func() time.Time) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, now)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.c = f
	return w, nil
}

// NewWriter compresses onto out. now defaults to time.Now.
func NewWriter(out io.Writer, now func() time.Time) (*Writer, error) {
	if now == nil {
		now = time.Now
	}
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Writer{now: now, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (w *Writer) write(e Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil || w.w == nil {
		return
	}
	e.Timestamp = w.now()
	b, err := json.Marshal(e)
	if err != nil {
		w.err = err
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.err = err
		return
	}
	w.err = w.w.WriteByte('\n')
}

func (w *Writer) ApplyVisual(id energy.NodeID, v effects.Visual) {
	w.write(Event{Kind: KindVisual, Node: string(id), Visual: &v})
}

func (w *Writer) ApplyConnectionClass(id energy.ConnectionID, class string, et energy.EnergyType, active bool) {
	w.write(Event{Kind: KindConnection, Connection: string(id), Class: class, Type: string(et), Active: active})
}

func (w *Writer) TriggerIgnitionAnimation(id energy.NodeID) {
	w.write(Event{Kind: KindIgnition, Node: string(id)})
}

func (w *Writer) EndIgnitionAnimation(id energy.NodeID) {
	w.write(Event{Kind: KindIgnitionEnded, Node: string(id)})
}

// Note records a free-form marker such as a run boundary.
func (w *Writer) Note(details string) {
	w.write(Event{Kind: KindNote, Details: details})
}

// Err returns the first write error.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close flushes and closes the trace.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil && w.err == nil {
		w.err = err
	}
	if err := w.enc.Close(); err != nil && w.err == nil {
		w.err = err
	}
	if w.c != nil {
		if err := w.c.Close(); err != nil && w.err == nil {
			w.err = err
		}
	}
	w.w = nil
	return w.err
}

// Read decodes every event from r. Undecodable lines are skipped.
func Read(r io.Reader) ([]Event, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var events []Event
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if json.Unmarshal(line, &e) == nil {
			events = append(events, e)
		}
	}
	if err := sc.Err(); err != nil {
		return events, fmt.Errorf("trace: %w", err)
	}
	return events, nil
}

// ReadFile reads a trace from disk.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Search returns events whose kind, node, connection, class or details
// contain query, case-insensitively. count <= 0 means no limit.
func Search(events []Event, query string, count int) []Event {
	q := strings.ToLower(query)
	var results []Event
	for _, e := range events {
		if matches(e, q) {
			results = append(results, e)
			if count > 0 && len(results) >= count {
				break
			}
		}
	}
	return results
}

func matches(e Event, q string) bool {
	for _, field := range []string{e.Kind, e.Node, e.Connection, e.Class, e.Details} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Stats summarizes a trace.
type Stats struct {
	Events    int
	Nodes     int
	Ignitions int
	Span      time.Duration
}

// Summarize counts events and the distinct nodes they touch.
func Summarize(events []Event) Stats {
	s := Stats{Events: len(events)}
	nodes := make(map[string]bool)
	for _, e := range events {
		if e.Node != "" {
			nodes[e.Node] = true
		}
		if e.Kind == KindIgnition {
			s.Ignitions++
		}
	}
	s.Nodes = len(nodes)
	if len(events) > 1 {
		s.Span = events[len(events)-1].Timestamp.Sub(events[0].Timestamp)
	}
	return s
}
