package energy

import "sort"

// Tracker records which energy types flow through which connections during
// the current cascade run. It is rebuilt from scratch on every run.
type Tracker struct {
	types    map[ConnectionID]map[EnergyType]bool
	counts   map[NodeID]map[EnergyType]int
	expected map[ConnectionID]map[EnergyType]float64
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.clear()
	return t
}

func (t *Tracker) clear() {
	t.types = make(map[ConnectionID]map[EnergyType]bool)
	t.counts = make(map[NodeID]map[EnergyType]int)
	t.expected = make(map[ConnectionID]map[EnergyType]float64)
}

// Reset drops all energization. fn, if non-nil, is called once for every
// (connection, type) pair that was energized, in connection then type order.
func (t *Tracker) Reset(fn func(ConnectionID, EnergyType)) {
	if fn != nil {
		for _, id := range t.Energized() {
			for _, et := range t.Types(id) {
				fn(id, et)
			}
		}
	}
	t.clear()
}

// Rebuild recomputes energization from the explicit-graph distances.
// Proximity never energizes a connection.
func (t *Tracker) Rebuild(conns []Connection, dist Distances) {
	t.clear()
	for _, c := range conns {
		for _, et := range AllTypes {
			if _, ok := dist.Connection(et, c.ID); !ok {
				continue
			}
			t.mark(c, et)
			if exp, ok := dist.Expected[et][c.ID]; ok {
				if t.expected[c.ID] == nil {
					t.expected[c.ID] = make(map[EnergyType]float64)
				}
				t.expected[c.ID][et] = exp
			}
		}
	}
}

func (t *Tracker) mark(c Connection, et EnergyType) {
	if t.types[c.ID] == nil {
		t.types[c.ID] = make(map[EnergyType]bool)
	}
	if t.types[c.ID][et] {
		return
	}
	t.types[c.ID][et] = true
	for _, id := range []NodeID{c.A, c.B} {
		if t.counts[id] == nil {
			t.counts[id] = make(map[EnergyType]int)
		}
		t.counts[id][et]++
	}
}

// Has reports whether connection id carries type et.
func (t *Tracker) Has(id ConnectionID, et EnergyType) bool {
	return t.types[id][et]
}

// Types returns the energy types flowing through id, in AllTypes order.
func (t *Tracker) Types(id ConnectionID) []EnergyType {
	var out []EnergyType
	for _, et := range AllTypes {
		if t.types[id][et] {
			out = append(out, et)
		}
	}
	return out
}

// Counts returns how many energized connections of each type touch id.
func (t *Tracker) Counts(id NodeID) map[EnergyType]int {
	out := make(map[EnergyType]int, len(t.counts[id]))
	for et, n := range t.counts[id] {
		out[et] = n
	}
	return out
}

// Expected returns the mean endpoint depth recorded for id and type et.
func (t *Tracker) Expected(id ConnectionID, et EnergyType) (float64, bool) {
	v, ok := t.expected[id][et]
	return v, ok
}

// Energized lists energized connection IDs in sorted order.
func (t *Tracker) Energized() []ConnectionID {
	ids := make([]ConnectionID, 0, len(t.types))
	for id := range t.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
