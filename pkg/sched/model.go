package sched

import (
	"math"
	"sort"

	"github.com/raymyers/ralph-kgen/pkg/catalog"
)

// machine simulates in-order issue on a processor with resource ports.
//
// An operation starts once its operands are done and the memory ports its
// operands are read through have served the loads. Each operand is read
// from the memory level its reuse distance falls into: the number of
// operations issued since the operand was produced, counted against the
// level capacities from the fastest level on. The operation then runs on
// the earliest free of its ports.
type machine struct {
	in       *Input
	portFree []float64
	end      []float64 // completion time by position
	step     []int     // issue step by position, -1 if not issued
	issued   int
	clock    float64 // start time of the last issued operation
}

func newMachine(in *Input) *machine {
	m := &machine{
		in:       in,
		portFree: make([]float64, in.NumPorts),
		end:      make([]float64, in.Len()),
		step:     make([]int, in.Len()),
	}
	for i := range m.step {
		m.step[i] = -1
	}
	return m
}

// level returns the memory level a value at reuse distance dist is read from
func (m *machine) level(dist int) (catalog.MemLevel, bool) {
	levels := m.in.MemLevels
	if len(levels) == 0 {
		return catalog.MemLevel{}, false
	}
	for _, l := range levels {
		if dist <= l.Capacity {
			return l, true
		}
		dist -= l.Capacity
	}
	return levels[len(levels)-1], true
}

// plan computes when node i would start and on which port, and applies it
// to the machine state if commit is set. port is -1 for portless nodes.
func (m *machine) plan(i int, commit bool) (start float64, port int) {
	start = m.clock
	loads := make(map[int]float64)
	for _, a := range m.in.Adjacency[i] {
		if m.step[a] < 0 {
			continue
		}
		start = math.Max(start, m.end[a])
		if l, ok := m.level(m.issued - m.step[a]); ok {
			loads[l.Port] += l.LoadLatency
		}
	}

	memPorts := make([]int, 0, len(loads))
	for p := range loads {
		memPorts = append(memPorts, p)
	}
	sort.Ints(memPorts)
	for _, p := range memPorts {
		free := math.Max(m.portFree[p]+loads[p], start)
		if commit {
			m.portFree[p] = free
		}
		start = free
	}

	port = -1
	best := math.Inf(1)
	for _, p := range m.in.Ports[i] {
		if m.portFree[p] < best {
			best, port = m.portFree[p], p
		}
	}
	if port >= 0 {
		start = math.Max(start, best)
	}
	return start, port
}

// issue commits node i
func (m *machine) issue(i int) {
	start, port := m.plan(i, true)
	end := start + m.in.Costs[i]
	if port >= 0 {
		m.portFree[port] = end
	}
	m.end[i] = end
	m.clock = start
	m.step[i] = m.issued
	m.issued++
}

// finish returns the time at which everything issued so far is done
func (m *machine) finish() float64 {
	t := 0.0
	for _, f := range m.portFree {
		t = math.Max(t, f)
	}
	for i, s := range m.step {
		if s >= 0 {
			t = math.Max(t, m.end[i])
		}
	}
	return t
}

// Estimate returns the simulated run time of order, with the time spent in
// each scope range multiplied by the range's weight.
func Estimate(in *Input, order []int) float64 {
	m := newMachine(in)
	if len(in.Scopes) == 0 {
		for _, i := range order {
			m.issue(i)
		}
		return m.finish()
	}
	total := 0.0
	for _, s := range in.Scopes {
		t0 := m.finish()
		for k := s.Start; k < s.End && k < len(order); k++ {
			m.issue(order[k])
		}
		total += s.Weight * (m.finish() - t0)
	}
	return total
}
