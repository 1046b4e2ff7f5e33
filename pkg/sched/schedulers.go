package sched

import (
	"context"
	"fmt"
	"math"

	"github.com/raymyers/ralph-kgen/pkg/diag"
)

// Linear keeps the program order
type Linear struct{}

func (Linear) Schedule(_ context.Context, in *Input) ([]int, error) {
	return identity(in.Len()), nil
}

// List is a greedy list scheduler. Within each scope range it repeatedly
// issues the ready node that the machine model can start earliest,
// preferring the node with the longest dependency chain behind it and then
// the lower position. A node is ready once its operands and the memory
// accesses it must follow are issued.
type List struct{}

func (List) Schedule(ctx context.Context, in *Input) ([]int, error) {
	n := in.Len()
	height := heights(in)
	preds := memoryOrder(in)
	for i, args := range in.Adjacency {
		preds[i] = append(preds[i], args...)
	}
	users := make([][]int, n)
	for i, args := range preds {
		for _, a := range args {
			users[a] = append(users[a], i)
		}
	}

	m := newMachine(in)
	order := make([]int, 0, n)
	scopes := in.Scopes
	if len(scopes) == 0 && n > 0 {
		scopes = []ScopeRange{{Start: 0, End: n, Weight: 1}}
	}
	for _, s := range scopes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pending := make(map[int]int, s.End-s.Start)
		var ready []int
		for i := s.Start; i < s.End; i++ {
			c := 0
			for _, a := range preds[i] {
				if a >= s.Start && a < s.End {
					c++
				}
			}
			pending[i] = c
			if c == 0 {
				ready = append(ready, i)
			}
		}
		for len(ready) > 0 {
			best, bestStart := 0, math.Inf(1)
			for k, i := range ready {
				start, _ := m.plan(i, false)
				b := ready[best]
				switch {
				case start < bestStart,
					start == bestStart && height[i] > height[b],
					start == bestStart && height[i] == height[b] && i < b:
					best, bestStart = k, start
				}
			}
			i := ready[best]
			ready = append(ready[:best], ready[best+1:]...)
			m.issue(i)
			order = append(order, i)
			for _, u := range users[i] {
				if u < s.Start || u >= s.End {
					continue
				}
				pending[u]--
				if pending[u] == 0 {
					ready = append(ready, u)
				}
			}
		}
		if len(order) != s.End {
			return nil, diag.New(diag.InvalidScheduleInput, "",
				"scope range [%d, %d) has a dependency cycle", s.Start, s.End)
		}
	}
	return order, nil
}

// heights returns the cost of the longest dependency chain starting at
// each node
func heights(in *Input) []float64 {
	h := make([]float64, in.Len())
	for i := in.Len() - 1; i >= 0; i-- {
		h[i] += in.Costs[i]
		for _, a := range in.Adjacency[i] {
			if a >= 0 && a < i {
				h[a] = math.Max(h[a], h[i])
			}
		}
	}
	return h
}

// Name returns the registered name of s
func Name(s Scheduler) string {
	switch s.(type) {
	case Linear, *Linear:
		return "linear"
	case List, *List:
		return "list"
	}
	return fmt.Sprintf("%T", s)
}

// Names lists the schedulers ByName knows
func Names() []string { return []string{"linear", "list"} }

// ByName returns the scheduler registered under name
func ByName(name string) (Scheduler, error) {
	switch name {
	case "linear":
		return Linear{}, nil
	case "list":
		return List{}, nil
	}
	return nil, fmt.Errorf("unknown scheduler %q (want one of %v)", name, Names())
}
