package graph

import (
	"github.com/raymyers/ralph-kgen/pkg/catalog"
	"github.com/raymyers/ralph-kgen/pkg/diag"
)

// ScopeRange is the [Start, End) slice of a linear program that came from
// one scope
type ScopeRange struct {
	Start  int
	End    int
	Weight float64
	Depth  int
}

// Program is a linearized, dead-code-eliminated graph. Nodes are in a
// valid dependency order; Args holds the operand positions of each node
// with aliases already resolved.
type Program struct {
	Catalog *catalog.Catalog
	Nodes   []*Node
	Args    [][]int
	Scopes  []ScopeRange
}

// Len returns the number of nodes
func (p *Program) Len() int { return len(p.Nodes) }

// ScopeAt returns the scope range containing position i
func (p *Program) ScopeAt(i int) (ScopeRange, bool) {
	for _, s := range p.Scopes {
		if i >= s.Start && i < s.End {
			return s, true
		}
	}
	return ScopeRange{}, false
}

// WeightAt returns the weight of the scope containing position i, 0 if none
func (p *Program) WeightAt(i int) float64 {
	s, _ := p.ScopeAt(i)
	return s.Weight
}

// SelectUsed returns the origins of all nodes reachable from the nodes
// without a result. Operands are resolved through aliases before they are
// visited.
func (g *Graph) SelectUsed() (map[Origin]bool, error) {
	if g.err != nil {
		return nil, g.err
	}
	used := make(map[Origin]bool)
	var stack []*Node
	for o, n := range g.arena {
		if n.origin == Origin(o) && !n.HasResult() {
			stack = append(stack, n)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if used[n.origin] {
			continue
		}
		used[n.origin] = true
		for _, v := range n.operands {
			r, err := g.Resolve(v)
			if err != nil {
				g.fail(err)
				return nil, err
			}
			if !used[r.node.origin] {
				stack = append(stack, r.node)
			}
		}
	}
	return used, nil
}

// Linearize returns the live nodes, scope by scope in creation order.
// Creation order is already a dependency order, so this is a filter and
// not a sort. Every opened scope must have been closed.
func (g *Graph) Linearize() (*Program, error) {
	if g.err != nil {
		return nil, g.err
	}
	if d := g.Depth(); d > 0 {
		err := diag.New(diag.ScopeViolation, "", "%d scope(s) still open at linearization", d)
		g.fail(err)
		return nil, err
	}
	used, err := g.SelectUsed()
	if err != nil {
		return nil, err
	}

	p := &Program{Catalog: g.cat}
	for _, s := range g.scopes {
		start := len(p.Nodes)
		for _, n := range s.nodes {
			if used[n.origin] {
				p.Nodes = append(p.Nodes, n)
			}
		}
		p.Scopes = append(p.Scopes, ScopeRange{Start: start, End: len(p.Nodes), Weight: s.Weight, Depth: s.Depth})
	}

	pos := make(map[Origin]int, len(p.Nodes))
	for i, n := range p.Nodes {
		pos[n.origin] = i
	}
	p.Args = make([][]int, len(p.Nodes))
	for i, n := range p.Nodes {
		args := make([]int, len(n.operands))
		for j, v := range n.operands {
			r, err := g.Resolve(v)
			if err != nil {
				g.fail(err)
				return nil, err
			}
			args[j] = pos[r.node.origin]
		}
		p.Args[i] = args
	}
	return p, nil
}
