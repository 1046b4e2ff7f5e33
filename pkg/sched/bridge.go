// Package sched projects a linearized kernel program into the integer
// indexed form a scheduler works on, runs a scheduler over it and checks
// the execution order it returns.
//
// The projection is a pure function of the program: node i of the input is
// position i of the program, operands are positions, and op ids and ports
// are those of the catalog.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/raymyers/ralph-kgen/pkg/catalog"
	"github.com/raymyers/ralph-kgen/pkg/diag"
	"github.com/raymyers/ralph-kgen/pkg/graph"
)

// ScopeRange is a [Start, End) range of positions with its expected
// execution count
type ScopeRange struct {
	Start  int
	End    int
	Weight float64
}

// Access is how a node touches memory
type Access struct {
	Write bool   // a store or a raw statement
	Read  bool   // a load or a raw expression
	Base  string // buffer named by the address, "" when unknown
}

func (a Access) conflicts(b Access) bool {
	return a.Base == "" || b.Base == "" || a.Base == b.Base
}

// Input is the scheduler's view of a program
type Input struct {
	OpIDs     []int
	Ports     [][]int
	Costs     []float64
	Adjacency [][]int // operand positions of each node
	Access    []Access
	Scopes    []ScopeRange
	NumPorts  int
	MemLevels []catalog.MemLevel
}

// Len returns the number of nodes
func (in *Input) Len() int { return len(in.OpIDs) }

// Scheduler computes an execution order: a permutation of [0, Len()).
// Nodes may only move within their scope range.
type Scheduler interface {
	Schedule(ctx context.Context, in *Input) ([]int, error)
}

// Build projects p. Operands must refer to earlier positions and scope
// ranges must tile the program; anything else is InvalidScheduleInput.
func Build(p *graph.Program) (*Input, error) {
	n := p.Len()
	in := &Input{
		OpIDs:     make([]int, n),
		Ports:     make([][]int, n),
		Costs:     make([]float64, n),
		Adjacency: make([][]int, n),
		Access:    make([]Access, n),
		NumPorts:  p.Catalog.NumPorts(),
		MemLevels: p.Catalog.MemLevels(),
	}
	if len(p.Args) != n {
		return nil, diag.New(diag.InvalidScheduleInput, "", "%d nodes but %d operand lists", n, len(p.Args))
	}
	for i, node := range p.Nodes {
		op := node.Op()
		for _, a := range p.Args[i] {
			if a < 0 || a >= i {
				return nil, diag.AtNode(diag.InvalidScheduleInput, op.Name, i,
					"operand position %d is not before the node (forward reference or cycle)", a)
			}
		}
		for _, port := range op.Ports {
			if port < 0 || port >= in.NumPorts {
				return nil, diag.AtNode(diag.InvalidScheduleInput, op.Name, i, "port %d out of range", port)
			}
		}
		in.OpIDs[i] = op.ID
		in.Ports[i] = op.Ports
		in.Costs[i] = op.ExecCost
		in.Adjacency[i] = p.Args[i]
		in.Access[i] = access(node)
	}

	next := 0
	for _, s := range p.Scopes {
		if s.Start != next || s.End < s.Start {
			return nil, diag.New(diag.InvalidScheduleInput, "",
				"scope range [%d, %d) does not continue at %d", s.Start, s.End, next)
		}
		in.Scopes = append(in.Scopes, ScopeRange{Start: s.Start, End: s.End, Weight: s.Weight})
		next = s.End
	}
	if next != n {
		return nil, diag.New(diag.InvalidScheduleInput, "", "scope ranges cover %d of %d nodes", next, n)
	}
	return in, nil
}

// access classifies the memory use of a node. Raw code is opaque and
// conflicts with every other access.
func access(n *graph.Node) Access {
	switch {
	case !n.Rendered():
		return Access{}
	case !n.HasResult():
		if n.Op().Name == catalog.CodeOp {
			return Access{Write: true}
		}
		return Access{Write: true, Base: baseName(n.Payload())}
	case n.Code() != "":
		return Access{Read: true}
	case n.Op().Mnemonic() == "load":
		return Access{Read: true, Base: baseName(n.Payload())}
	}
	return Access{}
}

// baseName returns the identifier an address starts with: out for
// out[0], total for *total
func baseName(addr string) string {
	addr = strings.TrimLeft(addr, "*&( ")
	end := 0
	for end < len(addr) {
		c := addr[end]
		if c != '_' && !unicode.IsLetter(rune(c)) && (end == 0 || !unicode.IsDigit(rune(c))) {
			break
		}
		end++
	}
	return addr[:end]
}

// memoryOrder returns, for each node, the earlier nodes of its scope range
// it must follow: side effects keep their program order, and reads stay
// on their side of every side effect they may conflict with.
func memoryOrder(in *Input) [][]int {
	after := make([][]int, in.Len())
	if len(in.Access) != in.Len() {
		return after
	}
	for _, s := range in.Scopes {
		var mem []int
		for j := s.Start; j < s.End; j++ {
			aj := in.Access[j]
			if !aj.Write && !aj.Read {
				continue
			}
			for _, i := range mem {
				ai := in.Access[i]
				if (ai.Write && aj.Write) || ((ai.Write || aj.Write) && ai.conflicts(aj)) {
					after[j] = append(after[j], i)
				}
			}
			mem = append(mem, j)
		}
	}
	return after
}

// Validate checks that order is a permutation of the input's positions that
// respects every dependency, keeps each node inside its scope range and
// keeps the memory order of its range.
func Validate(in *Input, order []int) error {
	n := in.Len()
	if len(order) != n {
		return diag.New(diag.InvalidScheduleInput, "", "order has %d entries for %d nodes", len(order), n)
	}
	slot := make([]int, n)
	for i := range slot {
		slot[i] = -1
	}
	for k, i := range order {
		if i < 0 || i >= n {
			return diag.New(diag.InvalidScheduleInput, "", "order entry %d is %d, outside [0, %d)", k, i, n)
		}
		if slot[i] >= 0 {
			return diag.AtNode(diag.InvalidScheduleInput, "", i, "node scheduled twice")
		}
		slot[i] = k
	}
	for _, s := range in.Scopes {
		if s.Start < 0 || s.End > n {
			return diag.New(diag.InvalidScheduleInput, "", "scope range [%d, %d) outside [0, %d)", s.Start, s.End, n)
		}
		for k := s.Start; k < s.End; k++ {
			if i := order[k]; i < s.Start || i >= s.End {
				return diag.AtNode(diag.InvalidScheduleInput, "", i,
					"node moved out of its scope range [%d, %d)", s.Start, s.End)
			}
		}
	}
	for i, args := range in.Adjacency {
		for _, a := range args {
			if a < 0 || a >= n {
				return diag.AtNode(diag.InvalidScheduleInput, "", i, "operand %d out of range", a)
			}
			if slot[a] >= slot[i] {
				return diag.AtNode(diag.InvalidScheduleInput, "", i,
					"scheduled before its operand %d", a)
			}
		}
	}
	for i, prev := range memoryOrder(in) {
		for _, a := range prev {
			if slot[a] >= slot[i] {
				return diag.AtNode(diag.InvalidScheduleInput, "", i,
					"scheduled before %d, which accesses the same memory", a)
			}
		}
	}
	return nil
}

// Result is a checked execution order
type Result struct {
	Order []int         // positions in execution order
	Nodes []*graph.Node // the same, as nodes
	Cost  float64       // weighted estimate of the order
}

// Run builds the scheduler input for p, runs s and checks its answer.
// A nil logger logs to slog.Default().
func Run(ctx context.Context, s Scheduler, p *graph.Program, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	in, err := Build(p)
	if err != nil {
		return nil, err
	}
	order, err := s.Schedule(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("scheduler %s: %w", Name(s), err)
	}
	if err := Validate(in, order); err != nil {
		return nil, err
	}

	res := &Result{Order: order, Nodes: make([]*graph.Node, len(order)), Cost: Estimate(in, order)}
	for k, i := range order {
		res.Nodes[k] = p.Nodes[i]
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("scheduled",
			"scheduler", Name(s),
			"nodes", in.Len(),
			"scopes", len(in.Scopes),
			"cost", res.Cost,
			"linear_cost", Estimate(in, identity(in.Len())))
	}
	return res, nil
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
