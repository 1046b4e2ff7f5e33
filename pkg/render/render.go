// Package render prints a scheduled kernel program as C-like statements.
//
// Each rendered node becomes one line: a declaration for nodes with a
// result, a bare statement for operations without one, and raw code with
// its operand names substituted. Operands are named through a Namer;
// aliases were already resolved when the program was linearized.
package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/raymyers/ralph-kgen/pkg/catalog"
	"github.com/raymyers/ralph-kgen/pkg/graph"
)

// DefaultPrefix names nodes that did not set a prefix of their own
const DefaultPrefix = "v"

// Namer assigns names to nodes in the order they are first asked for.
// Variables keep their declared names; other nodes are named
// <prefix><n> with one counter per prefix.
type Namer struct {
	names    map[*graph.Node]string
	counters map[string]int
}

// NewNamer creates an empty namer
func NewNamer() *Namer {
	return &Namer{
		names:    make(map[*graph.Node]string),
		counters: make(map[string]int),
	}
}

// Name returns the name of n, assigning one on first use
func (nm *Namer) Name(n *graph.Node) string {
	if name, ok := nm.names[n]; ok {
		return name
	}
	name := n.VarName()
	if name == "" {
		prefix := n.Prefix()
		if prefix == "" {
			prefix = DefaultPrefix
		}
		name = prefix + strconv.Itoa(nm.counters[prefix])
		nm.counters[prefix]++
	}
	nm.names[n] = name
	return name
}

// Printer writes program statements
type Printer struct {
	w      io.Writer
	names  *Namer
	Indent string // written before every line
}

// NewPrinter creates a printer with a fresh namer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, names: NewNamer()}
}

// Namer returns the namer the printer assigns names with
func (p *Printer) Namer() *Namer { return p.names }

// PrintProgram writes the rendered nodes of prog in the given order of
// positions. A nil order means program order.
func (p *Printer) PrintProgram(prog *graph.Program, order []int) error {
	if order == nil {
		order = make([]int, prog.Len())
		for i := range order {
			order[i] = i
		}
	}
	if len(order) != prog.Len() {
		return fmt.Errorf("render: order has %d entries for %d nodes", len(order), prog.Len())
	}
	for _, i := range order {
		if i < 0 || i >= prog.Len() {
			return fmt.Errorf("render: position %d out of range", i)
		}
		n := prog.Nodes[i]
		if !n.Rendered() {
			continue
		}
		args := make([]string, len(prog.Args[i]))
		for j, a := range prog.Args[i] {
			args[j] = p.names.Name(prog.Nodes[a])
		}
		line, err := p.statement(n, args)
		if err != nil {
			return fmt.Errorf("render %s: %w", n, err)
		}
		if c := n.Comment(); c != "" {
			line += " // " + c
		}
		fmt.Fprintf(p.w, "%s%s\n", p.Indent, line)
	}
	return nil
}

func (p *Printer) statement(n *graph.Node, args []string) (string, error) {
	op := n.Op()
	if op.Name == catalog.CodeOp {
		return catalog.Format(n.Code(), args)
	}

	var expr string
	var err error
	if n.Code() != "" {
		expr, err = catalog.Format(n.Code(), args)
	} else {
		if n.Payload() != "" {
			args = append([]string{n.Payload()}, args...)
		}
		expr, err = op.FormatExpr(args)
	}
	if err != nil {
		return "", err
	}
	if !n.HasResult() {
		return expr + ";", nil
	}
	return fmt.Sprintf("%s %s = %s;", n.Type(), p.names.Name(n), expr), nil
}

// Program renders prog to w in the given order with fresh names
func Program(w io.Writer, prog *graph.Program, order []int) error {
	return NewPrinter(w).PrintProgram(prog, order)
}

// Dump writes prog in program order, one node per line with its
// structural key and operand names, grouped by non-empty scope range.
// Nodes without a result are shown as _.
func Dump(w io.Writer, prog *graph.Program) {
	names := NewNamer()
	for si, s := range prog.Scopes {
		if s.Start == s.End {
			continue
		}
		fmt.Fprintf(w, "scope %d weight %g depth %d\n", si, s.Weight, s.Depth)
		for i := s.Start; i < s.End; i++ {
			n := prog.Nodes[i]
			name := "_"
			if n.HasResult() {
				name = names.Name(n)
			}
			fmt.Fprintf(w, "  %s: %s", name, n.Key())
			for _, a := range prog.Args[i] {
				fmt.Fprintf(w, " %s", names.Name(prog.Nodes[a]))
			}
			fmt.Fprintln(w)
		}
	}
}
