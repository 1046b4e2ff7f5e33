// Package procdesc describes a target processor for kernel generation:
// its memory hierarchy and the operations it can execute, with their cost
// and the resource ports they occupy.
//
// Descriptions are plain data. They can be written in YAML or CUE, or built
// in Go with the op constructors below; the catalog package turns them into
// the interned operation table the graph builder uses.
package procdesc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raymyers/ralph-kgen/pkg/vtypes"
)

// MemLevel is one level of the memory hierarchy
type MemLevel struct {
	Name        string  `yaml:"name" json:"name"`
	Capacity    int     `yaml:"capacity" json:"capacity"`
	Port        int     `yaml:"port" json:"port"`
	LoadLatency float64 `yaml:"load_latency" json:"load_latency"`
}

// Op describes one machine operation.
// Name is the canonical name: mnemonic, then operand type names (see OpName).
type Op struct {
	Name        string  `yaml:"name" json:"name"`
	Result      string  `yaml:"result,omitempty" json:"result,omitempty"` // empty for side-effecting ops
	ExecCost    float64 `yaml:"exec_cost" json:"exec_cost"`
	Ports       []int   `yaml:"ports" json:"ports"`
	Commutative bool    `yaml:"commutative,omitempty" json:"commutative,omitempty"`
	Expr        string  `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// Descr is a complete processor description
type Descr struct {
	Name      string     `yaml:"name" json:"name"`
	MemLevels []MemLevel `yaml:"mem_levels" json:"mem_levels"`
	Ops       []Op       `yaml:"ops" json:"ops"`
}

// OpName builds the canonical operation name: <mnemonic>Y<type>X<type>...
func OpName(mnemonic string, types ...string) string {
	return mnemonic + "Y" + strings.Join(types, "X")
}

// SplitOpName is the inverse of OpName
func SplitOpName(name string) (mnemonic string, types []string) {
	i := strings.Index(name, "Y")
	if i < 0 {
		return name, nil
	}
	mnemonic = name[:i]
	if rest := name[i+1:]; rest != "" {
		types = strings.Split(rest, "X")
	}
	return mnemonic, types
}

func typeNames(ts []*vtypes.Type) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}

// SignOp creates an infix (binary) or prefix (unary) operator like "+" or "-".
// Commutative operators are named with their operand types sorted.
func SignOp(mnemonic, sign string, commutative bool, result *vtypes.Type, args ...*vtypes.Type) Op {
	names := typeNames(args)
	if commutative {
		sort.Strings(names)
	}
	var expr string
	switch len(args) {
	case 1:
		expr = sign + "{}"
	case 2:
		expr = "{} " + sign + " {}"
	default:
		panic(fmt.Sprintf("SignOp %s: cannot display sign with %d operands", mnemonic, len(args)))
	}
	return Op{
		Name:        OpName(mnemonic, names...),
		Result:      result.Name,
		Commutative: commutative,
		Expr:        expr,
	}
}

// FuncOp creates an operation rendered as a call: mnemonic(args...)
func FuncOp(mnemonic string, result *vtypes.Type, args ...*vtypes.Type) Op {
	op := Op{Name: OpName(mnemonic, typeNames(args)...)}
	if result != nil {
		op.Result = result.Name
	}
	return op
}

// CvtOp creates a conversion between two types
func CvtOp(from, to *vtypes.Type) Op {
	return Op{
		Name:   OpName("cvt", from.Name, to.Name),
		Result: to.Name,
		Expr:   "(" + to.Name + ")({})",
	}
}

// LoadOp creates the load of a value of type t from an address expression
func LoadOp(t *vtypes.Type) Op {
	return Op{Name: OpName("load", t.Name), Result: t.Name, Expr: "{}"}
}

// StoreOp creates the store of a value of type t to an address expression
func StoreOp(t *vtypes.Type) Op {
	return Op{Name: OpName("stor", t.Name), Expr: "{} = {}"}
}

// TypedOp creates an operation without operands producing a value of type t
// (zero, const, nop).
func TypedOp(mnemonic string, t *vtypes.Type, expr string) Op {
	return Op{Name: OpName(mnemonic, t.Name), Result: t.Name, Expr: expr}
}

// WithCost sets the execution cost and occupied ports
func (o Op) WithCost(cost float64, ports ...int) Op {
	o.ExecCost = cost
	o.Ports = ports
	return o
}

// Validate checks the description for internal consistency
func (d *Descr) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("processor description has no name")
	}
	for i, m := range d.MemLevels {
		if m.Name == "" {
			return fmt.Errorf("%s: memory level %d has no name", d.Name, i)
		}
		if m.Capacity <= 0 {
			return fmt.Errorf("%s: memory level %s has capacity %d", d.Name, m.Name, m.Capacity)
		}
		if m.LoadLatency < 0 {
			return fmt.Errorf("%s: memory level %s has negative load latency", d.Name, m.Name)
		}
	}
	seen := make(map[string]bool, len(d.Ops))
	for _, op := range d.Ops {
		if op.Name == "" {
			return fmt.Errorf("%s: operation without a name", d.Name)
		}
		if seen[op.Name] {
			return fmt.Errorf("%s: duplicate operation %s", d.Name, op.Name)
		}
		seen[op.Name] = true
		if op.Result != "" {
			if _, ok := vtypes.Lookup(op.Result); !ok {
				return fmt.Errorf("%s: operation %s has unknown result type %q", d.Name, op.Name, op.Result)
			}
		}
		if op.ExecCost < 0 {
			return fmt.Errorf("%s: operation %s has negative cost", d.Name, op.Name)
		}
		if len(op.Ports) == 0 {
			return fmt.Errorf("%s: operation %s occupies no port", d.Name, op.Name)
		}
	}
	return nil
}
