// Package catalog is the interned operation table a kernel graph is built
// against. A Catalog is created once from a processor description and is
// read-only afterwards, so one Catalog can back any number of graphs,
// including graphs built concurrently.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raymyers/ralph-kgen/pkg/diag"
	"github.com/raymyers/ralph-kgen/pkg/procdesc"
	"github.com/raymyers/ralph-kgen/pkg/vtypes"
)

// CodeOp is the name of the pseudo-operation carried by raw-code statements
const CodeOp = "code"

// OpDescriptor is one interned operation
type OpDescriptor struct {
	Name     string
	ID       int
	Result   *vtypes.Type // nil for side-effecting operations
	ExecCost float64
	Ports    []int // dense port indices
	Ordered  bool  // operand order matters
	Expr     string
}

// HasResult reports whether the operation produces a value
func (d *OpDescriptor) HasResult() bool {
	return d.Result != nil
}

// Mnemonic returns the operation name without its type suffix
func (d *OpDescriptor) Mnemonic() string {
	m, _ := procdesc.SplitOpName(d.Name)
	return m
}

// FormatExpr renders the operation applied to already-rendered arguments.
// Without a template the operation is rendered as a call.
func (d *OpDescriptor) FormatExpr(args []string) (string, error) {
	if d.Expr == "" {
		return d.Name + "(" + strings.Join(args, ", ") + ")", nil
	}
	return Format(d.Expr, args)
}

func (d *OpDescriptor) String() string {
	return fmt.Sprintf("%s#%d", d.Name, d.ID)
}

// MemLevel is a memory level with its port normalized
type MemLevel struct {
	Name        string
	Capacity    int
	Port        int
	LoadLatency float64
}

// Catalog is the operation table of one processor
type Catalog struct {
	Name      string
	ops       []*OpDescriptor
	byName    map[string]*OpDescriptor
	memLevels []MemLevel
	portIDs   []int // dense index -> port id from the description
}

// New builds a catalog from a processor description.
// Port ids used by operations and memory levels are collected, sorted and
// renumbered 0..n-1.
func New(d *procdesc.Descr) (*Catalog, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for _, m := range d.MemLevels {
		seen[m.Port] = true
	}
	for _, op := range d.Ops {
		for _, p := range op.Ports {
			seen[p] = true
		}
	}
	portIDs := make([]int, 0, len(seen))
	for p := range seen {
		portIDs = append(portIDs, p)
	}
	sort.Ints(portIDs)
	dense := make(map[int]int, len(portIDs))
	for i, p := range portIDs {
		dense[p] = i
	}

	c := &Catalog{
		Name:    d.Name,
		byName:  make(map[string]*OpDescriptor, len(d.Ops)+1),
		portIDs: portIDs,
	}
	for _, m := range d.MemLevels {
		c.memLevels = append(c.memLevels, MemLevel{
			Name:        m.Name,
			Capacity:    m.Capacity,
			Port:        dense[m.Port],
			LoadLatency: m.LoadLatency,
		})
	}
	for _, op := range d.Ops {
		if op.Name == CodeOp {
			return nil, fmt.Errorf("%s: operation name %q is reserved", d.Name, CodeOp)
		}
		ports := make([]int, len(op.Ports))
		for i, p := range op.Ports {
			ports[i] = dense[p]
		}
		var result *vtypes.Type
		if op.Result != "" {
			result, _ = vtypes.Lookup(op.Result)
		}
		c.add(&OpDescriptor{
			Name:     op.Name,
			Result:   result,
			ExecCost: op.ExecCost,
			Ports:    ports,
			Ordered:  !op.Commutative,
			Expr:     op.Expr,
		})
	}
	c.add(&OpDescriptor{Name: CodeOp, Ordered: true})
	return c, nil
}

func (c *Catalog) add(d *OpDescriptor) {
	d.ID = len(c.ops)
	c.ops = append(c.ops, d)
	c.byName[d.Name] = d
}

// Lookup returns the descriptor with the exact canonical name
func (c *Catalog) Lookup(name string) (*OpDescriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Find resolves an operation by mnemonic and operand types.
// The name with operand types in call order is tried first, then the
// name with sorted types; the latter only matches commutative operations.
func (c *Catalog) Find(mnemonic string, types ...*vtypes.Type) (*OpDescriptor, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	name := procdesc.OpName(mnemonic, names...)
	if d, ok := c.byName[name]; ok {
		return d, nil
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	if d, ok := c.byName[procdesc.OpName(mnemonic, sorted...)]; ok {
		if !d.Ordered {
			return d, nil
		}
		return nil, diag.New(diag.UnknownOperation, name,
			"operand order violates a non-commutative operation %s", d.Name)
	}
	return nil, diag.New(diag.UnknownOperation, name,
		"no operation %s on types (%s)", mnemonic, strings.Join(names, ", "))
}

// FindTyped resolves a type-specific operation such as constY<t> or zeroY<t>
func (c *Catalog) FindTyped(mnemonic string, t *vtypes.Type) (*OpDescriptor, error) {
	name := procdesc.OpName(mnemonic, t.String())
	if d, ok := c.byName[name]; ok {
		return d, nil
	}
	return nil, diag.New(diag.UnknownOperation, name, "no %s operation for type %s", mnemonic, t)
}

// FindCvt resolves the conversion from one type to another
func (c *Catalog) FindCvt(from, to *vtypes.Type) (*OpDescriptor, error) {
	name := procdesc.OpName("cvt", from.String(), to.String())
	if d, ok := c.byName[name]; ok {
		return d, nil
	}
	return nil, diag.New(diag.UnknownOperation, name, "no conversion from %s to %s", from, to)
}

// Code returns the raw-code pseudo-operation
func (c *Catalog) Code() *OpDescriptor {
	return c.byName[CodeOp]
}

// ByID returns the descriptor with the given id, nil if out of range
func (c *Catalog) ByID(id int) *OpDescriptor {
	if id < 0 || id >= len(c.ops) {
		return nil
	}
	return c.ops[id]
}

// Ops returns all descriptors in id order
func (c *Catalog) Ops() []*OpDescriptor {
	return c.ops
}

// NumPorts returns the size of the dense port range
func (c *Catalog) NumPorts() int {
	return len(c.portIDs)
}

// PortID maps a dense port index back to the id used in the description
func (c *Catalog) PortID(dense int) int {
	return c.portIDs[dense]
}

// MemLevels returns the memory hierarchy, fastest level first
func (c *Catalog) MemLevels() []MemLevel {
	return c.memLevels
}
