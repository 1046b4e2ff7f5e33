package graph

import (
	"fmt"

	"github.com/raymyers/ralph-kgen/pkg/catalog"
	"github.com/raymyers/ralph-kgen/pkg/vtypes"
)

// Origin is the identity of a value: an index into the graph's arena.
// A node is created with its own origin; rebinding allocates a new origin
// that denotes the same node.
type Origin int

// Node is a published operation application or leaf.
// Everything taking part in the structural key is fixed at creation.
type Node struct {
	origin   Origin
	op       *catalog.OpDescriptor
	operands []Value
	payload  string // formatted literal, address or variable name
	code     string // raw template, overrides the descriptor's
	typ      *vtypes.Type
	key      string
	scope    int
	flags    Flag
	varName  string
	hidden   bool

	// presentation only, not part of the key
	prefix  string
	comment string
}

func (n *Node) Origin() Origin { return n.origin }
func (n *Node) Op() *catalog.OpDescriptor { return n.op }
func (n *Node) Operands() []Value { return n.operands }
func (n *Node) Payload() string { return n.payload }
func (n *Node) Code() string { return n.code }
func (n *Node) Type() *vtypes.Type { return n.typ }
func (n *Node) Key() string { return n.key }
func (n *Node) Scope() int { return n.scope }
func (n *Node) Flags() Flag { return n.flags }
func (n *Node) VarName() string { return n.varName }
func (n *Node) Prefix() string { return n.prefix }
func (n *Node) Comment() string { return n.comment }

// Rendered reports whether the node produces a statement.
// Variable placeholders are not rendered.
func (n *Node) Rendered() bool { return !n.hidden }

// HasResult reports whether the node defines a value.
// Nodes without a result are the roots of liveness.
func (n *Node) HasResult() bool {
	return n.op != nil && n.op.HasResult()
}

func (n *Node) String() string {
	return fmt.Sprintf("%%%d:%s", n.origin, n.key)
}

// Value is a handle to a node as seen by the builder. Handles are passed by
// value; pending transforms live on the handle, not on the node.
type Value struct {
	node   *Node
	origin Origin
	scope  int
	flags  Flag
	attrs  AttrStack
}

// Valid reports whether v refers to a node.
// Builder calls on a failed graph return the zero Value.
func (v Value) Valid() bool { return v.node != nil }

func (v Value) Node() *Node { return v.node }
func (v Value) Origin() Origin { return v.origin }
func (v Value) Scope() int { return v.scope }
func (v Value) Attrs() AttrStack { return v.attrs }

// Type returns the value type, nil for the zero Value
func (v Value) Type() *vtypes.Type {
	if v.node == nil {
		return nil
	}
	return v.node.typ
}

// Key returns the structural key of the underlying node
func (v Value) Key() string {
	if v.node == nil {
		return ""
	}
	return v.node.key
}

// Has reports a flag. While transforms are pending only the top group is
// consulted; otherwise the numeric flags are.
func (v Value) Has(f Flag) bool {
	if top, ok := v.attrs.Top(); ok {
		return top.Attrs&f != 0
	}
	return v.flags&f != 0
}

func (v Value) toggle(f Flag) Value {
	v.attrs = v.attrs.Toggle(f)
	return v
}

func (v Value) String() string {
	if v.node == nil {
		return "<invalid>"
	}
	if len(v.attrs) == 0 {
		return fmt.Sprintf("%%%d", v.origin)
	}
	return fmt.Sprintf("%%%d%s", v.origin, v.attrs)
}

// Same reports whether two handles denote the same value with the same
// pending transforms. Equal origins alone are not enough.
func Same(a, b Value) bool {
	if a.node == nil || b.node == nil {
		return false
	}
	return a.origin == b.origin &&
		a.node.key == b.node.key &&
		a.flags == b.flags &&
		a.attrs.Equal(b.attrs)
}
