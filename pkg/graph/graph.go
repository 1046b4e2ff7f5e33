// Package graph builds kernel programs as a hash-consed value graph.
//
// Every builder call interns its result by structural key, so equal
// subexpressions are shared as they are built. Algebraic identities are
// applied before a node is built, using the symbolic flags carried on value
// handles. Nodes are recorded into lifetime scopes that follow the nesting
// of loops and use blocks; liveness is decided once, when the graph is
// linearized.
//
// A Graph is not safe for concurrent use. Independent kernels use
// independent graphs and may share one catalog.
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/raymyers/ralph-kgen/pkg/catalog"
	"github.com/raymyers/ralph-kgen/pkg/diag"
	"github.com/raymyers/ralph-kgen/pkg/vtypes"
)

// Scope is a lifetime region. Scopes are never removed; closing a block
// only moves appending on to a fresh scope.
type Scope struct {
	Weight float64 // expected number of executions
	Depth  int     // block nesting depth
	block  int
	nodes  []*Node
}

// Nodes returns the nodes recorded into the scope, in creation order
func (s *Scope) Nodes() []*Node { return s.nodes }

// Graph is the builder of one kernel
type Graph struct {
	cat     *catalog.Catalog
	arena   []*Node // indexed by Origin
	index   map[string]*Node
	scopes  []*Scope
	weights []float64 // use stack
	blocks  []int     // parent block of each block, -1 for the root
	block   int       // current block
	aliases map[Origin]Value
	err     error
}

// New creates an empty graph with one open scope of weight 1
func New(cat *catalog.Catalog) *Graph {
	g := &Graph{
		cat:     cat,
		index:   make(map[string]*Node),
		weights: []float64{1},
		blocks:  []int{-1},
		aliases: make(map[Origin]Value),
	}
	g.newScope()
	return g
}

// Catalog returns the operation table the graph is built against
func (g *Graph) Catalog() *catalog.Catalog { return g.cat }

// Err returns the first error recorded by a builder call
func (g *Graph) Err() error { return g.err }

// Fail records err as the graph's error unless one is already recorded.
// Later builder calls return invalid values, so code layered on the graph
// can report its own failures through Err.
func (g *Graph) Fail(err error) {
	g.fail(err)
}

func (g *Graph) fail(err error) Value {
	if g.err == nil {
		g.err = err
	}
	return Value{}
}

// usable checks operands before a builder call. It records a
// ScopeViolation for values that do not belong to this graph.
func (g *Graph) usable(vs ...Value) bool {
	if g.err != nil {
		return false
	}
	for _, v := range vs {
		if !g.owns(v) {
			g.fail(diag.New(diag.ScopeViolation, "", "value %s does not belong to this graph", v))
			return false
		}
	}
	return true
}

func (g *Graph) owns(v Value) bool {
	return v.node != nil && int(v.origin) >= 0 && int(v.origin) < len(g.arena) && g.arena[v.origin] == v.node
}

// NumNodes returns the number of interned nodes
func (g *Graph) NumNodes() int {
	n := 0
	for _, s := range g.scopes {
		n += len(s.nodes)
	}
	return n
}

func (g *Graph) newScope() {
	g.scopes = append(g.scopes, &Scope{
		Weight: g.weights[len(g.weights)-1],
		Depth:  len(g.weights) - 1,
		block:  g.block,
	})
}

func (g *Graph) currentScope() int {
	return len(g.scopes) - 1
}

// scopeOf is the scope a new node goes to: the latest scope among its
// operands, or the current scope for leaves
func (g *Graph) scopeOf(operands []Value) int {
	if len(operands) == 0 {
		return g.currentScope()
	}
	s := 0
	for _, v := range operands {
		if v.scope > s {
			s = v.scope
		}
	}
	return s
}

// OpenScope enters a loop or use block expected to execute mult times per
// execution of the enclosing block.
func (g *Graph) OpenScope(mult float64) {
	if g.err != nil {
		return
	}
	g.weights = append(g.weights, g.weights[len(g.weights)-1]*mult)
	g.blocks = append(g.blocks, g.block)
	g.block = len(g.blocks) - 1
	g.newScope()
}

// CloseScope leaves the innermost block opened by OpenScope
func (g *Graph) CloseScope() {
	if g.err != nil {
		return
	}
	if len(g.weights) == 1 {
		g.fail(diag.New(diag.ScopeViolation, "", "close of a scope that was never opened"))
		return
	}
	g.weights = g.weights[:len(g.weights)-1]
	g.block = g.blocks[g.block]
	g.newScope()
}

// Scoped runs fn inside a block of weight multiplier mult. The block is
// closed on every exit path of fn.
func (g *Graph) Scoped(mult float64, fn func() error) error {
	g.OpenScope(mult)
	defer g.CloseScope()
	if err := fn(); err != nil {
		return err
	}
	return g.err
}

// Depth returns the current block nesting depth
func (g *Graph) Depth() int {
	return len(g.weights) - 1
}

// NumScopes returns the number of scopes created so far
func (g *Graph) NumScopes() int {
	return len(g.scopes)
}

// Scope returns scope i
func (g *Graph) Scope(i int) *Scope {
	return g.scopes[i]
}

// ScopeWeight returns the weight of the scope a handle is pinned to
func (g *Graph) ScopeWeight(v Value) float64 {
	if !g.owns(v) {
		return 0
	}
	return g.scopes[v.scope].Weight
}

// inCurrentBlock reports whether block b is the current block or encloses it
func (g *Graph) inCurrentBlock(b int) bool {
	for cur := g.block; cur >= 0; cur = g.blocks[cur] {
		if cur == b {
			return true
		}
	}
	return false
}

func structuralKey(n *Node) string {
	var b strings.Builder
	b.WriteString(n.op.Name)
	b.WriteByte('Y')
	origins := make([]int, len(n.operands))
	for i, v := range n.operands {
		origins[i] = int(v.origin)
	}
	if !n.op.Ordered {
		sort.Ints(origins)
	}
	for i, o := range origins {
		if i > 0 {
			b.WriteByte('X')
		}
		b.WriteString(strconv.Itoa(o))
	}
	if n.payload != "" {
		b.WriteByte('Z')
		b.WriteString(n.payload)
	}
	return b.String()
}

// intern publishes n, or returns the handle of the existing node with the
// same structural key. A node with an empty key is never deduplicated.
func (g *Graph) intern(n *Node) Value {
	if n.key != "" {
		if existing, ok := g.index[n.key]; ok {
			return handle(existing)
		}
	}
	n.origin = Origin(len(g.arena))
	g.arena = append(g.arena, n)
	if n.key == "" {
		n.key = "#" + strconv.Itoa(int(n.origin))
	}
	g.index[n.key] = n
	g.scopes[n.scope].nodes = append(g.scopes[n.scope].nodes, n)
	return handle(n)
}

func handle(n *Node) Value {
	return Value{node: n, origin: n.origin, scope: n.scope, flags: n.flags}
}

// flush materializes the pending transforms of v as unary nodes
func (g *Graph) flush(v Value) Value {
	pending := v.attrs.pending()
	v.attrs = nil
	for _, f := range pending {
		v = g.apply(f.mnemonic(), v)
		if !v.Valid() {
			return v
		}
	}
	return v
}

func (g *Graph) flushAll(vs []Value) ([]Value, bool) {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = g.flush(v)
		if !out[i].Valid() {
			return nil, false
		}
	}
	return out, true
}

// apply builds an operation over flushed operands, without simplification
func (g *Graph) apply(mnemonic string, operands ...Value) Value {
	types := make([]*vtypes.Type, len(operands))
	for i, v := range operands {
		types[i] = v.Type()
	}
	d, err := g.cat.Find(mnemonic, types...)
	if err != nil {
		return g.fail(err)
	}
	n := &Node{op: d, operands: operands, typ: d.Result, scope: g.scopeOf(operands)}
	n.key = structuralKey(n)
	return g.intern(n)
}

// Op builds a target operation by mnemonic, such as fma, with no
// algebraic simplification.
func (g *Graph) Op(mnemonic string, operands ...Value) Value {
	if !g.usable(operands...) {
		return Value{}
	}
	ops, ok := g.flushAll(operands)
	if !ok {
		return Value{}
	}
	return g.apply(mnemonic, ops...)
}

func (g *Graph) typed(mnemonic string, t *vtypes.Type) *catalog.OpDescriptor {
	d, err := g.cat.FindTyped(mnemonic, t)
	if err != nil {
		g.fail(err)
		return nil
	}
	return d
}

// Const builds a literal. Literal zero and one carry the numeric flags.
func (g *Graph) Const(t *vtypes.Type, v any) Value {
	if g.err != nil {
		return Value{}
	}
	lit, err := t.Format(v)
	if err != nil {
		return g.fail(fmt.Errorf("const: %w", err))
	}
	d := g.typed("const", t)
	if d == nil {
		return Value{}
	}
	n := &Node{op: d, payload: lit, typ: t, scope: g.currentScope()}
	if t.IsZero(v) {
		n.flags |= FlagZero
	}
	if t.IsOne(v) {
		n.flags |= FlagOne
	}
	n.key = structuralKey(n)
	return g.intern(n)
}

// Zero builds the canonical zero of t
func (g *Graph) Zero(t *vtypes.Type) Value {
	if g.err != nil {
		return Value{}
	}
	d := g.typed("zero", t)
	if d == nil {
		return Value{}
	}
	n := &Node{op: d, typ: t, scope: g.currentScope(), flags: FlagZero}
	n.key = structuralKey(n)
	return g.intern(n)
}

// One builds the canonical one of t
func (g *Graph) One(t *vtypes.Type) Value {
	return g.Const(t, 1)
}

// Load builds a load of a t from an address expression
func (g *Graph) Load(t *vtypes.Type, addr string) Value {
	if g.err != nil {
		return Value{}
	}
	d := g.typed("load", t)
	if d == nil {
		return Value{}
	}
	n := &Node{op: d, payload: addr, typ: t, scope: g.currentScope()}
	n.key = structuralKey(n)
	return g.intern(n)
}

// Store builds a store of v to an address expression
func (g *Graph) Store(v Value, addr string) Value {
	if !g.usable(v) {
		return Value{}
	}
	v = g.flush(v)
	if !v.Valid() {
		return v
	}
	d := g.typed("stor", v.Type())
	if d == nil {
		return Value{}
	}
	operands := []Value{v}
	n := &Node{op: d, operands: operands, payload: addr, scope: g.scopeOf(operands)}
	n.key = structuralKey(n)
	return g.intern(n)
}

// VarKeyPrefix starts the structural key of every variable. Operation
// names never start with it, so a variable cannot share a key with an
// operation node.
const VarKeyPrefix = "$"

// Var builds a reference to a named variable, such as a kernel argument.
// Variables live in the first scope and produce no statement.
func (g *Graph) Var(t *vtypes.Type, name string) Value {
	if g.err != nil {
		return Value{}
	}
	d := g.typed("load", t)
	if d == nil {
		return Value{}
	}
	n := &Node{
		op:      d,
		payload: name,
		typ:     t,
		varName: name,
		hidden:  true,
		key:     VarKeyPrefix + name + "Z" + t.Name,
	}
	return g.intern(n)
}

// Cvt converts v to t. Converting to the same type is the identity.
func (g *Graph) Cvt(v Value, t *vtypes.Type) Value {
	if !g.usable(v) {
		return Value{}
	}
	if v.Type() == t {
		return v
	}
	v = g.flush(v)
	if !v.Valid() {
		return v
	}
	d, err := g.cat.FindCvt(v.Type(), t)
	if err != nil {
		return g.fail(err)
	}
	operands := []Value{v}
	n := &Node{op: d, operands: operands, typ: t, scope: g.scopeOf(operands)}
	n.key = structuralKey(n)
	return g.intern(n)
}

// Expr builds a value of type t computed by a raw expression template over
// operands. It is costed as the nop of t and deduplicated by template.
func (g *Graph) Expr(t *vtypes.Type, code string, operands ...Value) Value {
	if !g.usable(operands...) {
		return Value{}
	}
	ops, ok := g.flushAll(operands)
	if !ok {
		return Value{}
	}
	d := g.typed("nop", t)
	if d == nil {
		return Value{}
	}
	n := &Node{op: d, operands: ops, payload: code, code: code, typ: t, scope: g.scopeOf(ops)}
	n.key = structuralKey(n)
	return g.intern(n)
}

// Code builds a raw statement. Statements are never deduplicated and are
// always live.
func (g *Graph) Code(code string, operands ...Value) Value {
	if !g.usable(operands...) {
		return Value{}
	}
	ops, ok := g.flushAll(operands)
	if !ok {
		return Value{}
	}
	n := &Node{op: g.cat.Code(), operands: ops, code: code, scope: g.scopeOf(ops)}
	return g.intern(n)
}

// StationaryCode builds a raw statement in a scope of its own, so that no
// other node is ever scheduled across it.
func (g *Graph) StationaryCode(code string, operands ...Value) Value {
	if !g.usable(operands...) {
		return Value{}
	}
	ops, ok := g.flushAll(operands)
	if !ok {
		return Value{}
	}
	g.newScope()
	n := &Node{op: g.cat.Code(), operands: ops, code: code, scope: g.currentScope()}
	r := g.intern(n)
	g.newScope()
	return r
}

// Sep copies v into the current scope. The copy is never deduplicated, so
// it can serve as a mutable variable such as a loop iterator.
func (g *Graph) Sep(v Value) Value {
	if !g.usable(v) {
		return Value{}
	}
	v = g.flush(v)
	if !v.Valid() {
		return v
	}
	d := g.typed("nop", v.Type())
	if d == nil {
		return Value{}
	}
	n := &Node{op: d, operands: []Value{v}, typ: v.Type(), scope: g.currentScope()}
	return g.intern(n)
}

// SetComment attaches a comment rendered after the node's statement
func (g *Graph) SetComment(v Value, comment string) Value {
	if g.usable(v) {
		v.node.comment = comment
	}
	return v
}

// SetPrefix sets the name prefix the renderer uses for the node
func (g *Graph) SetPrefix(v Value, prefix string) Value {
	if g.usable(v) {
		v.node.prefix = prefix
	}
	return v
}

// Rebind gives v a fresh origin, pinned to the current scope, that
// resolves to v's latest binding. Consumers built from the returned handle
// are distinct from those built from v. Only values owned by the current
// block or an enclosing one can be rebound.
func (g *Graph) Rebind(v Value) Value {
	if !g.usable(v) {
		return Value{}
	}
	if owner := g.scopes[v.scope].block; !g.inCurrentBlock(owner) {
		return g.fail(diag.AtNode(diag.ScopeViolation, "", int(v.origin),
			"rebind of a value owned by block %d outside it (current block %d)", owner, g.block))
	}
	target, err := g.Resolve(v)
	if err != nil {
		return g.fail(err)
	}
	origin := Origin(len(g.arena))
	g.arena = append(g.arena, v.node)
	target.attrs = nil
	g.aliases[origin] = target

	v.origin = origin
	v.scope = g.currentScope()
	return v
}

// Resolve follows the alias of v, if any. Aliases always record a fully
// resolved target, so a second hop is a bookkeeping fault.
func (g *Graph) Resolve(v Value) (Value, error) {
	target, ok := g.aliases[v.origin]
	if !ok {
		return v, nil
	}
	if _, again := g.aliases[target.origin]; again {
		return Value{}, diag.AtNode(diag.AliasResolution, "", int(v.origin),
			"alias of %%%d resolves to %%%d which is itself an alias", v.origin, target.origin)
	}
	return target, nil
}
