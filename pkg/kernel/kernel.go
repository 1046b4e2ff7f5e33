// Package kernel turns kernel definitions into generated source.
//
// A Kernel is a named body function run against a Builder. Runtime
// arguments become variables of the generated function; specialization
// constants are folded into the graph as literals and into the mangled
// function name, so each combination of constants is a distinct function.
package kernel

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/raymyers/ralph-kgen/pkg/graph"
	"github.com/raymyers/ralph-kgen/pkg/vtypes"
)

// Dialect selects the function qualifiers of the generated source
type Dialect string

const (
	DialectC      Dialect = "c"
	DialectOpenCL Dialect = "opencl"
	DialectCUDA   Dialect = "cuda"
)

// Prefix returns the line written before the function signature, if any
func (d Dialect) Prefix() string {
	switch d {
	case DialectOpenCL:
		return "__kernel"
	case DialectCUDA:
		return `extern "C" __global__`
	}
	return ""
}

// ParseDialect accepts the dialect names, with "" meaning plain C
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(s)); d {
	case "", DialectC:
		return DialectC, nil
	case DialectOpenCL, DialectCUDA:
		return d, nil
	}
	return "", fmt.Errorf("unknown dialect %q", s)
}

// Kernel is a kernel definition
type Kernel struct {
	Name    string
	Dialect Dialect
	Body    func(b *Builder) error
}

// Options holds specialization constant values by name. Values are Go
// literals or strings, as accepted by vtypes.Type.Format.
type Options map[string]any

// Arg is an argument of a kernel
type Arg struct {
	Name    string
	Type    *vtypes.Type
	Const   bool
	Pointer bool   // a buffer of Type
	Value   string // formatted literal, for constants
}

// Param renders the argument as a function parameter
func (a Arg) Param() string {
	if a.Pointer {
		return a.Type.String() + " *" + a.Name
	}
	return a.Type.String() + " " + a.Name
}

// Builder is the graph a kernel body is run against, plus its arguments
type Builder struct {
	*graph.Graph
	kernel *Kernel
	opts   Options
	args   map[string]Arg
	calls  []string
	err    error

	session *Session
	ctx     context.Context
}

func newBuilder(g *graph.Graph, k *Kernel, opts Options) *Builder {
	return &Builder{Graph: g, kernel: k, opts: opts, args: make(map[string]Arg)}
}

// Err returns the first argument or graph error
func (b *Builder) Err() error {
	if b.err != nil {
		return b.err
	}
	return b.Graph.Err()
}

// fail records err and poisons the graph with it, so the values handed
// back to the body fail quietly instead of with an error of their own
func (b *Builder) fail(err error) graph.Value {
	if b.err == nil {
		b.err = err
	}
	b.Graph.Fail(err)
	return graph.Value{}
}

// declare records an argument, rejecting a redeclaration with another
// type or kind
func (b *Builder) declare(a Arg) bool {
	if prev, ok := b.args[a.Name]; ok {
		if prev.Type != a.Type {
			b.fail(fmt.Errorf("argument %s declared as %s and %s", a.Name, prev.Type, a.Type))
			return false
		}
		if prev.Const != a.Const || prev.Pointer != a.Pointer {
			b.fail(fmt.Errorf("argument %s redeclared as another kind of argument", a.Name))
			return false
		}
	}
	b.args[a.Name] = a
	return true
}

// Arg declares a runtime argument and returns it as a variable
func (b *Builder) Arg(name string, t *vtypes.Type) graph.Value {
	if !isIdent(name) {
		return b.fail(fmt.Errorf("argument name %q is not an identifier", name))
	}
	if !b.declare(Arg{Name: name, Type: t}) {
		return graph.Value{}
	}
	return b.Var(t, name)
}

// Buffer declares a pointer argument and returns its name for use in
// expression templates, such as x[{}]
func (b *Builder) Buffer(name string, t *vtypes.Type) string {
	if !isIdent(name) {
		b.fail(fmt.Errorf("buffer name %q is not an identifier", name))
		return name
	}
	b.declare(Arg{Name: name, Type: t, Pointer: true})
	return name
}

// Const declares a specialization constant and returns it as a literal.
// The value comes from the generation options, then from def; a nil def
// makes the option mandatory.
func (b *Builder) Const(name string, t *vtypes.Type, def any) graph.Value {
	v, ok := b.ConstValue(name, t, def)
	if !ok {
		return graph.Value{}
	}
	return b.Graph.Const(t, v)
}

// ConstValue declares a specialization constant like Const and returns
// its raw value, for bodies that shape the graph by it.
func (b *Builder) ConstValue(name string, t *vtypes.Type, def any) (any, bool) {
	if !isIdent(name) {
		b.fail(fmt.Errorf("constant name %q is not an identifier", name))
		return nil, false
	}
	v, ok := b.opts[name]
	if !ok {
		v = def
	}
	if v == nil {
		b.fail(fmt.Errorf("value for %s was not provided", name))
		return nil, false
	}
	lit, err := t.Format(v)
	if err != nil {
		b.fail(fmt.Errorf("constant %s: %w", name, err))
		return nil, false
	}
	if !b.declare(Arg{Name: name, Type: t, Const: true, Value: lit}) {
		return nil, false
	}
	return v, true
}

// Int declares an int32 specialization constant and returns its value
func (b *Builder) Int(name string, def int) int {
	v, ok := b.ConstValue(name, vtypes.Int32, def)
	if !ok {
		return def
	}
	lit, _ := vtypes.Int32.Format(v)
	n, _ := strconv.Atoi(lit)
	return n
}

// Call generates callee in the builder's session and emits a call to it
// that no other statement is scheduled across.
// args are passed to the callee's scalar arguments in signature order;
// buffers are passed by name and must be buffers of the caller too.
func (b *Builder) Call(callee *Kernel, opts Options, args ...graph.Value) graph.Value {
	if b.Err() != nil {
		return graph.Value{}
	}
	if b.session == nil {
		return b.fail(fmt.Errorf("call of %s outside a session", callee.Name))
	}
	gen, err := b.session.Generate(b.ctx, callee, opts)
	if err != nil {
		return b.fail(err)
	}
	var params []string
	rest := args
	for _, p := range gen.Args {
		if p.Pointer {
			if own, ok := b.args[p.Name]; !ok || !own.Pointer || own.Type != p.Type {
				return b.fail(fmt.Errorf("%s: caller has no buffer %s of %s", gen.Name, p.Name, p.Type))
			}
			params = append(params, p.Name)
			continue
		}
		if len(rest) == 0 {
			return b.fail(fmt.Errorf("%s: missing argument %s", gen.Name, p.Name))
		}
		if rest[0].Type() != p.Type {
			return b.fail(fmt.Errorf("%s: argument %s is %s, got %s", gen.Name, p.Name, p.Type, rest[0].Type()))
		}
		params = append(params, "{}")
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return b.fail(fmt.Errorf("%s: %d extra arguments", gen.Name, len(rest)))
	}
	if !slices.Contains(b.calls, gen.Name) {
		b.calls = append(b.calls, gen.Name)
	}
	return b.StationaryCode(gen.Name+"("+strings.Join(params, ", ")+");", args...)
}

// Args returns the declared arguments of the given kind, in name order
func (b *Builder) Args(consts bool) []Arg {
	var out []Arg
	for _, a := range b.args {
		if a.Const == consts {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MangledName is <name>_<consts>_F<processor>, with the constants as
// <name>V<value> joined by X. Kernels without constants are
// <name>_F<processor>.
func MangledName(name, processor string, consts []Arg) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('_')
	for i, c := range consts {
		if i > 0 {
			b.WriteByte('X')
		}
		b.WriteString(c.Name)
		b.WriteByte('V')
		b.WriteString(mangleValue(c.Value))
	}
	if len(consts) > 0 {
		b.WriteByte('_')
	}
	b.WriteByte('F')
	b.WriteString(mangleValue(processor))
	return b.String()
}

// mangleValue maps a literal onto identifier characters: . becomes K,
// - becomes N and anything else that is not alphanumeric is dropped
func mangleValue(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '.':
			b.WriteByte('K')
		case r == '-':
			b.WriteByte('N')
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isIdent reports whether s is an ASCII C identifier
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
