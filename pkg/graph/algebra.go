package graph

// Arithmetic and bitwise builders. Each one first tries the identities
// below on the symbolic flags of its operands and only builds a node when
// none applies; pending transforms are flushed just before that.

// Add returns a + b
func (g *Graph) Add(a, b Value) Value {
	if !g.usable(a, b) {
		return Value{}
	}
	switch {
	case b.Has(FlagNeg):
		return g.Sub(a, g.Neg(b))
	case a.Has(FlagNeg):
		return g.Sub(b, g.Neg(a))
	case b.Has(FlagZero):
		return a
	case a.Has(FlagZero):
		return b
	}
	return g.Op("add", a, b)
}

// Sub returns a - b
func (g *Graph) Sub(a, b Value) Value {
	if !g.usable(a, b) {
		return Value{}
	}
	switch {
	case Same(a, b):
		return g.Zero(a.Type())
	case a.Has(FlagNeg):
		return g.Neg(g.Add(g.Neg(a), b))
	case b.Has(FlagNeg):
		return g.Add(a, g.Neg(b))
	case b.Has(FlagZero):
		return a
	case a.Has(FlagZero):
		return g.Neg(b)
	}
	return g.Op("sub", a, b)
}

// Mul returns a * b
func (g *Graph) Mul(a, b Value) Value {
	if !g.usable(a, b) {
		return Value{}
	}
	switch {
	case a.Has(FlagNeg):
		return g.Neg(g.Mul(b, g.Neg(a)))
	case a.Has(FlagZero), b.Has(FlagOne):
		return a
	case a.Has(FlagOne), b.Has(FlagZero):
		return b
	}
	return g.Op("mul", a, b)
}

// Div returns a / b
func (g *Graph) Div(a, b Value) Value {
	if !g.usable(a, b) {
		return Value{}
	}
	switch {
	case Same(a, b):
		return g.One(a.Type())
	case a.Has(FlagZero), b.Has(FlagOne):
		return a
	case a.Has(FlagOne):
		return g.Reciprocal(b)
	}
	return g.Op("div", a, b)
}

// And returns a & b
func (g *Graph) And(a, b Value) Value {
	if !g.usable(a, b) {
		return Value{}
	}
	switch {
	case a.Has(FlagNotBit) && b.Has(FlagNotBit):
		return g.Not(g.Or(g.Not(a), g.Not(b)))
	case a.Has(FlagZero):
		return a
	case b.Has(FlagZero):
		return b
	}
	return g.Op("and", a, b)
}

// Or returns a | b
func (g *Graph) Or(a, b Value) Value {
	if !g.usable(a, b) {
		return Value{}
	}
	switch {
	case a.Has(FlagNotBit) && b.Has(FlagNotBit):
		return g.Not(g.And(g.Not(a), g.Not(b)))
	case a.Has(FlagZero):
		return b
	case b.Has(FlagZero):
		return a
	}
	return g.Op("or", a, b)
}

// Xor returns a ^ b
func (g *Graph) Xor(a, b Value) Value {
	if !g.usable(a, b) {
		return Value{}
	}
	switch {
	case Same(a, b):
		return g.Zero(a.Type())
	case a.Has(FlagNotBit) && b.Has(FlagNotBit):
		return g.Xor(g.Not(a), g.Not(b))
	case a.Has(FlagZero):
		return b
	case b.Has(FlagZero):
		return a
	}
	return g.Op("xor", a, b)
}

// Neg returns -a. The negation stays pending until a is used.
func (g *Graph) Neg(a Value) Value {
	if !g.usable(a) {
		return Value{}
	}
	return a.toggle(FlagNeg)
}

// Not returns ^a. The complement stays pending until a is used.
func (g *Graph) Not(a Value) Value {
	if !g.usable(a) {
		return Value{}
	}
	return a.toggle(FlagNotBit)
}

// Reciprocal returns 1/a. The inversion stays pending until a is used.
func (g *Graph) Reciprocal(a Value) Value {
	if !g.usable(a) {
		return Value{}
	}
	return a.toggle(FlagInvDiv)
}
