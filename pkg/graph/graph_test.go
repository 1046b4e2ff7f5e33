package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-kgen/pkg/catalog"
	"github.com/raymyers/ralph-kgen/pkg/diag"
	"github.com/raymyers/ralph-kgen/pkg/procdesc"
	"github.com/raymyers/ralph-kgen/pkg/vtypes"
)

func genericCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	d, err := procdesc.Profile("generic")
	require.NoError(t, err)
	c, err := catalog.New(d)
	require.NoError(t, err)
	return c
}

func opNames(p *Program) []string {
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Op().Name
	}
	return names
}

func countOps(g *Graph, prefix string) int {
	n := 0
	for _, s := range g.scopes {
		for _, node := range s.nodes {
			if strings.HasPrefix(node.Op().Name, prefix) {
				n++
			}
		}
	}
	return n
}

func TestHashConsing(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	b := g.Load(vtypes.Float, "y")

	c1 := g.Mul(a, b)
	before := g.NumNodes()
	scopeLen := len(g.Scope(0).Nodes())

	c2 := g.Mul(a, b)
	assert.Equal(t, c1.Key(), c2.Key())
	assert.Equal(t, c1.Origin(), c2.Origin())
	assert.Same(t, c1.Node(), c2.Node())
	assert.Equal(t, before, g.NumNodes(), "a hit must not record the node again")
	assert.Len(t, g.Scope(0).Nodes(), scopeLen)

	// loads of the same address are shared too
	assert.Same(t, a.Node(), g.Load(vtypes.Float, "x").Node())
	assert.Equal(t, "mulYfloatXfloatY0X1", c1.Key())
}

func TestCommutativeKeys(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	b := g.Load(vtypes.Float, "y")

	assert.Same(t, g.Add(a, b).Node(), g.Add(b, a).Node())
	assert.NotSame(t, g.Sub(a, b).Node(), g.Sub(b, a).Node())
	require.NoError(t, g.Err())
}

func TestKeys(t *testing.T) {
	g := New(genericCatalog(t))
	one := g.Const(vtypes.Float, 1)
	zero := g.Zero(vtypes.Int32)
	n := g.Var(vtypes.Int32, "n")
	s := g.Store(one, "out[0]")
	require.NoError(t, g.Err())

	assert.Equal(t, "constYfloatYZ1.0", one.Key())
	assert.Equal(t, "zeroYint32Y", zero.Key())
	assert.Equal(t, "$nZint32", n.Key())
	assert.Equal(t, "storYfloatY0Zout[0]", s.Key())
}

func TestVarKeyDoesNotCollideWithOps(t *testing.T) {
	g := New(genericCatalog(t))
	v := g.Var(vtypes.Float, "loadYfloatY")
	l := g.Load(vtypes.Float, "float")
	require.NoError(t, g.Err())
	assert.NotEqual(t, v.Key(), l.Key())
	assert.False(t, Same(v, l))
	assert.Equal(t, "loadYfloatYZfloat", l.Key())
}

func TestNonCommutativeOrder(t *testing.T) {
	d := &procdesc.Descr{
		Name:      "addonly",
		MemLevels: []procdesc.MemLevel{{Name: "regs", Capacity: 4}},
		Ops: []procdesc.Op{
			procdesc.LoadOp(vtypes.Float).WithCost(1, 1),
			procdesc.LoadOp(vtypes.Int32).WithCost(1, 1),
			procdesc.SignOp("add", "+", true, vtypes.Float, vtypes.Float, vtypes.Int32).WithCost(1, 2),
		},
	}
	cat, err := catalog.New(d)
	require.NoError(t, err)

	t.Run("missing sub", func(t *testing.T) {
		g := New(cat)
		a := g.Load(vtypes.Float, "x")
		b := g.Load(vtypes.Int32, "i")
		v := g.Sub(a, b)
		assert.False(t, v.Valid())
		assert.True(t, diag.IsUnknownOperation(g.Err()))
		assert.Contains(t, g.Err().Error(), "subYfloatXint32")
	})

	t.Run("swapped commutative", func(t *testing.T) {
		g := New(cat)
		a := g.Load(vtypes.Float, "x")
		b := g.Load(vtypes.Int32, "i")
		ab := g.Add(a, b)
		ba := g.Add(b, a)
		require.NoError(t, g.Err())
		assert.Equal(t, "addYfloatXint32", ba.Node().Op().Name)
		assert.Equal(t, ab.Key(), ba.Key())
		assert.Same(t, ab.Node(), ba.Node())
	})
}

func TestIdentities(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	b := g.Load(vtypes.Float, "y")
	i := g.Load(vtypes.Int32, "i")
	zero := g.Zero(vtypes.Float)
	one := g.One(vtypes.Float)

	t.Run("a - a", func(t *testing.T) {
		v := g.Sub(a, a)
		assert.True(t, v.Has(FlagZero))
		assert.Equal(t, "zeroYfloat", v.Node().Op().Name)
		assert.Zero(t, countOps(g, "subY"))
	})
	t.Run("i ^ i", func(t *testing.T) {
		v := g.Xor(i, i)
		assert.True(t, v.Has(FlagZero))
		assert.Equal(t, "zeroYint32", v.Node().Op().Name)
		assert.Zero(t, countOps(g, "xorY"))
	})
	t.Run("a / a", func(t *testing.T) {
		v := g.Div(a, a)
		assert.True(t, v.Has(FlagOne))
		assert.Same(t, one.Node(), v.Node())
		assert.Zero(t, countOps(g, "divY"))
	})
	t.Run("a * one", func(t *testing.T) {
		assert.True(t, Same(a, g.Mul(a, one)))
		assert.True(t, Same(a, g.Mul(one, a)))
		assert.Zero(t, countOps(g, "mulY"))
	})
	t.Run("a * zero", func(t *testing.T) {
		assert.True(t, Same(zero, g.Mul(a, zero)))
		assert.True(t, Same(zero, g.Mul(zero, a)))
	})
	t.Run("a + zero", func(t *testing.T) {
		assert.True(t, Same(a, g.Add(a, zero)))
		assert.True(t, Same(a, g.Add(zero, a)))
		assert.True(t, Same(a, g.Sub(a, zero)))
	})
	t.Run("zero - b", func(t *testing.T) {
		v := g.Sub(zero, b)
		assert.True(t, v.Has(FlagNeg))
		assert.Same(t, b.Node(), v.Node(), "negation stays pending")
	})
	t.Run("one / b", func(t *testing.T) {
		v := g.Div(one, b)
		assert.True(t, v.Has(FlagInvDiv))
		assert.Same(t, b.Node(), v.Node())
	})
	t.Run("a / one", func(t *testing.T) {
		assert.True(t, Same(a, g.Div(a, one)))
	})
	t.Run("literal zero carries the flag", func(t *testing.T) {
		assert.True(t, g.Const(vtypes.Float, 0.0).Has(FlagZero))
		assert.True(t, g.Const(vtypes.V4F, []float64{1, 1, 1, 1}).Has(FlagOne))
	})
	require.NoError(t, g.Err())
}

func TestNegationRewrites(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	b := g.Load(vtypes.Float, "y")

	// a + (-b) is a - b
	v := g.Add(a, g.Neg(b))
	require.NoError(t, g.Err())
	assert.Equal(t, "subYfloatXfloat", v.Node().Op().Name)
	assert.Equal(t, []Origin{a.Origin(), b.Origin()}, []Origin{v.Node().Operands()[0].Origin(), v.Node().Operands()[1].Origin()})

	// (-a) - b is -(a + b)
	v = g.Sub(g.Neg(a), b)
	assert.True(t, v.Has(FlagNeg))
	assert.Equal(t, "addYfloatXfloat", v.Node().Op().Name)

	// (-a) * b is -(b * a)
	v = g.Mul(g.Neg(a), b)
	assert.True(t, v.Has(FlagNeg))
	assert.Equal(t, "mulYfloatXfloat", v.Node().Op().Name)

	// (-a) * (-b) is a * b
	v = g.Mul(g.Neg(a), g.Neg(b))
	assert.Empty(t, v.Attrs())
	assert.Equal(t, "mulYfloatXfloat", v.Node().Op().Name)
	assert.Zero(t, countOps(g, "negY"))
}

func TestDeMorgan(t *testing.T) {
	g := New(genericCatalog(t))
	x := g.Load(vtypes.Int32, "x")
	y := g.Load(vtypes.Int32, "y")

	v := g.And(g.Not(x), g.Not(y))
	require.NoError(t, g.Err())
	assert.True(t, v.Has(FlagNotBit))
	assert.Equal(t, "orYint32Xint32", v.Node().Op().Name)

	v = g.Or(g.Not(x), g.Not(y))
	assert.True(t, v.Has(FlagNotBit))
	assert.Equal(t, "andYint32Xint32", v.Node().Op().Name)

	v = g.Xor(g.Not(x), g.Not(y))
	assert.Empty(t, v.Attrs())
	assert.Equal(t, "xorYint32Xint32", v.Node().Op().Name)
	assert.Zero(t, countOps(g, "notbitY"))
}

func TestBitwiseZero(t *testing.T) {
	g := New(genericCatalog(t))
	x := g.Load(vtypes.Int32, "x")
	zero := g.Zero(vtypes.Int32)

	assert.True(t, Same(zero, g.And(zero, x)))
	assert.True(t, Same(zero, g.And(x, zero)))
	assert.True(t, Same(x, g.Or(zero, x)))
	assert.True(t, Same(x, g.Or(x, zero)))
	assert.True(t, Same(x, g.Xor(zero, x)))
	assert.True(t, Same(x, g.Xor(x, zero)))
}

func TestDoubleTransformsCancel(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	i := g.Load(vtypes.Int32, "i")

	assert.True(t, Same(a, g.Neg(g.Neg(a))))
	assert.True(t, Same(i, g.Not(g.Not(i))))
	assert.True(t, Same(a, g.Reciprocal(g.Reciprocal(a))))
	assert.False(t, Same(a, g.Neg(a)))
	assert.False(t, Same(i, g.Not(i)))
}

func TestAttrStackToggle(t *testing.T) {
	tests := []struct {
		name  string
		flags []Flag
		want  AttrStack
	}{
		{"single", []Flag{FlagNeg}, AttrStack{{4, FlagNeg}}},
		{"cancel", []Flag{FlagNeg, FlagNeg}, AttrStack{}},
		{"same group", []Flag{FlagNeg, FlagInvDiv}, AttrStack{{4, FlagNeg | FlagInvDiv}}},
		{"push", []Flag{FlagNeg, FlagNotBit}, AttrStack{{4, FlagNeg}, {5, FlagNotBit}}},
		{"pop to lower", []Flag{FlagNeg, FlagNotBit, FlagNotBit}, AttrStack{{4, FlagNeg}}},
		{"no merge below top", []Flag{FlagNeg, FlagNotBit, FlagNeg}, AttrStack{{4, FlagNeg}, {5, FlagNotBit}, {4, FlagNeg}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s AttrStack
			for _, f := range tt.flags {
				s = s.Toggle(f)
			}
			assert.True(t, tt.want.Equal(s), "got %s, want %s", s, tt.want)
		})
	}
}

func TestToggleDoesNotAlias(t *testing.T) {
	s := AttrStack{{4, FlagNeg}}
	_ = s.Toggle(FlagInvDiv)
	assert.Equal(t, AttrStack{{4, FlagNeg}}, s)
}

func TestHasReadsTopGroup(t *testing.T) {
	g := New(genericCatalog(t))
	zero := g.Zero(vtypes.Float)
	assert.True(t, zero.Has(FlagZero))

	nz := g.Neg(zero)
	assert.True(t, nz.Has(FlagNeg))
	assert.False(t, nz.Has(FlagZero), "pending transforms hide the numeric flags")
}

func TestFlushOrder(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	i := g.Load(vtypes.Int32, "i")

	// one group: invdiv before neg
	g.Store(g.Neg(g.Reciprocal(a)), "y")
	// two groups: bottom group first
	g.Store(g.Not(g.Neg(i)), "j")

	p, err := g.Linearize()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"loadYfloat", "loadYint32",
		"invdivYfloat", "negYfloat", "storYfloat",
		"negYint32", "notbitYint32", "storYint32",
	}, opNames(p))
}

func TestScopeBalance(t *testing.T) {
	g := New(genericCatalog(t))
	before := g.NumScopes()

	g.OpenScope(2)
	g.OpenScope(3)
	assert.Equal(t, 2, g.Depth())
	assert.Equal(t, 6.0, g.Scope(g.NumScopes()-1).Weight)
	g.CloseScope()
	g.OpenScope(5)
	assert.Equal(t, 10.0, g.Scope(g.NumScopes()-1).Weight)
	g.CloseScope()
	g.CloseScope()

	require.NoError(t, g.Err())
	assert.Equal(t, before+6, g.NumScopes())
	assert.Equal(t, 0, g.Depth())
	assert.Equal(t, 1.0, g.Scope(g.NumScopes()-1).Weight)
}

func TestUnbalancedClose(t *testing.T) {
	g := New(genericCatalog(t))
	g.CloseScope()
	require.Error(t, g.Err())
	assert.True(t, diag.IsScopeViolation(g.Err()))

	// the error is sticky
	assert.False(t, g.Load(vtypes.Float, "x").Valid())
	_, err := g.Linearize()
	assert.True(t, diag.IsScopeViolation(err))
}

func TestUnclosedScope(t *testing.T) {
	g := New(genericCatalog(t))
	g.OpenScope(2)
	g.Store(g.Load(vtypes.Float, "x"), "y")
	_, err := g.Linearize()
	require.Error(t, err)
	assert.True(t, diag.IsScopeViolation(err))
}

func TestScopedClosesOnError(t *testing.T) {
	g := New(genericCatalog(t))
	boom := errors.New("boom")
	err := g.Scoped(8, func() error {
		assert.Equal(t, 1, g.Depth())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, g.Depth())
	require.NoError(t, g.Err())
}

func TestDeadCodeElimination(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	b := g.Load(vtypes.Float, "y")
	dead := g.Mul(a, b)
	g.Div(dead, a)
	g.Store(g.Add(a, a), "z")

	p, err := g.Linearize()
	require.NoError(t, err)
	assert.Equal(t, []string{"loadYfloat", "addYfloatXfloat", "storYfloat"}, opNames(p))
	for _, n := range p.Nodes {
		assert.NotEqual(t, dead.Key(), n.Key())
	}
	assert.Equal(t, [][]int{{}, {0, 0}, {1}}, p.Args)
}

func TestNoRootsNoProgram(t *testing.T) {
	g := New(genericCatalog(t))
	g.Add(g.Load(vtypes.Float, "x"), g.Load(vtypes.Float, "y"))
	p, err := g.Linearize()
	require.NoError(t, err)
	assert.Zero(t, p.Len())
}

func TestAliasResolutionIsOneHop(t *testing.T) {
	g := New(genericCatalog(t))
	base := g.Load(vtypes.Float, "x")

	v := base
	for i := 0; i < 10; i++ {
		g.OpenScope(2)
		v = g.Rebind(v)
		require.NoError(t, g.Err())

		target, ok := g.aliases[v.Origin()]
		require.True(t, ok)
		assert.Equal(t, base.Origin(), target.Origin())
		_, chained := g.aliases[target.Origin()]
		assert.False(t, chained, "alias targets are never aliases themselves")

		r, err := g.Resolve(v)
		require.NoError(t, err)
		assert.Equal(t, base.Origin(), r.Origin())
	}
	for i := 0; i < 10; i++ {
		g.CloseScope()
	}

	r, err := g.Resolve(base)
	require.NoError(t, err)
	assert.True(t, Same(base, r), "unaliased values resolve to themselves")
}

func TestAliasChainIsAFault(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	b := g.Rebind(a)
	c := g.Rebind(b)
	require.NoError(t, g.Err())

	// corrupt the table into a two-hop chain
	g.aliases[c.Origin()] = b
	_, err := g.Resolve(c)
	require.Error(t, err)
	assert.True(t, diag.IsAliasResolution(err))

	g.Store(c, "y")
	_, err = g.Linearize()
	assert.True(t, diag.IsAliasResolution(err))
}

func TestEndToEnd(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	b := g.Load(vtypes.Float, "y")
	c := g.Add(a, b)

	g.OpenScope(4)
	loopC := g.Rebind(c)
	g.CloseScope()
	g.Store(loopC, "z")

	p, err := g.Linearize()
	require.NoError(t, err)
	require.Equal(t, 4, p.Len())
	assert.Equal(t, []string{"loadYfloat", "loadYfloat", "addYfloatXfloat", "storYfloat"}, opNames(p))
	assert.Equal(t, a.Key(), p.Nodes[0].Key())
	assert.Equal(t, b.Key(), p.Nodes[1].Key())
	assert.Equal(t, c.Key(), p.Nodes[2].Key())
	assert.Equal(t, []int{2}, p.Args[3], "the store reads the add through the alias")

	assert.Equal(t, 1.0, p.WeightAt(2))
	assert.Equal(t, 1.0, g.ScopeWeight(c))
	assert.Equal(t, 4.0, g.ScopeWeight(loopC))
	assert.Equal(t, 4.0, p.WeightAt(3))
}

func TestRebindOutsideOwningBlock(t *testing.T) {
	g := New(genericCatalog(t))
	var inner Value
	g.OpenScope(4)
	inner = g.Rebind(g.Load(vtypes.Float, "x"))
	g.CloseScope()
	require.NoError(t, g.Err())

	g.Rebind(inner)
	require.Error(t, g.Err())
	assert.True(t, diag.IsScopeViolation(g.Err()))
}

func TestRebindForeignValue(t *testing.T) {
	cat := genericCatalog(t)
	g1 := New(cat)
	g2 := New(cat)
	g2.Load(vtypes.Float, "y")
	v := g1.Load(vtypes.Float, "x")

	assert.False(t, g2.Rebind(v).Valid())
	assert.True(t, diag.IsScopeViolation(g2.Err()))

	g3 := New(cat)
	assert.False(t, g3.Add(Value{}, Value{}).Valid())
	assert.True(t, diag.IsScopeViolation(g3.Err()))
}

func TestVarLivesInFirstScope(t *testing.T) {
	g := New(genericCatalog(t))
	g.OpenScope(8)
	x := g.Load(vtypes.Float, "x[0]")
	n := g.Var(vtypes.Float, "alpha")
	g.Store(g.Mul(x, n), "y[0]")
	g.CloseScope()

	p, err := g.Linearize()
	require.NoError(t, err)
	require.Equal(t, 4, p.Len())
	assert.Equal(t, "alpha", p.Nodes[0].VarName())
	assert.False(t, p.Nodes[0].Rendered())
	assert.Equal(t, 0, n.Scope())
	assert.Equal(t, 8.0, p.WeightAt(2))
}

func TestSepIsNeverShared(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	s1 := g.Sep(a)
	s2 := g.Sep(a)
	require.NoError(t, g.Err())
	assert.NotSame(t, s1.Node(), s2.Node())
	assert.Equal(t, "nopYfloat", s1.Node().Op().Name)
	assert.True(t, strings.HasPrefix(s1.Key(), "#"))
}

func TestCodeIsAlwaysLive(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	g.Code("printf(\"%f\\n\", {});", a)
	g.Code("printf(\"%f\\n\", {});", a)

	p, err := g.Linearize()
	require.NoError(t, err)
	assert.Equal(t, []string{"loadYfloat", catalog.CodeOp, catalog.CodeOp}, opNames(p))
}

func TestStationaryCodeOwnsItsScope(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "x")
	before := g.NumScopes()
	s := g.StationaryCode("barrier({});", a)
	require.NoError(t, g.Err())

	assert.Equal(t, before+2, g.NumScopes())
	assert.Equal(t, before, s.Scope())
	assert.Len(t, g.Scope(s.Scope()).Nodes(), 1)
}

func TestCvt(t *testing.T) {
	g := New(genericCatalog(t))
	i := g.Load(vtypes.Int32, "i")
	assert.True(t, Same(i, g.Cvt(i, vtypes.Int32)))

	f := g.Cvt(i, vtypes.Float)
	require.NoError(t, g.Err())
	assert.Equal(t, "cvtYint32Xfloat", f.Node().Op().Name)
	assert.Equal(t, vtypes.Float, f.Type())

	g.Cvt(g.Load(vtypes.Bool, "b"), vtypes.V4F)
	assert.True(t, diag.IsUnknownOperation(g.Err()))
}

func TestOpAndExpr(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.Load(vtypes.Float, "a")
	b := g.Load(vtypes.Float, "b")
	c := g.Load(vtypes.Float, "c")

	fma := g.Op("fma", a, b, c)
	require.NoError(t, g.Err())
	assert.Equal(t, "fmaYfloatXfloatXfloat", fma.Node().Op().Name)

	e1 := g.Expr(vtypes.Float, "x[{}]", g.Var(vtypes.Int32, "i"))
	e2 := g.Expr(vtypes.Float, "x[{}]", g.Var(vtypes.Int32, "i"))
	e3 := g.Expr(vtypes.Float, "y[{}]", g.Var(vtypes.Int32, "i"))
	require.NoError(t, g.Err())
	assert.Same(t, e1.Node(), e2.Node())
	assert.NotSame(t, e1.Node(), e3.Node())
	assert.Equal(t, "x[{}]", e1.Node().Code())
}

func TestAnnotations(t *testing.T) {
	g := New(genericCatalog(t))
	a := g.SetPrefix(g.Load(vtypes.Float, "x"), "in")
	g.SetComment(a, "input")
	assert.Equal(t, "in", a.Node().Prefix())
	assert.Equal(t, "input", a.Node().Comment())
	assert.Equal(t, "loadYfloatYZx", a.Key(), "annotations are not part of the key")
}

func TestBadLiteral(t *testing.T) {
	g := New(genericCatalog(t))
	assert.False(t, g.Const(vtypes.Int32, 1.5).Valid())
	require.Error(t, g.Err())
	assert.Contains(t, g.Err().Error(), "not integral")
}

func TestLoop(t *testing.T) {
	g := New(genericCatalog(t))
	n := g.Var(vtypes.Int32, "n")
	one := g.One(vtypes.Int32)
	sum := g.Sep(g.Zero(vtypes.Float))

	l := g.NewLoop(g.Zero(vtypes.Int32), n, one, 16)
	err := l.Do(func(it Value) error {
		x := g.Expr(vtypes.Float, "x[{}]", it)
		acc := g.Rebind(sum)
		g.StationaryCode("{} = {};", acc, g.Add(acc, x))
		return nil
	})
	require.NoError(t, err)
	g.Store(g.Rebind(sum), "out[0]")

	p, err := g.Linearize()
	require.NoError(t, err)

	var code []string
	for _, node := range p.Nodes {
		if node.Code() != "" && node.Op().Name == catalog.CodeOp {
			code = append(code, node.Code())
		}
	}
	assert.Equal(t, []string{"do {{", "{} = {};", "{} = {};", "}} while ({} < {});"}, code)

	// the body is weighted by the trip count, the rest is not
	for i, node := range p.Nodes {
		switch node.Op().Name {
		case "addYfloatXfloat", "addYint32Xint32":
			assert.Equal(t, 16.0, p.WeightAt(i), node.Key())
		case "storYfloat":
			assert.Equal(t, 1.0, p.WeightAt(i))
		}
	}
	// every operand is defined before it is used
	for i, args := range p.Args {
		for _, a := range args {
			assert.Less(t, a, i)
		}
	}
}
