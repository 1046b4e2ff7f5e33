// Package demo holds the built-in kernels of the ralph-kgen command.
package demo

import (
	"fmt"
	"sort"

	"github.com/raymyers/ralph-kgen/pkg/graph"
	"github.com/raymyers/ralph-kgen/pkg/kernel"
	"github.com/raymyers/ralph-kgen/pkg/vtypes"
)

// Axpy updates y[i] = alpha*x[i] + y[i] for i in [0, n) and writes the
// sum of the updated values to *total. alpha is a specialization
// constant, so alpha=1 generates no multiplication.
var Axpy = &kernel.Kernel{Name: "axpy", Body: axpy}

func axpy(b *kernel.Builder) error {
	n := b.Arg("n", vtypes.Int32)
	x := b.Buffer("x", vtypes.Float)
	y := b.Buffer("y", vtypes.Float)
	total := b.Buffer("total", vtypes.Float)
	alpha := b.Const("alpha", vtypes.Float, 2.0)

	sum := b.SetPrefix(b.Sep(b.Zero(vtypes.Float)), "acc")
	loop := b.NewLoop(b.Zero(vtypes.Int32), n, b.One(vtypes.Int32), 64)
	err := loop.Do(func(it graph.Value) error {
		xi := b.Expr(vtypes.Float, x+"[{}]", it)
		yi := b.Expr(vtypes.Float, y+"[{}]", it)
		r := b.Add(b.Mul(alpha, xi), yi)
		b.Code(y+"[{}] = {};", it, r)

		acc := b.Rebind(sum)
		b.Code("{} = {};", acc, b.Add(acc, r))
		return nil
	})
	if err != nil {
		return err
	}
	b.Store(b.Rebind(sum), "*"+total)
	return b.Err()
}

// Blend writes out[i] = a[i] + (b[i] - a[i]) * w over n vectors of four
// floats. The body also adds a[i] - a[i] and negates twice; both cancel
// before any node is built.
var Blend = &kernel.Kernel{Name: "blend", Body: blend}

func blend(b *kernel.Builder) error {
	n := b.Arg("n", vtypes.Int32)
	a := b.Buffer("a", vtypes.V4F)
	c := b.Buffer("b", vtypes.V4F)
	out := b.Buffer("out", vtypes.V4F)
	w := b.Cvt(b.Const("w", vtypes.Float, 0.25), vtypes.V4F)

	loop := b.NewLoop(b.Zero(vtypes.Int32), n, b.One(vtypes.Int32), 32)
	return loop.Do(func(it graph.Value) error {
		va := b.Expr(vtypes.V4F, a+"[{}]", it)
		vb := b.Expr(vtypes.V4F, c+"[{}]", it)
		r := b.Add(va, b.Mul(b.Sub(vb, va), w))
		r = b.Neg(b.Neg(b.Add(r, b.Sub(va, va))))
		b.Code(out+"[{}] = {};", it, r)
		return b.Err()
	})
}

// Pipeline runs Axpy and then Blend over the same n
var Pipeline = &kernel.Kernel{Name: "pipeline", Body: pipeline}

func pipeline(b *kernel.Builder) error {
	n := b.Arg("n", vtypes.Int32)
	for _, buf := range []string{"x", "y", "total"} {
		b.Buffer(buf, vtypes.Float)
	}
	for _, buf := range []string{"a", "b", "out"} {
		b.Buffer(buf, vtypes.V4F)
	}
	b.Call(Axpy, nil, n)
	b.Call(Blend, nil, n)
	return b.Err()
}

var demos = map[string]*kernel.Kernel{
	Axpy.Name:     Axpy,
	Blend.Name:    Blend,
	Pipeline.Name: Pipeline,
}

// Names lists the demo kernels
func Names() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName returns a demo kernel
func ByName(name string) (*kernel.Kernel, error) {
	if k, ok := demos[name]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown demo %q (want one of %v)", name, Names())
}
