package procdesc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-kgen/pkg/vtypes"
)

func TestOpName(t *testing.T) {
	assert.Equal(t, "addYfloatXfloat", OpName("add", "float", "float"))
	assert.Equal(t, "zeroYint32", OpName("zero", "int32"))
	assert.Equal(t, "codeY", OpName("code"))

	m, types := SplitOpName("cvtYint32Xfloat")
	assert.Equal(t, "cvt", m)
	assert.Equal(t, []string{"int32", "float"}, types)

	m, types = SplitOpName("code")
	assert.Equal(t, "code", m)
	assert.Nil(t, types)
}

func TestOpConstructors(t *testing.T) {
	add := SignOp("add", "+", true, vtypes.Float, vtypes.Int32, vtypes.Float).WithCost(5, 6)
	assert.Equal(t, "addYfloatXint32", add.Name, "commutative names sort operand types")
	assert.Equal(t, "{} + {}", add.Expr)
	assert.True(t, add.Commutative)
	assert.Equal(t, []int{6}, add.Ports)

	sub := SignOp("sub", "-", false, vtypes.Float, vtypes.Int32, vtypes.Float)
	assert.Equal(t, "subYint32Xfloat", sub.Name)

	neg := SignOp("neg", "-", false, vtypes.Float, vtypes.Float)
	assert.Equal(t, "-{}", neg.Expr)

	assert.Equal(t, "cvtYint32Xfloat", CvtOp(vtypes.Int32, vtypes.Float).Name)
	assert.Equal(t, "storYv4f", StoreOp(vtypes.V4F).Name)
	assert.Empty(t, StoreOp(vtypes.V4F).Result)
	assert.Equal(t, "float", LoadOp(vtypes.Float).Result)
	assert.Equal(t, "fmaYfloatXfloatXfloat", FuncOp("fma", vtypes.Float, vtypes.Float, vtypes.Float, vtypes.Float).Name)
	assert.Equal(t, "0", TypedOp("zero", vtypes.Int32, "0").Expr)
}

func TestValidate(t *testing.T) {
	good := func() *Descr {
		return &Descr{
			Name:      "t",
			MemLevels: []MemLevel{{Name: "regs", Capacity: 4}},
			Ops:       []Op{LoadOp(vtypes.Float).WithCost(1, 0)},
		}
	}
	require.NoError(t, good().Validate())

	tests := []struct {
		name   string
		mutate func(d *Descr)
		want   string
	}{
		{"no name", func(d *Descr) { d.Name = "" }, "no name"},
		{"zero capacity", func(d *Descr) { d.MemLevels[0].Capacity = 0 }, "capacity"},
		{"duplicate", func(d *Descr) { d.Ops = append(d.Ops, d.Ops[0]) }, "duplicate"},
		{"unknown type", func(d *Descr) { d.Ops[0].Result = "double" }, "unknown result type"},
		{"no ports", func(d *Descr) { d.Ops[0].Ports = nil }, "no port"},
		{"negative cost", func(d *Descr) { d.Ops[0].ExecCost = -1 }, "negative cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := good()
			tt.mutate(d)
			err := d.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadYAMLAndCUEAgree(t *testing.T) {
	fromYAML, err := LoadFile("testdata/tiny.yaml")
	require.NoError(t, err)
	fromCUE, err := LoadFile("testdata/tiny.cue")
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
	assert.Equal(t, "tiny", fromCUE.Name)
	require.Len(t, fromCUE.Ops, 3)
	assert.True(t, fromCUE.Ops[2].Commutative)
	assert.Equal(t, []int{20}, fromCUE.Ops[2].Ports)
}

func TestLoadRejectsBadInput(t *testing.T) {
	_, err := LoadFile("testdata/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portz")

	_, err = LoadFile("testdata/incomplete.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid processor CUE")

	_, err = LoadFile("testdata/missing.yaml")
	assert.Error(t, err)

	_, err = LoadFile("procdesc.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	_, err = LoadYAML(strings.NewReader("name: [unterminated"))
	assert.Error(t, err)
}

func TestEmbeddedProfiles(t *testing.T) {
	names := Profiles()
	assert.Equal(t, []string{"arm64-neon", "generic", "x86-avx2"}, names)

	for _, name := range names {
		d, err := Profile(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, d.Name)
		assert.NotEmpty(t, d.Ops)
	}

	assert.Contains(t, names, Host())

	_, err := Profile("z80")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generic")
}
