// Package vtypes defines the value types a kernel graph computes with.
// Types are identified by name; operation descriptors refer to them by that name.
package vtypes

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind classifies a value type
type Kind int

const (
	KBool Kind = iota
	KInt
	KFloat
	KVector
)

func (k Kind) String() string {
	names := []string{"bool", "int", "float", "vector"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Type is a scalar or short-vector value type
type Type struct {
	Name  string
	Kind  Kind
	Shape []int // lane counts per dimension, empty for scalars
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	return t.Name
}

// Lanes returns the total number of elements of the type
func (t *Type) Lanes() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Built-in types
var (
	Bool  = &Type{Name: "bool", Kind: KBool}
	Int32 = &Type{Name: "int32", Kind: KInt}
	Float = &Type{Name: "float", Kind: KFloat}
	V4F   = &Type{Name: "v4f", Kind: KVector, Shape: []int{4}}
)

var builtins = map[string]*Type{
	Bool.Name:  Bool,
	Int32.Name: Int32,
	Float.Name: Float,
	V4F.Name:   V4F,
}

// Lookup returns the built-in type with the given name
func Lookup(name string) (*Type, bool) {
	t, ok := builtins[name]
	return t, ok
}

// Names returns the names of all built-in types
func Names() []string {
	return []string{Bool.Name, Int32.Name, Float.Name, V4F.Name}
}

// Format renders a literal of this type as target source text.
// Accepted Go values: bool, integers, floats, and []float64 / []float32 for vectors.
func (t *Type) Format(v any) (string, error) {
	switch t.Kind {
	case KBool:
		b, ok := v.(bool)
		if !ok {
			n, err := toFloat(v)
			if err != nil {
				return "", fmt.Errorf("%s literal: %w", t.Name, err)
			}
			b = n != 0
		}
		return strconv.FormatBool(b), nil

	case KInt:
		n, err := toFloat(v)
		if err != nil {
			return "", fmt.Errorf("%s literal: %w", t.Name, err)
		}
		if n != math.Trunc(n) {
			return "", fmt.Errorf("%s literal: %v is not integral", t.Name, v)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return "", fmt.Errorf("%s literal: %v out of range", t.Name, v)
		}
		return strconv.FormatInt(int64(n), 10), nil

	case KFloat:
		n, err := toFloat(v)
		if err != nil {
			return "", fmt.Errorf("%s literal: %w", t.Name, err)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "", fmt.Errorf("%s literal: %v is not finite", t.Name, v)
		}
		return formatFloat(n), nil

	case KVector:
		items, err := toFloats(v, t.Lanes())
		if err != nil {
			return "", fmt.Errorf("%s literal: %w", t.Name, err)
		}
		parts := make([]string, len(items))
		for i, x := range items {
			parts[i] = formatFloat(x)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	}
	return "", fmt.Errorf("cannot format literal of kind %s", t.Kind)
}

// formatFloat always keeps a decimal point so the literal stays floating in C
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("unsupported literal %T", v)
}

func toFloats(v any, lanes int) ([]float64, error) {
	var out []float64
	switch x := v.(type) {
	case []float64:
		out = append(out, x...)
	case []float32:
		for _, f := range x {
			out = append(out, float64(f))
		}
	case []any:
		for _, e := range x {
			f, err := toFloat(e)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
	default:
		// a scalar broadcasts to every lane
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		for i := 0; i < lanes; i++ {
			out = append(out, f)
		}
	}
	if len(out) != lanes {
		return nil, fmt.Errorf("want %d lanes, got %d", lanes, len(out))
	}
	return out, nil
}

// IsZero reports whether v is the literal zero of the type
func (t *Type) IsZero(v any) bool {
	return t.literalEquals(v, 0)
}

// IsOne reports whether v is the literal one of the type
func (t *Type) IsOne(v any) bool {
	return t.literalEquals(v, 1)
}

func (t *Type) literalEquals(v any, want float64) bool {
	if t.Kind == KVector {
		items, err := toFloats(v, t.Lanes())
		if err != nil {
			return false
		}
		for _, x := range items {
			if x != want {
				return false
			}
		}
		return true
	}
	f, err := toFloat(v)
	return err == nil && f == want
}
