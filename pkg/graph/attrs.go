package graph

import "strings"

// Flag is a symbolic property of a value. Zero and One are numeric flags
// known from literals; Neg, NotBit and InvDiv are pending unary transforms
// that have not been materialized as nodes yet.
type Flag uint8

const (
	FlagZero Flag = 1 << iota
	FlagOne
	FlagNotBit
	FlagNeg
	FlagInvDiv
)

// flagNames is in lexicographic order, which is also the order pending
// transforms of one group are materialized in
var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagInvDiv, "invdiv"},
	{FlagNeg, "neg"},
	{FlagNotBit, "notbit"},
	{FlagOne, "one"},
	{FlagZero, "zero"},
}

func (f Flag) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// priority returns the attribute group a flag belongs to.
// At most one group of each priority is live at the top of a stack.
func (f Flag) priority() int {
	switch f {
	case FlagZero, FlagOne:
		return 10
	case FlagNotBit:
		return 5
	case FlagNeg, FlagInvDiv:
		return 4
	}
	return 0
}

// mnemonic is the unary operation that materializes a pending transform
func (f Flag) mnemonic() string {
	switch f {
	case FlagNeg:
		return "neg"
	case FlagNotBit:
		return "notbit"
	case FlagInvDiv:
		return "invdiv"
	}
	return ""
}

// AttrGroup is a set of pending transforms of the same priority
type AttrGroup struct {
	Priority int
	Attrs    Flag
}

// AttrStack is the stack of pending transforms of a value handle.
// It has value semantics: Toggle returns a new stack.
type AttrStack []AttrGroup

// Toggle applies a transform. Applying the same transform twice in a row
// cancels it; groups left empty are dropped.
func (s AttrStack) Toggle(f Flag) AttrStack {
	out := make(AttrStack, len(s), len(s)+1)
	copy(out, s)

	p := f.priority()
	if n := len(out); n > 0 && out[n-1].Priority == p {
		out[n-1].Attrs ^= f
	} else {
		out = append(out, AttrGroup{Priority: p, Attrs: f})
	}
	for len(out) > 0 && out[len(out)-1].Attrs == 0 {
		out = out[:len(out)-1]
	}
	return out
}

// Top returns the topmost group, false if the stack is empty
func (s AttrStack) Top() (AttrGroup, bool) {
	if len(s) == 0 {
		return AttrGroup{}, false
	}
	return s[len(s)-1], true
}

// Equal compares two stacks group by group
func (s AttrStack) Equal(o AttrStack) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// pending lists the transforms to materialize: bottom group first,
// lexicographic within a group
func (s AttrStack) pending() []Flag {
	var out []Flag
	for _, g := range s {
		for _, fn := range flagNames {
			if g.Attrs&fn.flag != 0 {
				out = append(out, fn.flag)
			}
		}
	}
	return out
}

func (s AttrStack) String() string {
	parts := make([]string, len(s))
	for i, g := range s {
		parts[i] = g.Attrs.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
