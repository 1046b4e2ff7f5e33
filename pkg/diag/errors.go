// Package diag defines the errors that abort a kernel-generation pass.
//
// Every error here is fatal for the pass in progress: the graph, schedule or
// rendering is discarded and the error is returned to the host caller with
// the offending operation and node identified.
package diag

import (
	"errors"
	"fmt"
)

// Code identifies the error category.
type Code string

const (
	// UnknownOperation: no descriptor matches the op mnemonic and operand types.
	UnknownOperation Code = "UNKNOWN_OPERATION"

	// ScopeViolation: unbalanced scope operations, or rebinding a value
	// outside the block that owns it.
	ScopeViolation Code = "SCOPE_VIOLATION"

	// InvalidScheduleInput: the scheduler contract was broken (bad indices, cycles).
	InvalidScheduleInput Code = "INVALID_SCHEDULE_INPUT"

	// AliasResolution: an alias chain longer than one hop was found.
	AliasResolution Code = "ALIAS_RESOLUTION"
)

// Error is a kernel-generation fault.
type Error struct {
	Code Code

	// Op names the operation involved, if any.
	Op string

	// Node is the origin or linear position of the offending node, -1 if none.
	Node int

	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Node >= 0:
		return fmt.Sprintf("%s: %s (op=%s, node=%d)", e.Code, e.Message, e.Op, e.Node)
	case e.Op != "":
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	case e.Node >= 0:
		return fmt.Sprintf("%s: %s (node=%d)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an Error not tied to a node.
func New(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Node: -1, Message: fmt.Sprintf(format, args...)}
}

// AtNode creates an Error for a specific node.
func AtNode(code Code, op string, node int, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Node: node, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first diag.Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUnknownOperation returns true if err is an UnknownOperation fault.
func IsUnknownOperation(err error) bool { return CodeOf(err) == UnknownOperation }

// IsScopeViolation returns true if err is a ScopeViolation fault.
func IsScopeViolation(err error) bool { return CodeOf(err) == ScopeViolation }

// IsInvalidScheduleInput returns true if err is an InvalidScheduleInput fault.
func IsInvalidScheduleInput(err error) bool { return CodeOf(err) == InvalidScheduleInput }

// IsAliasResolution returns true if err is an AliasResolution fault.
func IsAliasResolution(err error) bool { return CodeOf(err) == AliasResolution }
