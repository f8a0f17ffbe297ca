// Package joinerr implements the closed error taxonomy every fatal
// condition in the oblivious join engine is reported through. Nothing in
// the core retries: a phase returns a *Error and the orchestrator
// short-circuits, matching the teacher's fmt.Errorf("...: %v", err)
// wrap-and-bail idiom rather than a panic/recover style.
package joinerr

import "fmt"

// Category is the closed set of fatal-error kinds from spec.md §7.
type Category int

const (
	TreeShape Category = iota
	EncryptionState
	Crypto
	SizeMismatch
	Dispatcher
	Resource
)

func (c Category) String() string {
	switch c {
	case TreeShape:
		return "TreeShapeError"
	case EncryptionState:
		return "EncryptionStateError"
	case Crypto:
		return "CryptoError"
	case SizeMismatch:
		return "SizeMismatchError"
	case Dispatcher:
		return "DispatcherError"
	case Resource:
		return "ResourceError"
	default:
		return "UnknownError"
	}
}

// Error identifies a category, the phase that raised it, and (when
// relevant) the node that triggered it. Phase/Node are names, never
// pointers into tree state, so an *Error survives the tree being torn
// down.
type Error struct {
	Category Category
	Phase    string
	Node     string
	Opcode   string
	Cause    error
}

func (e *Error) Error() string {
	loc := e.Phase
	if e.Node != "" {
		loc = fmt.Sprintf("%s/node=%s", loc, e.Node)
	}
	if e.Opcode != "" {
		loc = fmt.Sprintf("%s/opcode=%s", loc, e.Opcode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s in %s: %v", e.Category, loc, e.Cause)
	}
	return fmt.Sprintf("%s in %s", e.Category, loc)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a tree-shape/encryption-state style error whose Cause is a
// fresh error formatted from format and args; Wrap is used when an error
// bubbled up from somewhere else (cryptor status, dispatcher failure) and
// should be preserved.
func New(cat Category, phase, node string, format string, args ...any) *Error {
	return &Error{Category: cat, Phase: phase, Node: node, Cause: fmt.Errorf(format, args...)}
}

func Wrap(cat Category, phase, node string, cause error) *Error {
	return &Error{Category: cat, Phase: phase, Node: node, Cause: cause}
}

func WrapOpcode(cat Category, phase, opcode string, cause error) *Error {
	return &Error{Category: cat, Phase: phase, Opcode: opcode, Cause: cause}
}

// TreeShapeErrorf reports a malformed join tree caught at validation.
func TreeShapeErrorf(node, format string, args ...any) *Error {
	return New(TreeShape, "validate", node, format, args...)
}

// EncryptionStateErrorf reports a table that is neither ALL_ENCRYPTED nor
// ALL_PLAINTEXT between two phases.
func EncryptionStateErrorf(phase, node string, format string, args ...any) *Error {
	return New(EncryptionState, phase, node, format, args...)
}

// SizeMismatchErrorf reports unequal lengths passed to ParallelPass or
// HorizontalConcat, or a phase-3 expansion length invariant violation.
func SizeMismatchErrorf(phase, node string, format string, args ...any) *Error {
	return New(SizeMismatch, phase, node, format, args...)
}
