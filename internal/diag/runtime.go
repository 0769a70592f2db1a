package diag

import "fmt"

// RuntimeError is a runtime condition the machine can raise. Catchable
// reports whether a `try` block may intercept it (spec §7 propagation
// policy); errors for which Catchable is false escape straight to the
// scheduler and abort the owning thread.
type RuntimeError interface {
	error
	Catchable() bool
	RuntimeKind() string
}

type catchable struct{ kind, msg string }

func (e *catchable) Error() string      { return e.msg }
func (e *catchable) Catchable() bool    { return true }
func (e *catchable) RuntimeKind() string { return e.kind }

type fatal struct{ kind, msg string }

func (e *fatal) Error() string      { return e.msg }
func (e *fatal) Catchable() bool    { return false }
func (e *fatal) RuntimeKind() string { return e.kind }

// Catchable runtime errors.
func ErrDivByZero() RuntimeError { return &catchable{kind: "DivByZero", msg: "division or modulo by zero"} }
func ErrIndexOutOfBound(i, n int) RuntimeError {
	return &catchable{kind: "IndexOutOfBound", msg: fmt.Sprintf("index %d out of bound (len %d)", i, n)}
}
func ErrIncorrectVariant(want, got string) RuntimeError {
	return &catchable{kind: "IncorrectVariant", msg: fmt.Sprintf("expected variant %s, got %s", want, got)}
}
func ErrDeserialization(reason string) RuntimeError {
	return &catchable{kind: "Deserialization", msg: "deserialization failed: " + reason}
}
func ErrChannelClosed() RuntimeError {
	return &catchable{kind: "ChannelClosed", msg: "channel is closed"}
}
func ErrTimedOut() RuntimeError { return &catchable{kind: "TimedOut", msg: "operation timed out"} }
func ErrAllocationFailure() RuntimeError {
	return &catchable{kind: "AllocationFailure", msg: "heap allocation failed"}
}

// Fatal runtime errors.
func ErrStackError(reason string) RuntimeError {
	return &fatal{kind: "StackError", msg: "stack error: " + reason}
}
func ErrHeapCorruption(reason string) RuntimeError {
	return &fatal{kind: "HeapCorruption", msg: "heap corruption: " + reason}
}
func ErrCodeSegmentation(reason string) RuntimeError {
	return &fatal{kind: "CodeSegmentation", msg: "code segmentation fault: " + reason}
}
func ErrConcurrencyError(reason string) RuntimeError {
	return &fatal{kind: "ConcurrencyError", msg: "concurrency error: " + reason}
}

// Semantic errors, constructed directly into a List by the resolver via
// List.Add(pos, Semantic, ...); these named constructors keep the error
// text for each named category (4.B/§7) in one place.
const (
	CantInferType          = "cannot infer type"
	IncompatibleTypes      = "incompatible types"
	UnknownIdentifier       = "undefined identifier"
	RedefinedIdentifier    = "identifier already declared in this scope"
	IncorrectArguments     = "incorrect arguments"
	ClosureCaptureForbidden = "closure capture forbidden in this scope"
	NonExhaustiveMatch     = "non-exhaustive match: missing else arm"
	ReturnOutsideFunction  = "return outside of a function"
)

// Code-gen errors.
func ErrUnresolvedLabel(name string) error {
	return fmt.Errorf("code-gen: unresolved label: %s", name)
}
func ErrCodeGenDefault(reason string) error {
	return fmt.Errorf("code-gen: internal invariant violated: %s", reason)
}
