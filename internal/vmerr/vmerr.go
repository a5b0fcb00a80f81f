// Package vmerr defines the runtime error taxonomy the VM reports.
//
// Every error the interpreter raises (other than a stack-underflow
// warning, which is recovered from in place) is a *Error tagged with
// one of the Kind values below, so callers can branch on the kind with
// Is (or errors.As into *Error) instead of matching message strings.
package vmerr

import "fmt"

// Kind identifies a class of runtime error.
type Kind int

const (
	TypeMismatch Kind = iota
	DivideByZero
	ModuloByZero
	UnboundName
	NotCallable
	ArityMismatch
	IndexOutOfBounds
	KeyNotFound
	MalformedBytecode
	InvalidOpcode
)

func (k Kind) String() string {
	switch k {
	case TypeMismatch:
		return "TypeMismatch"
	case DivideByZero:
		return "DivideByZero"
	case ModuloByZero:
		return "ModuloByZero"
	case UnboundName:
		return "UnboundName"
	case NotCallable:
		return "NotCallable"
	case ArityMismatch:
		return "ArityMismatch"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case KeyNotFound:
		return "KeyNotFound"
	case MalformedBytecode:
		return "MalformedBytecode"
	case InvalidOpcode:
		return "InvalidOpcode"
	default:
		return "Unknown"
	}
}

// Error is a runtime error tagged with a Kind.
type Error struct {
	K   Kind
	Msg string
}

func New(k Kind, format string, args ...any) *Error {
	return &Error{K: k, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.K, e.Msg)
}

func (e *Error) Kind() Kind { return e.K }

// Is reports whether err is a *Error of kind k, as in
// vmerr.Is(err, vmerr.TypeMismatch). It does not unwrap wrapped errors.
func Is(err error, k Kind) bool {
	ve, ok := err.(*Error)
	return ok && ve.K == k
}
