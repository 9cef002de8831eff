package fsa

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed run.
type ErrorKind uint8

const (
	// KindUser marks failures caused by the environment or by caller input:
	// missing platforms or devices, incompatible byte order, unreadable
	// kernel source, malformed automata. Retrying without changing the
	// input or environment fails the same way.
	KindUser ErrorKind = iota + 1

	// KindInternal marks failures of the compute backend or of the kernel
	// itself: compilation errors and any failure while allocating buffers,
	// binding arguments, enqueueing or waiting for completion.
	KindInternal
)

// String returns "user" or "internal".
func (k ErrorKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Sentinel causes. Match them with errors.Is.
var (
	ErrNoPlatform       = errors.New("no compute platforms found")
	ErrNoDevice         = errors.New("no compute devices found")
	ErrDeviceIndex      = errors.New("platform or device index out of range")
	ErrByteOrder        = errors.New("not all selected devices are little endian")
	ErrKernelSource     = errors.New("cannot open file")
	ErrBuild            = errors.New("build errors")
	ErrInvalidAutomaton = errors.New("invalid automaton")
	ErrTextTooLong      = errors.New("text exceeds 2^32-1 code points")
)

// Error is the error type returned by every engine entry point.
type Error struct {
	Kind ErrorKind
	// Op names the stage that failed ("select device", "build program",
	// "create buffer", ...).
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "fsa: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func userError(op string, err error) *Error {
	return &Error{Kind: KindUser, Op: op, Err: err}
}

func internalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsUserError reports whether err is a user error.
func IsUserError(err error) bool { return KindOf(err) == KindUser }

// IsInternalError reports whether err is an internal error.
func IsInternalError(err error) bool { return KindOf(err) == KindInternal }
