package kernel

import "fmt"

// ErrorKind discriminates the KernelError taxonomy of spec §7.
type ErrorKind string

const (
	ErrInvalidConfig   ErrorKind = "invalid_config"
	ErrInvalidInput    ErrorKind = "invalid_input"
	ErrStateError      ErrorKind = "state_error"
	ErrPolicyViolation ErrorKind = "policy_violation"
	ErrMaxStepsReached ErrorKind = "max_steps_reached"
	ErrInternal        ErrorKind = "internal"
)

// Error is the kernel's only error type. The kernel never panics on
// malformed input (spec §4.1): every failure path returns one of these.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is supports errors.Is against a bare *Error{Kind: k} sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
