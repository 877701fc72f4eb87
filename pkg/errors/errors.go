// Package errors provides error wrapping utilities for context-aware error messages
// and the failure taxonomy the agent reports to the cluster resource manager.
package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Kind classifies a failure by who has to fix it.
type Kind int

const (
	// KindGeneric is an external command that should have succeeded but did not.
	KindGeneric Kind = iota
	// KindConfig is a missing or malformed resource parameter.
	KindConfig
	// KindInstalled is a missing binary, device, kernel module or a foreign-owned artifact.
	KindInstalled
	// KindArgs is a malformed invocation of the agent itself.
	KindArgs
	// KindUnimplemented is an action token the agent does not know.
	KindUnimplemented
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInstalled:
		return "installed"
	case KindArgs:
		return "args"
	case KindUnimplemented:
		return "unimplemented"
	default:
		return "generic"
	}
}

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Config reports a missing or invalid resource parameter.
func Config(format string, args ...any) error { return newf(KindConfig, format, args...) }

// Installed reports an environment problem the operator must fix.
func Installed(format string, args ...any) error { return newf(KindInstalled, format, args...) }

// Generic reports an unexpected runtime failure.
func Generic(format string, args ...any) error { return newf(KindGeneric, format, args...) }

// Args reports a malformed agent invocation.
func Args(format string, args ...any) error { return newf(KindArgs, format, args...) }

// Unimplemented reports an unknown action.
func Unimplemented(format string, args ...any) error {
	return newf(KindUnimplemented, format, args...)
}

// KindOf returns the Kind of the first classified error in err's chain.
// Unclassified errors are KindGeneric.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// Is reports whether err's chain contains target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }
