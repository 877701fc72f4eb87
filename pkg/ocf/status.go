// Package ocf holds the Open Cluster Framework contract of the agent: the exit
// status vocabulary the resource manager interprets and the metadata document
// describing the resource type.
package ocf

import "github.com/fly-io/flashcache-agent/pkg/errors"

// Status is an OCF exit code.
type Status int

const (
	Success          Status = 0
	ErrGeneric       Status = 1
	ErrArgs          Status = 2
	ErrUnimplemented Status = 3
	ErrPerm          Status = 4
	ErrInstalled     Status = 5
	ErrConfigured    Status = 6
	NotRunning       Status = 7
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case ErrGeneric:
		return "generic_error"
	case ErrArgs:
		return "args_error"
	case ErrUnimplemented:
		return "unimplemented"
	case ErrPerm:
		return "perm_error"
	case ErrInstalled:
		return "installed_error"
	case ErrConfigured:
		return "config_error"
	case NotRunning:
		return "not_running"
	default:
		return "unknown"
	}
}

// StatusFor translates an action outcome into an exit code.
func StatusFor(err error) Status {
	if err == nil {
		return Success
	}
	switch errors.KindOf(err) {
	case errors.KindConfig:
		return ErrConfigured
	case errors.KindInstalled:
		return ErrInstalled
	case errors.KindArgs:
		return ErrArgs
	case errors.KindUnimplemented:
		return ErrUnimplemented
	default:
		return ErrGeneric
	}
}
