package fsm

import (
	"github.com/fly-io/flashcache-agent/internal/config"
	"github.com/fly-io/flashcache-agent/pkg/lifecycle"
)

// TransitionRequest is the FSM input
type TransitionRequest struct {
	Action   string
	Resource config.Resource
}

// TransitionResponse is the FSM output (accumulated across transitions)
type TransitionResponse struct {
	lifecycle.Transition

	// From a failed step
	FailedStep   string
	ErrorMessage string
}

// FSM names
const (
	StartFSM = "flashcache-start"
	StopFSM  = "flashcache-stop"
)

// StateFailed is the terminal state of an aborted run
const StateFailed = "failed"
