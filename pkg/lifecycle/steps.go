package lifecycle

import (
	"context"

	"github.com/fly-io/flashcache-agent/internal/config"
	"github.com/fly-io/flashcache-agent/pkg/probe"
)

// Actions that transition the resource.
const (
	ActionStart  = "start"
	ActionStop   = "stop"
	ActionReload = "reload"
)

// Step names, shared by the inline runner and the durable runner.
const (
	StepValidate     = "validate"
	StepObserve      = "observe"
	StepEnsureModule = "ensure_module"
	StepAttach       = "attach"
	StepRemove       = "remove"
	StepConverge     = "converge"
	StepComplete     = "complete"
)

// Transition is the progress of one start or stop run. It carries only what a
// later step needs from an earlier one within the same invocation.
type Transition struct {
	Action   string
	Target   probe.State
	Observed probe.State
	// Done is set once the target state has been observed; remaining steps
	// are skipped.
	Done bool
}

// NewTransition returns the transition for action.
func NewTransition(action string) *Transition {
	t := &Transition{Action: action, Target: probe.Running}
	if action == ActionStop {
		t.Target = probe.Stopped
	}
	return t
}

// StepFunc performs one step of a transition.
type StepFunc func(ctx context.Context, res config.Resource, t *Transition) error

// Step is a named StepFunc.
type Step struct {
	Name string
	Run  StepFunc
}

// Plan returns the ordered steps for action.
func (c *Controller) Plan(action string) []Step {
	names := []string{StepValidate, StepObserve, StepEnsureModule, StepAttach, StepConverge, StepComplete}
	if action == ActionStop {
		names = []string{StepValidate, StepObserve, StepRemove, StepConverge, StepComplete}
	}

	steps := make([]Step, 0, len(names))
	for _, name := range names {
		steps = append(steps, Step{Name: name, Run: c.Step(name)})
	}
	return steps
}

// Step returns the function for a named step. Every step is a no-op once the
// transition is done.
func (c *Controller) Step(name string) StepFunc {
	var fn StepFunc
	switch name {
	case StepValidate:
		fn = c.stepValidate
	case StepObserve:
		fn = c.stepObserve
	case StepEnsureModule:
		fn = c.stepEnsureModule
	case StepAttach:
		fn = c.stepAttach
	case StepRemove:
		fn = c.stepRemove
	case StepConverge:
		fn = c.stepConverge
	case StepComplete:
		return c.stepComplete
	default:
		panic("lifecycle: unknown step " + name)
	}

	return func(ctx context.Context, res config.Resource, t *Transition) error {
		if t.Done {
			return nil
		}
		return fn(ctx, res, t)
	}
}
