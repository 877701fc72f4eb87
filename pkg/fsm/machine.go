// Package fsm runs the lifecycle step plans as durable superfly/fsm
// transitions. Each step is a state; every step failure aborts the run, so
// the only retrying is the convergence polling inside the converge step.
package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fly-io/flashcache-agent/internal/config"
	"github.com/fly-io/flashcache-agent/pkg/errors"
	"github.com/fly-io/flashcache-agent/pkg/lifecycle"
	"github.com/google/uuid"
	"github.com/superfly/fsm"
)

// Machine holds dependencies for FSM transitions
type Machine struct {
	ctrl *lifecycle.Controller

	mu      sync.Mutex
	failure error
}

// NewMachine creates a new FSM machine around a controller
func NewMachine(ctrl *lifecycle.Controller) *Machine {
	return &Machine{ctrl: ctrl}
}

// Register registers the start and stop FSMs
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (
	fsm.Start[TransitionRequest, TransitionResponse],
	fsm.Start[TransitionRequest, TransitionResponse],
	error,
) {
	start, _, err := fsm.Register[TransitionRequest, TransitionResponse](manager, StartFSM).
		Start(lifecycle.StepValidate, m.handle(lifecycle.StepValidate)).
		To(lifecycle.StepObserve, m.handle(lifecycle.StepObserve)).
		To(lifecycle.StepEnsureModule, m.handle(lifecycle.StepEnsureModule)).
		To(lifecycle.StepAttach, m.handle(lifecycle.StepAttach)).
		To(lifecycle.StepConverge, m.handle(lifecycle.StepConverge)).
		To(lifecycle.StepComplete, m.handle(lifecycle.StepComplete)).
		End(StateFailed).
		Build(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register start FSM")
	}

	stop, _, err := fsm.Register[TransitionRequest, TransitionResponse](manager, StopFSM).
		Start(lifecycle.StepValidate, m.handle(lifecycle.StepValidate)).
		To(lifecycle.StepObserve, m.handle(lifecycle.StepObserve)).
		To(lifecycle.StepRemove, m.handle(lifecycle.StepRemove)).
		To(lifecycle.StepConverge, m.handle(lifecycle.StepConverge)).
		To(lifecycle.StepComplete, m.handle(lifecycle.StepComplete)).
		End(StateFailed).
		Build(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register stop FSM")
	}

	return start, stop, nil
}

// handle adapts a lifecycle step to an FSM transition. The classified step
// error is kept on the machine because the FSM does not hand the response
// back to the caller.
func (m *Machine) handle(step string) func(context.Context, *fsm.Request[TransitionRequest, TransitionResponse]) (*fsm.Response[TransitionResponse], error) {
	run := m.ctrl.Step(step)

	return func(ctx context.Context, req *fsm.Request[TransitionRequest, TransitionResponse]) (*fsm.Response[TransitionResponse], error) {
		slog.Info("fsm_state_"+step, "resource", req.Msg.Resource.Name, "action", req.Msg.Action)

		resp := req.W.Msg
		if resp == nil {
			return nil, fsm.Abort(m.fail(step, errors.Generic("response not initialized")))
		}
		// The first state may receive a zero response
		if resp.Action == "" {
			resp.Transition = *lifecycle.NewTransition(req.Msg.Action)
		}

		if err := run(ctx, req.Msg.Resource, &resp.Transition); err != nil {
			slog.Error("fsm_step_failed", "resource", req.Msg.Resource.Name, "step", step, "error", err)
			resp.FailedStep = step
			resp.ErrorMessage = err.Error()
			return nil, fsm.Abort(m.fail(step, err))
		}

		return fsm.NewResponse(resp), nil
	}
}

func (m *Machine) fail(step string, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure == nil {
		m.failure = errors.Wrap(err, step)
	}
	return err
}

// Failure returns the first step error of the last run, if any.
func (m *Machine) Failure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Run executes action for res through a manager persisted under stateDir and
// waits for the run to finish.
func Run(ctx context.Context, stateDir string, ctrl *lifecycle.Controller, action string, res config.Resource) error {
	manager, err := fsm.New(fsm.Config{DBPath: stateDir})
	if err != nil {
		return errors.Generic("FSM manager failed: %v", err)
	}
	defer manager.Shutdown(10 * time.Second)

	machine := NewMachine(ctrl)
	start, stop, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Generic("FSM register failed: %v", err)
	}

	run := start
	if action == lifecycle.ActionStop {
		run = stop
	}

	req := &TransitionRequest{Action: action, Resource: res}
	resp := &TransitionResponse{Transition: *lifecycle.NewTransition(action)}
	runID := fmt.Sprintf("%s-%s-%s", res.Name, action, uuid.NewString())

	version, err := run(ctx, runID, fsm.NewRequest(req, resp))
	if err != nil {
		return errors.Generic("FSM start failed: %v", err)
	}

	slog.Info("fsm_started", "run_id", runID, "version", version)

	waitErr := manager.Wait(ctx, version)
	if failure := machine.Failure(); failure != nil {
		return failure
	}
	if waitErr != nil {
		return errors.Generic("FSM execution failed: %v", waitErr)
	}

	slog.Info("fsm_complete", "run_id", runID, "action", action)
	return nil
}
