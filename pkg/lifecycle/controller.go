// Package lifecycle implements the start, stop, monitor and reload state
// machine of a flashcache mapping. Decisions are taken from fresh host
// observations only; nothing is remembered between invocations.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/fly-io/flashcache-agent/internal/config"
	"github.com/fly-io/flashcache-agent/pkg/devicemapper"
	"github.com/fly-io/flashcache-agent/pkg/errors"
	"github.com/fly-io/flashcache-agent/pkg/probe"
	"github.com/fly-io/flashcache-agent/pkg/validation"
)

// Controller drives the host collaborators towards a desired state
type Controller struct {
	host      devicemapper.Host
	oracle    *probe.Oracle
	validator *validation.Validator
	poller    *Poller
	module    string
}

// NewController creates a controller with its dependencies
func NewController(
	host devicemapper.Host,
	oracle *probe.Oracle,
	validator *validation.Validator,
	poller *Poller,
	module string,
) *Controller {
	if module == "" {
		module = devicemapper.DefaultModule
	}
	return &Controller{
		host:      host,
		oracle:    oracle,
		validator: validator,
		poller:    poller,
		module:    module,
	}
}

// Validate runs the configuration and installation gate.
func (c *Controller) Validate(res config.Resource, isProbe bool) error {
	return c.validator.Validate(res, isProbe)
}

// Start brings the mapping up. It succeeds immediately if it is already running.
func (c *Controller) Start(ctx context.Context, res config.Resource) error {
	return c.Run(ctx, res, ActionStart)
}

// Stop removes the mapping. It succeeds immediately if it is already stopped.
func (c *Controller) Stop(ctx context.Context, res config.Resource) error {
	return c.Run(ctx, res, ActionStop)
}

// Reload re-asserts the running state without tearing the mapping down.
func (c *Controller) Reload(ctx context.Context, res config.Resource) error {
	return c.Run(ctx, res, ActionReload)
}

// Monitor validates and returns the freshly observed state. It never changes
// host state.
func (c *Controller) Monitor(ctx context.Context, res config.Resource, isProbe bool) (probe.State, error) {
	if err := c.Validate(res, isProbe); err != nil {
		return 0, err
	}
	return c.oracle.Observe(ctx, res.Name)
}

// Run executes the plan for action inline.
func (c *Controller) Run(ctx context.Context, res config.Resource, action string) error {
	t := NewTransition(action)
	for _, step := range c.Plan(action) {
		if err := step.Run(ctx, res, t); err != nil {
			slog.Error("transition_step_failed", "resource", res.Name, "action", action, "step", step.Name, "error", err)
			return err
		}
	}
	return nil
}

func (c *Controller) stepValidate(ctx context.Context, res config.Resource, t *Transition) error {
	return c.Validate(res, false)
}

func (c *Controller) stepObserve(ctx context.Context, res config.Resource, t *Transition) error {
	state, err := c.oracle.Observe(ctx, res.Name)
	if err != nil {
		return err
	}
	t.Observed = state

	switch state {
	case probe.Conflicting:
		return errors.Installed("%s is a block device not owned by device-mapper, refusing to %s",
			c.oracle.MappedPath(res.Name), t.Action)
	case t.Target:
		slog.Info("transition_already_converged", "resource", res.Name, "action", t.Action, "state", state)
		t.Done = true
	}
	return nil
}

func (c *Controller) stepEnsureModule(ctx context.Context, res config.Resource, t *Transition) error {
	loaded, err := c.host.ModuleLoaded(ctx, c.module)
	if err != nil {
		return errors.Installed("cannot determine whether %s is loaded: %v", c.module, err)
	}
	if loaded {
		return nil
	}

	slog.Info("module_loading", "module", c.module)
	if err := c.host.LoadModule(ctx, c.module); err != nil {
		return errors.Installed("failed to load kernel module %s: %v", c.module, err)
	}
	return nil
}

func (c *Controller) stepAttach(ctx context.Context, res config.Resource, t *Transition) error {
	slog.Info("cache_attach", "resource", res.Name, "cache_device", res.CacheDevice, "device", res.BackingDevice)
	if err := c.host.LoadCache(ctx, res.CacheDevice, res.Name); err != nil {
		return errors.Generic("failed to attach cache %s as %s: %v", res.CacheDevice, res.Name, err)
	}
	return nil
}

func (c *Controller) stepRemove(ctx context.Context, res config.Resource, t *Transition) error {
	slog.Info("mapping_remove", "resource", res.Name)
	if err := c.host.RemoveMapping(ctx, res.Name); err != nil {
		return errors.Generic("failed to remove mapping %s: %v", res.Name, err)
	}
	return nil
}

func (c *Controller) stepConverge(ctx context.Context, res config.Resource, t *Transition) error {
	err := c.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		state, err := c.oracle.Observe(ctx, res.Name)
		if err != nil {
			return false, err
		}
		if state == probe.Conflicting {
			return false, errors.Installed("%s was taken over by a foreign block device while waiting",
				c.oracle.MappedPath(res.Name))
		}
		t.Observed = state
		return state == t.Target, nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Generic("interrupted while waiting for %s to become %s: %v", res.Name, t.Target, err)
	}
	return err
}

func (c *Controller) stepComplete(ctx context.Context, res config.Resource, t *Transition) error {
	slog.Info("transition_complete", "resource", res.Name, "action", t.Action, "state", t.Observed, "noop", t.Done)
	return nil
}
