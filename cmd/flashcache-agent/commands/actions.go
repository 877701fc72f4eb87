package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fly-io/flashcache-agent/internal/config"
	"github.com/fly-io/flashcache-agent/pkg/db"
	"github.com/fly-io/flashcache-agent/pkg/errors"
	appfsm "github.com/fly-io/flashcache-agent/pkg/fsm"
	"github.com/fly-io/flashcache-agent/pkg/lifecycle"
	"github.com/fly-io/flashcache-agent/pkg/ocf"
	"github.com/fly-io/flashcache-agent/pkg/probe"
	"github.com/spf13/cobra"
)

func (d *dispatcher) transitionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return d.runTransition(cmd, action)
		},
	}
}

func (d *dispatcher) runTransition(cmd *cobra.Command, action string) error {
	d.action = action
	ctx := cmd.Context()

	cfg, err := d.loadConfig(cmd)
	if err != nil {
		return err
	}
	ctrl := d.controller(cfg)
	res := cfg.Resource()

	if err := ctrl.Validate(res, false); err != nil {
		return err
	}

	slog.Info("transition_start", "resource", res.Name, "action", action, "device", res.BackingDevice, "cache_device", res.CacheDevice)
	began := time.Now()

	err = d.transition(ctx, cfg, ctrl, action)
	d.journal(ctx, cfg, action, err, time.Since(began))
	if err != nil {
		return errors.Wrap(err, action)
	}

	slog.Info("transition_done", "resource", res.Name, "action", action, "duration", time.Since(began))
	return nil
}

// transition runs the step plan durably when a state directory is
// configured, inline otherwise.
func (d *dispatcher) transition(ctx context.Context, cfg *config.Config, ctrl *lifecycle.Controller, action string) error {
	res := cfg.Resource()
	if cfg.StateDir == "" {
		return ctrl.Run(ctx, res, action)
	}

	stateDir := filepath.Join(cfg.StateDir, res.Name)
	if err := ensureDirectories(stateDir, ""); err != nil {
		slog.Warn("fsm_state_dir_unavailable", "state_dir", stateDir, "error", err)
		return ctrl.Run(ctx, res, action)
	}

	return appfsm.Run(ctx, stateDir, ctrl, action, res)
}

// journal records a start, stop or reload. Journal failures never change
// the action's outcome.
func (d *dispatcher) journal(ctx context.Context, cfg *config.Config, action string, actionErr error, took time.Duration) {
	if cfg.JournalPath == "" {
		return
	}
	if err := ensureDirectories("", cfg.JournalPath); err != nil {
		slog.Warn("journal_unavailable", "journal_path", cfg.JournalPath, "error", err)
		return
	}

	repo, err := db.NewRepository(cfg.JournalPath)
	if err != nil {
		slog.Warn("journal_unavailable", "journal_path", cfg.JournalPath, "error", err)
		return
	}
	defer repo.Close()

	status := ocf.StatusFor(actionErr)
	inv := &db.Invocation{
		Resource:   cfg.Name,
		Action:     action,
		Status:     status.String(),
		ExitCode:   int(status),
		DurationMS: took.Milliseconds(),
	}
	if actionErr != nil {
		inv.ErrorMessage = actionErr.Error()
	}

	// Record even when the invocation is being cancelled
	if err := repo.Record(context.WithoutCancel(ctx), inv); err != nil {
		slog.Warn("journal_record_failed", "error", err)
	}
}

func (d *dispatcher) monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "monitor",
		Aliases: []string{"status"},
		Short:   "Report whether the cache mapping is running",
		Args:    cobra.NoArgs,
		RunE:    d.runMonitor,
	}
}

func (d *dispatcher) runMonitor(cmd *cobra.Command, args []string) error {
	d.action = cmd.CalledAs()

	cfg, err := d.loadConfig(cmd)
	if err != nil {
		return err
	}
	res := cfg.Resource()
	isProbe := cfg.IsProbe(d.action)

	state, err := d.controller(cfg).Monitor(cmd.Context(), res, isProbe)
	if err != nil {
		return err
	}

	slog.Debug("monitor_observed", "resource", res.Name, "state", state, "probe", isProbe)

	switch state {
	case probe.Running:
		d.status = ocf.Success
	case probe.Conflicting:
		return errors.Installed("a block device not owned by device-mapper occupies the name %s", res.Name)
	default:
		d.status = ocf.NotRunning
	}
	return nil
}

func (d *dispatcher) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-all",
		Short: "Check the resource configuration and installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d.action = "validate-all"

			cfg, err := d.loadConfig(cmd)
			if err != nil {
				return err
			}
			return d.controller(cfg).Validate(cfg.Resource(), false)
		},
	}
}

func (d *dispatcher) metadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta-data",
		Short: "Print the resource agent metadata",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d.action = "meta-data"
			return ocf.WriteMetadata(cmd.OutOrStdout(), config.DefaultName)
		},
	}
}

func (d *dispatcher) usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "usage",
		Aliases: []string{"help"},
		Short:   "Print usage",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d.action = "usage"
			_, err := fmt.Fprintln(cmd.OutOrStdout(), ocf.Usage)
			return err
		},
	}
}
