package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fly-io/flashcache-agent/internal/config"
	"github.com/fly-io/flashcache-agent/pkg/devicemapper"
	"github.com/fly-io/flashcache-agent/pkg/errors"
	"github.com/fly-io/flashcache-agent/pkg/lifecycle"
	"github.com/fly-io/flashcache-agent/pkg/ocf"
	"github.com/fly-io/flashcache-agent/pkg/probe"
	"github.com/fly-io/flashcache-agent/pkg/validation"
	"github.com/spf13/cobra"
)

// LogLevel is applied from configuration once it is loaded.
var LogLevel = new(slog.LevelVar)

// Deps are the host-facing collaborators of the dispatcher.
type Deps struct {
	NewHost    func(cfg *config.Config) devicemapper.Host
	LookPath   validation.LookPathFunc
	NewBackOff func(interval time.Duration) backoff.BackOff
	Stdout     io.Writer
	Stderr     io.Writer
}

// DefaultDeps talks to the real host.
func DefaultDeps() Deps {
	return Deps{
		NewHost: func(cfg *config.Config) devicemapper.Host {
			return devicemapper.NewHost(cfg.ProcDevices, cfg.ProcModules)
		},
		LookPath: exec.LookPath,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// Execute runs the action named on the command line and exits with its OCF
// status. SIGTERM from the cluster manager cancels any convergence wait.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	status := Run(ctx, os.Args[1:], DefaultDeps())
	stop()
	os.Exit(int(status))
}

// dispatcher maps one action token to exactly one controller operation.
type dispatcher struct {
	deps   Deps
	action string
	status ocf.Status
}

// Run dispatches args and translates the outcome into an OCF status.
func Run(ctx context.Context, args []string, deps Deps) ocf.Status {
	d := &dispatcher{deps: deps, status: ocf.Success}

	// cobra falls back to os.Args when given nil
	if args == nil {
		args = []string{}
	}

	root := d.newRootCmd()
	root.SetArgs(args)
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		status := ocf.StatusFor(err)
		slog.Error("action_failed", "action", d.action, "status", status, "error", err)
		return status
	}

	slog.Debug("action_complete", "action", d.action, "status", d.status)
	return d.status
}

func (d *dispatcher) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flashcache-agent <action>",
		Short: "OCF resource agent for flashcache devices",
		Long: `Manages the lifecycle of a flashcache device-mapper target for a cluster
resource manager. Resource parameters are read from OCF_RESKEY_name,
OCF_RESKEY_device and OCF_RESKEY_cache_device.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          d.runUnknown,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Args("%v", err)
	})

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("mapper-dir", devicemapper.DefaultMapperDir, "Directory of device-mapper nodes")
	rootCmd.PersistentFlags().String("module", devicemapper.DefaultModule, "Kernel module providing the cache target")
	rootCmd.PersistentFlags().Duration("poll-interval", lifecycle.DefaultPollInterval, "Delay between convergence checks")
	rootCmd.PersistentFlags().String("state-dir", "/run/flashcache-agent", "Durable transition state directory (empty runs transitions inline)")
	rootCmd.PersistentFlags().String("journal-path", "/var/lib/flashcache-agent/journal.db", "SQLite invocation journal (empty disables)")
	rootCmd.PersistentFlags().String("proc-devices", devicemapper.DefaultProcDevices, "Registered block majors")
	rootCmd.PersistentFlags().String("proc-modules", devicemapper.DefaultProcModules, "Loaded kernel modules")

	rootCmd.AddCommand(
		d.transitionCmd(lifecycle.ActionStart, "Start the cache mapping"),
		d.transitionCmd(lifecycle.ActionStop, "Stop the cache mapping, flushing it to the backing device"),
		d.transitionCmd(lifecycle.ActionReload, "Re-assert the running state"),
		d.monitorCmd(),
		d.validateCmd(),
		d.metadataCmd(),
		d.historyCmd(),
	)
	rootCmd.SetHelpCommand(d.usageCmd())

	return rootCmd
}

// runUnknown handles a missing or unrecognised action token.
func (d *dispatcher) runUnknown(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), ocf.Usage)
		return errors.Args("no action given")
	}
	d.action = args[0]

	cfg, err := d.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := d.controller(cfg).Validate(cfg.Resource(), false); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), ocf.Usage)
	return errors.Unimplemented("action %q is not implemented", args[0])
}

func (d *dispatcher) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, errors.Args("config load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Args("config invalid: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, errors.Args("invalid log-level %q", cfg.LogLevel)
	}
	LogLevel.Set(level)

	return cfg, nil
}

func (d *dispatcher) controller(cfg *config.Config) *lifecycle.Controller {
	host := d.deps.NewHost(cfg)

	poller := lifecycle.NewPoller(cfg.PollInterval)
	poller.NewBackOff = d.deps.NewBackOff

	return lifecycle.NewController(
		host,
		probe.NewOracle(host, cfg.MapperDir),
		validation.NewValidator(host, d.deps.LookPath),
		poller,
		cfg.Module,
	)
}
