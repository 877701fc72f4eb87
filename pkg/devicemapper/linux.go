//go:build linux

package devicemapper

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fly-io/flashcache-agent/pkg/errors"
	"golang.org/x/sys/unix"
)

// LinuxHost implements Host with dmsetup, modprobe, flashcache_load and procfs
type LinuxHost struct {
	ProcDevices string
	ProcModules string
}

// NewHost creates a Linux host adapter reading the given procfs files
func NewHost(procDevices, procModules string) Host {
	if procDevices == "" {
		procDevices = DefaultProcDevices
	}
	if procModules == "" {
		procModules = DefaultProcModules
	}
	return &LinuxHost{ProcDevices: procDevices, ProcModules: procModules}
}

func (h *LinuxHost) StatDevice(path string) (*DeviceNode, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return nil, &os.PathError{Op: "stat", Path: path, Err: err}
	}

	rdev := uint64(st.Rdev)
	return &DeviceNode{
		Path:    path,
		IsBlock: st.Mode&unix.S_IFMT == unix.S_IFBLK,
		Major:   unix.Major(rdev),
		Minor:   unix.Minor(rdev),
	}, nil
}

func (h *LinuxHost) MapperMajors(ctx context.Context) ([]uint32, error) {
	data, err := os.ReadFile(h.ProcDevices)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read block majors")
	}
	majors, err := parseMapperMajors(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse "+h.ProcDevices)
	}
	return majors, nil
}

func (h *LinuxHost) ListMappings(ctx context.Context) ([]string, error) {
	out, err := ExecCommandContext(ctx, dmsetupCommand, "ls").CombinedOutput()
	if err != nil {
		slog.Error("dmsetup_ls_failed", "error", err)
		return nil, withOutput(fmt.Errorf("dmsetup ls: %w", err), out)
	}
	return parseMappings(string(out)), nil
}

func (h *LinuxHost) RemoveMapping(ctx context.Context, name string) error {
	slog.Info("dmsetup_remove", "name", name)

	out, err := ExecCommandContext(ctx, dmsetupCommand, "remove", name).CombinedOutput()
	if err != nil {
		slog.Error("dmsetup_remove_failed", "name", name, "error", err)
		return withOutput(fmt.Errorf("dmsetup remove %q: %w", name, err), out)
	}
	return nil
}

func (h *LinuxHost) ModuleLoaded(ctx context.Context, module string) (bool, error) {
	data, err := os.ReadFile(h.ProcModules)
	if err != nil {
		return false, errors.Wrap(err, "failed to read loaded modules")
	}
	return parseModuleLoaded(string(data), module), nil
}

func (h *LinuxHost) LoadModule(ctx context.Context, module string) error {
	slog.Info("modprobe", "module", module)

	out, err := ExecCommandContext(ctx, modprobeCommand, module).CombinedOutput()
	if err != nil {
		slog.Error("modprobe_failed", "module", module, "error", err)
		return withOutput(fmt.Errorf("modprobe %q: %w", module, err), out)
	}
	return nil
}

func (h *LinuxHost) LoadCache(ctx context.Context, cacheDevice, name string) error {
	slog.Info("flashcache_load", "cache_device", cacheDevice, "name", name)

	out, err := ExecCommandContext(ctx, loaderCommand, cacheDevice, name).CombinedOutput()
	if err != nil {
		slog.Error("flashcache_load_failed", "cache_device", cacheDevice, "name", name, "error", err)
		return withOutput(fmt.Errorf("flashcache_load %q %q: %w", cacheDevice, name, err), out)
	}
	return nil
}
