// Package validation gates every agent action on a usable configuration and
// installation.
package validation

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fly-io/flashcache-agent/internal/config"
	"github.com/fly-io/flashcache-agent/pkg/devicemapper"
	"github.com/fly-io/flashcache-agent/pkg/errors"
)

// maxNameLen mirrors the kernel's DM_NAME_LEN, which includes the terminator.
const maxNameLen = 127

// LookPathFunc resolves an executable name.
type LookPathFunc func(file string) (string, error)

// Validator checks resource parameters, collaborator executables and devices
type Validator struct {
	host        devicemapper.Host
	lookPath    LookPathFunc
	executables []string
}

// NewValidator creates a validator. A nil lookPath uses exec.LookPath.
func NewValidator(host devicemapper.Host, lookPath LookPathFunc) *Validator {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Validator{
		host:        host,
		lookPath:    lookPath,
		executables: devicemapper.RequiredCommands,
	}
}

// Validate returns nil, a config error or an installed error. A probe
// invocation skips the device checks so that devices which are briefly
// absent during cluster startup do not fail the probe.
func (v *Validator) Validate(res config.Resource, probe bool) error {
	if err := v.ValidateParameters(res); err != nil {
		return err
	}

	for _, name := range v.executables {
		if _, err := v.lookPath(name); err != nil {
			slog.Error("validation_executable_missing", "executable", name, "error", err)
			return errors.Installed("required executable %s not found", name)
		}
	}

	if probe {
		slog.Debug("validation_probe_skip_devices", "resource", res.Name)
		return nil
	}

	for _, dev := range []struct{ param, path string }{
		{config.ParamDevice, res.BackingDevice},
		{config.ParamCacheDevice, res.CacheDevice},
	} {
		if err := v.ValidateBlockDevice(dev.param, dev.path); err != nil {
			return err
		}
	}

	return nil
}

// ValidateParameters checks the resource parameters alone.
func (v *Validator) ValidateParameters(res config.Resource) error {
	if res.BackingDevice == "" {
		slog.Error("validation_parameter_missing", "parameter", config.ParamDevice)
		return errors.Config("required parameter %s is not set", config.ParamDevice)
	}
	if res.CacheDevice == "" {
		slog.Error("validation_parameter_missing", "parameter", config.ParamCacheDevice)
		return errors.Config("required parameter %s is not set", config.ParamCacheDevice)
	}

	if err := ValidateName(res.Name); err != nil {
		slog.Error("validation_name_invalid", "name", res.Name, "error", err)
		return err
	}

	for _, dev := range []struct{ param, path string }{
		{config.ParamDevice, res.BackingDevice},
		{config.ParamCacheDevice, res.CacheDevice},
	} {
		if !filepath.IsAbs(dev.path) {
			slog.Error("validation_path_not_absolute", "parameter", dev.param, "path", dev.path)
			return errors.Config("%s must be an absolute path: %s", dev.param, dev.path)
		}
	}

	if filepath.Clean(res.BackingDevice) == filepath.Clean(res.CacheDevice) {
		return errors.Config("%s and %s must differ", config.ParamDevice, config.ParamCacheDevice)
	}

	return nil
}

// ValidateBlockDevice checks that path exists and is a block device
func (v *Validator) ValidateBlockDevice(param, path string) error {
	node, err := v.host.StatDevice(path)
	if os.IsNotExist(err) {
		slog.Error("validation_device_missing", "parameter", param, "path", path)
		return errors.Installed("%s %s does not exist", param, path)
	}
	if err != nil {
		slog.Error("validation_device_stat_failed", "parameter", param, "path", path, "error", err)
		return errors.Installed("cannot stat %s %s: %v", param, path, err)
	}
	if !node.IsBlock {
		slog.Error("validation_not_block_device", "parameter", param, "path", path)
		return errors.Installed("%s %s is not a block device", param, path)
	}
	return nil
}

// ValidateName checks that name is usable as a device-mapper target name
func ValidateName(name string) error {
	if name == "" {
		return errors.Config("%s cannot be empty", config.ParamName)
	}
	if len(name) > maxNameLen {
		return errors.Config("%s exceeds %d bytes", config.ParamName, maxNameLen)
	}
	if name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return errors.Config("%s is not a valid device-mapper name: %q", config.ParamName, name)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return errors.Config("%s must not contain whitespace: %q", config.ParamName, name)
	}
	return nil
}
