// Package probe derives the state of the managed cache mapping from host
// artifacts alone: the mapped device node and the device-mapper table.
package probe

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/fly-io/flashcache-agent/pkg/devicemapper"
	"github.com/fly-io/flashcache-agent/pkg/errors"
)

// State is an observation of the managed mapping. It is recomputed on every
// query and never cached.
type State int

const (
	// Stopped means no mapping with the resource name is active.
	Stopped State = iota
	// Running means the named mapping is in the device-mapper table.
	Running
	// Conflicting means a block device with the resource name exists that
	// device-mapper does not own.
	Conflicting
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Conflicting:
		return "conflicting"
	default:
		return "stopped"
	}
}

// Oracle answers "is the resource active?" without side effects.
type Oracle struct {
	host      devicemapper.Host
	mapperDir string
}

// NewOracle creates an oracle inspecting mappings under mapperDir
func NewOracle(host devicemapper.Host, mapperDir string) *Oracle {
	if mapperDir == "" {
		mapperDir = devicemapper.DefaultMapperDir
	}
	return &Oracle{host: host, mapperDir: mapperDir}
}

// MappedPath returns the node device-mapper creates for name.
func (o *Oracle) MappedPath(name string) string {
	return filepath.Join(o.mapperDir, name)
}

// Observe reports the current state of the mapping called name.
func (o *Oracle) Observe(ctx context.Context, name string) (State, error) {
	mapped := o.MappedPath(name)

	node, err := o.host.StatDevice(mapped)
	if os.IsNotExist(err) {
		slog.Debug("probe_observed", "resource", name, "state", Stopped, "reason", "no_node")
		return Stopped, nil
	}
	if err != nil {
		return Stopped, errors.Generic("failed to stat %s: %v", mapped, err)
	}

	if !node.IsBlock {
		slog.Warn("probe_not_block_device", "resource", name, "path", mapped)
		return Stopped, nil
	}

	majors, err := o.host.MapperMajors(ctx)
	if err != nil {
		return Stopped, errors.Generic("failed to read device-mapper majors: %v", err)
	}
	if !slices.Contains(majors, node.Major) {
		slog.Warn("probe_foreign_block_device", "resource", name, "path", mapped, "major", node.Major, "mapper_majors", majors)
		return Conflicting, nil
	}

	names, err := o.host.ListMappings(ctx)
	if err != nil {
		return Stopped, errors.Generic("failed to list device-mapper table: %v", err)
	}
	if slices.Contains(names, name) {
		slog.Debug("probe_observed", "resource", name, "state", Running)
		return Running, nil
	}

	slog.Debug("probe_observed", "resource", name, "state", Stopped, "reason", "not_in_table")
	return Stopped, nil
}
