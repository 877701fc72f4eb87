//go:build !linux

package devicemapper

import (
	"context"
	"fmt"
	"runtime"
)

// StubHost is a no-op host for non-Linux systems
type StubHost struct{}

// NewHost creates a stub host on non-Linux systems
func NewHost(procDevices, procModules string) Host {
	return &StubHost{}
}

func unsupported() error {
	return fmt.Errorf("devicemapper not supported on %s", runtime.GOOS)
}

func (h *StubHost) StatDevice(path string) (*DeviceNode, error) { return nil, unsupported() }

func (h *StubHost) MapperMajors(ctx context.Context) ([]uint32, error) { return nil, unsupported() }

func (h *StubHost) ListMappings(ctx context.Context) ([]string, error) { return nil, unsupported() }

func (h *StubHost) RemoveMapping(ctx context.Context, name string) error { return unsupported() }

func (h *StubHost) ModuleLoaded(ctx context.Context, module string) (bool, error) {
	return false, unsupported()
}

func (h *StubHost) LoadModule(ctx context.Context, module string) error { return unsupported() }

func (h *StubHost) LoadCache(ctx context.Context, cacheDevice, name string) error {
	return unsupported()
}
