// Package fake provides an in-memory devicemapper.Host for tests.
package fake

import (
	"context"
	"fmt"
	"os"
	"path"
	"slices"
	"sync"

	"github.com/fly-io/flashcache-agent/pkg/devicemapper"
)

// MapperMajor is the device-mapper major the fake reports by default.
const MapperMajor = 253

// Host simulates device nodes, the device-mapper table and the kernel module
// table. Attach and removal take effect after Latency further stats of a path
// under MapperDir, mimicking udev and target setup delays.
type Host struct {
	mu sync.Mutex

	MapperDir string
	Majors    []uint32
	Nodes     map[string]*devicemapper.DeviceNode
	Mappings  []string
	Modules   []string
	Latency   int

	LoadCacheErr   error
	RemoveErr      error
	LoadModuleErr  error
	ListErr        error
	ModuleLoadable bool

	Calls map[string]int

	pending   []func()
	remaining int
}

// NewHost returns a host where the given backing and cache devices exist as
// block devices and the flashcache module can be loaded.
func NewHost(devices ...string) *Host {
	h := &Host{
		MapperDir:      devicemapper.DefaultMapperDir,
		Majors:         []uint32{MapperMajor},
		Nodes:          map[string]*devicemapper.DeviceNode{},
		ModuleLoadable: true,
		Calls:          map[string]int{},
	}
	for i, dev := range devices {
		h.AddBlockDevice(dev, 8, uint32(i*16))
	}
	return h
}

// AddBlockDevice registers a block device node.
func (h *Host) AddBlockDevice(p string, major, minor uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Nodes[p] = &devicemapper.DeviceNode{Path: p, IsBlock: true, Major: major, Minor: minor}
}

// AddFile registers a non-block node.
func (h *Host) AddFile(p string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Nodes[p] = &devicemapper.DeviceNode{Path: p}
}

// Activate makes name a live mapping immediately.
func (h *Host) Activate(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activate(name)
}

// Count returns how often a Host method was called.
func (h *Host) Count(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Calls[method]
}

func (h *Host) activate(name string) {
	h.Nodes[path.Join(h.MapperDir, name)] = &devicemapper.DeviceNode{
		Path: path.Join(h.MapperDir, name), IsBlock: true, Major: MapperMajor,
	}
	if !slices.Contains(h.Mappings, name) {
		h.Mappings = append(h.Mappings, name)
	}
}

func (h *Host) deactivate(name string) {
	delete(h.Nodes, path.Join(h.MapperDir, name))
	h.Mappings = slices.DeleteFunc(h.Mappings, func(m string) bool { return m == name })
}

func (h *Host) later(fn func()) {
	if h.Latency == 0 {
		fn()
		return
	}
	h.pending = append(h.pending, fn)
	h.remaining = h.Latency
}

// tick advances pending attach/removal operations by one observation.
func (h *Host) tick() {
	if len(h.pending) == 0 {
		return
	}
	h.remaining--
	if h.remaining <= 0 {
		for _, fn := range h.pending {
			fn()
		}
		h.pending = nil
	}
}

func (h *Host) StatDevice(p string) (*devicemapper.DeviceNode, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls["StatDevice"]++

	if path.Dir(p) == h.MapperDir {
		h.tick()
	}

	node, ok := h.Nodes[p]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: p, Err: os.ErrNotExist}
	}
	cp := *node
	return &cp, nil
}

func (h *Host) MapperMajors(ctx context.Context) ([]uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls["MapperMajors"]++
	return slices.Clone(h.Majors), nil
}

func (h *Host) ListMappings(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls["ListMappings"]++

	if h.ListErr != nil {
		return nil, h.ListErr
	}
	return slices.Clone(h.Mappings), nil
}

func (h *Host) RemoveMapping(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls["RemoveMapping"]++

	if h.RemoveErr != nil {
		return h.RemoveErr
	}
	if !slices.Contains(h.Mappings, name) {
		return fmt.Errorf("dmsetup remove %q: no such device", name)
	}
	h.later(func() { h.deactivate(name) })
	return nil
}

func (h *Host) ModuleLoaded(ctx context.Context, module string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls["ModuleLoaded"]++
	return slices.Contains(h.Modules, module), nil
}

func (h *Host) LoadModule(ctx context.Context, module string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls["LoadModule"]++

	if h.LoadModuleErr != nil {
		return h.LoadModuleErr
	}
	if !h.ModuleLoadable {
		return fmt.Errorf("modprobe: FATAL: Module %s not found", module)
	}
	h.Modules = append(h.Modules, module)
	return nil
}

func (h *Host) LoadCache(ctx context.Context, cacheDevice, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls["LoadCache"]++

	if h.LoadCacheErr != nil {
		return h.LoadCacheErr
	}
	if _, ok := h.Nodes[cacheDevice]; !ok {
		return fmt.Errorf("flashcache_load: cannot open %s", cacheDevice)
	}
	h.later(func() { h.activate(name) })
	return nil
}

var _ devicemapper.Host = (*Host)(nil)
