package devicemapper

import "context"

// DeviceNode describes a filesystem node found at a device path
type DeviceNode struct {
	Path    string
	IsBlock bool
	Major   uint32
	Minor   uint32
}

// Host is the narrow boundary to the device-mapper subsystem, the kernel
// module table and the flashcache userspace tools. Each method maps to one
// external command or kernel interface.
type Host interface {
	// StatDevice stats path, following symlinks. A missing node yields an
	// error satisfying os.IsNotExist.
	StatDevice(path string) (*DeviceNode, error)

	// MapperMajors returns the block majors registered by device-mapper
	MapperMajors(ctx context.Context) ([]uint32, error)

	// ListMappings returns the names in the device-mapper table
	ListMappings(ctx context.Context) ([]string, error)

	// RemoveMapping removes a named mapping, flushing any cache target
	RemoveMapping(ctx context.Context, name string) error

	// ModuleLoaded reports whether a kernel module is loaded
	ModuleLoaded(ctx context.Context, module string) (bool, error)

	// LoadModule loads a kernel module
	LoadModule(ctx context.Context, module string) error

	// LoadCache attaches an existing flashcache on cacheDevice as name
	LoadCache(ctx context.Context, cacheDevice, name string) error
}
