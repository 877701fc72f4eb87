package devicemapper

// Default locations and collaborator binaries for flashcache on Linux.
const (
	// DefaultMapperDir is where device-mapper exposes named targets.
	DefaultMapperDir = "/dev/mapper"
	// DefaultProcDevices lists registered block majors.
	DefaultProcDevices = "/proc/devices"
	// DefaultProcModules lists loaded kernel modules.
	DefaultProcModules = "/proc/modules"
	// DefaultModule is the kernel module providing the flashcache target.
	DefaultModule = "flashcache"

	dmsetupCommand  = "dmsetup"
	modprobeCommand = "modprobe"
	loaderCommand   = "flashcache_load"

	// mapperDriverName is the /proc/devices entry owned by device-mapper.
	mapperDriverName = "device-mapper"
)

// RequiredCommands are the executables every action depends on.
var RequiredCommands = []string{dmsetupCommand, modprobeCommand, loaderCommand}
