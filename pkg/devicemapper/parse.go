package devicemapper

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// parseMapperMajors extracts the device-mapper majors from the "Block devices"
// section of /proc/devices.
func parseMapperMajors(procDevices string) ([]uint32, error) {
	var majors []uint32
	inBlock := false

	scanner := bufio.NewScanner(strings.NewReader(procDevices))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasSuffix(line, "devices:"):
			inBlock = line == "Block devices:"
			continue
		case !inBlock:
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 || fields[1] != mapperDriverName {
			continue
		}
		major, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid major %q: %w", fields[0], err)
		}
		majors = append(majors, uint32(major))
	}

	return majors, scanner.Err()
}

// parseMappings returns the first whitespace-delimited field of each line of
// `dmsetup ls` output.
func parseMappings(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "No devices found" {
			continue
		}
		names = append(names, strings.Fields(line)[0])
	}
	return names
}

// parseModuleLoaded reports whether module is listed in /proc/modules.
func parseModuleLoaded(procModules, module string) bool {
	for _, line := range strings.Split(procModules, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == module {
			return true
		}
	}
	return false
}
