package devicemapper

import (
	"slices"
	"testing"
)

const procDevices = `Character devices:
  1 mem
  4 tty
253 device-mapper-char

Block devices:
  7 loop
  8 sd
  9 md
252 device-mapper
253 device-mapper
254 mdp
259 blkext
`

func TestParseMapperMajors(t *testing.T) {
	majors, err := parseMapperMajors(procDevices)
	if err != nil {
		t.Fatalf("parseMapperMajors: %v", err)
	}
	if want := []uint32{252, 253}; !slices.Equal(majors, want) {
		t.Errorf("majors = %v, want %v", majors, want)
	}
}

func TestParseMapperMajors_NoBlockSection(t *testing.T) {
	majors, err := parseMapperMajors("Character devices:\n 10 device-mapper\n")
	if err != nil {
		t.Fatalf("parseMapperMajors: %v", err)
	}
	if len(majors) != 0 {
		t.Errorf("expected no majors, got %v", majors)
	}
}

func TestParseMappings(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{"empty table", "No devices found\n", nil},
		{"blank", "", nil},
		{"single", "fc1\t(253:0)\n", []string{"fc1"}},
		{"multiple", "fc1\t(253:0)\nfc10\t(253:1)\nvg-root\t(253:2)\n", []string{"fc1", "fc10", "vg-root"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseMappings(tt.out); !slices.Equal(got, tt.want) {
				t.Errorf("parseMappings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseModuleLoaded(t *testing.T) {
	modules := "flashcache_wt 40960 0 - Live 0x0000000000000000\ndm_mod 155648 3 flashcache_wt, Live 0x0000000000000000\n"

	tests := []struct {
		module string
		want   bool
	}{
		{"flashcache", false},
		{"flashcache_wt", true},
		{"dm_mod", true},
	}

	for _, tt := range tests {
		if got := parseModuleLoaded(modules, tt.module); got != tt.want {
			t.Errorf("parseModuleLoaded(%q) = %v, want %v", tt.module, got, tt.want)
		}
	}
}
