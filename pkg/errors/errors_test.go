package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, "ctx"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"config", Config("device is required"), KindConfig},
		{"installed", Installed("dmsetup not found"), KindInstalled},
		{"generic", Generic("dmsetup remove failed"), KindGeneric},
		{"args", Args("no action"), KindArgs},
		{"unimplemented", Unimplemented("frobnicate"), KindUnimplemented},
		{"wrapped", Wrap(Installed("conflict"), "start"), KindInstalled},
		{"fmt wrapped", fmt.Errorf("outer: %w", Config("x")), KindConfig},
		{"plain", fmt.Errorf("boom"), KindGeneric},
		{"context", context.Canceled, KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWrap_PreservesMessage(t *testing.T) {
	err := Wrap(Generic("dmsetup remove fc1: exit status 1"), "stop")
	if got, want := err.Error(), "stop: dmsetup remove fc1: exit status 1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
