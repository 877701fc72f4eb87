package lifecycle

import (
	"context"
	"fmt"
	"testing"

	"github.com/fly-io/flashcache-agent/internal/config"
	"github.com/fly-io/flashcache-agent/pkg/devicemapper/fake"
	"github.com/fly-io/flashcache-agent/pkg/errors"
	"github.com/fly-io/flashcache-agent/pkg/probe"
	"github.com/fly-io/flashcache-agent/pkg/validation"
)

var fc1 = config.Resource{Name: "fc1", BackingDevice: "/dev/sdb", CacheDevice: "/dev/sdc"}

func lookPathOK(file string) (string, error) { return "/usr/sbin/" + file, nil }

func newTestController(h *fake.Host) *Controller {
	return NewController(
		h,
		probe.NewOracle(h, ""),
		validation.NewValidator(h, lookPathOK),
		zeroPoller(),
		"flashcache",
	)
}

func TestStart_AttachesAndConverges(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	h.Latency = 3
	c := newTestController(h)

	if err := c.Start(context.Background(), fc1); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if n := h.Count("LoadCache"); n != 1 {
		t.Errorf("LoadCache called %d times, want 1", n)
	}
	if n := h.Count("LoadModule"); n != 1 {
		t.Errorf("LoadModule called %d times, want 1", n)
	}

	state, err := c.Monitor(context.Background(), fc1, false)
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if state != probe.Running {
		t.Errorf("state after start = %s, want running", state)
	}
}

func TestStart_IdempotentWhenRunning(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	h.Activate("fc1")
	c := newTestController(h)

	if err := c.Start(context.Background(), fc1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := h.Count("LoadCache"); n != 0 {
		t.Errorf("LoadCache called %d times on a running resource", n)
	}
	if n := h.Count("LoadModule"); n != 0 {
		t.Errorf("LoadModule called %d times on a running resource", n)
	}
}

func TestStart_SkipsModuleLoadWhenPresent(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	h.Modules = []string{"flashcache"}
	c := newTestController(h)

	if err := c.Start(context.Background(), fc1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := h.Count("LoadModule"); n != 0 {
		t.Errorf("LoadModule called %d times with module already loaded", n)
	}
}

func TestStop_IdempotentWhenStopped(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	c := newTestController(h)

	if err := c.Stop(context.Background(), fc1); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := h.Count("RemoveMapping"); n != 0 {
		t.Errorf("RemoveMapping called %d times on a stopped resource", n)
	}
}

func TestStop_RemovesAndConverges(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	h.Activate("fc1")
	h.Latency = 2
	c := newTestController(h)

	if err := c.Stop(context.Background(), fc1); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := h.Count("RemoveMapping"); n != 1 {
		t.Errorf("RemoveMapping called %d times, want 1", n)
	}

	state, err := c.Monitor(context.Background(), fc1, false)
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if state != probe.Stopped {
		t.Errorf("state after stop = %s, want stopped", state)
	}
}

func TestConflictingDeviceIsNeverTouched(t *testing.T) {
	for _, action := range []string{ActionStart, ActionStop, ActionReload} {
		t.Run(action, func(t *testing.T) {
			h := fake.NewHost("/dev/sdb", "/dev/sdc")
			h.AddBlockDevice("/dev/mapper/fc1", 8, 32)
			h.Mappings = []string{"fc1"}
			c := newTestController(h)

			err := c.Run(context.Background(), fc1, action)
			if errors.KindOf(err) != errors.KindInstalled {
				t.Fatalf("err = %v, want installed error", err)
			}
			for _, mutating := range []string{"LoadCache", "RemoveMapping", "LoadModule"} {
				if n := h.Count(mutating); n != 0 {
					t.Errorf("%s called %d times on a foreign device", mutating, n)
				}
			}
		})
	}
}

func TestFailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		action string
		setup  func(h *fake.Host)
		want   errors.Kind
	}{
		{
			name:   "module cannot be loaded",
			action: ActionStart,
			setup:  func(h *fake.Host) { h.ModuleLoadable = false },
			want:   errors.KindInstalled,
		},
		{
			name:   "attach fails",
			action: ActionStart,
			setup:  func(h *fake.Host) { h.LoadCacheErr = fmt.Errorf("flashcache_load: bad superblock") },
			want:   errors.KindGeneric,
		},
		{
			name:   "remove fails",
			action: ActionStop,
			setup: func(h *fake.Host) {
				h.Activate("fc1")
				h.RemoveErr = fmt.Errorf("device or resource busy")
			},
			want: errors.KindGeneric,
		},
		{
			name:   "backing device missing",
			action: ActionStart,
			setup:  func(h *fake.Host) { delete(h.Nodes, "/dev/sdb") },
			want:   errors.KindInstalled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := fake.NewHost("/dev/sdb", "/dev/sdc")
			tt.setup(h)

			err := newTestController(h).Run(context.Background(), fc1, tt.action)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}
}

func TestStart_InvalidConfigIsConfigError(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	c := newTestController(h)

	err := c.Start(context.Background(), config.Resource{Name: "fc1", BackingDevice: "/dev/sdb"})
	if errors.KindOf(err) != errors.KindConfig {
		t.Fatalf("err = %v, want config error", err)
	}
	if n := h.Count("StatDevice"); n != 0 {
		t.Errorf("host inspected %d times before config was validated", n)
	}
}

func TestStart_InterruptedWhileConverging(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	h.Latency = 1 << 30
	c := newTestController(h)

	ctx, cancel := context.WithCancel(context.Background())
	c.poller = &Poller{NewBackOff: zeroPoller().NewBackOff}
	go func() {
		for h.Count("StatDevice") < 20 {
		}
		cancel()
	}()

	err := c.Start(ctx, fc1)
	if errors.KindOf(err) != errors.KindGeneric || err == nil {
		t.Fatalf("err = %v, want generic error", err)
	}
}

func TestReload_DoesNotTearDown(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	h.Activate("fc1")
	c := newTestController(h)

	if err := c.Reload(context.Background(), fc1); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if n := h.Count("RemoveMapping"); n != 0 {
		t.Errorf("reload removed the mapping %d times", n)
	}
}

func TestScenario_FullLifecycle(t *testing.T) {
	h := fake.NewHost("/dev/sdb", "/dev/sdc")
	h.Latency = 2
	c := newTestController(h)
	ctx := context.Background()

	expect := func(want probe.State) {
		t.Helper()
		got, err := c.Monitor(ctx, fc1, false)
		if err != nil {
			t.Fatalf("Monitor: %v", err)
		}
		if got != want {
			t.Fatalf("monitor = %s, want %s", got, want)
		}
	}

	expect(probe.Stopped)

	if err := c.Start(ctx, fc1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	expect(probe.Running)

	if err := c.Stop(ctx, fc1); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	expect(probe.Stopped)

	if h.Count("LoadCache") != 1 || h.Count("RemoveMapping") != 1 {
		t.Errorf("LoadCache=%d RemoveMapping=%d, want 1 each", h.Count("LoadCache"), h.Count("RemoveMapping"))
	}
}

func TestPlan(t *testing.T) {
	c := newTestController(fake.NewHost())

	tests := []struct {
		action string
		want   []string
	}{
		{ActionStart, []string{StepValidate, StepObserve, StepEnsureModule, StepAttach, StepConverge, StepComplete}},
		{ActionReload, []string{StepValidate, StepObserve, StepEnsureModule, StepAttach, StepConverge, StepComplete}},
		{ActionStop, []string{StepValidate, StepObserve, StepRemove, StepConverge, StepComplete}},
	}

	for _, tt := range tests {
		steps := c.Plan(tt.action)
		if len(steps) != len(tt.want) {
			t.Fatalf("%s plan has %d steps, want %d", tt.action, len(steps), len(tt.want))
		}
		for i, s := range steps {
			if s.Name != tt.want[i] {
				t.Errorf("%s step %d = %s, want %s", tt.action, i, s.Name, tt.want[i])
			}
		}
	}
}
