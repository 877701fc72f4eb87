package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func zeroPoller() *Poller {
	return &Poller{
		Interval:   time.Second,
		NewBackOff: func(time.Duration) backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
}

func TestPoller_UntilConverges(t *testing.T) {
	calls := 0
	err := zeroPoller().Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls == 4, nil
	})
	if err != nil {
		t.Fatalf("Until: %v", err)
	}
	if calls != 4 {
		t.Errorf("condition evaluated %d times, want 4", calls)
	}
}

func TestPoller_ErrorStopsPolling(t *testing.T) {
	boom := fmt.Errorf("boom")
	calls := 0
	err := zeroPoller().Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return false, boom
	})
	if err != boom {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("condition evaluated %d times, want 1", calls)
	}
}

func TestPoller_CancelledByCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := zeroPoller().Until(ctx, func(context.Context) (bool, error) {
		calls++
		if calls == 10 {
			cancel()
		}
		return false, nil
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls < 10 {
		t.Errorf("stopped polling after %d calls, before cancellation", calls)
	}
}

func TestPoller_ConstantIntervalHasNoDeadline(t *testing.T) {
	b := NewPoller(time.Millisecond).backOff()
	for i := 0; i < 1000; i++ {
		if next := b.NextBackOff(); next != time.Millisecond {
			t.Fatalf("attempt %d: next = %s, want 1ms", i, next)
		}
	}
}
