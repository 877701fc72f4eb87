package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fly-io/flashcache-agent/pkg/errors"
)

// DefaultPollInterval is the delay between convergence observations.
const DefaultPollInterval = time.Second

var errNotConverged = errors.Generic("not converged")

// Poller retries a condition at a fixed interval with no deadline of its own.
// The caller bounds it through ctx, which the dispatcher cancels when the
// cluster manager terminates the invocation.
type Poller struct {
	Interval time.Duration

	// NewBackOff overrides the fixed-interval schedule, e.g. with
	// backoff.ZeroBackOff in tests.
	NewBackOff func(interval time.Duration) backoff.BackOff
}

// NewPoller creates a poller with a constant interval
func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{Interval: interval}
}

func (p *Poller) backOff() backoff.BackOff {
	if p.NewBackOff != nil {
		return p.NewBackOff(p.Interval)
	}
	return backoff.NewConstantBackOff(p.Interval)
}

// Until calls cond until it reports true. An error from cond stops polling
// and is returned unchanged; cancellation of ctx returns ctx.Err().
func (p *Poller) Until(ctx context.Context, cond func(ctx context.Context) (bool, error)) error {
	attempts := 0

	op := func() error {
		attempts++
		done, err := cond(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errNotConverged
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		slog.Debug("converge_wait", "attempt", attempts, "next", next)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(p.backOff(), ctx), notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	return nil
}
