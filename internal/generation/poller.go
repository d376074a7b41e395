package generation

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 36
)

var ErrGenerationTimeout = errors.New("generation timed out")

// Probe reports whether the awaited artifacts are present.
type Probe func(ctx context.Context) (bool, error)

// Poller re-runs a probe on a fixed delay until it succeeds or the attempt
// budget is spent. The first probe runs immediately.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

func (p Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

func (p Poller) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultPollMaxAttempts
	}
	return p.MaxAttempts
}

// Wait returns the number of probes made. Probe errors are treated as
// "not yet" and the last one is attached to ErrGenerationTimeout.
func (p Poller) Wait(ctx context.Context, probe Probe) (int, error) {
	limit := p.maxAttempts()
	var lastErr error
	timer := time.NewTimer(0)
	defer timer.Stop()
	for attempt := 1; attempt <= limit; attempt++ {
		select {
		case <-ctx.Done():
			return attempt - 1, ctx.Err()
		case <-timer.C:
		}
		ok, err := probe(ctx)
		if err == nil && ok {
			return attempt, nil
		}
		if err != nil {
			lastErr = err
		}
		if attempt < limit {
			timer.Reset(p.interval())
		}
	}
	if lastErr != nil {
		return limit, errors.Join(ErrGenerationTimeout, lastErr)
	}
	return limit, ErrGenerationTimeout
}
