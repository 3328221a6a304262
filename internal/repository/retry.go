package repository

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RetryPolicy defines exponential backoff parameters.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

// PingWithRetry pings redis until it answers, the retries run out or ctx ends.
// The last ping error is returned.
func PingWithRetry(ctx context.Context, client *redis.Client, policy RetryPolicy, logger *zerolog.Logger) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = Ping(ctx, client); err == nil {
			return nil
		}
		if attempt >= policy.MaxRetries {
			return err
		}

		delay := policy.NextDelay(attempt + 1)
		if logger != nil {
			logger.Debug().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("redis ping failed, retrying")
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
