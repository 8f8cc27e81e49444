// Package retry provides bounded polling with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted is returned when the condition never became true
// within the configured attempt budget.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Config holds the polling knobs. Zero values fall back to defaults.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 30
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 1 {
		c.Multiplier = 2.0
	}
	return c
}

// Poll invokes fn until it reports done, returns an error, the context is
// cancelled, or MaxAttempts is reached. Delays between attempts grow
// exponentially up to MaxDelay. Context cancellation is respected while
// waiting, so callers can impose an overall deadline.
func Poll(ctx context.Context, cfg Config, fn func(ctx context.Context) (bool, error)) error {
	cfg = cfg.withDefaults()
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("polling cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, cfg.MaxAttempts)
}
