package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"
)

const (
	defaultRetryAttempts   = 5
	defaultInitialBackoff  = 25 * time.Millisecond
	defaultMaxRetryBackoff = 500 * time.Millisecond
)

// RetryOptions bounds how often WithRetryTx re-runs a conflicting transaction.
type RetryOptions struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnRetry fires before each re-run with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultRetryAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxRetryBackoff
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	return o
}

// WithRetryTx runs fn in a fresh transaction, starting over from scratch when
// the store reports a retryable conflict. Every attempt either commits fully or
// rolls back fully; non-retryable errors are returned immediately.
func (c *Client) WithRetryTx(ctx context.Context, opts RetryOptions, fn func(tx *gorm.DB) error) error {
	opts = opts.withDefaults()

	attempt := 0
	operation := func() error {
		attempt++
		err := c.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, _ time.Duration) {
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}
	}

	err := backoff.RetryNotify(operation, newRetryPolicy(ctx, opts), notify)
	if err != nil && IsRetryable(err) {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
	}
	return err
}

func newRetryPolicy(ctx context.Context, opts RetryOptions) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = opts.InitialBackoff
	exp.MaxInterval = opts.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(opts.MaxAttempts-1)), ctx)
}
