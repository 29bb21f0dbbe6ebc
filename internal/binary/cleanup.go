package binary

import (
	"context"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultCleanupRetries is how many times a failed removal is retried.
	DefaultCleanupRetries = 4
	// DefaultCleanupBackoff is the first delay between removal attempts.
	DefaultCleanupBackoff = 50 * time.Millisecond
)

// Cleaner removes scratch directories. Failures are logged, never returned.
type Cleaner struct {
	retries   uint64
	backoff   time.Duration
	logger    Logger
	removeAll func(path string) error
}

// NewCleaner creates a cleaner with the default retry policy.
func NewCleaner(logger Logger) *Cleaner {
	return &Cleaner{
		retries:   DefaultCleanupRetries,
		backoff:   DefaultCleanupBackoff,
		logger:    loggerOrNop(logger),
		removeAll: os.RemoveAll,
	}
}

// Cleanup removes dir and everything beneath it, retrying with exponential
// backoff. It reports whether the directory is gone.
func (c *Cleaner) Cleanup(ctx context.Context, dir string) bool {
	if dir == "" {
		return true
	}

	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(context.WithoutCancel(ctx), b, func(ctx context.Context) error {
		if err := c.removeAll(dir); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to remove scratch directory", "dir", dir, "error", err)
		return false
	}
	return true
}
