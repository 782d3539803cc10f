package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Write retry policy for SQLITE_BUSY. The busy_timeout pragma handles
// in-connection contention; this covers the lock errors SQLite surfaces
// immediately, such as another process holding the write lock during a
// concurrent export.
func writeBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithContext(b, ctx)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// retryWrite runs fn, retrying lock errors with exponential backoff. Any
// other error aborts immediately.
func retryWrite(ctx context.Context, fn func() error) error {
	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, writeBackoff(ctx))
}
