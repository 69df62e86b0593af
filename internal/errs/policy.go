package errs

import (
	"context"
	"time"
)

// WarnNonFatal implements the lifecycle-command propagation policy: a
// lifecycle hook failure is logged via warn and swallowed rather than
// aborting the run, unless force is true (the caller explicitly asked
// for the stricter behavior, e.g. scripted CI use).
func WarnNonFatal(err error, force bool, warn func(format string, args ...interface{})) error {
	if err == nil {
		return nil
	}
	if force {
		return err
	}
	warn("lifecycle hook failed (continuing): %v", err)
	return nil
}

// RetryThenPropagate implements the network-feature-fetch propagation
// policy: fn is retried with a short linear backoff, and the last
// error is returned wrapped as ProviderTimeout/ProviderRuntime-shaped
// only by the caller's own wrapping — this just owns the retry loop.
func RetryThenPropagate(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return Wrap(ProviderCancelled, err, "context cancelled during retry")
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-time.After(backoff * time.Duration(i+1)):
			case <-ctx.Done():
				return Wrap(ProviderCancelled, ctx.Err(), "context cancelled during retry backoff")
			}
		}
	}
	return lastErr
}
