// Package retry runs operations with bounded exponential backoff.
//
// A Classify function decides per error whether another attempt makes sense.
// Permanent failures are wrapped in PermanentError, exhausted attempts in
// ExhaustedError, so callers can tell "gave up" from "not worth trying":
//
//	err := retry.DoVoid(ctx, retry.DefaultPolicy(), retry.AlwaysRetry, func(ctx context.Context) error {
//		return store.EnqueueJob(ctx, job)
//	})
//	var exhausted *retry.ExhaustedError
//	if errors.As(err, &exhausted) {
//		// broker unavailable
//	}
package retry
