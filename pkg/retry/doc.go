// Package retry provides exponential backoff for broker writes, HTTP calls and
// connection setup.
//
// # Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s
//   - Broker(): 4 attempts, 250ms-2s, sized for partition leader elections
//   - Connect(): 10 attempts, 50ms-1s, for dialing and provisioning buckets
//
// # Usage
//
//	err := retry.Do(ctx, retry.Broker(), func() error {
//	    return writer.WriteMessages(ctx, msg)
//	})
//
// Errors wrapped with NonRetryable end the loop at once and are returned as is.
// Use the OnRetry hook to log each failed attempt:
//
//	cfg := retry.Connect()
//	cfg.OnRetry = func(attempt int, err error) {
//	    logger.Warn("create bucket failed, retrying", "attempt", attempt, "error", err)
//	}
//
// The loop stops as soon as ctx is done, either between attempts or during a
// backoff sleep.
package retry
