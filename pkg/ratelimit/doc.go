// Package ratelimit provides the pacing mechanism for the harvest pipeline.
//
// The catalog API has implicit rate limits; the coordinator paces archive
// downloads through a token bucket so that consecutive downloads are spread
// out even when every other step is instant. This is a throughput cap, not a
// correctness mechanism.
//
// All rate limiters implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait(ctx) error - Block until a request is allowed or ctx is cancelled
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// One download per second
//	limiter := ratelimit.NewTokenBucket(1, time.Second)
//
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
//	// Proceed with download
package ratelimit
