// Package resilience provides fault tolerance patterns for the guard's
// external stores.
//
// The package supports:
//   - Circuit breakers around the atomic store (Redis) and the event store (Postgres)
//   - Retry logic with exponential backoff and jitter for event store writes
//
// Breakers here fail closed: an open circuit surfaces as an error and callers
// map it to a retriable infrastructure failure, never to an admission.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.RedisConfig(), logger)
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return script.Run(ctx, client, keys, args...).Int64Slice()
//	})
//
//	err := retry.Do(ctx, retry.DBConfig(), logger, func(ctx context.Context) error {
//	    _, err := repo.Append(ctx, event)
//	    return err
//	})
package resilience
