/*
Package resilience provides a circuit breaker for calls to remote LivePen hosts.

The breaker has three states. Closed lets calls through and counts failures;
Open rejects calls until Timeout elapses; HalfOpen admits up to MaxRequests
probe calls and closes again after that many consecutive successes.

	breaker := resilience.New("hosting", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsFailure: func(err error) bool { return !types.IsValidation(err) },
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx)
	})
*/
package resilience
