// Package resilience provides the retry policy and attempt primitives used
// by the gateway and the request queue.
//
// # Retry policy
//
// A Retry is built once from a RetryConfig and never mutated. It answers
// three questions: how long to wait before retry n (Backoff), whether an
// outcome deserves another try (ShouldRetry), and how many retries are
// allowed (MaxRetries).
//
//	policy := resilience.NewRetry(resilience.RetryConfig{
//	    MaxRetries: 3,
//	    BaseDelay:  time.Second,
//	    MaxDelay:   30 * time.Second,
//	    Multiplier: 2.0,
//	})
//
//	policy.Backoff(0) // 1s
//	policy.Backoff(1) // 2s
//	policy.Backoff(2) // 4s
//
// Backoff is deterministic unless Jitter is set: many clients that lose
// the network together will retry together.
//
// # Executing with retries
//
// Execute drives an attempt function through the policy. The guard runs
// before every retry so callers can abort, for example when connectivity
// is lost:
//
//	resp, attempts, err := resilience.Execute(ctx, policy,
//	    func(int) error {
//	        if tracker.Current() == health.StatusOffline {
//	            return errOffline
//	        }
//	        return nil
//	    },
//	    func(ctx context.Context, n int) (*transport.Response, int, error) {
//	        resp, err := doer.Do(ctx, req)
//	        return resp, resp.Code(), err
//	    })
//
// # Attempt limits
//
// Call bounds a single attempt with a deadline. Slots caps how many attempts
// run at once without making callers wait.
package resilience
