// Package queue holds requests that cannot be sent yet and delivers them
// once the backend is reachable.
//
// The queue has two effective priority bands: high priority items go to the
// head, normal and low priority items to the tail. When an enqueue pushes
// the length past MaxSize, the oldest item of the lowest priority band
// present is evicted without notice to the caller.
//
// Draining is driven only by the flush timer started with Start (or by
// calling Drain). Each drain dispatches at most MaxConcurrent items at a
// time. A failed item is retried at the head of the queue after the policy
// backoff while it has retries left, and dropped otherwise.
//
//	q := queue.New(queue.Config{MaxSize: 100, FlushInterval: 5 * time.Second}, doer, tracker)
//	q.Start(ctx)
//	defer q.Close()
//
//	id, err := q.Enqueue(transport.Request{Method: "POST", Target: "/uploads"}, queue.EnqueueOptions{
//	    Priority: queue.PriorityHigh,
//	})
//
// Delivery is fire-and-forget. Set Config.OnOutcome to learn how each item
// ended.
package queue
