package gateway

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/netguard/transport"
)

// BatchOptions configures Batch.
type BatchOptions struct {
	// Limit bounds the number of requests issued at once.
	// Default: 3
	Limit int

	// FailFast stops issuing new requests after the first error and
	// cancels the ones in flight.
	FailFast bool
}

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Index  int
	Result *Result
	Err    error
}

// Batch issues reqs concurrently. Results are in request order. Without
// FailFast every request is issued and the returned error is nil; with
// FailFast the first error is returned and requests not yet started report
// the context error.
func (g *Gateway) Batch(ctx context.Context, reqs []transport.Request, bo BatchOptions, opts ...IssueOption) ([]BatchResult, error) {
	if bo.Limit <= 0 {
		bo.Limit = 3
	}

	results := make([]BatchResult, len(reqs))
	for i := range results {
		results[i].Index = i
	}

	var eg *errgroup.Group
	gctx := ctx
	if bo.FailFast {
		eg, gctx = errgroup.WithContext(ctx)
	} else {
		eg = &errgroup.Group{}
	}
	eg.SetLimit(bo.Limit)

	for i, req := range reqs {
		eg.Go(func() error {
			err := gctx.Err()
			if err == nil {
				results[i].Result, err = g.Issue(gctx, req, opts...)
			}
			results[i].Err = err
			if bo.FailFast {
				return err
			}
			return nil
		})
	}

	err := eg.Wait()
	return results, err
}
