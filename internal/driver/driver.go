// Package driver issues sequential batches of concurrent requests.
//
// Every request of a batch is in flight at the same time and the whole batch
// settles before the next one starts, which keeps the number of outstanding
// request bodies at its maximum for the duration of a run.
package driver

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidBatch = errors.New("batch size and total must be positive")

// RequestFunc performs exactly one request/response round-trip and validates the response.
type RequestFunc func(ctx context.Context) error

// AfterBatchFunc runs once a batch has settled. remaining is the number of
// requests still to be sent and may be zero.
type AfterBatchFunc func(ctx context.Context, remaining int) error

// Driver issues Total requests in batches of BatchSize.
type Driver struct {
	BatchSize int
	Total     int
}

// New returns a Driver for the given batch size and total request count.
func New(batchSize, total int) *Driver {
	return &Driver{BatchSize: batchSize, Total: total}
}

// Run drives fn until Total requests have been issued. The first failing
// request of a batch fails the run once the batch has settled; later batches
// are not started.
func (d *Driver) Run(ctx context.Context, fn RequestFunc, afterBatch AfterBatchFunc) error {
	if d.BatchSize <= 0 || d.Total <= 0 {
		return ErrInvalidBatch
	}

	remaining := d.Total
	for batch := 0; remaining > 0; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// no errgroup.WithContext: a failure must not cancel its siblings
		var g errgroup.Group
		for range d.BatchSize {
			g.Go(func() error { return fn(ctx) })
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("batch %d: %w", batch, err)
		}
		remaining -= d.BatchSize

		if afterBatch != nil {
			if err := afterBatch(ctx, max(remaining, 0)); err != nil {
				return err
			}
		}
	}
	return nil
}
