package scenario

import (
	"context"
	"fmt"

	"github.com/and161185/bodyleak/internal/driver"
	"github.com/and161185/bodyleak/internal/leak"
)

// Warmup streams a full run of requests at the target so its allocator
// settles, then takes one memory sample and throws it away. Taking the
// sample makes the target collect garbage before measurement starts.
func Warmup(ctx context.Context, d *driver.Driver, c *Caller, reporter leak.MemoryReporter) error {
	if err := d.Run(ctx, c.Streaming, nil); err != nil {
		return fmt.Errorf("streaming: %w", err)
	}
	if _, err := reporter.MemoryUsage(ctx); err != nil {
		return fmt.Errorf("clean up memory: %w", err)
	}
	return nil
}
