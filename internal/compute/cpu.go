package compute

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultMinChunk is the smallest index range handed to a worker.
const DefaultMinChunk = 64

type CPUBackend struct {
	workers  int
	MinChunk int
}

func NewCPUBackend(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{
		workers:  workers,
		MinChunk: DefaultMinChunk,
	}
}

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Cleanup()        {}
func (c *CPUBackend) Workers() int    { return c.workers }

func (c *CPUBackend) Dispatch(ctx context.Context, n int, kernel Kernel) error {
	if n <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	minChunk := max(c.MinChunk, 1)
	if c.workers <= 1 || n < 2*minChunk {
		kernel(0, n)
		return nil
	}

	chunks := min(c.workers, n/minChunk)
	chunkSize := (n + chunks - 1) / chunks

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kernel(start, end)
			return nil
		})
	}
	return g.Wait()
}
