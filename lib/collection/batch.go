package collection

import "context"

// Batches calls fn for consecutive chunks of at most size elements. A size
// <= 0 uses DefaultBatchSize. Chunks are processed sequentially and the first
// error stops the iteration.
func Batches[T any](items []T, size int, fn func(chunk []T) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		if err := fn(items[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// BatchesCtx is like Batches but stops with the context error once ctx is done.
func BatchesCtx[T any](ctx context.Context, items []T, size int, fn func(chunk []T) error) error {
	return Batches(items, size, func(chunk []T) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(chunk)
	})
}
