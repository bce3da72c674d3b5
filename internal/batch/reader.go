package batch

import (
	"context"
	"io"
	"sync"
)

// FetchFunc loads up to limit items after the cursor key. A zero-length
// result means the source is exhausted.
type FetchFunc[T any] func(ctx context.Context, after int64, limit int) ([]T, error)

// TakeFunc removes and returns up to limit items from the source.
type TakeFunc[T any] func(ctx context.Context, limit int) ([]T, error)

// BufferedReader serves items one at a time from an internal buffer that it
// refills with a bounded query whenever it runs dry. After signalling io.EOF
// it resets, so the next step run starts from the beginning again.
type BufferedReader[T any] struct {
	mu     sync.Mutex
	fill   func(ctx context.Context, limit int) ([]T, error)
	reset  func()
	size   int
	buffer []T
}

// NewQueryReader builds a re-readable reader over an idempotent query. The
// cursor advances by key(item) so items skipped in this run are not fetched
// again until the reader is exhausted and resets.
func NewQueryReader[T any](fetch FetchFunc[T], key func(T) int64, pageSize int) *BufferedReader[T] {
	var cursor int64
	r := &BufferedReader[T]{size: pageSize}
	r.fill = func(ctx context.Context, limit int) ([]T, error) {
		items, err := fetch(ctx, cursor, limit)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			cursor = key(items[len(items)-1])
		}
		return items, nil
	}
	r.reset = func() { cursor = 0 }
	return r
}

// NewConsumingReader builds a consume-on-read reader: every fetched item has
// already been removed from the source, giving at-most-once delivery across
// restarts.
func NewConsumingReader[T any](take TakeFunc[T], pageSize int) *BufferedReader[T] {
	return &BufferedReader[T]{
		size:  pageSize,
		fill:  take,
		reset: func() {},
	}
}

// Read returns the next buffered item, refilling when necessary.
func (r *BufferedReader[T]) Read(ctx context.Context) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if len(r.buffer) == 0 {
		limit := r.size
		if limit <= 0 {
			limit = 1
		}
		items, err := r.fill(ctx, limit)
		if err != nil {
			return zero, err
		}
		if len(items) == 0 {
			r.reset()
			return zero, io.EOF
		}
		r.buffer = items
	}
	item := r.buffer[0]
	r.buffer[0] = zero
	r.buffer = r.buffer[1:]
	return item, nil
}

// SetPageSize changes the refill size, normally to the step's chunk size.
func (r *BufferedReader[T]) SetPageSize(size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = size
}

// SliceReader serves a fixed slice once.
type SliceReader[T any] struct {
	mu    sync.Mutex
	items []T
	next  int
}

// NewSliceReader copies items into a reader.
func NewSliceReader[T any](items ...T) *SliceReader[T] {
	return &SliceReader[T]{items: append([]T(nil), items...)}
}

func (r *SliceReader[T]) Read(context.Context) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if r.next >= len(r.items) {
		return zero, io.EOF
	}
	item := r.items[r.next]
	r.next++
	return item, nil
}
