package batch

import (
	"context"
	"errors"
)

// ErrSkip is returned by a Processor to drop an item from its chunk without
// failing the step. Skipped items are counted separately from written ones.
var ErrSkip = errors.New("batch: skip item")

// Reader yields one item per call and io.EOF once the source is exhausted.
type Reader[T any] interface {
	Read(ctx context.Context) (T, error)
}

// Processor turns a read item into a writable one. Processors must not
// persist anything; persistence belongs to the Writer.
type Processor[T, U any] interface {
	Process(ctx context.Context, item T) (U, error)
}

// Writer persists one chunk of processed items. It runs inside the chunk
// transaction, so either all of items are committed or none are.
type Writer[U any] interface {
	Write(ctx context.Context, items []U) error
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc[T any] func(ctx context.Context) (T, error)

func (f ReaderFunc[T]) Read(ctx context.Context) (T, error) { return f(ctx) }

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc[T, U any] func(ctx context.Context, item T) (U, error)

func (f ProcessorFunc[T, U]) Process(ctx context.Context, item T) (U, error) { return f(ctx, item) }

// WriterFunc adapts a function to Writer.
type WriterFunc[U any] func(ctx context.Context, items []U) error

func (f WriterFunc[U]) Write(ctx context.Context, items []U) error { return f(ctx, items) }

// PassThrough returns a processor that forwards every item unchanged.
func PassThrough[T any]() Processor[T, T] {
	return passThrough[T]{}
}

type passThrough[T any] struct{}

func (passThrough[T]) Process(_ context.Context, item T) (T, error) { return item, nil }

func (passThrough[T]) SideEffectFree() bool { return true }

// idempotent is implemented by writers that can safely be replayed after a
// failed attempt. Only such writers are retried.
type idempotent interface {
	Idempotent() bool
}

// sideEffectFree is implemented by processors that may be called in
// parallel within a chunk.
type sideEffectFree interface {
	SideEffectFree() bool
}

func isIdempotent(w any) bool {
	i, ok := w.(idempotent)
	return ok && i.Idempotent()
}

func isSideEffectFree(p any) bool {
	s, ok := p.(sideEffectFree)
	return ok && s.SideEffectFree()
}

// Idempotent wraps w so the step may retry failed chunks.
func Idempotent[U any](w Writer[U]) Writer[U] {
	return idempotentWriter[U]{Writer: w}
}

type idempotentWriter[U any] struct {
	Writer[U]
}

func (idempotentWriter[U]) Idempotent() bool { return true }

// Pure wraps p so the step may process items of one chunk in parallel.
func Pure[T, U any](p Processor[T, U]) Processor[T, U] {
	return pureProcessor[T, U]{Processor: p}
}

type pureProcessor[T, U any] struct {
	Processor[T, U]
}

func (pureProcessor[T, U]) SideEffectFree() bool { return true }

// Transactor scopes a chunk write. InChunk runs fn with a context carrying
// the transaction, commits when fn succeeds, and rolls back otherwise.
type Transactor interface {
	InChunk(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactorFunc adapts a function to Transactor.
type TransactorFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f TransactorFunc) InChunk(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NoTransaction runs writes directly, for writers with their own atomicity.
var NoTransaction Transactor = TransactorFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
