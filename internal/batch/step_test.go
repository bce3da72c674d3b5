package batch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"folio/internal/batch"
	"folio/internal/logging"
	"folio/internal/services"
)

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

type recordingWriter struct {
	mu     sync.Mutex
	chunks [][]int
	failOn map[int]error
	calls  int
}

func (w *recordingWriter) Write(_ context.Context, items []int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if err := w.failOn[w.calls]; err != nil {
		return err
	}
	w.chunks = append(w.chunks, append([]int(nil), items...))
	return nil
}

func (w *recordingWriter) sizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	sizes := make([]int, 0, len(w.chunks))
	for _, c := range w.chunks {
		sizes = append(sizes, len(c))
	}
	return sizes
}

func newIntStep(name string, items []int, size int, w batch.Writer[int]) *batch.Step[int, int] {
	return &batch.Step[int, int]{
		Name:      name,
		Reader:    batch.NewSliceReader(items...),
		Processor: batch.PassThrough[int](),
		Writer:    w,
		ChunkSize: size,
		Logger:    logging.NewNop(),
	}
}

func exec() batch.StepExecution {
	return batch.StepExecution{RunID: 1, JobName: "test"}
}

func TestStepWritesFixedSizeChunks(t *testing.T) {
	writer := &recordingWriter{}
	step := newIntStep("copy", numbers(23), 10, writer)

	report, err := step.Execute(context.Background(), exec())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := writer.sizes(); !slices.Equal(got, []int{10, 10, 3}) {
		t.Fatalf("chunk sizes = %v, want [10 10 3]", got)
	}
	if report.Read != 23 || report.Processed != 23 || report.Written != 23 {
		t.Fatalf("report read=%d processed=%d written=%d", report.Read, report.Processed, report.Written)
	}
	if report.Chunks != 3 || report.Commits != 3 || report.Status != batch.StatusCompleted {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestStepExactMultipleHasNoEmptyChunk(t *testing.T) {
	writer := &recordingWriter{}
	step := newIntStep("copy", numbers(20), 10, writer)
	report, err := step.Execute(context.Background(), exec())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := writer.sizes(); !slices.Equal(got, []int{10, 10}) {
		t.Fatalf("chunk sizes = %v", got)
	}
	if report.Chunks != 2 {
		t.Fatalf("chunks = %d, want 2", report.Chunks)
	}
}

func TestStepEmptySourceCompletes(t *testing.T) {
	writer := &recordingWriter{}
	step := newIntStep("copy", nil, 5, writer)
	report, err := step.Execute(context.Background(), exec())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if writer.calls != 0 || report.Chunks != 0 || report.Status != batch.StatusCompleted {
		t.Fatalf("expected no chunks, got calls=%d report=%+v", writer.calls, report)
	}
}

func TestFailedChunkStopsStepAndKeepsEarlierChunks(t *testing.T) {
	writer := &recordingWriter{failOn: map[int]error{2: errors.New("disk full")}}
	step := newIntStep("copy", numbers(23), 10, writer)

	report, err := step.Execute(context.Background(), exec())
	if err == nil {
		t.Fatal("expected failure")
	}
	if !batch.IsWriteFailure(err) {
		t.Fatalf("expected write failure, got %v", err)
	}
	var chunkErr *batch.ChunkError
	if !errors.As(err, &chunkErr) || chunkErr.Chunk != 2 {
		t.Fatalf("expected chunk 2 failure, got %v", err)
	}
	if writer.calls != 2 {
		t.Fatalf("writer calls = %d, chunk 3 must not be attempted", writer.calls)
	}
	if report.Written != 10 || report.Commits != 1 || report.Rollbacks != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Status != batch.StatusFailed || report.Error == "" {
		t.Fatalf("expected failed report, got %+v", report)
	}
}

func TestSkippedItemsAreCountedNotWritten(t *testing.T) {
	writer := &recordingWriter{}
	step := newIntStep("evens", numbers(10), 4, writer)
	step.Processor = batch.ProcessorFunc[int, int](func(_ context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, batch.ErrSkip
		}
		return n * 10, nil
	})

	report, err := step.Execute(context.Background(), exec())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Skipped != 5 || report.Written != 5 || report.Processed != 10 {
		t.Fatalf("unexpected report %+v", report)
	}
	var written []int
	for _, c := range writer.chunks {
		written = append(written, c...)
	}
	if !slices.Equal(written, []int{20, 40, 60, 80, 100}) {
		t.Fatalf("written = %v", written)
	}
}

func TestChunkWithOnlySkipsDoesNotCallWriter(t *testing.T) {
	writer := &recordingWriter{}
	step := newIntStep("none", numbers(3), 3, writer)
	step.Processor = batch.ProcessorFunc[int, int](func(context.Context, int) (int, error) {
		return 0, batch.ErrSkip
	})
	report, err := step.Execute(context.Background(), exec())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if writer.calls != 0 {
		t.Fatalf("writer called %d times", writer.calls)
	}
	if report.Chunks != 1 || report.Skipped != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestProcessorErrorAbortsChunkByDefault(t *testing.T) {
	writer := &recordingWriter{}
	step := newIntStep("strict", numbers(6), 3, writer)
	step.Processor = batch.ProcessorFunc[int, int](func(_ context.Context, n int) (int, error) {
		if n == 5 {
			return 0, errors.New("corrupt archive")
		}
		return n, nil
	})

	report, err := step.Execute(context.Background(), exec())
	var chunkErr *batch.ChunkError
	if !errors.As(err, &chunkErr) || chunkErr.Phase != "process" || chunkErr.Item != 1 {
		t.Fatalf("expected process failure at item 1, got %v", err)
	}
	if batch.IsWriteFailure(err) {
		t.Fatal("process failure reported as write failure")
	}
	if got := writer.sizes(); !slices.Equal(got, []int{3}) {
		t.Fatalf("chunk sizes = %v", got)
	}
	if report.Processed != 3 {
		t.Fatalf("processed = %d, want 3", report.Processed)
	}
}

func TestSkipItemPolicyDropsFailedItems(t *testing.T) {
	writer := &recordingWriter{}
	step := newIntStep("lenient", numbers(6), 3, writer)
	step.ProcessErrors = batch.SkipItem
	step.Processor = batch.ProcessorFunc[int, int](func(_ context.Context, n int) (int, error) {
		if n == 5 {
			return 0, errors.New("corrupt archive")
		}
		return n, nil
	})

	report, err := step.Execute(context.Background(), exec())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Skipped != 1 || report.Written != 5 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestIdempotentWriterIsRetried(t *testing.T) {
	writer := &recordingWriter{failOn: map[int]error{1: errors.New("database is locked")}}
	step := newIntStep("retry", numbers(4), 4, batch.Idempotent[int](writer))
	step.WriteAttempts = 3
	step.RetryInitial = time.Millisecond

	report, err := step.Execute(context.Background(), exec())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if writer.calls != 2 || report.Retries != 1 || report.Written != 4 {
		t.Fatalf("calls=%d report=%+v", writer.calls, report)
	}
}

func TestNonIdempotentWriterIsNotRetried(t *testing.T) {
	writer := &recordingWriter{failOn: map[int]error{1: errors.New("database is locked")}}
	step := newIntStep("once", numbers(4), 4, writer)
	step.WriteAttempts = 3
	step.RetryInitial = time.Millisecond

	if _, err := step.Execute(context.Background(), exec()); err == nil {
		t.Fatal("expected failure")
	}
	if writer.calls != 1 {
		t.Fatalf("writer calls = %d, want 1", writer.calls)
	}
}

func TestPermanentWriteErrorIsNotRetried(t *testing.T) {
	permanent := services.Wrap(services.ErrValidation, "test", "write", "bad row", nil)
	writer := &recordingWriter{failOn: map[int]error{1: permanent, 2: permanent, 3: permanent}}
	step := newIntStep("permanent", numbers(2), 2, batch.Idempotent[int](writer))
	step.WriteAttempts = 3
	step.RetryInitial = time.Millisecond

	_, err := step.Execute(context.Background(), exec())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if writer.calls != 1 {
		t.Fatalf("writer calls = %d, want 1", writer.calls)
	}
}

func TestRetriesAreBounded(t *testing.T) {
	transient := errors.New("timeout")
	writer := &recordingWriter{failOn: map[int]error{1: transient, 2: transient, 3: transient, 4: transient}}
	step := newIntStep("bounded", numbers(2), 2, batch.Idempotent[int](writer))
	step.WriteAttempts = 3
	step.RetryInitial = time.Millisecond

	if _, err := step.Execute(context.Background(), exec()); !errors.Is(err, transient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if writer.calls != 3 {
		t.Fatalf("writer calls = %d, want 3", writer.calls)
	}
}

func TestParallelProcessingPreservesReadOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	processor := batch.Pure[int, string](batch.ProcessorFunc[int, string](func(_ context.Context, n int) (string, error) {
		mu.Lock()
		active++
		maxSeen = max(maxSeen, active)
		mu.Unlock()
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return fmt.Sprintf("item-%02d", n), nil
	}))

	var written []string
	step := &batch.Step[int, string]{
		Name:      "parallel",
		Reader:    batch.NewSliceReader(numbers(24)...),
		Processor: processor,
		Writer: batch.WriterFunc[string](func(_ context.Context, items []string) error {
			written = append(written, items...)
			return nil
		}),
		ChunkSize:   8,
		Concurrency: 4,
		Logger:      logging.NewNop(),
	}
	if _, err := step.Execute(context.Background(), exec()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(written) != 24 {
		t.Fatalf("written %d items", len(written))
	}
	for i, v := range written {
		if want := fmt.Sprintf("item-%02d", i+1); v != want {
			t.Fatalf("written[%d] = %s, want %s", i, v, want)
		}
	}
	if maxSeen > 4 {
		t.Fatalf("concurrency exceeded limit: %d", maxSeen)
	}
}

func TestCancellationIsObservedBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &recordingWriter{}
	step := newIntStep("cancel", numbers(30), 10, writer)
	step.Listeners = []batch.ChunkListener{batch.ChunkListenerFunc(func(_ context.Context, cc batch.ChunkContext, _ batch.ChunkResult) {
		if cc.Chunk == 1 {
			cancel()
		}
	})}

	report, err := step.Execute(ctx, exec())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if report.Written != 10 || writer.calls != 1 {
		t.Fatalf("expected exactly the first chunk, got %+v", report)
	}
}

func TestListenerPanicDoesNotFailStep(t *testing.T) {
	writer := &recordingWriter{}
	step := newIntStep("panicky", numbers(3), 2, writer)
	var seen []int
	step.Listeners = []batch.ChunkListener{
		batch.ChunkListenerFunc(func(context.Context, batch.ChunkContext, batch.ChunkResult) { panic("boom") }),
		batch.ChunkListenerFunc(func(_ context.Context, cc batch.ChunkContext, _ batch.ChunkResult) {
			seen = append(seen, cc.Committed)
		}),
	}
	if _, err := step.Execute(context.Background(), exec()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !slices.Equal(seen, []int{1, 2}) {
		t.Fatalf("committed counts = %v", seen)
	}
}

func TestInvalidStepIsConfigurationError(t *testing.T) {
	step := newIntStep("bad", numbers(1), 0, &recordingWriter{})
	if _, err := step.Execute(context.Background(), exec()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWriterRunsInsideChunkTransaction(t *testing.T) {
	type txKey struct{}
	var commits, rollbacks int
	tx := batch.TransactorFunc(func(ctx context.Context, fn func(context.Context) error) error {
		if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
			rollbacks++
			return err
		}
		commits++
		return nil
	})
	calls := 0
	step := &batch.Step[int, int]{
		Name:      "tx",
		Reader:    batch.NewSliceReader(numbers(5)...),
		Processor: batch.PassThrough[int](),
		Writer: batch.WriterFunc[int](func(ctx context.Context, _ []int) error {
			calls++
			if ctx.Value(txKey{}) == nil {
				return errors.New("no transaction in context")
			}
			if calls == 3 {
				return errors.New("constraint violated")
			}
			return nil
		}),
		ChunkSize: 2,
		Tx:        tx,
		Logger:    logging.NewNop(),
	}
	if _, err := step.Execute(context.Background(), exec()); err == nil {
		t.Fatal("expected third chunk to fail")
	}
	if commits != 2 || rollbacks != 1 {
		t.Fatalf("commits=%d rollbacks=%d", commits, rollbacks)
	}
}

func TestQueryReaderPagesAndResets(t *testing.T) {
	source := numbers(7)
	fetches := 0
	fetch := func(_ context.Context, after int64, limit int) ([]int, error) {
		fetches++
		var out []int
		for _, n := range source {
			if int64(n) > after && len(out) < limit {
				out = append(out, n)
			}
		}
		return out, nil
	}
	reader := batch.NewQueryReader(fetch, func(n int) int64 { return int64(n) }, 3)

	readAll := func() []int {
		var got []int
		for {
			n, err := reader.Read(context.Background())
			if errors.Is(err, io.EOF) {
				return got
			}
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			got = append(got, n)
		}
	}
	if got := readAll(); !slices.Equal(got, source) {
		t.Fatalf("first pass = %v", got)
	}
	if fetches != 4 {
		t.Fatalf("fetches = %d, want 4", fetches)
	}
	if got := readAll(); !slices.Equal(got, source) {
		t.Fatalf("second pass after reset = %v", got)
	}
}

func TestConsumingReaderRemovesItems(t *testing.T) {
	var mu sync.Mutex
	queue := numbers(5)
	take := func(_ context.Context, limit int) ([]int, error) {
		mu.Lock()
		defer mu.Unlock()
		n := min(limit, len(queue))
		out := append([]int(nil), queue[:n]...)
		queue = queue[n:]
		return out, nil
	}
	reader := batch.NewConsumingReader(take, 2)
	first, err := reader.Read(context.Background())
	if err != nil || first != 1 {
		t.Fatalf("Read = %d, %v", first, err)
	}
	if len(queue) != 3 {
		t.Fatalf("queue should have lost a page, has %d items", len(queue))
	}
	writer := &recordingWriter{}
	step := &batch.Step[int, int]{
		Name:      "drain",
		Reader:    reader,
		Processor: batch.PassThrough[int](),
		Writer:    writer,
		ChunkSize: 2,
		Logger:    logging.NewNop(),
	}
	if _, err := step.Execute(context.Background(), exec()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("queue not drained: %v", queue)
	}
	var written []int
	for _, c := range writer.chunks {
		written = append(written, c...)
	}
	if !slices.Equal(written, []int{2, 3, 4, 5}) {
		t.Fatalf("written = %v", written)
	}
}

func TestParametersAccessors(t *testing.T) {
	params := batch.Parameters{"limit": "5", "dry": "true", "bad": "x"}
	if params.Int("limit", 0) != 5 || params.Int("bad", 7) != 7 || params.Int("none", 3) != 3 {
		t.Fatal("Int accessor mismatch")
	}
	if !params.Bool("dry", false) || params.Bool("bad", false) {
		t.Fatal("Bool accessor mismatch")
	}
	clone := params.Clone()
	clone["limit"] = "9"
	if params.Get("limit") != "5" {
		t.Fatal("Clone shares storage")
	}
	var nilParams batch.Parameters
	if nilParams.Get("x") != "" || nilParams.Clone() == nil {
		t.Fatal("nil parameters mishandled")
	}
}
