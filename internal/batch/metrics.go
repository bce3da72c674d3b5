package batch

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "folio/batch"

// MetricsListener records chunk counters through OpenTelemetry.
type MetricsListener struct {
	itemsRead       metric.Int64Counter
	itemsWritten    metric.Int64Counter
	itemsSkipped    metric.Int64Counter
	writeRetries    metric.Int64Counter
	chunksCommitted metric.Int64Counter
	chunksFailed    metric.Int64Counter
	chunkDuration   metric.Float64Histogram
}

// NewMetricsListener builds the instruments from mp.
func NewMetricsListener(mp metric.MeterProvider) (*MetricsListener, error) {
	meter := mp.Meter(meterName)
	var (
		m   MetricsListener
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.itemsRead, "folio.batch.items.read", "Items read by chunk steps"},
		{&m.itemsWritten, "folio.batch.items.written", "Items handed to writers in committed chunks"},
		{&m.itemsSkipped, "folio.batch.items.skipped", "Items dropped by processors"},
		{&m.writeRetries, "folio.batch.write.retries", "Chunk write attempts that were retried"},
		{&m.chunksCommitted, "folio.batch.chunks.committed", "Chunks committed"},
		{&m.chunksFailed, "folio.batch.chunks.failed", "Chunks rolled back"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
	}
	m.chunkDuration, err = meter.Float64Histogram("folio.batch.chunk.duration",
		metric.WithDescription("Wall time per chunk"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create chunk duration histogram: %w", err)
	}
	return &m, nil
}

func (m *MetricsListener) AfterChunk(ctx context.Context, cc ChunkContext, result ChunkResult) {
	attrs := metric.WithAttributes(
		attribute.String("job", cc.JobName),
		attribute.String("step", cc.StepName),
	)
	m.itemsRead.Add(ctx, int64(result.Read), attrs)
	m.itemsSkipped.Add(ctx, int64(result.Skipped), attrs)
	m.writeRetries.Add(ctx, int64(result.Retries), attrs)
	m.chunkDuration.Record(ctx, result.Elapsed.Seconds(), attrs)
	if result.Err != nil {
		m.chunksFailed.Add(ctx, 1, attrs)
		return
	}
	m.itemsWritten.Add(ctx, int64(result.Written), attrs)
	m.chunksCommitted.Add(ctx, 1, attrs)
}
