package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the application's instruments. A nil *Metrics is
// usable; every recorder is a no-op then.
type Metrics struct {
	SearchRequests    metric.Int64Counter
	SearchDuration    metric.Float64Histogram
	ImportedRecords   metric.Int64Counter
	EmbeddingRequests metric.Int64Counter
	AttachmentFetches metric.Int64Counter
}

func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("document-archive-platform")

	searchRequests, err := meter.Int64Counter(
		"search.requests.total",
		metric.WithDescription("Total search requests by mode"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.request.duration",
		metric.WithDescription("Search request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	importedRecords, err := meter.Int64Counter(
		"import.records.total",
		metric.WithDescription("Records created by import batches"),
	)
	if err != nil {
		return nil, err
	}

	embeddingRequests, err := meter.Int64Counter(
		"embedding.requests.total",
		metric.WithDescription("Embedding provider calls"),
	)
	if err != nil {
		return nil, err
	}

	attachmentFetches, err := meter.Int64Counter(
		"import.attachment_fetches.total",
		metric.WithDescription("Attachment downloads attempted during import"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		SearchRequests:    searchRequests,
		SearchDuration:    searchDuration,
		ImportedRecords:   importedRecords,
		EmbeddingRequests: embeddingRequests,
		AttachmentFetches: attachmentFetches,
	}, nil
}

// RecordSearch records one search request.
func (m *Metrics) RecordSearch(mode string, duration float64, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("search.mode", mode),
		attribute.Bool("search.success", success),
	}
	m.SearchRequests.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordImport records the outcome of one import batch.
func (m *Metrics) RecordImport(documents, articles, embeddings int) {
	if m == nil {
		return
	}
	add := func(kind string, n int) {
		m.ImportedRecords.Add(context.Background(), int64(n),
			metric.WithAttributes(attribute.String("import.kind", kind)))
	}
	add("documents", documents)
	add("articles", articles)
	add("embeddings", embeddings)
}

// RecordEmbeddingRequest records one embedding provider call.
func (m *Metrics) RecordEmbeddingRequest(model string, success bool) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("embedding.model", model),
		attribute.Bool("embedding.success", success),
	))
}

// RecordAttachmentFetch records one attachment download attempt.
func (m *Metrics) RecordAttachmentFetch(slot string, success bool) {
	if m == nil {
		return
	}
	m.AttachmentFetches.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("attachment.slot", slot),
		attribute.Bool("attachment.success", success),
	))
}
