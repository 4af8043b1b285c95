package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// File outcomes recorded by IngestMetrics
const (
	OutcomeDetected = "detected"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
)

// IngestMetrics holds the intake service instruments
type IngestMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Ingestion metrics
	FilesTotal          metric.Int64Counter
	DetectionDuration   metric.Float64Histogram
	RowsLoaded          metric.Int64Counter
	CacheHits           metric.Int64Counter
	CacheMisses         metric.Int64Counter
	MissingExpectations metric.Int64Counter
}

// NewIngestMetrics creates the instruments on meter
func NewIngestMetrics(meter metric.Meter) (*IngestMetrics, error) {
	m := &IngestMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.FilesTotal, err = meter.Int64Counter(
		"ingest_files_total",
		metric.WithDescription("Uploaded files by detected dataset and outcome"),
	); err != nil {
		return nil, err
	}

	if m.DetectionDuration, err = meter.Float64Histogram(
		"ingest_detection_duration_seconds",
		metric.WithDescription("Time spent classifying and loading one file"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.RowsLoaded, err = meter.Int64Counter(
		"ingest_rows_loaded_total",
		metric.WithDescription("Data rows loaded by dataset"),
	); err != nil {
		return nil, err
	}

	if m.CacheHits, err = meter.Int64Counter(
		"ingest_cache_hits_total",
		metric.WithDescription("Uploads served from the upload cache"),
	); err != nil {
		return nil, err
	}

	if m.CacheMisses, err = meter.Int64Counter(
		"ingest_cache_misses_total",
		metric.WithDescription("Uploads that had to be parsed"),
	); err != nil {
		return nil, err
	}

	if m.MissingExpectations, err = meter.Int64Counter(
		"ingest_missing_expectations_total",
		metric.WithDescription("Required header expectations left unresolved, by page"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordFile records one processed file. A nil receiver is a no-op.
func (m *IngestMetrics) RecordFile(ctx context.Context, dataset, outcome string, rows int, duration time.Duration) {
	if m == nil {
		return
	}
	if dataset == "" {
		dataset = "unknown"
	}
	attrs := metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("outcome", outcome),
	)
	m.FilesTotal.Add(ctx, 1, attrs)
	m.DetectionDuration.Record(ctx, duration.Seconds(), attrs)
	if rows > 0 {
		m.RowsLoaded.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("dataset", dataset)))
	}
}

// RecordCache records an upload cache lookup
func (m *IngestMetrics) RecordCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Add(ctx, 1)
		return
	}
	m.CacheMisses.Add(ctx, 1)
}

// RecordMissingExpectations records unresolved required expectations of a page
func (m *IngestMetrics) RecordMissingExpectations(ctx context.Context, page string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.MissingExpectations.Add(ctx, int64(count), metric.WithAttributes(attribute.String("page", page)))
}

// RecordHTTPRequest records a completed HTTP request
func (m *IngestMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
