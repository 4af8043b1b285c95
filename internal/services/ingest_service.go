package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"riskdash/internal/cache"
	apperrors "riskdash/internal/errors"
	"riskdash/internal/exporter"
	"riskdash/internal/files"
	"riskdash/internal/infrastructure"
	"riskdash/internal/loader"
	"riskdash/internal/pages"
	"riskdash/internal/resolve"
	"riskdash/internal/schema"
	"riskdash/internal/store"
	"riskdash/pkg/contracts/events"
)

// EventPublisher receives ingestion events. The websocket hub implements it.
type EventPublisher interface {
	Publish(ctx context.Context, msgType events.MessageType, data interface{})
}

// IngestDeps are the collaborators of IngestService. Metrics, Events and
// Tracer are optional.
type IngestDeps struct {
	Loader  *loader.Loader
	Catalog *pages.Catalog
	Cache   *cache.UploadCache
	Files   *files.Manager
	Store   store.StatusStore
	Metrics *infrastructure.IngestMetrics
	Events  EventPublisher
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// IngestService places uploads into page slots and answers questions about
// page readiness
type IngestService struct {
	loader   *loader.Loader
	registry *schema.Registry
	catalog  *pages.Catalog
	cache    *cache.UploadCache
	files    *files.Manager
	store    store.StatusStore
	metrics  *infrastructure.IngestMetrics
	events   EventPublisher
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// NewIngestService wires an IngestService. The catalog is checked against the
// loader's registry; a page that references an unknown dataset or field is a
// startup error.
func NewIngestService(deps IngestDeps) (*IngestService, error) {
	if deps.Loader == nil || deps.Catalog == nil || deps.Cache == nil || deps.Files == nil || deps.Store == nil {
		return nil, apperrors.NewConfigError("ingest service is missing a dependency", nil)
	}
	registry := deps.Loader.Engine().Registry()
	if err := deps.Catalog.Validate(registry); err != nil {
		return nil, fmt.Errorf("page catalog: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.MeterName)
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = noopPublisher{}
	}

	return &IngestService{
		loader:   deps.Loader,
		registry: registry,
		catalog:  deps.Catalog,
		cache:    deps.Cache,
		files:    deps.Files,
		store:    deps.Store,
		metrics:  deps.Metrics,
		events:   publisher,
		tracer:   tracer,
		logger:   logger.With(slog.String("component", "ingest_service")),
		now:      time.Now,
	}, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.MessageType, interface{}) {}

// Registry returns the dataset registry
func (s *IngestService) Registry() *schema.Registry {
	return s.registry
}

// Catalog returns the page catalog
func (s *IngestService) Catalog() *pages.Catalog {
	return s.catalog
}

// CacheStats returns upload cache statistics
func (s *IngestService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// DetectBatch classifies and loads uploads that are not bound to a page.
// Per-file failures are reported in the batch, never as an error.
func (s *IngestService) DetectBatch(ctx context.Context, uploads []loader.Upload) *loader.Batch {
	ctx, span := s.tracer.Start(ctx, "ingest.detect_batch",
		trace.WithAttributes(attribute.Int("files", len(uploads))))
	defer span.End()

	start := s.now()
	batch := s.loader.Load(ctx, uploads)
	elapsed := s.now().Sub(start)

	for _, key := range batch.Keys() {
		for _, f := range batch.Groups[key] {
			s.metrics.RecordFile(ctx, key, infrastructure.OutcomeDetected, f.Diagnostics.RowCount, elapsed)
			s.events.Publish(ctx, events.MessageTypeFileDetected, events.FileDetected{
				FileName:   f.FileName,
				DatasetKey: key,
				Score:      f.Diagnostics.Score,
				RowCount:   f.Diagnostics.RowCount,
			})
		}
	}
	for _, failure := range batch.Failures {
		s.metrics.RecordFile(ctx, "", infrastructure.OutcomeRejected, 0, elapsed)
		s.events.Publish(ctx, events.MessageTypeFileRejected, events.FileRejected{
			FileName:  failure.FileName,
			ErrorType: string(apperrors.TypeOf(failure.Err)),
			Message:   failure.Message(),
		})
	}
	for _, name := range batch.Skipped {
		s.metrics.RecordFile(ctx, "", infrastructure.OutcomeSkipped, 0, elapsed)
		s.events.Publish(ctx, events.MessageTypeFileSkipped, events.FileSkipped{FileName: name, Reason: "empty file"})
	}

	span.SetAttributes(
		attribute.Int("detected", len(uploads)-len(batch.Failures)-len(batch.Skipped)),
		attribute.Int("rejected", len(batch.Failures)),
	)
	s.logger.InfoContext(ctx, "batch detected",
		slog.Int("files", len(uploads)),
		slog.Any("datasets", batch.Keys()),
		slog.Int("rejected", len(batch.Failures)),
		slog.Int("skipped", len(batch.Skipped)),
		slog.Duration("duration", elapsed))
	return batch
}

// MatchColumns resolves an expectation against a header row using the alias
// map of one dataset
func (s *IngestService) MatchColumns(datasetKey string, columns []string, exp resolve.HeaderExpectation) (resolve.Resolution, error) {
	spec, ok := s.registry.Lookup(datasetKey)
	if !ok {
		return resolve.Resolution{}, notFound(ErrDatasetNotFound, "Unknown dataset '%s'", datasetKey)
	}
	res := resolve.Match(spec, columns, exp)
	if res.Missing == nil {
		res.Missing = []string{}
	}
	return res, nil
}

func (s *IngestService) slot(pageKey, slotKey string) (*pages.Page, pages.PageInputConfig, error) {
	page, ok := s.catalog.Lookup(pageKey)
	if !ok {
		return nil, pages.PageInputConfig{}, notFound(ErrPageNotFound, "Unknown page '%s'", pageKey)
	}
	cfg, ok := page.Input(slotKey)
	if !ok {
		return nil, pages.PageInputConfig{}, notFound(ErrSlotNotFound, "Page '%s' has no input '%s'", pageKey, slotKey)
	}
	return page, cfg, nil
}

// UploadToSlot stores an upload for a page slot, loads it against the slot's
// dataset and expectations, and persists the resulting status. Detection and
// expectation problems are recorded on the status, not returned as errors.
func (s *IngestService) UploadToSlot(ctx context.Context, pageKey, slotKey, fileName string, content []byte) (*pages.InputStatus, error) {
	page, cfg, err := s.slot(pageKey, slotKey)
	if err != nil {
		return nil, err
	}
	spec, ok := s.registry.Lookup(cfg.DatasetKey)
	if !ok {
		return nil, apperrors.NewDefinitionError(fmt.Sprintf("page %s input %s references unknown dataset %s", pageKey, slotKey, cfg.DatasetKey))
	}

	ctx = infrastructure.WithIngestScope(ctx, pageKey, slotKey)
	ctx, span := s.tracer.Start(ctx, "ingest.upload_to_slot", trace.WithAttributes(
		attribute.String("page", pageKey),
		attribute.String("slot", slotKey),
		attribute.String("file", fileName),
		attribute.Int("size_bytes", len(content)),
	))
	defer span.End()

	fingerprint := pages.Fingerprint(content)
	storedPath, err := s.files.SaveUpload(pages.StoredFileName(pageKey, slotKey, fingerprint, fileName), content)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, apperrors.NewStorageError("save upload", err)
	}

	start := s.now()
	batch := s.batchFor(ctx, cache.Key{Fingerprint: fingerprint, FileName: fileName, DatasetKey: cfg.DatasetKey}, content)

	status := pages.NewInputStatus(pageKey, cfg)
	status.UploadedFile = fileName
	status.FilePath = storedPath
	status.Fingerprint = fingerprint
	status.UpdatedAt = s.now().UTC()
	pages.ApplyBatch(status, spec, cfg, batch)

	previous, err := s.store.Get(ctx, pageKey, slotKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := s.store.Put(ctx, status); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	if previous != nil && previous.FilePath != "" && previous.FilePath != storedPath {
		if err := s.files.DeleteFile(previous.FilePath); err != nil {
			s.logger.WarnContext(ctx, "failed to remove replaced upload",
				slog.String("path", previous.FilePath),
				slog.String("error", err.Error()))
		}
	}

	s.reportUpload(ctx, page, status, batch, s.now().Sub(start))
	return status, nil
}

// batchFor returns the loaded batch of a single upload, reusing the cache
func (s *IngestService) batchFor(ctx context.Context, key cache.Key, content []byte) *loader.Batch {
	if batch, ok := s.cache.Get(key); ok {
		s.metrics.RecordCache(ctx, true)
		s.logger.DebugContext(ctx, "upload cache hit",
			slog.String("file", key.FileName),
			slog.String("dataset", key.DatasetKey))
		return batch
	}
	s.metrics.RecordCache(ctx, false)

	batch := s.loader.Load(ctx, []loader.Upload{{Name: key.FileName, Content: content}})
	if ctx.Err() == nil {
		s.cache.Set(key, batch)
	}
	return batch
}

func (s *IngestService) reportUpload(ctx context.Context, page *pages.Page, status *pages.InputStatus, batch *loader.Batch, elapsed time.Duration) {
	logger := s.logger.With(
		slog.String("page", status.PageKey),
		slog.String("slot", status.SlotKey),
		slog.String("file", status.UploadedFile))

	if len(status.Errors) == 0 {
		s.metrics.RecordFile(ctx, status.DatasetKey, infrastructure.OutcomeDetected, status.RowCount, elapsed)
		s.metrics.RecordMissingExpectations(ctx, status.PageKey, len(status.MissingHeaders))
		s.events.Publish(ctx, events.MessageTypeFileDetected, events.FileDetected{
			FileName:   status.UploadedFile,
			DatasetKey: status.DatasetKey,
			RowCount:   status.RowCount,
			Score:      s.scoreOf(batch, status.DatasetKey),
			PageKey:    status.PageKey,
			SlotKey:    status.SlotKey,
		})
		logger.InfoContext(ctx, "upload placed",
			slog.Int("rows", status.RowCount),
			slog.Any("selected_columns", status.SelectedColumns),
			slog.Any("missing_headers", status.MissingHeaders))
		s.publishReadiness(ctx, page)
		return
	}

	if len(batch.Skipped) > 0 {
		s.metrics.RecordFile(ctx, status.DatasetKey, infrastructure.OutcomeSkipped, 0, elapsed)
		s.events.Publish(ctx, events.MessageTypeFileSkipped, events.FileSkipped{
			FileName: status.UploadedFile,
			Reason:   "empty file",
		})
		logger.WarnContext(ctx, "upload skipped", slog.Any("errors", status.Errors))
		s.publishReadiness(ctx, page)
		return
	}

	errorType := string(apperrors.ErrTypeWrongSchema)
	if failure, ok := batch.FailureFor(status.UploadedFile); ok {
		errorType = string(apperrors.TypeOf(failure.Err))
	}
	s.metrics.RecordFile(ctx, status.DatasetKey, infrastructure.OutcomeRejected, 0, elapsed)
	s.events.Publish(ctx, events.MessageTypeFileRejected, events.FileRejected{
		FileName:  status.UploadedFile,
		ErrorType: errorType,
		Message:   status.Errors[0],
		PageKey:   status.PageKey,
		SlotKey:   status.SlotKey,
	})
	logger.WarnContext(ctx, "upload rejected", slog.Any("errors", status.Errors))
	s.publishReadiness(ctx, page)
}

func (s *IngestService) scoreOf(batch *loader.Batch, datasetKey string) int {
	if f, ok := batch.First(datasetKey); ok && f.Diagnostics != nil {
		return f.Diagnostics.Score
	}
	return 0
}

func (s *IngestService) publishReadiness(ctx context.Context, page *pages.Page) {
	r, err := s.Readiness(ctx, page.Key)
	if err != nil {
		s.logger.WarnContext(ctx, "readiness evaluation failed",
			slog.String("page", page.Key),
			slog.String("error", err.Error()))
		return
	}
	s.events.Publish(ctx, events.MessageTypePageReadiness, events.PageReadiness{
		PageKey:        r.PageKey,
		Ready:          r.Ready,
		InputsComplete: r.InputsComplete,
		Message:        r.Message,
		Issues:         r.Issues,
	})
}

// ClearSlot forgets the file placed in a slot and removes the stored upload
func (s *IngestService) ClearSlot(ctx context.Context, pageKey, slotKey string) error {
	page, _, err := s.slot(pageKey, slotKey)
	if err != nil {
		return err
	}

	status, err := s.store.Get(ctx, pageKey, slotKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, pageKey, slotKey); err != nil {
		return err
	}
	if status.FilePath != "" {
		if err := s.files.DeleteFile(status.FilePath); err != nil {
			s.logger.WarnContext(ctx, "failed to remove upload",
				slog.String("path", status.FilePath),
				slog.String("error", err.Error()))
		}
	}
	if status.Fingerprint != "" {
		s.cache.Invalidate(status.Fingerprint)
	}

	s.logger.InfoContext(ctx, "slot cleared",
		slog.String("page", pageKey),
		slog.String("slot", slotKey))
	s.events.Publish(ctx, events.MessageTypeSlotCleared, events.SlotCleared{PageKey: pageKey, SlotKey: slotKey})
	s.publishReadiness(ctx, page)
	return nil
}

// PageState returns the panel state of a page from the stored statuses
func (s *IngestService) PageState(ctx context.Context, pageKey string) (*pages.PanelState, error) {
	page, ok := s.catalog.Lookup(pageKey)
	if !ok {
		return nil, notFound(ErrPageNotFound, "Unknown page '%s'", pageKey)
	}
	statuses, err := s.store.List(ctx, pageKey)
	if err != nil {
		return nil, err
	}
	return pages.NewPanelState(page, statuses), nil
}

// Readiness evaluates whether a page can render, including its date
// coverage checks
func (s *IngestService) Readiness(ctx context.Context, pageKey string) (*pages.Readiness, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.readiness", trace.WithAttributes(attribute.String("page", pageKey)))
	defer span.End()

	state, err := s.PageState(ctx, pageKey)
	if err != nil {
		return nil, err
	}
	r, err := pages.Evaluate(ctx, state, s)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	s.logger.DebugContext(ctx, "page readiness evaluated",
		slog.String("page", pageKey),
		slog.Bool("ready", r.Ready),
		slog.Bool("inputs_complete", r.InputsComplete),
		slog.Int("issues", len(r.Issues)))
	return r, nil
}

// ColumnValues reads one column of the file stored for a slot
func (s *IngestService) ColumnValues(ctx context.Context, status *pages.InputStatus, column string) ([]string, error) {
	table, err := s.table(ctx, status)
	if err != nil {
		return nil, err
	}
	values, ok := table.Column(column)
	if !ok {
		return nil, fmt.Errorf("column %q not found in %s", column, status.UploadedFile)
	}
	return values, nil
}

// table returns the loaded table of a slot, from the cache or by reloading
// the stored upload
func (s *IngestService) table(ctx context.Context, status *pages.InputStatus) (*loader.Table, error) {
	if !status.IsLoaded() {
		return nil, invalid(ErrInputNotLoaded, "Input '%s' of page '%s' has no loaded file", status.SlotKey, status.PageKey)
	}

	key := cache.Key{Fingerprint: status.Fingerprint, FileName: status.UploadedFile, DatasetKey: status.DatasetKey}
	batch, ok := s.cache.Get(key)
	s.metrics.RecordCache(ctx, ok)
	if !ok {
		content, err := s.files.ReadFile(status.FilePath)
		if err != nil {
			return nil, apperrors.NewStorageError("read stored upload", err)
		}
		batch = s.loader.Load(ctx, []loader.Upload{{Name: status.UploadedFile, Content: content}})
		if failure, failed := batch.FailureFor(status.UploadedFile); failed {
			return nil, failure.Err
		}
		s.cache.Set(key, batch)
	}

	record, ok := batch.First(status.DatasetKey)
	if !ok {
		return nil, apperrors.NewWrongSchemaError(fmt.Sprintf("Stored file '%s' is no longer detected as '%s'", status.UploadedFile, status.DatasetKey))
	}
	return record.Table, nil
}

// Export writes a slot's data with canonical column names, in expectation
// order, to out
func (s *IngestService) Export(ctx context.Context, pageKey, slotKey string, format exporter.Format, out io.Writer) error {
	_, cfg, err := s.slot(pageKey, slotKey)
	if err != nil {
		return err
	}
	status, err := s.store.Get(ctx, pageKey, slotKey)
	if errors.Is(err, store.ErrNotFound) {
		return invalid(ErrInputNotLoaded, "Input '%s' of page '%s' has no loaded file", slotKey, pageKey)
	}
	if err != nil {
		return err
	}

	table, err := s.table(ctx, status)
	if err != nil {
		return err
	}

	var mappings []resolve.ColumnMapping
	seen := make(map[string]bool)
	for _, exp := range cfg.Expectations {
		for _, field := range exp.Candidates {
			column, ok := status.SelectedColumns[field]
			if !ok || seen[field] {
				continue
			}
			seen[field] = true
			mappings = append(mappings, resolve.ColumnMapping{Field: field, Column: column})
		}
	}

	s.logger.InfoContext(ctx, "exporting slot",
		slog.String("page", pageKey),
		slog.String("slot", slotKey),
		slog.String("format", string(format)),
		slog.Int("columns", len(mappings)),
		slog.Int("rows", table.RowCount()))
	return exporter.ExportTable(out, format, table.Project(mappings))
}

// ExportFileName is the download name of a slot export
func ExportFileName(pageKey, slotKey string, format exporter.Format) string {
	return fmt.Sprintf("%s_%s%s", pageKey, slotKey, format.Extension())
}
