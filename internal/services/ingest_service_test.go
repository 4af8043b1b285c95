package services

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"riskdash/internal/cache"
	"riskdash/internal/config"
	"riskdash/internal/detect"
	apperrors "riskdash/internal/errors"
	"riskdash/internal/exporter"
	"riskdash/internal/files"
	"riskdash/internal/infrastructure"
	"riskdash/internal/loader"
	"riskdash/internal/pages"
	"riskdash/internal/resolve"
	"riskdash/internal/schema"
	"riskdash/internal/shared/testutil"
	"riskdash/internal/store"
	"riskdash/pkg/contracts/events"
)

type publishedEvent struct {
	Type events.MessageType
	Data interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, msgType events.MessageType, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: msgType, Data: data})
}

func (p *recordingPublisher) types() []events.MessageType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.MessageType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last(msgType events.MessageType) interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == msgType {
			return p.events[i].Data
		}
	}
	return nil
}

type fixture struct {
	svc    *IngestService
	paths  *config.Paths
	store  *store.MemoryStore
	cache  *cache.UploadCache
	events *recordingPublisher
	reader *sdkmetric.ManualReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	paths := config.NewPaths(t.TempDir(), config.PathsConfig{})
	require.NoError(t, paths.EnsureDirectories())

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := infrastructure.NewIngestMetrics(provider.Meter("test"))
	require.NoError(t, err)

	uploadCache := cache.NewUploadCache(time.Minute, 16)
	t.Cleanup(uploadCache.Stop)

	f := &fixture{
		paths:  paths,
		store:  store.NewMemoryStore(),
		cache:  uploadCache,
		events: &recordingPublisher{},
		reader: reader,
	}
	f.svc, err = NewIngestService(IngestDeps{
		Loader:  loader.NewLoader(detect.NewEngine(schema.Default(), logger, 0), logger, 2),
		Catalog: pages.DefaultCatalog(),
		Cache:   uploadCache,
		Files:   files.NewManager(paths, logger),
		Store:   f.store,
		Metrics: metrics,
		Events:  f.events,
		Logger:  logger,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestNewIngestService_MissingDependency(t *testing.T) {
	_, err := NewIngestService(IngestDeps{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestNewIngestService_InvalidCatalog(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	bad, err := pages.NewCatalog(&pages.Page{
		Key:   "broken",
		Title: "Broken",
		Inputs: []pages.PageInputConfig{{
			Key:          "slot",
			Title:        "Slot",
			DatasetKey:   "unknown_dataset",
			Expectations: []resolve.HeaderExpectation{{Name: "x", Candidates: []string{"y"}}},
		}},
	})
	require.NoError(t, err)

	paths := config.NewPaths(t.TempDir(), config.PathsConfig{})
	c := cache.NewUploadCache(time.Minute, 1)
	defer c.Stop()

	_, err = NewIngestService(IngestDeps{
		Loader:  loader.NewLoader(detect.NewEngine(schema.Default(), logger, 0), logger, 1),
		Catalog: bad,
		Cache:   c,
		Files:   files.NewManager(paths, logger),
		Store:   store.NewMemoryStore(),
	})
	assert.ErrorContains(t, err, "page catalog")
}

func TestUploadToSlot_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	content := testutil.RiskMetricCSV("2022-12-31", "2025-06-30")
	status, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk_metrics.csv", content)
	require.NoError(t, err)

	assert.True(t, status.IsLoaded())
	assert.True(t, status.IsReady())
	assert.Equal(t, 2, status.RowCount)
	assert.Equal(t, "reportingDate", status.SelectedColumns[schema.FieldReportingDate])
	assert.Equal(t, pages.Fingerprint(content), status.Fingerprint)
	assert.Equal(t, f.paths.GetUploadPath(pages.StoredFileName(pages.MacroLinkage, "risk_metrics_timeseries", status.Fingerprint, "risk_metrics.csv")), status.FilePath)

	stored, err := os.ReadFile(status.FilePath)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	persisted, err := f.store.Get(ctx, pages.MacroLinkage, "risk_metrics_timeseries")
	require.NoError(t, err)
	assert.Equal(t, status, persisted)

	assert.Equal(t, []events.MessageType{events.MessageTypeFileDetected, events.MessageTypePageReadiness}, f.events.types())
	detected := f.events.last(events.MessageTypeFileDetected).(events.FileDetected)
	assert.Equal(t, schema.InstrumentRiskMetric, detected.DatasetKey)
	assert.Equal(t, "risk_metrics_timeseries", detected.SlotKey)

	readiness := f.events.last(events.MessageTypePageReadiness).(events.PageReadiness)
	assert.False(t, readiness.Ready)
	assert.Contains(t, readiness.Message, "Missing required file(s): Instrument Reference (Geography Enrichment)")

	assert.Equal(t, int64(1), f.counter(t, "ingest_files_total"))
}

func TestUploadToSlot_WrongDataset(t *testing.T) {
	f := newFixture(t)

	status, err := f.svc.UploadToSlot(context.Background(), pages.MacroLinkage, "risk_metrics_timeseries",
		"chargeoff.csv", testutil.ChargeOffCSV("2024-01-31"))
	require.NoError(t, err)

	assert.False(t, status.IsLoaded())
	assert.Equal(t, []string{"Detected dataset type(s): chargeoff. Expected 'instrument_risk_metric'."}, status.Errors)

	rejected := f.events.last(events.MessageTypeFileRejected).(events.FileRejected)
	assert.Equal(t, string(apperrors.ErrTypeWrongSchema), rejected.ErrorType)
	assert.Equal(t, status.Errors[0], rejected.Message)
}

func TestUploadToSlot_UnrecognizedAndEmpty(t *testing.T) {
	tests := []struct {
		name       string
		content    []byte
		wantError  string
		wantEvents []events.MessageType
		wantType   string
	}{
		{
			name:       "unrecognized headers",
			content:    testutil.CSV([]string{"foo", "bar"}, []string{"1", "2"}),
			wantError:  "File 'upload.csv' resembles",
			wantEvents: []events.MessageType{events.MessageTypeFileRejected, events.MessageTypePageReadiness},
			wantType:   string(apperrors.ErrTypeNoViableSchema),
		},
		{
			name:       "empty file",
			content:    nil,
			wantError:  "Detected dataset type(s): none. Expected 'instrument_risk_metric'.",
			wantEvents: []events.MessageType{events.MessageTypeFileSkipped, events.MessageTypePageReadiness},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			status, err := f.svc.UploadToSlot(context.Background(), pages.MacroLinkage, "risk_metrics_timeseries", "upload.csv", tt.content)
			require.NoError(t, err)
			require.Len(t, status.Errors, 1)
			assert.Contains(t, status.Errors[0], tt.wantError)
			assert.Equal(t, tt.wantEvents, f.events.types())

			if tt.wantType != "" {
				rejected := f.events.last(events.MessageTypeFileRejected).(events.FileRejected)
				assert.Equal(t, tt.wantType, rejected.ErrorType)
			} else {
				skipped := f.events.last(events.MessageTypeFileSkipped).(events.FileSkipped)
				assert.Equal(t, "upload.csv", skipped.FileName)
			}
		})
	}
}

func TestUploadToSlot_UnknownPageOrSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UploadToSlot(ctx, "nope", "x", "a.csv", []byte("a"))
	assert.ErrorIs(t, err, ErrPageNotFound)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = f.svc.UploadToSlot(ctx, pages.MacroLinkage, "nope", "a.csv", []byte("a"))
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestUploadToSlot_ReusesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := testutil.RiskMetricCSV("2022-12-31", "2025-06-30")

	_, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk.csv", content)
	require.NoError(t, err)
	_, err = f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk.csv", content)
	require.NoError(t, err)

	stats := f.svc.CacheStats()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, int64(1), f.counter(t, "ingest_cache_hits_total"))
}

func TestUploadToSlot_SameBytesUnderNewName(t *testing.T) {
	tests := []struct {
		name        string
		content     []byte
		firstName   string
		secondName  string
		firstError  string
		secondError string
	}{
		{
			name:        "filename bonus picks the slot's dataset",
			content:     []byte("instrumentIdentifier,portfolioIdentifier\nA,P\n"),
			firstName:   "reference_q1.csv",
			secondName:  "result_q1.csv",
			firstError:  "Detected dataset type(s): instrument_reference. Expected 'instrument_result'.",
			secondError: "",
		},
		{
			name:        "no viable schema keeps its diagnostic",
			content:     []byte("Loan Number,Balance\n1,2\n"),
			firstName:   "a.csv",
			secondName:  "b.csv",
			firstError:  "File 'a.csv' resembles 'Instrument Reference' but is missing required headers",
			secondError: "File 'b.csv' resembles 'Instrument Reference' but is missing required headers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			first, err := f.svc.UploadToSlot(ctx, pages.RealEstatePD, "result_current", tt.firstName, tt.content)
			require.NoError(t, err)
			require.Len(t, first.Errors, 1)
			assert.Contains(t, first.Errors[0], tt.firstError)

			second, err := f.svc.UploadToSlot(ctx, pages.RealEstatePD, "result_current", tt.secondName, tt.content)
			require.NoError(t, err)
			if tt.secondError == "" {
				assert.Empty(t, second.Errors)
				assert.True(t, second.IsLoaded())
			} else {
				require.Len(t, second.Errors, 1)
				assert.Contains(t, second.Errors[0], tt.secondError)
			}

			assert.Equal(t, int64(0), f.svc.CacheStats().HitCount)
		})
	}
}

func TestUploadToSlot_ReplacesPreviousFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk.csv",
		testutil.RiskMetricCSV("2022-12-31"))
	require.NoError(t, err)
	second, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk.csv",
		testutil.RiskMetricCSV("2022-12-31", "2025-06-30"))
	require.NoError(t, err)

	assert.NotEqual(t, first.FilePath, second.FilePath)
	assert.NoFileExists(t, first.FilePath)
	assert.FileExists(t, second.FilePath)
}

func TestReadiness_MacroLinkage(t *testing.T) {
	tests := []struct {
		name      string
		dates     []string
		wantReady bool
		wantIssue string
	}{
		{
			name:      "covered",
			dates:     []string{"2022-12-31", "2024-06-30", "2025-06-30"},
			wantReady: true,
		},
		{
			name:      "ends early",
			dates:     []string{"2022-12-31", "2025-03-31"},
			wantIssue: "Risk metric series ends on 2025-03-31, but should extend through at least mid-2025.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "reference_enrichment", "reference.csv", testutil.ReferenceCSV())
			require.NoError(t, err)
			_, err = f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk_metrics.csv", testutil.RiskMetricCSV(tt.dates...))
			require.NoError(t, err)

			r, err := f.svc.Readiness(ctx, pages.MacroLinkage)
			require.NoError(t, err)
			assert.True(t, r.InputsComplete)
			assert.Equal(t, tt.wantReady, r.Ready)
			if tt.wantIssue != "" {
				assert.Equal(t, []string{tt.wantIssue}, r.Issues)
			}
			assert.Contains(t, r.Explain, "risk_metrics_timeseries")
		})
	}
}

func TestReadiness_ReloadsFromDiskAfterCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "reference_enrichment", "reference.csv", testutil.ReferenceCSV())
	require.NoError(t, err)
	status, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk_metrics.csv",
		testutil.RiskMetricCSV("2022-12-31", "2025-06-30"))
	require.NoError(t, err)

	f.cache.Invalidate(status.Fingerprint)

	values, err := f.svc.ColumnValues(ctx, status, "reportingDate")
	require.NoError(t, err)
	assert.Equal(t, []string{"2022-12-31", "2025-06-30"}, values)

	_, err = f.svc.ColumnValues(ctx, status, "missing")
	assert.Error(t, err)
}

func TestClearSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk.csv",
		testutil.RiskMetricCSV("2022-12-31"))
	require.NoError(t, err)

	require.NoError(t, f.svc.ClearSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries"))
	assert.NoFileExists(t, status.FilePath)
	_, err = f.store.Get(ctx, pages.MacroLinkage, "risk_metrics_timeseries")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, f.svc.CacheStats().Entries)
	assert.Contains(t, f.events.types(), events.MessageTypeSlotCleared)

	// clearing an empty slot is a no-op
	require.NoError(t, f.svc.ClearSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries"))
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	content := testutil.CSV(
		[]string{"instrument_id", "reporting_date", "annualizedCumulativePD", "lgd", "extra"},
		[]string{"I-1", "2023-01-31", "0.02", "0.4", "x"},
	)
	_, err := f.svc.UploadToSlot(ctx, pages.MacroLinkage, "risk_metrics_timeseries", "risk.csv", content)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, pages.MacroLinkage, "risk_metrics_timeseries", exporter.FormatCSV, &buf))

	lines := strings.Split(strings.TrimPrefix(buf.String(), "\xef\xbb\xbf"), "\n")
	assert.Equal(t, "instrumentIdentifier,reportingDate,annualizedCumulativePD,lgd", lines[0])
	assert.Equal(t, "I-1,2023-01-31,0.02,0.4", lines[1])

	err = f.svc.Export(ctx, pages.MacroLinkage, "reference_enrichment", exporter.FormatCSV, &buf)
	assert.ErrorIs(t, err, ErrInputNotLoaded)

	assert.Equal(t, "macro_linkage_risk_metrics_timeseries.xlsx", ExportFileName(pages.MacroLinkage, "risk_metrics_timeseries", exporter.FormatXLSX))
}

func TestDetectBatch(t *testing.T) {
	f := newFixture(t)

	batch := f.svc.DetectBatch(context.Background(), []loader.Upload{
		{Name: "chargeoff.csv", Content: testutil.ChargeOffCSV("2024-01-31")},
		{Name: "notes.csv", Content: testutil.CSV([]string{"foo"}, []string{"1"})},
		{Name: "empty.csv"},
	})

	assert.Equal(t, []string{schema.ChargeOff}, batch.Keys())
	assert.Len(t, batch.Failures, 1)
	assert.Equal(t, []string{"empty.csv"}, batch.Skipped)
	assert.ElementsMatch(t, []events.MessageType{
		events.MessageTypeFileDetected,
		events.MessageTypeFileRejected,
		events.MessageTypeFileSkipped,
	}, f.events.types())
	assert.Equal(t, int64(3), f.counter(t, "ingest_files_total"))
}

func TestMatchColumns(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.MatchColumns(schema.InstrumentRiskMetric, []string{"Instrument ID", "as_of_date"},
		resolve.HeaderExpectation{Name: "dates", Candidates: []string{schema.FieldReportingDate, schema.FieldAsOfDate}, Required: true, Match: resolve.MatchAny})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{schema.FieldAsOfDate: "as_of_date"}, res.Selected)
	assert.Empty(t, res.Missing)

	_, err = f.svc.MatchColumns("unknown", nil, resolve.HeaderExpectation{})
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}
