package http

import (
	"context"
	"io"

	"riskdash/internal/exporter"
	"riskdash/internal/loader"
	"riskdash/internal/pages"
	"riskdash/internal/resolve"
	"riskdash/internal/schema"
)

// IngestServiceInterface is what the schema, ingest and page handlers need
// from the ingestion service
type IngestServiceInterface interface {
	Registry() *schema.Registry
	Catalog() *pages.Catalog
	DetectBatch(ctx context.Context, uploads []loader.Upload) *loader.Batch
	MatchColumns(datasetKey string, columns []string, exp resolve.HeaderExpectation) (resolve.Resolution, error)
	UploadToSlot(ctx context.Context, pageKey, slotKey, fileName string, content []byte) (*pages.InputStatus, error)
	ClearSlot(ctx context.Context, pageKey, slotKey string) error
	PageState(ctx context.Context, pageKey string) (*pages.PanelState, error)
	Readiness(ctx context.Context, pageKey string) (*pages.Readiness, error)
	Export(ctx context.Context, pageKey, slotKey string, format exporter.Format, out io.Writer) error
}
