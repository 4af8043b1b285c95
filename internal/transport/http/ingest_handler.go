package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "riskdash/internal/errors"
	"riskdash/internal/infrastructure"
	"riskdash/internal/loader"
	"riskdash/internal/middleware"
	api "riskdash/pkg/contracts/api/v1"
)

// IngestHandler classifies batches of uploaded files without binding them
// to a page
type IngestHandler struct {
	service        IngestServiceInterface
	validator      *middleware.ValidationMiddleware
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service IngestServiceInterface, validator *middleware.ValidationMiddleware, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *IngestHandler {
	return &IngestHandler{
		service:        service,
		validator:      validator,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "ingest_handler")),
		errorHandler:   errorHandler,
	}
}

// Routes returns the ingest routes
func (h *IngestHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/detect", h.Detect)
	return r
}

// Detect handles POST /api/ingest/detect. Every multipart part named
// "files" (or "file") is classified; per-file failures are reported in the
// response body, never as an error status.
func (h *IngestHandler) Detect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uploads, err := parseUploads(w, r, h.maxUploadBytes, h.validator, "files", "file")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(uploads) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files", "At least one file is required"))
		return
	}

	h.logger.InfoContext(ctx, "detecting uploads",
		slog.Int("files", len(uploads)),
		slog.String("request_id", middleware.GetReqID(ctx)))

	batch := h.service.DetectBatch(ctx, uploads)
	render.JSON(w, r, detectResponse(batch, uploads, infrastructure.GetTraceID(ctx)))
}

// detectResponse lists one outcome per upload in upload order
func detectResponse(batch *loader.Batch, uploads []loader.Upload, traceID string) api.DetectResponse {
	resp := api.DetectResponse{
		Groups:  make(map[string][]string, len(batch.Groups)),
		Order:   batch.Keys(),
		Files:   make([]api.FileOutcome, 0, len(uploads)),
		TraceID: traceID,
	}

	loaded := make(map[string][]*loader.LoadedFile)
	for _, key := range resp.Order {
		for _, f := range batch.Groups[key] {
			resp.Groups[key] = append(resp.Groups[key], f.FileName)
			loaded[f.FileName] = append(loaded[f.FileName], f)
		}
	}
	skipped := make(map[string]int)
	for _, name := range batch.Skipped {
		skipped[name]++
	}
	failures := make(map[string][]loader.Failure)
	for _, f := range batch.Failures {
		failures[f.FileName] = append(failures[f.FileName], f)
	}

	for _, up := range uploads {
		switch {
		case len(loaded[up.Name]) > 0:
			f := loaded[up.Name][0]
			loaded[up.Name] = loaded[up.Name][1:]
			resp.Files = append(resp.Files, api.FileOutcome{
				FileName:    up.Name,
				Status:      api.FileStatusDetected,
				DatasetKey:  f.DatasetKey,
				Diagnostics: f.Diagnostics,
			})
		case skipped[up.Name] > 0:
			skipped[up.Name]--
			resp.Files = append(resp.Files, api.FileOutcome{
				FileName: up.Name,
				Status:   api.FileStatusSkipped,
				Error:    "empty file",
			})
		case len(failures[up.Name]) > 0:
			f := failures[up.Name][0]
			failures[up.Name] = failures[up.Name][1:]
			resp.Files = append(resp.Files, api.FileOutcome{
				FileName: up.Name,
				Status:   api.FileStatusRejected,
				Error:    f.Message(),
			})
		}
	}
	return resp
}
