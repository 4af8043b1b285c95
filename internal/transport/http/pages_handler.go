package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "riskdash/internal/errors"
	"riskdash/internal/exporter"
	"riskdash/internal/middleware"
	"riskdash/internal/pages"
	"riskdash/internal/services"
	api "riskdash/pkg/contracts/api/v1"
)

// PagesHandler serves the page catalog, the input panel of each page and
// its readiness verdict
type PagesHandler struct {
	service        IngestServiceInterface
	validator      *middleware.ValidationMiddleware
	query          *middleware.QueryParamValidator
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewPagesHandler creates a new pages handler
func NewPagesHandler(service IngestServiceInterface, validator *middleware.ValidationMiddleware, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PagesHandler {
	return &PagesHandler{
		service:        service,
		validator:      validator,
		query:          middleware.NewQueryParamValidator(logger, errorHandler),
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "pages_handler")),
		errorHandler:   errorHandler,
	}
}

// Routes returns the page routes
func (h *PagesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListPages)
	r.Route("/{page}", func(r chi.Router) {
		r.Use(h.PageCtx)
		r.Get("/", h.GetPage)
		r.Get("/readiness", h.GetReadiness)

		r.Route("/inputs/{slot}", func(r chi.Router) {
			r.Use(h.SlotCtx)
			r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/", h.UploadInput)
			r.Delete("/", h.ClearInput)
			r.Get("/export", h.ExportInput)
		})
	})
	return r
}

type pageCtxKey struct{}

// PageCtx resolves the page named in the URL
func (h *PagesHandler) PageCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "page")
		page, ok := h.service.Catalog().Lookup(key)
		if !ok {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				apierrors.CodePageNotFound,
				fmt.Sprintf("Unknown page '%s'", key),
			))
			return
		}
		next.ServeHTTP(w, r.WithContext(withValue(r, pageCtxKey{}, page)))
	})
}

// SlotCtx checks that the page declares the slot named in the URL
func (h *PagesHandler) SlotCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := pageFrom(r)
		slot := chi.URLParam(r, "slot")
		if _, ok := page.Input(slot); !ok {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				apierrors.CodeNotFound,
				fmt.Sprintf("Page '%s' has no input '%s'", page.Key, slot),
			))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pageFrom(r *http.Request) *pages.Page {
	return r.Context().Value(pageCtxKey{}).(*pages.Page)
}

// ListPages handles GET /api/pages
func (h *PagesHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	all := h.service.Catalog().Pages()
	out := make([]api.PageSummary, 0, len(all))
	for _, p := range all {
		required := 0
		for _, in := range p.Inputs {
			if in.Required {
				required++
			}
		}
		out = append(out, api.PageSummary{
			Key:               p.Key,
			Title:             p.Title,
			Notice:            p.Notice,
			Inputs:            len(p.Inputs),
			RequiredInputs:    required,
			UnderConstruction: len(p.Inputs) == 0,
		})
	}
	render.JSON(w, r, api.PageListResponse{Pages: out, Count: len(out)})
}

// PageResponse is a page with the current state of its input panel
type PageResponse struct {
	*pages.Page
	Statuses               []*pages.InputStatus   `json:"statuses"`
	MissingRequiredFiles   []string               `json:"missing_required_files"`
	MissingRequiredHeaders []pages.MissingHeaders `json:"missing_required_headers"`
	Ready                  bool                   `json:"ready"`
	Message                string                 `json:"message,omitempty"`
}

// GetPage handles GET /api/pages/{page}
func (h *PagesHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r)
	state, err := h.service.PageState(r.Context(), page.Key)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	statuses := make([]*pages.InputStatus, 0, len(page.Inputs))
	for _, in := range page.Inputs {
		statuses = append(statuses, state.Status(in.Key))
	}
	files := state.MissingRequiredFiles()
	if files == nil {
		files = []string{}
	}
	headers := state.MissingRequiredHeaders()
	if headers == nil {
		headers = []pages.MissingHeaders{}
	}

	render.JSON(w, r, PageResponse{
		Page:                   page,
		Statuses:               statuses,
		MissingRequiredFiles:   files,
		MissingRequiredHeaders: headers,
		Ready:                  state.Ready(),
		Message:                state.IncompleteMessage(),
	})
}

// GetReadiness handles GET /api/pages/{page}/readiness
func (h *PagesHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	readiness, err := h.service.Readiness(r.Context(), pageFrom(r).Key)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, readiness)
}

// UploadInput handles POST /api/pages/{page}/inputs/{slot}. Detection and
// column problems are part of the returned status, not an error response.
func (h *PagesHandler) UploadInput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pageFrom(r)
	slot := chi.URLParam(r, "slot")

	uploads, err := parseUploads(w, r, h.maxUploadBytes, h.validator, "file")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(uploads) != 1 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "Exactly one file is required"))
		return
	}

	status, err := h.service.UploadToSlot(ctx, page.Key, slot, uploads[0].Name, uploads[0].Content)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to store upload",
			slog.String("page", page.Key),
			slog.String("slot", slot),
			slog.String("file", uploads[0].Name),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

// ClearInput handles DELETE /api/pages/{page}/inputs/{slot}
func (h *PagesHandler) ClearInput(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearSlot(r.Context(), pageFrom(r).Key, chi.URLParam(r, "slot")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// ExportInput handles GET /api/pages/{page}/inputs/{slot}/export?format=csv|xlsx
func (h *PagesHandler) ExportInput(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r)
	slot := chi.URLParam(r, "slot")

	value, ok := h.query.ValidateEnum(w, r, "format", []string{string(exporter.FormatCSV), string(exporter.FormatXLSX)}, string(exporter.FormatCSV))
	if !ok {
		return
	}
	format, err := exporter.ParseFormat(value)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", err.Error()))
		return
	}

	// Buffer so a failed export still gets a problem response
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), page.Key, slot, format, &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ExportFileName(page.Key, slot, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write interrupted",
			slog.String("page", page.Key),
			slog.String("slot", slot),
			slog.String("error", err.Error()))
	}
}
