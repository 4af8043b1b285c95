package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "riskdash/internal/errors"
	"riskdash/internal/middleware"
	"riskdash/internal/resolve"
	"riskdash/internal/schema"
	api "riskdash/pkg/contracts/api/v1"
)

// SchemaHandler exposes the dataset registry and ad hoc header matching
type SchemaHandler struct {
	service      IngestServiceInterface
	validator    *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSchemaHandler creates a new schema handler
func NewSchemaHandler(service IngestServiceInterface, validator *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SchemaHandler {
	return &SchemaHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "schema_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the schema routes
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListSchemas)
	r.Route("/{key}", func(r chi.Router) {
		r.Use(h.SchemaCtx)
		r.Get("/", h.GetSchema)
		r.With(h.validator.ValidateRequest).Post("/match", h.MatchColumns)
	})
	return r
}

type schemaCtxKey struct{}

// SchemaCtx loads the dataset spec named in the URL into the context
func (h *SchemaHandler) SchemaCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		spec, ok := h.service.Registry().Lookup(key)
		if !ok {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusNotFound,
				apierrors.CodeDatasetNotFound,
				"Unknown dataset '"+key+"'",
				map[string]interface{}{"known": h.service.Registry().Keys()},
			))
			return
		}
		next.ServeHTTP(w, r.WithContext(withValue(r, schemaCtxKey{}, spec)))
	})
}

// ListSchemas handles GET /api/schemas
func (h *SchemaHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	specs := h.service.Registry().Specs()
	out := make([]api.SchemaResponse, 0, len(specs))
	for _, spec := range specs {
		out = append(out, schemaResponse(spec))
	}
	render.JSON(w, r, api.SchemaListResponse{Schemas: out, Count: len(out)})
}

// GetSchema handles GET /api/schemas/{key}
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	spec := r.Context().Value(schemaCtxKey{}).(*schema.DatasetSpec)
	render.JSON(w, r, schemaResponse(spec))
}

// MatchColumns handles POST /api/schemas/{key}/match
func (h *SchemaHandler) MatchColumns(w http.ResponseWriter, r *http.Request) {
	spec := r.Context().Value(schemaCtxKey{}).(*schema.DatasetSpec)

	var req api.MatchRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}

	exp := resolve.HeaderExpectation{
		Name:       req.Expectation.Name,
		Candidates: req.Expectation.Candidates,
		Required:   req.Expectation.Required,
		Match:      resolve.MatchMode(req.Expectation.Match),
	}
	res, err := h.service.MatchColumns(spec.Key, req.Columns, exp)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "columns matched",
		slog.String("dataset", spec.Key),
		slog.String("expectation", exp.Name),
		slog.Int("selected", len(res.Selected)),
		slog.Int("missing", len(res.Missing)))

	render.JSON(w, r, api.MatchResponse{
		DatasetKey: spec.Key,
		Selected:   res.Selected,
		Missing:    res.Missing,
	})
}

func schemaResponse(spec *schema.DatasetSpec) api.SchemaResponse {
	required := toSet(spec.RequiredFields)
	identifying := toSet(spec.IdentifyingFields)

	fields := make([]api.SchemaField, 0, len(spec.Fields()))
	for _, fa := range spec.FieldAliases() {
		fields = append(fields, api.SchemaField{
			Field:       fa.Field,
			Aliases:     fa.Aliases,
			Required:    required[fa.Field],
			Identifying: identifying[fa.Field],
		})
	}
	return api.SchemaResponse{
		Key:               spec.Key,
		DisplayName:       spec.DisplayName,
		FilenamePrefixes:  nonNil(spec.FilenamePrefixes),
		RequiredFields:    nonNil(spec.RequiredFields),
		IdentifyingFields: nonNil(spec.IdentifyingFields),
		Fields:            fields,
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
