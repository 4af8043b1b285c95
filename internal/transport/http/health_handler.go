package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"riskdash/internal/services"
)

// HealthHandler serves the probes used by the load balancer and the version
// banner shown in the dashboard footer.
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// Routes registers /health, /health/ready, /health/live and /version on r
func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/health", h.probe(h.service.HealthCheck, services.StatusOK))
	r.Get("/health/ready", h.probe(h.service.ReadinessCheck, services.StatusReady))
	r.Get("/health/live", h.probe(h.service.LivenessCheck, services.StatusAlive))
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, h.service.Version())
	})
}

// probe renders check's result, answering 503 when its status is not want
func (h *HealthHandler) probe(check func(context.Context) services.HealthStatus, want string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := check(r.Context())
		if status.Status != want {
			h.logger.WarnContext(r.Context(), "health probe failed",
				slog.String("path", r.URL.Path),
				slog.String("status", status.Status))
			render.Status(r, http.StatusServiceUnavailable)
		}
		render.JSON(w, r, status)
	}
}
