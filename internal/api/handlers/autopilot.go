package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"contentpilot/internal/autopilot"
	"contentpilot/internal/core"
)

// AutopilotService is implemented by *autopilot.Manager.
type AutopilotService interface {
	RunOnce(ctx context.Context) (autopilot.RunReport, error)
	Status() autopilot.Status
}

// AutopilotHandler exposes the gap-filling loop.
type AutopilotHandler struct {
	svc    AutopilotService
	logger *slog.Logger
}

// NewAutopilotHandler creates an AutopilotHandler.
func NewAutopilotHandler(svc AutopilotService, l *slog.Logger) *AutopilotHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AutopilotHandler{svc: svc, logger: l}
}

// RegisterRoutes mounts the autopilot routes.
func (h *AutopilotHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.Status)
	r.Post("/run", h.Run)
}

// Status handles GET /v1/autopilot/status.
func (h *AutopilotHandler) Status(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.svc.Status())
}

// Run handles POST /v1/autopilot/run. It answers 409 when a pass is already
// running.
func (h *AutopilotHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.RunOnce(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "autopilot run triggered via API",
		"produced", report.Produced,
		"failed", report.Failed,
	)
	core.JSON(w, r, http.StatusOK, report)
}
