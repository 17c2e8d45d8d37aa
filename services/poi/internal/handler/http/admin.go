package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/PoiCatalog/pkg/httputil"
	"github.com/utafrali/PoiCatalog/services/poi/internal/scheduler"
	"github.com/utafrali/PoiCatalog/services/poi/internal/service"
)

// BatchRunner runs a full score recompute. *scheduler.Scheduler satisfies it.
type BatchRunner interface {
	RunOnce(ctx context.Context, trigger string) (scheduler.Report, error)
}

// AdminHandler serves moderator-only maintenance endpoints.
type AdminHandler struct {
	batch  BatchRunner
	logger *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(batch BatchRunner, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{batch: batch, logger: logger}
}

// RecomputeScores handles POST /api/v1/admin/scores/recompute. The batch
// keeps going if the client disconnects. A batch already in progress
// yields 409.
func (h *AdminHandler) RecomputeScores(w http.ResponseWriter, r *http.Request) {
	report, err := h.batch.RunOnce(context.WithoutCancel(r.Context()), service.TriggerManual)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, report)
}
