package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/kvstore"
	"github.com/fgb-andu/reelprompt-api/pkg/service/promptgen"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

type HealthResponse struct {
	OK        bool             `json:"ok"`
	Status    string           `json:"status"`
	Database  string           `json:"database"`
	Cache     *kvstore.Stats   `json:"cache,omitempty"`
	Generator *promptgen.Stats `json:"generator,omitempty"`
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.log.Error("database ping failed", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Database unavailable")
			return
		}
	}

	resp := HealthResponse{OK: true, Status: "healthy", Database: "connected"}
	if h.cache != nil {
		stats := h.cache.Stats()
		resp.Cache = &stats
	}
	if h.generator != nil {
		stats := h.generator.Stats()
		resp.Generator = &stats
	}
	respondWithJSON(w, http.StatusOK, resp)
}
