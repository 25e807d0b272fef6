package http

import (
	"net/http"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/models"
)

type statsResponse struct {
	Quota models.QuotaStats `json:"quota"`
	Gate  models.GateState  `json:"gate"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	quotaStats, err := h.ledger.Stats()
	if err != nil {
		logger.FromRequest(r).Error().Err(err).Msg("quota stats failed")
		writeError(w, statusFromError(err), "quota stats unavailable")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Quota: quotaStats,
		Gate:  h.gate.State(),
	})
}
